// Package profiling validates and normalizes sampled profiles before they are forwarded.
package profiling
