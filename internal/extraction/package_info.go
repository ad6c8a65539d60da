// Package extraction builds metric buckets out of payloads such as spans, driven by a project's
// metric extraction config.
package extraction
