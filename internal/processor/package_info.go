// Package processor implements the handling of envelopes after they were received: project
// checks, rate limits, metric extraction, profile normalization and forwarding.
package processor
