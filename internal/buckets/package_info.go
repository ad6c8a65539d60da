// Package buckets implements Relay's metrics model: metric resource identifiers, bucket values,
// the statsd-like text format that SDKs submit, and the Aggregator that merges buckets over time
// before they are flushed upstream.
package buckets
