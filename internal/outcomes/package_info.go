// Package outcomes records what happened to every item Relay received: whether it was accepted,
// filtered, rate limited, rejected as invalid, or discarded by the client.
//
// Outcomes flow through an Aggregator, which sums identical outcomes per time bucket, into a
// Producer, which batches them and hands them to a Sink: the upstream's outcomes endpoint or the
// outcomes Kafka topic in processing mode.
package outcomes
