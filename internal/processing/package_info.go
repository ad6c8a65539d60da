// Package processing writes processed items to Kafka when Relay runs in processing mode.
package processing
