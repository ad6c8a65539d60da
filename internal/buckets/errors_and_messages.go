package buckets

import (
	"errors"
	"fmt"
	"strings"
)

// ParseMetricError is returned when a metric name, unit or value cannot be parsed.
type ParseMetricError struct {
	Reason string
}

func (e ParseMetricError) Error() string {
	return "failed to parse metric: " + e.Reason
}

// ParseBucketError is returned for a statsd line or JSON bucket that cannot be parsed.
type ParseBucketError struct {
	Line   string
	Reason string
}

func (e ParseBucketError) Error() string {
	if e.Line == "" {
		return "failed to parse metric bucket: " + e.Reason
	}
	return fmt.Sprintf("failed to parse metric bucket %q: %s", e.Line, e.Reason)
}

// AggregateMetricsErrorKind describes why the Aggregator refused a bucket.
type AggregateMetricsErrorKind string

const (
	// InvalidTypes means that two buckets with the same key had different metric types.
	InvalidTypes AggregateMetricsErrorKind = "found incompatible metric types"
	// InvalidTimestamp means the bucket was too far in the past or the future.
	InvalidTimestamp AggregateMetricsErrorKind = "found invalid timestamp"
	// InvalidStringLength means the metric name was too long.
	InvalidStringLength AggregateMetricsErrorKind = "found invalid metric name length"
	// InvalidCharacters means the metric name could not be parsed.
	InvalidCharacters AggregateMetricsErrorKind = "found invalid characters"
	// UnsupportedNamespace means the metric belongs to a namespace Relay does not accept.
	UnsupportedNamespace AggregateMetricsErrorKind = "found unsupported namespace"
)

// AggregateMetricsError is returned when a bucket cannot be merged into the Aggregator.
type AggregateMetricsError struct {
	Kind   AggregateMetricsErrorKind
	Detail string
}

func (e AggregateMetricsError) Error() string {
	if e.Detail == "" {
		return "failed to aggregate metrics: " + string(e.Kind)
	}
	return fmt.Sprintf("failed to aggregate metrics: %s (%s)", e.Kind, e.Detail)
}

// Is allows errors.Is to match on the error kind alone.
func (e AggregateMetricsError) Is(target error) bool {
	t, ok := target.(AggregateMetricsError)
	return ok && t.Kind == e.Kind
}

func errInvalidMetricType(s string) error {
	return ParseMetricError{Reason: fmt.Sprintf("unknown metric type %q", s)}
}

func errInvalidMetricName(s string) error {
	return ParseMetricError{Reason: fmt.Sprintf("invalid metric name %q", s)}
}

func errInvalidMetricUnit(s string) error {
	return ParseMetricError{Reason: fmt.Sprintf("invalid metric unit %q", s)}
}

func errInvalidMetricValue(s string) error {
	return ParseMetricError{Reason: fmt.Sprintf("invalid metric value %q", s)}
}

func errMismatchedTypes(a, b MetricType) error {
	return AggregateMetricsError{Kind: InvalidTypes, Detail: fmt.Sprintf("%s and %s", a, b)}
}

func errBucketTooOld(ts fmt.Stringer) error {
	return AggregateMetricsError{Kind: InvalidTimestamp, Detail: "timestamp " + ts.String() + " too old"}
}

func errBucketTooNew(ts fmt.Stringer) error {
	return AggregateMetricsError{Kind: InvalidTimestamp, Detail: "timestamp " + ts.String() + " in the future"}
}

func errNameTooLong(name string) error {
	return AggregateMetricsError{Kind: InvalidStringLength, Detail: name}
}

func dropReason(err error) string {
	var aggErr AggregateMetricsError
	if errors.As(err, &aggErr) {
		return strings.ReplaceAll(strings.TrimPrefix(string(aggErr.Kind), "found "), " ", "_")
	}
	return "other"
}
