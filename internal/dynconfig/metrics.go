package dynconfig

import (
	"github.com/eventrelay/relay/internal/basictypes"
)

// MetricExtractionVersion is the newest metric extraction config version this Relay understands.
const MetricExtractionVersion = 1

// TransactionMetricsVersion is the newest transaction metrics config version this Relay understands.
const TransactionMetricsVersion = 1

// MetricExtractionConfig describes which metrics to extract from which payloads.
type MetricExtractionConfig struct {
	// Version is 0 for an empty config. Configs newer than this Relay are not applied.
	Version uint16       `json:"version"`
	Metrics []MetricSpec `json:"metrics,omitempty"`
	Tags    []TagMapping `json:"tags,omitempty"`

	// SpanMetricsExtended is set once the default span metrics have been added.
	SpanMetricsExtended bool `json:"_spanMetricsExtended,omitempty"`
	// TransactionMetricsExtended is set once the default transaction metrics have been added.
	TransactionMetricsExtended bool `json:"_transactionMetricsExtended,omitempty"`
}

// IsSupported returns true if this Relay can apply the config.
func (c MetricExtractionConfig) IsSupported() bool {
	return c.Version <= MetricExtractionVersion
}

// IsEnabled returns true if the config is supported and non-empty.
func (c MetricExtractionConfig) IsEnabled() bool {
	return c.Version > 0 && c.IsSupported() && (len(c.Metrics) > 0 || len(c.Tags) > 0)
}

// MetricSpec describes one metric to extract.
type MetricSpec struct {
	// Category of the payload the metric is extracted from.
	Category basictypes.DataCategory `json:"category"`
	// MRI of the extracted metric. Its type decides how Field is interpreted.
	MRI string `json:"mri"`
	// Field is the path of the value. Counters without a field count occurrences.
	Field     string         `json:"field,omitempty"`
	Condition *RuleCondition `json:"condition,omitempty"`
	Tags      []TagSpec      `json:"tags,omitempty"`
}

// TagMapping adds tags to every metric whose MRI matches one of the globs.
type TagMapping struct {
	Metrics basictypes.GlobPatterns `json:"metrics"`
	Tags    []TagSpec               `json:"tags"`
}

// TagSpec describes one tag. Exactly one of Field or Value is normally set.
type TagSpec struct {
	Key       string         `json:"key"`
	Field     string         `json:"field,omitempty"`
	Value     string         `json:"value,omitempty"`
	Condition *RuleCondition `json:"condition,omitempty"`
}

// TransactionMetricsConfig enables the extraction of transaction metrics.
type TransactionMetricsConfig struct {
	Version           uint16   `json:"version"`
	ExtractCustomTags []string `json:"extractCustomTags,omitempty"`
}

// IsEnabled returns true if the config is set and supported.
func (c TransactionMetricsConfig) IsEnabled() bool {
	return c.Version > 0 && c.Version <= TransactionMetricsVersion
}
