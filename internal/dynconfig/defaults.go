package dynconfig

import (
	"strings"

	"github.com/eventrelay/relay/internal/basictypes"
)

const spanExclusiveTimeMetrics = "d:spans/exclusive_time*@millisecond"

// Span fields that become tags of the span metrics. Keys are tag names, values are field paths.
var spanMetricTags = []TagSpec{ //nolint:gochecknoglobals
	{Key: "environment", Field: "span.data.environment"},
	{Key: "http.status_code", Field: `span.data.http\.status_code`},
	{Key: "span.action", Field: `span.data.span\.action`},
	{Key: "span.category", Field: `span.data.span\.category`},
	{Key: "span.description", Field: `span.data.span\.description`},
	{Key: "span.domain", Field: `span.data.span\.domain`},
	{Key: "span.group", Field: `span.data.span\.group`},
	{Key: "span.module", Field: `span.data.span\.module`},
	{Key: "span.op", Field: `span.data.span\.op`},
	{Key: "span.status_code", Field: `span.data.span\.status_code`},
	{Key: "span.status", Field: `span.data.span\.status`},
	{Key: "span.system", Field: `span.data.span\.system`},
	{Key: "transaction.method", Field: `span.data.transaction\.method`},
	{Key: "transaction.op", Field: `span.data.transaction\.op`},
}

// AddSpanMetrics adds the default span metric extraction to a project config that has the
// span metrics feature. It does nothing if the config is from a newer Relay version or was
// already extended.
func AddSpanMetrics(config *ProjectConfig) {
	if !config.Features.Has(FeatureSpanMetricsExtraction) {
		return
	}
	if config.MetricExtraction == nil {
		config.MetricExtraction = &MetricExtractionConfig{}
	}
	mec := config.MetricExtraction
	if !mec.IsSupported() || mec.SpanMetricsExtended {
		return
	}

	mec.Metrics = append(mec.Metrics,
		MetricSpec{
			Category: basictypes.DataCategorySpan,
			MRI:      "d:spans/exclusive_time@millisecond",
			Field:    "span.exclusive_time",
			Tags:     []TagSpec{{Key: "transaction", Field: "span.data.transaction"}},
		},
		MetricSpec{
			Category: basictypes.DataCategorySpan,
			MRI:      "d:spans/exclusive_time_light@millisecond",
			Field:    "span.exclusive_time",
		},
	)

	mobileOnly := EqCondition("span.data.mobile", true)
	var mobileTags []TagSpec
	for _, key := range []string{"release", "device.class"} {
		mobileTags = append(mobileTags, TagSpec{
			Key:       key,
			Field:     "span.data." + strings.ReplaceAll(key, ".", `\.`),
			Condition: &mobileOnly,
		})
	}
	mec.Tags = append(mec.Tags,
		TagMapping{
			Metrics: basictypes.GlobPatterns{basictypes.NewGlob(spanExclusiveTimeMetrics)},
			Tags:    append([]TagSpec(nil), spanMetricTags...),
		},
		TagMapping{
			Metrics: basictypes.GlobPatterns{basictypes.NewGlob(spanExclusiveTimeMetrics)},
			Tags:    mobileTags,
		},
	)

	mec.SpanMetricsExtended = true
	if mec.Version == 0 {
		mec.Version = MetricExtractionVersion
	}
}

// AddTransactionMetrics marks the metric extraction config of projects with transaction
// metrics as extended and adds an empty tag mapping for the default transaction tags, of which
// there are none yet. It does nothing for a config that is already extended.
func AddTransactionMetrics(config *ProjectConfig) {
	if config.TransactionMetrics == nil || !config.TransactionMetrics.IsEnabled() {
		return
	}
	if config.MetricExtraction == nil {
		config.MetricExtraction = &MetricExtractionConfig{}
	}
	mec := config.MetricExtraction
	if mec.TransactionMetricsExtended {
		return
	}
	mec.TransactionMetricsExtended = true
	if mec.Version == 0 {
		mec.Version = MetricExtractionVersion
	}

	// matches no metric
	mec.Tags = append(mec.Tags, TagMapping{
		Metrics: basictypes.GlobPatterns{basictypes.NewGlob("")},
		Tags:    []TagSpec{},
	})
}
