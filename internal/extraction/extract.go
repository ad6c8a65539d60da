package extraction

import (
	"strconv"

	"github.com/eventrelay/relay/internal/basictypes"
	"github.com/eventrelay/relay/internal/buckets"
	"github.com/eventrelay/relay/internal/dynconfig"
	"github.com/eventrelay/relay/internal/protocol"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// Extractor applies a metric extraction config to payloads.
type Extractor struct {
	config  *dynconfig.MetricExtractionConfig
	loggers ldlog.Loggers
}

// NewExtractor creates an Extractor. A nil or unsupported config extracts nothing.
func NewExtractor(config *dynconfig.MetricExtractionConfig, loggers ldlog.Loggers) *Extractor {
	loggers.SetPrefix("[MetricExtraction]")
	return &Extractor{config: config, loggers: loggers}
}

// Extract returns the buckets of every metric spec that applies to the payload.
func (e *Extractor) Extract(
	instance protocol.Getter,
	category basictypes.DataCategory,
	timestamp basictypes.UnixTimestamp,
) []buckets.Bucket {
	if e.config == nil || !e.config.IsSupported() {
		return nil
	}
	var ret []buckets.Bucket
	for _, spec := range e.config.Metrics {
		if spec.Category != category {
			continue
		}
		if spec.Condition != nil && !spec.Condition.Matches(instance) {
			continue
		}
		mri, err := buckets.ParseMRI(spec.MRI)
		if err != nil {
			e.loggers.Warnf("Invalid MRI %q in metric extraction config: %s", spec.MRI, err)
			continue
		}
		value, ok := readBucketValue(instance, mri.Type, spec.Field)
		if !ok {
			continue
		}
		tags := make(map[string]string)
		addTags(tags, instance, spec.Tags)
		for _, mapping := range e.config.Tags {
			if mapping.Metrics.IsMatch(mri.String()) {
				addTags(tags, instance, mapping.Tags)
			}
		}
		ret = append(ret, buckets.Bucket{
			Timestamp: timestamp,
			Name:      mri.String(),
			Value:     value,
			Tags:      tags,
		})
	}
	return ret
}

func readBucketValue(instance protocol.Getter, ty buckets.MetricType, field string) (buckets.BucketValue, bool) {
	if field == "" {
		if ty == buckets.MetricTypeCounter {
			return buckets.NewCounterValue(1), true
		}
		return buckets.BucketValue{}, false
	}
	raw, ok := protocol.GetPath(instance, field)
	if !ok || raw == nil {
		return buckets.BucketValue{}, false
	}
	if ty == buckets.MetricTypeSet {
		s, ok := stringify(raw)
		if !ok {
			return buckets.BucketValue{}, false
		}
		return buckets.NewSetValue(buckets.ParseSetValue(s)), true
	}
	f, ok := protocol.AsFloat(raw)
	if !ok {
		return buckets.BucketValue{}, false
	}
	v := buckets.MetricValue(f)
	switch ty {
	case buckets.MetricTypeCounter:
		return buckets.NewCounterValue(v), true
	case buckets.MetricTypeDistribution:
		return buckets.NewDistributionValue(v), true
	case buckets.MetricTypeGauge:
		return buckets.NewGaugeBucketValue(buckets.NewGaugeValue(v)), true
	default:
		return buckets.BucketValue{}, false
	}
}

// addTags sets the tags of specs whose condition holds. Tags that are already set are kept.
func addTags(tags map[string]string, instance protocol.Getter, specs []dynconfig.TagSpec) {
	for _, spec := range specs {
		if _, exists := tags[spec.Key]; exists {
			continue
		}
		if spec.Condition != nil && !spec.Condition.Matches(instance) {
			continue
		}
		if spec.Field != "" {
			if raw, ok := protocol.GetPath(instance, spec.Field); ok {
				if s, ok := stringify(raw); ok {
					tags[spec.Key] = s
				}
			}
			continue
		}
		if spec.Value != "" {
			tags[spec.Key] = spec.Value
		}
	}
}

func stringify(v protocol.Value) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}
