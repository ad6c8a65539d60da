package buckets

import (
	"hash/crc32"
	"math"
	"sort"
	"strconv"
	"strings"
)

// MetricValue is a single finite floating-point measurement.
type MetricValue float64

// ParseMetricValue parses a value, rejecting NaN and infinities.
func ParseMetricValue(s string) (MetricValue, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errInvalidMetricValue(s)
	}
	return MetricValue(f), nil
}

func (v MetricValue) String() string {
	return strconv.FormatFloat(float64(v), 'g', -1, 64)
}

// SetValue is the 32-bit representation of a member of a set metric.
type SetValue uint32

// ParseSetValue uses numeric values directly and hashes anything else with CRC32.
func ParseSetValue(s string) SetValue {
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		return SetValue(n)
	}
	return SetValue(crc32.ChecksumIEEE([]byte(s)))
}

// GaugeValue summarizes all values submitted for a gauge.
type GaugeValue struct {
	Last  MetricValue
	Min   MetricValue
	Max   MetricValue
	Sum   MetricValue
	Count uint64
}

// NewGaugeValue creates a gauge from a single value.
func NewGaugeValue(v MetricValue) GaugeValue {
	return GaugeValue{Last: v, Min: v, Max: v, Sum: v, Count: 1}
}

// Insert adds one value.
func (g *GaugeValue) Insert(v MetricValue) {
	g.Merge(NewGaugeValue(v))
}

// Merge combines another summary into this one. The other summary's last value wins.
func (g *GaugeValue) Merge(other GaugeValue) {
	if other.Count == 0 {
		return
	}
	if g.Count == 0 {
		*g = other
		return
	}
	g.Last = other.Last
	if other.Min < g.Min {
		g.Min = other.Min
	}
	if other.Max > g.Max {
		g.Max = other.Max
	}
	g.Sum += other.Sum
	g.Count += other.Count
}

// Avg returns the mean of all inserted values.
func (g GaugeValue) Avg() MetricValue {
	if g.Count == 0 {
		return 0
	}
	return g.Sum / MetricValue(g.Count)
}

// BucketValue is the aggregated value of a bucket. Its shape depends on the metric type.
type BucketValue struct {
	ty           MetricType
	counter      MetricValue
	distribution []MetricValue
	set          map[SetValue]struct{}
	gauge        GaugeValue
}

// NewCounterValue creates a counter.
func NewCounterValue(v MetricValue) BucketValue {
	return BucketValue{ty: MetricTypeCounter, counter: v}
}

// NewDistributionValue creates a distribution containing the given values.
func NewDistributionValue(values ...MetricValue) BucketValue {
	d := append([]MetricValue(nil), values...)
	sortValues(d)
	return BucketValue{ty: MetricTypeDistribution, distribution: d}
}

// NewSetValue creates a set containing the given members.
func NewSetValue(values ...SetValue) BucketValue {
	s := make(map[SetValue]struct{}, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return BucketValue{ty: MetricTypeSet, set: s}
}

// NewGaugeBucketValue creates a gauge value.
func NewGaugeBucketValue(g GaugeValue) BucketValue {
	return BucketValue{ty: MetricTypeGauge, gauge: g}
}

// Type returns the metric type of the value.
func (v BucketValue) Type() MetricType { return v.ty }

// Counter returns the counter sum, or zero for other types.
func (v BucketValue) Counter() MetricValue { return v.counter }

// Distribution returns the values of a distribution in ascending order.
func (v BucketValue) Distribution() []MetricValue { return v.distribution }

// Set returns the members of a set in ascending order.
func (v BucketValue) Set() []SetValue {
	ret := make([]SetValue, 0, len(v.set))
	for k := range v.set {
		ret = append(ret, k)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })
	return ret
}

// Gauge returns the gauge summary.
func (v BucketValue) Gauge() GaugeValue { return v.gauge }

// Len returns the number of elements the value holds, which approximates its cost.
func (v BucketValue) Len() int {
	switch v.ty {
	case MetricTypeDistribution:
		return len(v.distribution)
	case MetricTypeSet:
		return len(v.set)
	case MetricTypeGauge:
		return 5
	default:
		return 1
	}
}

// Clone returns a copy that does not share state with v.
func (v BucketValue) Clone() BucketValue {
	ret := v
	if v.distribution != nil {
		ret.distribution = append([]MetricValue(nil), v.distribution...)
	}
	if v.set != nil {
		ret.set = make(map[SetValue]struct{}, len(v.set))
		for k := range v.set {
			ret.set[k] = struct{}{}
		}
	}
	return ret
}

// Merge adds other into v. Values of different types cannot be merged.
func (v *BucketValue) Merge(other BucketValue) error {
	if v.ty != other.ty {
		return errMismatchedTypes(v.ty, other.ty)
	}
	switch v.ty {
	case MetricTypeCounter:
		v.counter += other.counter
	case MetricTypeDistribution:
		v.distribution = append(v.distribution, other.distribution...)
		sortValues(v.distribution)
	case MetricTypeSet:
		if v.set == nil {
			v.set = make(map[SetValue]struct{}, len(other.set))
		}
		for k := range other.set {
			v.set[k] = struct{}{}
		}
	case MetricTypeGauge:
		v.gauge.Merge(other.gauge)
	}
	return nil
}

func sortValues(values []MetricValue) {
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
}
