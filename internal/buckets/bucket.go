package buckets

import (
	"bufio"
	"bytes"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"github.com/eventrelay/relay/internal/basictypes"

	"github.com/launchdarkly/go-jsonstream/v3/jreader"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// Bucket is an aggregation of metric values for one metric, one set of tags and one time window.
type Bucket struct {
	// Timestamp is the start of the time window.
	Timestamp basictypes.UnixTimestamp
	// Width is the length of the time window in seconds. It is zero for buckets that have not
	// been aggregated yet.
	Width uint64
	// Name is the full metric resource identifier.
	Name string
	// Value holds the merged values.
	Value BucketValue
	// Tags are the bucket's dimensions. It may be nil.
	Tags map[string]string
}

// MRI parses the bucket's name.
func (b Bucket) MRI() (MRI, error) {
	return ParseMRI(b.Name)
}

// ParseBuckets parses statsd-like text, one bucket per line. Empty lines are skipped. Buckets
// without an explicit "T" timestamp receive the given timestamp.
//
// Lines that cannot be parsed are reported in the returned error, which may combine several
// ParseBucketError values; the valid buckets are returned regardless.
func ParseBuckets(data []byte, timestamp basictypes.UnixTimestamp) ([]Bucket, error) {
	var ret []Bucket
	var errs error
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 4096), len(data)+1)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		b, err := ParseBucket(line, timestamp)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		ret = append(ret, b)
	}
	return ret, errs
}

// ParseBucket parses a single line of the format
// "name[@unit]:value[:value...]|type[|#tag:value,tag2][|T<timestamp>]".
func ParseBucket(line string, timestamp basictypes.UnixTimestamp) (Bucket, error) {
	sections := strings.Split(line, "|")
	if len(sections) < 2 {
		return Bucket{}, ParseBucketError{Line: line, Reason: "missing metric type"}
	}
	colon := strings.IndexByte(sections[0], ':')
	if colon < 0 {
		return Bucket{}, ParseBucketError{Line: line, Reason: "missing metric value"}
	}
	ty, err := ParseMetricType(sections[1])
	if err != nil {
		return Bucket{}, ParseBucketError{Line: line, Reason: err.Error()}
	}
	mri, err := ParseMRIWithType(sections[0][:colon], ty)
	if err != nil {
		return Bucket{}, ParseBucketError{Line: line, Reason: err.Error()}
	}
	value, err := parseBucketValue(ty, strings.Split(sections[0][colon+1:], ":"))
	if err != nil {
		return Bucket{}, ParseBucketError{Line: line, Reason: err.Error()}
	}

	b := Bucket{Timestamp: timestamp, Name: mri.String(), Value: value}
	for _, section := range sections[2:] {
		switch {
		case strings.HasPrefix(section, "#"):
			b.Tags = parseTags(section[1:])
		case strings.HasPrefix(section, "T"):
			ts, err := strconv.ParseUint(section[1:], 10, 64)
			if err != nil {
				return Bucket{}, ParseBucketError{Line: line, Reason: "invalid timestamp"}
			}
			b.Timestamp = basictypes.UnixTimestamp(ts)
		default:
			// sample rates and unknown sections are ignored
		}
	}
	return b, nil
}

func parseBucketValue(ty MetricType, components []string) (BucketValue, error) {
	switch ty {
	case MetricTypeCounter:
		var sum MetricValue
		for _, c := range components {
			v, err := ParseMetricValue(c)
			if err != nil {
				return BucketValue{}, err
			}
			sum += v
		}
		return NewCounterValue(sum), nil
	case MetricTypeDistribution:
		values := make([]MetricValue, 0, len(components))
		for _, c := range components {
			v, err := ParseMetricValue(c)
			if err != nil {
				return BucketValue{}, err
			}
			values = append(values, v)
		}
		return NewDistributionValue(values...), nil
	case MetricTypeSet:
		values := make([]SetValue, 0, len(components))
		for _, c := range components {
			values = append(values, ParseSetValue(c))
		}
		return NewSetValue(values...), nil
	default:
		g, err := parseGauge(components)
		if err != nil {
			return BucketValue{}, err
		}
		return NewGaugeBucketValue(g), nil
	}
}

// parseGauge accepts either a single value or the full "last:min:max:sum:count" form.
func parseGauge(components []string) (GaugeValue, error) {
	if len(components) != 1 && len(components) != 5 {
		return GaugeValue{}, errInvalidMetricValue(strings.Join(components, ":"))
	}
	values := make([]MetricValue, 4)
	for i := 0; i < len(components) && i < 4; i++ {
		v, err := ParseMetricValue(components[i])
		if err != nil {
			return GaugeValue{}, err
		}
		values[i] = v
	}
	if len(components) == 1 {
		return NewGaugeValue(values[0]), nil
	}
	count, err := strconv.ParseUint(components[4], 10, 64)
	if err != nil {
		return GaugeValue{}, errInvalidMetricValue(components[4])
	}
	return GaugeValue{Last: values[0], Min: values[1], Max: values[2], Sum: values[3], Count: count}, nil
}

func parseTags(s string) map[string]string {
	tags := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		if pair == "" {
			continue
		}
		if colon := strings.IndexByte(pair, ':'); colon >= 0 {
			tags[pair[:colon]] = pair[colon+1:]
		} else {
			tags[pair] = ""
		}
	}
	return tags
}

// MarshalJSON implements json.Marshaler.
func (b Bucket) MarshalJSON() ([]byte, error) {
	w := jwriter.NewWriter()
	b.WriteToJSONWriter(&w)
	return w.Bytes(), w.Error()
}

// WriteToJSONWriter writes the bucket as a JSON object.
func (b Bucket) WriteToJSONWriter(w *jwriter.Writer) {
	obj := w.Object()
	obj.Name("timestamp").Float64(float64(b.Timestamp))
	obj.Name("width").Float64(float64(b.Width))
	obj.Name("name").String(b.Name)
	obj.Name("type").String(string(b.Value.Type()))
	valueWriter := obj.Name("value")
	switch b.Value.Type() {
	case MetricTypeCounter:
		valueWriter.Float64(float64(b.Value.Counter()))
	case MetricTypeDistribution:
		arr := valueWriter.Array()
		for _, v := range b.Value.Distribution() {
			arr.Float64(float64(v))
		}
		arr.End()
	case MetricTypeSet:
		arr := valueWriter.Array()
		for _, v := range b.Value.Set() {
			arr.Float64(float64(v))
		}
		arr.End()
	default:
		g := b.Value.Gauge()
		gaugeObj := valueWriter.Object()
		gaugeObj.Name("last").Float64(float64(g.Last))
		gaugeObj.Name("min").Float64(float64(g.Min))
		gaugeObj.Name("max").Float64(float64(g.Max))
		gaugeObj.Name("sum").Float64(float64(g.Sum))
		gaugeObj.Name("count").Float64(float64(g.Count))
		gaugeObj.End()
	}
	if len(b.Tags) != 0 {
		tagsObj := obj.Name("tags").Object()
		keys := make([]string, 0, len(b.Tags))
		for k := range b.Tags {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			tagsObj.Name(k).String(b.Tags[k])
		}
		tagsObj.End()
	}
	obj.End()
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bucket) UnmarshalJSON(data []byte) error {
	r := jreader.NewReader(data)
	b.ReadFromJSONReader(&r)
	if err := r.Error(); err != nil {
		return ParseBucketError{Reason: err.Error()}
	}
	return nil
}

// rawBucketValue holds a "value" property until the "type" property is known.
type rawBucketValue struct {
	scalar  float64
	list    []float64
	gauge   GaugeValue
	isGauge bool
}

// ReadFromJSONReader reads a bucket from a JSON object. Errors are recorded in the reader.
func (b *Bucket) ReadFromJSONReader(r *jreader.Reader) {
	var ret Bucket
	var typeName string
	var raw rawBucketValue
	for obj := r.Object(); obj.Next(); {
		switch string(obj.Name()) {
		case "timestamp":
			ret.Timestamp = basictypes.UnixTimestamp(r.Float64())
		case "width":
			ret.Width = uint64(r.Float64())
		case "name":
			ret.Name = r.String()
		case "type":
			typeName = r.String()
		case "value":
			raw = readRawBucketValue(r)
		case "tags":
			for tagsObj := r.Object(); tagsObj.Next(); {
				if ret.Tags == nil {
					ret.Tags = make(map[string]string)
				}
				ret.Tags[string(tagsObj.Name())] = r.String()
			}
		default:
			_ = r.SkipValue()
		}
	}
	if r.Error() != nil {
		return
	}
	ty, err := ParseMetricType(typeName)
	if err != nil {
		r.AddError(err)
		return
	}
	switch ty {
	case MetricTypeCounter:
		ret.Value = NewCounterValue(MetricValue(raw.scalar))
	case MetricTypeDistribution:
		values := make([]MetricValue, 0, len(raw.list))
		for _, v := range raw.list {
			values = append(values, MetricValue(v))
		}
		ret.Value = NewDistributionValue(values...)
	case MetricTypeSet:
		values := make([]SetValue, 0, len(raw.list))
		for _, v := range raw.list {
			values = append(values, SetValue(v))
		}
		ret.Value = NewSetValue(values...)
	case MetricTypeGauge:
		if !raw.isGauge {
			raw.gauge = NewGaugeValue(MetricValue(raw.scalar))
		}
		ret.Value = NewGaugeBucketValue(raw.gauge)
	}
	*b = ret
}

func readRawBucketValue(r *jreader.Reader) rawBucketValue {
	var raw rawBucketValue
	v := r.Any()
	switch v.Kind {
	case jreader.NumberValue:
		raw.scalar = v.Number
	case jreader.ArrayValue:
		for v.Array.Next() {
			raw.list = append(raw.list, r.Float64())
		}
	case jreader.ObjectValue:
		raw.isGauge = true
		for v.Object.Next() {
			n := r.Float64()
			switch string(v.Object.Name()) {
			case "last":
				raw.gauge.Last = MetricValue(n)
			case "min":
				raw.gauge.Min = MetricValue(n)
			case "max":
				raw.gauge.Max = MetricValue(n)
			case "sum":
				raw.gauge.Sum = MetricValue(n)
			case "count":
				raw.gauge.Count = uint64(n)
			}
		}
	}
	return raw
}

// MarshalBuckets serializes a list of buckets as a JSON array, the payload format of
// "metric_buckets" envelope items.
func MarshalBuckets(buckets []Bucket) []byte {
	w := jwriter.NewWriter()
	arr := w.Array()
	for _, b := range buckets {
		b.WriteToJSONWriter(&w)
	}
	arr.End()
	return w.Bytes()
}

// UnmarshalBuckets parses a JSON array of buckets.
func UnmarshalBuckets(data []byte) ([]Bucket, error) {
	var ret []Bucket
	r := jreader.NewReader(data)
	for arr := r.Array(); arr.Next(); {
		var b Bucket
		b.ReadFromJSONReader(&r)
		if r.Error() != nil {
			break
		}
		ret = append(ret, b)
	}
	if err := r.Error(); err != nil {
		return nil, ParseBucketError{Reason: err.Error()}
	}
	return ret, nil
}
