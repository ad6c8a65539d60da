package metrics

import (
	"context"
	"strings"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
	"go.opencensus.io/trace"
)

// Counter is a monotonically increasing count.
type Counter struct {
	measure *stats.Int64Measure
	keys    []tag.Key
}

// Timer records durations in milliseconds.
type Timer struct {
	measure *stats.Float64Measure
	keys    []tag.Key
}

// Gauge records the latest value of something.
type Gauge struct {
	measure *stats.Int64Measure
	keys    []tag.Key
}

//nolint:gochecknoglobals
var (
	Requests        = newCounter("requests", "HTTP requests handled", routeTagKey, methodTagKey, statusTagKey)
	RequestDuration = newTimer("requests.duration", "time to handle an HTTP request", routeTagKey, methodTagKey)

	EnvelopesAccepted = newCounter("envelopes.accepted", "envelopes accepted for processing")
	EnvelopesRejected = newCounter("envelopes.rejected", "envelopes rejected at the endpoint", reasonTagKey)
	ItemsProcessed    = newCounter("items.processed", "envelope items processed", itemTypeTagKey)

	BucketsMerged  = newCounter("metrics.buckets.merged", "metric buckets merged into the aggregator")
	BucketsFlushed = newCounter("metrics.buckets.flushed", "metric buckets flushed by the aggregator")
	BucketsDropped = newCounter("metrics.buckets.dropped", "metric buckets rejected by the aggregator", reasonTagKey)

	UpstreamRequests        = newCounter("upstream.requests", "requests sent to upstream", routeTagKey, statusTagKey)
	UpstreamRequestDuration = newTimer("upstream.requests.duration", "time to complete an upstream request", routeTagKey)

	ProjectCacheHits   = newCounter("project_cache.hits", "project state lookups answered from the cache")
	ProjectCacheMisses = newCounter("project_cache.misses", "project state lookups that needed a fetch")
	ProjectCacheSize   = newGauge("project_cache.size", "number of cached project states")
	ProjectFetches     = newCounter("project_cache.fetches", "project state fetches", sourceTagKey, statusTagKey)

	OutcomesEmitted = newCounter("outcomes", "outcomes emitted", outcomeTagKey, categoryTagKey, reasonTagKey)

	MemoryHeapAlloc = newGauge("memory.heap.alloc", "bytes of allocated heap objects")
	MemoryHeapInUse = newGauge("memory.heap.inuse", "bytes in in-use heap spans")
	MemorySys       = newGauge("memory.sys", "bytes obtained from the operating system")
	MemoryAllocs    = newGauge("memory.allocs", "cumulative count of heap objects allocated")
	MemoryFrees     = newGauge("memory.frees", "cumulative count of heap objects freed")
	Goroutines      = newGauge("goroutines", "number of running goroutines")
)

func newCounter(name, description string, keys ...tag.Key) Counter {
	return Counter{measure: stats.Int64(name, description, stats.UnitDimensionless), keys: keys}
}

func newTimer(name, description string, keys ...tag.Key) Timer {
	return Timer{measure: stats.Float64(name, description, stats.UnitMilliseconds), keys: keys}
}

func newGauge(name, description string, keys ...tag.Key) Gauge {
	return Gauge{measure: stats.Int64(name, description, stats.UnitDimensionless), keys: keys}
}

// Add increments the counter. Tag values are matched by position to the keys the counter was
// declared with.
func (c Counter) Add(ctx context.Context, n int64, tags ...string) {
	record(ctx, c.keys, tags, c.measure.M(n))
}

// Incr increments the counter by one.
func (c Counter) Incr(ctx context.Context, tags ...string) {
	c.Add(ctx, 1, tags...)
}

// Record records a duration.
func (t Timer) Record(ctx context.Context, d time.Duration, tags ...string) {
	record(ctx, t.keys, tags, t.measure.M(float64(d)/float64(time.Millisecond)))
}

// Time runs f and records how long it took.
func (t Timer) Time(ctx context.Context, f func(), tags ...string) {
	start := time.Now()
	f()
	t.Record(ctx, time.Since(start), tags...)
}

// Set records the current value.
func (g Gauge) Set(ctx context.Context, v int64, tags ...string) {
	record(ctx, g.keys, tags, g.measure.M(v))
}

func record(ctx context.Context, keys []tag.Key, values []string, m stats.Measurement) {
	if len(keys) == 0 {
		stats.Record(ctx, m)
		return
	}
	mutators := make([]tag.Mutator, 0, len(keys))
	for i, k := range keys {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		mutators = append(mutators, tag.Upsert(k, sanitizeTagValue(v)))
	}
	_ = stats.RecordWithTags(ctx, mutators, m)
}

// WithRouteCount records a route hit and its duration, and starts a trace span for it.
func WithRouteCount(ctx context.Context, route, method string, f func() int) {
	ctx, span := trace.StartSpan(ctx, route)
	defer span.End()

	start := time.Now()
	status := f()
	RequestDuration.Record(ctx, time.Since(start), route, method)
	Requests.Incr(ctx, route, method, statusClass(status))
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	}
	return "unknown"
}

// Pad empty keys to match tag keyset cardinality since empty strings are dropped
func sanitizeTagValue(v string) string {
	if strings.TrimSpace(v) == "" {
		return "_"
	}
	return strings.Replace(v, "/", "_", -1)
}
