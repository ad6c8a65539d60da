package buckets

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/benbjohnson/clock"
	"github.com/cespare/xxhash/v2"
	"go.uber.org/multierr"

	"github.com/eventrelay/relay/config"
	"github.com/eventrelay/relay/internal/basictypes"
	"github.com/eventrelay/relay/internal/metrics"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

const (
	defaultBucketInterval    = 10 * time.Second
	defaultInitialDelay      = 30 * time.Second
	defaultDebounceDelay     = 10 * time.Second
	defaultMaxSecsInPast     = 5 * 24 * time.Hour
	defaultMaxSecsInFuture   = time.Minute
	defaultMaxNameLength     = 200
	defaultMaxTagKeyLength   = 200
	defaultMaxTagValueLength = 200
	defaultFlushInterval     = 100 * time.Millisecond

	// NoPartition is the partition number of flushed batches when partitioning is disabled.
	NoPartition = -1
)

// AggregatorConfig controls bucketing, validation and flushing of the Aggregator.
type AggregatorConfig struct {
	// BucketInterval is the width of each bucket's time window. Timestamps are rounded down to it.
	BucketInterval time.Duration
	// InitialDelay is how long to wait after the end of a bucket's window before flushing it.
	InitialDelay time.Duration
	// DebounceDelay spreads flushes of different projects over this range.
	DebounceDelay time.Duration
	// MaxSecsInPast rejects buckets older than this.
	MaxSecsInPast time.Duration
	// MaxSecsInFuture rejects buckets further in the future than this.
	MaxSecsInFuture time.Duration
	// MaxNameLength rejects metrics with longer MRIs.
	MaxNameLength int
	// MaxTagKeyLength drops tags with longer keys.
	MaxTagKeyLength int
	// MaxTagValueLength truncates longer tag values.
	MaxTagValueLength int
	// FlushPartitions splits every flush into this many batches. Zero disables partitioning.
	FlushPartitions int
	// FlushInterval is how often the flush loop checks for due buckets.
	FlushInterval time.Duration
}

// DefaultAggregatorConfig returns the configuration used when nothing is overridden.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		BucketInterval:    defaultBucketInterval,
		InitialDelay:      defaultInitialDelay,
		DebounceDelay:     defaultDebounceDelay,
		MaxSecsInPast:     defaultMaxSecsInPast,
		MaxSecsInFuture:   defaultMaxSecsInFuture,
		MaxNameLength:     defaultMaxNameLength,
		MaxTagKeyLength:   defaultMaxTagKeyLength,
		MaxTagValueLength: defaultMaxTagValueLength,
		FlushInterval:     defaultFlushInterval,
	}
}

// AggregatorConfigFromRelayConfig converts the [Aggregator] configuration section. Unset values
// keep their defaults.
func AggregatorConfigFromRelayConfig(c config.AggregatorConfig) AggregatorConfig {
	d := DefaultAggregatorConfig()
	return AggregatorConfig{
		BucketInterval:    c.BucketInterval.GetOrElse(d.BucketInterval),
		InitialDelay:      c.InitialDelay.GetOrElse(d.InitialDelay),
		DebounceDelay:     c.DebounceDelay.GetOrElse(d.DebounceDelay),
		MaxSecsInPast:     c.MaxSecsInPast.GetOrElse(d.MaxSecsInPast),
		MaxSecsInFuture:   c.MaxSecsInFuture.GetOrElse(d.MaxSecsInFuture),
		MaxNameLength:     c.MaxNameLength.GetOrElse(d.MaxNameLength),
		MaxTagKeyLength:   c.MaxTagKeyLength.GetOrElse(d.MaxTagKeyLength),
		MaxTagValueLength: c.MaxTagValueLength.GetOrElse(d.MaxTagValueLength),
		FlushPartitions:   c.FlushPartitions.GetOrElse(0),
		FlushInterval:     c.FlushInterval.GetOrElse(d.FlushInterval),
	}
}

func (c AggregatorConfig) withDefaults() AggregatorConfig {
	d := DefaultAggregatorConfig()
	if c.BucketInterval < time.Second {
		c.BucketInterval = d.BucketInterval
	}
	if c.MaxSecsInPast <= 0 {
		c.MaxSecsInPast = d.MaxSecsInPast
	}
	if c.MaxSecsInFuture <= 0 {
		c.MaxSecsInFuture = d.MaxSecsInFuture
	}
	if c.MaxNameLength <= 0 {
		c.MaxNameLength = d.MaxNameLength
	}
	if c.MaxTagKeyLength <= 0 {
		c.MaxTagKeyLength = d.MaxTagKeyLength
	}
	if c.MaxTagValueLength <= 0 {
		c.MaxTagValueLength = d.MaxTagValueLength
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = d.FlushInterval
	}
	if c.FlushPartitions < 0 {
		c.FlushPartitions = 0
	}
	return c
}

// FlushBatch is one partition of flushed buckets, grouped by project.
type FlushBatch struct {
	// Partition is the partition number, or NoPartition.
	Partition int
	Buckets   map[basictypes.ProjectKey][]Bucket
}

// FlushReceiver is notified of buckets that are due.
type FlushReceiver interface {
	FlushBuckets(FlushBatch)
}

// FlushReceiverFunc adapts a function to FlushReceiver.
type FlushReceiverFunc func(FlushBatch)

func (f FlushReceiverFunc) FlushBuckets(batch FlushBatch) { f(batch) } //nolint:golint

type bucketKey struct {
	projectKey basictypes.ProjectKey
	timestamp  basictypes.UnixTimestamp
	name       string
	tags       string
}

type queuedBucket struct {
	value   BucketValue
	tags    map[string]string
	flushAt time.Time
}

// Aggregator merges metric buckets that share a project, time window, metric and tags, and
// hands them to a FlushReceiver once their window has passed.
type Aggregator struct {
	config   AggregatorConfig
	receiver FlushReceiver
	clock    clock.Clock
	loggers  ldlog.Loggers
	buckets  map[bucketKey]*queuedBucket
	lock     sync.Mutex
}

// NewAggregator creates an Aggregator. If clk is nil, the system clock is used.
func NewAggregator(config AggregatorConfig, receiver FlushReceiver, clk clock.Clock, loggers ldlog.Loggers) *Aggregator {
	if clk == nil {
		clk = clock.New()
	}
	loggers.SetPrefix("[Aggregator]")
	return &Aggregator{
		config:   config.withDefaults(),
		receiver: receiver,
		clock:    clk,
		loggers:  loggers,
		buckets:  make(map[bucketKey]*queuedBucket),
	}
}

// BucketCount returns the number of buckets waiting to be flushed.
func (a *Aggregator) BucketCount() int {
	a.lock.Lock()
	defer a.lock.Unlock()
	return len(a.buckets)
}

// MergeAll merges several buckets of one project. Invalid buckets are skipped and reported in
// the returned error.
func (a *Aggregator) MergeAll(projectKey basictypes.ProjectKey, buckets []Bucket) error {
	var errs error
	for _, b := range buckets {
		if err := a.Merge(projectKey, b); err != nil {
			metrics.BucketsDropped.Incr(context.Background(), dropReason(err))
			errs = multierr.Append(errs, err)
			continue
		}
		metrics.BucketsMerged.Incr(context.Background())
	}
	return errs
}

// Merge validates a bucket and merges it into the bucket with the same key.
func (a *Aggregator) Merge(projectKey basictypes.ProjectKey, bucket Bucket) error {
	mri, err := bucket.MRI()
	if err != nil {
		return AggregateMetricsError{Kind: InvalidCharacters, Detail: bucket.Name}
	}
	if mri.Namespace == NamespaceUnsupported {
		return AggregateMetricsError{Kind: UnsupportedNamespace, Detail: bucket.Name}
	}
	if mri.Type != bucket.Value.Type() {
		return errMismatchedTypes(mri.Type, bucket.Value.Type())
	}
	name := mri.String()
	if len(name) > a.config.MaxNameLength {
		return errNameTooLong(name)
	}

	timestamp := a.roundTimestamp(bucket.Timestamp)
	now := a.clock.Now()
	if timestamp.AsTime().Before(now.Add(-a.config.MaxSecsInPast)) {
		return errBucketTooOld(timestamp)
	}
	if timestamp.AsTime().After(now.Add(a.config.MaxSecsInFuture)) {
		return errBucketTooNew(timestamp)
	}

	tags := a.validateTags(bucket.Tags)
	key := bucketKey{projectKey: projectKey, timestamp: timestamp, name: name, tags: canonicalTags(tags)}

	a.lock.Lock()
	defer a.lock.Unlock()
	if existing, ok := a.buckets[key]; ok {
		return existing.value.Merge(bucket.Value)
	}
	a.buckets[key] = &queuedBucket{
		value:   bucket.Value.Clone(),
		tags:    tags,
		flushAt: a.flushTime(projectKey, timestamp),
	}
	return nil
}

// TryFlush hands all due buckets to the receiver. If force is true, every bucket is flushed
// regardless of its flush time.
func (a *Aggregator) TryFlush(force bool) {
	batches := a.popFlushable(force)
	partitions := make([]int, 0, len(batches))
	for p := range batches {
		partitions = append(partitions, p)
	}
	sort.Ints(partitions)
	for _, p := range partitions {
		n := 0
		for _, projectBuckets := range batches[p] {
			n += len(projectBuckets)
		}
		metrics.BucketsFlushed.Add(context.Background(), int64(n))
		a.receiver.FlushBuckets(FlushBatch{Partition: p, Buckets: batches[p]})
	}
}

// Run flushes due buckets periodically until the context is cancelled, then flushes everything
// that remains.
func (a *Aggregator) Run(ctx context.Context) {
	ticker := a.clock.Ticker(a.config.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.TryFlush(false)
		case <-ctx.Done():
			if n := a.BucketCount(); n > 0 {
				a.loggers.Infof("Flushing %d metric buckets before shutdown", n)
			}
			a.TryFlush(true)
			return
		}
	}
}

func (a *Aggregator) popFlushable(force bool) map[int]map[basictypes.ProjectKey][]Bucket {
	now := a.clock.Now()
	width := uint64(a.config.BucketInterval / time.Second)

	type flushEntry struct {
		key       bucketKey
		partition int
		bucket    Bucket
	}
	var entries []flushEntry

	a.lock.Lock()
	for key, qb := range a.buckets {
		if !force && qb.flushAt.After(now) {
			continue
		}
		delete(a.buckets, key)
		entries = append(entries, flushEntry{
			key:       key,
			partition: a.partitionFor(key),
			bucket: Bucket{
				Timestamp: key.timestamp,
				Width:     width,
				Name:      key.name,
				Value:     qb.value,
				Tags:      qb.tags,
			},
		})
	}
	a.lock.Unlock()

	// Partitioning is stable, so this order carries through to every project's batch.
	sort.Slice(entries, func(i, j int) bool {
		ki, kj := entries[i].key, entries[j].key
		if ki.timestamp != kj.timestamp {
			return ki.timestamp < kj.timestamp
		}
		if ki.name != kj.name {
			return ki.name < kj.name
		}
		return ki.tags < kj.tags
	})

	ret := make(map[int]map[basictypes.ProjectKey][]Bucket)
	for _, p := range PartitionBy(entries, func(e flushEntry) int { return e.partition }) {
		inPartition := entries[p.Start:p.End]
		byProject := make(map[basictypes.ProjectKey][]Bucket)
		for _, pp := range PartitionBy(inPartition, func(e flushEntry) basictypes.ProjectKey { return e.key.projectKey }) {
			buckets := make([]Bucket, 0, pp.Len())
			for _, e := range inPartition[pp.Start:pp.End] {
				buckets = append(buckets, e.bucket)
			}
			byProject[pp.Key] = buckets
		}
		ret[p.Key] = byProject
	}
	return ret
}

func (a *Aggregator) partitionFor(key bucketKey) int {
	if a.config.FlushPartitions == 0 {
		return NoPartition
	}
	h := xxhash.New()
	_, _ = h.WriteString(string(key.projectKey))
	_, _ = h.WriteString(key.name)
	return int(h.Sum64() % uint64(a.config.FlushPartitions))
}

func (a *Aggregator) roundTimestamp(ts basictypes.UnixTimestamp) basictypes.UnixTimestamp {
	secs := basictypes.UnixTimestamp(a.config.BucketInterval / time.Second)
	return ts - ts%secs
}

// flushTime is the end of the bucket's window plus the initial delay, shifted by a stable
// per-project offset so that projects do not all flush at the same instant.
func (a *Aggregator) flushTime(projectKey basictypes.ProjectKey, ts basictypes.UnixTimestamp) time.Time {
	t := ts.AsTime().Add(a.config.BucketInterval + a.config.InitialDelay)
	if a.config.DebounceDelay > 0 {
		t = t.Add(time.Duration(xxhash.Sum64String(string(projectKey)) % uint64(a.config.DebounceDelay)))
	}
	return t
}

func (a *Aggregator) validateTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	ret := make(map[string]string, len(tags))
	for k, v := range tags {
		if len(k) > a.config.MaxTagKeyLength || !isValidTagKey(k) {
			a.loggers.Debugf("Dropping invalid tag key %q", k)
			continue
		}
		ret[k] = truncateString(v, a.config.MaxTagValueLength)
	}
	return ret
}

func isValidTagKey(k string) bool {
	if k == "" {
		return false
	}
	for i := 0; i < len(k); i++ {
		ch := k[i]
		if !isASCIILetter(ch) && !(ch >= '0' && ch <= '9') && ch != '_' && ch != '-' && ch != '.' && ch != '/' {
			return false
		}
	}
	return true
}

// truncateString cuts s to at most maxLen bytes without splitting a UTF-8 sequence.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func canonicalTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	// Each key and value is length-prefixed, so no content can be mistaken for a separator.
	var b strings.Builder
	for _, k := range keys {
		writeLengthPrefixed(&b, k)
		writeLengthPrefixed(&b, tags[k])
	}
	return b.String()
}

func writeLengthPrefixed(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}
