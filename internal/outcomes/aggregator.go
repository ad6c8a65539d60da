package outcomes

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/eventrelay/relay/config"
	"github.com/eventrelay/relay/internal/basictypes"
	"github.com/eventrelay/relay/internal/quotas"
)

const (
	// DefaultAggregatorBucketInterval is the width of the time buckets outcomes are summed in.
	DefaultAggregatorBucketInterval = time.Minute
	// DefaultAggregatorFlushInterval is how often completed buckets are flushed.
	DefaultAggregatorFlushInterval = 30 * time.Second
)

// AggregatorConfig controls outcome aggregation.
type AggregatorConfig struct {
	BucketInterval time.Duration
	FlushInterval  time.Duration
	// EmitClientOutcomes forwards client_discard outcomes; otherwise they are dropped.
	EmitClientOutcomes bool
}

// AggregatorConfigFromRelayConfig converts the [Outcomes] configuration section.
func AggregatorConfigFromRelayConfig(c config.OutcomesConfig) AggregatorConfig {
	return AggregatorConfig{
		BucketInterval:     c.AggregatorBucketInterval.GetOrElse(DefaultAggregatorBucketInterval),
		FlushInterval:      c.AggregatorFlushInterval.GetOrElse(DefaultAggregatorFlushInterval),
		EmitClientOutcomes: c.EmitClientOutcomes,
	}
}

type bucketKey struct {
	bucketStart int64
	kind        Kind
	reason      string
	scoping     quotas.Scoping
	category    basictypes.DataCategory
}

// Aggregator sums outcomes that differ only in their timestamp within one bucket interval, and
// periodically flushes the sums to the next Emitter. Outcomes carrying an event ID or a client
// address are summed too; both are dropped.
type Aggregator struct {
	config AggregatorConfig
	next   Emitter
	clock  clock.Clock

	mu      sync.Mutex
	buckets map[bucketKey]uint32
}

// NewAggregator creates an Aggregator. Call Run to start flushing.
func NewAggregator(cfg AggregatorConfig, next Emitter, clk clock.Clock) *Aggregator {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.BucketInterval <= 0 {
		cfg.BucketInterval = DefaultAggregatorBucketInterval
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultAggregatorFlushInterval
	}
	return &Aggregator{config: cfg, next: next, clock: clk, buckets: make(map[bucketKey]uint32)}
}

// Emit implements Emitter.
func (a *Aggregator) Emit(o Outcome) {
	if o.Kind == KindClientDiscard && !a.config.EmitClientOutcomes {
		return
	}
	if o.Quantity == 0 {
		return
	}
	if o.Timestamp.IsZero() {
		o.Timestamp = a.clock.Now()
	}
	width := int64(a.config.BucketInterval / time.Second)
	if width <= 0 {
		width = 1
	}
	start := o.Timestamp.Unix() / width * width
	key := bucketKey{bucketStart: start, kind: o.Kind, reason: o.Reason, scoping: o.Scoping, category: o.Category}

	a.mu.Lock()
	a.buckets[key] += o.Quantity
	a.mu.Unlock()
}

// Len returns the number of pending sums.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buckets)
}

// Flush emits the sums of all buckets that ended before now. With force it emits every bucket.
func (a *Aggregator) Flush(force bool) {
	cutoff := a.clock.Now().Add(-a.config.BucketInterval).Unix()
	var ready []Outcome

	a.mu.Lock()
	for key, quantity := range a.buckets {
		if !force && key.bucketStart > cutoff {
			continue
		}
		delete(a.buckets, key)
		ready = append(ready, Outcome{
			Kind:      key.kind,
			Reason:    key.reason,
			Scoping:   key.scoping,
			Category:  key.category,
			Quantity:  quantity,
			Timestamp: time.Unix(key.bucketStart, 0).UTC(),
		})
	}
	a.mu.Unlock()

	for _, o := range ready {
		a.next.Emit(o)
	}
}

// Run flushes completed buckets every flush interval and everything when ctx is done.
func (a *Aggregator) Run(ctx context.Context) error {
	ticker := a.clock.Ticker(a.config.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.Flush(true)
			return nil
		case <-ticker.C:
			a.Flush(false)
		}
	}
}
