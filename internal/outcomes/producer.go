package outcomes

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/eventrelay/relay/config"
	"github.com/eventrelay/relay/internal/metrics"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

const (
	// DefaultBatchSize is the maximum number of outcomes in one batch.
	DefaultBatchSize = 1000
	// DefaultBatchInterval is how long outcomes are collected before a batch is sent.
	DefaultBatchInterval = 500 * time.Millisecond
	// DefaultCapacity is the number of outcomes that may wait to be sent.
	DefaultCapacity = 10000

	overflowWarningInterval = time.Minute
	sendTimeout             = 30 * time.Second
)

// ProducerConfig controls batching of outcomes.
type ProducerConfig struct {
	BatchSize     int
	BatchInterval time.Duration
	Capacity      int
	Source        string
}

// ProducerConfigFromRelayConfig converts the [Outcomes] configuration section.
func ProducerConfigFromRelayConfig(c config.OutcomesConfig) ProducerConfig {
	return ProducerConfig{
		BatchSize:     c.BatchSize.GetOrElse(DefaultBatchSize),
		BatchInterval: c.BatchInterval.GetOrElse(DefaultBatchInterval),
		Capacity:      c.Capacity.GetOrElse(DefaultCapacity),
		Source:        c.Source,
	}
}

// Producer batches outcomes and sends them to a Sink. A Producer without a sink only counts
// outcomes in the internal metrics.
type Producer struct {
	config  ProducerConfig
	sink    Sink
	queue   chan TrackRawOutcome
	clock   clock.Clock
	loggers ldlog.Loggers

	mu           sync.Mutex
	lastOverflow time.Time
	dropped      int
}

// NewProducer creates a Producer. Call Run to start sending.
func NewProducer(cfg ProducerConfig, sink Sink, clk clock.Clock, loggers ldlog.Loggers) *Producer {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchInterval <= 0 {
		cfg.BatchInterval = DefaultBatchInterval
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	loggers.SetPrefix("[Outcomes]")
	return &Producer{
		config:  cfg,
		sink:    sink,
		queue:   make(chan TrackRawOutcome, cfg.Capacity),
		clock:   clk,
		loggers: loggers,
	}
}

// Emit implements Emitter. When the queue is full the outcome is dropped, with one warning per
// overflow period.
func (p *Producer) Emit(o Outcome) {
	metrics.OutcomesEmitted.Incr(context.Background(), o.Kind.String(), o.Category.String(), o.Reason)
	if p.sink == nil {
		return
	}
	select {
	case p.queue <- o.ToRaw(p.config.Source):
	default:
		p.overflow()
	}
}

func (p *Producer) overflow() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropped++
	now := p.clock.Now()
	if p.lastOverflow.IsZero() || now.Sub(p.lastOverflow) >= overflowWarningInterval {
		p.loggers.Warnf("Outcome queue is full; dropped %d outcomes", p.dropped)
		p.lastOverflow = now
		p.dropped = 0
	}
}

// Run sends batches until ctx is done, then sends whatever is still queued.
func (p *Producer) Run(ctx context.Context) error {
	if p.sink == nil {
		<-ctx.Done()
		return nil
	}
	ticker := p.clock.Ticker(p.config.BatchInterval)
	defer ticker.Stop()

	batch := make([]TrackRawOutcome, 0, p.config.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		sendCtx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := p.sink.Send(sendCtx, batch); err != nil {
			p.loggers.Errorf("Failed to send %d outcomes: %s", len(batch), err)
		}
		batch = make([]TrackRawOutcome, 0, p.config.BatchSize)
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case o := <-p.queue:
					batch = append(batch, o)
					if len(batch) >= p.config.BatchSize {
						flush()
					}
				default:
					flush()
					return nil
				}
			}
		case o := <-p.queue:
			batch = append(batch, o)
			if len(batch) >= p.config.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
