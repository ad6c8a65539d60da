package processor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"github.com/eventrelay/relay/config"
	"github.com/eventrelay/relay/internal/basictypes"
	"github.com/eventrelay/relay/internal/buckets"
	"github.com/eventrelay/relay/internal/dynconfig"
	"github.com/eventrelay/relay/internal/extraction"
	"github.com/eventrelay/relay/internal/metrics"
	"github.com/eventrelay/relay/internal/outcomes"
	"github.com/eventrelay/relay/internal/profiling"
	"github.com/eventrelay/relay/internal/protocol"
	"github.com/eventrelay/relay/internal/quotas"
	"github.com/eventrelay/relay/internal/upstream"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// Default limits, in bytes.
const (
	DefaultMaxEnvelopeSize   = 100 * 1024 * 1024
	DefaultMaxEventSize      = 1024 * 1024
	DefaultMaxAttachmentSize = 100 * 1024 * 1024
	DefaultMaxProfileSize    = 50 * 1024 * 1024
	DefaultMaxStatsdSize     = 1024 * 1024

	// DefaultQueueSize is the number of envelopes that may wait for processing.
	DefaultQueueSize = 1000
	// DefaultWorkers is the number of envelopes processed concurrently.
	DefaultWorkers = 16

	forwardTimeout = 30 * time.Second
	reasonCORS     = "cors"
)

// Config contains the limits and mode of the processor.
type Config struct {
	MaxEnvelopeSize   int64
	MaxEventSize      int64
	MaxAttachmentSize int64
	MaxProfileSize    int64
	MaxStatsdSize     int64
	// Processing enables quota enforcement and the checks that only the last relay before the
	// store performs.
	Processing bool
	QueueSize  int
	Workers    int
}

// ConfigFromRelayConfig extracts the processor settings from the Relay configuration.
func ConfigFromRelayConfig(c config.Config) Config {
	workers := c.Limits.MaxConcurrentRequests.GetOrElse(DefaultWorkers)
	return Config{
		MaxEnvelopeSize:   c.Limits.MaxEnvelopeSize.GetOrElse(DefaultMaxEnvelopeSize).Bytes(),
		MaxEventSize:      c.Limits.MaxEventSize.GetOrElse(DefaultMaxEventSize).Bytes(),
		MaxAttachmentSize: c.Limits.MaxAttachmentSize.GetOrElse(DefaultMaxAttachmentSize).Bytes(),
		MaxProfileSize:    c.Limits.MaxProfileSize.GetOrElse(DefaultMaxProfileSize).Bytes(),
		MaxStatsdSize:     c.Limits.MaxStatsdSize.GetOrElse(DefaultMaxStatsdSize).Bytes(),
		Processing:        c.Processing.Enabled,
		Workers:           workers,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxEnvelopeSize <= 0 {
		c.MaxEnvelopeSize = DefaultMaxEnvelopeSize
	}
	if c.MaxEventSize <= 0 {
		c.MaxEventSize = DefaultMaxEventSize
	}
	if c.MaxAttachmentSize <= 0 {
		c.MaxAttachmentSize = DefaultMaxAttachmentSize
	}
	if c.MaxProfileSize <= 0 {
		c.MaxProfileSize = DefaultMaxProfileSize
	}
	if c.MaxStatsdSize <= 0 {
		c.MaxStatsdSize = DefaultMaxStatsdSize
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	return c
}

// ProjectProvider resolves project states. It is implemented by projectcache.Cache.
type ProjectProvider interface {
	GetProjectState(ctx context.Context, key basictypes.ProjectKey) (*dynconfig.ProjectState, error)
	GetCachedState(key basictypes.ProjectKey) (*dynconfig.ProjectState, bool)
}

// MetricsAggregator accepts metric buckets. It is implemented by buckets.Aggregator.
type MetricsAggregator interface {
	MergeAll(projectKey basictypes.ProjectKey, buckets []buckets.Bucket) error
}

// RequestMeta describes the request an envelope arrived with.
type RequestMeta struct {
	Auth protocol.AuthHeader
	// ProjectID is the project ID from the URL, or zero.
	ProjectID  basictypes.ProjectID
	RemoteAddr string
	Origin     string
	ReceivedAt time.Time
}

// ManagedEnvelope is an envelope together with what is known about its origin.
type ManagedEnvelope struct {
	Envelope *protocol.Envelope
	Meta     RequestMeta
	Scoping  quotas.Scoping
	State    *dynconfig.ProjectState
	// RateLimits are the limits that removed items from the envelope during Check. They are
	// reported to the client.
	RateLimits quotas.RateLimits
}

// Dependencies are the components the processor hands data to. Only Projects is required.
type Dependencies struct {
	Projects    ProjectProvider
	Forwarder   Forwarder
	Aggregator  MetricsAggregator
	RateLimiter quotas.RateLimiter
	Outcomes    outcomes.Emitter
}

// Processor checks envelopes synchronously while the client waits and processes the accepted
// ones in the background.
type Processor struct {
	config  Config
	deps    Dependencies
	queue   chan *ManagedEnvelope
	clock   clock.Clock
	loggers ldlog.Loggers

	limitsLock sync.Mutex
	limits     map[basictypes.ProjectKey]*quotas.RateLimits
}

// NewProcessor creates a Processor. Call Run to start the background workers.
func NewProcessor(cfg Config, deps Dependencies, clk clock.Clock, loggers ldlog.Loggers) *Processor {
	if clk == nil {
		clk = clock.New()
	}
	if deps.Outcomes == nil {
		deps.Outcomes = outcomes.NullEmitter{}
	}
	cfg = cfg.withDefaults()
	loggers.SetPrefix("[Processor]")
	return &Processor{
		config:  cfg,
		deps:    deps,
		queue:   make(chan *ManagedEnvelope, cfg.QueueSize),
		clock:   clk,
		loggers: loggers,
		limits:  make(map[basictypes.ProjectKey]*quotas.RateLimits),
	}
}

// Check validates an envelope against size limits, the project state and cached rate limits.
// Items that are rate limited are removed. If nothing is left to process, or the envelope is
// rejected as a whole, the returned error is a Rejection.
func (p *Processor) Check(ctx context.Context, env *protocol.Envelope, meta RequestMeta) (*ManagedEnvelope, error) {
	if meta.ReceivedAt.IsZero() {
		meta.ReceivedAt = p.clock.Now()
	}
	key := meta.Auth.PublicKey
	m := &ManagedEnvelope{
		Envelope: env,
		Meta:     meta,
		Scoping:  quotas.Scoping{ProjectKey: key, ProjectID: meta.ProjectID},
	}

	if err := p.checkSizeLimits(env); err != nil {
		p.rejectAll(m, outcomes.KindInvalid, outcomes.ReasonTooLarge)
		return nil, err
	}

	state, err := p.deps.Projects.GetProjectState(ctx, key)
	if err != nil {
		p.rejectAll(m, outcomes.KindInvalid, outcomes.ReasonProjectStateFailed)
		return nil, errProjectState(err)
	}
	m.State = state
	if err := state.CheckRequest(key, meta.ProjectID); err != nil {
		rejection := errProjectRejected(err, state.Invalid)
		p.rejectAll(m, outcomes.KindInvalid, rejection.Reason)
		return nil, rejection
	}
	m.Scoping = state.Scoping(key)
	if m.Scoping.ProjectID == 0 {
		m.Scoping.ProjectID = meta.ProjectID
	}
	if !state.Config.IsOriginAllowed(meta.Origin) {
		p.rejectAll(m, outcomes.KindFiltered, reasonCORS)
		return nil, errOriginNotAllowed(meta.Origin)
	}

	now := p.clock.Now()
	cached := p.cachedLimits(key, now)
	p.applyLimits(m, func(item quotas.ItemScoping, _ int) quotas.RateLimits {
		return cached.CheckWithQuotas(state.Config.Quotas, item, now)
	})
	if env.IsEmpty() && m.RateLimits.IsLimited() {
		return nil, errRateLimited(m.RateLimits)
	}
	return m, nil
}

// Enqueue schedules a checked envelope for processing. It fails with ErrQueueFull if too many
// envelopes are waiting.
func (p *Processor) Enqueue(m *ManagedEnvelope) error {
	select {
	case p.queue <- m:
		metrics.EnvelopesAccepted.Incr(context.Background())
		return nil
	default:
		p.rejectAll(m, outcomes.KindInvalid, outcomes.ReasonInternal)
		return errQueueFull()
	}
}

// Run processes queued envelopes until ctx is done, then processes whatever is still queued.
func (p *Processor) Run(ctx context.Context) error {
	g := new(errgroup.Group)
	for i := 0; i < p.config.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case m := <-p.queue:
					p.Process(context.Background(), m)
				}
			}
		})
	}
	_ = g.Wait()

	if n := len(p.queue); n > 0 {
		p.loggers.Infof(logMsgDrainingQueue, n)
	}
	for {
		select {
		case m := <-p.queue:
			p.Process(context.Background(), m)
		default:
			return nil
		}
	}
}

// Process runs the full pipeline on a checked envelope and forwards what remains.
func (p *Processor) Process(ctx context.Context, m *ManagedEnvelope) {
	p.processClientReports(m)
	if p.config.Processing {
		p.enforceQuotas(ctx, m)
	}
	p.processMetrics(m)
	p.applyInboundFilters(m)
	p.extractSpanMetrics(m)
	p.processProfiles(m)

	for _, item := range m.Envelope.Items {
		metrics.ItemsProcessed.Incr(ctx, string(item.Type()))
	}
	if m.Envelope.IsEmpty() || p.deps.Forwarder == nil {
		return
	}

	fctx, cancel := context.WithTimeout(ctx, forwardTimeout)
	defer cancel()
	err := p.deps.Forwarder.Forward(fctx, m)
	switch {
	case err == nil:
		if p.config.Processing {
			p.emitForItems(m, m.Envelope.Items, outcomes.KindAccepted, "")
		}
	default:
		var upstreamErr upstream.UpstreamError
		if errors.As(err, &upstreamErr) && upstreamErr.Kind == upstream.ErrorKindRateLimited {
			limits := upstreamErr.RateLimits(m.Scoping, p.clock.Now())
			p.addLimits(m.Scoping.ProjectKey, limits)
			p.emitForItems(m, m.Envelope.Items, outcomes.KindRateLimited, reasonOf(limits))
			return
		}
		p.loggers.Errorf(logMsgForwardFailed, m.Scoping.ProjectKey, err)
		p.emitForItems(m, m.Envelope.Items, outcomes.KindInvalid, outcomes.ReasonInternal)
	}
}

// RateLimits returns the active rate limits known for a project.
func (p *Processor) RateLimits(key basictypes.ProjectKey) quotas.RateLimits {
	return p.cachedLimits(key, p.clock.Now())
}

func (p *Processor) checkSizeLimits(env *protocol.Envelope) error {
	var total int64
	for _, item := range env.Items {
		size := int64(len(item.Payload))
		total += size
		var limit int64
		switch t := item.Type(); {
		case t.IsEvent() || t == protocol.ItemTypeSpan:
			limit = p.config.MaxEventSize
		case t == protocol.ItemTypeAttachment:
			limit = p.config.MaxAttachmentSize
		case t == protocol.ItemTypeProfile:
			limit = p.config.MaxProfileSize
		case t == protocol.ItemTypeStatsd || t == protocol.ItemTypeMetricBuckets:
			limit = p.config.MaxStatsdSize
		}
		if limit > 0 && size > limit {
			return errTooLarge(string(item.Type())+" item", size, limit)
		}
	}
	if total > p.config.MaxEnvelopeSize {
		return errTooLarge("envelope", total, p.config.MaxEnvelopeSize)
	}
	return nil
}

// applyLimits removes items for which check returns active limits. Limits that removed items
// are collected in m.RateLimits.
func (p *Processor) applyLimits(m *ManagedEnvelope, check func(quotas.ItemScoping, int) quotas.RateLimits) {
	m.Envelope.RetainItems(func(item *protocol.Item) bool {
		category, ok := item.Type().DataCategory()
		if !ok {
			return true
		}
		limits := check(m.Scoping.Item(category), item.Quantity())
		if !limits.IsLimited() {
			return true
		}
		m.RateLimits.Merge(limits)
		p.emitForItems(m, []*protocol.Item{item}, outcomes.KindRateLimited, reasonOf(limits))
		return false
	})
}

func (p *Processor) enforceQuotas(ctx context.Context, m *ManagedEnvelope) {
	if p.deps.RateLimiter == nil || m.State == nil || len(m.State.Config.Quotas) == 0 {
		return
	}
	var found quotas.RateLimits
	p.applyLimits(m, func(item quotas.ItemScoping, quantity int) quotas.RateLimits {
		limits, err := p.deps.RateLimiter.IsRateLimited(ctx, m.State.Config.Quotas, item, quantity, false)
		if err != nil {
			p.loggers.Errorf(logMsgQuotaCheckFailed, m.Scoping.ProjectKey, err)
			return quotas.RateLimits{}
		}
		found.Merge(limits)
		return limits
	})
	p.addLimits(m.Scoping.ProjectKey, found)
}

func (p *Processor) processClientReports(m *ManagedEnvelope) {
	now := p.clock.Now()
	for _, item := range m.Envelope.TakeItemsByType(protocol.ItemTypeClientReport) {
		report, err := outcomes.ParseClientReport(item.Payload)
		if err != nil {
			p.loggers.Debugf(logMsgBadClientReport, err)
			continue
		}
		for _, o := range report.Outcomes(m.Scoping, now) {
			p.deps.Outcomes.Emit(o)
		}
	}
}

func (p *Processor) processMetrics(m *ManagedEnvelope) {
	if p.deps.Aggregator == nil {
		return
	}
	timestamp := basictypes.UnixTimestampFromTime(m.Meta.ReceivedAt)
	m.Envelope.RetainItems(func(item *protocol.Item) bool {
		var parsed []buckets.Bucket
		var err error
		switch item.Type() {
		case protocol.ItemTypeStatsd:
			parsed, err = buckets.ParseBuckets(item.Payload, timestamp)
		case protocol.ItemTypeMetricBuckets:
			parsed, err = buckets.UnmarshalBuckets(item.Payload)
		default:
			return true
		}
		if err != nil {
			p.loggers.Debugf(logMsgBadMetrics, err)
			return false
		}
		if err := p.deps.Aggregator.MergeAll(m.Scoping.ProjectKey, parsed); err != nil {
			p.loggers.Debugf(logMsgMergeFailed, err)
		}
		return false
	})
}

// applyInboundFilters drops the event of an envelope, and the attachments that belong to it, if
// one of the project's filters matches.
func (p *Processor) applyInboundFilters(m *ManagedEnvelope) {
	if m.State == nil {
		return
	}
	var reason dynconfig.FilterReason
	filtered := false
	for _, item := range m.Envelope.Items {
		if !item.Type().IsEvent() {
			continue
		}
		event, err := protocol.ParseObject(item.Payload)
		if err != nil {
			continue
		}
		reason, filtered = m.State.Config.FilterSettings.ShouldFilter(event)
		break
	}
	if !filtered {
		return
	}
	var dropped []*protocol.Item
	m.Envelope.RetainItems(func(item *protocol.Item) bool {
		t := item.Type()
		if t.IsEvent() || t == protocol.ItemTypeAttachment || t == protocol.ItemTypeProfile {
			dropped = append(dropped, item)
			return false
		}
		return true
	})
	p.emitForItems(m, dropped, outcomes.KindFiltered, string(reason))
}

func (p *Processor) extractSpanMetrics(m *ManagedEnvelope) {
	if p.deps.Aggregator == nil || m.State == nil {
		return
	}
	cfg := m.State.Config
	if !cfg.Features.Has(dynconfig.FeatureSpanMetricsExtraction) || cfg.MetricExtraction == nil {
		return
	}
	extractor := extraction.NewExtractor(cfg.MetricExtraction, p.loggers)
	fallback := basictypes.UnixTimestampFromTime(m.Meta.ReceivedAt)

	var spans []extraction.Span
	for _, item := range m.Envelope.Items {
		switch item.Type() {
		case protocol.ItemTypeTransaction:
			if event, err := protocol.ParseObject(item.Payload); err == nil {
				spans = append(spans, extraction.SpansFromTransaction(event, fallback)...)
			}
		case protocol.ItemTypeSpan:
			if fields, err := protocol.ParseObject(item.Payload); err == nil {
				spans = append(spans, extraction.NewSpan(fields, fallback))
			}
		}
	}
	var extracted []buckets.Bucket
	for _, span := range spans {
		extracted = append(extracted, extractor.Extract(span, basictypes.DataCategorySpan, span.Timestamp)...)
	}
	if len(extracted) == 0 {
		return
	}
	if err := p.deps.Aggregator.MergeAll(m.Scoping.ProjectKey, extracted); err != nil {
		p.loggers.Debugf(logMsgMergeFailed, err)
	}
}

func (p *Processor) processProfiles(m *ManagedEnvelope) {
	profilingEnabled := m.State == nil || m.State.Config.Features.Has(dynconfig.FeatureProfiling)
	m.Envelope.RetainItems(func(item *protocol.Item) bool {
		if item.Type() != protocol.ItemTypeProfile {
			return true
		}
		if p.config.Processing && !profilingEnabled {
			p.emitForItems(m, []*protocol.Item{item}, outcomes.KindFiltered, outcomes.ReasonDisabled)
			return false
		}
		expanded, err := profiling.ExpandProfile(item.Payload)
		if err != nil {
			p.loggers.Debugf(logMsgInvalidProfile, err)
			reason := outcomes.ReasonInvalidProfile
			var profileErr profiling.ProfileError
			if errors.As(err, &profileErr) {
				reason = string(profileErr)
			}
			p.emitForItems(m, []*protocol.Item{item}, outcomes.KindInvalid, reason)
			return false
		}
		item.Payload = expanded
		return true
	})
}

func (p *Processor) rejectAll(m *ManagedEnvelope, kind outcomes.Kind, reason string) {
	metrics.EnvelopesRejected.Incr(context.Background(), reason)
	p.emitForItems(m, m.Envelope.Items, kind, reason)
}

// emitForItems emits one outcome per rate-limited category of the items. Items that are not
// counted, such as client reports, produce no outcome.
func (p *Processor) emitForItems(m *ManagedEnvelope, items []*protocol.Item, kind outcomes.Kind, reason string) {
	eventID := string(m.Envelope.EventID())
	for _, item := range items {
		category, ok := item.Type().DataCategory()
		if !ok {
			continue
		}
		p.deps.Outcomes.Emit(outcomes.Outcome{
			Kind:       kind,
			Reason:     reason,
			Scoping:    m.Scoping,
			Category:   category,
			Quantity:   uint32(item.Quantity()),
			Timestamp:  p.clock.Now(),
			EventID:    eventID,
			RemoteAddr: m.Meta.RemoteAddr,
		})
	}
}

func (p *Processor) cachedLimits(key basictypes.ProjectKey, now time.Time) quotas.RateLimits {
	p.limitsLock.Lock()
	defer p.limitsLock.Unlock()
	limits, ok := p.limits[key]
	if !ok {
		return quotas.RateLimits{}
	}
	limits.Clean(now)
	if !limits.IsLimited() {
		delete(p.limits, key)
		return quotas.RateLimits{}
	}
	var ret quotas.RateLimits
	ret.Merge(*limits)
	return ret
}

func (p *Processor) addLimits(key basictypes.ProjectKey, limits quotas.RateLimits) {
	if !limits.IsLimited() {
		return
	}
	p.limitsLock.Lock()
	defer p.limitsLock.Unlock()
	existing, ok := p.limits[key]
	if !ok {
		existing = &quotas.RateLimits{}
		p.limits[key] = existing
	}
	existing.Merge(limits)
}

func reasonOf(limits quotas.RateLimits) string {
	if longest, ok := limits.Longest(); ok {
		return string(longest.ReasonCode)
	}
	return ""
}
