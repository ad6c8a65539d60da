package relay

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/eventrelay/relay/config"
	"github.com/eventrelay/relay/internal/buckets"
	"github.com/eventrelay/relay/internal/credential"
	"github.com/eventrelay/relay/internal/httpconfig"
	"github.com/eventrelay/relay/internal/metrics"
	"github.com/eventrelay/relay/internal/outcomes"
	"github.com/eventrelay/relay/internal/processing"
	"github.com/eventrelay/relay/internal/processor"
	"github.com/eventrelay/relay/internal/projectcache"
	"github.com/eventrelay/relay/internal/quotas"
	"github.com/eventrelay/relay/internal/redis"
	"github.com/eventrelay/relay/internal/system"
	"github.com/eventrelay/relay/internal/upstream"
	"github.com/eventrelay/relay/internal/util"
	"github.com/eventrelay/relay/relay/version"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

const (
	defaultRegistrationTTL = time.Hour
	defaultMaxAPIPayload   = 20 * 1024 * 1024

	serviceProcessor         = "processor"
	serviceMetricsAggregator = "metrics_aggregator"
	serviceOutcomeAggregator = "outcome_aggregator"
	serviceOutcomeProducer   = "outcome_producer"
)

// shutdownOrder lists services so that each one stops before the services it hands work to.
var shutdownOrder = []string{
	serviceProcessor,
	serviceMetricsAggregator,
	serviceOutcomeAggregator,
	serviceOutcomeProducer,
	projectcache.UpstreamServiceName,
}

// Relay is the relay service. It serves the HTTP API and owns every background component that
// handles the data it receives.
//
// Relay exports no methods other than ServeHTTP and Close, plus the read-only accessors that
// cmd/relay needs.
type Relay struct {
	http.Handler
	config         config.Config
	mode           config.RelayMode
	credentials    *config.Credentials
	upstream       *upstream.Relay
	projects       *projectcache.Cache
	staticSource   *projectcache.StaticSource
	store          projectcache.Store
	processor      *processor.Processor
	registry       *credential.Registry
	capture        *captureStore
	producer       processing.Producer
	runner         *system.ServiceRunner
	metricsManager *metrics.Manager
	clock          clock.Clock
	closed         bool
	lock           sync.RWMutex
	loggers        ldlog.Loggers
}

// relayInternalOptions carries the dependencies tests replace.
type relayInternalOptions struct {
	loggers     ldlog.Loggers
	clock       clock.Clock
	credentials *config.Credentials
	producer    processing.Producer
	rateLimiter quotas.RateLimiter
}

// NewRelay creates a Relay from a validated configuration and starts its background services.
//
// Credentials are read from the configuration directory. If any metrics exporters are enabled in
// c.MetricsConfig, they are registered in OpenCensus.
func NewRelay(c config.Config, loggers ldlog.Loggers) (*Relay, error) {
	return newRelayInternal(c, relayInternalOptions{loggers: loggers})
}

func newRelayInternal(c config.Config, options relayInternalOptions) (*Relay, error) {
	var thingsToCleanUp util.CleanupTasks
	defer thingsToCleanUp.Run()

	loggers := options.loggers
	if err := config.ValidateConfig(&c, loggers); err != nil {
		return nil, err
	}
	if c.Logging.Level.IsDefined() {
		loggers.SetMinLevel(c.Logging.Level.GetOrElse(ldlog.Info))
	}

	clk := options.clock
	if clk == nil {
		clk = clock.New()
	}
	mode := c.Relay.Mode.GetOrDefault()

	creds := options.credentials
	if creds == nil && c.Relay.ConfigDir != "" {
		loaded, err := config.LoadCredentials(c.Relay.ConfigDir)
		if err != nil {
			return nil, err
		}
		creds = loaded
	}
	if mode == config.RelayModeManaged && creds == nil {
		return nil, errMissingCredentials
	}
	if mode == config.RelayModeStatic && c.Relay.ConfigDir == "" {
		return nil, errNoConfigDir
	}

	metricsManager, err := metrics.NewManager(c.MetricsConfig, loggers)
	if err != nil {
		return nil, errNewMetricsManagerFailed(err)
	}
	thingsToCleanUp.AddFunc(metricsManager.Close)
	metricsManager.StartMemoryCollector(clk, 0)

	hc, err := httpconfig.NewHTTPConfig(c.Proxy, c.HTTP, loggers)
	if err != nil {
		return nil, errHTTPConfigFailed(err)
	}
	up := upstream.NewRelay(upstream.ConfigFromRelayConfig(c, creds, hc), clk, loggers)

	runner := system.NewServiceRunner(context.Background(), loggers)
	thingsToCleanUp.AddFunc(func() {
		_ = runner.StopInOrder(c.Limits.ShutdownTimeout.GetOrElse(config.DefaultShutdownTimeout), shutdownOrder...)
	})

	r := &Relay{
		config:         c,
		mode:           mode,
		credentials:    creds,
		upstream:       up,
		runner:         runner,
		metricsManager: metricsManager,
		clock:          clk,
		loggers:        loggers,
	}

	var source projectcache.Source
	switch mode {
	case config.RelayModeManaged:
		source = projectcache.NewUpstreamSource(runner, up, c.Cache, clk, loggers)
	case config.RelayModeStatic:
		staticSource, err := projectcache.NewStaticSource(c.Relay.ConfigDir, c.Cache.FileInterval.GetOrElse(0), loggers)
		if err != nil {
			return nil, errStaticProjectsFailed(err)
		}
		thingsToCleanUp.AddCloser(staticSource)
		r.staticSource = staticSource
		source = staticSource
	default:
		source = projectcache.ProxySource{}
	}

	store, err := projectcache.NewStore(c, loggers)
	if err != nil {
		return nil, errStoreFailed(err)
	}
	if store != nil {
		thingsToCleanUp.AddCloser(store)
		r.store = store
	}
	r.projects = projectcache.NewCache(projectcache.ConfigFromRelayConfig(c.Cache), source, store, clk, loggers)
	thingsToCleanUp.AddFunc(r.projects.Close)

	if c.Processing.Enabled {
		r.producer = options.producer
		if r.producer == nil {
			kafkaProducer := processing.NewKafkaProducer(c.Processing, loggers)
			thingsToCleanUp.AddCloser(kafkaProducer)
			r.producer = kafkaProducer
		}
	}

	rateLimiter, err := r.makeRateLimiter(options.rateLimiter)
	if err != nil {
		return nil, err
	}

	var outcomeSink outcomes.Sink
	switch {
	case r.producer != nil:
		outcomeSink = outcomes.KafkaSink{Producer: r.producer}
	case c.Outcomes.Emit && mode != config.RelayModeCapture:
		outcomeSink = outcomes.UpstreamSink{Relay: up}
	}
	outcomeProducer := outcomes.NewProducer(outcomes.ProducerConfigFromRelayConfig(c.Outcomes), outcomeSink, clk, loggers)
	runner.Go(serviceOutcomeProducer, outcomeProducer.Run)
	outcomeAggregator := outcomes.NewAggregator(outcomes.AggregatorConfigFromRelayConfig(c.Outcomes), outcomeProducer, clk)
	runner.Go(serviceOutcomeAggregator, outcomeAggregator.Run)

	var forwarder processor.Forwarder
	switch {
	case mode == config.RelayModeCapture:
		r.capture = newCaptureStore(defaultCaptureCapacity)
		forwarder = r.capture
	case r.producer != nil:
		forwarder = processor.KafkaForwarder{Producer: r.producer, Loggers: loggers}
	default:
		forwarder = processor.UpstreamForwarder{Relay: up}
	}

	bucketAggregator := buckets.NewAggregator(
		buckets.AggregatorConfigFromRelayConfig(c.Aggregator),
		processor.MetricsFlusher{Projects: r.projects, Forwarder: forwarder, Loggers: loggers},
		clk,
		loggers,
	)
	runner.Go(serviceMetricsAggregator, func(ctx context.Context) error {
		bucketAggregator.Run(ctx)
		return nil
	})

	r.processor = processor.NewProcessor(processor.ConfigFromRelayConfig(c), processor.Dependencies{
		Projects:    r.projects,
		Forwarder:   forwarder,
		Aggregator:  bucketAggregator,
		RateLimiter: rateLimiter,
		Outcomes:    outcomeAggregator,
	}, clk, loggers)
	runner.Go(serviceProcessor, r.processor.Run)

	registry, err := makeRegistry(c, clk, loggers)
	if err != nil {
		return nil, err
	}
	r.registry = registry

	if up.RequiresAuth() {
		up.Start(runner.Context())
	}

	r.Handler = r.makeRouter()
	loggers.Infof(logMsgRunning, version.Version, mode, c.Relay.Upstream.String())
	thingsToCleanUp.Clear()
	return r, nil
}

// makeRateLimiter returns the limiter that enforces quotas in processing mode, or nil otherwise.
// Configuration validation has ensured that processing relays have Redis.
func (r *Relay) makeRateLimiter(override quotas.RateLimiter) (quotas.RateLimiter, error) {
	if !r.config.Processing.Enabled {
		return nil, nil
	}
	if override != nil {
		return override, nil
	}
	client, err := redis.NewUniversalClient(redis.ConfigFromRelayConfig(r.config.Redis))
	if err != nil {
		return nil, errRedisFailed(err)
	}
	return quotas.NewRedisRateLimiter(client, r.config.Redis.Prefix, r.clock), nil
}

func makeRegistry(c config.Config, clk clock.Clock, loggers ldlog.Loggers) (*credential.Registry, error) {
	registry := credential.NewRegistry(c.Auth.RegistrationTTL.GetOrElse(defaultRegistrationTTL), loggers, clk.Now)
	for id, sr := range c.StaticRelay {
		if sr == nil {
			continue
		}
		pk, err := credential.ParsePublicKey(sr.PublicKey)
		if err != nil {
			return nil, errBadStaticRelay(id, err)
		}
		registry.AddStatic(credential.RelayInfo{
			ID:        credential.RelayID(id),
			PublicKey: pk,
			Version:   credential.CurrentRelayVersion(),
			Internal:  sr.Internal,
		})
	}
	return registry, nil
}

// Mode returns the mode the relay runs in.
func (r *Relay) Mode() config.RelayMode {
	return r.mode
}

func (r *Relay) isClosed() bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.closed
}

// Close stops accepting envelopes, waits up to the shutdown timeout for queued envelopes, metric
// buckets and outcomes to be sent, and then releases all connections.
func (r *Relay) Close() error {
	r.lock.Lock()
	if r.closed {
		r.lock.Unlock()
		return nil
	}
	r.closed = true
	r.lock.Unlock()

	err := r.runner.StopInOrder(r.config.Limits.ShutdownTimeout.GetOrElse(config.DefaultShutdownTimeout),
		shutdownOrder...)
	if err != nil {
		r.loggers.Warnf(logMsgShutdownIncomplete, err)
	}

	r.projects.Close()
	if r.staticSource != nil {
		_ = r.staticSource.Close()
	}
	if r.store != nil {
		_ = r.store.Close()
	}
	if r.producer != nil {
		_ = r.producer.Close()
	}
	r.metricsManager.Close()
	return err
}
