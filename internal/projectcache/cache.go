package projectcache

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/eventrelay/relay/config"
	"github.com/eventrelay/relay/internal/basictypes"
	"github.com/eventrelay/relay/internal/dynconfig"
	"github.com/eventrelay/relay/internal/metrics"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

const (
	// DefaultMissExpiry is how long the state of an unknown project is cached.
	DefaultMissExpiry = time.Minute
	// DefaultEvictionInterval is how often entries past their grace period are removed.
	DefaultEvictionInterval = time.Minute
	// DefaultCapacity is the maximum number of cached project states.
	DefaultCapacity = 10000
)

// Config controls expiry and eviction of cached states.
type Config struct {
	Expiry           time.Duration
	GracePeriod      time.Duration
	MissExpiry       time.Duration
	EvictionInterval time.Duration
	Capacity         int
}

// ConfigFromRelayConfig converts the [Cache] configuration section.
func ConfigFromRelayConfig(c config.CacheConfig) Config {
	return Config{
		Expiry:           c.ProjectExpiry.GetOrElse(config.DefaultProjectExpiry),
		GracePeriod:      c.ProjectGracePeriod.GetOrElse(config.DefaultProjectGracePeriod),
		MissExpiry:       c.MissExpiry.GetOrElse(DefaultMissExpiry),
		EvictionInterval: c.EvictionInterval.GetOrElse(DefaultEvictionInterval),
		Capacity:         c.Capacity.GetOrElse(DefaultCapacity),
	}
}

// Cache holds project states in memory and refreshes them from a Source.
type Cache struct {
	config  Config
	source  Source
	store   Store
	states  *lru.Cache[basictypes.ProjectKey, *dynconfig.ProjectState]
	group   singleflight.Group
	clock   clock.Clock
	loggers ldlog.Loggers

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewCache creates a cache and starts its eviction loop. store may be nil.
func NewCache(cfg Config, source Source, store Store, clk clock.Clock, loggers ldlog.Loggers) *Cache {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = config.DefaultProjectExpiry
	}
	if cfg.MissExpiry <= 0 {
		cfg.MissExpiry = DefaultMissExpiry
	}
	if cfg.EvictionInterval <= 0 {
		cfg.EvictionInterval = DefaultEvictionInterval
	}
	states, _ := lru.New[basictypes.ProjectKey, *dynconfig.ProjectState](cfg.Capacity)
	loggers.SetPrefix("[ProjectCache]")
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		config:  cfg,
		source:  source,
		store:   store,
		states:  states,
		clock:   clk,
		loggers: loggers,
		ctx:     ctx,
		cancel:  cancel,
	}
	c.wg.Add(1)
	go c.runEviction()
	return c
}

// GetProjectState returns the state of a project. A fresh cached state is returned directly; a
// state within its grace period is returned while a refresh runs in the background; anything
// else is fetched before returning. Unknown projects get a missing state, not an error.
func (c *Cache) GetProjectState(ctx context.Context, key basictypes.ProjectKey) (*dynconfig.ProjectState, error) {
	now := c.clock.Now()
	if state, ok := c.states.Get(key); ok {
		expiry := c.expiryFor(state)
		if !state.IsExpired(expiry, now) {
			metrics.ProjectCacheHits.Incr(ctx)
			return state, nil
		}
		if !state.IsExpired(expiry+c.config.GracePeriod, now) {
			metrics.ProjectCacheHits.Incr(ctx)
			c.refreshInBackground(key)
			return state, nil
		}
	}
	metrics.ProjectCacheMisses.Incr(ctx)

	ch := c.group.DoChan(string(key), func() (interface{}, error) {
		return c.load(key)
	})
	select {
	case result := <-ch:
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Val.(*dynconfig.ProjectState), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, errCacheClosed
	}
}

// GetCachedState returns a cached state that is fresh or within its grace period, without
// fetching.
func (c *Cache) GetCachedState(key basictypes.ProjectKey) (*dynconfig.ProjectState, bool) {
	state, ok := c.states.Peek(key)
	if !ok || state.IsExpired(c.expiryFor(state)+c.config.GracePeriod, c.clock.Now()) {
		return nil, false
	}
	return state, true
}

// Prefetch starts background fetches for every key that has no fresh state.
func (c *Cache) Prefetch(keys ...basictypes.ProjectKey) {
	now := c.clock.Now()
	for _, key := range keys {
		if state, ok := c.states.Peek(key); ok && !state.IsExpired(c.expiryFor(state), now) {
			continue
		}
		c.refreshInBackground(key)
	}
}

// Len returns the number of cached states.
func (c *Cache) Len() int {
	return c.states.Len()
}

// Close stops background work. Pending GetProjectState calls fail.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.wg.Wait()
	})
}

func (c *Cache) expiryFor(state *dynconfig.ProjectState) time.Duration {
	if state.IsMissing() {
		return c.config.MissExpiry
	}
	return c.config.Expiry
}

func (c *Cache) refreshInBackground(key basictypes.ProjectKey) {
	c.group.DoChan(string(key), func() (interface{}, error) {
		return c.load(key)
	})
}

func (c *Cache) load(key basictypes.ProjectKey) (*dynconfig.ProjectState, error) {
	previous, hadPrevious := c.states.Peek(key)

	if c.store != nil {
		state, err := c.store.Get(c.ctx, key)
		switch {
		case err != nil:
			c.loggers.Warnf(logMsgStoreReadFailed, key, c.store.Name(), err)
		case state != nil && !state.IsExpired(c.expiryFor(state), c.clock.Now()):
			c.put(key, state)
			return state, nil
		}
	}

	state, err := c.source.FetchState(c.ctx, key)
	if err != nil {
		if hadPrevious {
			c.loggers.Warnf(logMsgUsingStaleState, key, err)
			return previous, nil
		}
		c.loggers.Errorf(logMsgFetchFailed, key, err)
		return nil, err
	}

	now := c.clock.Now()
	state.LastFetch = &now
	if !state.IsMissing() && !state.Invalid {
		state.Sanitize()
	}
	c.put(key, state)

	if c.store != nil && !state.Invalid {
		if err := c.store.Put(c.ctx, key, state); err != nil {
			c.loggers.Warnf(logMsgStoreWriteFailed, key, c.store.Name(), err)
		}
	}
	return state, nil
}

func (c *Cache) put(key basictypes.ProjectKey, state *dynconfig.ProjectState) {
	c.states.Add(key, state)
	metrics.ProjectCacheSize.Set(context.Background(), int64(c.states.Len()))
}

func (c *Cache) runEviction() {
	defer c.wg.Done()
	ticker := c.clock.Ticker(c.config.EvictionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Cache) evictExpired() {
	now := c.clock.Now()
	evicted := 0
	for _, key := range c.states.Keys() {
		state, ok := c.states.Peek(key)
		if ok && state.IsExpired(c.expiryFor(state)+c.config.GracePeriod, now) {
			c.states.Remove(key)
			evicted++
		}
	}
	if evicted > 0 {
		c.loggers.Debugf("Evicted %d expired project states", evicted)
		metrics.ProjectCacheSize.Set(context.Background(), int64(c.states.Len()))
	}
}
