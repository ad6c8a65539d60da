package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/eventrelay/relay/config"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// Manager owns the configured metrics exporters and the runtime statistics collector.
type Manager struct {
	backends  []runningBackend
	loggers   ldlog.Loggers
	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewManager registers the views for all of Relay's measures and starts every enabled backend.
func NewManager(mc config.MetricsConfig, loggers ldlog.Loggers) (*Manager, error) {
	return newManager(defaultBackends(), mc, loggers)
}

func newManager(factories []backendFactory, mc config.MetricsConfig, loggers ldlog.Loggers) (*Manager, error) {
	if err := registerViews(); err != nil {
		return nil, err
	}
	backends, err := startBackends(factories, mc, loggers)
	if err != nil {
		return nil, err
	}
	return &Manager{
		backends: backends,
		loggers:  loggers,
		closeCh:  make(chan struct{}),
	}, nil
}

// BackendCount returns the number of running backends.
func (m *Manager) BackendCount() int {
	return len(m.backends)
}

// PrometheusHandler returns the scrape endpoint, or nil if Prometheus is disabled.
func (m *Manager) PrometheusHandler() http.Handler {
	for _, b := range m.backends {
		if p, ok := b.backend.(*prometheusBackend); ok {
			return p.exporter
		}
	}
	return nil
}

// StartMemoryCollector samples runtime memory statistics on every tick of the clock until the
// Manager is closed. A nil clock uses real time.
func (m *Manager) StartMemoryCollector(clk clock.Clock, interval time.Duration) {
	if clk == nil {
		clk = clock.New()
	}
	if interval <= 0 {
		interval = defaultMemoryInterval
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := clk.Ticker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.closeCh:
				return
			case <-ticker.C:
				collectMemoryStats(context.Background())
			}
		}
	}()
}

// Close stops the collector and all backends.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.closeCh)
		m.wg.Wait()
		stopBackends(m.backends, m.loggers)
	})
}
