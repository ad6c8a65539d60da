package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/eventrelay/relay/config"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"contrib.go.opencensus.io/exporter/prometheus"
	"go.opencensus.io/stats/view"
)

// prometheusBackend is scraped rather than pushing. Its handler is mounted at /metrics on the main
// listener; if a port is configured it is also served there on its own.
type prometheusBackend struct {
	exporter *prometheus.Exporter
	server   *http.Server
	loggers  ldlog.Loggers
}

func newPrometheusBackend(mc config.MetricsConfig, loggers ldlog.Loggers) (backend, error) {
	pc := mc.Prometheus
	if !pc.Enabled {
		return nil, nil
	}
	exporter, err := prometheus.NewExporter(prometheus.Options{
		Namespace: metricsPrefix(pc.Prefix),
		OnError:   func(err error) { loggers.Errorf("Prometheus: %s", err) },
	})
	if err != nil {
		return nil, err
	}
	b := &prometheusBackend{exporter: exporter, loggers: loggers}
	if pc.Port.IsDefined() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", exporter)
		b.server = &http.Server{
			Addr:              fmt.Sprintf(":%d", pc.Port.GetOrElse(0)),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}
	return b, nil
}

func (b *prometheusBackend) start() error {
	view.RegisterExporter(b.exporter)
	if b.server != nil {
		go func() {
			b.loggers.Infof("Prometheus metrics listening on %s", b.server.Addr)
			if err := b.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				b.loggers.Errorf("Prometheus listener failed: %s", err)
			}
		}()
	}
	return nil
}

func (b *prometheusBackend) stop() error {
	view.UnregisterExporter(b.exporter)
	if b.server != nil {
		return b.server.Close()
	}
	return nil
}
