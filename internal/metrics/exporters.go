package metrics

import (
	"github.com/eventrelay/relay/config"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	datadog "github.com/DataDog/opencensus-go-exporter-datadog"
	stackdriver "github.com/launchdarkly/opencensus-go-exporter-stackdriver"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/trace"
)

const (
	logMsgBackendStarted      = "Started %s metrics"
	logMsgBackendCreateFailed = "Could not create %s metrics backend: %s"
	logMsgBackendStartFailed  = "Could not start %s metrics backend: %s"
	logMsgBackendStopFailed   = "Could not stop %s metrics backend: %s"
)

// backend is one metrics integration.
type backend interface {
	start() error
	stop() error
}

// backendFactory creates a backend, or returns nil if the integration is disabled.
type backendFactory struct {
	name   string
	create func(config.MetricsConfig, ldlog.Loggers) (backend, error)
}

type runningBackend struct {
	name    string
	backend backend
}

func defaultBackends() []backendFactory {
	return []backendFactory{
		{name: "Datadog", create: newDatadogBackend},
		{name: "Prometheus", create: newPrometheusBackend},
		{name: "Stackdriver", create: newStackdriverBackend},
	}
}

// startBackends creates and starts every enabled backend. If any of them fails, the ones already
// running are stopped again.
func startBackends(factories []backendFactory, mc config.MetricsConfig, loggers ldlog.Loggers) ([]runningBackend, error) {
	var running []runningBackend
	for _, f := range factories {
		b, err := f.create(mc, loggers)
		if err != nil {
			loggers.Errorf(logMsgBackendCreateFailed, f.name, err)
			stopBackends(running, loggers)
			return nil, err
		}
		if b == nil {
			continue
		}
		if err := b.start(); err != nil {
			loggers.Errorf(logMsgBackendStartFailed, f.name, err)
			stopBackends(running, loggers)
			return nil, err
		}
		loggers.Infof(logMsgBackendStarted, f.name)
		running = append(running, runningBackend{name: f.name, backend: b})
	}
	return running, nil
}

// stopBackends stops backends in the reverse order of starting them. Failures are logged and do
// not prevent the others from stopping.
func stopBackends(running []runningBackend, loggers ldlog.Loggers) {
	for i := len(running) - 1; i >= 0; i-- {
		if err := running[i].backend.stop(); err != nil {
			loggers.Errorf(logMsgBackendStopFailed, running[i].name, err)
		}
	}
}

func metricsPrefix(configured string) string {
	if configured == "" {
		return defaultMetricsPrefix
	}
	return configured
}

type pushExporter interface {
	view.Exporter
	trace.Exporter
}

// pushBackend sends both stats and trace spans to a collector.
type pushBackend struct {
	exporter pushExporter
	flush    func()
}

func (b *pushBackend) start() error {
	view.RegisterExporter(b.exporter)
	trace.RegisterExporter(b.exporter)
	return nil
}

func (b *pushBackend) stop() error {
	b.flush()
	view.UnregisterExporter(b.exporter)
	trace.UnregisterExporter(b.exporter)
	return nil
}

func newDatadogBackend(mc config.MetricsConfig, loggers ldlog.Loggers) (backend, error) {
	dc := mc.Datadog
	if !dc.Enabled {
		return nil, nil
	}
	exporter, err := datadog.NewExporter(datadog.Options{
		Namespace: metricsPrefix(dc.Prefix),
		Service:   metricsPrefix(dc.Prefix),
		TraceAddr: dc.TraceAddr,
		StatsAddr: dc.StatsAddr,
		Tags:      dc.Tag,
		OnError:   func(err error) { loggers.Errorf("Datadog: %s", err) },
	})
	if err != nil {
		return nil, err
	}
	return &pushBackend{exporter: exporter, flush: exporter.Stop}, nil
}

func newStackdriverBackend(mc config.MetricsConfig, loggers ldlog.Loggers) (backend, error) {
	sc := mc.Stackdriver
	if !sc.Enabled {
		return nil, nil
	}
	exporter, err := stackdriver.NewExporter(stackdriver.Options{
		MetricPrefix: metricsPrefix(sc.Prefix),
		ProjectID:    sc.ProjectID,
		OnError:      func(err error) { loggers.Errorf("Stackdriver: %s", err) },
	})
	if err != nil {
		return nil, err
	}
	return &pushBackend{exporter: exporter, flush: exporter.Flush}, nil
}
