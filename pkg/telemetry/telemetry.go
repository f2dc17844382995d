// Package telemetry instruments a store with Prometheus metrics and
// OpenTelemetry traces through the store's instrumentation hook.
//
// Usage:
//
//	st, err := store.New(reducer, initial,
//	    store.WithInstrumentation(telemetry.Instrument(
//	        telemetry.WithNamespace("myapp"),
//	    )),
//	)
package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/keyhole-dev/keyhole/pkg/store"
)

// Default tracer name for keyhole stores.
const defaultTracerName = "keyhole"

// Config configures store instrumentation.
type Config struct {
	// Namespace is the metrics namespace (default: "keyhole").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for dispatch duration.
	// Default: prometheus.DefBuckets.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// TracerName is the OpenTelemetry tracer name (default: "keyhole").
	TracerName string

	// Tracing enables span emission per dispatch. Metrics are always
	// collected; tracing is opt-in because it costs an allocation per
	// dispatch even with a no-op tracer provider.
	Tracing bool
}

// Option configures store instrumentation.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the dispatch duration histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// WithTracerName sets the tracer name and enables tracing.
func WithTracerName(name string) Option {
	return func(c *Config) {
		c.TracerName = name
		c.Tracing = true
	}
}

// WithTracing enables or disables span emission.
func WithTracing(enabled bool) Option {
	return func(c *Config) {
		c.Tracing = enabled
	}
}

func defaultConfig() Config {
	return Config{
		Namespace:  "keyhole",
		Buckets:    prometheus.DefBuckets,
		Registry:   prometheus.DefaultRegisterer,
		TracerName: defaultTracerName,
	}
}

// metrics holds the Prometheus collectors for one instrumented store.
type metrics struct {
	dispatchesTotal   *prometheus.CounterVec
	dispatchDuration  *prometheus.HistogramVec
	observersNotified prometheus.Counter
	observers         prometheus.Gauge
}

func newMetrics(config Config) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		dispatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatches_total",
			Help:        "Total number of dispatched actions by kind and status",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "status"}),

		dispatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatch_duration_seconds",
			Help:        "Dispatch duration in seconds, notification pass included",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"kind"}),

		observersNotified: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "observers_notified_total",
			Help:        "Total number of observer callbacks invoked",
			ConstLabels: config.ConstLabels,
		}),

		observers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "observers",
			Help:        "Number of registered observers",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Instrument builds a store.Instrumentation that records Prometheus
// metrics and, when enabled, an OpenTelemetry span per dispatch.
//
// Metrics collected:
//   - keyhole_dispatches_total: counter by action kind and status
//   - keyhole_dispatch_duration_seconds: histogram by action kind
//   - keyhole_observers_notified_total: counter of callbacks invoked
//   - keyhole_observers: gauge of registered observers
func Instrument(opts ...Option) store.Instrumentation {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	m := newMetrics(config)

	var tracer trace.Tracer
	if config.Tracing {
		tracer = otel.Tracer(config.TracerName)
	}

	return store.Instrumentation{
		OnDispatch: func(kind string, duration time.Duration, notified int, err error) {
			status := "ok"
			if err != nil {
				status = "error"
			}
			m.dispatchesTotal.WithLabelValues(kind, status).Inc()
			m.dispatchDuration.WithLabelValues(kind).Observe(duration.Seconds())
			m.observersNotified.Add(float64(notified))

			if tracer != nil {
				recordSpan(tracer, kind, duration, notified, err)
			}
		},
		OnObservers: func(count int) {
			m.observers.Set(float64(count))
		},
	}
}

// recordSpan emits a span covering an already-completed dispatch. The hook
// fires after Dispatch returns, so the span is backdated to the dispatch
// start rather than wrapped around it.
func recordSpan(tracer trace.Tracer, kind string, duration time.Duration, notified int, err error) {
	end := time.Now()
	_, span := tracer.Start(context.Background(), "keyhole.dispatch",
		trace.WithTimestamp(end.Add(-duration)),
		trace.WithAttributes(
			attribute.String("keyhole.action.kind", kind),
			attribute.Int("keyhole.observers.notified", notified),
		),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End(trace.WithTimestamp(end))
}
