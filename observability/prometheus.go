package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusConfig configures the metric namespace PrometheusObserver
// registers under.
type PrometheusConfig struct {
	Namespace string `json:"namespace"`
}

func DefaultPrometheusConfig() PrometheusConfig {
	return PrometheusConfig{Namespace: "agentflow"}
}

// PrometheusObserver turns every Event into a counter increment keyed by
// event type and source, plus a duration histogram for the invocation
// events that carry a "duration_seconds" field in Data. It is registered
// like any other Observer (via RegisterObserver) and composes cleanly with
// a SlogObserver or OTelObserver through MultiObserver.
type PrometheusObserver struct {
	registry *prometheus.Registry

	eventsTotal   *prometheus.CounterVec
	eventDuration *prometheus.HistogramVec
}

// NewPrometheusObserver builds a PrometheusObserver with its own registry,
// so it never collides with metrics an embedding application already
// exposes under the default registry.
func NewPrometheusObserver(cfg PrometheusConfig) *PrometheusObserver {
	registry := prometheus.NewRegistry()

	o := &PrometheusObserver{
		registry: registry,
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "workflow",
			Name:      "events_total",
			Help:      "Total observability events emitted, by type and source.",
		}, []string{"type", "source", "level"}),
		eventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "workflow",
			Name:      "executor_duration_seconds",
			Help:      "Executor invocation duration in seconds, from ExecutorCompleted and ExecutorFailed events.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"source"}),
	}
	registry.MustRegister(o.eventsTotal, o.eventDuration)
	return o
}

func (o *PrometheusObserver) OnEvent(_ context.Context, event Event) {
	o.eventsTotal.WithLabelValues(string(event.Type), event.Source, event.Level.String()).Inc()

	if d, ok := event.Data["duration_seconds"]; ok {
		if seconds, ok := d.(float64); ok {
			o.eventDuration.WithLabelValues(event.Source).Observe(seconds)
		}
	}
}

// Handler exposes the observer's metrics for scraping.
func (o *PrometheusObserver) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}

// Registry returns the observer's private registry, for a caller that wants
// to register additional collectors alongside it.
func (o *PrometheusObserver) Registry() *prometheus.Registry {
	return o.registry
}
