package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// OTelConfig configures the OTel trace exporter behind NewOTelObserver.
type OTelConfig struct {
	ServiceName string  `json:"service_name"`
	SampleRatio float64 `json:"sample_ratio"`
}

// DefaultOTelConfig samples every trace to a stdout exporter, suitable for
// local development; a production deployment swaps in an OTLP exporter by
// constructing its own TracerProvider and calling NewOTelObserverWithTracer.
func DefaultOTelConfig() OTelConfig {
	return OTelConfig{ServiceName: "agentflow", SampleRatio: 1.0}
}

// NewTracerProvider builds a TracerProvider exporting spans to stdout,
// batched, sampled at cfg.SampleRatio.
func NewTracerProvider(cfg OTelConfig) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("observability: create stdout trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)
	return tp, nil
}

// OTelObserver opens one span per event, tagging it with the event's Level
// and Data as span attributes. Each span is a child of whatever span ctx
// already carries; the workflow Runner passes its caller's ctx through and
// starts no spans of its own.
type OTelObserver struct {
	tracer trace.Tracer
}

// NewOTelObserver builds an OTelObserver backed by a fresh stdout-exporting
// TracerProvider, registering it as the global provider.
func NewOTelObserver(cfg OTelConfig) (*OTelObserver, error) {
	tp, err := NewTracerProvider(cfg)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	return NewOTelObserverWithTracer(otel.Tracer(cfg.ServiceName)), nil
}

// NewOTelObserverWithTracer wraps an already-configured Tracer, for callers
// that manage their own TracerProvider (e.g. an OTLP exporter in
// production).
func NewOTelObserverWithTracer(tracer trace.Tracer) *OTelObserver {
	return &OTelObserver{tracer: tracer}
}

func (o *OTelObserver) OnEvent(ctx context.Context, event Event) {
	_, span := o.tracer.Start(ctx, string(event.Type))
	defer span.End()

	span.SetAttributes(
		attribute.String("source", event.Source),
		attribute.String("level", event.Level.String()),
	)
	for k, v := range event.Data {
		span.SetAttributes(attribute.String(k, fmt.Sprintf("%v", v)))
	}
}

// OTelMeterObserver records the same event stream as OTel metric
// instruments rather than spans, for deployments that ship metrics to a
// collector instead of (or alongside) Prometheus scraping.
type OTelMeterObserver struct {
	reader *sdkmetric.ManualReader

	eventsTotal      metric.Int64Counter
	executorDuration metric.Float64Histogram
}

// NewOTelMeterObserver builds an OTelMeterObserver backed by its own
// MeterProvider and a ManualReader; call Collect to pull a snapshot for
// export, e.g. from a /metrics handler or a periodic export loop.
func NewOTelMeterObserver(cfg OTelConfig) (*OTelMeterObserver, error) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter(cfg.ServiceName)

	eventsTotal, err := meter.Int64Counter("agentflow.events.total",
		metric.WithDescription("Total observability events emitted, by type and source."))
	if err != nil {
		return nil, fmt.Errorf("observability: create events counter: %w", err)
	}
	executorDuration, err := meter.Float64Histogram("agentflow.executor.duration_seconds",
		metric.WithDescription("Executor invocation duration in seconds, from ExecutorCompleted and ExecutorFailed events."))
	if err != nil {
		return nil, fmt.Errorf("observability: create duration histogram: %w", err)
	}

	return &OTelMeterObserver{
		reader:           reader,
		eventsTotal:      eventsTotal,
		executorDuration: executorDuration,
	}, nil
}

func (o *OTelMeterObserver) OnEvent(ctx context.Context, event Event) {
	attrs := metric.WithAttributes(
		attribute.String("type", string(event.Type)),
		attribute.String("source", event.Source),
		attribute.String("level", event.Level.String()),
	)
	o.eventsTotal.Add(ctx, 1, attrs)

	if d, ok := event.Data["duration_seconds"]; ok {
		if seconds, ok := d.(float64); ok {
			o.executorDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("source", event.Source)))
		}
	}
}

// Collect pulls a point-in-time snapshot of every recorded metric, for a
// caller that exports it to a collector or test assertion.
func (o *OTelMeterObserver) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	if err := o.reader.Collect(ctx, &rm); err != nil {
		return metricdata.ResourceMetrics{}, fmt.Errorf("observability: collect metrics: %w", err)
	}
	return rm, nil
}
