package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Observability owns the OpenTelemetry meter and tracer providers for one
// process. A zero value is safe to use and records nothing.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	attempts       otelmetric.Int64Counter
	settled        otelmetric.Float64Histogram
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
}

func New(serviceName string, log Logger) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("failed to create prometheus exporter", map[string]interface{}{"error": err.Error()})
		return &Observability{}
	}

	mp := metric.NewMeterProvider(metric.WithReader(exporter))
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.1))))
	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)

	meter := mp.Meter(serviceName)

	attempts, _ := meter.Int64Counter(
		"preview.attempts",
		otelmetric.WithDescription("Debounced preview attempts issued"),
	)
	settled, _ := meter.Float64Histogram(
		"preview.settle_latency",
		otelmetric.WithDescription("Time from first selection change to settled preview"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:  mp,
		tracerProvider: tp,
		tracer:         tp.Tracer(serviceName),
		attempts:       attempts,
		settled:        settled,
	}
}

// StartSpan starts a span when a tracer is configured; otherwise it returns
// the context unchanged and a no-op end func.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if o == nil || o.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}

func (o *Observability) RecordAttempt(ctx context.Context, generation uint64) {
	if o == nil || o.attempts == nil {
		return
	}
	o.attempts.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.Bool("first", generation == 1),
	))
}

func (o *Observability) RecordSettled(ctx context.Context, latency time.Duration, outcome string) {
	if o == nil || o.settled == nil {
		return
	}
	o.settled.Record(ctx, float64(latency.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
