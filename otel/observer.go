// Package otel records adapter registry and factory activity into
// OpenTelemetry metrics and spans.
package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/petal-labs/petaladapt/adapter"
)

// Observer implements adapter.Observer.
type Observer struct {
	tracer trace.Tracer

	resolutions metric.Int64Counter
	builds      metric.Int64Counter
	cacheHits   metric.Int64Counter
	fallbacks   metric.Int64Counter
	latency     metric.Float64Histogram
}

var _ adapter.Observer = (*Observer)(nil)

// NewObserver creates an observer bound to the provided meter/tracer. A nil
// tracer disables spans.
func NewObserver(meter metric.Meter, tracer trace.Tracer) (*Observer, error) {
	resolutions, err := meter.Int64Counter(
		"petaladapt.registry.resolutions",
		metric.WithDescription("Number of lazy adapter resolutions"),
	)
	if err != nil {
		return nil, err
	}
	builds, err := meter.Int64Counter(
		"petaladapt.factory.builds",
		metric.WithDescription("Number of adapter instance requests"),
	)
	if err != nil {
		return nil, err
	}
	cacheHits, err := meter.Int64Counter(
		"petaladapt.factory.cache_hits",
		metric.WithDescription("Number of adapter requests served from cache"),
	)
	if err != nil {
		return nil, err
	}
	fallbacks, err := meter.Int64Counter(
		"petaladapt.factory.fallbacks",
		metric.WithDescription("Number of fallback selections"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		"petaladapt.latency",
		metric.WithDescription("Adapter resolution and build latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Observer{
		tracer:      tracer,
		resolutions: resolutions,
		builds:      builds,
		cacheHits:   cacheHits,
		fallbacks:   fallbacks,
		latency:     latency,
	}, nil
}

// ObserveResolve records one lazy resolution.
func (o *Observer) ObserveResolve(observation adapter.ResolveObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("adapter", observation.Name),
		attribute.String("module", observation.Reference),
		attribute.Bool("success", observation.Success),
	}
	if observation.ErrorCode != "" {
		attrs = append(attrs, attribute.String("error_code", observation.ErrorCode))
	}

	ctx := context.Background()
	o.resolutions.Add(ctx, 1, metric.WithAttributes(attrs...))
	o.latency.Record(ctx, seconds(observation.DurationMS), metric.WithAttributes(
		attribute.String("adapter", observation.Name),
		attribute.String("operation", "resolve"),
	))
	o.span("adapter.resolve", observation.Success, observation.ErrorCode,
		append(attrs, attribute.Int64("generation", int64(observation.Generation)))...)
}

// ObserveBuild records one factory request.
func (o *Observer) ObserveBuild(observation adapter.BuildObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("adapter", observation.Name),
		attribute.Bool("cache_hit", observation.CacheHit),
		attribute.Bool("stateless", observation.Stateless),
		attribute.Bool("builder", observation.Builder),
		attribute.Bool("success", observation.Success),
	}
	if observation.ErrorCode != "" {
		attrs = append(attrs, attribute.String("error_code", observation.ErrorCode))
	}

	ctx := context.Background()
	o.builds.Add(ctx, 1, metric.WithAttributes(attrs...))
	if observation.CacheHit {
		o.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("adapter", observation.Name)))
		return
	}
	o.latency.Record(ctx, seconds(observation.DurationMS), metric.WithAttributes(
		attribute.String("adapter", observation.Name),
		attribute.String("operation", "build"),
	))
	if observation.InstanceID != "" {
		attrs = append(attrs, attribute.String("instance_id", observation.InstanceID))
	}
	o.span("adapter.build", observation.Success, observation.ErrorCode, attrs...)
}

// ObserveFallback records one fallback walk.
func (o *Observer) ObserveFallback(observation adapter.FallbackObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("selected", observation.Selected),
		attribute.Int("attempts", observation.Attempts),
		attribute.Bool("success", observation.Success),
	}
	o.fallbacks.Add(context.Background(), 1, metric.WithAttributes(attrs...))

	errorCode := ""
	if !observation.Success {
		errorCode = adapter.CodeFallbackExhausted
	}
	o.span("adapter.fallback", observation.Success, errorCode,
		append(attrs, attribute.StringSlice("candidates", observation.Candidates))...)
}

func (o *Observer) span(name string, success bool, errorCode string, attrs ...attribute.KeyValue) {
	if o.tracer == nil {
		return
	}
	_, span := o.tracer.Start(context.Background(), name, trace.WithAttributes(attrs...))
	if !success {
		span.SetStatus(codes.Error, errorCode)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func seconds(ms int64) float64 {
	return float64(time.Duration(ms)*time.Millisecond) / float64(time.Second)
}
