package otel_test

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/petal-labs/petaladapt/adapter"
	"github.com/petal-labs/petaladapt/manager"
	petalotel "github.com/petal-labs/petaladapt/otel"
	"github.com/petal-labs/petaladapt/providers"
	"github.com/petal-labs/petaladapt/registry"
)

func newTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return reader, mp
}

func newTestTracer() (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	return exporter, tp
}

// collectMetrics reads all metrics from the reader.
func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return &rm
}

// findMetric searches for a metric by name in the collected data.
func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, scope := range rm.ScopeMetrics {
		for i := range scope.Metrics {
			if scope.Metrics[i].Name == name {
				return &scope.Metrics[i]
			}
		}
	}
	return nil
}

func sumValue(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s type = %T, want Sum[int64]", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestObserverRecordsMetrics(t *testing.T) {
	reader, mp := newTestMeter()
	observer, err := petalotel.NewObserver(mp.Meter("test-observer"), noop.NewTracerProvider().Tracer("test-observer"))
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}

	table := registry.NewTableResolver()
	if err := providers.Register(table); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	m := manager.New(manager.WithResolver(table), manager.WithObserver(observer))
	_ = m.Registry().RegisterLazy("openai", providers.RefOpenAI, nil)
	_ = m.Registry().RegisterLazy("ghost", "providers.ghost", nil)

	if _, err := m.Get("openai", map[string]any{"strict": true}); err != nil {
		t.Fatalf("Get(openai) error = %v", err)
	}
	if _, err := m.Get("openai", map[string]any{"strict": true}); err != nil {
		t.Fatalf("Get(openai) error = %v", err)
	}
	if _, _, err := m.GetWithFallback([]string{"ghost", "openai"}, nil); err != nil {
		t.Fatalf("GetWithFallback() error = %v", err)
	}

	rm := collectMetrics(t, reader)

	resolutions := findMetric(rm, "petaladapt.registry.resolutions")
	if resolutions == nil {
		t.Fatal("petaladapt.registry.resolutions metric not found")
	}
	if got := sumValue(t, resolutions); got != 2 {
		t.Fatalf("resolutions = %d, want 2", got)
	}

	builds := findMetric(rm, "petaladapt.factory.builds")
	if builds == nil {
		t.Fatal("petaladapt.factory.builds metric not found")
	}
	if got := sumValue(t, builds); got != 4 {
		t.Fatalf("builds = %d, want 4", got)
	}

	hits := findMetric(rm, "petaladapt.factory.cache_hits")
	if hits == nil || sumValue(t, hits) != 1 {
		t.Fatal("petaladapt.factory.cache_hits should be 1")
	}

	fallbacks := findMetric(rm, "petaladapt.factory.fallbacks")
	if fallbacks == nil || sumValue(t, fallbacks) != 1 {
		t.Fatal("petaladapt.factory.fallbacks should be 1")
	}

	latency := findMetric(rm, "petaladapt.latency")
	if latency == nil {
		t.Fatal("petaladapt.latency metric not found")
	}
	if _, ok := latency.Data.(metricdata.Histogram[float64]); !ok {
		t.Fatalf("petaladapt.latency type = %T, want Histogram[float64]", latency.Data)
	}
}

func TestObserverRecordsSpans(t *testing.T) {
	_, mp := newTestMeter()
	exporter, tp := newTestTracer()
	observer, err := petalotel.NewObserver(mp.Meter("test"), tp.Tracer("test"))
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}

	observer.ObserveResolve(adapter.ResolveObservation{Name: "x", Reference: "pkg.x", Success: false, ErrorCode: adapter.CodeLoad})
	observer.ObserveBuild(adapter.BuildObservation{Name: "x", InstanceID: "id-1", Success: true})
	observer.ObserveBuild(adapter.BuildObservation{Name: "x", CacheHit: true, Success: true})
	observer.ObserveFallback(adapter.FallbackObservation{Candidates: []string{"x"}, Attempts: 1})

	spans := exporter.GetSpans()
	if len(spans) != 3 {
		t.Fatalf("spans = %d, want 3", len(spans))
	}
	names := []string{spans[0].Name, spans[1].Name, spans[2].Name}
	want := []string{"adapter.resolve", "adapter.build", "adapter.fallback"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("span names = %v, want %v", names, want)
		}
	}
	if spans[0].Status.Description != adapter.CodeLoad {
		t.Fatalf("resolve span status = %+v", spans[0].Status)
	}
}

func TestNilObserverIsSafe(t *testing.T) {
	var observer *petalotel.Observer
	observer.ObserveResolve(adapter.ResolveObservation{})
	observer.ObserveBuild(adapter.BuildObservation{})
	observer.ObserveFallback(adapter.FallbackObservation{})
}
