package telemetry

import (
	"context"
	"sync"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var (
	testOnce     sync.Once
	testRecorder *tracetest.SpanRecorder
	testReader   *sdkmetric.ManualReader
)

// TestTelemetry records spans and metrics in memory.
//
// The otel globals only delegate once per process, so every TestTelemetry
// shares one recorder and sees the spans ended after it was created.
type TestTelemetry struct {
	offset int
}

// NewTestTelemetry installs in-memory global providers on first use.
func NewTestTelemetry() *TestTelemetry {
	testOnce.Do(func() {
		testRecorder = tracetest.NewSpanRecorder()
		otel.SetTracerProvider(trace.NewTracerProvider(trace.WithSpanProcessor(testRecorder)))
		testReader = sdkmetric.NewManualReader()
		otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(testReader)))
	})
	return &TestTelemetry{offset: len(testRecorder.Ended())}
}

// Spans returns spans ended since creation.
func (t *TestTelemetry) Spans() []trace.ReadOnlySpan {
	ended := testRecorder.Ended()
	if t.offset > len(ended) {
		return nil
	}
	return ended[t.offset:]
}

// SpanByName returns the first span named name, or nil.
func (t *TestTelemetry) SpanByName(name string) trace.ReadOnlySpan {
	for _, span := range t.Spans() {
		if span.Name() == name {
			return span
		}
	}
	return nil
}

// AssertSpanExists fails tb unless a span named name ended.
func (t *TestTelemetry) AssertSpanExists(tb testing.TB, name string) {
	tb.Helper()
	if t.SpanByName(name) == nil {
		names := make([]string, 0, len(t.Spans()))
		for _, s := range t.Spans() {
			names = append(names, s.Name())
		}
		tb.Errorf("expected span %q not found, got: %v", name, names)
	}
}

// Metric collects and returns the named metric, or nil.
func (t *TestTelemetry) Metric(ctx context.Context, name string) *metricdata.Metrics {
	var rm metricdata.ResourceMetrics
	if err := testReader.Collect(ctx, &rm); err != nil {
		return nil
	}
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}
