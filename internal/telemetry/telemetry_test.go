package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/shutirtha-roy/tdp-chatbot-project/internal/config"
)

type discardExporter struct{}

func (discardExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(k)
}

func (discardExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

func (discardExporter) Export(context.Context, *metricdata.ResourceMetrics) error { return nil }
func (discardExporter) ForceFlush(context.Context) error                         { return nil }
func (discardExporter) Shutdown(context.Context) error                           { return nil }

func TestNew_DisabledIsNoop(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig(), nil)
	require.NoError(t, err)
	assert.False(t, tel.Enabled())
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.NotNil(t, tel.LoggerProvider())
}

func TestNew_ExportsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	cfg := NewDefaultConfig()
	cfg.Enabled = true

	tel, err := New(context.Background(), cfg, nil, WithSpanExporter(exp), WithMetricExporter(discardExporter{}))
	require.NoError(t, err)
	require.True(t, tel.Enabled())

	_, span := tel.tracerProvider.Tracer("test").Start(context.Background(), "Store.Search")
	span.End()
	require.NoError(t, tel.ForceFlush(context.Background()))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "Store.Search", spans[0].Name)
	name, ok := spans[0].Resource.Set().Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "tdpchat", name.AsString())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, tel.Shutdown(ctx))
}

func TestNew_RejectsInvalid(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = "collector.example.com:4317"

	_, err := New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "insecure")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"disabled ignores everything", func(c *Config) { c.Endpoint = "" }, false},
		{"local insecure", func(c *Config) { c.Enabled = true }, false},
		{"ipv6 loopback", func(c *Config) { c.Enabled = true; c.Endpoint = "[::1]:4317" }, false},
		{"http scheme local", func(c *Config) { c.Enabled = true; c.Protocol = "http/protobuf"; c.Endpoint = "http://127.0.0.1:4318" }, false},
		{"remote tls", func(c *Config) { c.Enabled = true; c.Insecure = false; c.Endpoint = "otel.example.com:4317" }, false},
		{"remote insecure", func(c *Config) { c.Enabled = true; c.Endpoint = "otel.example.com:4317" }, true},
		{"no endpoint", func(c *Config) { c.Enabled = true; c.Endpoint = "" }, true},
		{"bad protocol", func(c *Config) { c.Enabled = true; c.Protocol = "udp" }, true},
		{"bad rate", func(c *Config) { c.Enabled = true; c.SampleRate = 1.5 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.TelemetryConfig{
		Enabled:      true,
		Endpoint:     "localhost:4318",
		Protocol:     "http/protobuf",
		Insecure:     true,
		SampleRate:   0.25,
		ExportPeriod: config.Duration(time.Minute),
	}, "v1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "http/protobuf", cfg.Protocol)
	assert.Equal(t, 0.25, cfg.SampleRate)
	assert.Equal(t, time.Minute, cfg.ExportPeriod)
	assert.Equal(t, "v1.2.3", cfg.ServiceVersion)
	assert.Equal(t, "tdpchat", cfg.ServiceName)
	assert.NoError(t, cfg.Validate())
}

func TestTestTelemetry_RecordsGlobalSpans(t *testing.T) {
	tt := NewTestTelemetry()

	_, span := otel.Tracer("tdpchat.test").Start(context.Background(), "Tracker.Increment")
	span.End()

	tt.AssertSpanExists(t, "Tracker.Increment")
	assert.Nil(t, tt.SpanByName("Store.Open"))
}
