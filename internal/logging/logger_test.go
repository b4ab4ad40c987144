package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shutirtha-roy/tdp-chatbot-project/internal/config"
)

func bufferLogger(t *testing.T, mutate func(*Config)) (*Logger, *bytes.Buffer) {
	t.Helper()
	cfg := NewDefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	var buf bytes.Buffer
	logger, err := newLogger(cfg, &buf, nil)
	require.NoError(t, err)
	return logger, &buf
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestLogger_JSONWithConstantFields(t *testing.T) {
	logger, buf := bufferLogger(t, nil)

	logger.Info(context.Background(), "index loaded", zap.Int("documents", 4))

	entries := lines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "index loaded", entries[0]["msg"])
	assert.Equal(t, "tdpchat", entries[0]["service"])
	assert.EqualValues(t, 4, entries[0]["documents"])
	assert.Contains(t, entries[0], "caller")
}

func TestLogger_LevelFiltering(t *testing.T) {
	logger, buf := bufferLogger(t, func(c *Config) { c.Level = zapcore.WarnLevel })
	ctx := context.Background()

	logger.Debug(ctx, "dropped")
	logger.Info(ctx, "dropped")
	logger.Warn(ctx, "kept")
	logger.Error(ctx, "kept")

	assert.Len(t, lines(t, buf), 2)
	assert.False(t, logger.Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Enabled(zapcore.ErrorLevel))
}

func TestLogger_TraceLevel(t *testing.T) {
	logger, buf := bufferLogger(t, func(c *Config) { c.Level = TraceLevel })

	logger.Trace(context.Background(), "prompt", zap.String("role", "system"))

	entries := lines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "trace", entries[0]["level"])
}

func TestLogger_ContextFields(t *testing.T) {
	logger, buf := bufferLogger(t, nil)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     trace.SpanID{2},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = WithSessionID(ctx, "3f2c9a10-5b7e-4d8a-9c1f-0e6b2a4d8c7e")
	ctx = WithRequestID(ctx, "req-1")

	logger.Info(ctx, "turn answered")

	entries := lines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, sc.TraceID().String(), entries[0]["trace_id"])
	assert.Equal(t, sc.SpanID().String(), entries[0]["span_id"])
	assert.Equal(t, "3f2c9a10-5b7e-4d8a-9c1f-0e6b2a4d8c7e", entries[0]["session.id"])
	assert.Equal(t, "req-1", entries[0]["request.id"])
}

func TestLogger_RedactsKeysPatternsAndMessage(t *testing.T) {
	logger, buf := bufferLogger(t, nil)

	logger.With(zap.String("api_key", "abc")).Info(context.Background(),
		"calling with key sk-abcdefghijklmnopqrstuv",
		zap.String("authorization", "Bearer xyz"),
		zap.String("header", "Bearer xyz"),
		zap.String("topic", "fees"),
	)

	out := buf.String()
	assert.NotContains(t, out, "abc\"")
	assert.NotContains(t, out, "xyz")
	assert.NotContains(t, out, "sk-abcdefghijklmnopqrstuv")

	entries := lines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "[REDACTED]", entries[0]["api_key"])
	assert.Equal(t, "[REDACTED]", entries[0]["authorization"])
	assert.Equal(t, "fees", entries[0]["topic"])
}

func TestSecretField(t *testing.T) {
	logger, buf := bufferLogger(t, func(c *Config) { c.Redaction.Enabled = false })

	logger.Info(context.Background(), "configured", Secret("generation_key", config.Secret("sk-123")))

	entries := lines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "[REDACTED:6]", entries[0]["generation_key"])
}

func TestSampling_NeverDropsErrors(t *testing.T) {
	logger, buf := bufferLogger(t, func(c *Config) {
		c.Sampling = SamplingConfig{Enabled: true, Tick: time.Hour, Initial: 2, Thereafter: 0}
	})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		logger.Info(ctx, "repeated")
		logger.Error(ctx, "failure")
	}

	var info, errs int
	for _, e := range lines(t, buf) {
		switch e["level"] {
		case "info":
			info++
		case "error":
			errs++
		}
	}
	assert.Equal(t, 2, info)
	assert.Equal(t, 10, errs)
}

func TestFromConfig(t *testing.T) {
	cfg, err := FromConfig(config.LoggingConfig{
		Level:  "debug",
		Format: "console",
		Stdout: true,
		Fields: map[string]string{"env": "test"},
	})
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.False(t, cfg.Caller)
	assert.Equal(t, "test", cfg.Fields["env"])
	assert.Equal(t, "tdpchat", cfg.Fields["service"])

	_, err = FromConfig(config.LoggingConfig{Level: "loud", Stdout: true})
	assert.Error(t, err)

	_, err = FromConfig(config.LoggingConfig{Level: "info"})
	assert.Error(t, err, "no output enabled")
}

func TestLevelFromString(t *testing.T) {
	l, err := LevelFromString("trace")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, l)

	l, err = LevelFromString("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, l)
}
