package config

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"backend", func(c *Config) { c.Store.Backend = "faiss" }, "unknown store backend"},
		{"chromem path", func(c *Config) { c.Store.Path = "" }, "store path is required"},
		{"k", func(c *Config) { c.Store.Search.K = 0 }, "search k"},
		{"lambda", func(c *Config) { c.Store.Search.Lambda = -0.1 }, "search lambda"},
		{"threshold", func(c *Config) { c.Store.Search.Threshold = 2 }, "search threshold"},
		{"embeddings provider", func(c *Config) { c.Embeddings.Provider = "cohere" }, "unknown embeddings provider"},
		{"generation provider", func(c *Config) { c.Generation.Provider = "anthropic" }, "unknown generation provider"},
		{"temperature", func(c *Config) { c.Generation.Temperature = 3 }, "temperature"},
		{"topics path", func(c *Config) { c.Topics.Path = "" }, "topics path"},
		{"default n", func(c *Config) { c.Topics.DefaultN = 0 }, "default_n"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging format"},
		{"telemetry endpoint", func(c *Config) { c.Telemetry.Enabled = true; c.Telemetry.Endpoint = "" }, "telemetry endpoint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = -1
	cfg.Topics.DefaultN = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server port")
	assert.Contains(t, err.Error(), "default_n")
}

func TestSecret_NeverPrints(t *testing.T) {
	s := Secret("sk-live-123")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.NotContains(t, fmt.Sprintf("%#v", s), "sk-live")
	assert.Equal(t, "sk-live-123", s.Value())

	out, err := json.Marshal(struct{ Key Secret }{s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Key":"[REDACTED]"}`, string(out))

	assert.Empty(t, Secret("").String())
	assert.False(t, Secret("").IsSet())
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
