// Package config provides configuration loading for tdpchat.
//
// Values come from hardcoded defaults, an optional YAML file and TDPCHAT_
// prefixed environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete tdpchat configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Store      StoreConfig      `koanf:"store"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Generation GenerationConfig `koanf:"generation"`
	Topics     TopicsConfig     `koanf:"topics"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// StoreConfig holds knowledge index configuration.
type StoreConfig struct {
	// Backend is "chromem" (embedded, file persisted) or "qdrant".
	Backend      string       `koanf:"backend"`
	Path         string       `koanf:"path"`
	Collection   string       `koanf:"collection"`
	Compress     bool         `koanf:"compress"`
	EmbedTimeout Duration     `koanf:"embed_timeout"`
	Qdrant       QdrantConfig `koanf:"qdrant"`
	Search       SearchConfig `koanf:"search"`
}

// QdrantConfig holds connection settings for the qdrant backend.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	UseTLS bool   `koanf:"use_tls"`
	APIKey Secret `koanf:"api_key"`
}

// SearchConfig holds the MMR options used to retrieve conversation context.
type SearchConfig struct {
	K         int     `koanf:"k"`
	Lambda    float64 `koanf:"lambda"`
	Threshold float64 `koanf:"threshold"`
	FetchK    int     `koanf:"fetch_k"`
}

// EmbeddingsConfig holds embedding provider configuration.
type EmbeddingsConfig struct {
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
	APIKey   Secret `koanf:"api_key"`
	CacheDir string `koanf:"cache_dir"`
}

// GenerationConfig holds chat model and retry configuration.
type GenerationConfig struct {
	Provider       string   `koanf:"provider"`
	Model          string   `koanf:"model"`
	BaseURL        string   `koanf:"base_url"`
	APIKey         Secret   `koanf:"api_key"`
	Temperature    float64  `koanf:"temperature"`
	MaxTokens      int      `koanf:"max_tokens"`
	AttemptTimeout Duration `koanf:"attempt_timeout"`
	MaxRetries     int      `koanf:"max_retries"`
	BaseBackoff    Duration `koanf:"base_backoff"`
	RateLimit      float64  `koanf:"rate_limit"`
	Burst          int      `koanf:"burst"`
	// FakeResponses feeds the "fake" provider.
	FakeResponses []string `koanf:"fake_responses"`
}

// TopicsConfig holds topic tracking configuration.
type TopicsConfig struct {
	Path      string `koanf:"path"`
	IndexPath string `koanf:"index_path"`
	DefaultN  int    `koanf:"default_n"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level    string            `koanf:"level"`
	Format   string            `koanf:"format"`
	Stdout   bool              `koanf:"stdout"`
	OTEL     bool              `koanf:"otel"`
	Caller   bool              `koanf:"caller"`
	Sampling bool              `koanf:"sampling"`
	Fields   map[string]string `koanf:"fields"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled      bool     `koanf:"enabled"`
	Endpoint     string   `koanf:"endpoint"`
	Protocol     string   `koanf:"protocol"`
	Insecure     bool     `koanf:"insecure"`
	SampleRate   float64  `koanf:"sample_rate"`
	ExportPeriod Duration `koanf:"export_period"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Store: StoreConfig{
			Backend:      "chromem",
			Path:         "data/faiss_index",
			Collection:   "swinburne_chat_bot",
			EmbedTimeout: Duration(30 * time.Second),
			Qdrant: QdrantConfig{
				Host: "localhost",
				Port: 6334,
			},
			Search: SearchConfig{
				K:         1,
				Lambda:    0.1,
				Threshold: 0.1,
				FetchK:    20,
			},
		},
		Embeddings: EmbeddingsConfig{
			Provider: "openai",
		},
		Generation: GenerationConfig{
			Provider:       "openai",
			Model:          "gpt-4-0125-preview",
			Temperature:    0.5,
			AttemptTimeout: Duration(60 * time.Second),
			MaxRetries:     3,
			BaseBackoff:    Duration(time.Second),
			RateLimit:      50.0 / 60.0,
			Burst:          5,
		},
		Topics: TopicsConfig{
			Path:      "topics.csv",
			IndexPath: "data/topics_index",
			DefaultN:  4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Stdout: true,
			Caller: true,
		},
		Telemetry: TelemetryConfig{
			Endpoint:     "localhost:4317",
			Protocol:     "grpc",
			Insecure:     true,
			SampleRate:   1.0,
			ExportPeriod: Duration(15 * time.Second),
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server shutdown timeout must be positive"))
	}

	switch c.Store.Backend {
	case "chromem":
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store path is required for the chromem backend"))
		}
	case "qdrant":
		if c.Store.Qdrant.Host == "" {
			errs = append(errs, errors.New("store qdrant host is required"))
		}
		if c.Store.Qdrant.Port < 1 || c.Store.Qdrant.Port > 65535 {
			errs = append(errs, fmt.Errorf("invalid qdrant port: %d", c.Store.Qdrant.Port))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q (must be chromem or qdrant)", c.Store.Backend))
	}
	if c.Store.Collection == "" {
		errs = append(errs, errors.New("store collection is required"))
	}

	s := c.Store.Search
	if s.K < 1 {
		errs = append(errs, fmt.Errorf("search k must be >= 1, got %d", s.K))
	}
	if s.Lambda < 0 || s.Lambda > 1 {
		errs = append(errs, fmt.Errorf("search lambda must be in [0,1], got %g", s.Lambda))
	}
	if s.Threshold < -1 || s.Threshold > 1 {
		errs = append(errs, fmt.Errorf("search threshold must be in [-1,1], got %g", s.Threshold))
	}
	if s.FetchK < 0 {
		errs = append(errs, fmt.Errorf("search fetch_k must be >= 0, got %d", s.FetchK))
	}

	switch c.Embeddings.Provider {
	case "openai", "fastembed", "tei":
	default:
		errs = append(errs, fmt.Errorf("unknown embeddings provider %q", c.Embeddings.Provider))
	}

	switch c.Generation.Provider {
	case "openai", "fake":
	default:
		errs = append(errs, fmt.Errorf("unknown generation provider %q", c.Generation.Provider))
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		errs = append(errs, fmt.Errorf("generation temperature must be in [0,2], got %g", c.Generation.Temperature))
	}
	if c.Generation.MaxRetries < 0 {
		errs = append(errs, errors.New("generation max_retries cannot be negative"))
	}
	if c.Generation.RateLimit < 0 {
		errs = append(errs, errors.New("generation rate_limit cannot be negative"))
	}

	if c.Topics.Path == "" {
		errs = append(errs, errors.New("topics path is required"))
	}
	if c.Topics.DefaultN < 1 {
		errs = append(errs, fmt.Errorf("topics default_n must be >= 1, got %d", c.Topics.DefaultN))
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format))
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		errs = append(errs, errors.New("telemetry endpoint is required when telemetry is enabled"))
	}

	return errors.Join(errs...)
}
