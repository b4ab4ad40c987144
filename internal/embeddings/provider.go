package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrEmptyInput indicates empty or nil input texts
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider is the interface for embedding providers.
type Provider interface {
	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Name identifies the provider and model, e.g. "openai/text-embedding-3-small".
	Name() string
	// Dimension returns the embedding dimension, or 0 if unknown until first use.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is the provider type: "openai" (default), "fastembed" or "tei".
	Provider string
	// Model is the embedding model name.
	Model string
	// BaseURL is the API base URL (openai-compatible or TEI).
	BaseURL string
	// APIKey authenticates against OpenAI-compatible APIs.
	APIKey string
	// CacheDir is the model cache directory (only used for FastEmbed).
	CacheDir string
}

// detectDimensionFromModel returns the embedding dimension for a model name,
// or 0 when the model is not recognised.
func detectDimensionFromModel(model string) int {
	if dim, ok := fastEmbedModelDimension(model); ok {
		return dim
	}
	switch {
	case strings.Contains(model, "text-embedding-3-large"):
		return 3072
	case strings.Contains(model, "text-embedding-3-small"), strings.Contains(model, "ada-002"):
		return 1536
	case strings.Contains(model, "base"):
		return 768
	case strings.Contains(model, "large"):
		return 1024
	case strings.Contains(model, "small"), strings.Contains(model, "mini"):
		return 384
	default:
		return 0
	}
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := NewMetrics(logger)

	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case "openai", "":
		p, err = NewOpenAIProvider(OpenAIConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
		}, metrics)
	case "fastembed":
		p, err = NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	case "tei":
		p, err = NewTEIProvider(TEIConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}, metrics)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
