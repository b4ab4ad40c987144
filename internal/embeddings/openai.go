package embeddings

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIConfig configures the langchaingo-backed provider. Any
// OpenAI-compatible endpoint works, including TEI's /v1 route.
type OpenAIConfig struct {
	// BaseURL overrides the API endpoint. Empty uses api.openai.com.
	BaseURL string

	// Model is the embedding model.
	// Default: "text-embedding-3-small"
	Model string

	// APIKey is required by api.openai.com; self-hosted endpoints may ignore it.
	APIKey string
}

// OpenAIProvider embeds text through langchaingo's OpenAI client.
type OpenAIProvider struct {
	embedder  embeddings.Embedder
	model     string
	dimension atomic.Int64
	metrics   *Metrics
}

// NewOpenAIProvider creates the provider. No request is made until the first
// embedding call.
func NewOpenAIProvider(cfg OpenAIConfig, metrics *Metrics) (*OpenAIProvider, error) {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		// langchaingo requires a token, use placeholder for self-hosted endpoints
		apiKey = "placeholder"
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return newOpenAIProvider(embedder, cfg.Model, metrics), nil
}

func newOpenAIProvider(embedder embeddings.Embedder, model string, metrics *Metrics) *OpenAIProvider {
	p := &OpenAIProvider{embedder: embedder, model: model, metrics: metrics}
	p.dimension.Store(int64(detectDimensionFromModel(model)))
	return p
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		p.metrics.RecordGeneration(ctx, p.model, "embed_documents", time.Since(start), len(texts), genErr)
	}()

	if len(texts) == 0 {
		genErr = fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		genErr = fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		return nil, genErr
	}
	if len(vectors) > 0 {
		p.dimension.CompareAndSwap(0, int64(len(vectors[0])))
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		p.metrics.RecordGeneration(ctx, p.model, "embed_query", time.Since(start), 1, genErr)
	}()

	if text == "" {
		genErr = fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	vector, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		genErr = fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		return nil, genErr
	}
	p.dimension.CompareAndSwap(0, int64(len(vector)))
	return vector, nil
}

// Name returns "openai/<model>".
func (p *OpenAIProvider) Name() string {
	return "openai/" + p.model
}

// Dimension returns the known or learned embedding dimension.
func (p *OpenAIProvider) Dimension() int {
	return int(p.dimension.Load())
}

// Close is a no-op; the client is plain HTTP.
func (p *OpenAIProvider) Close() error {
	return nil
}
