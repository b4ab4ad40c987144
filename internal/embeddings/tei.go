package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TEIConfig holds configuration for a Text Embeddings Inference server.
type TEIConfig struct {
	// BaseURL is the TEI server URL.
	// Default: http://localhost:8080
	BaseURL string

	// Model is the model the server was started with. Only used for identity.
	// Default: BAAI/bge-small-en-v1.5
	Model string

	// Timeout bounds each HTTP request.
	// Default: 30s
	Timeout time.Duration
}

// TEIProvider calls TEI's native /embed endpoint.
type TEIProvider struct {
	config  TEIConfig
	client  *http.Client
	metrics *Metrics
}

// NewTEIProvider creates the provider.
func NewTEIProvider(cfg TEIConfig, metrics *Metrics) (*TEIProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Model == "" {
		cfg.Model = "BAAI/bge-small-en-v1.5"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return nil, fmt.Errorf("%w: base URL must be http(s), got %q", ErrInvalidConfig, cfg.BaseURL)
	}

	return &TEIProvider{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		metrics: metrics,
	}, nil
}

// teiRequest is the request body for TEI embed endpoint.
type teiRequest struct {
	Inputs   []string `json:"inputs"`
	Truncate bool     `json:"truncate"`
}

func (p *TEIProvider) embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(teiRequest{Inputs: texts, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(p.config.BaseURL, "/")+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs", ErrEmbeddingFailed, len(vectors), len(texts))
	}
	return vectors, nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *TEIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		p.metrics.RecordGeneration(ctx, p.config.Model, "embed_documents", time.Since(start), len(texts), genErr)
	}()

	if len(texts) == 0 {
		genErr = fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	vectors, err := p.embed(ctx, texts)
	genErr = err
	return vectors, err
}

// EmbedQuery generates an embedding for a single query.
func (p *TEIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		p.metrics.RecordGeneration(ctx, p.config.Model, "embed_query", time.Since(start), 1, genErr)
	}()

	if text == "" {
		genErr = fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	vectors, err := p.embed(ctx, []string{text})
	if err != nil {
		genErr = err
		return nil, err
	}
	return vectors[0], nil
}

// Name returns "tei/<model>".
func (p *TEIProvider) Name() string {
	return "tei/" + p.config.Model
}

// Dimension returns the dimension inferred from the model name.
func (p *TEIProvider) Dimension() int {
	return detectDimensionFromModel(p.config.Model)
}

// Close is a no-op for TEI since it uses HTTP.
func (p *TEIProvider) Close() error {
	return nil
}
