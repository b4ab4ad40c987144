package embeddings

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"unicode"
)

// TestProvider is a deterministic bag-of-words embedder for tests. Every
// distinct lower-cased word gets its own dimension in order of first sight,
// so texts sharing words have positive cosine similarity and identical texts
// embed identically. It fails once more distinct words than dimensions have
// been seen.
type TestProvider struct {
	dimension int

	mu    sync.Mutex
	vocab map[string]int
	calls int
	err   error
}

// NewTestProvider creates a TestProvider with the given dimension.
func NewTestProvider(dimension int) *TestProvider {
	return &TestProvider{dimension: dimension, vocab: make(map[string]int)}
}

// FailWith makes every subsequent call return err (nil restores success).
func (p *TestProvider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Calls returns the number of embedding calls made.
func (p *TestProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func (p *TestProvider) embed(text string) ([]float32, error) {
	v := make([]float32, p.dimension)
	for _, tok := range tokenize(text) {
		i, ok := p.vocab[tok]
		if !ok {
			if len(p.vocab) >= p.dimension {
				return nil, fmt.Errorf("%w: vocabulary exceeds %d dimensions", ErrEmbeddingFailed, p.dimension)
			}
			i = len(p.vocab)
			p.vocab[tok] = i
		}
		v[i]++
	}

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum > 0 {
		norm := float32(1 / math.Sqrt(sum))
		for i := range v {
			v[i] *= norm
		}
	}
	return v, nil
}

// EmbedDocuments embeds each text.
func (p *TestProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.embed(t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// EmbedQuery embeds one text.
func (p *TestProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.embed(text)
}

// Name returns "test/bag-of-words".
func (p *TestProvider) Name() string { return "test/bag-of-words" }

// Dimension returns the configured dimension.
func (p *TestProvider) Dimension() int { return p.dimension }

// Close is a no-op.
func (p *TestProvider) Close() error { return nil }
