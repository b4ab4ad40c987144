package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/fake"
	"github.com/tmc/langchaingo/llms/openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("tdpchat.generation")

// ModelConfig selects and configures the chat model.
type ModelConfig struct {
	// Provider is "openai" (default) or "fake".
	Provider string

	// Model is the chat model name.
	// Default: "gpt-4-0125-preview"
	Model string

	// BaseURL overrides the OpenAI-compatible endpoint.
	BaseURL string

	// APIKey authenticates against the endpoint.
	APIKey string

	// Temperature is the sampling temperature.
	// Default: 0.5
	Temperature float64

	// MaxTokens caps completion length. Zero leaves it to the backend.
	MaxTokens int

	// FakeResponses are replayed in order by the "fake" provider.
	FakeResponses []string
}

// ApplyDefaults sets default values for unset fields.
func (c *ModelConfig) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Model == "" {
		c.Model = "gpt-4-0125-preview"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.5
	}
}

// LLMGenerator drives a langchaingo llms.Model.
type LLMGenerator struct {
	model       llms.Model
	name        string
	temperature float64
	maxTokens   int
	mapErr      func(error) error
	metrics     *Metrics
	logger      *zap.Logger
}

// NewLLMGenerator builds the configured model and wraps it.
func NewLLMGenerator(cfg ModelConfig, logger *zap.Logger) (*LLMGenerator, error) {
	cfg.ApplyDefaults()

	var (
		model  llms.Model
		mapErr func(error) error
	)
	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("creating OpenAI client: %w", err)
		}
		model, mapErr = llm, openai.MapError
	case "fake":
		if len(cfg.FakeResponses) == 0 {
			return nil, fmt.Errorf("%w: fake provider needs at least one response", ErrInvalidConfig)
		}
		model = fake.NewFakeLLM(cfg.FakeResponses)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}

	g := NewModelGenerator(model, cfg.Provider+"/"+cfg.Model, cfg.Temperature, logger)
	g.maxTokens = cfg.MaxTokens
	if mapErr != nil {
		g.mapErr = mapErr
	}
	return g, nil
}

// NewModelGenerator wraps an existing model. name is used for logs and
// metrics only.
func NewModelGenerator(model llms.Model, name string, temperature float64, logger *zap.Logger) *LLMGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	provider, _, _ := strings.Cut(name, "/")
	return &LLMGenerator{
		model:       model,
		name:        name,
		temperature: temperature,
		mapErr:      llms.NewErrorMapper(provider).Map,
		metrics:     NewMetrics(logger),
		logger:      logger,
	}
}

// Messages lays out a request as chat messages: the system instruction
// with the retrieved context appended, then History, then UserMessage.
func Messages(req Request) []llms.MessageContent {
	system := req.SystemInstruction
	if len(req.Context) > 0 {
		system += "\n\nContext:\n" + strings.Join(req.Context, "\n\n")
	}

	msgs := make([]llms.MessageContent, 0, len(req.History)+2)
	if system != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	for _, t := range req.History {
		role := llms.ChatMessageTypeHuman
		if t.Role == RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		msgs = append(msgs, llms.TextParts(role, t.Content))
	}
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, req.UserMessage))
	return msgs
}

// Generate sends the request and returns the first choice.
func (g *LLMGenerator) Generate(ctx context.Context, req Request) (string, error) {
	ctx, span := tracer.Start(ctx, "LLMGenerator.Generate")
	defer span.End()

	span.SetAttributes(
		attribute.String("model", g.name),
		attribute.Int("history_turns", len(req.History)),
		attribute.Int("context_passages", len(req.Context)),
	)

	start := time.Now()
	text, err := g.generate(ctx, req)
	g.metrics.RecordGeneration(ctx, g.name, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Debug("generation failed", zap.String("model", g.name), zap.Error(err))
		return "", err
	}

	span.SetStatus(codes.Ok, "success")
	return text, nil
}

func (g *LLMGenerator) generate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.UserMessage) == "" {
		return "", fmt.Errorf("%w: empty user message", ErrGenerationFailed)
	}

	opts := []llms.CallOption{llms.WithTemperature(g.temperature)}
	if g.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(g.maxTokens))
	}

	resp, err := g.model.GenerateContent(ctx, Messages(req), opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, g.mapErr(err))
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response from model", ErrGenerationFailed)
	}

	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", ErrGenerationFailed)
	}
	return text, nil
}

var _ Generator = (*LLMGenerator)(nil)
