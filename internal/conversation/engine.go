package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shutirtha-roy/tdp-chatbot-project/internal/generation"
	"github.com/shutirtha-roy/tdp-chatbot-project/internal/vectorstore"
)

var tracer = otel.Tracer("tdpchat.conversation")

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("query cannot be empty")

// Searcher retrieves context passages.
type Searcher interface {
	Search(ctx context.Context, query string, opts vectorstore.SearchOptions) ([]vectorstore.Document, error)
}

// Config holds Engine configuration.
type Config struct {
	// Retrieval controls context lookup.
	// Default: K=1, Lambda=0.1, Threshold=0.1, FetchK=20
	Retrieval vectorstore.SearchOptions

	// SystemInstruction overrides the Swinburne instruction.
	SystemInstruction string
}

// DefaultRetrieval returns the single best passage, with diversity weighted
// heavily for the rare case K is raised.
func DefaultRetrieval() vectorstore.SearchOptions {
	return vectorstore.SearchOptions{K: 1, Lambda: 0.1, Threshold: 0.1, FetchK: 20}
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Retrieval.K == 0 {
		c.Retrieval = DefaultRetrieval()
	}
	if c.SystemInstruction == "" {
		c.SystemInstruction = SystemInstruction
	}
}

// Answer is the outcome of one turn.
type Answer struct {
	// Text is the generated answer.
	Text string

	// Related holds up to MaxRelatedQuestions follow-up questions.
	Related []string

	// Context is what retrieval supplied to the prompt.
	Context []vectorstore.Document

	// Degraded is set when retrieval failed and Text is ungrounded.
	Degraded bool
}

// Engine answers queries against a knowledge store.
type Engine struct {
	store     Searcher
	generator generation.Generator
	config    Config
	logger    *zap.Logger
}

// NewEngine creates an Engine.
func NewEngine(store Searcher, generator generation.Generator, config Config, logger *zap.Logger) (*Engine, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if generator == nil {
		return nil, errors.New("generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Retrieval.Validate(); err != nil {
		return nil, fmt.Errorf("retrieval options: %w", err)
	}
	return &Engine{store: store, generator: generator, config: config, logger: logger}, nil
}

// Ask runs one turn in session.
//
// The query is appended to the session first and stays there even if the
// turn fails. The answer and the related questions are generated
// concurrently; both must succeed. The answer is appended to the session
// whenever its own call succeeded.
func (e *Engine) Ask(ctx context.Context, session *Session, query string) (*Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	ctx, span := tracer.Start(ctx, "Engine.Ask")
	defer span.End()

	span.SetAttributes(attribute.String("session.id", session.ID))

	session.turn.Lock()
	defer session.turn.Unlock()

	history := session.Turns()
	session.append(generation.RoleUser, query)

	answer := &Answer{}
	answer.Context, answer.Degraded = e.retrieve(ctx, query)
	span.SetAttributes(
		attribute.Int("context_passages", len(answer.Context)),
		attribute.Bool("degraded", answer.Degraded),
	)

	passages := make([]string, len(answer.Context))
	for i, d := range answer.Context {
		passages[i] = d.Content
	}

	// The greeting exchange comes first so the history reads in order.
	req := generation.Request{
		SystemInstruction: e.config.SystemInstruction,
		History:           append(append([]generation.Turn{}, Greeting...), history...),
		Context:           passages,
		UserMessage:       query,
	}

	// A plain group: neither call cancels the other, so whether the answer
	// lands in history never depends on which call finishes first.
	var g errgroup.Group
	g.Go(func() error {
		text, err := e.generator.Generate(ctx, req)
		if err != nil {
			return err
		}
		answer.Text = text
		session.append(generation.RoleAssistant, text)
		return nil
	})
	g.Go(func() error {
		related, err := e.RelatedQuestions(ctx, query)
		if err != nil {
			return err
		}
		answer.Related = related
		return nil
	})

	if err := g.Wait(); err != nil {
		if !errors.Is(err, generation.ErrGenerationFailed) {
			err = fmt.Errorf("%w: %w", generation.ErrGenerationFailed, err)
		}
		TurnsTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn("turn failed",
			zap.String("session.id", session.ID),
			zap.Error(err),
		)
		return nil, err
	}

	TurnsTotal.WithLabelValues("answered").Inc()
	span.SetStatus(codes.Ok, "success")
	e.logger.Debug("turn answered",
		zap.String("session.id", session.ID),
		zap.Int("context_passages", len(answer.Context)),
		zap.Bool("degraded", answer.Degraded),
		zap.Int("related", len(answer.Related)),
	)
	return answer, nil
}

// retrieve looks up context. Failures are logged and yield no context.
func (e *Engine) retrieve(ctx context.Context, query string) ([]vectorstore.Document, bool) {
	docs, err := e.store.Search(ctx, query, e.config.Retrieval)
	if err != nil {
		DegradedRetrievalTotal.Inc()
		e.logger.Warn("retrieval failed, answering without context",
			zap.String("query", query),
			zap.Error(err),
		)
		return nil, true
	}
	return docs, false
}

// RelatedQuestions asks for up to three questions similar to query. It uses
// no retrieval and no session history.
func (e *Engine) RelatedQuestions(ctx context.Context, query string) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	text, err := e.generator.Generate(ctx, generation.Request{
		SystemInstruction: e.config.SystemInstruction,
		UserMessage:       RelatedQuestionsPrompt(query),
	})
	if err != nil {
		return nil, err
	}
	return ParseRelatedQuestions(text), nil
}
