package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shutirtha-roy/tdp-chatbot-project/internal/conversation"
	"github.com/shutirtha-roy/tdp-chatbot-project/internal/generation"
	"github.com/shutirtha-roy/tdp-chatbot-project/internal/vectorstore"
)

// ErrInvalidInput indicates a request the caller must fix.
var ErrInvalidInput = errors.New("invalid input")

// maxSpellingCalls bounds concurrent spelling corrections per AddTopics call.
const maxSpellingCalls = 4

// ChatResult is the outcome of Ask.
type ChatResult struct {
	SessionID string
	*conversation.Answer
}

// Chatbot implements the upstream operations.
type Chatbot struct {
	reg    Registry
	logger *zap.Logger
}

// NewChatbot creates a Chatbot over reg.
func NewChatbot(reg Registry, logger *zap.Logger) *Chatbot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chatbot{reg: reg, logger: logger}
}

// Ask answers query in the session named sessionID, creating the session if
// needed. An empty sessionID starts a new session.
func (c *Chatbot) Ask(ctx context.Context, sessionID, query string) (*ChatResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, conversation.ErrEmptyQuery)
	}
	session, id := c.reg.Sessions().Get(sessionID)
	answer, err := c.reg.Engine().Ask(ctx, session, query)
	if err != nil {
		return nil, err
	}
	return &ChatResult{SessionID: id, Answer: answer}, nil
}

// ResetSession clears a session's history.
func (c *Chatbot) ResetSession(id string) bool {
	return c.reg.Sessions().Reset(id)
}

// AddDocuments inserts texts into the knowledge index as documents carrying
// metadata. It returns the new document IDs.
func (c *Chatbot) AddDocuments(ctx context.Context, texts []string, metadata map[string]string) ([]string, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no documents", ErrInvalidInput)
	}
	docs := make([]vectorstore.Document, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: document %d is empty", ErrInvalidInput, i)
		}
		docs[i] = vectorstore.Document{Content: text, Metadata: metadata}
	}
	return c.reg.Knowledge().AddDocuments(ctx, docs)
}

// SpellingPrompt asks for a corrected topic.
func SpellingPrompt(topic string) string {
	return fmt.Sprintf("Correct the spelling of the following topic and return only the corrected text: '%s'", topic)
}

// CorrectSpelling normalizes one topic through the generator. Surrounding
// quotes are stripped; an empty completion falls back to the raw topic.
func (c *Chatbot) CorrectSpelling(ctx context.Context, topic string) (string, error) {
	raw := strings.TrimSpace(topic)
	text, err := c.reg.Generator().Generate(ctx, generation.Request{UserMessage: SpellingPrompt(raw)})
	if err != nil {
		return "", err
	}
	corrected := strings.TrimSpace(strings.Trim(strings.TrimSpace(text), `"'`))
	if corrected == "" {
		return raw, nil
	}
	return corrected, nil
}

// AddTopics spell-corrects raw topics, stores them in the topic index and
// counts them. Blank topics are ignored. It returns the corrected topics in
// input order. If only persisting the topic index fails, the topics are
// still counted and returned together with the ErrStorageUnavailable error.
func (c *Chatbot) AddTopics(ctx context.Context, raw []string) ([]string, error) {
	var inputs []string
	for _, t := range raw {
		if strings.TrimSpace(t) != "" {
			inputs = append(inputs, t)
		}
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no topics", ErrInvalidInput)
	}

	corrected := make([]string, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxSpellingCalls)
	for i, t := range inputs {
		g.Go(func() error {
			out, err := c.CorrectSpelling(gctx, t)
			if err != nil {
				return err
			}
			corrected[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if !errors.Is(err, generation.ErrGenerationFailed) {
			err = fmt.Errorf("%w: %w", generation.ErrGenerationFailed, err)
		}
		return nil, err
	}

	// A persist-only failure still counts the topics: they are in the
	// in-memory topic index, and counter and index must agree.
	var persistErr error
	if idx := c.reg.TopicIndex(); idx != nil {
		docs := make([]vectorstore.Document, len(corrected))
		for i, t := range corrected {
			docs[i] = vectorstore.Document{Content: t, Metadata: map[string]string{"kind": "topic"}}
		}
		ids, err := idx.AddDocuments(ctx, docs)
		switch {
		case err != nil && len(ids) == 0:
			return nil, fmt.Errorf("indexing topics: %w", err)
		case err != nil:
			persistErr = fmt.Errorf("persisting topic index: %w", err)
		}
	}

	if err := c.reg.Topics().Increment(ctx, corrected); err != nil {
		return nil, errors.Join(persistErr, fmt.Errorf("counting topics: %w", err))
	}

	if persistErr != nil {
		c.logger.Warn("topics counted but topic index not persisted",
			zap.Strings("topics", corrected),
			zap.Error(persistErr),
		)
		return corrected, persistErr
	}

	c.logger.Info("added topics", zap.Strings("topics", corrected))
	return corrected, nil
}

// SimilarTopics suggests topics. Without a query it returns the most
// counted topics; with one it asks for related questions.
func (c *Chatbot) SimilarTopics(ctx context.Context, query string) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return c.reg.Topics().Top(ctx, 0)
	}
	return c.reg.Engine().RelatedQuestions(ctx, query)
}

// Stats is a point-in-time view of stored state. Counts that could not be
// read are -1.
type Stats struct {
	Documents      int
	TopicDocuments int
	Topics         int
	Sessions       int
}

// Stats counts knowledge documents, indexed topics, distinct tracked topics
// and live sessions.
func (c *Chatbot) Stats(ctx context.Context) Stats {
	st := Stats{Documents: -1, TopicDocuments: -1, Topics: -1, Sessions: c.reg.Sessions().Len()}
	if n, err := c.reg.Knowledge().Count(ctx); err == nil {
		st.Documents = n
	}
	if idx := c.reg.TopicIndex(); idx != nil {
		if n, err := idx.Count(ctx); err == nil {
			st.TopicDocuments = n
		}
	}
	if counts, err := c.reg.Topics().Counts(ctx); err == nil {
		st.Topics = len(counts)
	}
	return st
}
