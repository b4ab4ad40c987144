package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/shutirtha-roy/tdp-chatbot-project/internal/config"
	"github.com/shutirtha-roy/tdp-chatbot-project/internal/conversation"
	"github.com/shutirtha-roy/tdp-chatbot-project/internal/embeddings"
	"github.com/shutirtha-roy/tdp-chatbot-project/internal/generation"
	"github.com/shutirtha-roy/tdp-chatbot-project/internal/logging"
	"github.com/shutirtha-roy/tdp-chatbot-project/internal/services"
	"github.com/shutirtha-roy/tdp-chatbot-project/internal/telemetry"
	"github.com/shutirtha-roy/tdp-chatbot-project/internal/topics"
	"github.com/shutirtha-roy/tdp-chatbot-project/internal/vectorstore"
)

// app holds the wired components for one command invocation.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	tel      *telemetry.Telemetry
	embedder embeddings.Provider
	reg      services.Registry
	bot      *services.Chatbot
}

// newApp loads configuration and wires every component. Callers must call
// close.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logCfg, err := logging.FromConfig(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logging config: %w", err)
	}
	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry, version), nil)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return nil, errors.Join(err, tel.Shutdown(ctx))
	}
	zl := logger.Underlying()

	a := &app{cfg: cfg, logger: logger, tel: tel}
	if err := a.wire(ctx, zl); err != nil {
		return nil, errors.Join(err, a.close(ctx))
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, zl *zap.Logger) error {
	cfg := a.cfg

	emb, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: cfg.Embeddings.Provider,
		Model:    cfg.Embeddings.Model,
		BaseURL:  cfg.Embeddings.BaseURL,
		APIKey:   cfg.Embeddings.APIKey.Value(),
		CacheDir: cfg.Embeddings.CacheDir,
	}, zl)
	if err != nil {
		return fmt.Errorf("embeddings: %w", err)
	}
	a.embedder = emb

	knowledge, err := a.openStore(ctx, cfg.Store.Path, cfg.Store.Collection, false, zl)
	if err != nil {
		return fmt.Errorf("knowledge index: %w", err)
	}
	topicIndex, err := a.openStore(ctx, cfg.Topics.IndexPath, cfg.Store.Collection+"_topics", true, zl)
	if err != nil {
		return errors.Join(fmt.Errorf("topic index: %w", err), knowledge.Close())
	}

	closeStores := func(err error) error {
		return errors.Join(err, knowledge.Close(), topicIndex.Close())
	}

	tracker, err := topics.New(topics.Config{Path: cfg.Topics.Path, DefaultN: cfg.Topics.DefaultN}, zl)
	if err != nil {
		return closeStores(err)
	}

	llm, err := generation.NewLLMGenerator(generation.ModelConfig{
		Provider:      cfg.Generation.Provider,
		Model:         cfg.Generation.Model,
		BaseURL:       cfg.Generation.BaseURL,
		APIKey:        cfg.Generation.APIKey.Value(),
		Temperature:   cfg.Generation.Temperature,
		MaxTokens:     cfg.Generation.MaxTokens,
		FakeResponses: cfg.Generation.FakeResponses,
	}, zl)
	if err != nil {
		return closeStores(fmt.Errorf("generation: %w", err))
	}
	gen := generation.NewResilient(llm, generation.ResilientConfig{
		AttemptTimeout: cfg.Generation.AttemptTimeout.Duration(),
		MaxRetries:     cfg.Generation.MaxRetries,
		BaseBackoff:    cfg.Generation.BaseBackoff.Duration(),
		RateLimit:      cfg.Generation.RateLimit,
		Burst:          cfg.Generation.Burst,
	}, zl)

	s := cfg.Store.Search
	engine, err := conversation.NewEngine(knowledge, gen, conversation.Config{
		Retrieval: vectorstore.SearchOptions{
			K:         s.K,
			Lambda:    float32(s.Lambda),
			Threshold: float32(s.Threshold),
			FetchK:    s.FetchK,
		},
	}, zl)
	if err != nil {
		return closeStores(err)
	}

	a.reg = services.NewRegistry(services.Options{
		Knowledge:  knowledge,
		TopicIndex: topicIndex,
		Topics:     tracker,
		Engine:     engine,
		Generator:  gen,
	})
	a.bot = services.NewChatbot(a.reg, zl)
	return nil
}

// openStore opens a chromem index at path or a qdrant collection,
// depending on the configured backend.
func (a *app) openStore(ctx context.Context, path, collection string, skipSeed bool, zl *zap.Logger) (*vectorstore.Store, error) {
	cfg := a.cfg.Store

	var (
		idx vectorstore.Index
		err error
	)
	switch cfg.Backend {
	case "qdrant":
		idx, err = vectorstore.NewQdrantIndex(vectorstore.QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			Collection: collection,
			APIKey:     cfg.Qdrant.APIKey.Value(),
			UseTLS:     cfg.Qdrant.UseTLS,
		}, zl)
	default:
		idx, err = vectorstore.NewChromemIndex(vectorstore.ChromemConfig{
			Path:       path,
			Collection: collection,
			Compress:   cfg.Compress,
		}, zl)
	}
	if err != nil {
		return nil, err
	}

	store, err := vectorstore.Open(ctx, vectorstore.Config{
		Model:        a.embedder.Name(),
		Dimension:    a.embedder.Dimension(),
		SkipSeed:     skipSeed,
		EmbedTimeout: cfg.EmbedTimeout.Duration(),
	}, idx, a.embedder, zl)
	if err != nil {
		return nil, errors.Join(err, idx.Close())
	}
	return store, nil
}

func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.reg != nil {
		errs = append(errs, a.reg.Close())
	}
	if a.embedder != nil {
		errs = append(errs, a.embedder.Close())
	}
	if a.logger != nil {
		errs = append(errs, a.logger.Sync())
	}
	errs = append(errs, a.tel.Shutdown(ctx))
	return errors.Join(errs...)
}
