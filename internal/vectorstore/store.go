package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/shutirtha-roy/tdp-chatbot-project/internal/pathlock"
)

var storeTracer = otel.Tracer("tdpchat.vectorstore")

// SearchOptions controls diversity-aware retrieval.
type SearchOptions struct {
	// K is the maximum number of documents returned.
	K int

	// Lambda weighs relevance against diversity: 1 is pure relevance,
	// 0 is pure diversity.
	Lambda float32

	// Threshold drops candidates whose similarity to the query is lower.
	Threshold float32

	// FetchK is the size of the candidate pool ranked by MMR.
	// 0 ranks the whole index. Values below K are raised to K.
	FetchK int
}

// DefaultSearchOptions returns the options used when callers have no opinion.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{K: 4, Lambda: 0.5, Threshold: 0.1, FetchK: 20}
}

// Validate checks option ranges.
func (o SearchOptions) Validate() error {
	if o.K < 1 {
		return fmt.Errorf("%w: k must be positive, got %d", ErrInvalidSearch, o.K)
	}
	if o.Lambda < 0 || o.Lambda > 1 {
		return fmt.Errorf("%w: lambda must be in [0,1], got %v", ErrInvalidSearch, o.Lambda)
	}
	if o.Threshold < -1 || o.Threshold > 1 {
		return fmt.Errorf("%w: threshold must be in [-1,1], got %v", ErrInvalidSearch, o.Threshold)
	}
	if o.FetchK < 0 {
		return fmt.Errorf("%w: fetch_k must not be negative, got %d", ErrInvalidSearch, o.FetchK)
	}
	return nil
}

// Config holds Store configuration.
type Config struct {
	// Model identifies the embedding function. A persisted index built with
	// a different model is rejected with ErrCorruptIndex.
	Model string

	// Dimension is the embedder output size if known up front. Zero means
	// it is learned from the first vectors.
	Dimension int

	// Seed replaces SeedDocuments for a fresh index when non-nil.
	Seed []Document

	// SkipSeed creates a fresh index with no documents.
	SkipSeed bool

	// EmbedTimeout bounds each embedding call. Zero means no extra bound.
	EmbedTimeout time.Duration
}

// Store owns one Index and the Embedder that fills it.
type Store struct {
	index    Index
	embedder Embedder
	config   Config
	logger   *zap.Logger

	// lock is shared by every Store opened on the same location.
	lock     *sync.RWMutex
	identity Identity
}

// Open loads the index persisted at index.Location, or creates, seeds and
// persists a new one when none exists.
func Open(ctx context.Context, config Config, index Index, embedder Embedder, logger *zap.Logger) (*Store, error) {
	if index == nil {
		return nil, fmt.Errorf("%w: index is required", ErrInvalidConfig)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, span := storeTracer.Start(ctx, "Store.Open")
	defer span.End()

	s := &Store{
		index:    index,
		embedder: embedder,
		config:   config,
		logger:   logger,
		lock:     pathlock.For(index.Location()),
	}
	span.SetAttributes(attribute.String("location", index.Location()))

	s.lock.Lock()
	defer s.lock.Unlock()

	exists, err := index.Exists(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if exists {
		err = s.load(ctx)
	} else {
		err = s.create(ctx)
	}
	if err != nil {
		if errors.Is(err, ErrCorruptIndex) {
			CorruptIndexTotal.Inc()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	count, _ := index.Count(ctx)
	DocumentsTotal.WithLabelValues(index.Location()).Set(float64(count))
	span.SetAttributes(attribute.Bool("created", !exists), attribute.Int("documents", count))
	span.SetStatus(codes.Ok, "success")

	logger.Info("vector store opened",
		zap.String("location", index.Location()),
		zap.Bool("created", !exists),
		zap.Int("documents", count),
		zap.String("model", s.identity.Model),
		zap.Int("dimension", s.identity.Dimension),
	)

	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	id, err := s.index.Load(ctx)
	if err != nil {
		return err
	}
	if s.config.Model != "" && id.Model != "" && id.Model != s.config.Model {
		return fmt.Errorf("%w: index at %s was built with embedder %q, configured embedder is %q",
			ErrCorruptIndex, s.index.Location(), id.Model, s.config.Model)
	}
	if s.config.Dimension > 0 && id.Dimension > 0 && id.Dimension != s.config.Dimension {
		return fmt.Errorf("%w: index at %s has dimension %d, embedder produces %d",
			ErrCorruptIndex, s.index.Location(), id.Dimension, s.config.Dimension)
	}
	s.identity = id
	if id.Model == "" && s.config.Model != "" {
		// An index with no recorded embedder is adopted by this one.
		s.identity.Model = s.config.Model
		err := s.index.Save(ctx, s.identity)
		recordPersist(err)
		if err != nil {
			s.logger.Warn("failed to record embedder for index",
				zap.String("location", s.index.Location()),
				zap.String("model", s.config.Model),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *Store) create(ctx context.Context) error {
	s.identity = Identity{Model: s.config.Model, Dimension: s.config.Dimension}

	seed := s.config.Seed
	if seed == nil {
		seed = SeedDocuments()
	}
	if s.config.SkipSeed {
		seed = nil
	}

	if len(seed) > 0 {
		docs, vectors, err := s.prepare(ctx, seed)
		if err != nil {
			return err
		}
		if err := s.insert(ctx, docs, vectors); err != nil {
			return err
		}
	}

	err := s.index.Save(ctx, s.identity)
	recordPersist(err)
	if err != nil {
		return err
	}

	s.logger.Info("created vector index",
		zap.String("location", s.index.Location()),
		zap.Int("seed_documents", len(seed)),
	)
	return nil
}

// embedContext derives a context bounded by EmbedTimeout.
func (s *Store) embedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.EmbedTimeout > 0 {
		return context.WithTimeout(ctx, s.config.EmbedTimeout)
	}
	return context.WithCancel(ctx)
}

// prepare validates documents, assigns missing IDs and embeds them. Nothing
// touches the index here, so a failure leaves it unchanged.
func (s *Store) prepare(ctx context.Context, in []Document) ([]Document, [][]float32, error) {
	if len(in) == 0 {
		return nil, nil, ErrEmptyDocuments
	}

	docs := make([]Document, len(in))
	texts := make([]string, len(in))
	for i, doc := range in {
		if strings.TrimSpace(doc.Content) == "" {
			return nil, nil, fmt.Errorf("%w: document %d has empty content", ErrEmptyDocuments, i)
		}
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}
		docs[i] = doc
		texts[i] = doc.Content
	}

	ectx, cancel := s.embedContext(ctx)
	defer cancel()

	vectors, err := s.embedder.EmbedDocuments(ectx, texts)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(docs) {
		return nil, nil, fmt.Errorf("%w: embedder returned %d vectors for %d documents", ErrEmbeddingFailed, len(vectors), len(docs))
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return nil, nil, fmt.Errorf("%w: vector %d has dimension %d, batch has %d", ErrEmbeddingFailed, i, len(v), dim)
		}
	}

	return docs, vectors, nil
}

// insert checks the batch dimension against the index identity and inserts.
// Caller holds the write lock.
func (s *Store) insert(ctx context.Context, docs []Document, vectors [][]float32) error {
	dim := len(vectors[0])
	if s.identity.Dimension != 0 && s.identity.Dimension != dim {
		return fmt.Errorf("%w: index at %s has dimension %d, embedder produced %d",
			ErrCorruptIndex, s.index.Location(), s.identity.Dimension, dim)
	}
	if err := s.index.Insert(ctx, docs, vectors); err != nil {
		return err
	}
	s.identity.Dimension = dim
	return nil
}

// AddDocuments embeds and inserts docs, then persists the whole index.
//
// Embedding happens before anything is inserted, so an embedding failure
// leaves the index untouched. A failed persist returns ErrStorageUnavailable
// but the in-memory index keeps the new documents.
func (s *Store) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	ctx, span := storeTracer.Start(ctx, "Store.AddDocuments")
	defer span.End()

	span.SetAttributes(
		attribute.String("location", s.index.Location()),
		attribute.Int("document_count", len(docs)),
	)

	prepared, vectors, err := s.prepare(ctx, docs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.index.Refresh(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := s.insert(ctx, prepared, vectors); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	ids := make([]string, len(prepared))
	for i, d := range prepared {
		ids[i] = d.ID
	}

	count, _ := s.index.Count(ctx)
	DocumentsTotal.WithLabelValues(s.index.Location()).Set(float64(count))

	err = s.index.Save(ctx, s.identity)
	recordPersist(err)
	if err != nil {
		s.logger.Error("persisting vector index failed; documents kept in memory only",
			zap.String("location", s.index.Location()),
			zap.Int("document_count", len(prepared)),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ids, err
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("added documents",
		zap.String("location", s.index.Location()),
		zap.Int("count", len(prepared)),
		zap.Int("total", count),
	)

	return ids, nil
}

// Search returns up to opts.K documents ranked by maximal marginal relevance.
// An empty index yields an empty result, not an error.
func (s *Store) Search(ctx context.Context, query string, opts SearchOptions) ([]Document, error) {
	start := time.Now()
	defer func() { SearchDuration.Observe(time.Since(start).Seconds()) }()

	ctx, span := storeTracer.Start(ctx, "Store.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("location", s.index.Location()),
		attribute.Int("k", opts.K),
		attribute.Float64("lambda", float64(opts.Lambda)),
	)

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", ErrInvalidSearch)
	}

	s.lock.RLock()
	defer s.lock.RUnlock()

	count, err := s.index.Count(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if count == 0 {
		span.SetStatus(codes.Ok, "empty index")
		return []Document{}, nil
	}

	ectx, cancel := s.embedContext(ctx)
	qvec, err := s.embedder.EmbedQuery(ectx, query)
	cancel()
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if s.identity.Dimension != 0 && len(qvec) != s.identity.Dimension {
		err := fmt.Errorf("%w: index at %s has dimension %d, query embedding has %d",
			ErrCorruptIndex, s.index.Location(), s.identity.Dimension, len(qvec))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if isZero(qvec) {
		s.logger.Debug("query embedding is the zero vector", zap.String("query", query))
		return []Document{}, nil
	}

	fetch := opts.FetchK
	if fetch == 0 || fetch > count {
		fetch = count
	}
	if fetch < opts.K {
		fetch = min(opts.K, count)
	}

	cands, err := s.index.Nearest(ctx, qvec, fetch)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	picked := SelectMMR(cands, opts.K, opts.Lambda, opts.Threshold)
	docs := make([]Document, len(picked))
	for i, c := range picked {
		docs[i] = c.Document
	}

	span.SetAttributes(
		attribute.Int("candidates", len(cands)),
		attribute.Int("results_count", len(docs)),
	)
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("searched vector store",
		zap.String("location", s.index.Location()),
		zap.Int("k", opts.K),
		zap.Int("candidates", len(cands)),
		zap.Int("results", len(docs)),
	)

	return docs, nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.index.Count(ctx)
}

// Identity returns the embedding identity the index is bound to.
func (s *Store) Identity() Identity {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.identity
}

// Location returns where the underlying index persists.
func (s *Store) Location() string {
	return s.index.Location()
}

// Close releases the underlying index.
func (s *Store) Close() error {
	return s.index.Close()
}
