package vectorstore

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

var qdrantTracer = otel.Tracer("tdpchat.vectorstore.qdrant")

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

const (
	payloadContent  = "content"
	payloadDocID    = "doc_id"
	payloadMetaPref = "meta."

	// Collection metadata keys recording the embedder that filled it.
	metaEmbedder  = "tdpchat.embedder"
	metaDimension = "tdpchat.dimension"
)

// pointNamespace derives stable point UUIDs from document IDs.
var pointNamespace = uuid.MustParse("6f1c1c52-6a8e-4a1e-9a53-2f0f3c1d7e10")

// QdrantConfig holds configuration for the Qdrant gRPC index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	// Default: "localhost"
	Host string

	// Port is the Qdrant gRPC port (NOT HTTP REST port).
	// Default: 6334
	Port int

	// Collection is the collection holding the documents.
	Collection string

	// APIKey authenticates against managed Qdrant deployments.
	APIKey string

	// UseTLS enables TLS encryption for gRPC connection.
	UseTLS bool

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "swinburne_chat_bot"
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	return ValidateCollectionName(c.Collection)
}

// ValidateCollectionName validates a collection name.
// Pattern: ^[a-z0-9_]{1,64}$
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidConfig, name)
	}
	return nil
}

// QdrantIndex implements Index on a remote Qdrant collection.
//
// Qdrant persists every upsert itself, so Save only records the embedder
// identity in the collection metadata and Refresh never has anything to
// reload. The collection is created lazily on first insert, when the vector
// dimension is known.
type QdrantIndex struct {
	client *qdrant.Client
	config QdrantConfig
	logger *zap.Logger

	// stamped is the embedder already recorded in the collection metadata.
	stamped string
}

// NewQdrantIndex connects to Qdrant. No collection is created until Insert.
func NewQdrantIndex(config QdrantConfig, logger *zap.Logger) (*QdrantIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if !config.UseTLS {
		logger.Warn("qdrant gRPC using plaintext (TLS disabled)", zap.String("host", config.Host))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant: %v", ErrStorageUnavailable, err)
	}

	return &QdrantIndex{client: client, config: config, logger: logger}, nil
}

// Location returns a qdrant:// URI naming the collection.
func (q *QdrantIndex) Location() string {
	return fmt.Sprintf("qdrant://%s:%d/%s", q.config.Host, q.config.Port, q.config.Collection)
}

// Exists reports whether the collection exists.
func (q *QdrantIndex) Exists(ctx context.Context) (bool, error) {
	ok, err := q.client.CollectionExists(ctx, q.config.Collection)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return ok, nil
}

// Load reads the collection vector size and the embedder recorded in its
// metadata. Collections created by other tools carry no embedder, so Model
// is left empty for them.
func (q *QdrantIndex) Load(ctx context.Context) (Identity, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Load")
	defer span.End()

	span.SetAttributes(attribute.String("collection", q.config.Collection))

	info, err := q.client.GetCollectionInfo(ctx, q.config.Collection)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Identity{}, err
	}

	id, err := identityFromCollection(q.config.Collection, info)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Identity{}, err
	}
	q.stamped = id.Model

	span.SetAttributes(attribute.String("model", id.Model), attribute.Int("dimension", id.Dimension))
	span.SetStatus(codes.Ok, "success")
	return id, nil
}

// identityFromCollection reads the vector size and the recorded embedder. A
// recorded dimension that disagrees with the vector size means the metadata
// was not written by this index.
func identityFromCollection(name string, info *qdrant.CollectionInfo) (Identity, error) {
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return Identity{}, fmt.Errorf("%w: collection %q has no single unnamed vector", ErrCorruptIndex, name)
	}
	id := Identity{Dimension: int(params.GetSize())}

	meta := info.GetConfig().GetMetadata()
	id.Model = meta[metaEmbedder].GetStringValue()
	if dim, ok := meta[metaDimension]; ok && int(dim.GetIntegerValue()) != id.Dimension {
		return Identity{}, fmt.Errorf("%w: collection %q records dimension %d but stores %d",
			ErrCorruptIndex, name, dim.GetIntegerValue(), id.Dimension)
	}
	return id, nil
}

// identityMetadata is the collection metadata recording id.
func identityMetadata(id Identity) map[string]*qdrant.Value {
	return map[string]*qdrant.Value{
		metaEmbedder:  qdrant.NewValueString(id.Model),
		metaDimension: qdrant.NewValueInt(int64(id.Dimension)),
	}
}

// pointID derives the point UUID for a document ID. The same document ID
// always maps to the same point, so re-inserting replaces it.
func pointID(docID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(docID)).String()
}

// Refresh is a no-op; reads always go to the server.
func (q *QdrantIndex) Refresh(_ context.Context) error {
	return nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context, dim int) error {
	exists, err := q.client.CollectionExists(ctx, q.config.Collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	q.logger.Info("creating qdrant collection",
		zap.String("collection", q.config.Collection),
		zap.Int("dimension", dim),
	)
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.config.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

// Insert upserts documents and waits for the write to be applied.
func (q *QdrantIndex) Insert(ctx context.Context, docs []Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("%d documents but %d vectors", len(docs), len(vectors))
	}
	if len(docs) == 0 {
		return nil
	}

	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Insert")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", q.config.Collection),
		attribute.Int("document_count", len(docs)),
	)

	if err := q.ensureCollection(ctx, len(vectors[0])); err != nil {
		err = fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	points := make([]*qdrant.PointStruct, len(docs))
	for i, doc := range docs {
		payload := map[string]any{
			payloadContent: doc.Content,
			payloadDocID:   doc.ID,
		}
		for k, v := range doc.Metadata {
			payload[payloadMetaPref+k] = v
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(doc.ID)),
			Vectors: qdrant.NewVectorsDense(vectors[i]),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.config.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		err = fmt.Errorf("%w: upserting points: %v", ErrStorageUnavailable, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Nearest queries the collection with vectors included so that the Store
// can rank by diversity.
func (q *QdrantIndex) Nearest(ctx context.Context, query []float32, n int) ([]Candidate, error) {
	if n <= 0 {
		return nil, nil
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.config.Collection,
		Query:          qdrant.NewQueryDense(query),
		Limit:          qdrant.PtrOf(uint64(n)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", q.config.Collection, err)
	}

	cands := make([]Candidate, 0, len(points))
	for _, p := range points {
		cands = append(cands, candidateFromPoint(p))
	}
	return cands, nil
}

func candidateFromPoint(p *qdrant.ScoredPoint) Candidate {
	doc := Document{ID: p.GetId().GetUuid()}
	for k, v := range p.GetPayload() {
		switch {
		case k == payloadContent:
			doc.Content = v.GetStringValue()
		case k == payloadDocID:
			doc.ID = v.GetStringValue()
		case strings.HasPrefix(k, payloadMetaPref):
			if doc.Metadata == nil {
				doc.Metadata = make(map[string]string)
			}
			doc.Metadata[strings.TrimPrefix(k, payloadMetaPref)] = v.GetStringValue()
		}
	}

	var vec []float32
	if out := p.GetVectors().GetVector(); out != nil {
		if dense := out.GetDense(); dense != nil {
			vec = dense.GetData()
		} else {
			vec = out.GetData() //nolint:staticcheck // older servers only fill Data
		}
	}

	return Candidate{Document: doc, Vector: vec, Similarity: p.GetScore()}
}

// Count returns the exact number of points in the collection.
func (q *QdrantIndex) Count(ctx context.Context) (int, error) {
	exists, err := q.Exists(ctx)
	if err != nil || !exists {
		return 0, err
	}
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.config.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: counting points: %v", ErrStorageUnavailable, err)
	}
	return int(n), nil
}

// Save records the embedder in the collection metadata the first time the
// collection and the embedder are both known. Points themselves are
// persisted server side on upsert.
func (q *QdrantIndex) Save(ctx context.Context, id Identity) error {
	if id.Model == "" || id.Model == q.stamped {
		return nil
	}
	exists, err := q.Exists(ctx)
	if err != nil || !exists {
		return err
	}

	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", q.config.Collection),
		attribute.String("model", id.Model),
	)

	err = q.client.UpdateCollection(ctx, &qdrant.UpdateCollection{
		CollectionName: q.config.Collection,
		Metadata:       identityMetadata(id),
	})
	if err != nil {
		err = fmt.Errorf("%w: recording embedder: %v", ErrStorageUnavailable, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	q.stamped = id.Model
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Close closes the gRPC connection.
func (q *QdrantIndex) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}

var _ Index = (*QdrantIndex)(nil)
