package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrStorageUnavailable is returned when the index location cannot be
	// read or written.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrCorruptIndex is returned when persisted state cannot be decoded or
	// was built with a different embedding function.
	ErrCorruptIndex = errors.New("corrupt index")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidSearch indicates invalid search options.
	ErrInvalidSearch = errors.New("invalid search options")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	// Returns one embedding per input text.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Identity names the embedding function an index was built with.
type Identity struct {
	// Model is the embedding model name. Empty means unknown.
	Model string `json:"model"`

	// Dimension is the vector length. Zero until the first vector is stored.
	Dimension int `json:"dimension"`
}

// Index is the nearest-neighbor service a Store drives.
//
// Implementations are not required to be safe for concurrent use; the Store
// serializes access per Location.
type Index interface {
	// Location identifies where the index persists. Stores sharing a
	// location share a lock.
	Location() string

	// Exists reports whether persisted state is present at the location.
	Exists(ctx context.Context) (bool, error)

	// Load replaces the in-memory state with the persisted one and returns
	// the identity it was built with.
	Load(ctx context.Context) (Identity, error)

	// Refresh reloads persisted state if another writer has saved a newer
	// revision since the last Load or Save.
	Refresh(ctx context.Context) error

	// Insert adds documents with their precomputed vectors.
	Insert(ctx context.Context, docs []Document, vectors [][]float32) error

	// Nearest returns up to n candidates ordered by decreasing similarity
	// to query. The query must have the index dimension.
	Nearest(ctx context.Context, query []float32, n int) ([]Candidate, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Save persists the entire index together with its identity.
	Save(ctx context.Context, id Identity) error

	// Close releases resources held by the index.
	Close() error
}
