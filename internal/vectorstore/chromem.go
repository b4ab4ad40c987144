package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// timeNow is a variable for testing purposes (allows mocking time).
var timeNow = time.Now

var chromemTracer = otel.Tracer("tdpchat.vectorstore.chromem")

const (
	chromemIndexFile    = "index.gob"
	chromemManifestFile = "index.json"
)

// ChromemConfig holds configuration for the chromem-go embedded index.
type ChromemConfig struct {
	// Path is the directory holding the persisted index.
	// Default: "data/faiss_index"
	Path string

	// Collection is the chromem collection name inside the database.
	// Default: "swinburne_chat_bot"
	Collection string

	// Compress enables gzip compression of the persisted index.
	Compress bool
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "data/faiss_index"
	}
	if c.Collection == "" {
		c.Collection = "swinburne_chat_bot"
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("%w: path required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Collection) == "" {
		return fmt.Errorf("%w: collection required", ErrInvalidConfig)
	}
	return nil
}

// chromemManifest is written next to the index and records what built it.
type chromemManifest struct {
	Identity
	Collection string    `json:"collection"`
	Documents  int       `json:"documents"`
	Revision   uint64    `json:"revision"`
	SavedAt    time.Time `json:"saved_at"`
}

// ChromemIndex implements Index on an in-memory chromem-go database that is
// exported as a whole to Path on every Save.
type ChromemIndex struct {
	config ChromemConfig
	dir    string
	logger *zap.Logger

	db       *chromem.DB
	col      *chromem.Collection
	revision uint64
}

// NewChromemIndex creates an empty in-memory index bound to config.Path.
// Nothing is read or written until Load or Save.
func NewChromemIndex(config ChromemConfig, logger *zap.Logger) (*ChromemIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	dir, err := expandPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}

	idx := &ChromemIndex{
		config: config,
		dir:    dir,
		logger: logger,
	}
	if err := idx.reset(); err != nil {
		return nil, err
	}
	return idx, nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// precomputedOnly is handed to chromem so that it never embeds text itself;
// the Store always supplies vectors.
func precomputedOnly(context.Context, string) ([]float32, error) {
	return nil, errors.New("chromem index accepts precomputed embeddings only")
}

func (c *ChromemIndex) reset() error {
	db := chromem.NewDB()
	col, err := db.CreateCollection(c.config.Collection, nil, precomputedOnly)
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", c.config.Collection, err)
	}
	c.db, c.col, c.revision = db, col, 0
	return nil
}

// Location returns the directory the index persists to.
func (c *ChromemIndex) Location() string {
	return c.dir
}

func (c *ChromemIndex) indexPath() string {
	return filepath.Join(c.dir, chromemIndexFile)
}

func (c *ChromemIndex) manifestPath() string {
	return filepath.Join(c.dir, chromemManifestFile)
}

// Exists reports whether a persisted index file is present.
func (c *ChromemIndex) Exists(_ context.Context) (bool, error) {
	_, err := os.Stat(c.indexPath())
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
}

func (c *ChromemIndex) readManifest() (chromemManifest, error) {
	var m chromemManifest
	data, err := os.ReadFile(c.manifestPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return m, fmt.Errorf("%w: manifest %s missing", ErrCorruptIndex, c.manifestPath())
		}
		return m, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("%w: decoding manifest: %v", ErrCorruptIndex, err)
	}
	return m, nil
}

// Load imports the persisted database and verifies that every stored vector
// has the recorded dimension.
func (c *ChromemIndex) Load(ctx context.Context) (Identity, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Load")
	defer span.End()

	span.SetAttributes(attribute.String("path", c.dir))

	m, err := c.readManifest()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Identity{}, err
	}

	db := chromem.NewDB()
	if err := db.ImportFromFile(c.indexPath(), ""); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			err = fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		} else {
			err = fmt.Errorf("%w: importing %s: %v", ErrCorruptIndex, c.indexPath(), err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Identity{}, err
	}

	col := db.GetCollection(c.config.Collection, precomputedOnly)
	if col == nil {
		err := fmt.Errorf("%w: collection %q not found in %s", ErrCorruptIndex, c.config.Collection, c.indexPath())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Identity{}, err
	}

	if err := verifyDimension(ctx, col, m.Dimension); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Identity{}, err
	}

	if col.Count() != m.Documents {
		c.logger.Warn("chromem index document count differs from manifest",
			zap.String("path", c.dir),
			zap.Int("stored", col.Count()),
			zap.Int("manifest", m.Documents),
		)
	}

	c.db, c.col, c.revision = db, col, m.Revision

	span.SetAttributes(
		attribute.Int("documents", col.Count()),
		attribute.Int64("revision", int64(m.Revision)),
	)
	span.SetStatus(codes.Ok, "success")

	c.logger.Debug("loaded chromem index",
		zap.String("path", c.dir),
		zap.Int("documents", col.Count()),
		zap.String("model", m.Model),
		zap.Int("dimension", m.Dimension),
	)

	return m.Identity, nil
}

// verifyDimension queries every stored vector with a unit probe of the
// recorded dimension. chromem fails the dot product on any length mismatch.
func verifyDimension(ctx context.Context, col *chromem.Collection, dim int) error {
	n := col.Count()
	if n == 0 {
		return nil
	}
	if dim <= 0 {
		return fmt.Errorf("%w: manifest records no dimension for %d documents", ErrCorruptIndex, n)
	}
	probe := make([]float32, dim)
	probe[0] = 1
	if _, err := col.QueryEmbedding(ctx, probe, n, nil, nil); err != nil {
		return fmt.Errorf("%w: stored vectors do not match dimension %d: %v", ErrCorruptIndex, dim, err)
	}
	return nil
}

// Refresh reloads the persisted database when its revision is newer than the
// one held in memory.
func (c *ChromemIndex) Refresh(ctx context.Context) error {
	exists, err := c.Exists(ctx)
	if err != nil || !exists {
		return err
	}
	m, err := c.readManifest()
	if err != nil {
		return err
	}
	if m.Revision <= c.revision {
		return nil
	}
	c.logger.Debug("reloading newer chromem index",
		zap.String("path", c.dir),
		zap.Uint64("held", c.revision),
		zap.Uint64("persisted", m.Revision),
	)
	_, err = c.Load(ctx)
	return err
}

// Insert adds documents with precomputed vectors to the in-memory collection.
func (c *ChromemIndex) Insert(ctx context.Context, docs []Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("%d documents but %d vectors", len(docs), len(vectors))
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromemDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Metadata:  doc.Metadata,
			Embedding: vectors[i],
		}
	}

	// Concurrency of 1 since embeddings are already computed.
	if err := c.col.AddDocuments(ctx, chromemDocs, 1); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	return nil
}

// Nearest returns up to n stored documents by decreasing cosine similarity.
func (c *ChromemIndex) Nearest(ctx context.Context, query []float32, n int) ([]Candidate, error) {
	count := c.col.Count()
	if count == 0 || n <= 0 {
		return nil, nil
	}
	// chromem requires nResults <= doc count
	if n > count {
		n = count
	}

	results, err := c.col.QueryEmbedding(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", c.config.Collection, err)
	}

	cands := make([]Candidate, len(results))
	for i, r := range results {
		cands[i] = Candidate{
			Document: Document{
				ID:       r.ID,
				Content:  r.Content,
				Metadata: r.Metadata,
			},
			Vector:     r.Embedding,
			Similarity: r.Similarity,
		}
	}
	return cands, nil
}

// Count returns the number of stored documents.
func (c *ChromemIndex) Count(_ context.Context) (int, error) {
	return c.col.Count(), nil
}

// Save exports the whole database and its manifest. Both are written to
// temporary files and renamed into place so a crash never truncates them.
func (c *ChromemIndex) Save(ctx context.Context, id Identity) error {
	_, span := chromemTracer.Start(ctx, "ChromemIndex.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("path", c.dir),
		attribute.Int("documents", c.col.Count()),
	)

	if err := c.save(id); err != nil {
		err = fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

func (c *ChromemIndex) save(id Identity) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", c.dir, err)
	}

	err := writeAtomic(c.indexPath(), func(f *os.File) error {
		return c.db.ExportToWriter(f, c.config.Compress, "", c.config.Collection)
	})
	if err != nil {
		return fmt.Errorf("writing index: %w", err)
	}

	m := chromemManifest{
		Identity:   id,
		Collection: c.config.Collection,
		Documents:  c.col.Count(),
		Revision:   c.revision + 1,
		SavedAt:    timeNow().UTC(),
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	err = writeAtomic(c.manifestPath(), func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
	if err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}

	c.revision = m.Revision
	return nil
}

// writeAtomic writes path through a temporary sibling file and a rename.
func writeAtomic(path string, write func(*os.File) error) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp) // no-op after a successful rename

	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Close is a no-op; the database lives in memory.
func (c *ChromemIndex) Close() error {
	return nil
}

var _ Index = (*ChromemIndex)(nil)
