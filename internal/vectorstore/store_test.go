package vectorstore_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shutirtha-roy/tdp-chatbot-project/internal/embeddings"
	"github.com/shutirtha-roy/tdp-chatbot-project/internal/vectorstore"
)

const testModel = "test/bag-of-words"

func openStore(t *testing.T, dir string, emb *embeddings.TestProvider, cfg vectorstore.Config) *vectorstore.Store {
	t.Helper()
	store, err := tryOpen(dir, emb, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func tryOpen(dir string, emb *embeddings.TestProvider, cfg vectorstore.Config) (*vectorstore.Store, error) {
	idx, err := vectorstore.NewChromemIndex(vectorstore.ChromemConfig{Path: dir}, zap.NewNop())
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = testModel
	}
	return vectorstore.Open(context.Background(), cfg, idx, emb, zap.NewNop())
}

func contents(docs []vectorstore.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Content
	}
	return out
}

func TestOpen_SeedsAndPersistsFreshIndex(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "faiss_index")
	emb := embeddings.NewTestProvider(512)

	store := openStore(t, dir, emb, vectorstore.Config{})

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(vectorstore.SeedDocuments()), count)
	assert.FileExists(t, filepath.Join(dir, "index.gob"))
	assert.FileExists(t, filepath.Join(dir, "index.json"))

	id := store.Identity()
	assert.Equal(t, testModel, id.Model)
	assert.Equal(t, 512, id.Dimension)
}

func TestOpen_SkipSeedCreatesEmptyIndex(t *testing.T) {
	store := openStore(t, t.TempDir(), embeddings.NewTestProvider(64), vectorstore.Config{SkipSeed: true})

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	docs, err := store.Search(context.Background(), "anything at all", vectorstore.DefaultSearchOptions())
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestSearch_FindsLocationDocument(t *testing.T) {
	store := openStore(t, t.TempDir(), embeddings.NewTestProvider(512), vectorstore.Config{})

	docs, err := store.Search(context.Background(), "Where is the university located?",
		vectorstore.SearchOptions{K: 1, Lambda: 0.1, Threshold: 0.1, FetchK: 20})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Swinburne University is located in Melbourne, Australia.", docs[0].Content)
}

func TestSearch_ExactContentRanksFirst(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, t.TempDir(), embeddings.NewTestProvider(512), vectorstore.Config{})

	text := "The Hawthorn library opens at eight on weekdays."
	ids, err := store.AddDocuments(ctx, []vectorstore.Document{{Content: text, Metadata: map[string]string{"source": "handbook"}}})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.NotEmpty(t, ids[0])

	docs, err := store.Search(ctx, text, vectorstore.DefaultSearchOptions())
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	assert.Equal(t, text, docs[0].Content)
	assert.Equal(t, ids[0], docs[0].ID)
	assert.Equal(t, "handbook", docs[0].Metadata["source"])
}

func TestSearch_ReturnsAtMostK(t *testing.T) {
	store := openStore(t, t.TempDir(), embeddings.NewTestProvider(512), vectorstore.Config{})

	docs, err := store.Search(context.Background(), "Swinburne university",
		vectorstore.SearchOptions{K: 2, Lambda: 0.5, Threshold: -1})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestSearch_InvalidInput(t *testing.T) {
	store := openStore(t, t.TempDir(), embeddings.NewTestProvider(512), vectorstore.Config{})
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		opts  vectorstore.SearchOptions
	}{
		{"blank query", "   ", vectorstore.DefaultSearchOptions()},
		{"zero k", "fees", vectorstore.SearchOptions{K: 0, Lambda: 0.5}},
		{"lambda above one", "fees", vectorstore.SearchOptions{K: 1, Lambda: 1.5}},
		{"negative fetch", "fees", vectorstore.SearchOptions{K: 1, Lambda: 0.5, FetchK: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Search(ctx, tt.query, tt.opts)
			assert.ErrorIs(t, err, vectorstore.ErrInvalidSearch)
		})
	}
}

func TestStore_ReopenRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	emb := embeddings.NewTestProvider(512)

	first := openStore(t, dir, emb, vectorstore.Config{})
	_, err := first.AddDocuments(ctx, []vectorstore.Document{
		{Content: "International students can apply for scholarships."},
		{Content: "Parking permits are sold at the Hawthorn campus."},
	})
	require.NoError(t, err)
	opts := vectorstore.SearchOptions{K: 1, Lambda: 0.5, Threshold: 0.1}
	before, err := first.Search(ctx, "scholarships for international students", opts)
	require.NoError(t, err)
	require.Len(t, before, 1)

	second := openStore(t, dir, emb, vectorstore.Config{})
	count, err := second.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, count)

	after, err := second.Search(ctx, "scholarships for international students", opts)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, contents(before), contents(after))
	assert.Equal(t, "International students can apply for scholarships.", after[0].Content)
}

func TestOpen_RejectsOtherEmbedder(t *testing.T) {
	dir := t.TempDir()
	emb := embeddings.NewTestProvider(512)
	openStore(t, dir, emb, vectorstore.Config{})

	_, err := tryOpen(dir, emb, vectorstore.Config{Model: "openai/text-embedding-3-small"})
	assert.ErrorIs(t, err, vectorstore.ErrCorruptIndex)

	_, err = tryOpen(dir, embeddings.NewTestProvider(256), vectorstore.Config{Dimension: 256})
	assert.ErrorIs(t, err, vectorstore.ErrCorruptIndex)
}

// recordedIdentity stands in for a remote index whose identity comes from
// server-side metadata.
type recordedIdentity struct {
	vectorstore.Index
	id    vectorstore.Identity
	saved []vectorstore.Identity
}

func (r *recordedIdentity) Exists(context.Context) (bool, error) { return true, nil }

func (r *recordedIdentity) Load(context.Context) (vectorstore.Identity, error) { return r.id, nil }

func (r *recordedIdentity) Save(_ context.Context, id vectorstore.Identity) error {
	r.saved = append(r.saved, id)
	return nil
}

func newRecordedIdentity(t *testing.T, id vectorstore.Identity) *recordedIdentity {
	t.Helper()
	idx, err := vectorstore.NewChromemIndex(vectorstore.ChromemConfig{Path: t.TempDir()}, nil)
	require.NoError(t, err)
	return &recordedIdentity{Index: idx, id: id}
}

func TestOpen_RejectsRecordedEmbedderWithSameDimension(t *testing.T) {
	idx := newRecordedIdentity(t, vectorstore.Identity{Model: "openai/text-embedding-3-small", Dimension: 512})

	_, err := vectorstore.Open(context.Background(),
		vectorstore.Config{Model: testModel, Dimension: 512},
		idx, embeddings.NewTestProvider(512), nil)
	require.ErrorIs(t, err, vectorstore.ErrCorruptIndex)
	assert.Empty(t, idx.saved)
}

func TestOpen_RecordsEmbedderOnUnmarkedIndex(t *testing.T) {
	idx := newRecordedIdentity(t, vectorstore.Identity{Dimension: 512})

	store, err := vectorstore.Open(context.Background(),
		vectorstore.Config{Model: testModel, Dimension: 512},
		idx, embeddings.NewTestProvider(512), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	assert.Equal(t, []vectorstore.Identity{{Model: testModel, Dimension: 512}}, idx.saved)
}

func TestSearch_QueryDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	openStore(t, dir, embeddings.NewTestProvider(512), vectorstore.Config{})

	// Same model name, different output size: only detectable at query time.
	store := openStore(t, dir, embeddings.NewTestProvider(128), vectorstore.Config{})
	_, err := store.Search(context.Background(), "fees", vectorstore.DefaultSearchOptions())
	assert.ErrorIs(t, err, vectorstore.ErrCorruptIndex)

	_, err = store.AddDocuments(context.Background(), []vectorstore.Document{{Content: "fees"}})
	assert.ErrorIs(t, err, vectorstore.ErrCorruptIndex)
}

func TestOpen_CorruptFiles(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{"manifest", "index.json"},
		{"index", "index.gob"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			emb := embeddings.NewTestProvider(512)
			openStore(t, dir, emb, vectorstore.Config{})

			require.NoError(t, os.WriteFile(filepath.Join(dir, tt.file), []byte("not what you expect"), 0o644))

			_, err := tryOpen(dir, emb, vectorstore.Config{})
			assert.ErrorIs(t, err, vectorstore.ErrCorruptIndex)
		})
	}

	t.Run("missing manifest", func(t *testing.T) {
		dir := t.TempDir()
		emb := embeddings.NewTestProvider(512)
		openStore(t, dir, emb, vectorstore.Config{})
		require.NoError(t, os.Remove(filepath.Join(dir, "index.json")))

		_, err := tryOpen(dir, emb, vectorstore.Config{})
		assert.ErrorIs(t, err, vectorstore.ErrCorruptIndex)
	})
}

func TestAddDocuments_EmbeddingFailureLeavesIndexUnchanged(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	emb := embeddings.NewTestProvider(512)
	store := openStore(t, dir, emb, vectorstore.Config{})

	emb.FailWith(errors.New("upstream unavailable"))
	_, err := store.AddDocuments(ctx, []vectorstore.Document{{Content: "Open day is in August."}})
	require.ErrorIs(t, err, vectorstore.ErrEmbeddingFailed)
	emb.FailWith(nil)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	reopened := openStore(t, dir, emb, vectorstore.Config{})
	count, err = reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestAddDocuments_RejectsEmptyContent(t *testing.T) {
	store := openStore(t, t.TempDir(), embeddings.NewTestProvider(512), vectorstore.Config{})

	_, err := store.AddDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, vectorstore.ErrEmptyDocuments)

	_, err = store.AddDocuments(context.Background(), []vectorstore.Document{{Content: "ok"}, {Content: " "}})
	assert.ErrorIs(t, err, vectorstore.ErrEmptyDocuments)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

// failingSave wraps an Index and fails every Save after the first.
type failingSave struct {
	vectorstore.Index
	saves int
}

func (f *failingSave) Save(ctx context.Context, id vectorstore.Identity) error {
	f.saves++
	if f.saves > 1 {
		return fmt.Errorf("%w: disk full", vectorstore.ErrStorageUnavailable)
	}
	return f.Index.Save(ctx, id)
}

func TestAddDocuments_PersistFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	emb := embeddings.NewTestProvider(512)
	idx, err := vectorstore.NewChromemIndex(vectorstore.ChromemConfig{Path: t.TempDir()}, nil)
	require.NoError(t, err)

	store, err := vectorstore.Open(ctx, vectorstore.Config{Model: testModel}, &failingSave{Index: idx}, emb, nil)
	require.NoError(t, err)

	text := "Graduation ceremonies are held in December."
	ids, err := store.AddDocuments(ctx, []vectorstore.Document{{Content: text}})
	require.ErrorIs(t, err, vectorstore.ErrStorageUnavailable)
	assert.Len(t, ids, 1)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	docs, err := store.Search(ctx, text, vectorstore.DefaultSearchOptions())
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	assert.Equal(t, text, docs[0].Content)
}

func TestAddDocuments_Concurrent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	emb := embeddings.NewTestProvider(512)
	store := openStore(t, dir, emb, vectorstore.Config{})

	const writers = 10
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.AddDocuments(ctx, []vectorstore.Document{{Content: fmt.Sprintf("Notice number %d for students", i)}})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	reopened := openStore(t, dir, emb, vectorstore.Config{})
	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4+writers, count)
}

func TestAddDocuments_TwoStoresSameLocation(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	emb := embeddings.NewTestProvider(512)

	a := openStore(t, dir, emb, vectorstore.Config{})
	b := openStore(t, dir, emb, vectorstore.Config{})

	_, err := a.AddDocuments(ctx, []vectorstore.Document{{Content: "Semester one starts in March."}})
	require.NoError(t, err)
	_, err = b.AddDocuments(ctx, []vectorstore.Document{{Content: "Semester two starts in July."}})
	require.NoError(t, err)

	reopened := openStore(t, dir, emb, vectorstore.Config{})
	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, count)
}
