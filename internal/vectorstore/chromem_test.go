package vectorstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChromemConfig_Defaults(t *testing.T) {
	var c ChromemConfig
	c.ApplyDefaults()
	assert.Equal(t, "data/faiss_index", c.Path)
	assert.Equal(t, "swinburne_chat_bot", c.Collection)
	assert.NoError(t, c.Validate())

	c.Collection = " "
	assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
}

func TestChromemIndex_SaveWritesManifest(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	orig := timeNow
	timeNow = func() time.Time { return fixed }
	t.Cleanup(func() { timeNow = orig })

	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested", "index")
	idx, err := NewChromemIndex(ChromemConfig{Path: dir}, nil)
	require.NoError(t, err)

	exists, err := idx.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, idx.Insert(ctx,
		[]Document{{ID: "a", Content: "alpha"}, {ID: "b", Content: "beta"}},
		[][]float32{{1, 0, 0}, {0, 1, 0}},
	))
	id := Identity{Model: "m", Dimension: 3}
	require.NoError(t, idx.Save(ctx, id))
	require.NoError(t, idx.Save(ctx, id))

	data, err := os.ReadFile(filepath.Join(dir, chromemManifestFile))
	require.NoError(t, err)
	var m chromemManifest
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, id, m.Identity)
	assert.Equal(t, "swinburne_chat_bot", m.Collection)
	assert.Equal(t, 2, m.Documents)
	assert.Equal(t, uint64(2), m.Revision)
	assert.True(t, fixed.Equal(m.SavedAt))

	// No temporary files are left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestChromemIndex_LoadAndNearest(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	src, err := NewChromemIndex(ChromemConfig{Path: dir, Compress: true}, nil)
	require.NoError(t, err)
	require.NoError(t, src.Insert(ctx,
		[]Document{
			{ID: "a", Content: "alpha", Metadata: map[string]string{"source": "x"}},
			{ID: "b", Content: "beta"},
		},
		[][]float32{{1, 0}, {0.6, 0.8}},
	))
	require.NoError(t, src.Save(ctx, Identity{Model: "m", Dimension: 2}))

	dst, err := NewChromemIndex(ChromemConfig{Path: dir, Compress: true}, nil)
	require.NoError(t, err)
	id, err := dst.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Identity{Model: "m", Dimension: 2}, id)

	n, err := dst.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cands, err := dst.Nearest(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, "a", cands[0].ID)
	assert.Equal(t, "x", cands[0].Metadata["source"])
	assert.InDelta(t, 1.0, cands[0].Similarity, 1e-5)
	assert.InDelta(t, 0.6, cands[1].Similarity, 1e-5)
	assert.Len(t, cands[1].Vector, 2)
}

func TestChromemIndex_LoadRejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	idx, err := NewChromemIndex(ChromemConfig{Path: dir}, nil)
	require.NoError(t, err)
	require.NoError(t, idx.Insert(ctx, []Document{{ID: "a", Content: "alpha"}}, [][]float32{{1, 0, 0}}))
	// Manifest claims a dimension the stored vectors do not have.
	require.NoError(t, idx.Save(ctx, Identity{Model: "m", Dimension: 4}))

	other, err := NewChromemIndex(ChromemConfig{Path: dir}, nil)
	require.NoError(t, err)
	_, err = other.Load(ctx)
	assert.ErrorIs(t, err, ErrCorruptIndex)
}

func TestChromemIndex_RefreshPicksUpNewerRevision(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	a, err := NewChromemIndex(ChromemConfig{Path: dir}, nil)
	require.NoError(t, err)
	require.NoError(t, a.Save(ctx, Identity{Model: "m"}))

	b, err := NewChromemIndex(ChromemConfig{Path: dir}, nil)
	require.NoError(t, err)
	_, err = b.Load(ctx)
	require.NoError(t, err)

	require.NoError(t, a.Insert(ctx, []Document{{ID: "a", Content: "alpha"}}, [][]float32{{1, 0}}))
	require.NoError(t, a.Save(ctx, Identity{Model: "m", Dimension: 2}))

	n, _ := b.Count(ctx)
	assert.Zero(t, n)
	require.NoError(t, b.Refresh(ctx))
	n, _ = b.Count(ctx)
	assert.Equal(t, 1, n)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{2, 0}, []float32{5, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosine([]float32{0, 0}, []float32{1, 0}))
	assert.Zero(t, cosine([]float32{1}, []float32{1, 0}))
}
