package vectorstore_test

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shutirtha-roy/tdp-chatbot-project/internal/vectorstore"
)

func ids(cands []vectorstore.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.ID
	}
	return out
}

func TestSelectMMR_FullRelevanceMatchesStableTopK(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(30)
		cands := make([]vectorstore.Candidate, n)
		for i := range cands {
			vec := make([]float32, 8)
			for j := range vec {
				vec[j] = rng.Float32()*2 - 1
			}
			// Quantize so that ties actually occur.
			sim := float32(rng.Intn(10)) / 10
			cands[i] = vectorstore.Candidate{
				Document:   vectorstore.Document{ID: fmt.Sprintf("d%d", i)},
				Vector:     vec,
				Similarity: sim,
			}
		}
		k := 1 + rng.Intn(n)
		threshold := float32(0.2)

		var want []vectorstore.Candidate
		for _, c := range cands {
			if c.Similarity >= threshold {
				want = append(want, c)
			}
		}
		sort.SliceStable(want, func(i, j int) bool { return want[i].Similarity > want[j].Similarity })
		if len(want) > k {
			want = want[:k]
		}

		got := vectorstore.SelectMMR(cands, k, 1, threshold)
		assert.Equal(t, ids(want), ids(got), "trial %d", trial)
	}
}

func TestSelectMMR_PrefersDiverseCandidates(t *testing.T) {
	cands := []vectorstore.Candidate{
		{Document: vectorstore.Document{ID: "fees"}, Vector: []float32{1, 0}, Similarity: 0.9},
		{Document: vectorstore.Document{ID: "fees-copy"}, Vector: []float32{1, 0}, Similarity: 0.89},
		{Document: vectorstore.Document{ID: "housing"}, Vector: []float32{0, 1}, Similarity: 0.5},
	}

	t.Run("balanced", func(t *testing.T) {
		got := vectorstore.SelectMMR(cands, 2, 0.5, 0)
		assert.Equal(t, []string{"fees", "housing"}, ids(got))
	})

	t.Run("pure relevance", func(t *testing.T) {
		got := vectorstore.SelectMMR(cands, 2, 1, 0)
		assert.Equal(t, []string{"fees", "fees-copy"}, ids(got))
	})

	t.Run("single result is most relevant", func(t *testing.T) {
		got := vectorstore.SelectMMR(cands, 1, 0.1, 0)
		assert.Equal(t, []string{"fees"}, ids(got))
	})
}

func TestSelectMMR_Threshold(t *testing.T) {
	cands := []vectorstore.Candidate{
		{Document: vectorstore.Document{ID: "a"}, Vector: []float32{1, 0}, Similarity: 0.05},
		{Document: vectorstore.Document{ID: "b"}, Vector: []float32{0, 1}, Similarity: 0.3},
	}

	got := vectorstore.SelectMMR(cands, 4, 0.5, 0.1)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)

	assert.Empty(t, vectorstore.SelectMMR(cands, 4, 0.5, 0.9))
}

func TestSelectMMR_EdgeCases(t *testing.T) {
	assert.Nil(t, vectorstore.SelectMMR(nil, 3, 0.5, 0))
	assert.Nil(t, vectorstore.SelectMMR([]vectorstore.Candidate{{Similarity: 1}}, 0, 0.5, 0))

	cands := []vectorstore.Candidate{
		{Document: vectorstore.Document{ID: "a"}, Vector: []float32{1, 0}, Similarity: 0.4},
		{Document: vectorstore.Document{ID: "b"}, Vector: []float32{0, 1}, Similarity: 0.6},
	}
	got := vectorstore.SelectMMR(cands, 10, 0.5, 0)
	assert.Equal(t, []string{"b", "a"}, ids(got))
}
