// Package vectorstore owns the lifecycle of one persisted vector index and
// exposes insertion and diversity-aware retrieval over it.
//
// A Store wraps an Index (chromem-go embedded by default, Qdrant optional)
// together with the Embedder that produced every vector in it. Opening a Store
// at a location with no persisted state creates a fresh index seeded with the
// default documents and persists it immediately. Every successful insertion is
// followed by a full persist of the index.
//
// # Usage
//
//	idx, err := vectorstore.NewChromemIndex(vectorstore.ChromemConfig{Path: "data/faiss_index"})
//	if err != nil {
//	    return err
//	}
//	store, err := vectorstore.Open(ctx, vectorstore.Config{Model: "text-embedding-3-small"}, idx, embedder, logger)
//	if err != nil {
//	    return err
//	}
//	docs, err := store.Search(ctx, "Where is the campus?", vectorstore.SearchOptions{K: 1, Lambda: 0.1})
//
// # Ranking
//
// Search embeds the query, fetches a candidate pool from the index, drops
// candidates under the relevance threshold, then selects results by maximal
// marginal relevance:
//
//	score(d) = λ·rel(d) − (1−λ)·max_{s∈selected} sim(d, s)
//
// λ = 1 is pure relevance ranking.
//
// # Concurrency
//
// Writers and readers of the same location share one read-write lock, so
// searches never observe a half-applied insertion and concurrent insertions are
// serialized.
package vectorstore
