// Package retrieval scores stored chunks against a query embedding and
// returns the best matches above a similarity threshold.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/kalambet/docchat/internal/store"
)

// Retrieval defaults: how many chunks to return and the minimum cosine
// similarity a chunk must reach to be considered relevant.
const (
	DefaultTopK          = 5
	DefaultMinSimilarity = 0.3
)

// Result pairs a chunk with its similarity to the query.
type Result struct {
	Chunk      store.Chunk
	Similarity float64
}

// Embedder generates the query embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChunkSource provides the chunks to scan.
type ChunkSource interface {
	AllChunks() []store.Chunk
}

// Retriever combines an embedder and a chunk source for similarity search.
type Retriever struct {
	embedder Embedder
	chunks   ChunkSource
}

// New creates a Retriever over the given embedder and chunk source.
func New(embedder Embedder, chunks ChunkSource) *Retriever {
	return &Retriever{embedder: embedder, chunks: chunks}
}

// Retrieve embeds the query and returns up to topK chunks with similarity of
// at least minSimilarity, ordered by similarity descending with scan-order
// ties preserved. An empty store or an empty filtered set yields an empty
// result, not an error; "no grounding available" is a first-class outcome.
// Values <= 0 select the defaults.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, minSimilarity float64) ([]Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}

	all := r.chunks.AllChunks()
	if len(all) == 0 {
		return nil, nil
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results := make([]Result, 0, len(all))
	for _, chunk := range all {
		sim := CosineSimilarity(queryVec, chunk.Embedding)
		if sim >= minSimilarity {
			results = append(results, Result{Chunk: chunk, Similarity: sim})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// CosineSimilarity returns dot(a,b) / (|a|*|b|). Mismatched lengths and
// zero-norm vectors yield 0 rather than an error, so comparisons against a
// chunk with a stale or corrupt embedding degrade instead of failing.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}
