// Package embedding wraps an llm backend with batch embedding that bounds
// the number of in-flight requests against rate-limited providers.
package embedding

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/docchat/internal/llm"
)

// batchSize is the number of texts embedded concurrently per group. Groups
// run sequentially, so at most batchSize requests are ever in flight.
const batchSize = 10

// Service generates embeddings through a backend chosen at construction time.
type Service struct {
	backend llm.Embedder
}

// New creates a Service over the given backend.
func New(backend llm.Embedder) *Service {
	return &Service{backend: backend}
}

// Embed returns the embedding vector for a single text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.backend.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	return vec, nil
}

// EmbedBatch returns embedding vectors for all texts, preserving input order.
// Texts are processed in groups of batchSize, concurrently within a group and
// sequentially across groups. Any sub-call failure aborts the whole batch;
// partial results are never returned. Returns nil (not error) for empty input.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	for offset := 0; offset < len(texts); offset += batchSize {
		end := offset + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		g, gCtx := errgroup.WithContext(ctx)
		for i := offset; i < end; i++ {
			g.Go(func() error {
				vec, err := s.backend.Embed(gCtx, texts[i])
				if err != nil {
					return fmt.Errorf("embedding text %d: %w", i, err)
				}
				results[i] = vec
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	return results, nil
}
