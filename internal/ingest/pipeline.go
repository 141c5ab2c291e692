// Package ingest runs the document processing pipeline: extract text, chunk,
// embed, and swap the chunk set into the store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kalambet/docchat/internal/chunker"
	"github.com/kalambet/docchat/internal/store"
)

// ErrEmptyDocument is returned when extraction produces no usable text.
var ErrEmptyDocument = errors.New("document appears to be empty or could not be parsed")

// BatchEmbedder generates embeddings for the chunk contents.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Extractor converts raw file bytes into plain text.
type Extractor func(data []byte, filename string) (string, error)

// Pipeline processes uploaded documents. A pipeline run mutates the
// document's status exactly once, to ready or error; a failure is local to
// that one document. Nothing is retried.
type Pipeline struct {
	store     *store.Store
	embedder  BatchEmbedder
	extract   Extractor
	chunkSize int
	overlap   int
	logger    *slog.Logger
}

// New creates a Pipeline. chunkSize and overlap <= 0 select the chunker
// defaults.
func New(st *store.Store, embedder BatchEmbedder, extract Extractor, chunkSize, overlap int) *Pipeline {
	return &Pipeline{
		store:     st,
		embedder:  embedder,
		extract:   extract,
		chunkSize: chunkSize,
		overlap:   overlap,
		logger:    slog.Default(),
	}
}

// Process runs the full pipeline for one uploaded document whose record is
// already in the store with StatusProcessing. It is intended to run in its
// own goroutine, decoupled from the upload request; callers observe progress
// by re-reading the document's status.
func (p *Pipeline) Process(ctx context.Context, docID, filename string, data []byte) {
	if err := p.process(ctx, docID, filename, data); err != nil {
		p.logger.Warn("ingestion failed", "document_id", docID, "name", filename, "error", err)
		p.store.MarkError(docID, err.Error())
		return
	}
}

func (p *Pipeline) process(ctx context.Context, docID, filename string, data []byte) error {
	text, err := p.extract(data, filename)
	if err != nil {
		return fmt.Errorf("extracting text: %w", err)
	}

	pieces := chunker.Split(text, p.chunkSize, p.overlap)
	if len(pieces) == 0 {
		return ErrEmptyDocument
	}

	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		texts[i] = piece.Content
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding chunks: %w", err)
	}

	chunks := make([]store.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = store.Chunk{
			ID:           uuid.New().String(),
			DocumentID:   docID,
			DocumentName: filename,
			Content:      piece.Content,
			Embedding:    embeddings[i],
			ChunkIndex:   piece.Index,
			StartChar:    piece.StartChar,
			EndChar:      piece.EndChar,
		}
	}

	p.store.ReplaceChunks(docID, chunks)
	p.store.MarkReady(docID, len(chunks))

	p.logger.Info("document ingested", "document_id", docID, "name", filename, "chunks", len(chunks))
	return nil
}
