package store

import "time"

// Document status values. A document is created as StatusProcessing and moves
// to StatusReady or StatusError exactly once when ingestion finishes.
const (
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusError      = "error"
)

// Document is the metadata record for one uploaded document.
type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
	Status     string    `json:"status"`
	ChunkCount int       `json:"chunkCount"`
	Error      string    `json:"error,omitempty"`
}

// Chunk is one embeddable slice of a document. Chunks are written in a batch
// when ingestion completes and are immutable afterwards.
type Chunk struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"documentId"`
	DocumentName string    `json:"documentName"`
	Content      string    `json:"content"`
	Embedding    []float32 `json:"-"`
	ChunkIndex   int       `json:"chunkIndex"`
	StartChar    int       `json:"startChar"`
	EndChar      int       `json:"endChar"`
}
