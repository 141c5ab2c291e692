package store

import (
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned when a document ID has no record.
var ErrNotFound = errors.New("document not found")

// Store holds documents and their chunks for the lifetime of the process.
// It is non-durable by contract: nothing survives a restart. All methods are
// safe for concurrent use; whole-document chunk replacement and deletion are
// atomic from the caller's perspective.
type Store struct {
	mu     sync.RWMutex
	docs   map[string]Document
	chunks map[string][]Chunk // document ID -> chunk list
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		docs:   make(map[string]Document),
		chunks: make(map[string][]Chunk),
	}
}

// Put inserts or overwrites a document record.
func (s *Store) Put(doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
}

// Get returns the document with the given ID.
func (s *Store) Get(id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// ListAll returns all documents sorted by upload time, newest first.
func (s *Store) ListAll() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]Document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].UploadedAt.After(docs[j].UploadedAt)
	})
	return docs
}

// Update applies fn to the document with the given ID. It is a no-op when
// the document does not exist.
func (s *Store) Update(id string, fn func(*Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return
	}
	fn(&doc)
	s.docs[id] = doc
}

// MarkReady flips a document to StatusReady and records its chunk count.
func (s *Store) MarkReady(id string, chunkCount int) {
	s.Update(id, func(d *Document) {
		d.Status = StatusReady
		d.ChunkCount = chunkCount
		d.Error = ""
	})
}

// MarkError flips a document to StatusError and retains the failure message.
func (s *Store) MarkError(id string, msg string) {
	s.Update(id, func(d *Document) {
		d.Status = StatusError
		d.Error = msg
	})
}

// Delete removes a document and all of its chunks. Other documents' chunks
// are untouched.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return ErrNotFound
	}
	delete(s.docs, id)
	delete(s.chunks, id)
	return nil
}

// ReplaceChunks atomically swaps the chunk list for a document. Readers never
// observe a partially written chunk set.
func (s *Store) ReplaceChunks(docID string, chunks []Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[docID] = chunks
}

// ChunksByDocument returns the chunk list for one document, in index order.
func (s *Store) ChunksByDocument(docID string) []Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chunks[docID]
}

// AllChunks returns a flattened copy of every stored chunk. Per-document
// chunk order is preserved.
func (s *Store) AllChunks() []Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []Chunk
	for _, cs := range s.chunks {
		all = append(all, cs...)
	}
	return all
}

// Counts returns the number of documents and chunks currently held.
func (s *Store) Counts() (docs, chunks int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cs := range s.chunks {
		chunks += len(cs)
	}
	return len(s.docs), chunks
}
