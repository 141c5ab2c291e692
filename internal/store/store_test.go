package store

import (
	"sync"
	"testing"
	"time"
)

func testDoc(id string, uploadedAt time.Time) Document {
	return Document{
		ID:         id,
		Name:       id + ".txt",
		Type:       "text/plain",
		Size:       10,
		UploadedAt: uploadedAt,
		Status:     StatusProcessing,
	}
}

func testChunks(docID string, n int) []Chunk {
	chunks := make([]Chunk, n)
	for i := range chunks {
		chunks[i] = Chunk{
			ID:           docID + "-c" + string(rune('0'+i)),
			DocumentID:   docID,
			DocumentName: docID + ".txt",
			Content:      "content",
			Embedding:    []float32{1, 0, 0},
			ChunkIndex:   i,
		}
	}
	return chunks
}

func TestGet_NotFound(t *testing.T) {
	s := New()
	if _, err := s.Get("missing"); err != ErrNotFound {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestListAll_SortedNewestFirst(t *testing.T) {
	s := New()
	base := time.Now().UTC()
	s.Put(testDoc("old", base.Add(-2*time.Hour)))
	s.Put(testDoc("new", base))
	s.Put(testDoc("mid", base.Add(-time.Hour)))

	docs := s.ListAll()
	if len(docs) != 3 {
		t.Fatalf("got %d docs, want 3", len(docs))
	}
	want := []string{"new", "mid", "old"}
	for i, id := range want {
		if docs[i].ID != id {
			t.Errorf("docs[%d].ID = %s, want %s", i, docs[i].ID, id)
		}
	}
}

func TestUpdate_MissingIsNoOp(t *testing.T) {
	s := New()
	s.Update("missing", func(d *Document) { d.Status = StatusReady })
	if docs := s.ListAll(); len(docs) != 0 {
		t.Errorf("Update on missing doc created a record: %+v", docs)
	}
}

func TestMarkReadyAndMarkError(t *testing.T) {
	s := New()
	s.Put(testDoc("a", time.Now()))
	s.Put(testDoc("b", time.Now()))

	s.MarkReady("a", 7)
	s.MarkError("b", "parse failed")

	a, _ := s.Get("a")
	if a.Status != StatusReady || a.ChunkCount != 7 || a.Error != "" {
		t.Errorf("after MarkReady: %+v", a)
	}
	b, _ := s.Get("b")
	if b.Status != StatusError || b.Error != "parse failed" {
		t.Errorf("after MarkError: %+v", b)
	}
}

func TestDelete_RemovesOnlyOwnChunks(t *testing.T) {
	s := New()
	s.Put(testDoc("keep", time.Now()))
	s.Put(testDoc("drop", time.Now()))
	s.ReplaceChunks("keep", testChunks("keep", 3))
	s.ReplaceChunks("drop", testChunks("drop", 2))

	if err := s.Delete("drop"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	all := s.AllChunks()
	if len(all) != 3 {
		t.Fatalf("got %d chunks after delete, want 3", len(all))
	}
	for _, c := range all {
		if c.DocumentID != "keep" {
			t.Errorf("chunk %s belongs to deleted document", c.ID)
		}
	}

	if _, err := s.Get("drop"); err != ErrNotFound {
		t.Errorf("deleted doc still present, err = %v", err)
	}
	if err := s.Delete("drop"); err != ErrNotFound {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
}

func TestReplaceChunks_SwapsAtomically(t *testing.T) {
	s := New()
	s.Put(testDoc("a", time.Now()))
	s.ReplaceChunks("a", testChunks("a", 2))
	s.ReplaceChunks("a", testChunks("a", 5))

	if got := len(s.ChunksByDocument("a")); got != 5 {
		t.Errorf("got %d chunks, want 5 (replacement, not append)", got)
	}
}

func TestConcurrentIngestionIsolation(t *testing.T) {
	s := New()
	s.Put(testDoc("a", time.Now()))
	s.Put(testDoc("b", time.Now()))

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.ReplaceChunks("a", testChunks("a", 3))
		}()
		go func() {
			defer wg.Done()
			s.ReplaceChunks("b", testChunks("b", 4))
		}()
	}
	wg.Wait()

	if got := len(s.ChunksByDocument("a")); got != 3 {
		t.Errorf("doc a has %d chunks, want 3", got)
	}
	if got := len(s.ChunksByDocument("b")); got != 4 {
		t.Errorf("doc b has %d chunks, want 4", got)
	}

	docs, chunks := s.Counts()
	if docs != 2 || chunks != 7 {
		t.Errorf("Counts() = (%d, %d), want (2, 7)", docs, chunks)
	}
}
