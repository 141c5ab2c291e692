package retrieval

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kalambet/docchat/internal/store"
)

type mockEmbedder struct {
	embedFunc func(ctx context.Context, text string) ([]float32, error)
	calls     int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	return m.embedFunc(ctx, text)
}

type staticChunks []store.Chunk

func (s staticChunks) AllChunks() []store.Chunk { return s }

func chunkWithVec(id string, vec []float32) store.Chunk {
	return store.Chunk{ID: id, DocumentID: "doc", Content: "c " + id, Embedding: vec}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 2}, 0},
		{"both empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestRetrieve_EmptyStoreSkipsEmbedding(t *testing.T) {
	emb := &mockEmbedder{embedFunc: func(context.Context, string) ([]float32, error) {
		return nil, errors.New("should not be called")
	}}
	r := New(emb, staticChunks(nil))

	results, err := r.Retrieve(context.Background(), "anything", 0, 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results from empty store, want 0", len(results))
	}
	if emb.calls != 0 {
		t.Errorf("query was embedded %d times against an empty store", emb.calls)
	}
}

func TestRetrieve_FiltersAndSorts(t *testing.T) {
	emb := &mockEmbedder{embedFunc: func(context.Context, string) ([]float32, error) {
		return []float32{1, 0}, nil
	}}
	chunks := staticChunks{
		chunkWithVec("low", []float32{0.2, 1}),    // below threshold
		chunkWithVec("mid", []float32{1, 0.5}),    // ~0.89
		chunkWithVec("exact", []float32{1, 0}),    // 1.0
		chunkWithVec("neg", []float32{-1, 0}),     // -1
		chunkWithVec("ortho", []float32{0, 1}),    // 0
		chunkWithVec("close", []float32{1, 0.25}), // ~0.97
	}
	r := New(emb, chunks)

	results, err := r.Retrieve(context.Background(), "q", 5, 0.3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	want := []string{"exact", "close", "mid"}
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d: %+v", len(results), len(want), results)
	}
	for i, id := range want {
		if results[i].Chunk.ID != id {
			t.Errorf("results[%d].Chunk.ID = %s, want %s", i, results[i].Chunk.ID, id)
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Errorf("results not sorted descending at %d", i)
		}
	}
}

func TestRetrieve_TruncatesToTopK(t *testing.T) {
	emb := &mockEmbedder{embedFunc: func(context.Context, string) ([]float32, error) {
		return []float32{1, 0}, nil
	}}
	var chunks staticChunks
	for i := 0; i < 10; i++ {
		chunks = append(chunks, chunkWithVec(string(rune('a'+i)), []float32{1, float32(i) * 0.01}))
	}
	r := New(emb, chunks)

	results, err := r.Retrieve(context.Background(), "q", 3, 0.3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("got %d results, want topK=3", len(results))
	}
}

func TestRetrieve_DefaultsApplied(t *testing.T) {
	emb := &mockEmbedder{embedFunc: func(context.Context, string) ([]float32, error) {
		return []float32{1, 0}, nil
	}}
	var chunks staticChunks
	for i := 0; i < 8; i++ {
		chunks = append(chunks, chunkWithVec(string(rune('a'+i)), []float32{1, 0}))
	}
	r := New(emb, chunks)

	results, err := r.Retrieve(context.Background(), "q", 0, 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != DefaultTopK {
		t.Errorf("got %d results, want default topK=%d", len(results), DefaultTopK)
	}
}

func TestRetrieve_EmbedError(t *testing.T) {
	wantErr := errors.New("backend down")
	emb := &mockEmbedder{embedFunc: func(context.Context, string) ([]float32, error) {
		return nil, wantErr
	}}
	r := New(emb, staticChunks{chunkWithVec("a", []float32{1, 0})})

	if _, err := r.Retrieve(context.Background(), "q", 0, 0); !errors.Is(err, wantErr) {
		t.Errorf("Retrieve error = %v, want wrapped %v", err, wantErr)
	}
}
