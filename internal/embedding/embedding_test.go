package embedding

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
)

type mockBackend struct {
	embedFunc func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.embedFunc(ctx, text)
}

func TestEmbed_WrapsBackendError(t *testing.T) {
	wantErr := errors.New("quota exceeded")
	svc := New(&mockBackend{embedFunc: func(context.Context, string) ([]float32, error) {
		return nil, wantErr
	}})

	if _, err := svc.Embed(context.Background(), "x"); !errors.Is(err, wantErr) {
		t.Errorf("Embed error = %v, want wrapped %v", err, wantErr)
	}
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	svc := New(&mockBackend{embedFunc: func(context.Context, string) ([]float32, error) {
		t.Error("backend called for empty batch")
		return nil, nil
	}})

	vecs, err := svc.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if vecs != nil {
		t.Errorf("got %v for empty input, want nil", vecs)
	}
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	svc := New(&mockBackend{embedFunc: func(_ context.Context, text string) ([]float32, error) {
		n, _ := strconv.Atoi(text)
		return []float32{float32(n)}, nil
	}})

	texts := make([]string, 25)
	for i := range texts {
		texts[i] = strconv.Itoa(i)
	}

	vecs, err := svc.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vecs), len(texts))
	}
	for i, vec := range vecs {
		if len(vec) != 1 || vec[0] != float32(i) {
			t.Errorf("vecs[%d] = %v, want [%d]", i, vec, i)
		}
	}
}

func TestEmbedBatch_BoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	var mu sync.Mutex

	svc := New(&mockBackend{embedFunc: func(context.Context, string) ([]float32, error) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		mu.Lock()
		if cur > peak.Load() {
			peak.Store(cur)
		}
		mu.Unlock()
		return []float32{1}, nil
	}})

	texts := make([]string, 35)
	for i := range texts {
		texts[i] = fmt.Sprintf("text %d", i)
	}
	if _, err := svc.EmbedBatch(context.Background(), texts); err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if p := peak.Load(); p > batchSize {
		t.Errorf("peak in-flight requests = %d, want <= %d", p, batchSize)
	}
}

func TestEmbedBatch_FailureAbortsWholeBatch(t *testing.T) {
	wantErr := errors.New("backend down")
	svc := New(&mockBackend{embedFunc: func(_ context.Context, text string) ([]float32, error) {
		if text == "bad" {
			return nil, wantErr
		}
		return []float32{1}, nil
	}})

	texts := []string{"a", "b", "bad", "c"}
	vecs, err := svc.EmbedBatch(context.Background(), texts)
	if !errors.Is(err, wantErr) {
		t.Errorf("EmbedBatch error = %v, want wrapped %v", err, wantErr)
	}
	if vecs != nil {
		t.Errorf("got partial results %v, want nil", vecs)
	}
}
