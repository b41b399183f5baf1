package embedding

import (
	"context"
	"errors"
	"testing"

	"ragqa/internal/domain"
	"ragqa/internal/embedding/tfidf"
)

func TestLazy_LoadsOnFirstUse(t *testing.T) {
	loads := 0
	l := NewLazy("tfidf", func(ctx context.Context) (domain.Embedder, error) {
		loads++
		return tfidf.NewEmbedder(), nil
	})
	if l.Dimension() != 0 || loads != 0 {
		t.Fatalf("embedder loaded before first use")
	}
	if err := l.Prepare([]string{"alpha beta", "gamma"}); err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}
	m, err := l.Embed(context.Background(), []string{"alpha"}, 1)
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if m.Dim != 3 || l.Dimension() != 3 {
		t.Errorf("dimension = %d/%d, want 3", m.Dim, l.Dimension())
	}
	if loads != 1 {
		t.Errorf("loaded %d times, want 1", loads)
	}
	blob, err := l.MarshalState()
	if err != nil || len(blob) == 0 {
		t.Errorf("MarshalState() = %d bytes, %v", len(blob), err)
	}
}

func TestLazy_LoadFailure(t *testing.T) {
	l := NewLazy("broken", func(ctx context.Context) (domain.Embedder, error) {
		return nil, errors.New("no weights")
	})
	if _, err := l.Embed(context.Background(), []string{"x"}, 1); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("Embed() error = %v, want ErrInvalidState", err)
	}
}
