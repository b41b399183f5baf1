// Package embedding adapts embedding providers to the retrieval pipeline.
package embedding

import (
	"context"
	"fmt"

	"ragqa/internal/domain"
	"ragqa/internal/model"
)

// Lazy defers construction of an embedder until first use.
type Lazy struct {
	name   string
	handle *model.Handle[domain.Embedder]
}

// NewLazy wraps a constructor. The constructor runs at most once on success.
func NewLazy(name string, load func(ctx context.Context) (domain.Embedder, error)) *Lazy {
	return &Lazy{name: name, handle: model.NewHandle(name, model.Loader[domain.Embedder](load))}
}

func (l *Lazy) Name() string { return l.name }

// Dimension is 0 until the embedder has been loaded.
func (l *Lazy) Dimension() int {
	if !l.handle.Loaded() {
		return 0
	}
	e, err := l.handle.Get(context.Background())
	if err != nil {
		return 0
	}
	return e.Dimension()
}

func (l *Lazy) Embed(ctx context.Context, texts []string, batchSize int) (domain.Matrix, error) {
	e, err := l.handle.Get(ctx)
	if err != nil {
		return domain.Matrix{}, fmt.Errorf("embedder unavailable: %v: %w", err, domain.ErrInvalidState)
	}
	return e.Embed(ctx, texts, batchSize)
}

// Prepare loads the embedder and forwards the corpus if it needs one.
func (l *Lazy) Prepare(corpus []string) error {
	e, err := l.handle.Get(context.Background())
	if err != nil {
		return fmt.Errorf("embedder unavailable: %v: %w", err, domain.ErrInvalidState)
	}
	if p, ok := e.(domain.Preparer); ok {
		return p.Prepare(corpus)
	}
	return nil
}

func (l *Lazy) MarshalState() ([]byte, error) {
	e, err := l.handle.Get(context.Background())
	if err != nil {
		return nil, err
	}
	if s, ok := e.(domain.Stateful); ok {
		return s.MarshalState()
	}
	return nil, nil
}

func (l *Lazy) UnmarshalState(data []byte) error {
	e, err := l.handle.Get(context.Background())
	if err != nil {
		return err
	}
	if s, ok := e.(domain.Stateful); ok {
		return s.UnmarshalState(data)
	}
	return nil
}
