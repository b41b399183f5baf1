package openai

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"ragqa/internal/domain"
	"ragqa/internal/openaiclient"
)

const DefaultModel = "text-embedding-3-small"

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	openaiclient.Config
	// Concurrency bounds the number of batches in flight.
	Concurrency int
}

// Embedder calls an OpenAI-compatible /embeddings endpoint in batches.
// The dimension is learned from the first response.
type Embedder struct {
	client      *openaiclient.Client
	concurrency int

	mu        sync.RWMutex
	dimension int
}

func NewEmbedder(cfg Config) (*Embedder, error) {
	client, err := openaiclient.New(cfg.Config, DefaultModel)
	if err != nil {
		return nil, err
	}
	conc := cfg.Concurrency
	if conc <= 0 {
		conc = 4
	}
	return &Embedder{client: client, concurrency: conc}, nil
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "openai:" + e.client.Model() }

// Dimension returns 0 until the first successful call.
func (e *Embedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimension
}

func (e *Embedder) Embed(ctx context.Context, texts []string, batchSize int) (domain.Matrix, error) {
	if len(texts) == 0 {
		return domain.EmptyMatrix(e.Dimension()), nil
	}
	if batchSize <= 0 {
		batchSize = 32
	}

	rows := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		g.Go(func() error {
			vecs, err := e.client.Embeddings(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(rows[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Matrix{}, err
	}

	m, err := domain.NewMatrix(rows)
	if err != nil {
		return domain.Matrix{}, fmt.Errorf("openai embeddings: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dimension == 0 {
		e.dimension = m.Dim
	} else if e.dimension != m.Dim {
		return domain.Matrix{}, fmt.Errorf("openai embeddings changed dimension from %d to %d: %w", e.dimension, m.Dim, domain.ErrInvalidState)
	}
	return m, nil
}
