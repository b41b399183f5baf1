package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ollama/ollama/api"

	"ragqa/internal/domain"
)

const (
	DefaultHost  = "http://localhost:11434"
	DefaultModel = "nomic-embed-text"
)

type Config struct {
	Host    string
	Model   string
	Timeout time.Duration
}

// Embedder calls a local Ollama server's /api/embed endpoint.
type Embedder struct {
	client *api.Client
	model  string

	mu        sync.RWMutex
	dimension int
}

func NewEmbedder(cfg Config) (*Embedder, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	u, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", cfg.Host, err)
	}
	return &Embedder{
		client: api.NewClient(u, &http.Client{Timeout: cfg.Timeout}),
		model:  cfg.Model,
	}, nil
}

func (e *Embedder) Name() string { return "ollama:" + e.model }

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
	rows := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		resp, err := e.client.Embed(ctx, &api.EmbedRequest{
			Model: e.model,
			Input: texts[start:end],
		})
		if err != nil {
			return domain.Matrix{}, fmt.Errorf("ollama embed: %w", err)
		}
		if len(resp.Embeddings) != end-start {
			return domain.Matrix{}, fmt.Errorf("ollama embed: got %d vectors for %d inputs", len(resp.Embeddings), end-start)
		}
		rows = append(rows, resp.Embeddings...)
	}
	m, err := domain.NewMatrix(rows)
	if err != nil {
		return domain.Matrix{}, fmt.Errorf("ollama embed: %w", err)
	}
	e.mu.Lock()
	if e.dimension == 0 {
		e.dimension = m.Dim
	}
	e.mu.Unlock()
	return m, nil
}
