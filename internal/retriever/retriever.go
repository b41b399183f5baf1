// Package retriever turns a question into a ranked list of chunks using an
// embedder and a vector index.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"

	"ragqa/internal/domain"
	"ragqa/internal/vectorindex"
)

// Index is the search surface the retriever needs.
type Index interface {
	Count() int
	Dim() int
	Search(queries domain.Matrix, topK int) (vectorindex.Result, error)
}

// Retriever embeds queries and maps index hits back to chunks by position.
type Retriever struct {
	embedder domain.Embedder
	logger   *slog.Logger
}

func New(embedder domain.Embedder, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{embedder: embedder, logger: logger}
}

// QueryVector embeds and L2-normalizes a single query.
func (r *Retriever) QueryVector(ctx context.Context, query string) (domain.Matrix, error) {
	m, err := r.embedder.Embed(ctx, []string{query}, 1)
	if err != nil {
		return domain.Matrix{}, fmt.Errorf("embed query: %w", err)
	}
	if m.Rows != 1 {
		return domain.Matrix{}, fmt.Errorf("embedder returned %d rows for one query: %w", m.Rows, domain.ErrInvalidInput)
	}
	vectorindex.Normalize(m.Row(0), vectorindex.DefaultEpsilon)
	return m, nil
}

// Retrieve returns up to topK chunks ordered by descending similarity.
// Row i of idx must correspond to chunks[i].
func (r *Retriever) Retrieve(ctx context.Context, query string, idx Index, chunks []domain.Chunk, topK int) ([]domain.RetrievedChunk, error) {
	if isNil(idx) {
		return nil, fmt.Errorf("no index loaded: %w", domain.ErrInvalidState)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks loaded: %w", domain.ErrInvalidState)
	}
	if n := idx.Count(); n != len(chunks) {
		return nil, fmt.Errorf("index holds %d vectors but %d chunks were supplied: %w", n, len(chunks), domain.ErrInconsistentState)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("top_k %d must be positive: %w", topK, domain.ErrInvalidInput)
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	q, err := r.QueryVector(ctx, query)
	if err != nil {
		return nil, err
	}
	if q.Dim != idx.Dim() {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d: %w", q.Dim, idx.Dim(), domain.ErrInvalidInput)
	}
	res, err := idx.Search(q, topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	out := make([]domain.RetrievedChunk, 0, len(res.Indices[0]))
	dropped := 0
	for j, i := range res.Indices[0] {
		if i < 0 || i >= len(chunks) {
			dropped++
			continue
		}
		s := res.Scores[0][j]
		out = append(out, domain.RetrievedChunk{
			Chunk:       chunks[i],
			Score:       s,
			VectorScore: s,
			Retrieval:   domain.RetrievalVector,
		})
	}
	if dropped > 0 {
		r.logger.Warn("discarded invalid index positions", "count", dropped)
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Score > out[b].Score
	})
	return out, nil
}

func isNil(idx Index) bool {
	if idx == nil {
		return true
	}
	v := reflect.ValueOf(idx)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
