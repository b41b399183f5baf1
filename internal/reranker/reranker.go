// Package reranker re-scores retrieved candidates with a pairwise scoring
// model and keeps the best few.
package reranker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"ragqa/internal/domain"
	"ragqa/internal/model"
)

// Reranker owns a lazily loaded scoring model.
type Reranker struct {
	model  *model.Handle[domain.ScoringModel]
	logger *slog.Logger
}

func New(handle *model.Handle[domain.ScoringModel], logger *slog.Logger) *Reranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reranker{model: handle, logger: logger}
}

// Rerank scores every non-blank candidate against query and returns the
// topK best, highest rerank score first. Candidates are not modified.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []domain.RetrievedChunk, topK int) ([]domain.RetrievedChunk, error) {
	if strings.TrimSpace(query) == "" || len(candidates) == 0 {
		return nil, nil
	}
	if topK <= 0 {
		return nil, fmt.Errorf("top_k %d must be positive: %w", topK, domain.ErrInvalidInput)
	}

	kept := make([]domain.RetrievedChunk, 0, len(candidates))
	for _, c := range candidates {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		kept = append(kept, c)
	}
	if skipped := len(candidates) - len(kept); skipped > 0 {
		r.logger.Info("skipped blank rerank candidates", "count", skipped)
	}
	if len(kept) == 0 {
		return nil, nil
	}

	m, err := r.model.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("reranker unavailable: %v: %w", err, domain.ErrInvalidState)
	}
	pairs := make([]domain.Pair, len(kept))
	for i, c := range kept {
		pairs[i] = domain.Pair{Query: query, Text: c.Text}
	}
	scores, err := m.Predict(ctx, pairs)
	if err != nil {
		return nil, fmt.Errorf("rerank with %s: %w", m.Name(), err)
	}
	if len(scores) != len(kept) {
		return nil, fmt.Errorf("scoring model returned %d scores for %d pairs: %w", len(scores), len(kept), domain.ErrInvalidState)
	}

	for i := range kept {
		s := scores[i]
		kept[i].VectorScore = kept[i].Score
		kept[i].RerankScore = &s
		kept[i].Score = s
		kept[i].Retrieval = domain.RetrievalReranked
	}
	sort.SliceStable(kept, func(a, b int) bool {
		return kept[a].Score > kept[b].Score
	})
	if len(kept) > topK {
		kept = kept[:topK]
	}
	r.logger.Debug("reranked candidates", "model", m.Name(), "candidates", len(pairs), "kept", len(kept))
	return kept, nil
}
