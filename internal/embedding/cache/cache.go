// Package cache memoizes embedding vectors of remote providers.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"ragqa/internal/domain"
)

// Store holds encoded vectors by key. A missing key yields a nil entry.
type Store interface {
	GetMany(ctx context.Context, keys []string) ([][]float32, error)
	SetMany(ctx context.Context, entries map[string][]float32) error
}

// Embedder serves vectors from a Store and embeds only the misses.
// Store failures are logged and the call falls through to the provider.
type Embedder struct {
	inner  domain.Embedder
	store  Store
	prefix string
	logger *slog.Logger
}

func New(inner domain.Embedder, store Store, prefix string, logger *slog.Logger) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{inner: inner, store: store, prefix: prefix, logger: logger}
}

func (e *Embedder) Name() string   { return e.inner.Name() }
func (e *Embedder) Dimension() int { return e.inner.Dimension() }

func (e *Embedder) key(text string) string {
	sum := sha256.Sum256([]byte(e.inner.Name() + "\x00" + text))
	return e.prefix + hex.EncodeToString(sum[:])
}

func (e *Embedder) Embed(ctx context.Context, texts []string, batchSize int) (domain.Matrix, error) {
	if len(texts) == 0 {
		return e.inner.Embed(ctx, texts, batchSize)
	}
	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = e.key(t)
	}
	rows, err := e.store.GetMany(ctx, keys)
	if err != nil || len(rows) != len(texts) {
		if err != nil {
			e.logger.Warn("embedding cache read failed", "error", err)
		}
		rows = make([][]float32, len(texts))
	}

	var missIdx []int
	var missTexts []string
	for i, r := range rows {
		if r == nil {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, texts[i])
		}
	}
	e.logger.Debug("embedding cache lookup", "hits", len(texts)-len(missIdx), "misses", len(missIdx))

	if len(missTexts) > 0 {
		fresh, err := e.inner.Embed(ctx, missTexts, batchSize)
		if err != nil {
			return domain.Matrix{}, err
		}
		if fresh.Rows != len(missIdx) {
			return domain.Matrix{}, fmt.Errorf("%s returned %d rows for %d texts: %w", e.inner.Name(), fresh.Rows, len(missIdx), domain.ErrInvalidState)
		}
		entries := make(map[string][]float32, len(missIdx))
		for j, i := range missIdx {
			row := append([]float32(nil), fresh.Row(j)...)
			rows[i] = row
			entries[keys[i]] = row
		}
		if err := e.store.SetMany(ctx, entries); err != nil {
			e.logger.Warn("embedding cache write failed", "error", err)
		}
	}
	return domain.NewMatrix(rows)
}
