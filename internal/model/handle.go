// Package model holds lazily loaded, process-wide model handles.
package model

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Loader creates the underlying model. It runs at most once per successful load.
type Loader[T any] func(ctx context.Context) (T, error)

// Handle owns a model that is created on first use and reused afterwards.
// Concurrent first calls are serialized so that only one load happens.
// A failed load is not cached; the next Get retries.
type Handle[T any] struct {
	name   string
	loader Loader[T]

	mu     sync.RWMutex
	loaded bool
	value  T
}

func NewHandle[T any](name string, loader Loader[T]) *Handle[T] {
	return &Handle[T]{name: name, loader: loader}
}

// Ready wraps an already constructed value.
func Ready[T any](name string, value T) *Handle[T] {
	return &Handle[T]{name: name, loaded: true, value: value}
}

func (h *Handle[T]) Name() string {
	return h.name
}

// Loaded reports whether the model has been created.
func (h *Handle[T]) Loaded() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.loaded
}

// Get returns the model, loading it if absent.
func (h *Handle[T]) Get(ctx context.Context) (T, error) {
	h.mu.RLock()
	if h.loaded {
		v := h.value
		h.mu.RUnlock()
		return v, nil
	}
	h.mu.RUnlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.loaded {
		return h.value, nil
	}
	var zero T
	if h.loader == nil {
		return zero, fmt.Errorf("model %s has no loader", h.name)
	}
	v, err := h.loader(ctx)
	if err != nil {
		return zero, fmt.Errorf("load model %s: %w", h.name, err)
	}
	slog.Debug("model loaded", "model", h.name)
	h.value = v
	h.loaded = true
	return v, nil
}
