package tfidf

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"ragqa/internal/domain"
)

// Embedder implements a TF-IDF vectorizer.
// It builds a vocabulary from the corpus and computes smoothed IDF values.
type Embedder struct {
	mu           sync.RWMutex
	vocabulary   map[string]int
	idf          []float64
	dimension    int
	prepared     bool
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewEmbedder creates an unprepared TF-IDF embedder.
func NewEmbedder() *Embedder {
	return &Embedder{
		vocabulary:   make(map[string]int),
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
		stopwords:    defaultStopwords(),
	}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "tfidf" }

// Prepare builds the vocabulary and IDF values from the provided corpus.
func (e *Embedder) Prepare(corpus []string) error {
	if len(corpus) == 0 {
		return fmt.Errorf("empty corpus for TF-IDF prepare: %w", domain.ErrInvalidInput)
	}
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range e.tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	// stable ordering for vocabulary
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	if len(terms) == 0 {
		return fmt.Errorf("no tokens found in corpus: %w", domain.ErrInvalidInput)
	}

	vocabulary := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		vocabulary[term] = i
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.vocabulary = vocabulary
	e.idf = idf
	e.dimension = len(terms)
	e.prepared = true
	return nil
}

// Dimension returns the vocabulary size, or 0 before Prepare.
func (e *Embedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimension
}

// Embed computes L2-normalized TF-IDF vectors. Texts with no known terms map to zero rows.
func (e *Embedder) Embed(ctx context.Context, texts []string, batchSize int) (domain.Matrix, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.prepared {
		return domain.Matrix{}, fmt.Errorf("tfidf embedder not prepared: %w", domain.ErrInvalidState)
	}
	if len(texts) == 0 {
		return domain.EmptyMatrix(e.dimension), nil
	}
	m := domain.Matrix{Rows: len(texts), Dim: e.dimension, Data: make([]float32, len(texts)*e.dimension)}
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return domain.Matrix{}, err
		}
		e.embedInto(m.Row(i), text)
	}
	return m, nil
}

func (e *Embedder) embedInto(dst []float32, text string) {
	tf := make(map[int]int)
	total := 0
	for _, tok := range e.tokenize(text) {
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return
	}
	norm := 0.0
	vals := make(map[int]float64, len(tf))
	for idx, count := range tf {
		v := float64(count) / float64(total) * e.idf[idx]
		vals[idx] = v
		norm += v * v
	}
	norm = math.Sqrt(norm)
	for idx, v := range vals {
		dst[idx] = float32(v / norm)
	}
}

func (e *Embedder) tokenize(text string) []string {
	raw := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

type state struct {
	Terms []string  `json:"terms"`
	IDF   []float64 `json:"idf"`
}

// MarshalState encodes the fitted vocabulary so query vectors can be
// produced against a persisted index.
func (e *Embedder) MarshalState() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.prepared {
		return nil, fmt.Errorf("tfidf embedder not prepared: %w", domain.ErrInvalidState)
	}
	terms := make([]string, len(e.vocabulary))
	for term, i := range e.vocabulary {
		terms[i] = term
	}
	return json.Marshal(state{Terms: terms, IDF: e.idf})
}

// UnmarshalState restores a vocabulary written by MarshalState.
func (e *Embedder) UnmarshalState(data []byte) error {
	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode tfidf state: %v: %w", err, domain.ErrCorruptData)
	}
	if len(s.Terms) == 0 || len(s.Terms) != len(s.IDF) {
		return fmt.Errorf("tfidf state has %d terms and %d idf values: %w", len(s.Terms), len(s.IDF), domain.ErrCorruptData)
	}
	vocabulary := make(map[string]int, len(s.Terms))
	for i, term := range s.Terms {
		vocabulary[term] = i
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.vocabulary = vocabulary
	e.idf = s.IDF
	e.dimension = len(s.Terms)
	e.prepared = true
	return nil
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "where", "when", "who", "how", "which", "why", "did", "do", "does",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
