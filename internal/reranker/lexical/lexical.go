// Package lexical scores (query, text) pairs by token overlap.
package lexical

import (
	"context"
	"math"
	"regexp"
	"strings"

	"ragqa/internal/domain"
)

var wordPattern = regexp.MustCompile(`\p{L}+|\p{N}+`)

// Model is an Ochiai overlap scorer over lowercase word sets.
type Model struct{}

func New() *Model { return &Model{} }

func (m *Model) Name() string { return "lexical-ochiai" }

func (m *Model) Predict(ctx context.Context, pairs []domain.Pair) ([]float32, error) {
	out := make([]float32, len(pairs))
	for i, p := range pairs {
		out[i] = float32(Ochiai(p.Query, p.Text))
	}
	return out, nil
}

// Ochiai returns |A∩B| / sqrt(|A|·|B|) over the word sets of a and b.
func Ochiai(a, b string) float64 {
	as := wordSet(a)
	bs := wordSet(b)
	if len(as) == 0 || len(bs) == 0 {
		return 0
	}
	inter := 0
	for w := range as {
		if _, ok := bs[w]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(as))*float64(len(bs)))
}

func wordSet(s string) map[string]struct{} {
	words := wordPattern.FindAllString(strings.ToLower(s), -1)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
