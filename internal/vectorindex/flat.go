// Package vectorindex implements an exact inner-product index over
// L2-normalized float32 vectors.
package vectorindex

import (
	"fmt"
	"math"
	"sort"

	"ragqa/internal/domain"
)

// DefaultEpsilon floors vector norms during normalization.
const DefaultEpsilon = 1e-12

// Flat is an immutable brute-force index. Row i of the stored matrix
// corresponds to position i of the slice it was built from.
type Flat struct {
	dim  int
	data []float32
}

// Result holds per-query scores and row positions, best first.
type Result struct {
	Scores  [][]float32
	Indices [][]int
}

// Build copies and L2-normalizes the rows of m.
func Build(m domain.Matrix) (*Flat, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.Rows == 0 || m.Dim == 0 {
		return nil, fmt.Errorf("cannot build index from empty matrix (%d, %d): %w", m.Rows, m.Dim, domain.ErrInvalidInput)
	}
	data := make([]float32, len(m.Data))
	copy(data, m.Data)
	for i := 0; i < m.Rows; i++ {
		Normalize(data[i*m.Dim:(i+1)*m.Dim], DefaultEpsilon)
	}
	return &Flat{dim: m.Dim, data: data}, nil
}

// BuildFromRows is Build over a slice of rows. Ragged rows are rejected.
func BuildFromRows(rows [][]float32) (*Flat, error) {
	m, err := domain.NewMatrix(rows)
	if err != nil {
		return nil, err
	}
	return Build(m)
}

// Count is the number of stored vectors.
func (f *Flat) Count() int {
	if f.dim == 0 {
		return 0
	}
	return len(f.data) / f.dim
}

// Dim is the stored dimensionality.
func (f *Flat) Dim() int {
	return f.dim
}

func (f *Flat) row(i int) []float32 {
	return f.data[i*f.dim : (i+1)*f.dim]
}

// Search returns, for every query row, the min(topK, Count) rows with the
// highest inner product. Ties keep the lower row first.
func (f *Flat) Search(queries domain.Matrix, topK int) (Result, error) {
	if topK <= 0 {
		return Result{}, fmt.Errorf("top_k %d must be positive: %w", topK, domain.ErrInvalidInput)
	}
	if err := queries.Validate(); err != nil {
		return Result{}, err
	}
	if queries.Rows == 0 {
		return Result{}, fmt.Errorf("no query vectors: %w", domain.ErrInvalidInput)
	}
	if queries.Dim != f.dim {
		return Result{}, fmt.Errorf("query dimension %d does not match index dimension %d: %w", queries.Dim, f.dim, domain.ErrInvalidInput)
	}

	n := f.Count()
	k := min(topK, n)
	res := Result{
		Scores:  make([][]float32, queries.Rows),
		Indices: make([][]int, queries.Rows),
	}
	scores := make([]float32, n)
	for q := 0; q < queries.Rows; q++ {
		qv := queries.Row(q)
		for i := 0; i < n; i++ {
			scores[i] = dot(f.row(i), qv)
		}
		idxs := argsortDesc(scores)[:k]
		res.Indices[q] = idxs
		res.Scores[q] = make([]float32, k)
		for j, i := range idxs {
			res.Scores[q][j] = scores[i]
		}
	}
	return res, nil
}

// Normalize scales v in place to unit length, dividing by max(norm, eps).
func Normalize(v []float32, eps float64) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm < eps {
		norm = eps
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func argsortDesc(vals []float32) []int {
	idxs := make([]int, len(vals))
	for i := range vals {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool {
		return vals[idxs[a]] > vals[idxs[b]]
	})
	return idxs
}
