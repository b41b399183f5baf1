package domain

import "fmt"

// Matrix is a dense row-major float32 matrix with contiguous storage.
type Matrix struct {
	Rows int
	Dim  int
	Data []float32
}

// NewMatrix copies rows into contiguous storage. Ragged or zero-width rows are rejected.
func NewMatrix(rows [][]float32) (Matrix, error) {
	if len(rows) == 0 {
		return Matrix{}, fmt.Errorf("matrix has no rows: %w", ErrInvalidInput)
	}
	dim := len(rows[0])
	if dim == 0 {
		return Matrix{}, fmt.Errorf("matrix rows have zero width: %w", ErrInvalidInput)
	}
	data := make([]float32, 0, len(rows)*dim)
	for i, r := range rows {
		if len(r) != dim {
			return Matrix{}, fmt.Errorf("row %d has %d columns, want %d: %w", i, len(r), dim, ErrInvalidInput)
		}
		data = append(data, r...)
	}
	return Matrix{Rows: len(rows), Dim: dim, Data: data}, nil
}

// EmptyMatrix returns a zero-row matrix of the given width.
func EmptyMatrix(dim int) Matrix {
	return Matrix{Dim: dim, Data: []float32{}}
}

// Row returns a view of row i. Writes through the view modify the matrix.
func (m Matrix) Row(i int) []float32 {
	start := i * m.Dim
	return m.Data[start : start+m.Dim : start+m.Dim]
}

// Validate checks that the shape and backing storage agree.
func (m Matrix) Validate() error {
	if m.Rows < 0 || m.Dim < 0 {
		return fmt.Errorf("negative matrix shape (%d, %d): %w", m.Rows, m.Dim, ErrInvalidInput)
	}
	if len(m.Data) != m.Rows*m.Dim {
		return fmt.Errorf("matrix shape (%d, %d) does not match %d values: %w", m.Rows, m.Dim, len(m.Data), ErrInvalidInput)
	}
	return nil
}
