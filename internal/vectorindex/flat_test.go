package vectorindex

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"ragqa/internal/domain"
)

func mustMatrix(t *testing.T, rows [][]float32) domain.Matrix {
	t.Helper()
	m, err := domain.NewMatrix(rows)
	if err != nil {
		t.Fatalf("NewMatrix() error: %v", err)
	}
	return m
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		m    domain.Matrix
	}{
		{name: "no rows", m: domain.EmptyMatrix(4)},
		{name: "zero value", m: domain.Matrix{}},
		{name: "shape mismatch", m: domain.Matrix{Rows: 2, Dim: 3, Data: make([]float32, 5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Build(tt.m); !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("Build() error = %v, want ErrInvalidInput", err)
			}
		})
	}

	if _, err := BuildFromRows([][]float32{{1, 2}, {1}}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("BuildFromRows(ragged) error = %v, want ErrInvalidInput", err)
	}
}

func TestBuild_NormalizesCopy(t *testing.T) {
	rows := [][]float32{{3, 4}, {0, 2}}
	m := mustMatrix(t, rows)
	idx, err := Build(m)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if m.Data[0] != 3 {
		t.Error("Build() mutated its input")
	}
	if idx.Count() != 2 || idx.Dim() != 2 {
		t.Fatalf("shape = (%d, %d), want (2, 2)", idx.Count(), idx.Dim())
	}
	got := idx.row(0)
	if math.Abs(float64(got[0])-0.6) > 1e-6 || math.Abs(float64(got[1])-0.8) > 1e-6 {
		t.Errorf("row 0 = %v, want [0.6 0.8]", got)
	}
}

func TestSearch_TopKClamp(t *testing.T) {
	idx, err := BuildFromRows([][]float32{{1, 0}, {0, 1}, {1, 1}})
	if err != nil {
		t.Fatalf("BuildFromRows() error: %v", err)
	}
	res, err := idx.Search(mustMatrix(t, [][]float32{{1, 0}}), 1000)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(res.Indices[0]) != 3 || len(res.Scores[0]) != 3 {
		t.Fatalf("expected 3 results, got %d", len(res.Indices[0]))
	}
	for _, i := range res.Indices[0] {
		if i < 0 || i >= 3 {
			t.Errorf("invalid index %d", i)
		}
	}
	if !reflect.DeepEqual(res.Indices[0], []int{0, 2, 1}) {
		t.Errorf("indices = %v, want [0 2 1]", res.Indices[0])
	}
	for j := 0; j+1 < len(res.Scores[0]); j++ {
		if res.Scores[0][j] < res.Scores[0][j+1] {
			t.Errorf("scores not descending: %v", res.Scores[0])
		}
	}
}

func TestSearch_PositionalCorrespondence(t *testing.T) {
	rows := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
	idx, err := BuildFromRows(rows)
	if err != nil {
		t.Fatalf("BuildFromRows() error: %v", err)
	}
	res, err := idx.Search(mustMatrix(t, rows), 1)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	for q := range rows {
		if res.Indices[q][0] != q {
			t.Errorf("query %d matched row %d", q, res.Indices[q][0])
		}
		if math.Abs(float64(res.Scores[q][0])-1) > 1e-6 {
			t.Errorf("query %d score = %f, want 1", q, res.Scores[q][0])
		}
	}
}

func TestSearch_TiesKeepLowerRowFirst(t *testing.T) {
	idx, err := BuildFromRows([][]float32{{0, 1}, {1, 0}, {1, 0}, {1, 0}})
	if err != nil {
		t.Fatalf("BuildFromRows() error: %v", err)
	}
	res, err := idx.Search(mustMatrix(t, [][]float32{{1, 0}}), 3)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if !reflect.DeepEqual(res.Indices[0], []int{1, 2, 3}) {
		t.Errorf("indices = %v, want [1 2 3]", res.Indices[0])
	}
}

func TestSearch_Errors(t *testing.T) {
	idx, err := BuildFromRows([][]float32{{1, 0}, {0, 1}})
	if err != nil {
		t.Fatalf("BuildFromRows() error: %v", err)
	}
	tests := []struct {
		name string
		q    domain.Matrix
		topK int
	}{
		{name: "zero top_k", q: mustMatrix(t, [][]float32{{1, 0}}), topK: 0},
		{name: "negative top_k", q: mustMatrix(t, [][]float32{{1, 0}}), topK: -1},
		{name: "no queries", q: domain.EmptyMatrix(2), topK: 1},
		{name: "dimension mismatch", q: mustMatrix(t, [][]float32{{1, 0, 0}}), topK: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := idx.Search(tt.q, tt.topK); !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("Search() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestNormalize_ZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	Normalize(v, DefaultEpsilon)
	for _, x := range v {
		if x != 0 || math.IsNaN(float64(x)) {
			t.Fatalf("Normalize(zero) = %v", v)
		}
	}
}

func TestSaveLoad(t *testing.T) {
	idx, err := BuildFromRows([][]float32{{1, 2, 3}, {-1, 0.5, 2}, {0, 0, 1}})
	if err != nil {
		t.Fatalf("BuildFromRows() error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "nested", "index.bin")
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Count() != 3 || loaded.Dim() != 3 {
		t.Fatalf("loaded shape = (%d, %d)", loaded.Count(), loaded.Dim())
	}
	if !reflect.DeepEqual(loaded.data, idx.data) {
		t.Error("loaded vectors differ from saved vectors")
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.bin")); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Load(missing) error = %v, want ErrNotFound", err)
	}

	idx, err := BuildFromRows([][]float32{{1, 0}, {0, 1}})
	if err != nil {
		t.Fatalf("BuildFromRows() error: %v", err)
	}
	good, err := idx.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error: %v", err)
	}

	flipped := append([]byte(nil), good...)
	flipped[headerSize] ^= 0xff
	badMagic := append([]byte(nil), good...)
	badMagic[0] = 'X'

	// count*dim wraps to 1 in int arithmetic, so a single-value body looks sized right
	overflow := make([]byte, headerSize, headerSize+8)
	copy(overflow, magic[:])
	binary.LittleEndian.PutUint16(overflow[4:6], formatVersion)
	binary.LittleEndian.PutUint32(overflow[6:10], 384773*5581)
	binary.LittleEndian.PutUint32(overflow[10:14], 5*8681*49477)
	overflow = binary.LittleEndian.AppendUint32(overflow, math.Float32bits(1))
	overflow = binary.LittleEndian.AppendUint32(overflow, crc32.ChecksumIEEE(overflow))

	cases := map[string][]byte{
		"overflowing shape": overflow,
		"garbage":           []byte("not an index"),
		"truncated":         good[:len(good)-3],
		"bit flip":          flipped,
		"bad magic":         badMagic,
	}
	for name, blob := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".bin")
			if err := os.WriteFile(path, blob, 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); !errors.Is(err, domain.ErrCorruptData) {
				t.Errorf("Load() error = %v, want ErrCorruptData", err)
			}
		})
	}
}
