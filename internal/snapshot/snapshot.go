// Package snapshot persists an index together with the chunk list it was
// built from, and re-pairs them on load.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"ragqa/internal/domain"
	"ragqa/internal/vectorindex"
)

const (
	IndexFile    = "index.bin"
	ChunksFile   = "chunks.json"
	EmbedderFile = "embedder.json"
)

// Snapshot is one index build.
type Snapshot struct {
	BuildID  string
	Model    string
	Index    *vectorindex.Flat
	Chunks   []domain.Chunk
	Embedder []byte
}

type metadata struct {
	BuildID   string         `json:"build_id"`
	Model     string         `json:"model"`
	Dimension int            `json:"dimension"`
	Chunks    []domain.Chunk `json:"chunks"`
}

// Save writes the snapshot files into dir.
func Save(dir string, s Snapshot) error {
	if s.Index == nil {
		return fmt.Errorf("snapshot has no index: %w", domain.ErrInvalidState)
	}
	if s.Index.Count() != len(s.Chunks) {
		return fmt.Errorf("index holds %d vectors but %d chunks: %w", s.Index.Count(), len(s.Chunks), domain.ErrInconsistentState)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := s.Index.Save(filepath.Join(dir, IndexFile)); err != nil {
		return err
	}
	meta, err := json.MarshalIndent(metadata{
		BuildID:   s.BuildID,
		Model:     s.Model,
		Dimension: s.Index.Dim(),
		Chunks:    s.Chunks,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode chunk metadata: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, ChunksFile), meta); err != nil {
		return err
	}
	embPath := filepath.Join(dir, EmbedderFile)
	if len(s.Embedder) > 0 {
		return writeFileAtomic(embPath, s.Embedder)
	}
	if err := os.Remove(embPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale embedder state: %w", err)
	}
	return nil
}

// Load reads and validates a snapshot written by Save.
func Load(dir string) (Snapshot, error) {
	idx, err := vectorindex.Load(filepath.Join(dir, IndexFile))
	if err != nil {
		return Snapshot{}, err
	}
	raw, err := os.ReadFile(filepath.Join(dir, ChunksFile))
	if err != nil {
		return Snapshot{}, fmt.Errorf("read chunk metadata: %v: %w", err, domain.ErrNotFound)
	}
	var meta metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Snapshot{}, fmt.Errorf("decode chunk metadata: %v: %w", err, domain.ErrCorruptData)
	}
	if len(meta.Chunks) != idx.Count() {
		return Snapshot{}, fmt.Errorf("index holds %d vectors but metadata lists %d chunks: %w", idx.Count(), len(meta.Chunks), domain.ErrInconsistentState)
	}
	if meta.Dimension != idx.Dim() {
		return Snapshot{}, fmt.Errorf("index dimension %d does not match metadata dimension %d: %w", idx.Dim(), meta.Dimension, domain.ErrInconsistentState)
	}
	for i, c := range meta.Chunks {
		if c.ChunkID == "" {
			return Snapshot{}, fmt.Errorf("chunk %d has no id: %w", i, domain.ErrCorruptData)
		}
	}

	emb, err := os.ReadFile(filepath.Join(dir, EmbedderFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, fmt.Errorf("read embedder state: %w", err)
	}
	return Snapshot{
		BuildID:  meta.BuildID,
		Model:    meta.Model,
		Index:    idx,
		Chunks:   meta.Chunks,
		Embedder: emb,
	}, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp.Name(), path)
}
