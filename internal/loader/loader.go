// Package loader reads source documents from disk. Text files become one
// record each; PDFs become one record per non-empty page.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"ragqa/internal/domain"
)

// Stats counts what a load call did with its inputs.
type Stats struct {
	Files      int `json:"files"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
	EmptyPages int `json:"empty_pages"`
	Documents  int `json:"documents"`
}

type Loader struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// LoadDir loads every supported file directly inside dir.
func (l *Loader) LoadDir(dir string) ([]domain.DocumentRecord, Stats, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, Stats{}, fmt.Errorf("directory not found or not a directory: %s: %w", dir, domain.ErrNotFound)
	}
	return l.LoadFiles([]string{dir})
}

// LoadFiles expands each path (a file, a directory read non-recursively, or a
// glob pattern) and loads every supported file in sorted order. A path that
// matches nothing yields ErrNotFound. Document ids must be unique.
func (l *Loader) LoadFiles(paths []string) ([]domain.DocumentRecord, Stats, error) {
	var stats Stats
	files, err := expand(paths)
	if err != nil {
		return nil, stats, err
	}

	var docs []domain.DocumentRecord
	seen := make(map[string]string)
	for _, f := range files {
		var recs []domain.DocumentRecord
		switch strings.ToLower(filepath.Ext(f)) {
		case ".txt":
			rec, err := loadText(f)
			if err != nil {
				return nil, stats, err
			}
			recs = []domain.DocumentRecord{rec}
		case ".pdf":
			pages, empty, err := loadPDF(f)
			if err != nil {
				l.logger.Warn("failed to read pdf", "path", f, "error", err)
				stats.Failed++
				continue
			}
			stats.EmptyPages += empty
			recs = pages
		default:
			stats.Skipped++
			l.logger.Debug("skipping unsupported file", "path", f)
			continue
		}
		stats.Files++
		for _, r := range recs {
			if prev, dup := seen[r.DocumentID]; dup {
				return nil, stats, fmt.Errorf("document id %q from %s already used by %s: %w", r.DocumentID, f, prev, domain.ErrInvalidInput)
			}
			seen[r.DocumentID] = f
			docs = append(docs, r)
		}
	}
	stats.Documents = len(docs)
	if stats.Skipped > 0 || stats.Failed > 0 || stats.EmptyPages > 0 {
		l.logger.Info("some inputs produced no documents",
			"skipped", stats.Skipped, "failed", stats.Failed, "empty_pages", stats.EmptyPages)
	}
	return docs, stats, nil
}

func expand(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err == nil {
			if !info.IsDir() {
				files = append(files, p)
				continue
			}
			entries, err := os.ReadDir(p)
			if err != nil {
				return nil, fmt.Errorf("read dir %s: %v: %w", p, err, domain.ErrNotFound)
			}
			for _, e := range entries {
				if e.Type().IsRegular() {
					files = append(files, filepath.Join(p, e.Name()))
				}
			}
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		matches, gerr := filepath.Glob(p)
		if gerr != nil || len(matches) == 0 {
			return nil, fmt.Errorf("no files match %s: %w", p, domain.ErrNotFound)
		}
		for _, m := range matches {
			if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() {
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return dedupe(files), nil
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i > 0 && s == sorted[i-1] {
			continue
		}
		out = append(out, s)
	}
	return out
}

func loadText(path string) (domain.DocumentRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.DocumentRecord{}, fmt.Errorf("read %s: %v: %w", path, err, domain.ErrNotFound)
	}
	return domain.DocumentRecord{
		DocumentID: filepath.Base(path),
		Text:       strings.TrimSpace(strings.ToValidUTF8(string(data), "")),
	}, nil
}

// loadPDF returns one record per page with text, ids "<file>_page_<n>" (1-based).
func loadPDF(path string) ([]domain.DocumentRecord, int, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	name := filepath.Base(path)
	var out []domain.DocumentRecord
	empty := 0
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			empty++
			continue
		}
		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			empty++
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			empty++
			continue
		}
		out = append(out, domain.DocumentRecord{
			DocumentID: fmt.Sprintf("%s_page_%d", name, i),
			Text:       text,
		})
	}
	return out, empty, nil
}
