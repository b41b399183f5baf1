package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ragqa/internal/cleaner"
	"ragqa/internal/domain"
	"ragqa/internal/generation"
	"ragqa/internal/lexical"
	"ragqa/internal/loader"
	"ragqa/internal/retriever"
	"ragqa/internal/snapshot"
	"ragqa/internal/vectorindex"
)

// ErrGenerationDisabled is returned by Answer when no generator is configured.
var ErrGenerationDisabled = errors.New("answer generation is disabled")

// zeroScore is the similarity at or below which vector hits are treated as no signal.
const zeroScore = 1e-9

// DocumentSource loads document records from paths.
type DocumentSource interface {
	LoadFiles(paths []string) ([]domain.DocumentRecord, loader.Stats, error)
}

// Reranker re-scores retrieval candidates.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []domain.RetrievedChunk, topK int) ([]domain.RetrievedChunk, error)
}

// Options wires the service. Chunker and Embedder are required.
type Options struct {
	Source          DocumentSource
	Chunker         domain.Chunker
	Clean           func(string) string
	Embedder        domain.Embedder
	BatchSize       int
	Reranker        Reranker
	Candidates      int
	DefaultTopK     int
	LexicalFallback bool
	Rewriter        *generation.Rewriter
	Generator       generation.Generator
	Logger          *slog.Logger
}

// IngestStats summarizes one index build.
type IngestStats struct {
	Files          int    `json:"files"`
	Skipped        int    `json:"skipped"`
	Documents      int    `json:"documents"`
	EmptyDocuments int    `json:"empty_documents"`
	Chunks         int    `json:"chunks"`
	Dimension      int    `json:"dimension"`
	BuildID        string `json:"build_id"`
	Model          string `json:"model"`
}

// corpus is the (index, chunks) pair queries run against. It is replaced
// as a whole and never mutated.
type corpus struct {
	index   *vectorindex.Flat
	chunks  []domain.Chunk
	lexical *lexical.Index
	stats   IngestStats
}

type RAGService struct {
	opts      Options
	retriever *retriever.Retriever
	logger    *slog.Logger

	ingestMu sync.Mutex
	mu       sync.RWMutex
	current  *corpus
}

func NewRAGService(opts Options) *RAGService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Source == nil {
		opts.Source = loader.New(opts.Logger)
	}
	if opts.Clean == nil {
		opts.Clean = cleaner.Clean
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 5
	}
	return &RAGService{
		opts:      opts,
		retriever: retriever.New(opts.Embedder, opts.Logger),
		logger:    opts.Logger,
	}
}

// IngestDocuments loads, chunks and indexes the given paths, replacing any
// previously loaded corpus.
func (s *RAGService) IngestDocuments(ctx context.Context, paths []string) (IngestStats, error) {
	docs, ls, err := s.opts.Source.LoadFiles(paths)
	if err != nil {
		return IngestStats{}, err
	}
	stats := IngestStats{Files: ls.Files, Skipped: ls.Skipped + ls.Failed}
	return s.IngestRecords(ctx, docs, stats)
}

// IngestRecords indexes already loaded documents. base carries load counts.
func (s *RAGService) IngestRecords(ctx context.Context, docs []domain.DocumentRecord, base IngestStats) (IngestStats, error) {
	if len(docs) == 0 {
		return IngestStats{}, fmt.Errorf("no documents to ingest: %w", domain.ErrNotFound)
	}
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	start := time.Now()
	stats := base
	stats.Documents = len(docs)

	var chunks []domain.Chunk
	for _, d := range docs {
		d.Text = s.opts.Clean(d.Text)
		cs, err := s.opts.Chunker.Chunk(d)
		if err != nil {
			return IngestStats{}, fmt.Errorf("chunk %s: %w", d.DocumentID, err)
		}
		if len(cs) == 0 {
			stats.EmptyDocuments++
			s.logger.Debug("document produced no chunks", "document_id", d.DocumentID)
			continue
		}
		chunks = append(chunks, cs...)
	}
	if len(chunks) == 0 {
		return IngestStats{}, fmt.Errorf("%d documents produced no chunks: %w", len(docs), domain.ErrInvalidInput)
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	// A corpus-fitted embedder changes query vectors as soon as it is
	// prepared, so queries wait until the matching index is in place.
	preparer, fitted := s.opts.Embedder.(domain.Preparer)
	if fitted {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := preparer.Prepare(texts); err != nil {
			return IngestStats{}, fmt.Errorf("prepare embedder: %w", err)
		}
	}

	m, err := s.opts.Embedder.Embed(ctx, texts, s.opts.BatchSize)
	if err != nil {
		return IngestStats{}, fmt.Errorf("embed chunks: %w", err)
	}
	if m.Rows != len(chunks) {
		return IngestStats{}, fmt.Errorf("embedder returned %d rows for %d chunks: %w", m.Rows, len(chunks), domain.ErrInconsistentState)
	}
	idx, err := vectorindex.Build(m)
	if err != nil {
		return IngestStats{}, fmt.Errorf("build index: %w", err)
	}

	stats.Chunks = len(chunks)
	stats.Dimension = idx.Dim()
	stats.BuildID = uuid.NewString()
	stats.Model = s.opts.Embedder.Name()

	next := &corpus{index: idx, chunks: chunks, stats: stats}
	if err := s.attachLexical(next); err != nil {
		return IngestStats{}, err
	}
	if fitted {
		s.swapLocked(next)
	} else {
		s.swap(next)
	}

	s.logger.Info("ingested documents",
		"files", stats.Files,
		"skipped", stats.Skipped,
		"documents", stats.Documents,
		"empty_documents", stats.EmptyDocuments,
		"chunks", stats.Chunks,
		"dimension", stats.Dimension,
		"build_id", stats.BuildID,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return stats, nil
}

func (s *RAGService) attachLexical(c *corpus) error {
	if !s.opts.LexicalFallback {
		return nil
	}
	lx, err := lexical.Build(c.chunks)
	if err != nil {
		return err
	}
	c.lexical = lx
	return nil
}

func (s *RAGService) swap(next *corpus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.swapLocked(next)
}

// swapLocked installs next. Queries search under the read lock, so the
// previous lexical index has no readers once the write lock is held.
func (s *RAGService) swapLocked(next *corpus) {
	prev := s.current
	s.current = next
	if prev != nil && prev.lexical != nil {
		if err := prev.lexical.Close(); err != nil {
			s.logger.Warn("failed to close lexical index", "error", err)
		}
	}
}

func (s *RAGService) snapshotCorpus() *corpus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Stats describes the loaded corpus. ok is false before the first ingest.
func (s *RAGService) Stats() (IngestStats, bool) {
	c := s.snapshotCorpus()
	if c == nil {
		return IngestStats{}, false
	}
	return c.stats, true
}

// Query returns up to topK chunks for query. topK <= 0 uses the configured default.
func (s *RAGService) Query(ctx context.Context, query string, topK int) ([]domain.RetrievedChunk, error) {
	if topK <= 0 {
		topK = s.opts.DefaultTopK
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	searchQuery := query
	if s.opts.Rewriter != nil {
		searchQuery = s.opts.Rewriter.Rewrite(ctx, query)
	}

	results, fallback, err := s.search(ctx, searchQuery, topK)
	if err != nil || fallback {
		return results, err
	}
	if s.opts.Reranker != nil {
		return s.opts.Reranker.Rerank(ctx, searchQuery, results, topK)
	}
	return results, nil
}

// search runs vector retrieval and, when the vector scores carry no signal,
// the lexical fallback. fallback reports whether the lexical path answered.
func (s *RAGService) search(ctx context.Context, query string, topK int) ([]domain.RetrievedChunk, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.current
	if c == nil {
		return nil, false, fmt.Errorf("no documents ingested: %w", domain.ErrInvalidState)
	}
	k := topK
	if s.opts.Reranker != nil {
		k = max(topK, s.opts.Candidates)
	}
	results, err := s.retriever.Retrieve(ctx, query, c.index, c.chunks, k)
	if err != nil {
		return nil, false, err
	}
	if c.lexical != nil && noSignal(results) {
		s.logger.Debug("vector scores carry no signal, using lexical fallback", "query", query)
		hits, err := c.lexical.Search(query, topK)
		return hits, true, err
	}
	return results, false, nil
}

func noSignal(results []domain.RetrievedChunk) bool {
	for _, r := range results {
		if r.Score > zeroScore {
			return false
		}
	}
	return true
}

// Answer retrieves context for question and generates an answer from it.
func (s *RAGService) Answer(ctx context.Context, question string, topK int) (string, []domain.RetrievedChunk, error) {
	if s.opts.Generator == nil {
		return "", nil, ErrGenerationDisabled
	}
	if strings.TrimSpace(question) == "" {
		return "", nil, nil
	}
	chunks, err := s.Query(ctx, question, topK)
	if err != nil {
		return "", nil, err
	}
	answer, err := s.opts.Generator.Generate(ctx, question, chunks)
	if err != nil {
		return "", chunks, err
	}
	return answer, chunks, nil
}

// SaveSnapshot persists the loaded corpus and any fitted embedder state.
func (s *RAGService) SaveSnapshot(dir string) error {
	c, state, err := s.captureSnapshot()
	if err != nil {
		return err
	}
	if err := snapshot.Save(dir, snapshot.Snapshot{
		BuildID:  c.stats.BuildID,
		Model:    c.stats.Model,
		Index:    c.index,
		Chunks:   c.chunks,
		Embedder: state,
	}); err != nil {
		return err
	}
	s.logger.Info("saved snapshot", "dir", dir, "chunks", len(c.chunks), "build_id", c.stats.BuildID)
	return nil
}

// captureSnapshot reads the corpus and the embedder state under one read
// lock, so an ingest cannot land between them.
func (s *RAGService) captureSnapshot() (*corpus, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.current
	if c == nil {
		return nil, nil, fmt.Errorf("nothing to save: %w", domain.ErrInvalidState)
	}
	st, ok := s.opts.Embedder.(domain.Stateful)
	if !ok {
		return c, nil, nil
	}
	state, err := st.MarshalState()
	if err != nil {
		return nil, nil, fmt.Errorf("encode embedder state: %w", err)
	}
	return c, state, nil
}

// LoadSnapshot replaces the loaded corpus with one saved by SaveSnapshot.
func (s *RAGService) LoadSnapshot(ctx context.Context, dir string) (IngestStats, error) {
	snap, err := snapshot.Load(dir)
	if err != nil {
		return IngestStats{}, err
	}
	if err := ctx.Err(); err != nil {
		return IngestStats{}, err
	}
	if snap.Model != "" && snap.Model != s.opts.Embedder.Name() {
		return IngestStats{}, fmt.Errorf("snapshot was built with %s but the embedder is %s: %w", snap.Model, s.opts.Embedder.Name(), domain.ErrInconsistentState)
	}

	docs := make(map[string]struct{})
	for _, ch := range snap.Chunks {
		docs[ch.DocumentID] = struct{}{}
	}
	stats := IngestStats{
		Documents: len(docs),
		Chunks:    len(snap.Chunks),
		Dimension: snap.Index.Dim(),
		BuildID:   snap.BuildID,
		Model:     snap.Model,
	}
	next := &corpus{index: snap.Index, chunks: snap.Chunks, stats: stats}
	if err := s.attachLexical(next); err != nil {
		return IngestStats{}, err
	}

	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.opts.Embedder.(domain.Stateful); ok && len(snap.Embedder) > 0 {
		if err := st.UnmarshalState(snap.Embedder); err != nil {
			return IngestStats{}, fmt.Errorf("restore embedder state: %w", err)
		}
	}
	if d := s.opts.Embedder.Dimension(); d != 0 && d != snap.Index.Dim() {
		return IngestStats{}, fmt.Errorf("embedder dimension %d does not match snapshot dimension %d: %w", d, snap.Index.Dim(), domain.ErrInconsistentState)
	}
	s.swapLocked(next)
	s.logger.Info("loaded snapshot", "dir", dir, "chunks", stats.Chunks, "build_id", stats.BuildID)
	return stats, nil
}
