package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"ragqa/internal/chunker"
	"ragqa/internal/domain"
	"ragqa/internal/embedding/tfidf"
	"ragqa/internal/loader"
)

type fakeSource struct {
	docs []domain.DocumentRecord
	err  error
}

func (f fakeSource) LoadFiles(paths []string) ([]domain.DocumentRecord, loader.Stats, error) {
	return f.docs, loader.Stats{Files: len(f.docs), Documents: len(f.docs)}, f.err
}

// keywordEmbedder places texts on two axes by keyword and leaves everything
// else at the origin.
type keywordEmbedder struct{}

func (keywordEmbedder) Name() string   { return "keyword" }
func (keywordEmbedder) Dimension() int { return 2 }
func (keywordEmbedder) Embed(ctx context.Context, texts []string, batchSize int) (domain.Matrix, error) {
	m := domain.Matrix{Rows: len(texts), Dim: 2, Data: make([]float32, 2*len(texts))}
	for i, t := range texts {
		switch {
		case strings.Contains(t, "alpha"):
			m.Data[2*i] = 1
		case strings.Contains(t, "beta"):
			m.Data[2*i+1] = 1
		}
	}
	return m, nil
}

// statefulKeywordEmbedder reports on MarshalState whether an ingest could
// have taken the write lock at that moment.
type statefulKeywordEmbedder struct {
	keywordEmbedder
	svc            *RAGService
	writerExcluded bool
}

func (e *statefulKeywordEmbedder) MarshalState() ([]byte, error) {
	if e.svc.mu.TryLock() {
		e.svc.mu.Unlock()
		return []byte(`{}`), nil
	}
	e.writerExcluded = true
	return []byte(`{}`), nil
}

func (e *statefulKeywordEmbedder) UnmarshalState(data []byte) error { return nil }

type fakeReranker struct {
	received int
}

func (f *fakeReranker) Rerank(ctx context.Context, query string, candidates []domain.RetrievedChunk, topK int) ([]domain.RetrievedChunk, error) {
	f.received = len(candidates)
	out := make([]domain.RetrievedChunk, 0, topK)
	for i := len(candidates) - 1; i >= 0 && len(out) < topK; i-- {
		c := candidates[i]
		c.Retrieval = domain.RetrievalReranked
		out = append(out, c)
	}
	return out, nil
}

type fakeGenerator struct {
	question string
	chunks   int
}

func (f *fakeGenerator) Generate(ctx context.Context, question string, chunks []domain.RetrievedChunk) (string, error) {
	f.question = question
	f.chunks = len(chunks)
	return "generated", nil
}

var corpusDocs = []domain.DocumentRecord{
	{DocumentID: "dogs", Text: "Dogs are loyal animals. A dog will guard the house at night."},
	{DocumentID: "cats", Text: "Cats sleep most of the day. A cat likes a warm sunny window."},
	{DocumentID: "fish", Text: "Fish live in water. Goldfish need a clean tank and food."},
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, opts Options) *RAGService {
	t.Helper()
	ch, err := chunker.NewTokenChunker(50, 5)
	if err != nil {
		t.Fatalf("NewTokenChunker: %v", err)
	}
	if opts.Chunker == nil {
		opts.Chunker = ch
	}
	if opts.Embedder == nil {
		opts.Embedder = tfidf.NewEmbedder()
	}
	if opts.Source == nil {
		opts.Source = fakeSource{docs: corpusDocs}
	}
	opts.Logger = quietLogger()
	return NewRAGService(opts)
}

func TestIngestAndQuery(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	if _, ok := svc.Stats(); ok {
		t.Fatal("Stats reported a corpus before ingest")
	}
	stats, err := svc.IngestDocuments(ctx, []string{"ignored"})
	if err != nil {
		t.Fatalf("IngestDocuments: %v", err)
	}
	if stats.Documents != 3 || stats.Chunks != 3 || stats.Files != 3 {
		t.Errorf("stats = %+v, want 3 files, 3 documents, 3 chunks", stats)
	}
	if stats.BuildID == "" || stats.Model != "tfidf" || stats.Dimension == 0 {
		t.Errorf("stats = %+v, want build id, model and dimension", stats)
	}

	results, err := svc.Query(ctx, "Which animal will guard the house?", 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].DocumentID != "dogs" {
		t.Errorf("top document = %s, want dogs", results[0].DocumentID)
	}
	if results[0].Retrieval != domain.RetrievalVector {
		t.Errorf("retrieval = %q, want %q", results[0].Retrieval, domain.RetrievalVector)
	}
}

func TestQuery_DefaultTopKAndBlank(t *testing.T) {
	svc := newTestService(t, Options{DefaultTopK: 1})
	ctx := context.Background()
	if _, err := svc.IngestRecords(ctx, corpusDocs, IngestStats{}); err != nil {
		t.Fatalf("IngestRecords: %v", err)
	}

	results, err := svc.Query(ctx, "cat window", 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0].DocumentID != "cats" {
		t.Errorf("results = %+v, want the cats chunk only", results)
	}

	results, err = svc.Query(ctx, "   ", 3)
	if err != nil || results != nil {
		t.Errorf("Query(blank) = %v, %v; want nil, nil", results, err)
	}
}

func TestQuery_BeforeIngest(t *testing.T) {
	svc := newTestService(t, Options{})
	_, err := svc.Query(context.Background(), "dog", 3)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("Query before ingest error = %v, want ErrInvalidState", err)
	}
}

func TestIngest_Errors(t *testing.T) {
	tests := []struct {
		name    string
		docs    []domain.DocumentRecord
		wantErr error
	}{
		{name: "no documents", docs: nil, wantErr: domain.ErrNotFound},
		{
			name: "only blank documents",
			docs: []domain.DocumentRecord{
				{DocumentID: "a", Text: "   "},
				{DocumentID: "b", Text: ""},
			},
			wantErr: domain.ErrInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, Options{})
			_, err := svc.IngestRecords(context.Background(), tt.docs, IngestStats{})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("IngestRecords error = %v, want %v", err, tt.wantErr)
			}
			if _, ok := svc.Stats(); ok {
				t.Error("failed ingest installed a corpus")
			}
		})
	}
}

func TestIngest_EmptyDocumentsCounted(t *testing.T) {
	svc := newTestService(t, Options{})
	docs := append([]domain.DocumentRecord{{DocumentID: "blank", Text: "\n\n"}}, corpusDocs...)
	stats, err := svc.IngestRecords(context.Background(), docs, IngestStats{})
	if err != nil {
		t.Fatalf("IngestRecords: %v", err)
	}
	if stats.EmptyDocuments != 1 || stats.Chunks != 3 {
		t.Errorf("stats = %+v, want 1 empty document and 3 chunks", stats)
	}
}

func TestIngest_ReplacesCorpus(t *testing.T) {
	svc := newTestService(t, Options{LexicalFallback: true})
	ctx := context.Background()
	first, err := svc.IngestRecords(ctx, corpusDocs, IngestStats{})
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	second, err := svc.IngestRecords(ctx, corpusDocs[:1], IngestStats{})
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if first.BuildID == second.BuildID {
		t.Error("build id did not change between ingests")
	}
	results, err := svc.Query(ctx, "cat", 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	for _, r := range results {
		if r.DocumentID != "dogs" {
			t.Errorf("result from replaced corpus: %s", r.DocumentID)
		}
	}
}

func TestQuery_LexicalFallback(t *testing.T) {
	docs := []domain.DocumentRecord{
		{DocumentID: "a", Text: "alpha dog runs fast in the yard today."},
		{DocumentID: "b", Text: "beta cat sleeps on the warm mat."},
	}
	tests := []struct {
		name      string
		fallback  bool
		query     string
		wantDoc   string
		retrieval string
	}{
		{name: "vector signal", fallback: true, query: "alpha", wantDoc: "a", retrieval: domain.RetrievalVector},
		{name: "zero vector falls back", fallback: true, query: "cat", wantDoc: "b", retrieval: domain.RetrievalLexical},
		{name: "fallback disabled", fallback: false, query: "cat", wantDoc: "a", retrieval: domain.RetrievalVector},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, Options{Embedder: keywordEmbedder{}, LexicalFallback: tt.fallback})
			ctx := context.Background()
			if _, err := svc.IngestRecords(ctx, docs, IngestStats{}); err != nil {
				t.Fatalf("IngestRecords: %v", err)
			}
			results, err := svc.Query(ctx, tt.query, 1)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(results) != 1 {
				t.Fatalf("len(results) = %d, want 1", len(results))
			}
			if results[0].DocumentID != tt.wantDoc || results[0].Retrieval != tt.retrieval {
				t.Errorf("result = %s/%s, want %s/%s", results[0].DocumentID, results[0].Retrieval, tt.wantDoc, tt.retrieval)
			}
		})
	}
}

func TestQuery_RerankUsesCandidatePool(t *testing.T) {
	rr := &fakeReranker{}
	svc := newTestService(t, Options{Reranker: rr, Candidates: 3})
	ctx := context.Background()
	if _, err := svc.IngestRecords(ctx, corpusDocs, IngestStats{}); err != nil {
		t.Fatalf("IngestRecords: %v", err)
	}
	results, err := svc.Query(ctx, "dog house", 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if rr.received != 3 {
		t.Errorf("reranker received %d candidates, want 3", rr.received)
	}
	if len(results) != 1 || results[0].Retrieval != domain.RetrievalReranked {
		t.Errorf("results = %+v, want one reranked chunk", results)
	}
}

func TestAnswer(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		svc := newTestService(t, Options{})
		if _, _, err := svc.Answer(ctx, "dog?", 2); !errors.Is(err, ErrGenerationDisabled) {
			t.Errorf("Answer error = %v, want ErrGenerationDisabled", err)
		}
	})

	t.Run("generates from retrieved chunks", func(t *testing.T) {
		gen := &fakeGenerator{}
		svc := newTestService(t, Options{Generator: gen})
		if _, err := svc.IngestRecords(ctx, corpusDocs, IngestStats{}); err != nil {
			t.Fatalf("IngestRecords: %v", err)
		}
		answer, chunks, err := svc.Answer(ctx, "Where do goldfish live?", 2)
		if err != nil {
			t.Fatalf("Answer: %v", err)
		}
		if answer != "generated" || len(chunks) != 2 {
			t.Errorf("Answer = %q with %d chunks, want generated with 2", answer, len(chunks))
		}
		if gen.question != "Where do goldfish live?" || gen.chunks != 2 {
			t.Errorf("generator saw %q with %d chunks", gen.question, gen.chunks)
		}
	})
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	src := newTestService(t, Options{})
	if err := src.SaveSnapshot(dir); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("SaveSnapshot before ingest error = %v, want ErrInvalidState", err)
	}
	built, err := src.IngestRecords(ctx, corpusDocs, IngestStats{})
	if err != nil {
		t.Fatalf("IngestRecords: %v", err)
	}
	if err := src.SaveSnapshot(dir); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	want, err := src.Query(ctx, "goldfish tank", 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	dst := newTestService(t, Options{})
	loaded, err := dst.LoadSnapshot(ctx, dir)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if loaded.BuildID != built.BuildID || loaded.Chunks != built.Chunks || loaded.Documents != 3 {
		t.Errorf("loaded stats = %+v, built = %+v", loaded, built)
	}
	got, err := dst.Query(ctx, "goldfish tank", 3)
	if err != nil {
		t.Fatalf("Query after load: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ChunkID != want[i].ChunkID || got[i].Score != want[i].Score {
			t.Errorf("result %d = %s/%v, want %s/%v", i, got[i].ChunkID, got[i].Score, want[i].ChunkID, want[i].Score)
		}
	}
}

func TestLoadSnapshot_ModelMismatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := newTestService(t, Options{})
	if _, err := src.IngestRecords(ctx, corpusDocs, IngestStats{}); err != nil {
		t.Fatalf("IngestRecords: %v", err)
	}
	if err := src.SaveSnapshot(dir); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	dst := newTestService(t, Options{Embedder: keywordEmbedder{}})
	if _, err := dst.LoadSnapshot(ctx, dir); !errors.Is(err, domain.ErrInconsistentState) {
		t.Errorf("LoadSnapshot error = %v, want ErrInconsistentState", err)
	}
}

func TestSaveSnapshot_StateReadWithCorpus(t *testing.T) {
	ctx := context.Background()
	emb := &statefulKeywordEmbedder{}
	svc := newTestService(t, Options{Embedder: emb})
	emb.svc = svc
	docs := []domain.DocumentRecord{
		{DocumentID: "a", Text: "alpha dog runs fast in the yard today."},
		{DocumentID: "b", Text: "beta cat sleeps on the warm mat."},
	}
	if _, err := svc.IngestRecords(ctx, docs, IngestStats{}); err != nil {
		t.Fatalf("IngestRecords: %v", err)
	}
	if err := svc.SaveSnapshot(t.TempDir()); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if !emb.writerExcluded {
		t.Error("embedder state was encoded while an ingest could swap the corpus")
	}
}
