package domain

import "context"

// Embedder maps texts to fixed-dimension dense vectors.
// An empty input yields a zero-row matrix of the native dimensionality.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string, batchSize int) (Matrix, error)
}

// Preparer is implemented by embedders that must see the corpus before embedding.
type Preparer interface {
	Prepare(corpus []string) error
}

// Stateful is implemented by embedders whose fitted state must be persisted
// next to an index so that query vectors keep the index dimensionality.
type Stateful interface {
	MarshalState() ([]byte, error)
	UnmarshalState(data []byte) error
}

// Pair is one (query, candidate text) input to a scoring model.
type Pair struct {
	Query string
	Text  string
}

// ScoringModel scores (query, text) pairs jointly. Scores are returned in
// input order; higher means more relevant.
type ScoringModel interface {
	Name() string
	Predict(ctx context.Context, pairs []Pair) ([]float32, error)
}

// Chunker splits a document into retrieval units.
type Chunker interface {
	Chunk(doc DocumentRecord) ([]Chunk, error)
}
