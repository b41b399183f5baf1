// Package lexical is a keyword index over chunk text used when vector
// similarity has nothing to offer.
package lexical

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"

	"ragqa/internal/domain"
)

const batchSize = 100

type document struct {
	Text string `json:"text"`
}

// Index is an in-memory bleve index whose document ids are chunk positions.
type Index struct {
	index  bleve.Index
	chunks []domain.Chunk
}

// Build indexes chunks in order. The chunk slice is retained, not copied.
func Build(chunks []domain.Chunk) (*Index, error) {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create lexical index: %w", err)
	}
	batch := idx.NewBatch()
	for i, c := range chunks {
		if err := batch.Index(strconv.Itoa(i), document{Text: c.Text}); err != nil {
			idx.Close()
			return nil, fmt.Errorf("failed to add chunk %s to batch: %w", c.ChunkID, err)
		}
		if batch.Size() >= batchSize {
			if err := idx.Batch(batch); err != nil {
				idx.Close()
				return nil, fmt.Errorf("failed to index batch: %w", err)
			}
			batch = idx.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := idx.Batch(batch); err != nil {
			idx.Close()
			return nil, fmt.Errorf("failed to index final batch: %w", err)
		}
	}
	return &Index{index: idx, chunks: chunks}, nil
}

// Search returns up to topK chunks matching query, best first.
func (x *Index) Search(query string, topK int) ([]domain.RetrievedChunk, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("top_k %d must be positive: %w", topK, domain.ErrInvalidInput)
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	q := bleve.NewMatchQuery(query)
	q.SetField("text")
	req := bleve.NewSearchRequestOptions(q, topK, 0, false)
	res, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}
	out := make([]domain.RetrievedChunk, 0, len(res.Hits))
	for _, hit := range res.Hits {
		i, err := strconv.Atoi(hit.ID)
		if err != nil || i < 0 || i >= len(x.chunks) {
			continue
		}
		out = append(out, domain.RetrievedChunk{
			Chunk:     x.chunks[i],
			Score:     float32(hit.Score),
			Retrieval: domain.RetrievalLexical,
		})
	}
	return out, nil
}

func (x *Index) Close() error {
	return x.index.Close()
}
