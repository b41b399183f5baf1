package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// DocumentRecord is one logical unit of source text: a whole text file or a
// single page of a paginated source. DocumentID is unique within a batch.
type DocumentRecord struct {
	DocumentID string
	Text       string
}

// Chunk is a bounded span of a document used as the unit of embedding and retrieval.
type Chunk struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Text       string `json:"text"`
}

// NewChunk builds the seq-th chunk of a document. The text must be non-empty after trimming.
func NewChunk(documentID string, seq int, text string) (Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return Chunk{}, fmt.Errorf("chunk %d of %q has empty text: %w", seq, documentID, ErrInvalidInput)
	}
	if seq < 0 {
		return Chunk{}, fmt.Errorf("negative chunk sequence %d: %w", seq, ErrInvalidInput)
	}
	return Chunk{
		ChunkID:    ChunkID(documentID, seq),
		DocumentID: documentID,
		Text:       text,
	}, nil
}

// ChunkID derives the identifier of the seq-th chunk of a document.
func ChunkID(documentID string, seq int) string {
	return documentID + "_" + strconv.Itoa(seq)
}

// Retrieval provenance tags.
const (
	RetrievalVector   = "vector"
	RetrievalReranked = "reranked"
	RetrievalLexical  = "lexical"
)

// RetrievedChunk is a chunk with the score it was ranked by.
// After reranking Score holds the rerank score and VectorScore keeps the
// similarity the candidate was retrieved with.
type RetrievedChunk struct {
	Chunk
	Score       float32  `json:"score"`
	VectorScore float32  `json:"vector_score"`
	RerankScore *float32 `json:"rerank_score,omitempty"`
	Retrieval   string   `json:"retrieval"`
}

// TokenCount approximates the token length of s by whitespace splitting.
func TokenCount(s string) int {
	return len(strings.Fields(s))
}
