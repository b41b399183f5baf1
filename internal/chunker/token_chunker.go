package chunker

import (
	"fmt"
	"strings"

	"ragqa/internal/domain"
)

// MinChunkTokens is the smallest chunk kept when a document yields more than one chunk.
const MinChunkTokens = 5

// Segmenter splits text into sentences.
type Segmenter interface {
	Split(text string) []string
}

// TokenChunker splits documents into sentence-respecting chunks bounded by a
// whitespace-token budget, with a token overlap between consecutive chunks.
type TokenChunker struct {
	chunkSize int
	overlap   int
	segmenter Segmenter
}

// NewTokenChunker returns a chunker for the given budget. chunkSize must be positive.
func NewTokenChunker(chunkSize, overlap int) (*TokenChunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size %d must be positive: %w", chunkSize, domain.ErrInvalidInput)
	}
	return &TokenChunker{
		chunkSize: chunkSize,
		overlap:   clampOverlap(overlap, chunkSize),
		segmenter: DefaultSegmenter(),
	}, nil
}

// WithSegmenter replaces the sentence segmenter.
func (c *TokenChunker) WithSegmenter(s Segmenter) *TokenChunker {
	c.segmenter = s
	return c
}

func (c *TokenChunker) Chunk(doc domain.DocumentRecord) ([]domain.Chunk, error) {
	return split(c.segmenter, doc.Text, doc.DocumentID, c.chunkSize, c.overlap)
}

// Split chunks text with the default segmenter.
func Split(text, documentID string, chunkSize, overlap int) ([]domain.Chunk, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size %d must be positive: %w", chunkSize, domain.ErrInvalidInput)
	}
	return split(DefaultSegmenter(), text, documentID, chunkSize, clampOverlap(overlap, chunkSize))
}

func clampOverlap(overlap, chunkSize int) int {
	if overlap < 0 {
		return 0
	}
	if overlap > chunkSize-1 {
		return chunkSize - 1
	}
	return overlap
}

// builder accumulates token blocks. A buffer holding only seed tokens carried
// over from a force-split block is never emitted on its own.
type builder struct {
	size, overlap int
	blocks        [][]string
	current       []string
	seedOnly      bool
}

func (b *builder) flush() {
	if len(b.current) > 0 && !b.seedOnly {
		b.blocks = append(b.blocks, b.current)
	}
	b.current = nil
	b.seedOnly = false
}

func tail(tokens []string, n int) []string {
	if n <= 0 || len(tokens) == 0 {
		return nil
	}
	if n > len(tokens) {
		n = len(tokens)
	}
	out := make([]string, n)
	copy(out, tokens[len(tokens)-n:])
	return out
}

func (b *builder) forceSplit(tokens []string) {
	b.flush()
	stride := b.size - b.overlap
	if stride < 1 {
		stride = 1
	}
	var last []string
	for j := 0; j < len(tokens); j += stride {
		end := j + b.size
		if end > len(tokens) {
			end = len(tokens)
		}
		last = tokens[j:end]
		b.blocks = append(b.blocks, last)
		if end == len(tokens) {
			break
		}
	}
	b.current = tail(last, b.overlap)
	b.seedOnly = len(b.current) > 0
}

func (b *builder) add(tokens []string) {
	if len(b.current)+len(tokens) <= b.size {
		b.current = append(b.current, tokens...)
		b.seedOnly = false
		return
	}
	prev := tail(b.current, b.overlap)
	b.flush()
	effective := len(prev)
	if room := b.size - len(tokens); room < effective {
		effective = room
	}
	if effective > 0 {
		b.current = append(b.current, prev[len(prev)-effective:]...)
	}
	b.current = append(b.current, tokens...)
}

func split(seg Segmenter, text, documentID string, chunkSize, overlap int) ([]domain.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	sentences := seg.Split(text)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}

	b := &builder{size: chunkSize, overlap: overlap}
	for _, s := range sentences {
		tokens := strings.Fields(s)
		switch {
		case len(tokens) == 0:
			continue
		case len(tokens) > chunkSize:
			b.forceSplit(tokens)
		default:
			b.add(tokens)
		}
	}
	b.flush()

	blocks := b.blocks
	if len(blocks) > 1 {
		kept := blocks[:0:0]
		for _, blk := range blocks {
			if len(blk) >= MinChunkTokens {
				kept = append(kept, blk)
			}
		}
		blocks = kept
	}

	chunks := make([]domain.Chunk, 0, len(blocks))
	for _, blk := range blocks {
		c, err := domain.NewChunk(documentID, len(chunks), strings.Join(blk, " "))
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}
