package chunker

import (
	"strings"
	"sync"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// PunktSegmenter splits sentences with the unsupervised Punkt model and its
// shipped English parameters (abbreviations, collocations, sentence starters).
type PunktSegmenter struct {
	// the tokenizer is not documented as safe for concurrent use
	mu        sync.Mutex
	tokenizer *sentences.DefaultSentenceTokenizer
}

func NewPunktSegmenter() (*PunktSegmenter, error) {
	t, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, err
	}
	return &PunktSegmenter{tokenizer: t}, nil
}

// Split returns the trimmed, non-empty sentences of text in source order.
func (p *PunktSegmenter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	p.mu.Lock()
	sents := p.tokenizer.Tokenize(text)
	p.mu.Unlock()

	out := make([]string, 0, len(sents))
	for _, s := range sents {
		if t := strings.TrimSpace(s.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}

var defaultSegmenter = sync.OnceValue(func() Segmenter {
	p, err := NewPunktSegmenter()
	if err != nil {
		return NewSentenceSegmenter()
	}
	return p
})

// DefaultSegmenter returns the shared Punkt segmenter, or the rule-based
// SentenceSegmenter if the Punkt parameters cannot be loaded.
func DefaultSegmenter() Segmenter {
	return defaultSegmenter()
}
