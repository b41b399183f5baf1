package generation

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"ragqa/internal/chunker"
	"ragqa/internal/domain"
)

// ExtractiveGenerator answers without a language model by picking the
// context sentences that best cover the question.
type ExtractiveGenerator struct {
	maxSentences     int
	maxContextTokens int
	segmenter        chunker.Segmenter
	tokenPattern     *regexp.Regexp
	stopwords        map[string]struct{}
}

func NewExtractiveGenerator(maxSentences, maxContextTokens int) *ExtractiveGenerator {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	if maxContextTokens <= 0 {
		maxContextTokens = 512
	}
	return &ExtractiveGenerator{
		maxSentences:     maxSentences,
		maxContextTokens: maxContextTokens,
		segmenter:        chunker.DefaultSegmenter(),
		tokenPattern:     regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
		stopwords:        stopwords(),
	}
}

// Generate scores each context sentence by corpus term frequency, weighted
// up for question terms, and returns the best sentences in reading order.
func (g *ExtractiveGenerator) Generate(ctx context.Context, question string, chunks []domain.RetrievedChunk) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", nil
	}
	contextText := BuildContext(chunks, g.maxContextTokens)
	if contextText == "" {
		return NoAnswer, nil
	}
	sentences := g.segmenter.Split(contextText)
	if len(sentences) == 0 {
		return NoAnswer, nil
	}

	freq := map[string]float64{}
	for _, s := range sentences {
		for _, tok := range g.tokens(s) {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	for k, v := range freq {
		freq[k] = v / maxF
	}
	asked := map[string]struct{}{}
	for _, tok := range g.tokens(question) {
		asked[tok] = struct{}{}
	}

	type scored struct {
		idx   int
		score float64
		hits  int
	}
	scores := make([]scored, len(sentences))
	for i, s := range sentences {
		toks := g.tokens(s)
		sc := scored{idx: i}
		for _, tok := range toks {
			sc.score += freq[tok]
			if _, ok := asked[tok]; ok {
				sc.score += 1
				sc.hits++
			}
		}
		if len(toks) > 0 {
			sc.score /= math.Sqrt(float64(len(toks)))
		}
		scores[i] = sc
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if scores[0].hits == 0 {
		return NoAnswer, nil
	}

	n := min(g.maxSentences, len(scores))
	selected := make([]int, 0, n)
	for _, sc := range scores[:n] {
		if sc.hits > 0 {
			selected = append(selected, sc.idx)
		}
	}
	sort.Ints(selected)
	out := make([]string, len(selected))
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " "), nil
}

func (g *ExtractiveGenerator) tokens(text string) []string {
	all := g.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := all[:0]
	for _, t := range all {
		if _, stop := g.stopwords[t]; !stop {
			out = append(out, t)
		}
	}
	return out
}

func stopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "where", "when", "who", "how", "which", "why", "did", "do", "does",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
