package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// commonAbbreviations never end a sentence when followed by a period.
var commonAbbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "sr": {}, "jr": {}, "st": {},
	"vs": {}, "etc": {}, "e.g": {}, "i.e": {}, "fig": {}, "figs": {}, "eq": {}, "no": {},
	"vol": {}, "al": {}, "approx": {}, "dept": {}, "inc": {}, "ltd": {}, "co": {}, "jan": {},
	"feb": {}, "mar": {}, "apr": {}, "jun": {}, "jul": {}, "aug": {}, "sep": {}, "sept": {},
	"oct": {}, "nov": {}, "dec": {}, "mg": {}, "ml": {}, "resp": {}, "ref": {}, "refs": {},
}

// SentenceSegmenter splits text on terminal punctuation followed by whitespace
// and a character that can start a sentence. Abbreviations and single-letter
// initials do not end a sentence. It backs DefaultSegmenter when the Punkt
// parameters are unavailable.
type SentenceSegmenter struct {
	abbreviations map[string]struct{}
}

func NewSentenceSegmenter() *SentenceSegmenter {
	return &SentenceSegmenter{abbreviations: commonAbbreviations}
}

// Split returns the trimmed, non-empty sentences of text in source order.
func (s *SentenceSegmenter) Split(text string) []string {
	var out []string
	start := 0
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isTerminal(r) {
			i += size
			continue
		}
		end := i + size
		// absorb runs like "?!" or "..." and closing quotes/brackets
		for end < len(text) {
			nr, ns := utf8.DecodeRuneInString(text[end:])
			if !isTerminal(nr) && !isCloser(nr) {
				break
			}
			end += ns
		}
		if s.isBoundary(text, start, i, r, end) {
			if sentence := strings.TrimSpace(text[start:end]); sentence != "" {
				out = append(out, sentence)
			}
			start = end
		}
		i = end
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

func (s *SentenceSegmenter) isBoundary(text string, start, punct int, r rune, end int) bool {
	if end >= len(text) {
		return true
	}
	next, size := utf8.DecodeRuneInString(text[end:])
	if !unicode.IsSpace(next) {
		return false
	}
	j := end + size
	for j < len(text) {
		nr, ns := utf8.DecodeRuneInString(text[j:])
		if !unicode.IsSpace(nr) {
			break
		}
		j += ns
	}
	if j >= len(text) {
		return true
	}
	first, _ := utf8.DecodeRuneInString(text[j:])
	if unicode.IsLower(first) {
		return false
	}
	if r != '.' {
		return true
	}
	word := lastWord(text[start:punct])
	if word == "" {
		return true
	}
	if utf8.RuneCountInString(word) == 1 {
		wr, _ := utf8.DecodeRuneInString(word)
		if unicode.IsUpper(wr) {
			return false
		}
	}
	_, abbr := s.abbreviations[strings.ToLower(word)]
	return !abbr
}

func lastWord(s string) string {
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	idx := strings.LastIndexFunc(s, unicode.IsSpace)
	word := s[idx+1:]
	return strings.TrimLeftFunc(word, func(r rune) bool {
		return isCloser(r) || r == '(' || r == '[' || r == '"' || r == '\''
	})
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '”', '’':
		return true
	}
	return false
}
