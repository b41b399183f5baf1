// Package generation turns retrieved chunks into an answer with a chat model.
package generation

import (
	"strings"

	"ragqa/internal/domain"
)

// BuildContext joins chunk texts with blank lines until maxTokens whitespace
// tokens are used. The chunk that crosses the budget is truncated.
func BuildContext(chunks []domain.RetrievedChunk, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	var parts []string
	used := 0
	for _, c := range chunks {
		toks := strings.Fields(c.Text)
		if len(toks) == 0 {
			continue
		}
		remaining := maxTokens - used
		if remaining <= 0 {
			break
		}
		if len(toks) <= remaining {
			parts = append(parts, strings.Join(toks, " "))
			used += len(toks)
			continue
		}
		parts = append(parts, strings.Join(toks[:remaining], " "))
		break
	}
	return strings.Join(parts, "\n\n")
}
