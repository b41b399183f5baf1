package generation

import (
	"context"
	"fmt"
	"strings"

	"ragqa/internal/domain"
)

// NoAnswer is returned when there is no usable context.
const NoAnswer = "I don't know based on the uploaded documents."

const answerPrompt = "You are a concise assistant. Answer the question based on the context below and nothing else. " +
	"Respond in 1 to 3 complete sentences. " +
	"If the context lacks the answer, reply: '" + NoAnswer + "' " +
	"Cite the best 1-2 sources like '(Source: notes.pdf_page_4)'. " +
	"Do not repeat the question."

// Generator produces an answer from a question and ranked chunks.
type Generator interface {
	Generate(ctx context.Context, question string, chunks []domain.RetrievedChunk) (string, error)
}

// Chatter is a single-turn chat completion call.
type Chatter interface {
	Chat(ctx context.Context, system, user string, maxTokens int, temperature float32) (string, error)
}

// ChatGenerator answers with a chat model over a token-capped context.
type ChatGenerator struct {
	chat             Chatter
	maxContextTokens int
	maxAnswerTokens  int
	temperature      float32
}

func NewChatGenerator(chat Chatter, maxContextTokens int) *ChatGenerator {
	if maxContextTokens <= 0 {
		maxContextTokens = 512
	}
	return &ChatGenerator{chat: chat, maxContextTokens: maxContextTokens, maxAnswerTokens: 256, temperature: 0.2}
}

func (g *ChatGenerator) Generate(ctx context.Context, question string, chunks []domain.RetrievedChunk) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", nil
	}
	contextText := BuildContext(chunks, g.maxContextTokens)
	if contextText == "" {
		return NoAnswer, nil
	}
	var sources []string
	for _, c := range chunks {
		sources = append(sources, c.DocumentID)
	}
	user := fmt.Sprintf("Context:\n%s\n\nSources: %s\n\nQuestion:\n%s\n\nAnswer:",
		contextText, strings.Join(dedupe(sources), ", "), strings.TrimSpace(question))
	answer, err := g.chat.Chat(ctx, answerPrompt, user, g.maxAnswerTokens, g.temperature)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
