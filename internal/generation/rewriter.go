package generation

import (
	"context"
	"log/slog"
	"strings"
)

// Rewrite modes.
const (
	ModeGeneral = "general"
	ModeMedical = "medical"
)

// Rewriter turns a conversational question into a retrieval query.
// Any failure yields the original question.
type Rewriter struct {
	chat   Chatter
	mode   string
	logger *slog.Logger
}

func NewRewriter(chat Chatter, mode string, logger *slog.Logger) *Rewriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rewriter{chat: chat, mode: mode, logger: logger}
}

func rewritePrompt(mode string) string {
	base := "You are a query rewriter for a retrieval system. " +
		"Return ONLY the rewritten query text (no quotes, no explanations). " +
		"Keep it under 25 words. Remove filler words. " +
		"Expand ambiguous questions into a concrete query."
	if strings.EqualFold(strings.TrimSpace(mode), ModeMedical) {
		base += " Preserve medical terminology and abbreviations."
	}
	return base
}

func (r *Rewriter) Rewrite(ctx context.Context, question string) string {
	q := strings.TrimSpace(question)
	if q == "" {
		return ""
	}
	if r == nil || r.chat == nil {
		return question
	}
	out, err := r.chat.Chat(ctx, rewritePrompt(r.mode), q, 64, 0.1)
	if err != nil {
		r.logger.Warn("query rewrite failed, using original question", "error", err)
		return question
	}
	out = strings.Trim(strings.TrimSpace(out), `"'`)
	if out == "" {
		return question
	}
	r.logger.Debug("rewrote query", "from", q, "to", out)
	return out
}
