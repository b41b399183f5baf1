// Package openai scores (query, text) pairs with a chat model acting as a
// relevance judge.
package openai

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"golang.org/x/sync/errgroup"

	"ragqa/internal/domain"
	"ragqa/internal/openaiclient"
)

const DefaultModel = "gpt-4o-mini"

const judgePrompt = "You rate how well a passage answers a question. " +
	"Reply with a single integer from 0 (irrelevant) to 10 (fully answers it) and nothing else."

var scorePattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

type Config struct {
	openaiclient.Config
	Concurrency int
}

// Model asks the chat model for a 0-10 rating per pair and scales it to [0, 1].
type Model struct {
	client      *openaiclient.Client
	concurrency int
}

func New(cfg Config) (*Model, error) {
	client, err := openaiclient.New(cfg.Config, DefaultModel)
	if err != nil {
		return nil, err
	}
	conc := cfg.Concurrency
	if conc <= 0 {
		conc = 4
	}
	return &Model{client: client, concurrency: conc}, nil
}

func (m *Model) Name() string { return "llm-judge:" + m.client.Model() }

func (m *Model) Predict(ctx context.Context, pairs []domain.Pair) ([]float32, error) {
	scores := make([]float32, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, p := range pairs {
		g.Go(func() error {
			user := fmt.Sprintf("Question: %s\n\nPassage: %s\n\nRating:", p.Query, p.Text)
			reply, err := m.client.Chat(gctx, judgePrompt, user, 4, 0)
			if err != nil {
				return err
			}
			s, err := parseScore(reply)
			if err != nil {
				return err
			}
			scores[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

func parseScore(reply string) (float32, error) {
	raw := scorePattern.FindString(reply)
	if raw == "" {
		return 0, fmt.Errorf("no rating in judge reply %q", reply)
	}
	v, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		return 0, fmt.Errorf("parse judge rating %q: %w", raw, err)
	}
	v = min(max(v, 0), 10)
	return float32(v / 10), nil
}
