package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ragqa/internal/domain"
	"ragqa/internal/openaiclient"
)

func TestParseScore(t *testing.T) {
	tests := []struct {
		reply   string
		want    float32
		wantErr bool
	}{
		{reply: "7", want: 0.7},
		{reply: " Rating: 10.", want: 1},
		{reply: "42", want: 1},
		{reply: "none", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseScore(tt.reply)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseScore(%q) error = %v", tt.reply, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseScore(%q) = %v, want %v", tt.reply, got, tt.want)
		}
	}
}

func TestModel_Predict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		rating := "2"
		if strings.Contains(req.Messages[len(req.Messages)-1].Content, "cats") {
			rating = "9"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": rating}}},
		})
	}))
	defer srv.Close()

	m, err := New(Config{Config: openaiclient.Config{BaseURL: srv.URL}})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	scores, err := m.Predict(context.Background(), []domain.Pair{
		{Query: "pets?", Text: "dogs bark"},
		{Query: "pets?", Text: "cats purr"},
	})
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	if scores[0] != 0.2 || scores[1] != 0.9 {
		t.Errorf("scores = %v, want [0.2 0.9]", scores)
	}
}
