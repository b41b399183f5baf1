package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragqa/internal/chunker"
	"ragqa/internal/domain"
	"ragqa/internal/service"
)

// RAGPort is the TUI-facing subset of the RAG service.
type RAGPort interface {
	Query(ctx context.Context, query string, topK int) ([]domain.RetrievedChunk, error)
	Answer(ctx context.Context, question string, topK int) (string, []domain.RetrievedChunk, error)
}

// resultMsg carries the outcome of a query run off the update loop.
type resultMsg struct {
	query   string
	answer  string
	results []domain.RetrievedChunk
	err     error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	service   RAGPort
	topK      int
	input     textinput.Model
	viewport  viewport.Model
	results   []domain.RetrievedChunk
	answer    string
	summary   string
	status    string
	cursor    int
	ready     bool
	busy      bool
	answering bool
	canAnswer bool
	lastQuery string
}

// New creates a new TUI model instance. canAnswer enables the answer mode toggle.
func New(svc RAGPort, stats service.IngestStats, topK int, canAnswer bool) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	status := "Loaded. Type to search."
	if canAnswer {
		status = "Loaded. Type to search, Tab switches to answer mode."
	}
	return Model{
		service:   svc,
		topK:      topK,
		input:     ti,
		viewport:  vp,
		summary:   Summary(stats),
		status:    status,
		canAnswer: canAnswer,
	}
}

// Summary renders ingest statistics as a one-line header.
func Summary(s service.IngestStats) string {
	parts := []string{
		fmt.Sprintf("%d documents", s.Documents),
		fmt.Sprintf("%d chunks", s.Chunks),
	}
	if s.Files > 0 {
		parts = append([]string{fmt.Sprintf("%d files", s.Files)}, parts...)
	}
	if s.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", s.Skipped))
	}
	if s.EmptyDocuments > 0 {
		parts = append(parts, fmt.Sprintf("%d empty", s.EmptyDocuments))
	}
	parts = append(parts, fmt.Sprintf("%s dim=%d", s.Model, s.Dimension))
	if len(s.BuildID) >= 8 {
		parts = append(parts, "build "+s.BuildID[:8])
	}
	return strings.Join(parts, " · ")
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) run(q string, answering bool) tea.Cmd {
	svc, topK := m.service, m.topK
	return func() tea.Msg {
		ctx := context.Background()
		if answering {
			answer, res, err := svc.Answer(ctx, q, topK)
			return resultMsg{query: q, answer: answer, results: res, err: err}
		}
		res, err := svc.Query(ctx, q, topK)
		return resultMsg{query: q, results: res, err: err}
	}
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + summary
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case resultMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.results = nil
			m.answer = ""
		} else {
			m.status = fmt.Sprintf("%d results for %q", len(msg.results), msg.query)
			m.results = msg.results
			m.answer = msg.answer
			m.cursor = 0
			m.lastQuery = msg.query
		}
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.busy {
				m.busy = true
				m.status = "Searching..."
				return m, m.run(q, m.answering)
			}
		case "tab":
			if m.canAnswer {
				m.answering = !m.answering
				m.status = "Mode: " + m.mode()
				return m, nil
			}
		case "down":
			if len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "up":
			if len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) mode() string {
	if m.answering {
		return "answer"
	}
	return "search"
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("RAG QA · " + m.mode())
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrentResult() string {
	if len(m.results) == 0 {
		if m.answer != "" {
			return answerStyle.Render(m.answer)
		}
		return "No results yet."
	}
	r := m.results[m.cursor]
	title := fmt.Sprintf("Result %d/%d  %s  score=%.3f  [%s]", m.cursor+1, len(m.results), r.DocumentID, r.Score, r.Retrieval)
	if r.RerankScore != nil {
		title += fmt.Sprintf("  vector=%.3f", r.VectorScore)
	}
	body := highlightBestSentence(r.Text, m.lastQuery)
	if m.answer != "" {
		return answerStyle.Render(m.answer) + "\n\n" + title + "\n\n" + body
	}
	return title + "\n\n" + body
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	answerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	segmenter      = chunker.DefaultSegmenter()
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := segmenter.Split(text)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	if bestScore > 0 {
		sentences[bestIdx] = highlightStyle.Render(sentences[bestIdx])
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
