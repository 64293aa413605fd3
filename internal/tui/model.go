// Package tui is the interactive terminal front end for asking questions.
package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docqa/internal/service"
)

// QAPort is the TUI-facing subset of the service.
type QAPort interface {
	Ask(ctx context.Context, query string, topK int) (service.Answer, error)
	Preview(ctx context.Context, query string, topK int) (service.Answer, error)
}

// Options configures how questions are sent.
type Options struct {
	TopK int
	// PreviewOnly shows retrieved context without asking the responder.
	PreviewOnly bool
	Timeout     time.Duration
}

type answerMsg struct {
	answer service.Answer
	err    error
}

// Model is the Bubble Tea model for the TUI application.
// Page 0 shows the answer, the following pages show one context block each.
type Model struct {
	port    QAPort
	opts    Options
	input   textinput.Model
	view    viewport.Model
	answer  *service.Answer
	summary string
	status  string
	page    int
	busy    bool
	ready   bool
}

// New creates a new TUI model instance.
func New(port QAPort, summary string, opts Options) Model {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	status := "Loaded. Ask a question."
	if opts.PreviewOnly {
		status = "Loaded in preview mode. Answers show retrieved context only."
	}
	return Model{port: port, opts: opts, input: ti, view: viewport.New(0, 0), summary: summary, status: status}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(query string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.Timeout)
		defer cancel()
		var (
			ans service.Answer
			err error
		)
		if m.opts.PreviewOnly {
			ans, err = m.port.Preview(ctx, query, m.opts.TopK)
		} else {
			ans, err = m.port.Ask(ctx, query, m.opts.TopK)
		}
		return answerMsg{answer: ans, err: err}
	}
}

func (m Model) pages() int {
	if m.answer == nil {
		return 0
	}
	return 1 + len(m.answer.Blocks)
}

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, summary, status, spacer
		m.view.Width = max(20, msg.Width)
		m.view.Height = max(3, msg.Height-reserved-rh)
		m.view.SetContent(m.renderPage())
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.answer = nil
		} else {
			ans := msg.answer
			m.answer = &ans
			m.page = 0
			m.status = fmt.Sprintf("%d context block(s) for %q", len(ans.Blocks), ans.Query)
		}
		m.view.SetContent(m.renderPage())
		m.view.GotoTop()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.status = "Thinking..."
			return m, m.ask(q)
		case "down":
			if n := m.pages(); n > 0 {
				m.page = (m.page + 1) % n
				m.view.SetContent(m.renderPage())
				return m, nil
			}
		case "up":
			if n := m.pages(); n > 0 {
				m.page = (m.page - 1 + n) % n
				m.view.SetContent(m.renderPage())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the layout and the current page.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("DocQA")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.view.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderPage() string {
	if m.answer == nil {
		return "No answer yet."
	}
	if m.page == 0 {
		title := fmt.Sprintf("Answer  (%d/%d, up/down for sources)", 1, m.pages())
		body := m.answer.Answer
		if m.opts.PreviewOnly {
			body = m.answer.Prompt
		}
		if strings.TrimSpace(body) == "" {
			body = "(empty)"
		}
		return title + "\n\n" + body
	}
	b := m.answer.Blocks[m.page-1]
	title := fmt.Sprintf("%s part %d  (%d/%d)", b.SourceID, b.StartPosition, m.page+1, m.pages())
	return title + "\n\n" + highlightBestSentence(b.Text, m.answer.Query)
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`)
)

// highlightBestSentence renders the sentence sharing the most words with query in highlightStyle.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := splitSentences(text)
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx, bestScore := 0, -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore, bestIdx = score, i
		}
	}
	sentences[bestIdx] = highlightStyle.Render(sentences[bestIdx])
	return strings.Join(sentences, " ")
}

// splitSentences returns trimmed sentences, including a trailing fragment
// that has no terminal punctuation.
func splitSentences(text string) []string {
	var out []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		out = []string{strings.TrimSpace(text)}
	}
	return out
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
	seen := map[string]struct{}{}
	for _, t := range unicodeWordRe.FindAllString(strings.ToLower(sentence), -1) {
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
