// Package tui is the interactive question console.
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

	"driverag/internal/domain"
	"driverag/internal/service"
)

// AskPort is the console-facing subset of the RAG service.
type AskPort interface {
	Ask(ctx context.Context, question string) (service.Answer, error)
}

type answerMsg struct {
	answer service.Answer
	err    error
}

// Model is the Bubble Tea model for the console.
type Model struct {
	ctx      context.Context
	service  AskPort
	input    textinput.Model
	viewport viewport.Model
	answer   *service.Answer
	title    string
	status   string
	cursor   int
	ready    bool
	busy     bool
}

// New creates a console bound to service. title is shown in the header,
// typically the collection name.
func New(ctx context.Context, service AskPort, title string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{ctx: ctx, service: service, input: ti, viewport: vp, title: title, status: "Ready. Up/Down cycle passages, Ctrl+C quits."}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(question string) tea.Cmd {
	return func() tea.Msg {
		a, err := m.service.Ask(m.ctx, question)
		return answerMsg{answer: a, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, title, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.render())
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.answer = nil
		} else {
			m.status = fmt.Sprintf("%d passages for %q", len(msg.answer.Passages), msg.answer.Question)
			a := msg.answer
			m.answer = &a
			m.cursor = 0
		}
		m.viewport.SetContent(m.render())
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
				m.status = "Thinking..."
				return m, m.ask(q)
			}
		case "down":
			if n := m.passageCount(); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.render())
				return m, nil
			}
		case "up":
			if n := m.passageCount(); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.render())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("driverag")
	title := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.title)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + title + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) passageCount() int {
	if m.answer == nil {
		return 0
	}
	return len(m.answer.Passages)
}

func (m Model) render() string {
	if m.answer == nil {
		return "No answer yet."
	}
	var sb strings.Builder
	sb.WriteString(answerStyle.Render(m.answer.Text))
	sb.WriteString("\n\n")
	if len(m.answer.Passages) == 0 {
		sb.WriteString("No passages found.")
		return sb.String()
	}
	p := m.answer.Passages[m.cursor]
	sb.WriteString(fmt.Sprintf("Passage %d/%d  score=%.3f%s\n\n", m.cursor+1, len(m.answer.Passages), p.Score, sourceLabel(p)))
	sb.WriteString(highlightBestSentence(p.Text, m.answer.Question))
	return sb.String()
}

func sourceLabel(r domain.SearchResult) string {
	if name, ok := r.Payload[domain.PayloadSourceName].(string); ok && name != "" {
		return "  from " + name
	}
	return ""
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	answerStyle    = lipgloss.NewStyle().Bold(true)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`[^.!?]+[.!?]?`)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	var sentences []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 || len(sentences) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	sentences[bestIdx] = highlightStyle.Render(sentences[bestIdx])
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
