package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driverag/internal/domain"
	"driverag/internal/service"
)

type fakePort struct {
	question string
	err      error
}

func (f *fakePort) Ask(_ context.Context, question string) (service.Answer, error) {
	f.question = question
	if f.err != nil {
		return service.Answer{}, f.err
	}
	return service.Answer{
		Question: question,
		Text:     "Paris.",
		Passages: []domain.SearchResult{
			{ID: "1", Score: 0.9, Text: "The capital of France is Paris.", Payload: map[string]any{domain.PayloadSourceName: "geo.txt"}},
			{ID: "2", Score: 0.1, Text: "Bananas are yellow."},
		},
	}, nil
}

func step(t *testing.T, m tea.Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func submit(t *testing.T, m Model, text string) Model {
	t.Helper()
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	m, _ = step(t, m, cmd())
	return m
}

func TestAskShowsAnswerAndPassages(t *testing.T) {
	port := &fakePort{}
	m := New(context.Background(), port, "documents")
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})

	m = submit(t, m, "capital of France")
	assert.Equal(t, "capital of France", port.question)
	assert.False(t, m.busy)
	view := m.View()
	assert.Contains(t, view, "Paris.")
	assert.Contains(t, view, "Passage 1/2")
	assert.Contains(t, view, "from geo.txt")

	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, m.cursor)
	assert.Contains(t, m.View(), "Passage 2/2")

	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 0, m.cursor)
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 1, m.cursor)
}

func TestAskError(t *testing.T) {
	port := &fakePort{err: errors.New("collection not found")}
	m := New(context.Background(), port, "documents")
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})

	m = submit(t, m, "anything")
	assert.Contains(t, m.status, "collection not found")
	assert.Contains(t, m.View(), "No answer yet.")
}

func TestEmptyInputDoesNotAsk(t *testing.T) {
	port := &fakePort{}
	m := New(context.Background(), port, "documents")
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.busy)
	assert.Empty(t, port.question)
}

func TestHighlightBestSentence(t *testing.T) {
	out := highlightBestSentence("Bananas are yellow. The capital of France is Paris.", "capital France")
	assert.Contains(t, out, "Bananas are yellow.")
	assert.Contains(t, out, "The capital of France is Paris.")

	assert.Equal(t, "One. Two.", highlightBestSentence("One.   Two.", ""))
	assert.Equal(t, "", highlightBestSentence("", "query"))
}
