package answer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractivePicksMatchingSentence(t *testing.T) {
	e := NewExtractive(1)
	passages := "Bananas are yellow. The capital of France is Paris. Go has goroutines."

	got, err := e.Answer(context.Background(), "What is the capital of France?", passages)
	require.NoError(t, err)
	assert.Equal(t, "The capital of France is Paris.", got)
}

func TestExtractiveKeepsPassageOrder(t *testing.T) {
	e := NewExtractive(2)
	passages := "Paris hosts the Louvre.\nBananas are yellow.\nFrance's capital city is Paris."

	got, err := e.Answer(context.Background(), "Tell me about Paris", passages)
	require.NoError(t, err)
	assert.Equal(t, "Paris hosts the Louvre. France's capital city is Paris.", got)
}

func TestExtractiveNoOverlap(t *testing.T) {
	e := NewExtractive(3)
	for _, passages := range []string{"", "Bananas are yellow."} {
		got, err := e.Answer(context.Background(), "capital of France", passages)
		require.NoError(t, err)
		assert.Equal(t, NoAnswer, got)
	}
}

func TestChatAnswer(t *testing.T) {
	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  req.Model,
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": " Paris. "}, "finish_reason": "stop"},
			},
		})
	}))
	t.Cleanup(srv.Close)
	t.Setenv("TEST_OPENAI_KEY", "sk-test")

	c, err := NewChat(ChatConfig{BaseURL: srv.URL, APIKeyEnv: "TEST_OPENAI_KEY"})
	require.NoError(t, err)

	got, err := c.Answer(context.Background(), "What is the capital of France?", "The capital of France is Paris.")
	require.NoError(t, err)
	assert.Equal(t, "Paris.", got)
	assert.Equal(t, DefaultChatModel, req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, systemPrompt, req.Messages[0].Content)
	assert.Contains(t, req.Messages[1].Content, "Use ONLY the context below")
	assert.Contains(t, req.Messages[1].Content, "Context:\nThe capital of France is Paris.")
	assert.Contains(t, req.Messages[1].Content, "Question: What is the capital of France?")
}

func TestNewChatRequiresKey(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "")
	_, err := NewChat(ChatConfig{APIKeyEnv: "TEST_OPENAI_KEY"})
	assert.Error(t, err)
}
