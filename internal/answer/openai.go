// Package answer synthesizes an answer to a question from retrieved passages.
package answer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultChatModel is the chat model used when none is configured.
const DefaultChatModel = openai.GPT3Dot5Turbo

const systemPrompt = "You are a question answering chatbot"

const promptTemplate = `Use ONLY the context below to answer the question. If you do not know the answer, simply say I don't know.

Context:
%s

Question: %s
Answer:`

// ChatConfig configures the OpenAI chat answerer.
type ChatConfig struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
}

// Chat answers through the OpenAI chat completions API.
type Chat struct {
	client *openai.Client
	model  string
}

func NewChat(cfg ChatConfig) (*Chat, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}
	oc := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &Chat{client: openai.NewClientWithConfig(oc), model: cfg.Model}, nil
}

// Prompt renders the user message sent for question and passages.
func Prompt(question, passages string) string {
	return fmt.Sprintf(promptTemplate, passages, question)
}

func (c *Chat) Answer(ctx context.Context, question, passages string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: Prompt(question, passages)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
