// Package openai implements the Embedder on the OpenAI embeddings API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// DefaultModel matches the 1536-dimension model the index is usually created with.
const DefaultModel = "text-embedding-ada-002"

var knownDimensions = map[string]int{
	"text-embedding-ada-002": 1536,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	// Dimension is required for models not in the built-in table. For the
	// text-embedding-3 models it is also sent to the API to shorten vectors.
	Dimension int
	// RequestsPerSecond throttles calls client-side; 0 disables throttling.
	RequestsPerSecond float64
	Burst             int
}

// Client is an OpenAI embeddings client implementing embedding.Embedder.
type Client struct {
	client    *openai.Client
	model     string
	dimension int
	request   int
	limiter   *rate.Limiter
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	dim, known := knownDimensions[cfg.Model]
	request := 0
	if cfg.Dimension > 0 {
		if cfg.Model != DefaultModel {
			request = cfg.Dimension
		}
		dim = cfg.Dimension
	} else if !known {
		return nil, fmt.Errorf("dimension required for embedding model %s", cfg.Model)
	}

	oc := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	c := &Client{
		client:    openai.NewClientWithConfig(oc),
		model:     cfg.Model,
		dimension: dim,
		request:   request,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai/" + c.model }

// Dimension returns the dimensionality of the produced embedding vectors.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("cannot embed empty text")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(c.model),
		Input:      []string{text},
		Dimensions: c.request,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("no embedding returned")
	}
	src := resp.Data[0].Embedding
	v := make([]float32, len(src))
	for i := range src {
		v[i] = float32(src[i])
	}
	return v, nil
}
