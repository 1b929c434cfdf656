// Package embedclient is the narrow boundary the core consumes from the
// text-embedding service (spec.md §1, §6).
package embedclient

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"review-rag/internal/metrics"
)

// Client embeds a single piece of text into a fixed-dimension vector.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAIClient implements Client against an OpenAI-compatible Embeddings
// endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// New creates an OpenAIClient pointed at endpoint with apiKey, embedding
// with model.
func New(endpoint, apiKey, model string) *OpenAIClient {
	c := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(endpoint),
	)
	return &OpenAIClient{client: &c, model: model}
}

// Embed implements Client.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		metrics.LLMCallsTotal.WithLabelValues("embed", "error").Inc()
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	if len(resp.Data) == 0 {
		metrics.LLMCallsTotal.WithLabelValues("embed", "error").Inc()
		return nil, fmt.Errorf("embedding request: empty response")
	}

	raw := resp.Data[0].Embedding
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(v)
	}
	metrics.LLMCallsTotal.WithLabelValues("embed", "ok").Inc()
	return out, nil
}
