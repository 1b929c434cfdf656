// Package llmclient is the narrow boundary the core consumes from the LLM
// service (spec.md §1, §6): a single request/response text call used by
// classification, summarization, distillation and review. Streaming,
// tool-calling and multi-turn state are out of scope — every call here is
// one-shot.
package llmclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"review-rag/internal/apperr"
	"review-rag/internal/metrics"
)

// Client is the interface every stage depends on.
type Client interface {
	// Complete sends a single system+user prompt and returns the model's
	// text response.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// Ping verifies connectivity with a minimal request.
	Ping(ctx context.Context) error
}

// OpenAIClient implements Client against an OpenAI-compatible Chat
// Completions endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// New creates an OpenAIClient pointed at endpoint with apiKey, using model
// for every completion.
func New(endpoint, apiKey, model string) *OpenAIClient {
	c := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(endpoint),
	)
	return &OpenAIClient{client: &c, model: model}
}

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(userPrompt))

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: messages,
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		wrapped := wrapError(fmt.Errorf("llm completion: %w", err))
		metrics.LLMCallsTotal.WithLabelValues("complete", outcomeFor(wrapped)).Inc()
		return "", wrapped
	}
	if len(resp.Choices) == 0 {
		metrics.LLMCallsTotal.WithLabelValues("complete", "error").Inc()
		return "", fmt.Errorf("llm completion: empty response")
	}
	metrics.LLMCallsTotal.WithLabelValues("complete", "ok").Inc()
	return resp.Choices[0].Message.Content, nil
}

// outcomeFor classifies err for the LLMCallsTotal outcome label.
func outcomeFor(err error) string {
	var retryable *apperr.RetryableError
	if errors.As(err, &retryable) {
		return "retryable"
	}
	return "error"
}

// Ping implements Client.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage("ping"),
		},
		MaxTokens: openai.Int(1),
	}
	if _, err := c.client.Chat.Completions.New(ctx, params); err != nil {
		return fmt.Errorf("llm ping failed: %w", err)
	}
	return nil
}

// wrapError promotes rate-limit and server errors to apperr.RetryableError
// so per-record callers know they may treat the failure as a skip rather
// than a fatal run error.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 || (apiErr.StatusCode >= 500 && apiErr.StatusCode < 600) {
			return apperr.NewRetryableError(err)
		}
	}
	return err
}
