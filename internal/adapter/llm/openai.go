package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"policyqa/internal/domain"
	"policyqa/internal/port"
)

// OpenAIClient is the text-completion collaborator backed by an
// OpenAI-compatible chat API. Calls are rate limited so a concurrent
// question batch stays inside the provider's request quota.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
}

func NewOpenAIClient(apiKey, model, baseURL string, requestsPerSecond float64) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("LLM API key is empty")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, req port.CompletionRequest) (port.Completion, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return port.Completion{}, classify(err)
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: 0,
	})
	if err != nil {
		return port.Completion{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return port.Completion{}, fmt.Errorf("%w: completion returned no choices", domain.ErrLLMService)
	}

	return port.Completion{
		Text: resp.Choices[0].Message.Content,
		Tokens: domain.TokenUsage{
			Prompt:     resp.Usage.PromptTokens,
			Completion: resp.Usage.CompletionTokens,
			Total:      resp.Usage.TotalTokens,
		},
	}, nil
}

// classify folds transport errors into the two failure kinds callers
// branch on.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", domain.ErrLLMTimeout, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrLLMService, err)
}

var _ port.LLM = (*OpenAIClient)(nil)
