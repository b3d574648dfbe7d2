package port

import (
	"context"
	"time"

	"policyqa/internal/domain"
)

// CompletionRequest describes one text-completion call. Timeout bounds
// the call on top of whatever deadline the context already carries.
type CompletionRequest struct {
	System    string
	Prompt    string
	MaxTokens int
	Timeout   time.Duration
}

// Completion is a finished text-completion with its token cost.
type Completion struct {
	Text   string
	Tokens domain.TokenUsage
}

// LLM is the opaque text-completion collaborator. Implementations must
// classify failures as domain.ErrLLMTimeout or domain.ErrLLMService so
// callers can apply their own degradation rules.
type LLM interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}
