package retriever

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"policyqa/internal/domain"
	"policyqa/internal/port"
)

const hydeSystemPrompt = `You are an insurance policy document writer. Given a question about
a policy, write a short hypothetical excerpt in formal policy-document style that would
answer it. Use the vocabulary of policy wordings: coverage, exclusions, waiting periods,
sub-limits, sum insured. Keep it under 120 words. Write only the excerpt, no explanation.`

// HyDETransformer expands a question into a hypothetical policy-style
// answer to improve semantic retrieval recall. Failure is not an
// option here in the error sense: a failed or slow generation just
// leaves the hypothetical empty and retrieval proceeds on the
// original question alone.
type HyDETransformer struct {
	llm       port.LLM
	timeout   time.Duration
	maxTokens int
	logger    *slog.Logger
}

func NewHyDETransformer(llm port.LLM, timeout time.Duration, maxTokens int, logger *slog.Logger) *HyDETransformer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if maxTokens <= 0 {
		maxTokens = 200
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HyDETransformer{llm: llm, timeout: timeout, maxTokens: maxTokens, logger: logger}
}

// Transform fills Query.Hypothetical when generation succeeds inside
// the deadline. It never returns an error.
func (t *HyDETransformer) Transform(ctx context.Context, question string) (domain.Query, domain.TokenUsage) {
	query := domain.Query{Text: question, InDomain: true}

	completion, err := t.llm.Complete(ctx, port.CompletionRequest{
		System:    hydeSystemPrompt,
		Prompt:    "Question: " + question,
		MaxTokens: t.maxTokens,
		Timeout:   t.timeout,
	})
	if err != nil {
		t.logger.Warn("hypothetical answer generation failed, retrieval will use the question only",
			"stage", "transform", "question", question, "error", err)
		return query, domain.TokenUsage{}
	}

	hypothetical := strings.TrimSpace(completion.Text)
	if hypothetical != "" {
		query.Hypothetical = hypothetical
	}
	return query, completion.Tokens
}
