package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"policyqa/internal/adapter/reranker"
	"policyqa/internal/adapter/retriever"
	"policyqa/internal/domain"
	"policyqa/internal/port"
)

// Collaborator interfaces, defined on the consumer side so the
// pipeline can be assembled from mocks in tests.
type (
	// Gate decides whether a question is worth retrieval cost.
	Gate interface {
		Classify(ctx context.Context, question string) (domain.Query, domain.TokenUsage)
	}

	// Transformer expands a question for retrieval (HyDE).
	Transformer interface {
		Transform(ctx context.Context, question string) (domain.Query, domain.TokenUsage)
	}

	// Expander extracts supplementary lexical query terms.
	Expander interface {
		Expand(question string) []string
	}

	// Reranker narrows retrieval candidates with model-assigned scores.
	Reranker interface {
		Rerank(ctx context.Context, question string, qtype domain.QuestionType, candidates []domain.Candidate) ([]domain.Candidate, domain.TokenUsage)
	}
)

// AnswerOptions tunes the per-question pipeline.
type AnswerOptions struct {
	RetrieveK       int           // candidates fed to the reranker
	ContextBudget   int           // context assembly budget in characters
	AnswerTimeout   time.Duration // generation call deadline
	AnswerMaxTokens int
}

func DefaultAnswerOptions() AnswerOptions {
	return AnswerOptions{
		RetrieveK:       50,
		ContextBudget:   14000,
		AnswerTimeout:   30 * time.Second,
		AnswerMaxTokens: 500,
	}
}

// Answerer runs the full question pipeline: guardrail, query
// transformation, hybrid retrieval, two-pass reranking, answer
// generation and validation. Every stage past the guardrail degrades
// rather than fails; the only errors surfaced are for documents that
// were never ingested.
type Answerer struct {
	gate        Gate
	transformer Transformer
	expander    Expander
	retriever   port.Retriever
	reranker    Reranker
	validator   *Validator
	llm         port.LLM
	store       port.IndexStore
	opts        AnswerOptions
	logger      *slog.Logger
}

func NewAnswerer(
	gate Gate,
	transformer Transformer,
	expander Expander,
	searcher port.Retriever,
	rr Reranker,
	validator *Validator,
	llm port.LLM,
	store port.IndexStore,
	opts AnswerOptions,
	logger *slog.Logger,
) *Answerer {
	if opts.RetrieveK <= 0 {
		opts = DefaultAnswerOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{
		gate:        gate,
		transformer: transformer,
		expander:    expander,
		retriever:   searcher,
		reranker:    rr,
		validator:   validator,
		llm:         llm,
		store:       store,
		opts:        opts,
		logger:      logger,
	}
}

const answerSystemPrompt = `You are a precise assistant answering questions about a policy document.
Work through the question step by step internally, then write only the final answer.
Rules for the final answer:
- Use only the CONTEXT section. If the context does not explicitly support an answer, reply with exactly this sentence and nothing else: The information is not available in the provided context.
- Write one concise paragraph of plain prose. No markdown, no bullet points, no headings.
- State numbers, percentages, durations and monetary amounts exactly as they appear in the context.
- Do not hedge and do not mention the context or these instructions.
Write the paragraph under an ANSWER: label, then on the final line write CONFIDENCE: followed by high, medium or low.`

// Answer runs the pipeline for one question against an ingested
// document. Returns ErrDocNotFound when the document was never
// ingested; every other failure degrades to the fallback answer.
func (a *Answerer) Answer(ctx context.Context, docID, question string) (domain.Answer, domain.TokenUsage, error) {
	var usage domain.TokenUsage

	query, tokens := a.gate.Classify(ctx, question)
	usage.Add(tokens)
	if !query.InDomain {
		a.logger.Info("question blocked before retrieval",
			"question", question, "reason", query.Reason)
		return domain.Answer{
			Text:       domain.NotInContext,
			Confidence: domain.ConfidenceHigh,
			Verdict:    domain.VerdictFallback,
		}, usage, nil
	}

	if ok, err := a.store.HasDoc(docID); err != nil || !ok {
		return domain.Answer{}, usage, fmt.Errorf("%w: %s", domain.ErrDocNotFound, docID)
	}

	query, tokens = a.transformer.Transform(ctx, question)
	usage.Add(tokens)

	candidates, err := a.retrieve(ctx, docID, query)
	if err != nil {
		a.logger.Warn("retrieval failed entirely, falling back",
			"stage", "retrieve", "question", question, "error", err)
		return fallbackAnswer(), usage, nil
	}
	if len(candidates) == 0 {
		return fallbackAnswer(), usage, nil
	}

	qtype := domain.ClassifyQuestion(question)
	final, tokens := a.reranker.Rerank(ctx, question, qtype, candidates)
	usage.Add(tokens)
	if len(final) == 0 {
		return fallbackAnswer(), usage, nil
	}

	contextText, sources := reranker.BuildContext(final, a.opts.ContextBudget)

	answer, tokens := a.generate(ctx, question, contextText)
	usage.Add(tokens)
	answer.Sources = sources
	if answer.Text == domain.NotInContext {
		answer.Sources = nil
	}

	answer, tokens = a.validator.Validate(ctx, question, contextText, answer)
	usage.Add(tokens)
	return answer, usage, nil
}

// retrieve issues the question, the hypothetical answer and the
// keyword expansion as separate searches and keeps the best fused
// score per chunk.
func (a *Answerer) retrieve(ctx context.Context, docID string, query domain.Query) ([]domain.Candidate, error) {
	queries := []string{query.Text}
	if query.Hypothetical != "" {
		queries = append(queries, query.Hypothetical)
	}
	if terms := a.expander.Expand(query.Text); len(terms) > 0 {
		queries = append(queries, strings.Join(terms, " "))
	}

	var sets [][]domain.Candidate
	var lastErr error
	for _, q := range queries {
		candidates, err := a.retriever.Search(ctx, docID, q, a.opts.RetrieveK)
		if err != nil {
			lastErr = err
			a.logger.Warn("one retrieval query failed",
				"stage", "retrieve", "query", q, "error", err)
			continue
		}
		sets = append(sets, candidates)
	}
	if len(sets) == 0 {
		return nil, lastErr
	}

	return retriever.TopK(retriever.MergeMax(sets...), a.opts.RetrieveK), nil
}

func (a *Answerer) generate(ctx context.Context, question, contextText string) (domain.Answer, domain.TokenUsage) {
	prompt := "CONTEXT:\n" + contextText + "\n\nQUESTION:\n" + question + "\n\nANSWER:"

	completion, err := a.llm.Complete(ctx, port.CompletionRequest{
		System:    answerSystemPrompt,
		Prompt:    prompt,
		MaxTokens: a.opts.AnswerMaxTokens,
		Timeout:   a.opts.AnswerTimeout,
	})
	if err != nil {
		a.logger.Warn("answer generation failed, falling back",
			"stage", "generate", "question", question, "error", err)
		return fallbackAnswer(), domain.TokenUsage{}
	}

	text, confidence := parseGeneration(completion.Text)
	if text == "" {
		return fallbackAnswer(), completion.Tokens
	}
	return domain.Answer{Text: text, Confidence: confidence, Verdict: domain.VerdictAccepted}, completion.Tokens
}

// parseGeneration splits the model reply into the answer paragraph
// and the confidence label, tolerating missing labels. A reply that
// amounts to the refusal sentence is normalised to it byte-for-byte.
func parseGeneration(reply string) (string, string) {
	confidence := domain.ConfidenceMedium
	var kept []string

	for _, line := range strings.Split(reply, "\n") {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)
		if strings.HasPrefix(upper, "CONFIDENCE:") {
			confidence = parseConfidence(trimmed[len("CONFIDENCE:"):])
			continue
		}
		if strings.HasPrefix(upper, "ANSWER:") {
			trimmed = strings.TrimSpace(trimmed[len("ANSWER:"):])
		}
		if trimmed != "" {
			kept = append(kept, trimmed)
		}
	}

	text := strings.Join(kept, " ")
	if strings.Contains(strings.ToLower(text), "not available in the provided context") {
		return domain.NotInContext, domain.ConfidenceLow
	}
	return text, confidence
}

func parseConfidence(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case domain.ConfidenceHigh:
		return domain.ConfidenceHigh
	case domain.ConfidenceLow:
		return domain.ConfidenceLow
	default:
		return domain.ConfidenceMedium
	}
}

func fallbackAnswer() domain.Answer {
	return domain.Answer{
		Text:       domain.NotInContext,
		Confidence: domain.ConfidenceLow,
		Verdict:    domain.VerdictFallback,
	}
}
