package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"policyqa/internal/domain"
	"policyqa/internal/port"
)

// ValidatorOptions tunes answer validation.
type ValidatorOptions struct {
	// Threshold is the minimum validation confidence for accepting an
	// answer as-is; below it one correction attempt is made.
	Threshold   float64
	CallTimeout time.Duration
	MaxTokens   int
}

func DefaultValidatorOptions() ValidatorOptions {
	return ValidatorOptions{Threshold: 0.5, CallTimeout: 15 * time.Second, MaxTokens: 300}
}

// Validator re-examines a generated answer against its context with an
// independent model call and either accepts it, requests one corrected
// answer, or replaces it with the fallback sentence. Validation never
// fails a request: its own errors degrade to accepting or falling
// back, whichever is safer for the case at hand.
type Validator struct {
	llm    port.LLM
	opts   ValidatorOptions
	logger *slog.Logger
}

func NewValidator(llm port.LLM, opts ValidatorOptions, logger *slog.Logger) *Validator {
	if opts.Threshold <= 0 {
		opts = DefaultValidatorOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{llm: llm, opts: opts, logger: logger}
}

const validateSystemPrompt = `You check whether an answer to a question is supported by a context
excerpt from a policy document. Judge direct support in the context, reasonableness of any
inference, and factual consistency of numbers and periods. Reply with only a JSON object:
{"supported": true or false, "confidence": a number from 0.1 to 1.0}`

const correctSystemPrompt = `You rewrite an answer so it is strictly supported by the given context.
Use only the CONTEXT section. If the context cannot support any answer to the question, reply
with exactly this sentence and nothing else: The information is not available in the provided context.
Write one concise paragraph of plain prose. No markdown, no lists.`

type validationResult struct {
	Supported  bool    `json:"supported"`
	Confidence float64 `json:"confidence"`
}

var jsonObjectRe = regexp.MustCompile(`\{[^{}]*\}`)

// Validate returns the final disposition of an answer. Fallback
// answers pass through untouched; there is nothing to verify.
func (v *Validator) Validate(ctx context.Context, question, contextText string, answer domain.Answer) (domain.Answer, domain.TokenUsage) {
	var usage domain.TokenUsage
	if answer.Text == domain.NotInContext {
		answer.Verdict = domain.VerdictFallback
		return answer, usage
	}

	result, tokens, err := v.check(ctx, question, contextText, answer.Text)
	usage.Add(tokens)
	if err != nil {
		// An unverified answer beats no answer; the generator already
		// constrained itself to the context.
		v.logger.Warn("validation call failed, accepting unverified answer",
			"stage", "validate", "question", question, "error", err)
		answer.Verdict = domain.VerdictAccepted
		return answer, usage
	}

	if result.Supported && result.Confidence >= v.opts.Threshold {
		answer.Verdict = domain.VerdictAccepted
		return answer, usage
	}

	v.logger.Info("answer failed validation, attempting correction",
		"question", question, "supported", result.Supported, "confidence", result.Confidence)

	corrected, tokens, err := v.correct(ctx, question, contextText)
	usage.Add(tokens)
	if err != nil || corrected == "" {
		if err != nil {
			v.logger.Warn("correction failed, falling back",
				"stage", "validate", "question", question, "error", err)
		}
		fallback := fallbackAnswer()
		fallback.Sources = nil
		return fallback, usage
	}

	if corrected == domain.NotInContext {
		answer = fallbackAnswer()
		return answer, usage
	}

	answer.Text = corrected
	answer.Confidence = domain.ConfidenceMedium
	answer.Verdict = domain.VerdictCorrected
	return answer, usage
}

func (v *Validator) check(ctx context.Context, question, contextText, answerText string) (validationResult, domain.TokenUsage, error) {
	prompt := "CONTEXT:\n" + contextText + "\n\nQUESTION:\n" + question + "\n\nANSWER:\n" + answerText

	completion, err := v.llm.Complete(ctx, port.CompletionRequest{
		System:    validateSystemPrompt,
		Prompt:    prompt,
		MaxTokens: 60,
		Timeout:   v.opts.CallTimeout,
	})
	if err != nil {
		return validationResult{}, domain.TokenUsage{}, err
	}

	result, ok := parseValidation(completion.Text)
	if !ok {
		// Unparseable verdicts are treated as supportive; the model
		// did respond, it just ignored the format.
		v.logger.Warn("unparseable validation reply", "reply", completion.Text)
		return validationResult{Supported: true, Confidence: 1}, completion.Tokens, nil
	}
	return result, completion.Tokens, nil
}

func (v *Validator) correct(ctx context.Context, question, contextText string) (string, domain.TokenUsage, error) {
	prompt := "CONTEXT:\n" + contextText + "\n\nQUESTION:\n" + question + "\n\nCORRECTED ANSWER:"

	completion, err := v.llm.Complete(ctx, port.CompletionRequest{
		System:    correctSystemPrompt,
		Prompt:    prompt,
		MaxTokens: v.opts.MaxTokens,
		Timeout:   v.opts.CallTimeout,
	})
	if err != nil {
		return "", domain.TokenUsage{}, err
	}

	text := strings.TrimSpace(completion.Text)
	if strings.Contains(strings.ToLower(text), "not available in the provided context") {
		return domain.NotInContext, completion.Tokens, nil
	}
	return text, completion.Tokens, nil
}

func parseValidation(reply string) (validationResult, bool) {
	match := jsonObjectRe.FindString(reply)
	if match == "" {
		return validationResult{}, false
	}
	var result validationResult
	if err := json.Unmarshal([]byte(match), &result); err != nil {
		return validationResult{}, false
	}
	if result.Confidence <= 0 {
		return validationResult{}, false
	}
	return result, true
}
