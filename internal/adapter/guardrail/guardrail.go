package guardrail

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"policyqa/internal/domain"
	"policyqa/internal/port"
)

// Options configures the domain gate.
type Options struct {
	// AllowVehicleTerms disables the vehicle/mechanical pre-filter for
	// deployments where the ingested document is itself a vehicle
	// manual.
	AllowVehicleTerms bool
	CallTimeout       time.Duration
	MaxTokens         int
}

func DefaultOptions() Options {
	return Options{CallTimeout: 5 * time.Second, MaxTokens: 10}
}

// Guardrail classifies a question as in-domain before any retrieval
// cost is spent. Two layers: a keyword pre-filter for obvious
// out-of-domain asks, then a language-model yes/no for ambiguous
// ones. When the model call fails the question is allowed through;
// blocking legitimate questions on a transient error is the worse
// failure mode.
type Guardrail struct {
	llm    port.LLM
	opts   Options
	logger *slog.Logger
}

func New(llm port.LLM, opts Options, logger *slog.Logger) *Guardrail {
	if opts.CallTimeout <= 0 {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guardrail{llm: llm, opts: opts, logger: logger}
}

// Obvious out-of-domain markers: programming requests, general
// knowledge, vehicle mechanics.
var codeMarkers = []string{
	"python code", "javascript code", "write code", "write a script",
	"write a program", "source code", "sql query", "regex", "function to",
	"parse this file", "api endpoint",
}

var generalKnowledgeMarkers = []string{
	"capital of", "who won", "prime minister", "president of",
	"recipe for", "weather", "stock price", "movie", "lyrics",
}

var vehicleMarkers = []string{
	"engine oil", "spark plug", "tyre pressure", "tire pressure",
	"brake fluid", "gearbox", "carburetor", "clutch plate", "chassis number",
}

// Domain vocabulary strong enough to skip the model call entirely.
var policyMarkers = []string{
	"policy", "premium", "coverage", "covered", "claim", "insured",
	"waiting period", "grace period", "exclusion", "deductible",
	"sum insured", "hospitalization", "maternity", "benefit",
}

const classifyPrompt = `You are a domain filter for an insurance/legal/HR policy document
assistant. Answer YES if the question below could be answered from a policy document, NO
otherwise. Answer with exactly one word, YES or NO.

Question: %s`

// Classify returns the query with InDomain set. It performs at most
// one model call and never returns an error.
func (g *Guardrail) Classify(ctx context.Context, question string) (domain.Query, domain.TokenUsage) {
	q := strings.ToLower(question)

	if reason, blocked := g.prefilter(q); blocked {
		return domain.Query{Text: question, InDomain: false, Reason: reason}, domain.TokenUsage{}
	}

	for _, marker := range policyMarkers {
		if strings.Contains(q, marker) {
			return domain.Query{Text: question, InDomain: true, Reason: "policy vocabulary"}, domain.TokenUsage{}
		}
	}

	completion, err := g.llm.Complete(ctx, port.CompletionRequest{
		Prompt:    strings.Replace(classifyPrompt, "%s", question, 1),
		MaxTokens: g.opts.MaxTokens,
		Timeout:   g.opts.CallTimeout,
	})
	if err != nil {
		g.logger.Warn("guardrail classification failed, allowing question through",
			"stage", "guardrail", "question", question, "error", err)
		return domain.Query{Text: question, InDomain: true, Reason: "classifier unavailable"}, domain.TokenUsage{}
	}

	verdict := strings.ToUpper(strings.TrimSpace(completion.Text))
	if strings.HasPrefix(verdict, "NO") {
		return domain.Query{Text: question, InDomain: false, Reason: "classifier verdict"}, completion.Tokens
	}
	return domain.Query{Text: question, InDomain: true, Reason: "classifier verdict"}, completion.Tokens
}

func (g *Guardrail) prefilter(q string) (string, bool) {
	for _, marker := range codeMarkers {
		if strings.Contains(q, marker) {
			return "code request", true
		}
	}
	for _, marker := range generalKnowledgeMarkers {
		if strings.Contains(q, marker) {
			return "general knowledge", true
		}
	}
	if !g.opts.AllowVehicleTerms {
		for _, marker := range vehicleMarkers {
			if strings.Contains(q, marker) {
				return "vehicle topic", true
			}
		}
	}
	return "", false
}
