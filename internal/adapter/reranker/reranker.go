package reranker

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"policyqa/internal/domain"
	"policyqa/internal/port"
)

// Options holds the narrowing thresholds and scoring-call budget.
// The 50→20→12 narrowing is tuned policy, not an invariant, so it is
// configuration all the way down.
type Options struct {
	PassOneKeep int
	PassTwoKeep int
	CallTimeout time.Duration
	MaxTokens   int
}

func DefaultOptions() Options {
	return Options{
		PassOneKeep: 20,
		PassTwoKeep: 12,
		CallTimeout: 30 * time.Second,
		MaxTokens:   400,
	}
}

// LLMReranker narrows a fused candidate set in two passes of
// language-model scoring. Pass one scores short excerpts; pass two
// re-scores the survivors with neighbouring chunks included for
// sharper discrimination. A failed scoring call never drops a
// candidate: it keeps its fused retrieval score instead.
type LLMReranker struct {
	llm    port.LLM
	store  port.IndexStore
	opts   Options
	logger *slog.Logger
}

func New(llm port.LLM, store port.IndexStore, opts Options, logger *slog.Logger) *LLMReranker {
	if opts.PassOneKeep <= 0 {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMReranker{llm: llm, store: store, opts: opts, logger: logger}
}

// Rerank runs both passes and returns the final candidates, best
// first. The output of pass two is always a subset of pass one's.
func (r *LLMReranker) Rerank(ctx context.Context, question string, qtype domain.QuestionType, candidates []domain.Candidate) ([]domain.Candidate, domain.TokenUsage) {
	var usage domain.TokenUsage

	passOne, passOneUsage := r.pass(ctx, question, qtype, candidates, r.opts.PassOneKeep, false)
	usage.Add(passOneUsage)

	passTwo, passTwoUsage := r.pass(ctx, question, qtype, passOne, r.opts.PassTwoKeep, true)
	usage.Add(passTwoUsage)

	return passTwo, usage
}

func (r *LLMReranker) pass(ctx context.Context, question string, qtype domain.QuestionType, candidates []domain.Candidate, keep int, withNeighbours bool) ([]domain.Candidate, domain.TokenUsage) {
	if len(candidates) == 0 {
		return nil, domain.TokenUsage{}
	}
	if len(candidates) <= keep {
		keep = len(candidates)
	}

	scored, usage := r.scoreBatch(ctx, question, qtype, candidates, withNeighbours)
	scored = applyTypeBoosts(scored, qtype)

	sort.SliceStable(scored, func(i, j int) bool {
		ri, rj := scored[i].Score(domain.ScoreRelevance), scored[j].Score(domain.ScoreRelevance)
		if ri != rj {
			return ri > rj
		}
		ci, cj := scored[i].Score(domain.ScoreConfidence), scored[j].Score(domain.ScoreConfidence)
		if ci != cj {
			return ci > cj
		}
		return scored[i].Chunk.Seq < scored[j].Chunk.Seq
	})

	return scored[:keep], usage
}

// scoreBatch asks the model for one [relevance, confidence] pair per
// excerpt in a single call. On failure every candidate falls back to
// its fused score for relevance and term overlap for confidence.
func (r *LLMReranker) scoreBatch(ctx context.Context, question string, qtype domain.QuestionType, candidates []domain.Candidate, withNeighbours bool) ([]domain.Candidate, domain.TokenUsage) {
	prompt := r.buildScoringPrompt(question, qtype, candidates, withNeighbours)

	completion, err := r.llm.Complete(ctx, port.CompletionRequest{
		Prompt:    prompt,
		MaxTokens: r.opts.MaxTokens,
		Timeout:   r.opts.CallTimeout,
	})
	if err != nil {
		r.logger.Warn("rerank scoring call failed, keeping fused retrieval scores",
			"stage", "rerank", "question", question, "error", err)
		return fallbackScores(question, candidates), domain.TokenUsage{}
	}

	pairs, ok := extractScorePairs(completion.Text, len(candidates))
	if !ok {
		r.logger.Warn("rerank scores unparseable, keeping fused retrieval scores",
			"stage", "rerank", "question", question)
		return fallbackScores(question, candidates), completion.Tokens
	}

	scored := make([]domain.Candidate, len(candidates))
	for i, c := range candidates {
		scored[i] = c.
			WithScore(domain.ScoreRelevance, pairs[i][0]/10).
			WithScore(domain.ScoreConfidence, pairs[i][1]/10)
	}
	return scored, completion.Tokens
}

func (r *LLMReranker) buildScoringPrompt(question string, qtype domain.QuestionType, candidates []domain.Candidate, withNeighbours bool) string {
	excerptLimit := 200
	if withNeighbours {
		excerptLimit = 400
	}

	var sb strings.Builder
	sb.WriteString("You are an insurance policy analyst. Rate each numbered excerpt for how well it answers the question.\n\n")
	fmt.Fprintf(&sb, "Question: %q\n", question)
	sb.WriteString(typeGuidance(qtype))
	sb.WriteString("\nExcerpts:\n")

	for i, c := range candidates {
		text := c.Chunk.Text
		if withNeighbours {
			text = r.withNeighbourText(c.Chunk)
		}
		fmt.Fprintf(&sb, "%d. %s\n", i+1, truncate(text, excerptLimit))
	}

	sb.WriteString("\nReturn ONLY a JSON array with one [relevance, confidence] pair per excerpt, each value 1-10.\n")
	sb.WriteString("Example: [[9,8],[3,6],[7,7]]")
	return sb.String()
}

// withNeighbourText prepends and appends the adjacent chunks so pass
// two judges each excerpt in its surrounding context.
func (r *LLMReranker) withNeighbourText(chunk domain.Chunk) string {
	var parts []string
	if prev, err := r.store.GetChunkBySeq(chunk.DocID, chunk.Seq-1); err == nil {
		parts = append(parts, tail(prev.Text, 150))
	}
	parts = append(parts, chunk.Text)
	if next, err := r.store.GetChunkBySeq(chunk.DocID, chunk.Seq+1); err == nil {
		parts = append(parts, truncate(next.Text, 150))
	}
	return strings.Join(parts, " … ")
}

func typeGuidance(qtype domain.QuestionType) string {
	switch qtype {
	case domain.QuestionQuantitative:
		return "The question asks for a quantity. Prefer excerpts with concrete numbers, percentages, amounts or timeframes.\n"
	case domain.QuestionExclusion:
		return "The question asks about exclusions. Prefer excerpts listing exclusions, limitations or conditions.\n"
	case domain.QuestionScenario:
		return "The question describes a scenario. Prefer excerpts stating conditions and their consequences.\n"
	default:
		return ""
	}
}

// fallbackScores keeps the candidates alive after a failed scoring
// call: fused score becomes relevance, query-term overlap becomes the
// confidence tie-break.
func fallbackScores(question string, candidates []domain.Candidate) []domain.Candidate {
	queryTerms := termSet(question)

	out := make([]domain.Candidate, len(candidates))
	for i, c := range candidates {
		out[i] = c.
			WithScore(domain.ScoreRelevance, c.Score(domain.ScoreFused)).
			WithScore(domain.ScoreConfidence, overlap(queryTerms, c.Chunk.Text))
	}
	return out
}

var quantRe = regexp.MustCompile(`\d|%|\bdays?\b|\bmonths?\b|\byears?\b`)

var exclusionVocab = []string{"exclusion", "excluded", "not covered", "not payable", "limitation", "except"}

// applyTypeBoosts nudges relevance for chunks whose content matches
// what the question type needs, mirroring how a human skims for
// numbers on quantity questions.
func applyTypeBoosts(candidates []domain.Candidate, qtype domain.QuestionType) []domain.Candidate {
	out := make([]domain.Candidate, len(candidates))
	for i, c := range candidates {
		boost := 0.0
		text := strings.ToLower(c.Chunk.Text)

		switch qtype {
		case domain.QuestionQuantitative:
			if quantRe.MatchString(text) {
				boost += 0.1
			}
			if c.Chunk.Kind == domain.ChunkTable {
				boost += 0.1
			}
		case domain.QuestionExclusion:
			for _, term := range exclusionVocab {
				if strings.Contains(text, term) {
					boost += 0.1
					break
				}
			}
		}

		if boost > 0 {
			rel := c.Score(domain.ScoreRelevance) + boost
			if rel > 1 {
				rel = 1
			}
			c = c.WithScore(domain.ScoreRelevance, rel)
		}
		out[i] = c
	}
	return out
}

var pairRe = regexp.MustCompile(`\[\s*(\d+(?:\.\d+)?)\s*,\s*(\d+(?:\.\d+)?)\s*\]`)
var numberRe = regexp.MustCompile(`\b(10|[1-9])(?:\.\d+)?\b`)

// extractScorePairs parses [relevance, confidence] pairs out of a
// model reply, tolerating prose around the array. Loose number
// extraction is the second chance; fewer numbers than needed means
// the reply is unusable.
func extractScorePairs(text string, n int) ([][2]float64, bool) {
	matches := pairRe.FindAllStringSubmatch(text, -1)
	if len(matches) >= n {
		pairs := make([][2]float64, n)
		for i := 0; i < n; i++ {
			rel, _ := strconv.ParseFloat(matches[i][1], 64)
			conf, _ := strconv.ParseFloat(matches[i][2], 64)
			pairs[i] = [2]float64{clampScore(rel), clampScore(conf)}
		}
		return pairs, true
	}

	numbers := numberRe.FindAllString(text, -1)
	if len(numbers) >= n*2 {
		pairs := make([][2]float64, n)
		for i := 0; i < n; i++ {
			rel, _ := strconv.ParseFloat(numbers[i*2], 64)
			conf, _ := strconv.ParseFloat(numbers[i*2+1], 64)
			pairs[i] = [2]float64{clampScore(rel), clampScore(conf)}
		}
		return pairs, true
	}

	return nil, false
}

func clampScore(v float64) float64 {
	if v < 1 {
		return 5
	}
	if v > 10 {
		return 10
	}
	return v
}

func termSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:?!\"'()")
		if len(w) >= 2 {
			set[w] = struct{}{}
		}
	}
	return set
}

func overlap(queryTerms map[string]struct{}, text string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	docTerms := termSet(text)
	matches := 0
	for term := range queryTerms {
		if _, ok := docTerms[term]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(queryTerms))
}

// headBytes returns the longest prefix of s within n bytes that ends
// on a rune boundary, so byte cuts never emit invalid UTF-8.
func headBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return headBytes(s, n) + "..."
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := len(s) - n
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return "..." + s[i:]
}
