package reranker

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"policyqa/internal/adapter/llm"
	"policyqa/internal/adapter/memstore"
	"policyqa/internal/domain"
)

func makeCandidates(n int) []domain.Candidate {
	candidates := make([]domain.Candidate, n)
	for i := 0; i < n; i++ {
		candidates[i] = domain.NewCandidate(domain.Chunk{
			ID:    fmt.Sprintf("c%02d", i),
			DocID: "doc1",
			Seq:   i,
			Text:  fmt.Sprintf("Clause %d of the policy wording.", i),
		}).WithScore(domain.ScoreFused, 1-float64(i)*0.01)
	}
	return candidates
}

// pairsReply builds a JSON score array giving earlier excerpts higher
// relevance.
func pairsReply(n int) string {
	var parts []string
	for i := 0; i < n; i++ {
		rel := 10 - i%10
		parts = append(parts, fmt.Sprintf("[%d,%d]", rel, 5))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func TestRerankMonotonicNarrowing(t *testing.T) {
	mock := llm.NewMockClient()
	mock.DefaultReply = pairsReply(50)

	r := New(mock, memstore.NewMemoryStore(), DefaultOptions(), nil)
	candidates := makeCandidates(50)

	final, _ := r.Rerank(context.Background(), "What is covered?", domain.QuestionLookup, candidates)
	require.LessOrEqual(t, len(final), 12)

	inputIDs := make(map[string]bool)
	for _, c := range candidates {
		inputIDs[c.Chunk.ID] = true
	}
	for _, c := range final {
		require.True(t, inputIDs[c.Chunk.ID], "rerank invented a candidate")
	}
}

func TestRerankPassTwoSubsetOfPassOne(t *testing.T) {
	mock := llm.NewMockClient()
	mock.DefaultReply = pairsReply(50)

	r := New(mock, memstore.NewMemoryStore(), DefaultOptions(), nil)
	candidates := makeCandidates(50)

	passOne, _ := r.pass(context.Background(), "q", domain.QuestionLookup, candidates, r.opts.PassOneKeep, false)
	require.Len(t, passOne, 20)

	passTwo, _ := r.pass(context.Background(), "q", domain.QuestionLookup, passOne, r.opts.PassTwoKeep, true)
	require.Len(t, passTwo, 12)

	passOneIDs := make(map[string]bool)
	for _, c := range passOne {
		passOneIDs[c.Chunk.ID] = true
	}
	for _, c := range passTwo {
		require.True(t, passOneIDs[c.Chunk.ID], "pass two emitted a chunk pass one dropped")
	}
}

func TestRerankFailureKeepsFusedScores(t *testing.T) {
	mock := llm.NewMockClient()
	mock.DefaultErr = domain.ErrLLMService

	r := New(mock, memstore.NewMemoryStore(), DefaultOptions(), nil)
	candidates := makeCandidates(30)

	final, _ := r.Rerank(context.Background(), "What is covered?", domain.QuestionLookup, candidates)
	require.NotEmpty(t, final, "scoring failure must not drop all candidates")

	// Fused order had c00 first; with scoring down that order survives.
	require.Equal(t, "c00", final[0].Chunk.ID)
	require.Equal(t, final[0].Score(domain.ScoreFused), final[0].Score(domain.ScoreRelevance))
}

func TestRerankUnparseableReplyFallsBack(t *testing.T) {
	mock := llm.NewMockClient()
	mock.DefaultReply = "I cannot score these excerpts, sorry."

	r := New(mock, memstore.NewMemoryStore(), DefaultOptions(), nil)
	final, _ := r.Rerank(context.Background(), "What is covered?", domain.QuestionLookup, makeCandidates(30))
	require.NotEmpty(t, final)
	require.Equal(t, "c00", final[0].Chunk.ID)
}

func TestQuantitativeBoostPrefersNumericChunks(t *testing.T) {
	prose := domain.NewCandidate(domain.Chunk{ID: "prose", Seq: 0, Text: "The insurer shall settle claims promptly."}).
		WithScore(domain.ScoreRelevance, 0.7).WithScore(domain.ScoreConfidence, 0.5)
	numeric := domain.NewCandidate(domain.Chunk{ID: "numeric", Seq: 1, Text: "A discount of 5% applies after 2 policy years."}).
		WithScore(domain.ScoreRelevance, 0.7).WithScore(domain.ScoreConfidence, 0.5)

	boosted := applyTypeBoosts([]domain.Candidate{prose, numeric}, domain.QuestionQuantitative)
	require.Greater(t, boosted[1].Score(domain.ScoreRelevance), boosted[0].Score(domain.ScoreRelevance))
}

func TestExtractScorePairs(t *testing.T) {
	pairs, ok := extractScorePairs("Here are the scores: [[9,8],[3,6],[7,7]]", 3)
	require.True(t, ok)
	require.Equal(t, [2]float64{9, 8}, pairs[0])
	require.Equal(t, [2]float64{3, 6}, pairs[1])

	pairs, ok = extractScorePairs("relevance 9 confidence 8, then relevance 3 confidence 6", 2)
	require.True(t, ok)
	require.Equal(t, [2]float64{9, 8}, pairs[0])

	_, ok = extractScorePairs("no usable scores here", 3)
	require.False(t, ok)
}

func TestBuildContextRespectsBudget(t *testing.T) {
	candidates := []domain.Candidate{
		domain.NewCandidate(domain.Chunk{ID: "a", Text: strings.Repeat("x", 400)}),
		domain.NewCandidate(domain.Chunk{ID: "b", Text: strings.Repeat("y", 400)}),
		domain.NewCandidate(domain.Chunk{ID: "c", Text: strings.Repeat("z", 400)}),
	}

	text, ids := BuildContext(candidates, 900)
	require.LessOrEqual(t, len(text), 900)
	require.Equal(t, []string{"a", "b"}, ids, "lowest-ranked chunk should be dropped first")
}

func TestBuildContextSingleOversizedChunk(t *testing.T) {
	candidates := []domain.Candidate{
		domain.NewCandidate(domain.Chunk{ID: "a", Text: strings.Repeat("x", 5000)}),
	}
	text, ids := BuildContext(candidates, 1000)
	require.Len(t, text, 1000)
	require.Equal(t, []string{"a"}, ids)
}

func TestByteCutsKeepValidUTF8(t *testing.T) {
	// "₹" is three bytes; cutting mid-rune must snap to a boundary.
	rupees := strings.Repeat("₹", 500)

	for _, n := range []int{1, 2, 100, 1000} {
		require.True(t, utf8.ValidString(truncate(rupees, n)), "truncate at %d bytes", n)
		require.True(t, utf8.ValidString(tail(rupees, n)), "tail at %d bytes", n)
	}
	require.LessOrEqual(t, len(headBytes(rupees, 100)), 100)
	require.True(t, utf8.ValidString(headBytes(rupees, 100)))

	text, _ := BuildContext([]domain.Candidate{
		domain.NewCandidate(domain.Chunk{ID: "a", Text: rupees}),
	}, 1000)
	require.True(t, utf8.ValidString(text))
	require.LessOrEqual(t, len(text), 1000)
}
