package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"policyqa/internal/adapter/analyzer"
	"policyqa/internal/adapter/embedding"
	"policyqa/internal/adapter/memstore"
	"policyqa/internal/adapter/vectorstore"
	"policyqa/internal/domain"
	"policyqa/internal/port"
)

func hybridFixture(t *testing.T) (*HybridRetriever, []domain.Chunk) {
	t.Helper()
	store := memstore.NewMemoryStore()
	chunks := seedIndex(t, store, "doc1", []string{
		"A grace period of thirty days is provided for premium payment after the due date.",
		"Hospitalization expenses for inpatient treatment are covered up to the sum insured.",
		"Cosmetic surgery and dental procedures are excluded unless caused by an accident.",
		"The premium payment schedule is annexed to the policy certificate.",
	})

	embedder := embedding.NewMockEmbedder(64)
	vecStore := vectorstore.NewMemoryStore()
	ctx := context.Background()
	for _, chunk := range chunks {
		vectors, err := embedder.Embed(ctx, []string{chunk.Text})
		require.NoError(t, err)
		require.NoError(t, vecStore.Upsert(ctx, []port.VectorItem{{
			ID:       chunk.ID,
			Vector:   vectors[0],
			Metadata: map[string]string{"doc_id": "doc1"},
		}}))
	}

	bm25 := NewBM25Retriever(store, analyzer.NewTokenizer(true), 1.2, 0.75)
	return NewHybridRetriever(bm25, vecStore, embedder, store, 0.6, 50, nil), chunks
}

func TestHybridFusedOrderingStrictlyDescending(t *testing.T) {
	hybrid, _ := hybridFixture(t)

	results, err := hybrid.Search(context.Background(), "doc1", "grace period premium payment", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for i := 1; i < len(results); i++ {
		prev := results[i-1].Score(domain.ScoreFused)
		cur := results[i].Score(domain.ScoreFused)
		require.GreaterOrEqual(t, prev, cur, "fused ranking not descending at %d", i)
		if prev == cur {
			require.Less(t, results[i-1].Chunk.Seq, results[i].Chunk.Seq, "tie not broken by document order")
		}
	}
}

func TestHybridNoDuplicateChunkIDs(t *testing.T) {
	hybrid, _ := hybridFixture(t)

	results, err := hybrid.Search(context.Background(), "doc1", "premium payment coverage", 50)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, c := range results {
		require.False(t, seen[c.Chunk.ID], "duplicate chunk id %s in candidate set", c.Chunk.ID)
		seen[c.Chunk.ID] = true
	}
}

func TestHybridCombinesBothSignals(t *testing.T) {
	hybrid, _ := hybridFixture(t)

	results, err := hybrid.Search(context.Background(), "doc1", "grace period premium payment", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	top := results[0]
	require.Contains(t, top.Scores, domain.ScoreLexical)
	require.Contains(t, top.Scores, domain.ScoreVector)
	require.Contains(t, top.Scores, domain.ScoreFused)
}

type failingRetriever struct{}

func (failingRetriever) Search(context.Context, string, string, int) ([]domain.Candidate, error) {
	return nil, errors.New("lexical index unavailable")
}

func TestHybridSurvivesLexicalFailure(t *testing.T) {
	hybrid, _ := hybridFixture(t)
	hybrid.lexical = failingRetriever{}

	results, err := hybrid.Search(context.Background(), "doc1", "grace period premium", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results, "vector signal alone should still return candidates")
}

func TestHybridSurvivesVectorFailure(t *testing.T) {
	hybrid, _ := hybridFixture(t)
	hybrid.vectorStore = nil
	hybrid.embedder = nil

	results, err := hybrid.Search(context.Background(), "doc1", "grace period premium", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results, "lexical signal alone should still return candidates")
}

func TestTopKDeterministicTieBreak(t *testing.T) {
	mk := func(id string, seq int, fused float64) domain.Candidate {
		return domain.NewCandidate(domain.Chunk{ID: id, Seq: seq}).WithScore(domain.ScoreFused, fused)
	}
	candidates := []domain.Candidate{
		mk("c", 2, 0.5), mk("a", 0, 0.5), mk("b", 1, 0.9),
	}

	for i := 0; i < 5; i++ {
		got := TopK(candidates, 3)
		require.Equal(t, "b", got[0].Chunk.ID)
		require.Equal(t, "a", got[1].Chunk.ID, "equal scores must prefer earlier chunk")
		require.Equal(t, "c", got[2].Chunk.ID)
	}
}

func TestMergeMaxKeepsBestScorePerChunk(t *testing.T) {
	mk := func(id string, fused float64) domain.Candidate {
		return domain.NewCandidate(domain.Chunk{ID: id}).WithScore(domain.ScoreFused, fused)
	}

	merged := MergeMax(
		[]domain.Candidate{mk("a", 0.3), mk("b", 0.8)},
		[]domain.Candidate{mk("a", 0.7), mk("c", 0.1)},
	)

	byID := make(map[string]float64)
	for _, c := range merged {
		_, dup := byID[c.Chunk.ID]
		require.False(t, dup, "duplicate id after merge")
		byID[c.Chunk.ID] = c.Score(domain.ScoreFused)
	}
	require.Len(t, byID, 3)
	require.Equal(t, 0.7, byID["a"])
	require.Equal(t, 0.8, byID["b"])
	require.Equal(t, 0.1, byID["c"])
}

func TestKeywordExpanderSignificantTermsOnly(t *testing.T) {
	expander := NewKeywordExpander(analyzer.NewTokenizer(false), 4)
	terms := expander.Expand("What is the waiting period for cataract surgery under this policy?")

	require.NotEmpty(t, terms)
	require.LessOrEqual(t, len(terms), 4)
	for _, term := range terms {
		require.Greater(t, len(term), 3, "term %q too short", term)
		require.NotContains(t, []string{"what", "the", "for"}, term)
	}
}

func TestSeedIndexHelperSane(t *testing.T) {
	store := memstore.NewMemoryStore()
	chunks := seedIndex(t, store, "doc1", []string{"alpha beta gamma", "delta epsilon zeta"})
	require.Len(t, chunks, 2)

	stats, err := store.GetStats("doc1")
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalChunks)
}
