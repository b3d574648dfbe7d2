package retriever

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"policyqa/internal/adapter/analyzer"
	"policyqa/internal/adapter/memstore"
	"policyqa/internal/domain"
	"policyqa/internal/port"
)

func seedIndex(t *testing.T, store port.IndexStore, docID string, texts []string) []domain.Chunk {
	t.Helper()
	tokenizer := analyzer.NewTokenizer(true)

	chunks := make([]domain.Chunk, 0, len(texts))
	totalLen := 0
	for i, text := range texts {
		chunk := domain.Chunk{
			ID:     docID + "-" + string(rune('a'+i)),
			DocID:  docID,
			Seq:    i,
			Kind:   domain.ChunkText,
			Text:   text,
			Tokens: tokenizer.Tokenize(text),
		}
		require.NoError(t, store.PutChunk(chunk))

		tf := make(map[string]int)
		for _, token := range chunk.Tokens {
			tf[token]++
		}
		for term, count := range tf {
			require.NoError(t, store.PutPosting(docID, term, chunk.ID, count))
		}
		totalLen += len(chunk.Tokens)
		chunks = append(chunks, chunk)
	}
	require.NoError(t, store.UpdateStats(docID, domain.Stats{
		TotalChunks: len(texts),
		AvgChunkLen: float64(totalLen) / float64(len(texts)),
	}))
	return chunks
}

func TestBM25RanksRelevantChunkFirst(t *testing.T) {
	store := memstore.NewMemoryStore()
	seedIndex(t, store, "doc1", []string{
		"A grace period of thirty days is provided for premium payment after the due date.",
		"Hospitalization expenses for inpatient treatment are covered up to the sum insured.",
		"The policyholder must notify the insurer of any change of address.",
	})

	bm25 := NewBM25Retriever(store, analyzer.NewTokenizer(true), 1.2, 0.75)
	results, err := bm25.Search(context.Background(), "doc1", "What is the grace period for premium payment?", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "doc1-a", results[0].Chunk.ID)
	require.Greater(t, results[0].Score(domain.ScoreLexical), 0.0)
}

func TestBM25ScopedToDocument(t *testing.T) {
	store := memstore.NewMemoryStore()
	seedIndex(t, store, "doc1", []string{"Grace period of thirty days for premium payment."})
	seedIndex(t, store, "doc2", []string{"Grace period of fifteen days for premium payment."})

	bm25 := NewBM25Retriever(store, analyzer.NewTokenizer(true), 1.2, 0.75)
	results, err := bm25.Search(context.Background(), "doc1", "grace period", 10)
	require.NoError(t, err)
	for _, c := range results {
		require.Equal(t, "doc1", c.Chunk.DocID)
	}
}

func TestBM25EmptyQueryNoResults(t *testing.T) {
	store := memstore.NewMemoryStore()
	seedIndex(t, store, "doc1", []string{"Some policy text about coverage."})

	bm25 := NewBM25Retriever(store, analyzer.NewTokenizer(true), 1.2, 0.75)
	results, err := bm25.Search(context.Background(), "doc1", "the of and", 10)
	require.NoError(t, err)
	require.Empty(t, results)
}
