package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"policyqa/internal/domain"
)

func testStore(t *testing.T) *BoltStore {
	t.Helper()
	st, err := NewBoltStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestBoltStoreRoundTrip(t *testing.T) {
	st := testStore(t)

	chunk := domain.Chunk{
		ID:     "c1",
		DocID:  "doc1",
		Seq:    0,
		Kind:   domain.ChunkClause,
		Page:   2,
		Start:  10,
		End:    90,
		Text:   "A grace period of thirty days is provided.",
		Tokens: []string{"grace", "period", "thirty", "day", "provided"},
	}
	require.NoError(t, st.PutChunk(chunk))
	require.NoError(t, st.PutPosting("doc1", "grace", "c1", 1))
	require.NoError(t, st.UpdateStats("doc1", domain.Stats{TotalChunks: 1, AvgChunkLen: 5}))

	got, err := st.GetChunk("c1")
	require.NoError(t, err)
	require.Equal(t, chunk, got)

	postings, err := st.GetPostings("doc1", "grace")
	require.NoError(t, err)
	require.Len(t, postings, 1)
	require.Equal(t, "c1", postings[0].ChunkID)

	has, err := st.HasDoc("doc1")
	require.NoError(t, err)
	require.True(t, has)
}

func TestBoltStorePostingsScopedPerDoc(t *testing.T) {
	st := testStore(t)

	require.NoError(t, st.PutPosting("doc1", "premium", "c1", 2))
	require.NoError(t, st.PutPosting("doc2", "premium", "c9", 3))

	postings, err := st.GetPostings("doc1", "premium")
	require.NoError(t, err)
	require.Len(t, postings, 1)
	require.Equal(t, "c1", postings[0].ChunkID)
}

func TestBoltStoreDeleteDocClearsNamespace(t *testing.T) {
	st := testStore(t)

	for i, id := range []string{"c1", "c2"} {
		require.NoError(t, st.PutChunk(domain.Chunk{ID: id, DocID: "doc1", Seq: i, Text: "text"}))
	}
	require.NoError(t, st.PutPosting("doc1", "premium", "c1", 1))
	require.NoError(t, st.PutPosting("doc1", "claim", "c2", 1))
	require.NoError(t, st.UpdateStats("doc1", domain.Stats{TotalChunks: 2, AvgChunkLen: 1}))

	require.NoError(t, st.DeleteDoc("doc1"))

	has, err := st.HasDoc("doc1")
	require.NoError(t, err)
	require.False(t, has)

	postings, err := st.GetPostings("doc1", "premium")
	require.NoError(t, err)
	require.Empty(t, postings)

	chunks, err := st.GetChunksByDoc("doc1")
	require.NoError(t, err)
	require.Empty(t, chunks)
}

func TestBoltStoreChunksOrderedBySeq(t *testing.T) {
	st := testStore(t)

	for _, seq := range []int{2, 0, 1} {
		require.NoError(t, st.PutChunk(domain.Chunk{
			ID:    string(rune('a' + seq)),
			DocID: "doc1",
			Seq:   seq,
			Text:  "x",
		}))
	}

	chunks, err := st.GetChunksByDoc("doc1")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		require.Equal(t, i, c.Seq)
	}
}
