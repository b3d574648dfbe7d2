package cli

import (
	"testing"

	"github.com/stretchr/testify/require"

	"policyqa/config"
	"policyqa/internal/adapter/store"
	"policyqa/internal/domain"
)

func TestOpenIndexStoreFallsBackToMemory(t *testing.T) {
	st, persisted, err := openIndexStore(t.TempDir())
	require.NoError(t, err)
	require.False(t, persisted, "a directory without an index must get a session store")
	require.NoError(t, st.Close())
}

func TestOpenIndexStoreReadsPersistedIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, config.EnsureDataDir(dir))

	bolt, err := store.NewBoltStore(config.IndexDBPath(dir))
	require.NoError(t, err)
	require.NoError(t, bolt.PutChunk(domain.Chunk{ID: "c1", DocID: "doc1", Text: "grace period clause"}))
	require.NoError(t, bolt.UpdateStats("doc1", domain.Stats{TotalChunks: 1, AvgChunkLen: 3}))
	require.NoError(t, bolt.Close())

	st, persisted, err := openIndexStore(dir)
	require.NoError(t, err)
	defer st.Close()

	require.True(t, persisted)
	ok, err := st.HasDoc("doc1")
	require.NoError(t, err)
	require.True(t, ok, "ask must see documents a previous ingest run wrote")
}

func TestReuseIngested(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, config.EnsureDataDir(dir))

	bolt, err := store.NewBoltStore(config.IndexDBPath(dir))
	require.NoError(t, err)
	defer bolt.Close()
	require.NoError(t, bolt.UpdateStats("doc1", domain.Stats{TotalChunks: 1, AvgChunkLen: 3}))

	require.True(t, reuseIngested(bolt, "doc1", "pgvector"))
	require.False(t, reuseIngested(bolt, "doc1", "memory"),
		"in-memory vectors die with the ingest process, so the document must be rebuilt")
	require.False(t, reuseIngested(bolt, "doc2", "pgvector"))
}
