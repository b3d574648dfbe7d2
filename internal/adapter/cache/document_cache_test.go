package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDocumentCacheHitAndMiss(t *testing.T) {
	c := NewDocumentCache(10, time.Hour)

	require.False(t, c.Contains("doc1"))
	c.Put("doc1")
	require.True(t, c.Contains("doc1"))
	require.False(t, c.Contains("doc2"))
}

func TestDocumentCacheEvictsOldestFirst(t *testing.T) {
	c := NewDocumentCache(2, time.Hour)

	c.Put("doc1")
	c.Put("doc2")
	evicted, ok := c.Put("doc3")
	require.True(t, ok)
	require.Equal(t, "doc1", evicted)

	require.False(t, c.Contains("doc1"))
	require.True(t, c.Contains("doc2"))
	require.True(t, c.Contains("doc3"))
	require.Equal(t, 2, c.Size())
}

func TestDocumentCacheTTLExpiry(t *testing.T) {
	c := NewDocumentCache(10, time.Minute)
	current := time.Now()
	c.now = func() time.Time { return current }

	c.Put("doc1")
	require.True(t, c.Contains("doc1"))

	current = current.Add(2 * time.Minute)
	require.False(t, c.Contains("doc1"), "entry past TTL should expire")
	require.Equal(t, 0, c.Size())
}

func TestDocumentCacheReinsertRefreshes(t *testing.T) {
	c := NewDocumentCache(2, time.Hour)

	c.Put("doc1")
	c.Put("doc2")
	_, ok := c.Put("doc1") // refresh, not insert
	require.False(t, ok, "refreshing an existing entry must not evict")
	require.Equal(t, 2, c.Size())
}

func TestDocumentCacheRemove(t *testing.T) {
	c := NewDocumentCache(10, time.Hour)
	c.Put("doc1")
	c.Remove("doc1")
	require.False(t, c.Contains("doc1"))
	require.Equal(t, 0, c.Size())
}
