package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"policyqa/internal/port"
)

// MemoryStore is an in-memory VectorStore using cosine similarity.
// Upserts overwrite by id, which keeps re-ingestion duplicate-free.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]port.VectorItem
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]port.VectorItem)}
}

func (s *MemoryStore) Upsert(_ context.Context, items []port.VectorItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.items[item.ID] = item
	}
	return nil
}

func (s *MemoryStore) Search(_ context.Context, vector []float32, k int, filter map[string]string) ([]port.VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]port.VectorResult, 0, len(s.items))
	for _, item := range s.items {
		if !matchesFilter(item.Metadata, filter) {
			continue
		}
		results = append(results, port.VectorResult{
			ID:       item.ID,
			Score:    cosine(vector, item.Vector),
			Metadata: item.Metadata,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *MemoryStore) DeleteByDoc(_ context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, item := range s.items {
		if item.Metadata["doc_id"] == docID {
			delete(s.items, id)
		}
	}
	return nil
}

func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func matchesFilter(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
