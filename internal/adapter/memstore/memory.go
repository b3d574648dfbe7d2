package memstore

import (
	"fmt"
	"sort"
	"sync"

	"policyqa/internal/domain"
)

// MemoryStore is an in-memory IndexStore. Lexical postings are
// namespaced per document so one document's terms never leak into
// another's scoring.
type MemoryStore struct {
	mu        sync.RWMutex
	chunks    map[string]domain.Chunk
	docChunks map[string][]string
	postings  map[string]map[string][]domain.Posting // docID -> term -> postings
	stats     map[string]domain.Stats
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chunks:    make(map[string]domain.Chunk),
		docChunks: make(map[string][]string),
		postings:  make(map[string]map[string][]domain.Posting),
		stats:     make(map[string]domain.Stats),
	}
}

func (s *MemoryStore) HasDoc(docID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.stats[docID]
	return ok, nil
}

func (s *MemoryStore) DeleteDoc(docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.docChunks[docID] {
		delete(s.chunks, id)
	}
	delete(s.docChunks, docID)
	delete(s.postings, docID)
	delete(s.stats, docID)
	return nil
}

func (s *MemoryStore) PutChunk(chunk domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.chunks[chunk.ID]; !exists {
		s.docChunks[chunk.DocID] = append(s.docChunks[chunk.DocID], chunk.ID)
	}
	s.chunks[chunk.ID] = chunk
	return nil
}

func (s *MemoryStore) GetChunk(id string) (domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunk, ok := s.chunks[id]
	if !ok {
		return domain.Chunk{}, fmt.Errorf("chunk not found: %s", id)
	}
	return chunk, nil
}

func (s *MemoryStore) GetChunksByDoc(docID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := make([]domain.Chunk, 0, len(s.docChunks[docID]))
	for _, id := range s.docChunks[docID] {
		if chunk, ok := s.chunks[id]; ok {
			chunks = append(chunks, chunk)
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Seq < chunks[j].Seq })
	return chunks, nil
}

func (s *MemoryStore) GetChunkBySeq(docID string, seq int) (domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.docChunks[docID] {
		if chunk, ok := s.chunks[id]; ok && chunk.Seq == seq {
			return chunk, nil
		}
	}
	return domain.Chunk{}, fmt.Errorf("no chunk at seq %d in doc %s", seq, docID)
}

func (s *MemoryStore) PutPosting(docID, term, chunkID string, tf int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	terms, ok := s.postings[docID]
	if !ok {
		terms = make(map[string][]domain.Posting)
		s.postings[docID] = terms
	}
	terms[term] = append(terms[term], domain.Posting{ChunkID: chunkID, TF: tf})
	return nil
}

func (s *MemoryStore) GetPostings(docID, term string) ([]domain.Posting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.postings[docID][term], nil
}

func (s *MemoryStore) GetStats(docID string) (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats[docID], nil
}

func (s *MemoryStore) UpdateStats(docID string, stats domain.Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[docID] = stats
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
