package port

import "policyqa/internal/domain"

// IndexStore persists chunks and the lexical index, namespaced per
// document.
type IndexStore interface {
	HasDoc(docID string) (bool, error)

	// DeleteDoc removes a document's chunks, postings and stats so a
	// re-ingest starts clean.
	DeleteDoc(docID string) error

	PutChunk(chunk domain.Chunk) error

	GetChunk(id string) (domain.Chunk, error)

	// GetChunksByDoc returns a document's chunks ordered by sequence.
	GetChunksByDoc(docID string) ([]domain.Chunk, error)

	// GetChunkBySeq returns the chunk at a sequence position within a
	// document; used to pull neighbours for rerank context.
	GetChunkBySeq(docID string, seq int) (domain.Chunk, error)

	PutPosting(docID, term, chunkID string, tf int) error

	GetPostings(docID, term string) ([]domain.Posting, error)

	GetStats(docID string) (domain.Stats, error)

	UpdateStats(docID string, stats domain.Stats) error

	Close() error
}
