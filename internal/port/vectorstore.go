package port

import "context"

// VectorItem is a vector to be stored under a chunk id.
type VectorItem struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
}

// VectorResult is one similarity-search hit.
type VectorResult struct {
	ID       string
	Score    float64 // higher is better
	Metadata map[string]string
}

// VectorStore is the opaque similarity-search collaborator. Upserting
// an existing id overwrites it, so re-ingestion never duplicates.
type VectorStore interface {
	Upsert(ctx context.Context, items []VectorItem) error

	// Search returns the k nearest vectors, restricted to items whose
	// metadata matches every filter entry.
	Search(ctx context.Context, vector []float32, k int, filter map[string]string) ([]VectorResult, error)

	// DeleteByDoc removes all vectors stored for a document.
	DeleteByDoc(ctx context.Context, docID string) error
}
