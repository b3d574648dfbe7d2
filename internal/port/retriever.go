package port

import (
	"context"

	"policyqa/internal/domain"
)

// Retriever searches one document's index and returns scored candidates.
type Retriever interface {
	Search(ctx context.Context, docID, query string, k int) ([]domain.Candidate, error)
}
