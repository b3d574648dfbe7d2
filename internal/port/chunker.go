package port

import "policyqa/internal/domain"

type Chunker interface {
	Chunk(doc domain.Document) ([]domain.Chunk, error)
}
