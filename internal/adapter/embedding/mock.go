package embedding

import (
	"context"
	"strings"
)

// MockEmbedder produces deterministic vectors from token hashes so
// tests get stable, vaguely semantic similarity: texts sharing words
// land near each other.
type MockEmbedder struct {
	dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	if dimension <= 0 {
		dimension = 64
	}
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, e.dimension)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			h := uint32(2166136261)
			for _, r := range word {
				h = (h ^ uint32(r)) * 16777619
			}
			vec[h%uint32(e.dimension)] += 1
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}
