package retriever

import (
	"context"
	"math"
	"sort"

	"policyqa/internal/adapter/analyzer"
	"policyqa/internal/domain"
	"policyqa/internal/port"
)

// BM25Retriever scores chunks of one document with BM25 over the
// stored postings.
type BM25Retriever struct {
	store     port.IndexStore
	tokenizer *analyzer.Tokenizer
	k1        float64
	b         float64
}

func NewBM25Retriever(store port.IndexStore, tokenizer *analyzer.Tokenizer, k1, b float64) *BM25Retriever {
	if k1 <= 0 {
		k1 = 1.2
	}
	if b <= 0 {
		b = 0.75
	}
	return &BM25Retriever{store: store, tokenizer: tokenizer, k1: k1, b: b}
}

func (r *BM25Retriever) Search(ctx context.Context, docID, query string, k int) ([]domain.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryTokens := r.tokenizer.Tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	stats, err := r.store.GetStats(docID)
	if err != nil {
		return nil, err
	}
	if stats.TotalChunks == 0 {
		return nil, nil
	}

	chunkScores := make(map[string]float64)
	chunkLengths := make(map[string]int)

	for _, term := range queryTokens {
		postings, err := r.store.GetPostings(docID, term)
		if err != nil {
			continue
		}

		n := float64(len(postings))
		N := float64(stats.TotalChunks)
		idf := math.Log((N-n+0.5)/(n+0.5) + 1)

		for _, posting := range postings {
			if _, exists := chunkLengths[posting.ChunkID]; !exists {
				chunk, err := r.store.GetChunk(posting.ChunkID)
				if err != nil {
					continue
				}
				chunkLengths[posting.ChunkID] = len(chunk.Tokens)
			}

			dl := float64(chunkLengths[posting.ChunkID])
			tf := float64(posting.TF)
			score := idf * (tf * (r.k1 + 1)) / (tf + r.k1*(1-r.b+r.b*dl/stats.AvgChunkLen))
			chunkScores[posting.ChunkID] += score
		}
	}

	results := make([]domain.Candidate, 0, len(chunkScores))
	for chunkID, score := range chunkScores {
		chunk, err := r.store.GetChunk(chunkID)
		if err != nil {
			continue
		}
		results = append(results, domain.NewCandidate(chunk).WithScore(domain.ScoreLexical, score))
	}

	sort.Slice(results, func(i, j int) bool {
		si, sj := results[i].Score(domain.ScoreLexical), results[j].Score(domain.ScoreLexical)
		if si != sj {
			return si > sj
		}
		return results[i].Chunk.Seq < results[j].Chunk.Seq
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

var _ port.Retriever = (*BM25Retriever)(nil)
