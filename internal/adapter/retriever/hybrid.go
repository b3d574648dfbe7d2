package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"policyqa/internal/domain"
	"policyqa/internal/port"
)

// HybridRetriever fuses BM25 lexical search with vector similarity
// search. Each list is min-max normalized and combined with a weighted
// sum; chunks present in only one list keep their partial score. When
// one signal fails the other carries the query alone.
type HybridRetriever struct {
	lexical       port.Retriever
	vectorStore   port.VectorStore
	embedder      port.Embedder
	store         port.IndexStore
	lexicalWeight float64
	vectorWeight  float64
	searchK       int
	logger        *slog.Logger
}

func NewHybridRetriever(
	lexical port.Retriever,
	vectorStore port.VectorStore,
	embedder port.Embedder,
	store port.IndexStore,
	lexicalWeight float64,
	searchK int,
	logger *slog.Logger,
) *HybridRetriever {
	if lexicalWeight <= 0 || lexicalWeight >= 1 {
		lexicalWeight = 0.6
	}
	if searchK <= 0 {
		searchK = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridRetriever{
		lexical:       lexical,
		vectorStore:   vectorStore,
		embedder:      embedder,
		store:         store,
		lexicalWeight: lexicalWeight,
		vectorWeight:  1 - lexicalWeight,
		searchK:       searchK,
		logger:        logger,
	}
}

// Search returns the top k fused candidates for one query, descending
// by fused score with document order as the tie-break.
func (r *HybridRetriever) Search(ctx context.Context, docID, query string, k int) ([]domain.Candidate, error) {
	lexResults, lexErr := r.lexical.Search(ctx, docID, query, r.searchK)
	vecResults, vecErr := r.vectorSearch(ctx, docID, query, r.searchK)

	if lexErr != nil && vecErr != nil {
		return nil, fmt.Errorf("both retrieval signals failed: lexical: %v, vector: %w", lexErr, vecErr)
	}
	if lexErr != nil {
		r.logger.Warn("lexical search failed, continuing with vector signal",
			"doc", docID, "error", lexErr)
		lexResults = nil
	}
	if vecErr != nil {
		r.logger.Warn("vector search failed, continuing with lexical signal",
			"doc", docID, "error", vecErr)
		vecResults = nil
	}

	fused := r.fuse(lexResults, vecResults)
	return TopK(fused, k), nil
}

func (r *HybridRetriever) vectorSearch(ctx context.Context, docID, query string, k int) ([]domain.Candidate, error) {
	if r.vectorStore == nil || r.embedder == nil {
		return nil, nil
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, nil
	}

	results, err := r.vectorStore.Search(ctx, embeddings[0], k, map[string]string{"doc_id": docID})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	candidates := make([]domain.Candidate, 0, len(results))
	for _, result := range results {
		chunk, err := r.store.GetChunk(result.ID)
		if err != nil {
			continue
		}
		candidates = append(candidates, domain.NewCandidate(chunk).WithScore(domain.ScoreVector, result.Score))
	}
	return candidates, nil
}

// fuse combines the two ranked lists keyed by chunk id. Duplicate ids
// collapse into one candidate carrying both partial scores.
func (r *HybridRetriever) fuse(lexical, vector []domain.Candidate) []domain.Candidate {
	lexNorm := normalize(lexical, domain.ScoreLexical)
	vecNorm := normalize(vector, domain.ScoreVector)

	merged := make(map[string]domain.Candidate)
	for _, c := range lexical {
		fusedScore := r.lexicalWeight * lexNorm[c.Chunk.ID]
		merged[c.Chunk.ID] = c.WithScore(domain.ScoreFused, fusedScore)
	}
	for _, c := range vector {
		if existing, ok := merged[c.Chunk.ID]; ok {
			combined := existing.WithScore(domain.ScoreVector, c.Score(domain.ScoreVector))
			combined = combined.WithScore(domain.ScoreFused,
				existing.Score(domain.ScoreFused)+r.vectorWeight*vecNorm[c.Chunk.ID])
			merged[c.Chunk.ID] = combined
			continue
		}
		merged[c.Chunk.ID] = c.WithScore(domain.ScoreFused, r.vectorWeight*vecNorm[c.Chunk.ID])
	}

	fused := make([]domain.Candidate, 0, len(merged))
	for _, c := range merged {
		fused = append(fused, c)
	}
	return fused
}

// normalize min-max scales one score across a list into [0,1]. A list
// where every score is equal maps to all ones.
func normalize(candidates []domain.Candidate, score string) map[string]float64 {
	norm := make(map[string]float64, len(candidates))
	if len(candidates) == 0 {
		return norm
	}

	lo, hi := candidates[0].Score(score), candidates[0].Score(score)
	for _, c := range candidates[1:] {
		s := c.Score(score)
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}

	span := hi - lo
	for _, c := range candidates {
		if span < 1e-12 {
			norm[c.Chunk.ID] = 1
		} else {
			norm[c.Chunk.ID] = (c.Score(score) - lo) / span
		}
	}
	return norm
}

// TopK orders candidates descending by fused score, breaking ties by
// original document order, and truncates to k.
func TopK(candidates []domain.Candidate, k int) []domain.Candidate {
	sorted := make([]domain.Candidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		si, sj := sorted[i].Score(domain.ScoreFused), sorted[j].Score(domain.ScoreFused)
		if si != sj {
			return si > sj
		}
		return sorted[i].Chunk.Seq < sorted[j].Chunk.Seq
	})
	if len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}

// MergeMax fuses candidate sets from parallel retrieval passes. A
// chunk appearing in more than one set keeps its maximum fused score;
// ids stay unique.
func MergeMax(sets ...[]domain.Candidate) []domain.Candidate {
	merged := make(map[string]domain.Candidate)
	for _, set := range sets {
		for _, c := range set {
			existing, ok := merged[c.Chunk.ID]
			if !ok || c.Score(domain.ScoreFused) > existing.Score(domain.ScoreFused) {
				merged[c.Chunk.ID] = c
			}
		}
	}
	out := make([]domain.Candidate, 0, len(merged))
	for _, c := range merged {
		out = append(out, c)
	}
	return out
}
