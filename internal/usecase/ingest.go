package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"policyqa/internal/adapter/cache"
	"policyqa/internal/domain"
	"policyqa/internal/port"
)

// Ingestor chunks, indexes and embeds documents. Ingestion for one
// document id runs at most once at a time: concurrent requests for
// the same document coordinate through a single-flight group and all
// observe the first caller's result.
type Ingestor struct {
	chunker  port.Chunker
	store    port.IndexStore
	vectors  port.VectorStore
	embedder port.Embedder
	cache    *cache.DocumentCache
	group    singleflight.Group
	logger   *slog.Logger
}

func NewIngestor(
	chunker port.Chunker,
	store port.IndexStore,
	vectors port.VectorStore,
	embedder port.Embedder,
	docCache *cache.DocumentCache,
	logger *slog.Logger,
) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		chunker:  chunker,
		store:    store,
		vectors:  vectors,
		embedder: embedder,
		cache:    docCache,
		logger:   logger,
	}
}

// Ingest makes the document queryable. Idempotent: a cached, already
// indexed document is a no-op; otherwise any stale index data for the
// id is dropped first so a re-ingest starts clean.
func (in *Ingestor) Ingest(ctx context.Context, doc domain.Document) error {
	if in.cache.Contains(doc.ID) {
		if ok, err := in.store.HasDoc(doc.ID); err == nil && ok {
			return nil
		}
	}

	_, err, _ := in.group.Do(doc.ID, func() (any, error) {
		return nil, in.ingest(ctx, doc)
	})
	return err
}

func (in *Ingestor) ingest(ctx context.Context, doc domain.Document) error {
	if err := in.store.DeleteDoc(doc.ID); err != nil {
		return fmt.Errorf("%w: clearing stale index for %s: %v", domain.ErrIngestion, doc.ID, err)
	}
	if err := in.vectors.DeleteByDoc(ctx, doc.ID); err != nil {
		return fmt.Errorf("%w: clearing stale vectors for %s: %v", domain.ErrIngestion, doc.ID, err)
	}

	chunks, err := in.chunker.Chunk(doc)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("%w: document %s produced no chunks", domain.ErrIngestion, doc.ID)
	}

	totalTokens := 0
	for _, chunk := range chunks {
		if err := in.store.PutChunk(chunk); err != nil {
			return fmt.Errorf("%w: storing chunk %s: %v", domain.ErrIngestion, chunk.ID, err)
		}
		for term, tf := range termFrequencies(chunk.Tokens) {
			if err := in.store.PutPosting(doc.ID, term, chunk.ID, tf); err != nil {
				return fmt.Errorf("%w: indexing term %q: %v", domain.ErrIngestion, term, err)
			}
		}
		totalTokens += len(chunk.Tokens)
	}

	stats := domain.Stats{
		TotalChunks: len(chunks),
		AvgChunkLen: float64(totalTokens) / float64(len(chunks)),
	}
	if err := in.store.UpdateStats(doc.ID, stats); err != nil {
		return fmt.Errorf("%w: storing stats for %s: %v", domain.ErrIngestion, doc.ID, err)
	}

	if err := in.embed(ctx, doc.ID, chunks); err != nil {
		return err
	}

	if evicted, ok := in.cache.Put(doc.ID); ok {
		in.evict(ctx, evicted)
	}

	in.logger.Info("document ingested",
		"doc_id", doc.ID, "chunks", len(chunks), "avg_chunk_tokens", int(stats.AvgChunkLen))
	return nil
}

func (in *Ingestor) embed(ctx context.Context, docID string, chunks []domain.Chunk) error {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := in.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: embedding %s: %v", domain.ErrIngestion, docID, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: embedding %s: got %d vectors for %d chunks",
			domain.ErrIngestion, docID, len(vectors), len(chunks))
	}

	items := make([]port.VectorItem, len(chunks))
	for i, chunk := range chunks {
		items[i] = port.VectorItem{
			ID:       chunk.ID,
			Vector:   vectors[i],
			Metadata: map[string]string{"doc_id": docID},
		}
	}
	if err := in.vectors.Upsert(ctx, items); err != nil {
		return fmt.Errorf("%w: storing vectors for %s: %v", domain.ErrIngestion, docID, err)
	}
	return nil
}

// evict drops a cache-evicted document's index data. Best effort: the
// cache entry is already gone and a later request will re-ingest.
func (in *Ingestor) evict(ctx context.Context, docID string) {
	if err := in.store.DeleteDoc(docID); err != nil {
		in.logger.Warn("evicting document index failed", "doc_id", docID, "error", err)
	}
	if err := in.vectors.DeleteByDoc(ctx, docID); err != nil {
		in.logger.Warn("evicting document vectors failed", "doc_id", docID, "error", err)
	}
	in.logger.Info("document evicted", "doc_id", docID)
}

func termFrequencies(tokens []string) map[string]int {
	freqs := make(map[string]int, len(tokens))
	for _, token := range tokens {
		freqs[token]++
	}
	return freqs
}
