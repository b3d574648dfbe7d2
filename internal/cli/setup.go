package cli

import (
	"context"
	"fmt"
	"os"

	"policyqa/config"
	"policyqa/internal/adapter/analyzer"
	"policyqa/internal/adapter/cache"
	"policyqa/internal/adapter/chunker"
	"policyqa/internal/adapter/embedding"
	"policyqa/internal/adapter/guardrail"
	"policyqa/internal/adapter/llm"
	"policyqa/internal/adapter/memstore"
	"policyqa/internal/adapter/reranker"
	"policyqa/internal/adapter/retriever"
	"policyqa/internal/adapter/store"
	"policyqa/internal/adapter/vectorstore"
	"policyqa/internal/port"
	"policyqa/internal/usecase"
)

// openIndexStore opens the index a previous `ingest` run persisted
// under dir, falling back to a session-scoped in-memory store when no
// index exists yet.
func openIndexStore(dir string) (port.IndexStore, bool, error) {
	dbPath := config.IndexDBPath(dir)
	if _, err := os.Stat(dbPath); err == nil {
		st, err := store.NewBoltStore(dbPath)
		if err != nil {
			return nil, false, fmt.Errorf("failed to open index store: %w", err)
		}
		return st, true, nil
	}
	return memstore.NewMemoryStore(), false, nil
}

// reuseIngested reports whether the stored index can serve the
// document as-is. Requires both sides of retrieval to be present: the
// lexical index on disk and the vectors in a persistent store. With
// the in-memory vector store the embeddings died with the ingest
// process, so the document is re-ingested to rebuild them.
func reuseIngested(st port.IndexStore, docID, vectorProvider string) bool {
	if vectorProvider == "memory" {
		return false
	}
	ok, err := st.HasDoc(docID)
	return err == nil && ok
}

func newTokenizer(cfg *config.Config) *analyzer.Tokenizer {
	return analyzer.NewTokenizer(cfg.Ingest.Stemming)
}

func newChunker(cfg *config.Config, tokenizer *analyzer.Tokenizer) port.Chunker {
	return chunker.New(tokenizer, chunker.Options{
		TableMinTokens:   cfg.Ingest.TableMinTokens,
		TableMaxTokens:   cfg.Ingest.TableMaxTokens,
		ClauseMaxTokens:  cfg.Ingest.ClauseMaxTokens,
		TextMaxTokens:    cfg.Ingest.TextMaxTokens,
		OverlapChars:     cfg.Ingest.OverlapChars,
		MinSegmentTokens: cfg.Ingest.MinChunkTokens,
	})
}

func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	case "openai":
		return embedding.NewOpenAIEmbedder(os.Getenv(cfg.Embedding.APIKeyEnv), cfg.Embedding.Model, cfg.Embedding.BaseURL)
	}
	return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
}

func newVectorStore(ctx context.Context, cfg *config.Config, dimension int) (port.VectorStore, error) {
	switch cfg.Vector.Provider {
	case "memory":
		return vectorstore.NewMemoryStore(), nil
	case "pgvector":
		return vectorstore.NewPostgresStore(ctx, cfg.Vector.PostgresDSN, dimension)
	}
	return nil, fmt.Errorf("unsupported vector store provider: %s", cfg.Vector.Provider)
}

func newLLM(cfg *config.Config) (port.LLM, error) {
	apiKey := os.Getenv(cfg.LLM.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%s is not set", cfg.LLM.APIKeyEnv)
	}
	return llm.NewOpenAIClient(apiKey, cfg.LLM.Model, cfg.LLM.BaseURL, cfg.LLM.RequestsPerSecond)
}

func newIngestor(cfg *config.Config, store port.IndexStore, vectors port.VectorStore, embedder port.Embedder) *usecase.Ingestor {
	tokenizer := newTokenizer(cfg)
	docCache := cache.NewDocumentCache(cfg.Ingest.CacheSize, cfg.Ingest.CacheTTL.Std())
	return usecase.NewIngestor(newChunker(cfg, tokenizer), store, vectors, embedder, docCache, logger)
}

func newAnswerer(cfg *config.Config, store port.IndexStore, vectors port.VectorStore, embedder port.Embedder, model port.LLM) *usecase.Answerer {
	tokenizer := newTokenizer(cfg)

	hybrid := retriever.NewHybridRetriever(
		retriever.NewBM25Retriever(store, tokenizer, cfg.Retrieve.K1, cfg.Retrieve.B),
		vectors, embedder, store, cfg.Retrieve.LexicalWeight, cfg.Retrieve.SearchK, logger)

	gate := guardrail.New(model, guardrail.Options{
		AllowVehicleTerms: cfg.Guardrail.AllowVehicleTerms,
		CallTimeout:       cfg.Guardrail.CallTimeout.Std(),
		MaxTokens:         10,
	}, logger)

	rr := reranker.New(model, store, reranker.Options{
		PassOneKeep: cfg.Rerank.PassOneKeep,
		PassTwoKeep: cfg.Rerank.PassTwoKeep,
		CallTimeout: cfg.Rerank.CallTimeout.Std(),
		MaxTokens:   cfg.Rerank.MaxTokens,
	}, logger)

	validator := usecase.NewValidator(model, usecase.ValidatorOptions{
		Threshold:   cfg.Answer.ValidatorThreshold,
		CallTimeout: cfg.Answer.ValidatorTimeout.Std(),
		MaxTokens:   cfg.Answer.MaxTokens,
	}, logger)

	return usecase.NewAnswerer(
		gate,
		retriever.NewHyDETransformer(model, cfg.Retrieve.HyDETimeout.Std(), cfg.Retrieve.HyDEMaxTokens, logger),
		retriever.NewKeywordExpander(tokenizer, cfg.Retrieve.ExpandTerms),
		hybrid, rr, validator, model, store,
		usecase.AnswerOptions{
			RetrieveK:       cfg.Retrieve.SearchK,
			ContextBudget:   cfg.Answer.ContextBudget,
			AnswerTimeout:   cfg.Answer.Timeout.Std(),
			AnswerMaxTokens: cfg.Answer.MaxTokens,
		}, logger)
}
