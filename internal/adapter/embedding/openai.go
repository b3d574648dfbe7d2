package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder generates embeddings through the OpenAI API (or any
// compatible endpoint via base URL override).
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
}

func NewOpenAIEmbedder(apiKey, model, baseURL string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding API key is empty")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	dimension := 1536
	switch model {
	case "text-embedding-3-large":
		dimension = 3072
	case "text-embedding-3-small", "text-embedding-ada-002":
		dimension = 1536
	}

	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		dimension: dimension,
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	const maxBatch = 100
	var all [][]float32

	for i := 0; i < len(texts); i += maxBatch {
		end := i + maxBatch
		if end > len(texts) {
			end = len(texts)
		}

		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: texts[i:end],
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			return nil, fmt.Errorf("create embeddings: %w", err)
		}

		batch := make([][]float32, end-i)
		for _, data := range resp.Data {
			if data.Index < len(batch) {
				batch[data.Index] = data.Embedding
			}
		}
		all = append(all, batch...)
	}

	return all, nil
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}
