package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GeminiEmbeddingProvider is the Gemini-backed alternative to the OpenAI
// provider, selectable via the embedding.provider config key.
type GeminiEmbeddingProvider struct {
	client    *genai.Client
	modelName string
}

func NewGeminiEmbeddingProvider(ctx context.Context, apiKey, modelName string) (*GeminiEmbeddingProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %v", err)
	}
	return &GeminiEmbeddingProvider{
		client:    client,
		modelName: modelName,
	}, nil
}

func (p *GeminiEmbeddingProvider) Close() error {
	return p.client.Close()
}

func (p *GeminiEmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	em := p.client.EmbeddingModel(p.modelName)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		vectors = append(vectors, e.Values)
	}
	return vectors, nil
}

func (p *GeminiEmbeddingProvider) IsRateLimitError(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	return messageLooksRateLimited(err)
}
