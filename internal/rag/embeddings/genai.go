package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"cymbalrag/internal/rag/interfaces"
)

// GenaiEmbedder generates embeddings with the Google GenAI API. Requests are
// batched and retried with exponential backoff before the caller sees an
// error.
type GenaiEmbedder struct {
	model      *genai.EmbeddingModel
	batchSize  int
	maxRetries int
}

// NewGenaiEmbedder creates a GenaiEmbedder for the named model.
func NewGenaiEmbedder(ctx context.Context, apiKey, modelName string, batchSize, maxRetries int) (*GenaiEmbedder, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("cannot create GenAI client: %w", err)
	}
	if batchSize <= 0 {
		batchSize = 16
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &GenaiEmbedder{
		model:      client.EmbeddingModel(modelName),
		batchSize:  batchSize,
		maxRetries: maxRetries,
	}, nil
}

// Embed generates one vector per input text, preserving order.
func (e *GenaiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *GenaiEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	batch := e.model.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	var lastErr error
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		res, err := e.model.BatchEmbedContents(ctx, batch)
		if err != nil {
			lastErr = err
			continue
		}
		if len(res.Embeddings) != len(texts) {
			return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(res.Embeddings))
		}

		vectors := make([][]float32, 0, len(res.Embeddings))
		for _, emb := range res.Embeddings {
			vectors = append(vectors, emb.Values)
		}
		return vectors, nil
	}

	return nil, fmt.Errorf("embedding batch failed after %d attempts: %w", e.maxRetries, lastErr)
}

var _ interfaces.EmbeddingModel = (*GenaiEmbedder)(nil)
