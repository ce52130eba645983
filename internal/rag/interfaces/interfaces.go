package interfaces

import (
	"context"

	"cymbalrag/internal/rag/schema"
)

// Splitter splits a list of documents into smaller chunks.
type Splitter interface {
	Split(ctx context.Context, docs []*schema.Document) ([]*schema.Document, error)
}

// VectorStore stores and queries chunk vectors.
type VectorStore interface {
	// Upsert writes chunks, replacing any existing chunk with the same ID.
	Upsert(ctx context.Context, docs []*schema.Document) error
	// DeleteFile removes every chunk that belongs to the given file.
	DeleteFile(ctx context.Context, fileID string) error
	// Query searches for the topK nearest chunks. When tags is non-empty,
	// only chunks whose file carries every listed tag are considered.
	Query(ctx context.Context, embedding []float32, topK int, tags []string) ([]*schema.Document, error)
}

// Reranker re-orders retrieved documents by relevance to the query.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []*schema.Document) ([]*schema.Document, error)
}

// EmbeddingModel turns texts into vectors.
type EmbeddingModel interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// LLM generates text from a prompt.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
