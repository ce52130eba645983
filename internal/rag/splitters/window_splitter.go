package splitters

import (
	"context"
	"fmt"
	"strings"

	"cymbalrag/internal/rag/interfaces"
	"cymbalrag/internal/rag/schema"
)

// WindowSplitter splits documents into fixed-size character windows with a
// configurable overlap between consecutive chunks. Splitting operates on
// runes so multi-byte characters are never cut in half.
type WindowSplitter struct {
	ChunkSize    int
	ChunkOverlap int
	// MaxChunks caps the number of chunks produced for a single file. Zero
	// means unlimited. Oversized files are truncated, never rejected.
	MaxChunks int
}

// NewWindowSplitter creates a WindowSplitter and validates its parameters.
func NewWindowSplitter(chunkSize, chunkOverlap, maxChunks int) (*WindowSplitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, chunk size), got %d", chunkOverlap)
	}
	return &WindowSplitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		MaxChunks:    maxChunks,
	}, nil
}

// Split implements the Splitter interface.
func (s *WindowSplitter) Split(ctx context.Context, docs []*schema.Document) ([]*schema.Document, error) {
	chunks, _, err := s.SplitDocuments(ctx, docs)
	return chunks, err
}

// SplitDocuments splits each document into overlapping windows and numbers
// the resulting chunks sequentially across the whole input. The boolean
// result reports whether the MaxChunks cap cut the output short.
func (s *WindowSplitter) SplitDocuments(ctx context.Context, docs []*schema.Document) ([]*schema.Document, bool, error) {
	var chunks []*schema.Document
	step := s.ChunkSize - s.ChunkOverlap
	index := 0

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		runes := []rune(doc.Text)
		for start := 0; start < len(runes); start += step {
			end := start + s.ChunkSize
			if end > len(runes) {
				end = len(runes)
			}

			text := string(runes[start:end])
			if strings.TrimSpace(text) == "" {
				if end == len(runes) {
					break
				}
				continue
			}

			if s.MaxChunks > 0 && len(chunks) >= s.MaxChunks {
				return chunks, true, nil
			}

			chunk := doc.Copy()
			chunk.Text = text
			chunk.Metadata[schema.MetadataKeyChunkIndex] = index
			chunks = append(chunks, chunk)
			index++

			if end == len(runes) {
				break
			}
		}
	}

	return chunks, false, nil
}

var _ interfaces.Splitter = (*WindowSplitter)(nil)
