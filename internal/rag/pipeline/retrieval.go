package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cymbalrag/internal/models"
	"cymbalrag/internal/rag/interfaces"
	"cymbalrag/internal/rag/schema"
	"cymbalrag/pkg/logger"
)

// FileInfoSource resolves registry metadata for the files behind matched
// chunks.
type FileInfoSource interface {
	Get(ctx context.Context, filename string) (*models.FileRecord, error)
}

// SearchParams tune one retrieval run. Zero values fall back to the
// pipeline's configured defaults.
type SearchParams struct {
	Query      string
	Tags       []string
	MaxResults int
	Threshold  float64
}

// RetrievalPipeline answers queries over the indexed corpus: embed the
// query, over-fetch candidates, rerank, threshold, group citations per file,
// and generate a grounded answer.
type RetrievalPipeline struct {
	embedder    interfaces.EmbeddingModel
	vectorStore interfaces.VectorStore
	reranker    interfaces.Reranker
	llm         interfaces.LLM
	files       FileInfoSource

	overfetchFactor int
	maxResults      int
	threshold       float64
	maxContextChars int
	log             *logger.Logger
}

// NewRetrievalPipeline creates a RetrievalPipeline. The reranker and llm are
// optional; without a reranker results keep vector order, without an llm the
// response carries citations only.
func NewRetrievalPipeline(
	embedder interfaces.EmbeddingModel,
	vectorStore interfaces.VectorStore,
	reranker interfaces.Reranker,
	llm interfaces.LLM,
	files FileInfoSource,
	overfetchFactor, maxResults int,
	threshold float64,
	maxContextChars int,
	log *logger.Logger,
) *RetrievalPipeline {
	if overfetchFactor <= 0 {
		overfetchFactor = 3
	}
	if maxResults <= 0 {
		maxResults = 10
	}
	if maxContextChars <= 0 {
		maxContextChars = 12000
	}
	return &RetrievalPipeline{
		embedder:        embedder,
		vectorStore:     vectorStore,
		reranker:        reranker,
		llm:             llm,
		files:           files,
		overfetchFactor: overfetchFactor,
		maxResults:      maxResults,
		threshold:       threshold,
		maxContextChars: maxContextChars,
		log:             log,
	}
}

// Run executes one search. The threshold applies after reranking, so the
// reranker sees the full over-fetched candidate set.
func (p *RetrievalPipeline) Run(ctx context.Context, params SearchParams) (*models.SearchResponse, error) {
	started := time.Now()
	topK := params.MaxResults
	if topK <= 0 {
		topK = p.maxResults
	}
	threshold := params.Threshold
	if threshold == 0 {
		threshold = p.threshold
	}

	resp := &models.SearchResponse{Query: params.Query}

	queryEmbeddings, err := p.embedder.Embed(ctx, []string{params.Query})
	if err != nil || len(queryEmbeddings) == 0 {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	candidates, err := p.vectorStore.Query(ctx, queryEmbeddings[0], topK*p.overfetchFactor, params.Tags)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		resp.Files = []models.SearchFileInfo{}
		resp.ProcessingTimeMS = float64(time.Since(started).Microseconds()) / 1000
		return resp, nil
	}

	if p.reranker != nil {
		reranked, err := p.reranker.Rerank(ctx, params.Query, candidates)
		if err != nil {
			p.log.WithError(err).Warn("reranker unavailable, keeping vector order")
		} else {
			candidates = reranked
			resp.Reranked = true
		}
	}

	// Scores are similarities, higher is closer. The threshold keeps a chunk
	// only when its post-rerank score clears it.
	kept := candidates[:0]
	for _, doc := range candidates {
		score, _ := doc.Metadata[schema.MetadataKeyScore].(float64)
		if score >= threshold {
			kept = append(kept, doc)
		}
	}
	if len(kept) > topK {
		kept = kept[:topK]
	}

	resp.Files = p.groupByFile(ctx, kept)
	resp.TotalFiles = len(resp.Files)
	resp.TotalChunks = len(kept)

	if p.llm != nil && len(kept) > 0 {
		answer, err := p.llm.Generate(ctx, p.buildPrompt(params.Query, kept))
		if err != nil {
			p.log.WithError(err).Error("answer generation failed, returning citations only")
			resp.GenerationFailed = true
		} else {
			resp.Answer = answer
		}
	}

	resp.ProcessingTimeMS = float64(time.Since(started).Microseconds()) / 1000
	return resp, nil
}

// groupByFile folds matched chunks into one entry per source file, enriched
// with registry metadata when available.
func (p *RetrievalPipeline) groupByFile(ctx context.Context, docs []*schema.Document) []models.SearchFileInfo {
	var order []string
	byFile := make(map[string]*models.SearchFileInfo)

	for _, doc := range docs {
		filename, _ := doc.Metadata[schema.MetadataKeyFileName].(string)
		fileID, _ := doc.Metadata[schema.MetadataKeyFileID].(string)
		score, _ := doc.Metadata[schema.MetadataKeyScore].(float64)
		chunkIndex, _ := doc.Metadata[schema.MetadataKeyChunkIndex].(int)
		title, _ := doc.Metadata[schema.MetadataKeyTitle].(string)

		info, ok := byFile[filename]
		if !ok {
			info = &models.SearchFileInfo{Name: filename, Title: title}
			if tags, isList := doc.Metadata[schema.MetadataKeyTags].([]string); isList {
				info.Tags = tags
			}
			if p.files != nil {
				if rec, err := p.files.Get(ctx, filename); err == nil {
					info.FileType = rec.ContentType
					info.LastUpdated = rec.LastModified
					info.Size = rec.Size
					info.Tags = rec.Tags
					if rec.Title != "" {
						info.Title = rec.Title
					}
				}
			}
			byFile[filename] = info
			order = append(order, filename)
		}

		info.MatchedChunks = append(info.MatchedChunks, models.MatchedChunk{
			Content:    doc.Text,
			FileID:     fileID,
			Filename:   filename,
			ChunkIndex: chunkIndex,
			Distance:   score,
			Title:      title,
		})
	}

	out := make([]models.SearchFileInfo, 0, len(order))
	for _, filename := range order {
		out = append(out, *byFile[filename])
	}
	return out
}

// buildPrompt assembles the grounded-answer prompt within the context
// budget. Chunks enter in rank order; once the budget runs out the rest are
// dropped, so the lowest-ranked context goes first.
func (p *RetrievalPipeline) buildPrompt(query string, docs []*schema.Document) string {
	var sb strings.Builder
	sb.WriteString("Based on the following context from the knowledge base, answer the question.\n")
	sb.WriteString("Cite the source file for any claim you make. If the context does not contain the answer, say so.\n\nContext:\n")

	used := 0
	for i, doc := range docs {
		filename, _ := doc.Metadata[schema.MetadataKeyFileName].(string)
		section := fmt.Sprintf("---\nSource %d (%s):\n%s\n", i+1, filename, doc.Text)
		if used+len(section) > p.maxContextChars {
			remaining := p.maxContextChars - used
			if remaining > 100 {
				sb.WriteString(section[:remaining])
				sb.WriteString("\n")
			}
			break
		}
		sb.WriteString(section)
		used += len(section)
	}

	sb.WriteString("---\n\n")
	fmt.Fprintf(&sb, "Question: %s", query)
	return sb.String()
}
