package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"cymbalrag/internal/errs"
	"cymbalrag/internal/models"
	"cymbalrag/internal/rag/interfaces"
	"cymbalrag/internal/rag/schema"
	"cymbalrag/internal/rag/splitters"
	"cymbalrag/pkg/logger"
)

// maxConcurrentBatches bounds how many embed-and-upsert batches run at once.
const maxConcurrentBatches = 4

// DocumentSource turns raw file bytes into extraction units.
type DocumentSource interface {
	Process(ctx context.Context, filename, contentType string, data []byte) ([]*schema.Document, error)
}

// IngestJob describes one file to index.
type IngestJob struct {
	FileID      string
	Filename    string
	ContentType string
	Tags        []string
	Title       string
	Data        []byte
	// Replace clears the file's existing vectors before indexing so a
	// shrinking file leaves no stale chunks behind.
	Replace bool
	// CorrelationID links pipeline failures back to the triggering request.
	CorrelationID string
}

// IngestionPipeline turns a file into indexed chunks: extract, split, embed,
// and upsert. Chunk IDs derive from the file ID and chunk index, so re-runs
// overwrite rather than duplicate.
type IngestionPipeline struct {
	source      DocumentSource
	splitter    *splitters.WindowSplitter
	embedder    interfaces.EmbeddingModel
	vectorStore interfaces.VectorStore
	batchSize   int
	log         *logger.Logger
}

// NewIngestionPipeline creates an IngestionPipeline.
func NewIngestionPipeline(
	source DocumentSource,
	splitter *splitters.WindowSplitter,
	embedder interfaces.EmbeddingModel,
	vectorStore interfaces.VectorStore,
	batchSize int,
	log *logger.Logger,
) *IngestionPipeline {
	if batchSize <= 0 {
		batchSize = 16
	}
	return &IngestionPipeline{
		source:      source,
		splitter:    splitter,
		embedder:    embedder,
		vectorStore: vectorStore,
		batchSize:   batchSize,
		log:         log,
	}
}

// Run executes the pipeline for one file. Batches embed and upsert
// concurrently; if any batch fails, every vector already written for this
// file is rolled back and the error surfaces to the caller.
func (p *IngestionPipeline) Run(ctx context.Context, job IngestJob) (*models.IngestResult, error) {
	log := p.log.WithField("filename", job.Filename).WithField("correlation_id", job.CorrelationID)
	log.Info("starting ingestion")

	docs, err := p.source.Process(ctx, job.Filename, job.ContentType, job.Data)
	if err != nil {
		return nil, err
	}

	chunks, truncated, err := p.splitter.SplitDocuments(ctx, docs)
	if err != nil {
		return nil, errs.Processingf(job.CorrelationID, "splitting failed for '%s': %v", job.Filename, err)
	}
	if len(chunks) == 0 {
		return nil, errs.Validationf("file '%s' produced no chunks", job.Filename)
	}
	log.WithField("chunk_count", len(chunks)).Info("split into chunks")

	for _, chunk := range chunks {
		idx, _ := chunk.Metadata[schema.MetadataKeyChunkIndex].(int)
		chunk.ID = ChunkID(job.FileID, idx)
		chunk.Metadata[schema.MetadataKeyFileID] = job.FileID
		chunk.Metadata[schema.MetadataKeyFileName] = job.Filename
		chunk.Metadata[schema.MetadataKeyTags] = job.Tags
		chunk.Metadata[schema.MetadataKeyTitle] = job.Title
	}

	if job.Replace {
		if err := p.vectorStore.DeleteFile(ctx, job.FileID); err != nil {
			return nil, errs.Processingf(job.CorrelationID, "clearing old vectors for '%s': %v", job.Filename, err)
		}
	}

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentBatches)

	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		eg.Go(func() error {
			texts := make([]string, len(batch))
			for i, chunk := range batch {
				texts[i] = chunk.Text
			}
			embeddings, err := p.embedder.Embed(gCtx, texts)
			if err != nil {
				return fmt.Errorf("embedding batch: %w", err)
			}
			if len(embeddings) != len(batch) {
				return fmt.Errorf("embedding batch returned %d vectors for %d chunks", len(embeddings), len(batch))
			}
			for i, chunk := range batch {
				chunk.Embedding = embeddings[i]
			}
			if err := p.vectorStore.Upsert(gCtx, batch); err != nil {
				return fmt.Errorf("upserting batch: %w", err)
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		// Roll back whatever this job managed to write. A fresh context so
		// cancellation of the job cannot leave partial vectors behind.
		log.WithError(err).Error("ingestion failed, rolling back vectors")
		if delErr := p.vectorStore.DeleteFile(context.WithoutCancel(ctx), job.FileID); delErr != nil {
			log.WithError(delErr).Error("rollback failed, stale vectors may remain")
		}
		return nil, errs.Processingf(job.CorrelationID, "ingestion failed for '%s': %v", job.Filename, err)
	}

	result := &models.IngestResult{
		FileID:     job.FileID,
		Filename:   job.Filename,
		ChunkCount: len(chunks),
		Truncated:  truncated,
	}
	if truncated {
		result.TruncationWarning = fmt.Sprintf(
			"document exceeded the %d chunk limit, content beyond the limit was not indexed",
			p.splitter.MaxChunks)
	}
	log.WithField("chunk_count", result.ChunkCount).Info("ingestion complete")
	return result, nil
}

// DeleteVectors removes every chunk of a file from the vector index.
func (p *IngestionPipeline) DeleteVectors(ctx context.Context, fileID string) error {
	return p.vectorStore.DeleteFile(ctx, fileID)
}

// ChunkID builds the deterministic vector ID for a file's chunk.
func ChunkID(fileID string, index int) string {
	return fmt.Sprintf("%s_%d", fileID, index)
}
