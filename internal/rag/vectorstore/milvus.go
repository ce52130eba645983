package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"cymbalrag/internal/database/milvus"
	"cymbalrag/internal/rag/interfaces"
	"cymbalrag/internal/rag/schema"
	"cymbalrag/pkg/logger"
)

// MilvusStore adapts the shared Milvus client to the VectorStore interface.
// Chunk IDs are deterministic per file and index, so Upsert makes
// re-ingestion idempotent.
type MilvusStore struct {
	log        *logger.Logger
	client     client.Client
	collection string
	dim        int
}

// NewMilvusStore creates a MilvusStore over the shared client wrapper.
func NewMilvusStore(milvusClient *milvus.MilvusClient, log *logger.Logger) (*MilvusStore, error) {
	if milvusClient == nil || milvusClient.Client == nil {
		return nil, fmt.Errorf("milvus client is not initialized")
	}
	return &MilvusStore{
		log:        log,
		client:     milvusClient.Client,
		collection: milvusClient.Config.Collection,
		dim:        milvusClient.Config.Dim,
	}, nil
}

// Upsert writes chunks to the collection, overwriting rows with the same ID.
func (s *MilvusStore) Upsert(ctx context.Context, docs []*schema.Document) error {
	if len(docs) == 0 {
		return nil
	}

	ids := make([]string, len(docs))
	embeddings := make([][]float32, len(docs))
	contents := make([]string, len(docs))
	fileIDs := make([]string, len(docs))
	filenames := make([]string, len(docs))
	chunkIndexes := make([]int64, len(docs))
	tags := make([]string, len(docs))
	titles := make([]string, len(docs))

	for i, doc := range docs {
		if len(doc.Embedding) != s.dim {
			return fmt.Errorf("chunk '%s' has embedding dim %d, collection wants %d", doc.ID, len(doc.Embedding), s.dim)
		}
		ids[i] = doc.ID
		embeddings[i] = doc.Embedding
		contents[i] = doc.Text
		fileIDs[i], _ = doc.Metadata[schema.MetadataKeyFileID].(string)
		filenames[i], _ = doc.Metadata[schema.MetadataKeyFileName].(string)
		if idx, ok := doc.Metadata[schema.MetadataKeyChunkIndex].(int); ok {
			chunkIndexes[i] = int64(idx)
		}
		if t, ok := doc.Metadata[schema.MetadataKeyTags].([]string); ok {
			tags[i] = EncodeTags(t)
		}
		titles[i], _ = doc.Metadata[schema.MetadataKeyTitle].(string)
	}

	columns := []entity.Column{
		entity.NewColumnVarChar(milvus.FieldID, ids),
		entity.NewColumnFloatVector(milvus.FieldEmbedding, s.dim, embeddings),
		entity.NewColumnVarChar(milvus.FieldContent, contents),
		entity.NewColumnVarChar(milvus.FieldFileID, fileIDs),
		entity.NewColumnVarChar(milvus.FieldFilename, filenames),
		entity.NewColumnInt64(milvus.FieldChunkIndex, chunkIndexes),
		entity.NewColumnVarChar(milvus.FieldTags, tags),
		entity.NewColumnVarChar(milvus.FieldTitle, titles),
	}

	s.log.WithField("chunk_count", len(docs)).Debug("upserting chunks into Milvus")
	if _, err := s.client.Upsert(ctx, s.collection, "", columns...); err != nil {
		return fmt.Errorf("failed to upsert chunks into Milvus: %w", err)
	}
	return nil
}

// DeleteFile removes every chunk belonging to the given file.
func (s *MilvusStore) DeleteFile(ctx context.Context, fileID string) error {
	expr := fmt.Sprintf(`%s == "%s"`, milvus.FieldFileID, escapeQuotes(fileID))
	if err := s.client.Delete(ctx, s.collection, "", expr); err != nil {
		return fmt.Errorf("failed to delete chunks for file '%s': %w", fileID, err)
	}
	return nil
}

// Query searches the topK nearest chunks, optionally restricted to files
// carrying every listed tag.
func (s *MilvusStore) Query(ctx context.Context, embedding []float32, topK int, tags []string) ([]*schema.Document, error) {
	filterExpr := buildTagFilter(tags)
	searchParams, err := entity.NewIndexHNSWSearchParam(64)
	if err != nil {
		return nil, fmt.Errorf("cannot build search params: %w", err)
	}
	outputFields := []string{
		milvus.FieldID, milvus.FieldContent, milvus.FieldFileID,
		milvus.FieldFilename, milvus.FieldChunkIndex, milvus.FieldTags, milvus.FieldTitle,
	}

	results, err := s.client.Search(
		ctx, s.collection, []string{}, filterExpr, outputFields,
		[]entity.Vector{entity.FloatVector(embedding)},
		milvus.FieldEmbedding, entity.COSINE, topK, searchParams,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search in Milvus: %w", err)
	}

	var docs []*schema.Document
	for _, res := range results {
		cols := make(map[string]entity.Column, len(res.Fields))
		for _, field := range res.Fields {
			cols[field.Name()] = field
		}

		idCol, ok := cols[milvus.FieldID].(*entity.ColumnVarChar)
		if !ok {
			s.log.Warn("search result is missing the id field, skipping")
			continue
		}

		varcharData := func(name string) []string {
			if c, ok := cols[name].(*entity.ColumnVarChar); ok {
				return c.Data()
			}
			return nil
		}
		contentData := varcharData(milvus.FieldContent)
		fileIDData := varcharData(milvus.FieldFileID)
		filenameData := varcharData(milvus.FieldFilename)
		tagsData := varcharData(milvus.FieldTags)
		titleData := varcharData(milvus.FieldTitle)
		var indexData []int64
		if c, ok := cols[milvus.FieldChunkIndex].(*entity.ColumnInt64); ok {
			indexData = c.Data()
		}

		for i := 0; i < res.ResultCount; i++ {
			doc := &schema.Document{
				ID:       idCol.Data()[i],
				Metadata: map[string]interface{}{schema.MetadataKeyScore: float64(res.Scores[i])},
			}
			if contentData != nil {
				doc.Text = contentData[i]
			}
			if fileIDData != nil {
				doc.Metadata[schema.MetadataKeyFileID] = fileIDData[i]
			}
			if filenameData != nil {
				doc.Metadata[schema.MetadataKeyFileName] = filenameData[i]
			}
			if indexData != nil {
				doc.Metadata[schema.MetadataKeyChunkIndex] = int(indexData[i])
			}
			if tagsData != nil {
				doc.Metadata[schema.MetadataKeyTags] = DecodeTags(tagsData[i])
			}
			if titleData != nil {
				doc.Metadata[schema.MetadataKeyTitle] = titleData[i]
			}
			docs = append(docs, doc)
		}
	}

	return docs, nil
}

// EncodeTags packs a tag list into a delimited string so the varchar column
// supports containment filters, e.g. ["hr","legal"] becomes ",hr,legal,".
func EncodeTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return "," + strings.Join(tags, ",") + ","
}

// DecodeTags unpacks a delimited tag string back into a list.
func DecodeTags(s string) []string {
	trimmed := strings.Trim(s, ",")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, ",")
}

// buildTagFilter builds a Milvus filter expression requiring every tag to be
// present in the chunk's tag string.
func buildTagFilter(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	conditions := make([]string, 0, len(tags))
	for _, tag := range tags {
		conditions = append(conditions, fmt.Sprintf(`%s like "%%,%s,%%"`, milvus.FieldTags, escapeQuotes(tag)))
	}
	return strings.Join(conditions, " and ")
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

var _ interfaces.VectorStore = (*MilvusStore)(nil)
