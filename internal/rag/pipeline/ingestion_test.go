package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"cymbalrag/internal/errs"
	"cymbalrag/internal/rag/schema"
	"cymbalrag/internal/rag/splitters"
	"cymbalrag/pkg/logger"
)

type fakeSource struct {
	docs []*schema.Document
	err  error
}

func (f *fakeSource) Process(ctx context.Context, filename, contentType string, data []byte) ([]*schema.Document, error) {
	return f.docs, f.err
}

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	// failAfter makes the embedder error from call N onward, 0 disables.
	failAfter int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	if f.failAfter > 0 && call >= f.failAfter {
		return nil, errors.New("embedding quota exhausted")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i]))}
	}
	return out, nil
}

type fakeVectorStore struct {
	mu       sync.Mutex
	upserted map[string]*schema.Document
	deletes  []string
	upsertErr error
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{upserted: make(map[string]*schema.Document)}
}

func (f *fakeVectorStore) Upsert(ctx context.Context, docs []*schema.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, d := range docs {
		f.upserted[d.ID] = d
	}
	return nil
}

func (f *fakeVectorStore) DeleteFile(ctx context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, fileID)
	for id := range f.upserted {
		if strings.HasPrefix(id, fileID+"_") {
			delete(f.upserted, id)
		}
	}
	return nil
}

func (f *fakeVectorStore) Query(ctx context.Context, embedding []float32, topK int, tags []string) ([]*schema.Document, error) {
	return nil, nil
}

func newIngestionTestPipeline(source DocumentSource, embedder *fakeEmbedder, store *fakeVectorStore, maxChunks int) *IngestionPipeline {
	splitter, _ := splitters.NewWindowSplitter(100, 20, maxChunks)
	return NewIngestionPipeline(source, splitter, embedder, store, 2, logger.New("ingestion-test"))
}

func sourceDoc(text string) *fakeSource {
	return &fakeSource{docs: []*schema.Document{{
		Text:     text,
		Metadata: map[string]interface{}{},
	}}}
}

func TestIngestionRunAssignsDeterministicIDs(t *testing.T) {
	store := newFakeVectorStore()
	p := newIngestionTestPipeline(sourceDoc(strings.Repeat("a", 250)), &fakeEmbedder{}, store, 0)

	result, err := p.Run(context.Background(), IngestJob{
		FileID: "file-1", Filename: "doc.txt", ContentType: "text/plain",
		Tags: []string{"hr"}, Title: "Handbook",
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.ChunkCount != 4 {
		t.Fatalf("chunk count = %d", result.ChunkCount)
	}
	for i := 0; i < result.ChunkCount; i++ {
		id := fmt.Sprintf("file-1_%d", i)
		doc, ok := store.upserted[id]
		if !ok {
			t.Fatalf("missing chunk %s", id)
		}
		if got, _ := doc.Metadata[schema.MetadataKeyTitle].(string); got != "Handbook" {
			t.Errorf("chunk %s title = %q", id, got)
		}
		if len(doc.Embedding) == 0 {
			t.Errorf("chunk %s has no embedding", id)
		}
	}
}

func TestIngestionRunRollsBackOnEmbeddingFailure(t *testing.T) {
	store := newFakeVectorStore()
	// Batch size 2 over 4 chunks gives 2 embed calls; the second fails.
	p := newIngestionTestPipeline(sourceDoc(strings.Repeat("a", 250)), &fakeEmbedder{failAfter: 2}, store, 0)

	_, err := p.Run(context.Background(), IngestJob{FileID: "file-1", Filename: "doc.txt", ContentType: "text/plain"})
	if !errors.Is(err, errs.ErrProcessing) {
		t.Fatalf("err = %v, want processing error", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.upserted) != 0 {
		t.Errorf("expected rollback, %d chunks remain", len(store.upserted))
	}
	found := false
	for _, d := range store.deletes {
		if d == "file-1" {
			found = true
		}
	}
	if !found {
		t.Error("DeleteFile was not called for the failed file")
	}
}

func TestIngestionRunRollsBackOnUpsertFailure(t *testing.T) {
	store := newFakeVectorStore()
	store.upsertErr = errors.New("collection unavailable")
	p := newIngestionTestPipeline(sourceDoc(strings.Repeat("a", 250)), &fakeEmbedder{}, store, 0)

	_, err := p.Run(context.Background(), IngestJob{FileID: "file-1", Filename: "doc.txt", ContentType: "text/plain"})
	if !errors.Is(err, errs.ErrProcessing) {
		t.Fatalf("err = %v, want processing error", err)
	}
	if len(store.deletes) == 0 {
		t.Error("expected rollback delete")
	}
}

func TestIngestionRunReplaceClearsOldVectors(t *testing.T) {
	store := newFakeVectorStore()
	// Simulate vectors left over from a longer prior version.
	store.upserted["file-1_7"] = &schema.Document{ID: "file-1_7"}

	p := newIngestionTestPipeline(sourceDoc("short"), &fakeEmbedder{}, store, 0)
	result, err := p.Run(context.Background(), IngestJob{
		FileID: "file-1", Filename: "doc.txt", ContentType: "text/plain", Replace: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.ChunkCount != 1 {
		t.Fatalf("chunk count = %d", result.ChunkCount)
	}
	if _, stale := store.upserted["file-1_7"]; stale {
		t.Error("stale chunk survived replace")
	}
}

func TestIngestionRunTruncation(t *testing.T) {
	store := newFakeVectorStore()
	p := newIngestionTestPipeline(sourceDoc(strings.Repeat("a", 1000)), &fakeEmbedder{}, store, 2)

	result, err := p.Run(context.Background(), IngestJob{FileID: "file-1", Filename: "doc.txt", ContentType: "text/plain"})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Truncated || result.TruncationWarning == "" {
		t.Errorf("result = %+v, want truncation with warning", result)
	}
	if result.ChunkCount != 2 {
		t.Errorf("chunk count = %d, want 2", result.ChunkCount)
	}
}

func TestIngestionRunValidationErrorFromSource(t *testing.T) {
	store := newFakeVectorStore()
	src := &fakeSource{err: errs.Validationf("no extractable content")}
	p := newIngestionTestPipeline(src, &fakeEmbedder{}, store, 0)

	_, err := p.Run(context.Background(), IngestJob{FileID: "file-1", Filename: "doc.txt", ContentType: "text/plain"})
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}
