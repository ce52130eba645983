// Package service implements the knowledge base operations behind the HTTP
// API: validation, upload, ingestion, listing, deletion, and search.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cymbalrag/internal/config"
	"cymbalrag/internal/docai"
	"cymbalrag/internal/errs"
	"cymbalrag/internal/events"
	"cymbalrag/internal/models"
	"cymbalrag/internal/processor"
	"cymbalrag/internal/rag/pipeline"
	"cymbalrag/internal/registry"
	"cymbalrag/internal/storage"
	"cymbalrag/pkg/locks"
	"cymbalrag/pkg/logger"
)

// ValidateRequest carries one file through pre-upload validation.
type ValidateRequest struct {
	Filename        string
	ContentType     string
	Data            []byte
	Tags            []string
	ReplaceExisting bool
}

// ValidateResult is the outcome of a successful validation.
type ValidateResult struct {
	ValidationID string                 `json:"validation_id"`
	Filename     string                 `json:"filename"`
	Size         int64                  `json:"size"`
	ContentType  string                 `json:"content_type"`
	Analysis     models.ContentAnalysis `json:"content_analysis"`
	Message      string                 `json:"message"`
}

// UploadRequest carries one file through the direct upload path.
type UploadRequest struct {
	Filename        string
	ContentType     string
	Data            []byte
	Tags            []string
	ReplaceExisting bool
}

// ListResult is a page of the file registry.
type ListResult struct {
	Files      []*models.FileRecord `json:"files"`
	TotalCount int64                `json:"total_count"`
}

// DocumentAI is the document-understanding dependency used for pre-upload
// analysis and title generation. Satisfied by *docai.Client.
type DocumentAI interface {
	AnalyzeContent(ctx context.Context, filename, contentType string, data []byte) models.ContentAnalysis
	GenerateTitle(ctx context.Context, filename, contentType string, data []byte) string
}

// Ingestor indexes files. Satisfied by *pipeline.IngestionPipeline.
type Ingestor interface {
	Run(ctx context.Context, job pipeline.IngestJob) (*models.IngestResult, error)
	DeleteVectors(ctx context.Context, fileID string) error
}

// Searcher answers queries. Satisfied by *pipeline.RetrievalPipeline.
type Searcher interface {
	Run(ctx context.Context, params pipeline.SearchParams) (*models.SearchResponse, error)
}

var (
	_ DocumentAI = (*docai.Client)(nil)
	_ Ingestor   = (*pipeline.IngestionPipeline)(nil)
	_ Searcher   = (*pipeline.RetrievalPipeline)(nil)
)

// KnowledgeBaseService orchestrates the document lifecycle and search.
type KnowledgeBaseService struct {
	cfg       *config.AppConfig
	files     registry.FileStore
	sessions  registry.SessionStore
	blobs     storage.BlobStore
	docAI     DocumentAI
	ingestion Ingestor
	retrieval Searcher
	locks     *locks.Arena
	events    *events.Publisher
	health    map[string]func(context.Context) error
	log       *logger.Logger
}

// New creates the service. healthChecks maps component names to their probe
// functions for the health endpoint.
func New(
	cfg *config.AppConfig,
	files registry.FileStore,
	sessions registry.SessionStore,
	blobs storage.BlobStore,
	docAI DocumentAI,
	ingestion Ingestor,
	retrieval Searcher,
	lockArena *locks.Arena,
	publisher *events.Publisher,
	healthChecks map[string]func(context.Context) error,
	log *logger.Logger,
) *KnowledgeBaseService {
	return &KnowledgeBaseService{
		cfg:       cfg,
		files:     files,
		sessions:  sessions,
		blobs:     blobs,
		docAI:     docAI,
		ingestion: ingestion,
		retrieval: retrieval,
		locks:     lockArena,
		events:    publisher,
		health:    healthChecks,
		log:       log,
	}
}

// Validate checks format, size, duplicates, and content quality, parks the
// file in temporary storage, and opens a validation session.
func (s *KnowledgeBaseService) Validate(ctx context.Context, req ValidateRequest) (*ValidateResult, error) {
	if err := s.checkSize(req.Filename, len(req.Data)); err != nil {
		return nil, err
	}

	contentType := processor.NormalizeContentType(req.ContentType, req.Filename, req.Data)
	if err := processor.ValidateFormat(contentType, req.Filename); err != nil {
		return nil, err
	}

	filename := models.CleanFilename(req.Filename)
	exists, err := s.files.Exists(ctx, filename)
	if err != nil {
		return nil, err
	}
	if exists && !req.ReplaceExisting {
		return nil, errs.Conflictf("file '%s' already exists, set replace_existing to overwrite", filename)
	}

	analysis := s.docAI.AnalyzeContent(ctx, filename, contentType, req.Data)
	if !analysis.ContentQuality.IsSufficient {
		return nil, errs.Validationf("content quality insufficient for '%s': %s",
			filename, analysis.ContentQuality.Reasoning)
	}

	tempPath, err := s.blobs.PutTemp(ctx, filename, req.Data, contentType)
	if err != nil {
		return nil, err
	}

	session := &models.ValidationSession{
		ValidationID: uuid.New().String(),
		Filename:     filename,
		TempPath:     tempPath,
		ContentType:  contentType,
		Size:         int64(len(req.Data)),
		Tags:         models.NormalizeTags(req.Tags),
		Analysis:     analysis,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.sessions.Put(ctx, session); err != nil {
		// A session we cannot store is a session nobody can promote; drop
		// the temp blob too.
		if cleanupErr := s.blobs.DeleteTemp(ctx, tempPath); cleanupErr != nil {
			s.log.WithError(cleanupErr).Warn("temp cleanup after session failure")
		}
		return nil, err
	}

	s.events.Publish(ctx, events.LifecycleEvent{
		Type: events.EventValidated, Filename: filename,
	})

	return &ValidateResult{
		ValidationID: session.ValidationID,
		Filename:     filename,
		Size:         session.Size,
		ContentType:  contentType,
		Analysis:     analysis,
		Message:      "file validated and staged for upload",
	}, nil
}

// UploadFromValidation promotes a validated file out of temporary storage
// and ingests it.
func (s *KnowledgeBaseService) UploadFromValidation(ctx context.Context, validationID string) (*models.IngestResult, error) {
	session, err := s.sessions.Get(ctx, validationID)
	if err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(session.Filename)
	if err != nil {
		return nil, errs.Conflictf("another operation is in progress for '%s'", session.Filename)
	}
	defer release()

	if _, err := s.blobs.Promote(ctx, session.TempPath, session.Filename); err != nil {
		return nil, err
	}
	if err := s.sessions.Delete(ctx, validationID); err != nil {
		s.log.WithError(err).WithField("validation_id", validationID).Warn("session cleanup failed")
	}

	return s.ingestLocked(ctx, session.Filename, session.ContentType, session.Tags, session.Size)
}

// Upload stores and ingests a file directly, without a prior validation
// session.
func (s *KnowledgeBaseService) Upload(ctx context.Context, req UploadRequest) (*models.IngestResult, error) {
	if err := s.checkSize(req.Filename, len(req.Data)); err != nil {
		return nil, err
	}
	contentType := processor.NormalizeContentType(req.ContentType, req.Filename, req.Data)
	if err := processor.ValidateFormat(contentType, req.Filename); err != nil {
		return nil, err
	}

	filename := models.CleanFilename(req.Filename)
	exists, err := s.files.Exists(ctx, filename)
	if err != nil {
		return nil, err
	}
	if exists && !req.ReplaceExisting {
		return nil, errs.Conflictf("file '%s' already exists, set replace_existing to overwrite", filename)
	}

	release, err := s.locks.Acquire(filename)
	if err != nil {
		return nil, errs.Conflictf("another operation is in progress for '%s'", filename)
	}
	defer release()

	if _, err := s.blobs.PutUpload(ctx, filename, req.Data, contentType); err != nil {
		return nil, err
	}

	return s.ingestLocked(ctx, filename, contentType, models.NormalizeTags(req.Tags), int64(len(req.Data)))
}

// ingestLocked runs the indexing pipeline for a file already present under
// uploads/. The caller holds the file's lock.
func (s *KnowledgeBaseService) ingestLocked(ctx context.Context, filename, contentType string, tags []string, size int64) (*models.IngestResult, error) {
	correlationID := uuid.New().String()
	log := s.log.WithField("filename", filename).WithField("correlation_id", correlationID)
	started := time.Now()

	data, storedType, err := s.blobs.GetUpload(ctx, filename)
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = storedType
	}

	rec, replace, err := s.prepareRecord(ctx, filename, contentType, tags, size)
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, events.LifecycleEvent{
		Type: events.EventUploaded, FileID: rec.FileID, Filename: filename, CorrelationID: correlationID,
	})

	title := s.docAI.GenerateTitle(ctx, filename, contentType, data)

	result, err := s.ingestion.Run(ctx, pipeline.IngestJob{
		FileID:        rec.FileID,
		Filename:      filename,
		ContentType:   contentType,
		Tags:          rec.Tags,
		Title:         title,
		Data:          data,
		Replace:       replace,
		CorrelationID: correlationID,
	})
	if err != nil {
		s.markFailed(ctx, rec, correlationID)
		log.WithError(err).Error("ingestion failed")
		return nil, err
	}

	rec.Status = models.StatusProcessed
	rec.Title = title
	rec.ChunkCount = result.ChunkCount
	rec.Truncated = result.Truncated
	rec.CorrelationID = ""
	rec.EmbeddingStats = models.EmbeddingStats{
		ChunksEmbedded:   result.ChunkCount,
		ProcessingTimeMS: time.Since(started).Milliseconds(),
	}
	if err := s.files.Update(ctx, rec); err != nil {
		return nil, err
	}

	eventType := events.EventProcessed
	if replace {
		eventType = events.EventReprocessed
	}
	s.events.Publish(ctx, events.LifecycleEvent{
		Type: eventType, FileID: rec.FileID, Filename: filename, CorrelationID: correlationID,
	})

	log.WithField("chunk_count", result.ChunkCount).Info("file processed")
	return result, nil
}

// prepareRecord creates or refreshes the registry entry and moves it into a
// processing status. The second return reports whether this is a replace of
// an already indexed file.
func (s *KnowledgeBaseService) prepareRecord(ctx context.Context, filename, contentType string, tags []string, size int64) (*models.FileRecord, bool, error) {
	now := time.Now().UTC()
	rec, err := s.files.Get(ctx, filename)
	switch {
	case err == nil:
		replace := rec.ChunkCount > 0
		next := models.StatusProcessing
		switch rec.Status {
		case models.StatusProcessed, models.StatusFailed:
			next = models.StatusReprocessing
		}
		if !models.CanTransition(rec.Status, next) {
			return nil, false, errs.Conflictf("file '%s' is %s and cannot be reprocessed now", filename, rec.Status)
		}
		rec.ContentType = contentType
		rec.Size = size
		if tags != nil {
			rec.Tags = tags
		}
		rec.Status = next
		if err := s.files.Update(ctx, rec); err != nil {
			return nil, false, err
		}
		return rec, replace, nil

	case isNotFound(err):
		rec = &models.FileRecord{
			FileID:          uuid.New().String(),
			Filename:        filename,
			OriginalName:    filename,
			ContentType:     contentType,
			Size:            size,
			Tags:            tags,
			Status:          models.StatusProcessing,
			UploadTimestamp: now,
			LastModified:    now,
		}
		if err := s.files.Create(ctx, rec); err != nil {
			return nil, false, err
		}
		return rec, false, nil

	default:
		return nil, false, err
	}
}

func (s *KnowledgeBaseService) markFailed(ctx context.Context, rec *models.FileRecord, correlationID string) {
	rec.Status = models.StatusFailed
	rec.CorrelationID = correlationID
	if err := s.files.Update(ctx, rec); err != nil {
		s.log.WithError(err).WithField("filename", rec.Filename).Error("cannot record failure status")
	}
	s.events.Publish(ctx, events.LifecycleEvent{
		Type: events.EventFailed, FileID: rec.FileID, Filename: rec.Filename, CorrelationID: correlationID,
	})
}

// Delete removes a file everywhere: vectors, blob, and registry entry.
func (s *KnowledgeBaseService) Delete(ctx context.Context, filename string) error {
	filename = models.CleanFilename(filename)

	release, err := s.locks.Acquire(filename)
	if err != nil {
		return errs.Conflictf("another operation is in progress for '%s'", filename)
	}
	defer release()

	rec, err := s.files.Get(ctx, filename)
	if err != nil {
		return err
	}
	if !models.CanTransition(rec.Status, models.StatusDeleted) {
		return errs.Conflictf("file '%s' is %s and cannot be deleted", filename, rec.Status)
	}

	if err := s.ingestion.DeleteVectors(ctx, rec.FileID); err != nil {
		return err
	}
	if err := s.blobs.DeleteUpload(ctx, filename); err != nil {
		return err
	}
	if err := s.files.Delete(ctx, filename); err != nil {
		return err
	}

	s.events.Publish(ctx, events.LifecycleEvent{
		Type: events.EventDeleted, FileID: rec.FileID, Filename: filename,
	})
	return nil
}

// List returns a page of non-deleted file records.
func (s *KnowledgeBaseService) List(ctx context.Context, opts registry.ListOptions) (*ListResult, error) {
	switch opts.SortBy {
	case "", "date", "name", "size":
	default:
		return nil, errs.Validationf("invalid sort_by '%s', must be one of date, name, size", opts.SortBy)
	}
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, errs.Validationf("limit and offset must not be negative")
	}
	opts.Tags = models.NormalizeTags(opts.Tags)

	files, total, err := s.files.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []*models.FileRecord{}
	}
	return &ListResult{Files: files, TotalCount: total}, nil
}

// Get returns the registry record for one file.
func (s *KnowledgeBaseService) Get(ctx context.Context, filename string) (*models.FileRecord, error) {
	return s.files.Get(ctx, models.CleanFilename(filename))
}

// View streams back the stored original file.
func (s *KnowledgeBaseService) View(ctx context.Context, filename string) ([]byte, string, error) {
	filename = models.CleanFilename(filename)
	if _, err := s.files.Get(ctx, filename); err != nil {
		return nil, "", err
	}
	return s.blobs.GetUpload(ctx, filename)
}

// Stats aggregates registry totals.
func (s *KnowledgeBaseService) Stats(ctx context.Context) (*registry.Stats, error) {
	return s.files.Stats(ctx)
}

// Search answers a query over the indexed corpus.
func (s *KnowledgeBaseService) Search(ctx context.Context, params pipeline.SearchParams) (*models.SearchResponse, error) {
	if params.Query == "" {
		return nil, errs.Validationf("query must not be empty")
	}
	if params.MaxResults < 0 {
		return nil, errs.Validationf("max_results must not be negative")
	}
	params.Tags = models.NormalizeTags(params.Tags)
	return s.retrieval.Run(ctx, params)
}

// Health probes every backing component and reports per-component status.
func (s *KnowledgeBaseService) Health(ctx context.Context) (map[string]string, bool) {
	statuses := make(map[string]string, len(s.health))
	healthy := true
	for name, check := range s.health {
		if err := check(ctx); err != nil {
			statuses[name] = fmt.Sprintf("unhealthy: %v", err)
			healthy = false
		} else {
			statuses[name] = "healthy"
		}
	}
	return statuses, healthy
}

func (s *KnowledgeBaseService) checkSize(filename string, size int) error {
	limit := s.cfg.Processing.MaxFileSizeMB * 1024 * 1024
	if size == 0 {
		return errs.Validationf("file '%s' is empty", filename)
	}
	if size > limit {
		return errs.Validationf("file '%s' exceeds the %d MB size limit", filename, s.cfg.Processing.MaxFileSizeMB)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, errs.ErrNotFound)
}
