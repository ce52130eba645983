package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cymbalrag/internal/errs"
	"cymbalrag/internal/models"
	"cymbalrag/internal/processor"
	"cymbalrag/internal/rag/pipeline"
	"cymbalrag/internal/registry"
	"cymbalrag/internal/service"
	"cymbalrag/pkg/logger"
)

// API provides the HTTP handlers for the knowledge base service.
type API struct {
	service *service.KnowledgeBaseService
	logger  *logger.Logger
}

// NewAPI creates a new API handler.
func NewAPI(svc *service.KnowledgeBaseService, log *logger.Logger) *API {
	return &API{service: svc, logger: log}
}

// writeError maps the service error taxonomy onto HTTP status codes.
func (a *API) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrAuth):
		status = http.StatusUnauthorized
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, errs.ErrExternalService):
		status = http.StatusBadGateway
	case errors.Is(err, errs.ErrProcessing):
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// readUpload pulls the file part and common form fields out of a multipart
// request.
func (a *API) readUpload(c *gin.Context) (filename string, data []byte, contentType string, tags []string, replace bool, err error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", nil, "", nil, false, errs.Validationf("missing 'file' form field: %v", err)
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, "", nil, false, errs.Validationf("cannot open uploaded file: %v", err)
	}
	defer f.Close()
	data, err = io.ReadAll(f)
	if err != nil {
		return "", nil, "", nil, false, errs.Validationf("cannot read uploaded file: %v", err)
	}

	tags = models.ParseTags(c.PostForm("tags"))
	replace = c.PostForm("replace_existing") == "true"
	return fh.Filename, data, fh.Header.Get("Content-Type"), tags, replace, nil
}

// ValidateFileHandler handles POST /api/v1/file/validate.
func (a *API) ValidateFileHandler(c *gin.Context) {
	filename, data, contentType, tags, replace, err := a.readUpload(c)
	if err != nil {
		a.writeError(c, err)
		return
	}

	result, err := a.service.Validate(c.Request.Context(), service.ValidateRequest{
		Filename:        filename,
		ContentType:     contentType,
		Data:            data,
		Tags:            tags,
		ReplaceExisting: replace,
	})
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// UploadDirectHandler handles POST /api/v1/upload/direct.
func (a *API) UploadDirectHandler(c *gin.Context) {
	filename, data, contentType, tags, replace, err := a.readUpload(c)
	if err != nil {
		a.writeError(c, err)
		return
	}

	result, err := a.service.Upload(c.Request.Context(), service.UploadRequest{
		Filename:        filename,
		ContentType:     contentType,
		Data:            data,
		Tags:            tags,
		ReplaceExisting: replace,
	})
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// UploadFromValidationHandler handles POST /api/v1/upload/:validation_id.
func (a *API) UploadFromValidationHandler(c *gin.Context) {
	validationID := c.Param("validation_id")

	result, err := a.service.UploadFromValidation(c.Request.Context(), validationID)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DeleteFileHandler handles DELETE /api/v1/upload/delete?filename=.
func (a *API) DeleteFileHandler(c *gin.Context) {
	filename := c.Query("filename")
	if filename == "" {
		a.writeError(c, errs.Validationf("missing 'filename' query parameter"))
		return
	}

	if err := a.service.Delete(c.Request.Context(), filename); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("file '%s' deleted", filename)})
}

// ListFilesHandler handles GET /api/v1/files/list.
func (a *API) ListFilesHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	result, err := a.service.List(c.Request.Context(), registry.ListOptions{
		Search: c.Query("search"),
		SortBy: c.DefaultQuery("sort_by", "date"),
		Tags:   models.ParseTags(c.Query("tags")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ViewFileHandler handles GET /api/v1/files/view?filename=.
func (a *API) ViewFileHandler(c *gin.Context) {
	filename := c.Query("filename")
	if filename == "" {
		a.writeError(c, errs.Validationf("missing 'filename' query parameter"))
		return
	}

	data, contentType, err := a.service.View(c.Request.Context(), filename)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, contentType, data)
}

// EmbeddingStatsHandler handles GET /api/v1/files/embedding-stats?filename=.
func (a *API) EmbeddingStatsHandler(c *gin.Context) {
	filename := c.Query("filename")
	if filename == "" {
		a.writeError(c, errs.Validationf("missing 'filename' query parameter"))
		return
	}

	rec, err := a.service.Get(c.Request.Context(), filename)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"file_info": gin.H{
			"name":         rec.Filename,
			"file_type":    rec.ContentType,
			"last_updated": rec.LastModified,
			"size":         rec.Size,
		},
		"embedding_stats": rec.EmbeddingStats,
		"chunk_count":     rec.ChunkCount,
		"message":         fmt.Sprintf("file has %d chunks indexed", rec.ChunkCount),
	})
}

// StatsHandler handles GET /api/v1/files/stats.
func (a *API) StatsHandler(c *gin.Context) {
	stats, err := a.service.Stats(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// SearchHandler handles POST /api/v1/search/rag.
func (a *API) SearchHandler(c *gin.Context) {
	var payload struct {
		Query               string   `json:"query"`
		MaxResults          int      `json:"max_results"`
		SimilarityThreshold float64  `json:"similarity_threshold"`
		Tags                []string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		a.writeError(c, errs.Validationf("invalid request payload: %v", err))
		return
	}

	result, err := a.service.Search(c.Request.Context(), pipeline.SearchParams{
		Query:      payload.Query,
		Tags:       payload.Tags,
		MaxResults: payload.MaxResults,
		Threshold:  payload.SimilarityThreshold,
	})
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HealthHandler handles GET /health.
func (a *API) HealthHandler(c *gin.Context) {
	statuses, healthy := a.service.Health(c.Request.Context())
	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}
	c.JSON(status, gin.H{"status": overall, "components": statuses})
}

// SupportedFormatsHandler handles GET /api/v1/file/supported-formats.
func (a *API) SupportedFormatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"supported_formats":    processor.SupportedFormats,
		"supported_extensions": processor.SupportedExtensions(),
	})
}
