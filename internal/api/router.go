package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all routes for the knowledge base service. The
// health probe and the format discovery endpoint stay outside the
// authenticated group.
func RegisterRoutes(router *gin.Engine, a *API, authToken string) {
	router.GET("/health", a.HealthHandler)

	v1 := router.Group("/api/v1")
	v1.GET("/file/supported-formats", a.SupportedFormatsHandler)

	authed := v1.Group("")
	authed.Use(TokenAuth(authToken))
	{
		authed.POST("/file/validate", a.ValidateFileHandler)

		authed.POST("/upload/direct", a.UploadDirectHandler)
		authed.POST("/upload/:validation_id", a.UploadFromValidationHandler)
		authed.DELETE("/upload/delete", a.DeleteFileHandler)

		authed.GET("/files/list", a.ListFilesHandler)
		authed.GET("/files/view", a.ViewFileHandler)
		authed.GET("/files/embedding-stats", a.EmbeddingStatsHandler)
		authed.GET("/files/stats", a.StatsHandler)

		authed.POST("/search/rag", a.SearchHandler)
	}
}
