package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ReckonAssist/internal/rag/pipeline"
	"ReckonAssist/internal/rag/schema"
	"ReckonAssist/pkg/logger"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// API provides the HTTP handlers for the support assistant.
type API struct {
	indexing *pipeline.IndexingPipeline
	query    *pipeline.QueryPipeline
	health   HealthChecker
	logger   *logger.Logger
}

// NewAPI creates a new API handler.
func NewAPI(indexing *pipeline.IndexingPipeline, query *pipeline.QueryPipeline, health HealthChecker, log *logger.Logger) *API {
	return &API{
		indexing: indexing,
		query:    query,
		health:   health,
		logger:   log.WithComponent("api"),
	}
}

// IngestHandler accepts a document and indexes it into the knowledge base.
func (a *API) IngestHandler(c *gin.Context) {
	var req schema.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	result, err := a.indexing.Ingest(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyContent) || errors.Is(err, pipeline.ErrEmptyTitle) || errors.Is(err, pipeline.ErrBadLanguage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		a.logger.WithPayload(map[string]interface{}{"error": err.Error()}).Error("ingest failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to ingest document"})
		return
	}

	c.JSON(http.StatusCreated, result)
}

// QueryHandler answers a support question. The pipeline degrades internally,
// so this handler returns 200 with a fallback body rather than 5xx when the
// backing services are misbehaving.
func (a *API) QueryHandler(c *gin.Context) {
	var req schema.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	if req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query must not be empty"})
		return
	}

	resp := a.query.AnswerQuery(c.Request.Context(), req)
	c.JSON(http.StatusOK, resp)
}

// DeleteDocumentHandler removes a document and its vectors.
func (a *API) DeleteDocumentHandler(c *gin.Context) {
	documentID := c.Param("id")
	if documentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "document id is required"})
		return
	}

	if err := a.indexing.DeleteDocument(c.Request.Context(), documentID); err != nil {
		a.logger.WithPayload(map[string]interface{}{"error": err.Error(), "document_id": documentID}).Error("delete failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete document"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"document_id": documentID})
}

// HealthHandler reports liveness plus vector store reachability.
func (a *API) HealthHandler(c *gin.Context) {
	if a.health != nil {
		if err := a.health.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
