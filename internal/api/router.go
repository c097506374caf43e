package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all the routes for the support assistant service.
func RegisterRoutes(router *gin.Engine, api *API) {
	router.GET("/healthz", api.HealthHandler)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/chat/query", api.QueryHandler)

		knowledge := v1.Group("/knowledge")
		{
			knowledge.POST("/ingest", api.IngestHandler)
			knowledge.DELETE("/documents/:id", api.DeleteDocumentHandler)
		}
	}
}
