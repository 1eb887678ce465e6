package router

import (
	"github.com/gin-gonic/gin"

	"verity/internal/handler"
	"verity/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	docH *handler.DocumentHandler,
	concordanceH *handler.ConcordanceHandler,
	reviewH *handler.ReviewHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	v1 := r.Group("/api/v1")

	// Document routes
	docs := v1.Group("/documents")
	docs.POST("", docH.Upload)
	docs.GET("", docH.List)
	docs.GET("/:id", docH.GetByID)
	docs.GET("/:id/fields", docH.GetFields)
	docs.POST("/:id/retry", docH.Retry)
	docs.PUT("/:id/review", reviewH.UpdateReview)
	docs.GET("/:id/concordance", concordanceH.Get)
	docs.POST("/:id/concordance/rebuild", concordanceH.Rebuild)
	docs.GET("/:id/concordance/export/csv", concordanceH.ExportCSV)
	docs.GET("/:id/concordance/export/xlsx", concordanceH.ExportXLSX)

	// Review routes
	review := v1.Group("/review")
	review.GET("/queue", reviewH.ListQueue)
	review.POST("/recommend", reviewH.Recommend)

	return r
}
