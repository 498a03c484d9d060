package routes

import (
	"net/http"
	"strconv"
	"time"

	"legal-docs-rag/internal/config"
	"legal-docs-rag/internal/telemetry"
	"legal-docs-rag/models"
	"legal-docs-rag/services"
	"legal-docs-rag/utils"

	"github.com/gin-gonic/gin"
)

// SetupQueryRoutes registers the retrieval endpoint.
func SetupQueryRoutes(router *gin.Engine, cfg *config.Config, engine *services.RetrievalEngine, metrics *telemetry.Metrics) {
	api := router.Group("/api")
	{
		api.GET("/query", HandleQuery(cfg, engine, metrics))
	}
}

// HandleQuery answers GET /api/query?q=...&k=...&threshold=... with ranked
// chunks. An empty result set is a 200 with status "empty", not an error.
func HandleQuery(cfg *config.Config, engine *services.RetrievalEngine, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		queryText := c.Query("q")
		if queryText == "" {
			utils.RespondWithBadRequest(c, "Query parameter 'q' is required", nil)
			return
		}

		k := cfg.QueryTopK
		if raw := c.Query("k"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 || parsed > 100 {
				utils.RespondWithBadRequest(c, "Parameter 'k' must be an integer between 1 and 100", nil)
				return
			}
			k = parsed
		}

		threshold := cfg.SimilarityThreshold
		if raw := c.Query("threshold"); raw != "" {
			parsed, err := strconv.ParseFloat(raw, 64)
			if err != nil || parsed < 0 || parsed > 1 {
				utils.RespondWithBadRequest(c, "Parameter 'threshold' must be a number between 0 and 1", nil)
				return
			}
			threshold = parsed
		}

		start := time.Now()
		results := engine.RetrieveWith(c.Request.Context(), queryText, k, threshold)
		if metrics != nil {
			metrics.RecordQuery(c.Request.Context(), results.Status, time.Since(start).Seconds())
		}

		if results.Status == models.RetrievalError {
			utils.RespondWithInternalError(c, results.Error, nil)
			return
		}

		c.JSON(http.StatusOK, results)
	}
}
