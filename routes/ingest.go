package routes

import (
	"net/http"
	"strings"

	"legal-docs-rag/internal/config"
	"legal-docs-rag/internal/queue"
	"legal-docs-rag/internal/telemetry"
	"legal-docs-rag/models"
	"legal-docs-rag/services"
	"legal-docs-rag/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

// IngestRequest is the body of POST /api/ingest.
type IngestRequest struct {
	Sources      []models.DocumentSource `json:"sources"`
	Async        bool                    `json:"async"`
	MaxDocuments int                     `json:"max_documents"`
}

// SetupIngestRoutes registers the ingestion endpoints. queueClient may be nil,
// in which case async ingestion is rejected.
func SetupIngestRoutes(router *gin.Engine, cfg *config.Config, pipeline *services.Pipeline, queueClient *asynq.Client, metrics *telemetry.Metrics) {
	api := router.Group("/api")
	{
		api.POST("/ingest", HandleIngest(cfg, pipeline, queueClient, metrics))
	}
}

// HandleIngest accepts a batch of document sources. With async=true every
// source is enqueued and processed by the worker; otherwise the batch runs
// inline and the full report is returned.
func HandleIngest(cfg *config.Config, pipeline *services.Pipeline, queueClient *asynq.Client, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req IngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", err.Error())
			return
		}
		if len(req.Sources) == 0 {
			utils.RespondWithBadRequest(c, "At least one source is required", nil)
			return
		}
		for i, src := range req.Sources {
			if strings.TrimSpace(src.URL) == "" && strings.TrimSpace(src.Path) == "" {
				utils.RespondWithBadRequest(c, "Source requires a url or a path", gin.H{"index": i})
				return
			}
		}

		if req.Async {
			if queueClient == nil {
				utils.RespondWithError(c, http.StatusServiceUnavailable, "queue_unavailable",
					"Async ingestion requires the task queue", nil)
				return
			}

			taskIDs := make([]string, 0, len(req.Sources))
			for _, src := range req.Sources {
				task, err := queue.NewIngestTask(src)
				if err != nil {
					utils.RespondWithInternalError(c, "Failed to create ingestion task", err.Error())
					return
				}
				info, err := queueClient.Enqueue(task)
				if err != nil {
					utils.RespondWithInternalError(c, "Failed to enqueue ingestion task", err.Error())
					return
				}
				taskIDs = append(taskIDs, info.ID)
			}

			c.JSON(http.StatusAccepted, gin.H{
				"message":  "Ingestion accepted for processing",
				"queued":   len(taskIDs),
				"task_ids": taskIDs,
			})
			return
		}

		report, err := pipeline.IngestSources(c.Request.Context(), req.Sources, req.MaxDocuments)
		if metrics != nil && report != nil {
			for _, doc := range report.Documents {
				metrics.RecordIngest(c.Request.Context(), doc.Status, doc.ChunkCount)
			}
		}
		if err != nil {
			// Configuration errors abort the run; the partial report still
			// tells the caller what happened before the abort.
			c.JSON(http.StatusInternalServerError, gin.H{
				"error_code": "configuration_error",
				"message":    err.Error(),
				"report":     report,
			})
			return
		}

		status := http.StatusOK
		if report.Failed > 0 || report.Partial > 0 {
			status = http.StatusMultiStatus
		}
		c.JSON(status, gin.H{"report": report})
	}
}
