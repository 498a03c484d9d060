package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"legal-docs-rag/models"
	"legal-docs-rag/services"
)

const (
	TaskIngestDocument = "document:ingest"
)

// IngestPayload carries one document source through the queue.
type IngestPayload struct {
	Source models.DocumentSource `json:"source"`
}

// NewIngestTask creates a queued ingestion task for one source.
func NewIngestTask(src models.DocumentSource) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestPayload{Source: src})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("ingest"),
	), nil
}

// TaskProcessor handles queued pipeline work.
type TaskProcessor struct {
	pipeline *services.Pipeline
}

func NewTaskProcessor(pipeline *services.Pipeline) *TaskProcessor {
	return &TaskProcessor{pipeline: pipeline}
}

// HandleIngestDocument ingests one document. The pipeline already retries
// transient failures internally, so a failed report is not requeued.
func (p *TaskProcessor) HandleIngestDocument(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	log.Printf("Ingesting document: source=%s", payload.Source.Locator())

	report, err := p.pipeline.IngestDocument(ctx, payload.Source)
	if err != nil {
		// Fatal configuration error: retrying cannot help.
		return fmt.Errorf("ingest aborted: %v: %w", err, asynq.SkipRetry)
	}
	if report.Status == models.StatusFailed {
		return fmt.Errorf("ingest failed for %s: %s: %w", payload.Source.Locator(), report.Error, asynq.SkipRetry)
	}

	log.Printf("Document ingested: source=%s status=%s chunks=%d", payload.Source.Locator(), report.Status, report.ChunkCount)
	return nil
}
