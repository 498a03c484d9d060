package models

import "time"

// DocumentReport is the per-document outcome of an ingestion run.
type DocumentReport struct {
	SourceLocator string `json:"source_locator"`
	DocumentID    string `json:"document_id,omitempty"`
	Status        string `json:"status"`
	ChunkCount    int    `json:"chunk_count"`
	EmbeddedCount int    `json:"embedded_count"`
	Error         string `json:"error,omitempty"`
}

// IngestReport summarizes an ingestion run: which documents succeeded, which
// failed and why. Per-document failures are isolated here rather than aborting
// the run; only configuration errors abort.
type IngestReport struct {
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Total      int              `json:"total"`
	Succeeded  int              `json:"succeeded"`
	Partial    int              `json:"partial"`
	Failed     int              `json:"failed"`
	Documents  []DocumentReport `json:"documents"`
}

// Add records one document outcome and updates the counters.
func (r *IngestReport) Add(doc DocumentReport) {
	r.Documents = append(r.Documents, doc)
	r.Total++
	switch doc.Status {
	case StatusCompleted:
		r.Succeeded++
	case StatusPartial:
		r.Partial++
	default:
		r.Failed++
	}
}
