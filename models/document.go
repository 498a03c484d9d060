package models

import "time"

// Document represents one ingested source file. A document is created once per
// distinct source locator and is never silently overwritten: re-ingesting the
// same locator keeps the same ID, bumps Revision and replaces the chunk set
// atomically.
type Document struct {
	ID            string            `bson:"_id" json:"id"`
	Filename      string            `bson:"filename" json:"filename"`
	SourceLocator string            `bson:"source_locator" json:"source_locator"` // URL or local path
	Metadata      map[string]string `bson:"metadata,omitempty" json:"metadata,omitempty"`
	IngestedAt    time.Time         `bson:"ingested_at" json:"ingested_at"`
	Size          int64             `bson:"size" json:"size"`
	Revision      int               `bson:"revision" json:"revision"`
	Status        string            `bson:"status" json:"status"`
	ErrorMessage  string            `bson:"error_message,omitempty" json:"error_message,omitempty"`
	ChunkCount    int               `bson:"chunk_count" json:"chunk_count"`
}

// Document ingestion status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusPartial    = "partial" // stored, but some chunks have no embedding
	StatusFailed     = "failed"
)

// DocumentSource describes one document to ingest: where to get the bytes and
// what metadata travels with them.
type DocumentSource struct {
	URL      string            `json:"url,omitempty"`
	Path     string            `json:"path,omitempty"`
	Filename string            `json:"filename,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Locator returns the stable identity of the source, preferring the URL.
func (s DocumentSource) Locator() string {
	if s.URL != "" {
		return s.URL
	}
	return s.Path
}
