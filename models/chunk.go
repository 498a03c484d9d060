package models

import "time"

// PageSpan is the inclusive page range a chunk was extracted from.
type PageSpan struct {
	First int `bson:"first" json:"first"`
	Last  int `bson:"last" json:"last"`
}

// Chunk is a contiguous span of document text, the unit of embedding and
// retrieval. Chunks are immutable after creation except for embedding
// attachment; corrections re-ingest the whole document's chunk set.
//
// Invariants: positions within a document are contiguous from 0 and strictly
// increasing, and hierarchy paths never move backwards in document order.
type Chunk struct {
	ID             string            `bson:"_id" json:"id"`
	DocumentID     string            `bson:"document_id" json:"document_id"`
	Revision       int               `bson:"revision" json:"revision"`
	Position       int               `bson:"position" json:"position"`
	Content        string            `bson:"content" json:"content"`
	HierarchyPath  []string          `bson:"hierarchy_path,omitempty" json:"hierarchy_path,omitempty"`
	PageSpan       PageSpan          `bson:"page_span" json:"page_span"`
	Metadata       map[string]string `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Embedding      []float32         `bson:"embedding,omitempty" json:"-"`
	Embedded       bool              `bson:"embedded" json:"embedded"`
	EmbeddingError string            `bson:"embedding_error,omitempty" json:"embedding_error,omitempty"`
	CreatedAt      time.Time         `bson:"created_at" json:"created_at"`
}

// RetrievedChunk is an ephemeral query result: a chunk reference with its
// similarity score, rank and joined document context. Never persisted.
type RetrievedChunk struct {
	ChunkID        string            `json:"chunk_id"`
	DocumentID     string            `json:"document_id"`
	Position       int               `json:"position"`
	Content        string            `json:"content"`
	HierarchyPath  []string          `json:"hierarchy_path,omitempty"`
	PageSpan       PageSpan          `json:"page_span"`
	Similarity     float64           `json:"similarity"`
	Rank           int               `json:"rank"`
	Filename       string            `json:"filename,omitempty"`
	SourceMetadata map[string]string `json:"source_metadata,omitempty"`
}

// Retrieval status constants. "empty" means the query worked but nothing
// cleared the similarity threshold; callers must be able to tell that apart
// from a retrieval error.
const (
	RetrievalOK    = "ok"
	RetrievalEmpty = "empty"
	RetrievalError = "error"
)

// RankedResults is the outcome of one retrieval call. Scores are
// non-increasing in rank order and no chunk appears twice.
type RankedResults struct {
	Status  string           `json:"status"`
	Query   string           `json:"query"`
	Results []RetrievedChunk `json:"results"`
	Error   string           `json:"error,omitempty"`
}
