package services

import (
	"context"
	"math"
	"sort"

	"legal-docs-rag/models"
)

// DocumentStore is durable, indexed storage of documents and their chunks with
// vectors. It owns referential integrity (a document owns its chunks; deletes
// cascade) and the similarity index.
//
// Re-ingest policy: StoreDocument is idempotent keyed by source locator and
// updates in place: the existing document keeps its ID, its revision is
// bumped and the following StoreChunks atomically replaces the prior chunk
// set. A locator never produces duplicate rows.
type DocumentStore interface {
	// StoreDocument creates or updates the document row for doc.SourceLocator
	// and returns the stable document ID.
	StoreDocument(ctx context.Context, doc *models.Document) (string, error)

	// StoreChunks atomically replaces the document's chunk set: either every
	// chunk is persisted or none are. Concurrent readers never observe a
	// partial set.
	StoreChunks(ctx context.Context, documentID string, chunks []models.Chunk) error

	// Query returns at most k chunks with similarity >= threshold, ranked by
	// descending similarity. It never pads with low-similarity results.
	Query(ctx context.Context, vector []float32, k int, threshold float64) ([]models.RetrievedChunk, error)

	// DeleteDocument removes the document and cascades to all of its chunks
	// atomically.
	DeleteDocument(ctx context.Context, documentID string) error

	GetDocument(ctx context.Context, documentID string) (*models.Document, error)
	ListDocuments(ctx context.Context) ([]models.Document, error)

	// PendingChunks returns chunks whose embedding attempt failed, for the
	// retry sweep.
	PendingChunks(ctx context.Context, limit int) ([]models.Chunk, error)

	// AttachEmbedding sets the embedding of a pending chunk. This is the only
	// permitted chunk mutation after creation.
	AttachEmbedding(ctx context.Context, chunkID string, vector []float32) error
}

// cosineSimilarity computes cosine similarity between two vectors of equal
// dimension; zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// rankCandidates applies the result contract shared by every store
// implementation: drop candidates below the threshold, order by strictly
// descending similarity with ties broken by (document ID, ascending position)
// for reproducibility, deduplicate chunks, cap at k and assign ranks.
func rankCandidates(candidates []models.RetrievedChunk, k int, threshold float64) []models.RetrievedChunk {
	filtered := make([]models.RetrievedChunk, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if c.Similarity < threshold || seen[c.ChunkID] {
			continue
		}
		seen[c.ChunkID] = true
		filtered = append(filtered, c)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Similarity != filtered[j].Similarity {
			return filtered[i].Similarity > filtered[j].Similarity
		}
		if filtered[i].DocumentID != filtered[j].DocumentID {
			return filtered[i].DocumentID < filtered[j].DocumentID
		}
		return filtered[i].Position < filtered[j].Position
	})

	if k > 0 && len(filtered) > k {
		filtered = filtered[:k]
	}
	for i := range filtered {
		filtered[i].Rank = i + 1
	}
	return filtered
}
