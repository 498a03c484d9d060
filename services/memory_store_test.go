package services

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"legal-docs-rag/models"
)

func storeTestChunks(docID string, n int, embedded bool) []models.Chunk {
	chunks := make([]models.Chunk, n)
	for i := range chunks {
		chunks[i] = models.Chunk{
			ID:         docID + "-chunk-" + strconv.Itoa(i),
			DocumentID: docID,
			Position:   i,
			Content:    "content " + strconv.Itoa(i),
			Embedded:   embedded,
		}
		if embedded {
			chunks[i].Embedding = []float32{1, float32(i)}
		} else {
			chunks[i].EmbeddingError = "provider 503"
		}
	}
	return chunks
}

func TestMemoryStoreReingestKeepsDocumentID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.StoreDocument(ctx, &models.Document{SourceLocator: "https://example.com/lei.pdf", Filename: "lei.pdf"})
	if err != nil {
		t.Fatalf("first store failed: %v", err)
	}
	if err := store.StoreChunks(ctx, first, storeTestChunks(first, 3, true)); err != nil {
		t.Fatalf("first chunk store failed: %v", err)
	}

	second, err := store.StoreDocument(ctx, &models.Document{SourceLocator: "https://example.com/lei.pdf", Filename: "lei-v2.pdf"})
	if err != nil {
		t.Fatalf("re-ingest failed: %v", err)
	}
	if second != first {
		t.Fatalf("re-ingest must keep the document ID: %s != %s", second, first)
	}
	if err := store.StoreChunks(ctx, second, storeTestChunks(second, 2, true)); err != nil {
		t.Fatalf("second chunk store failed: %v", err)
	}

	docs, err := store.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("re-ingest must not duplicate documents, got %d", len(docs))
	}
	if docs[0].Revision != 2 {
		t.Errorf("expected revision 2 after re-ingest, got %d", docs[0].Revision)
	}
	if docs[0].ChunkCount != 2 {
		t.Errorf("chunk set not replaced: count %d", docs[0].ChunkCount)
	}
}

func TestMemoryStoreRejectsNonContiguousChunks(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, err := store.StoreDocument(ctx, &models.Document{SourceLocator: "file.pdf"})
	if err != nil {
		t.Fatalf("store failed: %v", err)
	}

	chunks := storeTestChunks(id, 3, true)
	chunks[2].Position = 5

	err = store.StoreChunks(ctx, id, chunks)
	if !errors.Is(err, ErrConsistency) {
		t.Fatalf("expected consistency error, got %v", err)
	}
	// The failed write must not leave a partial set behind.
	results, err := store.Query(ctx, []float32{1, 0}, 10, 0)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("rejected write leaked %d chunks", len(results))
	}
}

func TestMemoryStoreQueryRespectsThreshold(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, err := store.StoreDocument(ctx, &models.Document{SourceLocator: "file.pdf", Filename: "file.pdf"})
	if err != nil {
		t.Fatalf("store failed: %v", err)
	}

	chunks := []models.Chunk{
		{ID: "c0", Position: 0, Content: "aligned", Embedded: true, Embedding: []float32{1, 0}},
		{ID: "c1", Position: 1, Content: "diagonal", Embedded: true, Embedding: []float32{1, 1}},
		{ID: "c2", Position: 2, Content: "orthogonal", Embedded: true, Embedding: []float32{0, 1}},
	}
	if err := store.StoreChunks(ctx, id, chunks); err != nil {
		t.Fatalf("chunk store failed: %v", err)
	}

	results, err := store.Query(ctx, []float32{1, 0}, 10, 0.7)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	// cos(aligned)=1.0, cos(diagonal)~0.707, cos(orthogonal)=0
	if len(results) != 2 {
		t.Fatalf("expected 2 results above 0.7, got %d", len(results))
	}
	if results[0].ChunkID != "c0" || results[1].ChunkID != "c1" {
		t.Errorf("unexpected order: %s, %s", results[0].ChunkID, results[1].ChunkID)
	}
	if results[0].Filename != "file.pdf" {
		t.Errorf("document context not joined: %q", results[0].Filename)
	}
}

func TestMemoryStoreQuerySkipsUnembeddedChunks(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, _ := store.StoreDocument(ctx, &models.Document{SourceLocator: "file.pdf"})
	chunks := storeTestChunks(id, 2, true)
	chunks[1].Embedded = false
	chunks[1].Embedding = nil
	chunks[1].EmbeddingError = "provider 503"
	if err := store.StoreChunks(ctx, id, chunks); err != nil {
		t.Fatalf("chunk store failed: %v", err)
	}

	results, err := store.Query(ctx, []float32{1, 0}, 10, 0)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	for _, r := range results {
		if r.ChunkID == chunks[1].ID {
			t.Fatal("unembedded chunk surfaced in query results")
		}
	}
}

func TestMemoryStoreDeleteCascades(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, _ := store.StoreDocument(ctx, &models.Document{SourceLocator: "file.pdf"})
	if err := store.StoreChunks(ctx, id, storeTestChunks(id, 3, true)); err != nil {
		t.Fatalf("chunk store failed: %v", err)
	}

	if err := store.DeleteDocument(ctx, id); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, err := store.GetDocument(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	results, err := store.Query(ctx, []float32{1, 0}, 10, 0)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("delete left %d chunks behind", len(results))
	}

	// Same locator can be ingested again as a fresh document.
	fresh, err := store.StoreDocument(ctx, &models.Document{SourceLocator: "file.pdf"})
	if err != nil {
		t.Fatalf("re-store after delete failed: %v", err)
	}
	if fresh == id {
		t.Errorf("deleted document ID was reused")
	}
}

func TestMemoryStoreDeleteUnknownDocument(t *testing.T) {
	store := NewMemoryStore()
	if err := store.DeleteDocument(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStorePendingAndAttach(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, _ := store.StoreDocument(ctx, &models.Document{SourceLocator: "file.pdf"})
	chunks := storeTestChunks(id, 2, true)
	chunks[1].Embedded = false
	chunks[1].Embedding = nil
	chunks[1].EmbeddingError = "provider 503"
	if err := store.StoreChunks(ctx, id, chunks); err != nil {
		t.Fatalf("chunk store failed: %v", err)
	}

	doc, _ := store.GetDocument(ctx, id)
	if doc.Status != models.StatusPartial {
		t.Fatalf("document with pending chunks should be partial, got %s", doc.Status)
	}

	pending, err := store.PendingChunks(ctx, 10)
	if err != nil {
		t.Fatalf("pending scan failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != chunks[1].ID {
		t.Fatalf("unexpected pending set: %v", pending)
	}

	if err := store.AttachEmbedding(ctx, chunks[1].ID, []float32{0, 1}); err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	doc, _ = store.GetDocument(ctx, id)
	if doc.Status != models.StatusCompleted {
		t.Errorf("document should be completed after last attach, got %s", doc.Status)
	}
	pending, _ = store.PendingChunks(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("attached chunk still pending")
	}
}
