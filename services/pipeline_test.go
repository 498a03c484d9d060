package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"legal-docs-rag/models"
)

func writeTestFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("%PDF-1.4 test bytes"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

func newTestPipeline(t *testing.T, embedder Embedder, store DocumentStore) *Pipeline {
	t.Helper()
	structurer := &fakeStructurer{sections: []Section{
		{Path: []string{"1. Objeto"}, Text: "First section body with Art. 1."},
		{Path: []string{"2. Prazos"}, Text: "Second section body."},
	}}
	// Batch size 1 so a failing batch maps to exactly one chunk.
	svc, err := NewEmbeddingService(embedder, embedder.Dimension(), 1, 2, time.Second)
	if err != nil {
		t.Fatalf("failed to create embedding service: %v", err)
	}
	svc.baseBackoff = time.Millisecond
	extractor := NewChunkExtractor(structurer, 1000, 200)
	return NewPipeline(extractor, svc, store, nil, 2)
}

func TestPipelineIngestsBatch(t *testing.T) {
	dir := t.TempDir()
	store := NewMemoryStore()
	pipeline := newTestPipeline(t, &fakeEmbedder{dimension: 4}, store)

	sources := []models.DocumentSource{
		{Path: writeTestFile(t, dir, "lei_1.pdf")},
		{Path: writeTestFile(t, dir, "lei_2.pdf")},
		{Path: writeTestFile(t, dir, "lei_3.pdf")},
	}

	report, err := pipeline.IngestSources(context.Background(), sources, 0)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Total != 3 || report.Succeeded != 3 {
		t.Fatalf("unexpected report: total=%d succeeded=%d failed=%d", report.Total, report.Succeeded, report.Failed)
	}

	docs, err := store.ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 stored documents, got %d", len(docs))
	}
	for _, doc := range docs {
		if doc.Status != models.StatusCompleted {
			t.Errorf("document %s not completed: %s", doc.SourceLocator, doc.Status)
		}
		if doc.ChunkCount != 2 {
			t.Errorf("document %s has %d chunks, want 2", doc.SourceLocator, doc.ChunkCount)
		}
	}
}

func TestPipelineIsolatesPerDocumentFailures(t *testing.T) {
	dir := t.TempDir()
	store := NewMemoryStore()
	pipeline := newTestPipeline(t, &fakeEmbedder{dimension: 4}, store)

	sources := []models.DocumentSource{
		{Path: writeTestFile(t, dir, "good.pdf")},
		{Path: filepath.Join(dir, "missing.pdf")},
	}

	report, err := pipeline.IngestSources(context.Background(), sources, 0)
	if err != nil {
		t.Fatalf("per-document failure must not abort the run: %v", err)
	}
	if report.Succeeded != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report: succeeded=%d failed=%d", report.Succeeded, report.Failed)
	}
	for _, doc := range report.Documents {
		if doc.Status == models.StatusFailed && doc.Error == "" {
			t.Errorf("failed document %s carries no error", doc.SourceLocator)
		}
	}
}

func TestPipelineMarksPartialOnEmbeddingFailure(t *testing.T) {
	dir := t.TempDir()
	store := NewMemoryStore()

	// The first chunk's batch fails permanently; the document still lands,
	// flagged partial with the failed chunk held for the retry sweep.
	embedder := &fakeEmbedder{
		dimension:     4,
		failBatchWith: map[string]error{"First section body with Art. 1.": errors.New("provider 503")},
	}
	pipeline := newTestPipeline(t, embedder, store)

	report, err := pipeline.IngestSources(context.Background(), []models.DocumentSource{
		{Path: writeTestFile(t, dir, "lei.pdf")},
	}, 0)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Partial != 1 {
		t.Fatalf("expected 1 partial document, got %+v", report)
	}

	pending, err := store.PendingChunks(context.Background(), 10)
	if err != nil {
		t.Fatalf("pending scan failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending chunk, got %d", len(pending))
	}
}

func TestPipelineConfigurationErrorAbortsRun(t *testing.T) {
	dir := t.TempDir()

	embedder := &wrongDimensionEmbedder{fakeEmbedder: fakeEmbedder{dimension: 4}, actual: 2}
	store := NewMemoryStore()
	pipeline := newTestPipeline(t, embedder, store)

	_, err := pipeline.IngestSources(context.Background(), []models.DocumentSource{
		{Path: writeTestFile(t, dir, "lei.pdf")},
	}, 0)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error to abort the run, got %v", err)
	}
}

func TestPipelineHonorsMaxDocuments(t *testing.T) {
	dir := t.TempDir()
	store := NewMemoryStore()
	pipeline := newTestPipeline(t, &fakeEmbedder{dimension: 4}, store)

	var sources []models.DocumentSource
	for i := 0; i < 5; i++ {
		sources = append(sources, models.DocumentSource{Path: writeTestFile(t, dir, "lei_"+strconv.Itoa(i)+".pdf")})
	}

	report, err := pipeline.IngestSources(context.Background(), sources, 2)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Total != 2 {
		t.Fatalf("expected run limited to 2 documents, got %d", report.Total)
	}
}

func TestPipelineCancelledContextDispatchesNothing(t *testing.T) {
	dir := t.TempDir()
	store := NewMemoryStore()
	pipeline := newTestPipeline(t, &fakeEmbedder{dimension: 4}, store)

	sources := []models.DocumentSource{
		{Path: writeTestFile(t, dir, "lei_1.pdf")},
		{Path: writeTestFile(t, dir, "lei_2.pdf")},
		{Path: writeTestFile(t, dir, "lei_3.pdf")},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := pipeline.IngestSources(ctx, sources, 0)
	if err != nil {
		t.Fatalf("cancelled run must still return its report: %v", err)
	}
	if report.Total != 0 {
		t.Fatalf("expected no documents dispatched on a cancelled context, got %d", report.Total)
	}
	docs, _ := store.ListDocuments(context.Background())
	if len(docs) != 0 {
		t.Errorf("cancelled run stored %d documents", len(docs))
	}
}

func TestPipelineRetryFailedEmbeddings(t *testing.T) {
	dir := t.TempDir()
	store := NewMemoryStore()

	embedder := &fakeEmbedder{
		dimension:     4,
		failBatchWith: map[string]error{"First section body with Art. 1.": errors.New("provider 503")},
	}
	pipeline := newTestPipeline(t, embedder, store)

	if _, err := pipeline.IngestSources(context.Background(), []models.DocumentSource{
		{Path: writeTestFile(t, dir, "lei.pdf")},
	}, 0); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// Provider recovered: the sweep picks the pending chunk back up.
	embedder.failBatchWith = nil
	attached, err := pipeline.RetryFailedEmbeddings(context.Background(), 10)
	if err != nil {
		t.Fatalf("retry sweep failed: %v", err)
	}
	if attached != 1 {
		t.Fatalf("expected 1 re-embedded chunk, got %d", attached)
	}

	pending, _ := store.PendingChunks(context.Background(), 10)
	if len(pending) != 0 {
		t.Errorf("chunk still pending after sweep")
	}
}

func TestPipelineReingestReplacesChunks(t *testing.T) {
	dir := t.TempDir()
	store := NewMemoryStore()
	pipeline := newTestPipeline(t, &fakeEmbedder{dimension: 4}, store)

	src := models.DocumentSource{Path: writeTestFile(t, dir, "lei.pdf")}

	first, err := pipeline.IngestDocument(context.Background(), src)
	if err != nil || first.Status != models.StatusCompleted {
		t.Fatalf("first ingest failed: %v / %+v", err, first)
	}
	second, err := pipeline.IngestDocument(context.Background(), src)
	if err != nil || second.Status != models.StatusCompleted {
		t.Fatalf("re-ingest failed: %v / %+v", err, second)
	}
	if second.DocumentID != first.DocumentID {
		t.Errorf("re-ingest changed the document ID")
	}

	docs, _ := store.ListDocuments(context.Background())
	if len(docs) != 1 {
		t.Fatalf("re-ingest duplicated the document: %d rows", len(docs))
	}
	if docs[0].ChunkCount != 2 {
		t.Errorf("unexpected chunk count after re-ingest: %d", docs[0].ChunkCount)
	}
}
