package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"legal-docs-rag/internal/logger"
	"legal-docs-rag/models"
)

// Pipeline sequences extraction, embedding and storage for ingestion.
// Independent documents run concurrently up to the configured worker limit;
// within one document the chunk sequence stays ordered through position
// assignment. Per-document failures are isolated into the run report;
// configuration errors abort the whole run.
type Pipeline struct {
	extractor   *ChunkExtractor
	embeddings  *EmbeddingService
	store       DocumentStore
	downloader  *Downloader
	concurrency int
}

// NewPipeline wires the ingestion path.
func NewPipeline(extractor *ChunkExtractor, embeddings *EmbeddingService, store DocumentStore, downloader *Downloader, concurrency int) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		extractor:   extractor,
		embeddings:  embeddings,
		store:       store,
		downloader:  downloader,
		concurrency: concurrency,
	}
}

// IngestSources ingests a batch of document sources. maxDocuments > 0 limits
// the run (partial/test runs); 0 means no limit. The returned report lists
// every document's outcome. The error return is reserved for fatal
// configuration errors.
func (p *Pipeline) IngestSources(ctx context.Context, sources []models.DocumentSource, maxDocuments int) (*models.IngestReport, error) {
	if maxDocuments > 0 && len(sources) > maxDocuments {
		logger.Info("limiting ingestion run", "max_documents", maxDocuments, "total", len(sources))
		sources = sources[:maxDocuments]
	}

	report := &models.IngestReport{StartedAt: time.Now().UTC()}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		fatalErr error
	)
	sem := make(chan struct{}, p.concurrency)

	for _, src := range sources {
		acquired := false
		select {
		case sem <- struct{}{}:
			acquired = true
		case <-runCtx.Done():
		}
		if runCtx.Err() != nil {
			// Cancellation can race the acquire; give the slot back so
			// in-flight workers are never starved of releases.
			if acquired {
				<-sem
			}
			break
		}

		wg.Add(1)
		go func(src models.DocumentSource) {
			defer wg.Done()
			defer func() { <-sem }()

			docReport, err := p.IngestDocument(runCtx, src)

			mu.Lock()
			defer mu.Unlock()
			report.Add(docReport)
			if err != nil && errors.Is(err, ErrConfiguration) && fatalErr == nil {
				// Systemic misconfiguration: stop handing out new work.
				fatalErr = err
				cancel()
			}
		}(src)
	}

	wg.Wait()
	report.FinishedAt = time.Now().UTC()

	logger.Info("ingestion run finished",
		"total", report.Total, "succeeded", report.Succeeded,
		"partial", report.Partial, "failed", report.Failed)

	if fatalErr != nil {
		return report, fatalErr
	}
	return report, nil
}

// IngestDocument runs the full pipeline for one source: resolve bytes,
// extract chunks, embed them in batches and persist document + chunk set.
// The returned error is non-nil only for fatal configuration errors;
// everything else is folded into the report entry.
func (p *Pipeline) IngestDocument(ctx context.Context, src models.DocumentSource) (models.DocumentReport, error) {
	locator := src.Locator()
	docReport := models.DocumentReport{SourceLocator: locator, Status: models.StatusFailed}

	data, filename, err := p.resolveSource(ctx, src)
	if err != nil {
		docReport.Error = err.Error()
		logger.Error("failed to resolve source", "source", locator, "error", err)
		return docReport, nil
	}

	extraction := p.extractor.Extract(ctx, data, locator)
	if extraction.Status != ExtractionSuccess {
		docReport.Error = extraction.ErrorMessage
		logger.Error("extraction failed", "source", locator, "error", extraction.ErrorMessage)
		return docReport, nil
	}
	chunks := extraction.Chunks

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := p.embeddings.EmbedChunks(ctx, texts)
	if err != nil {
		// Only configuration errors surface here; they abort the run.
		docReport.Error = err.Error()
		return docReport, err
	}

	embedded := 0
	for i := range chunks {
		if vectors[i].Err != nil {
			chunks[i].EmbeddingError = vectors[i].Err.Error()
			continue
		}
		chunks[i].Embedding = vectors[i].Vector
		chunks[i].Embedded = true
		embedded++
	}

	doc := &models.Document{
		Filename:      filename,
		SourceLocator: locator,
		Metadata:      src.Metadata,
		Size:          int64(len(data)),
	}
	docID, err := p.store.StoreDocument(ctx, doc)
	if err != nil {
		docReport.Error = fmt.Sprintf("failed to store document: %v", err)
		logger.Error("document store failed", "source", locator, "error", err)
		return docReport, nil
	}
	docReport.DocumentID = docID

	for i := range chunks {
		chunks[i].DocumentID = docID
	}
	if err := p.store.StoreChunks(ctx, docID, chunks); err != nil {
		docReport.Error = fmt.Sprintf("failed to store chunks: %v", err)
		logger.Error("chunk store failed", "source", locator, "error", err)
		return docReport, nil
	}

	docReport.ChunkCount = len(chunks)
	docReport.EmbeddedCount = embedded
	if embedded == len(chunks) {
		docReport.Status = models.StatusCompleted
	} else {
		docReport.Status = models.StatusPartial
	}

	logger.Info("ingested document",
		"source", locator, "document_id", docID,
		"chunks", len(chunks), "embedded", embedded)
	return docReport, nil
}

// RetryFailedEmbeddings re-embeds chunks whose embedding attempt failed
// during ingestion. Called periodically from the worker.
func (p *Pipeline) RetryFailedEmbeddings(ctx context.Context, limit int) (int, error) {
	pending, err := p.store.PendingChunks(ctx, limit)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	texts := make([]string, len(pending))
	for i, c := range pending {
		texts[i] = c.Content
	}
	vectors, err := p.embeddings.EmbedChunks(ctx, texts)
	if err != nil {
		return 0, err
	}

	attached := 0
	for i, c := range pending {
		if vectors[i].Err != nil {
			continue
		}
		if err := p.store.AttachEmbedding(ctx, c.ID, vectors[i].Vector); err != nil {
			logger.Warn("failed to attach retried embedding", "chunk_id", c.ID, "error", err)
			continue
		}
		attached++
	}

	if attached > 0 {
		logger.Info("re-embedded failed chunks", "attached", attached, "pending", len(pending))
	}
	return attached, nil
}

// resolveSource turns a DocumentSource into bytes plus a display filename,
// downloading URLs into the local cache first.
func (p *Pipeline) resolveSource(ctx context.Context, src models.DocumentSource) ([]byte, string, error) {
	filename := src.Filename

	localPath := src.Path
	if src.URL != "" {
		if filename == "" {
			filename = filenameFromURL(src.URL, 1)
		}
		if p.downloader == nil {
			return nil, "", fmt.Errorf("%w: no downloader configured for URL source %s", ErrConfiguration, src.URL)
		}
		path, err := p.downloader.Fetch(ctx, src.URL, filename)
		if err != nil {
			return nil, "", err
		}
		localPath = path
	}

	if localPath == "" {
		return nil, "", fmt.Errorf("%w: source has neither URL nor path", ErrInput)
	}
	if filename == "" {
		filename = filenameFromURL(localPath, 1)
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to read %s: %v", ErrInput, localPath, err)
	}
	return data, filename, nil
}
