package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter    metric.Int64Counter
	RequestDuration   metric.Float64Histogram
	DocumentsIngested metric.Int64Counter
	ChunksStored      metric.Int64Counter
	EmbeddingFailures metric.Int64Counter
	QueryCounter      metric.Int64Counter
	QueryDuration     metric.Float64Histogram
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("legal-docs-rag")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	documentsIngested, err := meter.Int64Counter(
		"ingest.documents.total",
		metric.WithDescription("Documents ingested, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	chunksStored, err := meter.Int64Counter(
		"ingest.chunks.stored",
		metric.WithDescription("Chunks persisted with the store"),
	)
	if err != nil {
		return nil, err
	}

	embeddingFailures, err := meter.Int64Counter(
		"embeddings.batch_failures",
		metric.WithDescription("Embedding batches that exhausted retries"),
	)
	if err != nil {
		return nil, err
	}

	queryCounter, err := meter.Int64Counter(
		"retrieval.queries.total",
		metric.WithDescription("Retrieval queries, by status"),
	)
	if err != nil {
		return nil, err
	}

	queryDuration, err := meter.Float64Histogram(
		"retrieval.query.duration",
		metric.WithDescription("Retrieval query duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:    requestCounter,
		RequestDuration:   requestDuration,
		DocumentsIngested: documentsIngested,
		ChunksStored:      chunksStored,
		EmbeddingFailures: embeddingFailures,
		QueryCounter:      queryCounter,
		QueryDuration:     queryDuration,
	}, nil
}

// RecordIngest records one document ingestion outcome.
func (m *Metrics) RecordIngest(ctx context.Context, status string, chunks int) {
	if m == nil {
		return
	}
	m.DocumentsIngested.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.ChunksStored.Add(ctx, int64(chunks))
}

// RecordQuery records one retrieval query outcome.
func (m *Metrics) RecordQuery(ctx context.Context, status string, seconds float64) {
	if m == nil {
		return
	}
	m.QueryCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.QueryDuration.Record(ctx, seconds)
}
