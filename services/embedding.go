package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"legal-docs-rag/internal/logger"
)

// Embedder is the external embedding capability. Implementations map each
// text to a fixed-dimension vector; vectors are computed independently of
// batch membership.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// ChunkVector is the per-chunk embedding outcome. Err is set for every chunk
// of a batch that kept failing after retries; such chunks are stored as
// "embedding pending" and picked up by the retry sweep.
type ChunkVector struct {
	Vector []float32
	Err    error
}

// EmbeddingService batches chunk texts through an Embedder with bounded
// retries and backoff. Output order matches input order exactly; one failed
// batch never aborts the rest of the ingestion. A vector of the wrong
// dimension is a configuration error and aborts the whole run.
type EmbeddingService struct {
	embedder    Embedder
	dimension   int
	batchSize   int
	maxRetries  int
	callTimeout time.Duration
	baseBackoff time.Duration
}

// NewEmbeddingService wires an Embedder with batching and retry policy.
func NewEmbeddingService(embedder Embedder, dimension, batchSize, maxRetries int, callTimeout time.Duration) (*EmbeddingService, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: embedding dimension must be positive, got %d", ErrConfiguration, dimension)
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: embed batch size must be positive, got %d", ErrConfiguration, batchSize)
	}
	if embedder.Dimension() != dimension {
		return nil, fmt.Errorf("%w: embedder produces dimension %d, configured %d", ErrConfiguration, embedder.Dimension(), dimension)
	}
	return &EmbeddingService{
		embedder:    embedder,
		dimension:   dimension,
		batchSize:   batchSize,
		maxRetries:  maxRetries,
		callTimeout: callTimeout,
		baseBackoff: time.Second,
	}, nil
}

// EmbedChunks embeds all texts in order. The returned slice always has
// len(texts) entries; entries of failed batches carry an error instead of a
// vector. The only error returned is a fatal configuration error.
func (s *EmbeddingService) EmbedChunks(ctx context.Context, texts []string) ([]ChunkVector, error) {
	results := make([]ChunkVector, len(texts))

	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		vectors, err := s.embedBatchWithRetry(ctx, batch)
		if err != nil {
			if isFatal(err) {
				return nil, err
			}
			logger.Warn("embedding batch failed, marking chunks",
				"batch_start", start, "batch_size", len(batch), "error", err)
			for i := range batch {
				results[start+i] = ChunkVector{Err: err}
			}
			continue
		}
		for i, vec := range vectors {
			results[start+i] = ChunkVector{Vector: vec}
		}
	}

	return results, nil
}

// EmbedQuery embeds a single query text with the same retry policy.
func (s *EmbeddingService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.embedBatchWithRetry(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Dimension returns the configured vector dimension.
func (s *EmbeddingService) Dimension() int {
	return s.dimension
}

func (s *EmbeddingService) embedBatchWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff between attempts
			backoff := s.baseBackoff << (attempt - 1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: embedding cancelled: %v", ErrServiceUnavailable, ctx.Err())
			}
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if s.callTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, s.callTimeout)
		}
		vectors, err := s.embedder.EmbedBatch(callCtx, batch)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			if isFatal(err) {
				return nil, err
			}
			lastErr = err
			continue
		}

		if err := s.validate(batch, vectors); err != nil {
			return nil, err
		}
		return vectors, nil
	}

	return nil, fmt.Errorf("%w: embedding failed after %d attempts: %v", ErrServiceUnavailable, s.maxRetries, lastErr)
}

// validate enforces the hard contract: one vector per input text, every
// vector at exactly the configured dimensionality. A mismatch is systemic,
// never per-document.
func (s *EmbeddingService) validate(batch []string, vectors [][]float32) error {
	if len(vectors) != len(batch) {
		return fmt.Errorf("%w: embedder returned %d vectors for %d texts", ErrConfiguration, len(vectors), len(batch))
	}
	for i, vec := range vectors {
		if len(vec) != s.dimension {
			return fmt.Errorf("%w: vector %d has dimension %d, configured %d", ErrConfiguration, i, len(vec), s.dimension)
		}
	}
	return nil
}

func isFatal(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
