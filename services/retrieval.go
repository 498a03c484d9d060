package services

import (
	"context"
	"strings"
	"time"

	"legal-docs-rag/internal/logger"
	"legal-docs-rag/models"
)

// RetrievalEngine answers free-text queries: it embeds the query, runs the
// similarity search with the configured defaults and assembles ranked results
// with document context. An empty result set and a retrieval error are
// distinct outcomes; callers can always tell them apart.
type RetrievalEngine struct {
	embeddings *EmbeddingService
	store      DocumentStore
	cache      *QueryCache // optional

	topK      int
	threshold float64
	timeout   time.Duration
}

// NewRetrievalEngine wires the query path. cache may be nil.
func NewRetrievalEngine(embeddings *EmbeddingService, store DocumentStore, cache *QueryCache, topK int, threshold float64, timeout time.Duration) *RetrievalEngine {
	return &RetrievalEngine{
		embeddings: embeddings,
		store:      store,
		cache:      cache,
		topK:       topK,
		threshold:  threshold,
		timeout:    timeout,
	}
}

// Retrieve runs one query with the engine defaults.
func (r *RetrievalEngine) Retrieve(ctx context.Context, queryText string) *models.RankedResults {
	return r.RetrieveWith(ctx, queryText, r.topK, r.threshold)
}

// RetrieveWith runs one query with explicit k and threshold.
func (r *RetrievalEngine) RetrieveWith(ctx context.Context, queryText string, k int, threshold float64) *models.RankedResults {
	results := &models.RankedResults{Query: queryText}

	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		results.Status = models.RetrievalError
		results.Error = "empty query"
		return results
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	vector := r.cache.Get(ctx, queryText)
	if vector == nil {
		var err error
		vector, err = r.embeddings.EmbedQuery(ctx, queryText)
		if err != nil {
			logger.Error("query embedding failed", "error", err)
			results.Status = models.RetrievalError
			results.Error = "query embedding failed: " + err.Error()
			return results
		}
		r.cache.Set(ctx, queryText, vector)
	}

	ranked, err := r.store.Query(ctx, vector, k, threshold)
	if err != nil {
		logger.Error("similarity query failed", "error", err)
		results.Status = models.RetrievalError
		results.Error = "similarity query failed: " + err.Error()
		return results
	}

	results.Results = ranked
	if len(ranked) == 0 {
		results.Status = models.RetrievalEmpty
	} else {
		results.Status = models.RetrievalOK
	}
	return results
}
