package ai

import (
	"context"
	"fmt"
	"log"
	"time"

	"legal-docs-rag/internal/config"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// GeminiEmbedder is the Google Generative AI embedding provider. Calls are
// rate limited and run behind a circuit breaker so a provider outage degrades
// ingestion throughput instead of hammering a dead endpoint.
type GeminiEmbedder struct {
	client      *genai.Client
	model       string
	dimension   int
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
}

// NewGeminiEmbedder creates an embedder for the configured model.
func NewGeminiEmbedder(ctx context.Context, cfg *config.Config) (*GeminiEmbedder, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiEmbeddings",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	// Free-tier default is 1500 RPM; stay under it with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(1500*0.9/60.0), 20)

	return &GeminiEmbedder{
		client:      client,
		model:       cfg.GoogleEmbeddingsModel,
		dimension:   cfg.EmbeddingDimension,
		breaker:     breaker,
		rateLimiter: rateLimiter,
	}, nil
}

// EmbedBatch embeds every text in one provider round trip. Output order
// matches input order.
func (g *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := g.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		model := g.client.EmbeddingModel(g.model)
		batch := model.NewBatch()
		for _, text := range texts {
			batch.AddContent(genai.Text(text))
		}
		return model.BatchEmbedContents(ctx, batch)
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embedding call failed: %w", err)
	}

	resp := result.(*genai.BatchEmbedContentsResponse)
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("gemini returned no embedding for text %d", i)
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// Dimension returns the configured vector dimension for the deployment.
func (g *GeminiEmbedder) Dimension() int {
	return g.dimension
}

// Close releases the underlying client.
func (g *GeminiEmbedder) Close() error {
	return g.client.Close()
}
