package main

import (
	"context"
	"log"
	"time"

	"legal-docs-rag/internal/ai"
	"legal-docs-rag/internal/config"
	"legal-docs-rag/internal/logger"
	"legal-docs-rag/internal/queue"
	"legal-docs-rag/services"

	"github.com/go-co-op/gocron"
	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	// Embedding provider
	embedder, err := ai.NewGeminiEmbedder(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to initialize embeddings provider:", err)
	}
	defer embedder.Close()

	embeddings, err := services.NewEmbeddingService(embedder, cfg.EmbeddingDimension, cfg.EmbedBatchSize, cfg.EmbedMaxRetries, cfg.EmbedTimeout)
	if err != nil {
		log.Fatal("Failed to initialize embedding service:", err)
	}

	store := services.NewMongoVectorStore(mongoClient, cfg)
	extractor := services.NewChunkExtractor(services.NewPDFStructurer(), cfg.MaxChunkSize, cfg.ChunkOverlap)
	downloader := services.NewDownloader(cfg.DownloadDir, cfg.DownloadTimeout, cfg.DownloadMaxRetries)
	pipeline := services.NewPipeline(extractor, embeddings, store, downloader, cfg.IngestConcurrency)

	// Periodic sweep that re-embeds chunks whose embedding failed during
	// ingestion, so partial documents converge to completed on their own.
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.Every(10).Minutes().Do(func() {
		attached, err := pipeline.RetryFailedEmbeddings(context.Background(), 200)
		if err != nil {
			log.Printf("Embedding retry sweep failed: %v", err)
			return
		}
		if attached > 0 {
			log.Printf("Embedding retry sweep attached %d vectors", attached)
		}
	})
	scheduler.StartAsync()
	defer scheduler.Stop()

	// Redis options for Asynq
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	// Create Asynq server
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.IngestConcurrency,
			Queues: map[string]int{
				"ingest":  6,
				"default": 4,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("Task failed: %s, error: %v", task.Type(), err)
			}),
		},
	)

	// Create task processor
	processor := queue.NewTaskProcessor(pipeline)

	// Create mux and register handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestDocument, processor.HandleIngestDocument)

	log.Println("Starting ingestion worker...")
	log.Printf("   Concurrency: %d", cfg.IngestConcurrency)
	log.Printf("   Redis: %s", redisOpt.Addr)

	// Start the server
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
