package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"legal-docs-rag/internal/ai"
	"legal-docs-rag/internal/config"
	"legal-docs-rag/internal/logger"
	"legal-docs-rag/internal/telemetry"
	"legal-docs-rag/middleware"
	"legal-docs-rag/routes"
	"legal-docs-rag/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
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

	// Redis backs the query cache and the async ingestion queue. Both are
	// optional: without Redis queries skip the cache and ingestion runs inline.
	var queryCache *services.QueryCache
	var queueClient *asynq.Client
	if rdb, err := config.NewRedisClient(cfg); err != nil {
		log.Printf("Redis unavailable, continuing without cache and queue: %v", err)
	} else {
		queryCache = services.NewQueryCache(rdb, time.Hour)
		queueClient = asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer queueClient.Close()
	}

	// Telemetry
	var metrics *telemetry.Metrics
	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("legal-docs-rag", cfg.OTLPEndpoint)
		if err != nil {
			log.Printf("Failed to initialize tracer: %v", err)
		} else {
			defer shutdown()
		}
		metrics, err = telemetry.InitMetrics()
		if err != nil {
			log.Printf("Failed to initialize metrics: %v", err)
		}
	}

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

	// Ingestion and query paths
	store := services.NewMongoVectorStore(mongoClient, cfg)
	extractor := services.NewChunkExtractor(services.NewPDFStructurer(), cfg.MaxChunkSize, cfg.ChunkOverlap)
	downloader := services.NewDownloader(cfg.DownloadDir, cfg.DownloadTimeout, cfg.DownloadMaxRetries)
	pipeline := services.NewPipeline(extractor, embeddings, store, downloader, cfg.IngestConcurrency)
	engine := services.NewRetrievalEngine(embeddings, store, queryCache, cfg.QueryTopK, cfg.SimilarityThreshold, cfg.QueryTimeout)

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	if cfg.TracingEnabled {
		router.Use(middleware.TracingMiddleware())
	}
	router.Use(middleware.MetricsMiddleware(metrics))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	// Setup routes
	routes.SetupIngestRoutes(router, cfg, pipeline, queueClient, metrics)
	routes.SetupQueryRoutes(router, cfg, engine, metrics)
	routes.SetupDocumentRoutes(router, store)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
