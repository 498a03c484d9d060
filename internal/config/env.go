package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI string
	DBName   string

	RedisURL      string
	RedisPassword string
	RedisDB       int

	GeminiAPIKey          string
	EmbeddingsProvider    string
	GoogleEmbeddingsModel string
	EmbeddingDimension    int

	MaxChunkSize int
	ChunkOverlap int
	MinChunkSize int

	EmbedBatchSize  int
	EmbedMaxRetries int
	EmbedTimeout    time.Duration

	StructureTimeout time.Duration

	DownloadDir        string
	DownloadTimeout    time.Duration
	DownloadMaxRetries int

	IngestConcurrency int

	QueryTopK           int
	SimilarityThreshold float64
	QueryTimeout        time.Duration

	VectorSearchEnabled bool
	VectorIndexName     string

	ManifestLinkColumn string

	Port        string
	GinMode     string
	CORSOrigins []string

	OTLPEndpoint   string
	TracingEnabled bool
}

func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/legal_docs"),
		DBName:   getEnv("DB_NAME", "legal_docs"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		EmbeddingsProvider:    getEnv("EMBEDDINGS_PROVIDER", "google"),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		EmbeddingDimension:    getEnvInt("EMBEDDING_DIMENSION", 768),

		MaxChunkSize: getEnvInt("MAX_CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),
		MinChunkSize: getEnvInt("MIN_CHUNK_SIZE", 100),

		EmbedBatchSize:  getEnvInt("EMBED_BATCH_SIZE", 32),
		EmbedMaxRetries: getEnvInt("EMBED_MAX_RETRIES", 3),
		EmbedTimeout:    getEnvDuration("EMBED_TIMEOUT", 60*time.Second),

		StructureTimeout: getEnvDuration("STRUCTURE_TIMEOUT", 2*time.Minute),

		DownloadDir:        getEnv("DOWNLOAD_DIR", "data/raw"),
		DownloadTimeout:    getEnvDuration("DOWNLOAD_TIMEOUT", 30*time.Second),
		DownloadMaxRetries: getEnvInt("DOWNLOAD_MAX_RETRIES", 3),

		IngestConcurrency: getEnvInt("INGEST_CONCURRENCY", 4),

		QueryTopK:           getEnvInt("QUERY_TOP_K", 10),
		SimilarityThreshold: getEnvFloat("SIMILARITY_THRESHOLD", 0.7),
		QueryTimeout:        getEnvDuration("QUERY_TIMEOUT", 15*time.Second),

		VectorSearchEnabled: getEnvBool("VECTOR_SEARCH_ENABLED", false),
		VectorIndexName:     getEnv("MONGODB_VECTOR_INDEX", "chunks_vector"),

		ManifestLinkColumn: getEnv("MANIFEST_LINK_COLUMN", "G"),

		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),

		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
	}

	// Validate required fields
	if cfg.EmbeddingsProvider == "google" && cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if cfg.EmbeddingDimension <= 0 {
		return nil, fmt.Errorf("EMBEDDING_DIMENSION must be positive, got %d", cfg.EmbeddingDimension)
	}
	if cfg.ChunkOverlap >= cfg.MaxChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than MAX_CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.MaxChunkSize)
	}
	if cfg.EmbedBatchSize <= 0 {
		return nil, fmt.Errorf("EMBED_BATCH_SIZE must be positive, got %d", cfg.EmbedBatchSize)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
