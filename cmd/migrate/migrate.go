package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"legal-docs-rag/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/migrate/migrate.go <command>")
		fmt.Println("Commands:")
		fmt.Println("  create-indexes      - Create the document and chunk collection indexes")
		fmt.Println("  vector-index-def    - Print the Atlas vector search index definition")
		os.Exit(1)
	}

	command := os.Args[1]

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	switch command {
	case "create-indexes":
		// ConnectMongoDB creates the collection indexes on startup.
		client, err := config.ConnectMongoDB(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			client.Disconnect(ctx)
		}()
		fmt.Println("Indexes created successfully!")

	case "vector-index-def":
		// Atlas vector search indexes are created through the Atlas API or UI,
		// not the driver. Print the definition to paste there.
		fmt.Printf(`Create this index on the "chunks" collection (name: %s):

{
  "fields": [
    {
      "type": "vector",
      "path": "embedding",
      "numDimensions": %d,
      "similarity": "cosine"
    },
    {
      "type": "filter",
      "path": "embedded"
    },
    {
      "type": "filter",
      "path": "document_id"
    }
  ]
}
`, cfg.VectorIndexName, cfg.EmbeddingDimension)

	default:
		log.Fatalf("Unknown command: %s", command)
	}
}
