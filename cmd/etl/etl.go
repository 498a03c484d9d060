package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"legal-docs-rag/internal/ai"
	"legal-docs-rag/internal/config"
	"legal-docs-rag/internal/logger"
	"legal-docs-rag/models"
	"legal-docs-rag/services"
)

// One-shot batch ingestion: read a manifest of document links, download and
// ingest every document, print the run report and exit non-zero if anything
// failed.
func main() {
	manifestPath := flag.String("manifest", "", "path to an .xlsx manifest, or an http(s) URL of an HTML index page")
	linkColumn := flag.String("link-column", "", "manifest column holding document links (default from MANIFEST_LINK_COLUMN)")
	maxDocuments := flag.Int("max-documents", 0, "limit the run to the first N documents (0 = no limit)")
	reportPath := flag.String("report", "", "write the JSON run report to this file")
	flag.Parse()

	if *manifestPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)
	if *linkColumn == "" {
		*linkColumn = cfg.ManifestLinkColumn
	}

	sources, err := loadManifest(*manifestPath, *linkColumn, cfg.DownloadTimeout)
	if err != nil {
		log.Fatal("Failed to read manifest:", err)
	}
	if len(sources) == 0 {
		log.Fatal("Manifest contains no document links")
	}
	log.Printf("Manifest lists %d documents", len(sources))

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

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

	report, runErr := pipeline.IngestSources(context.Background(), sources, *maxDocuments)
	printReport(report)

	if *reportPath != "" {
		if err := writeReport(*reportPath, report); err != nil {
			log.Printf("Failed to write report: %v", err)
		}
	}

	if runErr != nil {
		log.Fatal("Run aborted:", runErr)
	}
	if report.Failed > 0 {
		os.Exit(1)
	}
}

// loadManifest reads document sources from an Excel file or an HTML index URL.
func loadManifest(path, linkColumn string, timeout time.Duration) ([]models.DocumentSource, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		client := &http.Client{Timeout: timeout}
		resp, err := client.Get(path)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch index page: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("index page returned status %d", resp.StatusCode)
		}
		return services.ReadHTMLManifest(resp.Body, path)
	}
	return services.ReadExcelManifest(path, linkColumn)
}

func printReport(report *models.IngestReport) {
	fmt.Printf("\nIngestion run: %d total, %d succeeded, %d partial, %d failed (%.1fs)\n",
		report.Total, report.Succeeded, report.Partial, report.Failed,
		report.FinishedAt.Sub(report.StartedAt).Seconds())
	for _, doc := range report.Documents {
		line := fmt.Sprintf("  [%s] %s", doc.Status, doc.SourceLocator)
		if doc.ChunkCount > 0 {
			line += fmt.Sprintf(" (%d chunks, %d embedded)", doc.ChunkCount, doc.EmbeddedCount)
		}
		if doc.Error != "" {
			line += ": " + doc.Error
		}
		fmt.Println(line)
	}
}

func writeReport(path string, report *models.IngestReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
