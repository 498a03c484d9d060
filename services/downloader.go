package services

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"legal-docs-rag/internal/logger"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"
)

// Downloader fetches source PDFs over HTTP with bounded timeouts and retries.
// Files already present in the download directory are reused, which keeps
// re-runs of the pipeline cheap and idempotent.
type Downloader struct {
	dir         string
	client      *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// NewDownloader creates a downloader writing into dir.
func NewDownloader(dir string, timeout time.Duration, maxRetries int) *Downloader {
	return &Downloader{
		dir:         dir,
		client:      &http.Client{Timeout: timeout},
		maxRetries:  maxRetries,
		baseBackoff: time.Second,
	}
}

// Fetch downloads url into the download directory as filename and returns the
// local path. Existing files are returned without a network call.
func (d *Downloader) Fetch(ctx context.Context, url, filename string) (string, error) {
	path := filepath.Join(d.dir, filename)

	if _, err := os.Stat(path); err == nil {
		logger.Debug("file already downloaded", "path", path)
		return path, nil
	}

	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download dir: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < d.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := d.baseBackoff << (attempt - 1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", fmt.Errorf("%w: download cancelled: %v", ErrServiceUnavailable, ctx.Err())
			}
		}

		if err := d.fetchOnce(ctx, url, path); err != nil {
			logger.Warn("download attempt failed", "url", url, "attempt", attempt+1, "error", err)
			lastErr = err
			continue
		}
		return path, nil
	}

	return "", fmt.Errorf("%w: failed to download %s after %d attempts: %v", ErrServiceUnavailable, url, d.maxRetries, lastErr)
}

func (d *Downloader) fetchOnce(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: invalid download URL %s: %v", ErrInput, url, err)
	}
	// Request compression explicitly; brotli is not handled by the standard
	// transport, so both encodings are decoded manually below.
	req.Header.Set("Accept-Encoding", "gzip, br")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	var body io.Reader = resp.Body
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		body = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to open gzip body: %w", err)
		}
		defer gz.Close()
		body = gz
	}

	// Write to a temp file and rename so a torn download never leaves a
	// half-written file at the final path.
	tmp := filepath.Join(d.dir, uuid.NewString()+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	size, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}

	logger.Info("downloaded file", "url", url, "path", path, "bytes", size)
	return nil
}
