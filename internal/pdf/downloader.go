// Package pdf downloads open-access paper artifacts to local storage.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/scholarpipe/paper-retrieval-service/internal/domain"
	"github.com/scholarpipe/paper-retrieval-service/internal/observability"
)

// Sentinel errors for artifact download operations.
var (
	// ErrTooLarge is returned when the artifact exceeds the maximum allowed size.
	ErrTooLarge = errors.New("pdf: file exceeds maximum size")
	// ErrDownloadFailed is returned when the download fails due to network or HTTP errors.
	ErrDownloadFailed = errors.New("pdf: download failed")
)

// Config holds downloader configuration.
type Config struct {
	// Dir is the directory artifacts are written into. Created if missing.
	Dir string
	// Timeout is the HTTP request timeout. Default: 60 seconds.
	Timeout time.Duration
	// MaxSize is the maximum file size in bytes. Default: 100MB.
	MaxSize int64
	// UserAgent is the User-Agent header. Default: "ScholarPipe/1.0".
	UserAgent string
}

// Downloader fetches one record's artifact at a time, streaming the
// response body straight to disk so memory stays bounded regardless of
// artifact size.
//
// A failed fetch is isolated to its record: the error is logged, the
// record's local path stays empty, and sibling records in the same batch
// are unaffected.
type Downloader struct {
	client    *http.Client
	dir       string
	maxSize   int64
	userAgent string
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// NewDownloader creates a new Downloader, ensuring the download
// directory exists.
func NewDownloader(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) (*Downloader, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 100 * 1024 * 1024
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ScholarPipe/1.0"
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	return &Downloader{
		client:    &http.Client{Timeout: cfg.Timeout},
		dir:       cfg.Dir,
		maxSize:   cfg.MaxSize,
		userAgent: cfg.UserAgent,
		logger:    logger,
		metrics:   metrics,
	}, nil
}

// Fetch downloads the record's open-access artifact, if it has one, and
// sets LocalFilePath to the absolute path of the written file.
//
// Records without an artifact URL are left unchanged. Any transport or
// filesystem failure is absorbed here: logged, counted, and converted to
// an empty LocalFilePath. Fetch never propagates an error to the caller.
func (d *Downloader) Fetch(ctx context.Context, rec *domain.PaperRecord) {
	if rec.OpenAccessPDFURL == "" {
		return
	}

	log := observability.WithPaperContext(d.logger, rec.ID, rec.Title)

	path, err := d.download(ctx, rec.OpenAccessPDFURL, rec.Title)
	if err != nil {
		fetchErr := domain.NewArtifactFetchError(rec.OpenAccessPDFURL, err)
		log.Warn().Err(fetchErr).Msg("artifact download failed, continuing without local file")
		if d.metrics != nil {
			d.metrics.ArtifactDownloadFailures.Inc()
		}
		return
	}

	rec.LocalFilePath = path
	log.Info().Str("path", path).Msg("artifact downloaded")
	if d.metrics != nil {
		d.metrics.ArtifactDownloads.Inc()
	}
}

// download streams the artifact to disk and returns the absolute path.
func (d *Downloader) download(ctx context.Context, rawURL, title string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: invalid URL: %w", ErrDownloadFailed, err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "application/pdf, */*;q=0.8")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: HTTP %d", ErrDownloadFailed, resp.StatusCode)
	}

	path := filepath.Join(d.dir, SanitizeFilename(title)+".pdf")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: create file: %w", ErrDownloadFailed, err)
	}

	// Read one extra byte so an oversized artifact is detectable.
	written, err := io.Copy(f, io.LimitReader(resp.Body, d.maxSize+1))
	closeErr := f.Close()

	switch {
	case err != nil:
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: write body: %w", ErrDownloadFailed, err)
	case closeErr != nil:
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: close file: %w", ErrDownloadFailed, closeErr)
	case written > d.maxSize:
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: exceeded %d bytes", ErrTooLarge, d.maxSize)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: resolve path: %w", ErrDownloadFailed, err)
	}
	return abs, nil
}

// SanitizeFilename derives a safe filename from a paper title by
// stripping path separators and colons. Empty titles fall back to "paper".
func SanitizeFilename(title string) string {
	name := strings.ReplaceAll(title, "/", "_")
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	name = strings.ReplaceAll(name, ":", "")
	name = strings.TrimSpace(name)
	if name == "" {
		return "paper"
	}
	return name
}
