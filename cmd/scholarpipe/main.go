// Package main is the entry point for the scholarpipe CLI.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/scholarpipe/paper-retrieval-service/internal/config"
	"github.com/scholarpipe/paper-retrieval-service/internal/index"
	"github.com/scholarpipe/paper-retrieval-service/internal/llm"
	"github.com/scholarpipe/paper-retrieval-service/internal/observability"
	"github.com/scholarpipe/paper-retrieval-service/internal/papersource/semanticscholar"
	"github.com/scholarpipe/paper-retrieval-service/internal/pdf"
	"github.com/scholarpipe/paper-retrieval-service/internal/retriever"
)

// rootCmd is the base command for the scholarpipe CLI.
var rootCmd = &cobra.Command{
	Use:   "scholarpipe",
	Short: "Retrieve scholarly papers and maintain a similarity index over them",
	Long: `scholarpipe searches the Semantic Scholar catalog for papers matching a
set of keywords, downloads their open-access PDFs, and maintains an
incremental similarity index over their abstracts.

Each pipeline stage is a subcommand: retrieve searches and downloads,
run additionally merges the batch into the index, and query answers
similarity searches against a previously built index.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the wired collaborators shared by the subcommands.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	retriever *retriever.Retriever
	indexer   *index.Indexer
}

// newApp loads configuration and wires the pipeline components.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		metrics = observability.NewMetrics(reg, "scholarpipe")
		go serveMetrics(cfg, reg, logger)
	}

	client := semanticscholar.NewClient(semanticscholar.Config{
		BaseURL:    cfg.SemanticScholar.BaseURL,
		APIKey:     cfg.SemanticScholar.APIKey,
		Timeout:    cfg.SemanticScholar.Timeout,
		RateLimit:  cfg.SemanticScholar.RateLimit,
		BurstSize:  cfg.SemanticScholar.BurstSize,
		MaxRetries: cfg.SemanticScholar.MaxRetries,
		MaxResults: cfg.SemanticScholar.MaxResults,
	}, logger, metrics, nil)

	downloader, err := pdf.NewDownloader(pdf.Config{
		Dir:     cfg.Downloader.Dir,
		Timeout: cfg.Downloader.Timeout,
		MaxSize: cfg.Downloader.MaxSize,
	}, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("create downloader: %w", err)
	}

	embedder := llm.NewOpenAIEmbedder(llm.OpenAIConfig{
		BaseURL: cfg.Embedding.BaseURL,
		APIKey:  cfg.Embedding.APIKey,
		Model:   cfg.Embedding.Model,
		Timeout: cfg.Embedding.Timeout,
	})

	return &app{
		cfg:       cfg,
		logger:    logger,
		retriever: retriever.New(client, downloader, logger, metrics),
		indexer:   index.New(embedder, logger, metrics),
	}, nil
}

// serveMetrics exposes the Prometheus registry over HTTP for the
// lifetime of the process.
func serveMetrics(cfg *config.Config, reg *prometheus.Registry, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		logger.Error().Err(err).Msg("metrics listener stopped")
	}
}

// parseDate parses a YYYY-MM-DD flag value. Empty means unset.
func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return &t, nil
}
