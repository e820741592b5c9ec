package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output)

	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)

	assert.Equal(t, "https://api.semanticscholar.org/graph/v1", cfg.SemanticScholar.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.SemanticScholar.Timeout)
	assert.Equal(t, 10.0, cfg.SemanticScholar.RateLimit)
	assert.Equal(t, 10, cfg.SemanticScholar.MaxRetries)
	assert.Empty(t, cfg.SemanticScholar.APIKey)

	assert.Equal(t, "papers", cfg.Downloader.Dir)
	assert.Equal(t, int64(100<<20), cfg.Downloader.MaxSize)

	assert.Equal(t, "index", cfg.Index.Dir)

	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 60*time.Second, cfg.Embedding.Timeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SCHOLARPIPE_LOGGING_LEVEL", "debug")
	t.Setenv("SCHOLARPIPE_SEMANTIC_SCHOLAR_MAX_RETRIES", "3")
	t.Setenv("SCHOLARPIPE_INDEX_DIR", "/var/lib/scholarpipe/index")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 3, cfg.SemanticScholar.MaxRetries)
	assert.Equal(t, "/var/lib/scholarpipe/index", cfg.Index.Dir)
}

func TestLoad_SecretsFromEnvOnly(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SCHOLARPIPE_SEMANTIC_SCHOLAR_API_KEY", "s2-key")
	t.Setenv("SCHOLARPIPE_EMBEDDING_API_KEY", "sk-embed")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "s2-key", cfg.SemanticScholar.APIKey)
	assert.Equal(t, "sk-embed", cfg.Embedding.APIKey)
}

func TestLoad_ValidationFailure(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SCHOLARPIPE_LOGGING_LEVEL", "verbose")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
	assert.Contains(t, err.Error(), "Logging.Level")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Logging: LoggingConfig{Level: "info", Format: "json"},
			SemanticScholar: SemanticScholarConfig{
				BaseURL:    "https://api.semanticscholar.org/graph/v1",
				Timeout:    time.Second,
				RateLimit:  1,
				BurstSize:  1,
				MaxResults: 10,
			},
			Downloader: DownloaderConfig{Dir: "papers", Timeout: time.Second, MaxSize: 1},
			Index:      IndexConfig{Dir: "index"},
			Embedding: EmbeddingConfig{
				BaseURL: "https://api.openai.com/v1",
				Model:   "text-embedding-3-small",
				Timeout: time.Second,
			},
		}
	}

	t.Run("valid config passes", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("negative retry ceiling fails", func(t *testing.T) {
		cfg := valid()
		cfg.SemanticScholar.MaxRetries = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing store dir fails", func(t *testing.T) {
		cfg := valid()
		cfg.Index.Dir = ""
		assert.Error(t, cfg.Validate())
	})
}
