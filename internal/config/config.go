// Package config provides configuration management for the paper
// retrieval service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for the paper retrieval service.
type Config struct {
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// SemanticScholar contains upstream catalog API settings.
	SemanticScholar SemanticScholarConfig `mapstructure:"semantic_scholar"`
	// Downloader contains artifact download settings.
	Downloader DownloaderConfig `mapstructure:"downloader"`
	// Index contains similarity index store settings.
	Index IndexConfig `mapstructure:"index"`
	// Embedding contains embedding model client settings.
	Embedding EmbeddingConfig `mapstructure:"embedding"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level" validate:"oneof=trace debug info warn error fatal panic"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format" validate:"oneof=json console"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables the metrics listener.
	Enabled bool `mapstructure:"enabled"`
	// Addr is the listen address for the metrics endpoint.
	Addr string `mapstructure:"addr"`
	// Path is the HTTP path for the metrics endpoint.
	Path string `mapstructure:"path"`
}

// SemanticScholarConfig holds upstream catalog API settings.
type SemanticScholarConfig struct {
	// APIKey is the API key (loaded from SCHOLARPIPE_SEMANTIC_SCHOLAR_API_KEY).
	APIKey string `mapstructure:"-"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url" validate:"url"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gt=0"`
	// BurstSize is the burst size for the rate limiter.
	BurstSize int `mapstructure:"burst_size" validate:"gt=0"`
	// MaxRetries is the retry ceiling for rate-limit responses.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`
	// MaxResults is the maximum results per query.
	MaxResults int `mapstructure:"max_results" validate:"gt=0"`
}

// DownloaderConfig holds artifact download settings.
type DownloaderConfig struct {
	// Dir is the directory downloaded artifacts are written to.
	Dir string `mapstructure:"dir" validate:"required"`
	// Timeout is the timeout per download.
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	// MaxSize is the maximum artifact size in bytes.
	MaxSize int64 `mapstructure:"max_size" validate:"gt=0"`
}

// IndexConfig holds similarity index store settings.
type IndexConfig struct {
	// Dir is the store directory.
	Dir string `mapstructure:"dir" validate:"required"`
}

// EmbeddingConfig holds embedding model client settings.
type EmbeddingConfig struct {
	// APIKey is the API key (loaded from SCHOLARPIPE_EMBEDDING_API_KEY).
	APIKey string `mapstructure:"-"`
	// BaseURL is the API base URL (any OpenAI-compatible endpoint).
	BaseURL string `mapstructure:"base_url" validate:"url"`
	// Model is the embedding model identifier.
	Model string `mapstructure:"model" validate:"required"`
	// Timeout is the timeout for embedding calls.
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("SCHOLARPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/scholarpipe")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine, env vars and defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets use mapstructure:"-" so they never load from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.SemanticScholar.APIKey = os.Getenv("SCHOLARPIPE_SEMANTIC_SCHOLAR_API_KEY")
	cfg.Embedding.APIKey = os.Getenv("SCHOLARPIPE_EMBEDDING_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", "127.0.0.1:9091")
	v.SetDefault("metrics.path", "/metrics")

	// Upstream catalog defaults
	// The API key is loaded exclusively from the environment (see loadSecrets).
	v.SetDefault("semantic_scholar.base_url", "https://api.semanticscholar.org/graph/v1")
	v.SetDefault("semantic_scholar.timeout", "30s")
	v.SetDefault("semantic_scholar.rate_limit", 10.0)
	v.SetDefault("semantic_scholar.burst_size", 10)
	v.SetDefault("semantic_scholar.max_retries", 10)
	v.SetDefault("semantic_scholar.max_results", 100)

	// Downloader defaults
	v.SetDefault("downloader.dir", "papers")
	v.SetDefault("downloader.timeout", "60s")
	v.SetDefault("downloader.max_size", 100<<20)

	// Index defaults
	v.SetDefault("index.dir", "index")

	// Embedding defaults
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.timeout", "60s")
}

// Validate validates the configuration against its struct tags.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			ve := verrs[0]
			return fmt.Errorf("field %s failed %q validation", ve.Namespace(), ve.Tag())
		}
		return err
	}
	return nil
}
