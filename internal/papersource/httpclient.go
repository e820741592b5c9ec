package papersource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/scholarpipe/paper-retrieval-service/internal/domain"
	"github.com/scholarpipe/paper-retrieval-service/internal/observability"
)

// HTTPClientConfig configures the HTTP client.
type HTTPClientConfig struct {
	// Timeout is the request timeout for HTTP operations.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is the maximum number of retry attempts after a
	// rate-limit response. A request is attempted at most MaxRetries+1 times.
	MaxRetries int

	// InitialBackoff is the first retry delay.
	InitialBackoff time.Duration

	// BackoffFactor is the multiplicative delay growth per retry.
	BackoffFactor float64

	// Jitter is the jitter fraction applied to each retry delay.
	Jitter float64

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// APIKey is an optional API key for authentication.
	APIKey string

	// APIKeyHeader is the header name for the API key (e.g. "x-api-key").
	APIKeyHeader string

	// Logger receives retry diagnostics.
	Logger zerolog.Logger

	// Metrics receives request and retry counters. Optional.
	Metrics *observability.Metrics
}

// HTTPClient wraps http.Client with proactive rate limiting and
// rate-limit-response retries. It is safe for concurrent use: backoff
// state is created per call, never shared.
//
// Only 429 responses are retried. Any other failure is terminal and
// surfaces to the caller, which translates it into its own error type.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig

	// sleep blocks for the given duration or until the context is
	// canceled. Tests substitute it to observe the backoff schedule.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewHTTPClient creates a new HTTP client with rate limiting and backoff.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 10
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 10
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.BackoffFactor == 0 {
		cfg.BackoffFactor = DefaultBackoffFactor
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ScholarPipe/1.0"
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:      cfg,
		sleep:       sleepContext,
	}
}

// Do executes an HTTP request with rate limiting and rate-limit retries.
//
// Each attempt waits for the token bucket first. A 429 response advances
// the per-call backoff schedule and sleeps before retrying, up to the
// configured ceiling; the sleep blocks the calling goroutine for the full
// delay. Exhausting the ceiling returns an error wrapping
// domain.ErrRateLimited. Network errors and every other response status
// are returned as-is without retrying.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" && c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}

	backoff := &Backoff{
		Initial: c.config.InitialBackoff,
		Factor:  c.config.BackoffFactor,
		Jitter:  c.config.Jitter,
	}

	for attempt := 0; ; attempt++ {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		if c.config.Metrics != nil {
			c.config.Metrics.SearchRequests.Inc()
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		// Drain and close before retrying so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		if attempt >= c.config.MaxRetries {
			return nil, fmt.Errorf("rate limit retries exhausted after %d attempts: %w",
				attempt+1, domain.ErrRateLimited)
		}

		delay := backoff.Next()
		c.config.Logger.Warn().
			Int("attempt", attempt+1).
			Int("max_retries", c.config.MaxRetries).
			Dur("sleep", delay).
			Msg("rate limit exceeded, retrying")
		if c.config.Metrics != nil {
			c.config.Metrics.SearchRetries.Inc()
		}

		if err := c.sleep(req.Context(), delay); err != nil {
			return nil, err
		}
	}
}

// sleepContext waits for the given duration, respecting context cancellation.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
