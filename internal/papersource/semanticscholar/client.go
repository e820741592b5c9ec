package semanticscholar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/scholarpipe/paper-retrieval-service/internal/domain"
	"github.com/scholarpipe/paper-retrieval-service/internal/observability"
	"github.com/scholarpipe/paper-retrieval-service/internal/papersource"
)

const (
	// DefaultBaseURL is the default base URL for the Semantic Scholar Graph API.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRateLimit is the default rate limit for unauthenticated
	// requests. With an API key, this can be increased.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the default retry ceiling for rate-limit responses.
	DefaultMaxRetries = 10

	// DefaultMaxResults is the default maximum number of results per request.
	DefaultMaxResults = 100

	// apiKeyHeader is the header name for the Semantic Scholar API key.
	apiKeyHeader = "x-api-key"

	// sourceName is the human-readable name for this source.
	sourceName = "Semantic Scholar"

	// maxResponseBytes limits decoded response bodies to prevent
	// resource exhaustion.
	maxResponseBytes = 10 << 20
)

// Config contains configuration options for the Semantic Scholar client.
type Config struct {
	// BaseURL is the base URL for the API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the optional API key for authenticated requests.
	// Authenticated requests have higher rate limits.
	APIKey string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is the retry ceiling for rate-limit responses.
	MaxRetries int

	// InitialBackoff is the first retry delay. Defaults to 1s.
	InitialBackoff time.Duration

	// BackoffFactor is the multiplicative delay growth per retry.
	// Defaults to 2.
	BackoffFactor float64

	// Jitter is the jitter fraction applied to retry delays.
	// Defaults to 0.1.
	Jitter float64

	// MaxResults is the maximum number of results to return per search.
	MaxResults int
}

// SearchParams defines the parameters for one paper search request.
type SearchParams struct {
	// Query is the search expression. It must already be URL-safe:
	// the retrieval coordinator percent-encodes each keyword and joins
	// them with a literal "+", which the API interprets itself. The
	// client inserts the value verbatim, without re-encoding.
	Query string

	// StartYear is the inclusive lower publication-year bound.
	// Zero means no lower bound.
	StartYear int

	// EndYear is the inclusive upper publication-year bound.
	// Zero means no upper bound.
	EndYear int

	// FieldsOfStudy filters results by field of study. Joined with commas.
	FieldsOfStudy []string

	// Limit is the maximum number of results for this request.
	// Zero or above the configured maximum falls back to the configured maximum.
	Limit int

	// Offset is the index of the first result to return.
	Offset int

	// Fields is the response field whitelist. Joined with commas.
	Fields []string
}

// Client issues rate-limited, retry-protected searches against the
// Semantic Scholar API. It returns decoded responses as-is; converting
// results into domain records is the retrieval coordinator's job.
type Client struct {
	httpClient *papersource.HTTPClient
	config     Config
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a new Semantic Scholar client with the given configuration.
// If httpClient is nil, a new one will be created with the configuration settings.
func NewClient(cfg Config, logger zerolog.Logger, metrics *observability.Metrics, httpClient *papersource.HTTPClient) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = DefaultBurstSize
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.MaxResults == 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.Jitter == 0 {
		cfg.Jitter = papersource.DefaultJitter
	}

	if httpClient == nil {
		httpClient = papersource.NewHTTPClient(papersource.HTTPClientConfig{
			Timeout:        cfg.Timeout,
			RateLimit:      cfg.RateLimit,
			BurstSize:      cfg.BurstSize,
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			BackoffFactor:  cfg.BackoffFactor,
			Jitter:         cfg.Jitter,
			APIKey:         cfg.APIKey,
			APIKeyHeader:   apiKeyHeader,
			Logger:         logger,
			Metrics:        metrics,
		})
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
		logger:     logger,
		metrics:    metrics,
	}
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// Search queries Semantic Scholar for papers matching the given parameters.
//
// Rate-limit responses are retried with exponential backoff inside the
// HTTP client; the call blocks for the cumulative backoff duration. Any
// terminal failure, including an exhausted retry ceiling, surfaces as a
// *domain.UpstreamError.
func (c *Client) Search(ctx context.Context, params SearchParams) (*SearchResponse, error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.SearchDuration.Observe(time.Since(start).Seconds())
		}
	}()

	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, domain.NewUpstreamError(sourceName, 0, "building search URL", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, domain.NewUpstreamError(sourceName, 0, "creating request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.countFailure()
		statusCode := 0
		if errors.Is(err, domain.ErrRateLimited) {
			statusCode = http.StatusTooManyRequests
		}
		return nil, domain.NewUpstreamError(sourceName, statusCode, err.Error(), err)
	}
	defer resp.Body.Close()

	if err := c.handleErrorResponse(resp); err != nil {
		c.countFailure()
		return nil, err
	}

	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&searchResp); err != nil {
		c.countFailure()
		return nil, domain.NewUpstreamError(sourceName, resp.StatusCode, "decoding response", err)
	}

	c.logger.Debug().
		Int("total", searchResp.Total).
		Int("returned", len(searchResp.Data)).
		Dur("duration", time.Since(start)).
		Msg("search completed")

	return &searchResp, nil
}

func (c *Client) countFailure() {
	if c.metrics != nil {
		c.metrics.SearchFailures.Inc()
	}
}

// buildSearchURL constructs the search API URL with query parameters.
// The query value is inserted verbatim because the caller has already
// percent-encoded its keywords; everything else is encoded normally.
func (c *Client) buildSearchURL(params SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	searchURL := baseURL.JoinPath("paper", "search")

	q := url.Values{}

	limit := params.Limit
	if limit <= 0 || limit > c.config.MaxResults {
		limit = c.config.MaxResults
	}
	q.Set("limit", strconv.Itoa(limit))

	if params.Offset > 0 {
		q.Set("offset", strconv.Itoa(params.Offset))
	}

	// Restrict to papers that carry an open-access artifact.
	q.Set("openAccessPdf", "")

	// Inclusive year range expression, e.g. ">=2020,<=2023". One-sided
	// bounds produce an open-ended filter.
	if expr := yearRange(params.StartYear, params.EndYear); expr != "" {
		q.Set("year", expr)
	}

	if len(params.FieldsOfStudy) > 0 {
		q.Set("fieldsOfStudy", strings.Join(params.FieldsOfStudy, ","))
	}

	if len(params.Fields) > 0 {
		q.Set("fields", strings.Join(params.Fields, ","))
	}

	searchURL.RawQuery = "query=" + params.Query + "&" + q.Encode()
	return searchURL.String(), nil
}

// yearRange encodes inclusive year bounds as a single range expression.
func yearRange(startYear, endYear int) string {
	switch {
	case startYear > 0 && endYear > 0:
		return fmt.Sprintf(">=%d,<=%d", startYear, endYear)
	case startYear > 0:
		return fmt.Sprintf(">=%d", startYear)
	case endYear > 0:
		return fmt.Sprintf("<=%d", endYear)
	default:
		return ""
	}
}

// handleErrorResponse checks for API errors and returns appropriate error types.
// By the time a response reaches here, 429s have already been retried away.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.NewUpstreamError(sourceName, resp.StatusCode, "failed to read error response", err)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		message := errResp.Error
		if message == "" {
			message = errResp.Message
		}
		if message == "" {
			message = string(body)
		}
		return domain.NewUpstreamError(sourceName, resp.StatusCode, message, nil)
	}

	return domain.NewUpstreamError(sourceName, resp.StatusCode, string(body), nil)
}
