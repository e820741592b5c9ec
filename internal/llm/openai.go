package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

const (
	// DefaultBaseURL is the default OpenAI API base URL.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is the default embedding model.
	DefaultModel = "text-embedding-3-small"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second
)

// OpenAIConfig contains configuration for the OpenAI embeddings client.
type OpenAIConfig struct {
	// BaseURL is the API base URL. Any OpenAI-compatible endpoint works.
	BaseURL string

	// APIKey is the API key sent as a bearer token.
	APIKey string

	// Model is the embedding model identifier. Vectors are only
	// comparable within one model, so a store must always be queried
	// with the model that populated it.
	Model string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration
}

// OpenAIEmbedder implements Embedder against an OpenAI-compatible
// embeddings endpoint.
type OpenAIEmbedder struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// Compile-time check that OpenAIEmbedder implements Embedder.
var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates a new embeddings client.
func NewOpenAIEmbedder(cfg OpenAIConfig) *OpenAIEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &OpenAIEmbedder{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}
}

// Model returns the configured embedding model identifier.
func (e *OpenAIEmbedder) Model() string {
	return e.model
}

// EmbedText embeds a single text.
func (e *OpenAIEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// EmbedBatch embeds several texts in one request, preserving input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(embeddingRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("encoding embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing embedding request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 100<<20))
	if err != nil {
		return nil, fmt.Errorf("reading embedding response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("embedding API error (status %d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("embedding API error (status %d)", resp.StatusCode)
	}

	var decoded embeddingResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}
	if len(decoded.Data) != len(texts) {
		return nil, fmt.Errorf("embedding API returned %d vectors for %d inputs", len(decoded.Data), len(texts))
	}

	// The API documents no ordering guarantee; sort by the returned index.
	sort.Slice(decoded.Data, func(i, j int) bool {
		return decoded.Data[i].Index < decoded.Data[j].Index
	})

	vectors := make([][]float32, len(decoded.Data))
	for i, d := range decoded.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
