package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIEmbedder_Defaults(t *testing.T) {
	e := NewOpenAIEmbedder(OpenAIConfig{})

	assert.Equal(t, DefaultBaseURL, e.baseURL)
	assert.Equal(t, DefaultModel, e.model)
	assert.Equal(t, DefaultTimeout, e.client.Timeout)
}

func TestOpenAIEmbedder_EmbedBatch(t *testing.T) {
	t.Run("sends model and inputs, decodes vectors in order", func(t *testing.T) {
		var gotAuth string
		var gotReq embeddingRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

			// Return vectors out of order to exercise index sorting.
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data":[
				{"index":1,"embedding":[0.5,0.6]},
				{"index":0,"embedding":[0.1,0.2]}
			]}`))
		}))
		defer server.Close()

		e := NewOpenAIEmbedder(OpenAIConfig{
			BaseURL: server.URL,
			APIKey:  "sk-test",
			Model:   "test-model",
		})

		vectors, err := e.EmbedBatch(context.Background(), []string{"first", "second"})
		require.NoError(t, err)

		assert.Equal(t, "Bearer sk-test", gotAuth)
		assert.Equal(t, "test-model", gotReq.Model)
		assert.Equal(t, []string{"first", "second"}, gotReq.Input)
		assert.Equal(t, [][]float32{{0.1, 0.2}, {0.5, 0.6}}, vectors)
	})

	t.Run("empty input makes no request", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("unexpected request for empty input")
		}))
		defer server.Close()

		e := NewOpenAIEmbedder(OpenAIConfig{BaseURL: server.URL})

		vectors, err := e.EmbedBatch(context.Background(), nil)
		require.NoError(t, err)
		assert.Nil(t, vectors)
	})

	t.Run("API error surfaces the message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
		}))
		defer server.Close()

		e := NewOpenAIEmbedder(OpenAIConfig{BaseURL: server.URL})

		_, err := e.EmbedBatch(context.Background(), []string{"x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid api key")
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("vector count mismatch is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1]}]}`))
		}))
		defer server.Close()

		e := NewOpenAIEmbedder(OpenAIConfig{BaseURL: server.URL})

		_, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 vectors for 2 inputs")
	})
}

func TestOpenAIEmbedder_EmbedText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"index":0,"embedding":[1,2,3]}]}`))
	}))
	defer server.Close()

	e := NewOpenAIEmbedder(OpenAIConfig{BaseURL: server.URL})

	vec, err := e.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)
}
