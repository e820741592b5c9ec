package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpstreamError(t *testing.T) {
	t.Run("unwraps to sentinel", func(t *testing.T) {
		err := NewUpstreamError("Semantic Scholar", 429, "rate limit retries exhausted", ErrRateLimited)

		assert.True(t, errors.Is(err, ErrUpstream))
		assert.True(t, errors.Is(err, ErrRateLimited), "cause chain must stay reachable")

		var ue *UpstreamError
		require.True(t, errors.As(error(err), &ue))
		assert.Equal(t, 429, ue.StatusCode)
		assert.Equal(t, "Semantic Scholar", ue.Source)
	})

	t.Run("includes status in message", func(t *testing.T) {
		err := NewUpstreamError("Semantic Scholar", 500, "boom", nil)
		assert.Contains(t, err.Error(), "status 500")
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("omits status when unknown", func(t *testing.T) {
		err := NewUpstreamError("Semantic Scholar", 0, "connection refused", nil)
		assert.NotContains(t, err.Error(), "status")
	})
}

func TestArtifactFetchError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewArtifactFetchError("https://example.com/paper.pdf", cause)

	assert.True(t, errors.Is(err, ErrArtifactFetch))
	assert.Contains(t, err.Error(), "https://example.com/paper.pdf")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestStoreError(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStoreError("add", "/data/index", cause)

	assert.True(t, errors.Is(err, ErrStore))
	assert.Contains(t, err.Error(), "add")
	assert.Contains(t, err.Error(), "/data/index")
}
