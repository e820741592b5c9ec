package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrRateLimited indicates that the upstream catalog rejected a
	// request with a rate-limit response.
	ErrRateLimited = errors.New("rate limited")

	// ErrUpstream indicates that the upstream catalog search failed
	// terminally: retries were exhausted or the failure was not retryable.
	ErrUpstream = errors.New("upstream search failed")

	// ErrArtifactFetch indicates that downloading a single paper's
	// artifact failed. It is always absorbed by the fetcher and never
	// propagates past it.
	ErrArtifactFetch = errors.New("artifact fetch failed")

	// ErrStore indicates that a persistent index store operation failed.
	ErrStore = errors.New("store operation failed")

	// ErrStoreNotFound indicates that no store exists at the given
	// location. Querying a missing store is a valid empty-result state,
	// not an error; opening one for anything else is not.
	ErrStoreNotFound = errors.New("store not found")
)

// UpstreamError provides details about a terminal search failure.
type UpstreamError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s search failed (status %d): %s", e.Source, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s search failed: %s", e.Source, e.Message)
}

// Unwrap returns the sentinel and the underlying cause for use with
// errors.Is and errors.As.
func (e *UpstreamError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrUpstream, e.Cause}
	}
	return []error{ErrUpstream}
}

// ArtifactFetchError provides details about a failed artifact download.
type ArtifactFetchError struct {
	URL   string
	Cause error
}

// Error implements the error interface.
func (e *ArtifactFetchError) Error() string {
	return fmt.Sprintf("fetching artifact %s: %v", e.URL, e.Cause)
}

// Unwrap returns the sentinel and the underlying cause for use with
// errors.Is and errors.As.
func (e *ArtifactFetchError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrArtifactFetch, e.Cause}
	}
	return []error{ErrArtifactFetch}
}

// StoreError provides details about a failed persistent store operation.
type StoreError struct {
	Op       string
	Location string
	Cause    error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s at %s: %v", e.Op, e.Location, e.Cause)
}

// Unwrap returns the sentinel and the underlying cause for use with
// errors.Is and errors.As.
func (e *StoreError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrStore, e.Cause}
	}
	return []error{ErrStore}
}

// NewUpstreamError creates a new UpstreamError.
func NewUpstreamError(source string, statusCode int, message string, cause error) *UpstreamError {
	return &UpstreamError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

// NewArtifactFetchError creates a new ArtifactFetchError.
func NewArtifactFetchError(url string, cause error) *ArtifactFetchError {
	return &ArtifactFetchError{
		URL:   url,
		Cause: cause,
	}
}

// NewStoreError creates a new StoreError.
func NewStoreError(op, location string, cause error) *StoreError {
	return &StoreError{
		Op:       op,
		Location: location,
		Cause:    cause,
	}
}
