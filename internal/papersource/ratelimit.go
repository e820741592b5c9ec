// Package papersource provides the HTTP plumbing shared by upstream
// paper catalog clients: token-bucket rate limiting and rate-limit-aware
// retries with exponential backoff.
package papersource

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter wraps a token bucket rate limiter for controlling request
// rates to external APIs. It is safe for concurrent use because the
// underlying rate.Limiter is goroutine-safe for all operations.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a new rate limiter.
// ratePerSecond is the sustained rate of requests per second.
// burst is the maximum burst size (number of tokens that can be consumed at once).
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// Wait blocks until a request is allowed or the context is canceled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Allow returns true if a request is allowed without waiting.
// It consumes one token if allowed.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// SetRate updates the rate limit while preserving the current burst size.
func (r *RateLimiter) SetRate(ratePerSecond float64) {
	r.limiter.SetLimit(rate.Limit(ratePerSecond))
}

// Tokens returns the current number of available tokens.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
