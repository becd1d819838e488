package api

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedGenerator spaces calls to an inner generator so that no more
// than the configured number of requests per second reach the API.
type RateLimitedGenerator struct {
	inner   Generator
	limiter *rate.Limiter
}

// WithRateLimit wraps g with a limiter allowing rps requests per second.
// It returns g unchanged when rps is not positive.
func WithRateLimit(g Generator, rps float64) Generator {
	if rps <= 0 {
		return g
	}
	return &RateLimitedGenerator{inner: g, limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

// Generate implements Generator. It blocks until the limiter admits the
// call or ctx is done.
func (r *RateLimitedGenerator) Generate(ctx context.Context, prompt string) (*Completion, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.inner.Generate(ctx, prompt)
}
