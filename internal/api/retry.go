package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/cenkalti/backoff/v4"
	"github.com/sashabaranov/go-openai"
)

// RetryGenerator retries transient failures of an inner generator with
// exponential backoff. With zero retries it calls the inner generator once.
type RetryGenerator struct {
	inner      Generator
	maxRetries uint64
	// initialInterval is the first backoff delay; tests shorten it.
	initialInterval time.Duration
}

// WithRetries wraps g so that transient errors are retried up to maxRetries
// times. It returns g unchanged when maxRetries is zero.
func WithRetries(g Generator, maxRetries int) Generator {
	if maxRetries <= 0 {
		return g
	}
	return &RetryGenerator{inner: g, maxRetries: uint64(maxRetries), initialInterval: time.Second}
}

// Generate implements Generator.
func (r *RetryGenerator) Generate(ctx context.Context, prompt string) (*Completion, error) {
	attempt := 0
	op := func() (*Completion, error) {
		attempt++
		c, err := r.inner.Generate(ctx, prompt)
		if err == nil {
			return c, nil
		}
		if !retryable(err) {
			return nil, backoff.Permanent(err)
		}
		slog.Warn("code generation failed, will retry", "attempt", attempt, "error", err)
		return nil, err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.initialInterval
	b := backoff.WithContext(backoff.WithMaxRetries(eb, r.maxRetries), ctx)
	return backoff.RetryWithData(op, b)
}

// retryable reports whether err is worth another attempt: rate limits,
// server errors and transport failures are; credential and request errors
// are not.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrNoAPIKey) || errors.Is(err, ErrEmptyCompletion) {
		return false
	}

	var oaiErr *openai.APIError
	if errors.As(err, &oaiErr) {
		return retryableStatus(oaiErr.HTTPStatusCode)
	}
	var oaiReqErr *openai.RequestError
	if errors.As(err, &oaiReqErr) {
		return retryableStatus(oaiReqErr.HTTPStatusCode)
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return retryableStatus(antErr.StatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
