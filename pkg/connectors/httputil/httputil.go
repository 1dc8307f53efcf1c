// Package httputil carries the HTTP plumbing shared by connector adapters:
// a bounded retry loop with jittered backoff and a typed status error.
package httputil

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"
)

const defaultTimeout = 10 * time.Second

// RetryConfig controls the retry loop of one connector adapter.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts: 3,
		Delay:    500 * time.Millisecond,
	}
}

// StatusError is a non-2xx provider response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

// IsRetryable reports whether the response class may clear up on retry.
// Client errors never do.
func (e *StatusError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

func NewClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

// Do executes the request with retries. newRequest is called per attempt so
// request bodies are rebuilt instead of re-read. Transport failures and
// retryable statuses back off with jitter; 4xx responses fail immediately.
func Do(ctx context.Context, client *http.Client, cfg RetryConfig, newRequest func() (*http.Request, error)) ([]byte, error) {
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoffDelay(cfg.Delay, attempt)):
			}
		}

		req, err := newRequest()
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := client.Do(req.WithContext(ctx))
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response body: %w", err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}

		statusErr := &StatusError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}

		if !statusErr.IsRetryable() {
			return nil, statusErr
		}

		lastErr = statusErr
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)
}

func backoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 500 * time.Millisecond
	}

	delay := base << (attempt - 1)
	jitter := time.Duration(rand.Int63n(int64(base)))

	return delay + jitter
}
