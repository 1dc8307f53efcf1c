package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRetryConfig() RetryConfig {
	return RetryConfig{Attempts: 3, Delay: time.Millisecond}
}

func newRequestTo(url string) func() (*http.Request, error) {
	return func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, url, nil)
	}
}

func TestDo_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	body, err := Do(context.Background(), server.Client(), testRetryConfig(), newRequestTo(server.URL))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestDo_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	body, err := Do(context.Background(), server.Client(), testRetryConfig(), newRequestTo(server.URL))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"not found"}`))
	}))
	defer server.Close()

	_, err := Do(context.Background(), server.Client(), testRetryConfig(), newRequestTo(server.URL))

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.False(t, statusErr.IsRetryable())
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_RetriesRateLimits(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := Do(context.Background(), server.Client(), testRetryConfig(), newRequestTo(server.URL))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := Do(context.Background(), server.Client(), testRetryConfig(), newRequestTo(server.URL))
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
}

func TestDo_CancelledContextStopsRetryLoop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := RetryConfig{Attempts: 5, Delay: 100 * time.Millisecond}
	_, err := Do(ctx, server.Client(), cfg, newRequestTo(server.URL))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_RequestBuildFailureIsTerminal(t *testing.T) {
	buildErr := errors.New("bad request template")

	_, err := Do(context.Background(), http.DefaultClient, testRetryConfig(), func() (*http.Request, error) {
		return nil, buildErr
	})
	assert.ErrorIs(t, err, buildErr)
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := Do(context.Background(), server.Client(), RetryConfig{}, newRequestTo(server.URL))
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
