package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(maxRetries int) *RetryConfig {
	return &RetryConfig{
		MaxRetries:    maxRetries,
		MaxBackoff:    10 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestHTTPClient_RetriesTransientFailure(t *testing.T) {
	var attempts int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	client := NewHTTPClient(5*time.Second, fastRetryConfig(3))
	req, err := http.NewRequest("GET", ts.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, attempts)
}

func TestHTTPClient_DoesNotRetryClientError(t *testing.T) {
	var attempts int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	client := NewHTTPClient(5*time.Second, fastRetryConfig(3))
	req, err := http.NewRequest("GET", ts.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// a 404 is a real answer, not a transient failure
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 1, attempts)
}

func TestHTTPClient_ExhaustsRetries(t *testing.T) {
	var attempts int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewHTTPClient(5*time.Second, fastRetryConfig(2))
	req, err := http.NewRequest("GET", ts.URL, nil)
	require.NoError(t, err)

	_, err = client.Do(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.Equal(t, 3, attempts)
}

func TestIsRetryableStatusCode(t *testing.T) {
	assert.True(t, isRetryableStatusCode(http.StatusTooManyRequests))
	assert.True(t, isRetryableStatusCode(http.StatusInternalServerError))
	assert.True(t, isRetryableStatusCode(http.StatusBadGateway))
	assert.True(t, isRetryableStatusCode(http.StatusServiceUnavailable))
	assert.True(t, isRetryableStatusCode(http.StatusGatewayTimeout))

	assert.False(t, isRetryableStatusCode(http.StatusOK))
	assert.False(t, isRetryableStatusCode(http.StatusBadRequest))
	assert.False(t, isRetryableStatusCode(http.StatusNotFound))
}
