package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/headless-crawler/pkg/config"
	"github.com/Sriram-PR/headless-crawler/pkg/utils"
)

// testConfig returns a CrawlConfig with fast retry delays
func testConfig(maxRetries int) *config.CrawlConfig {
	return &config.CrawlConfig{
		MaxRetries:              maxRetries,
		InitialRetryDelay:       10 * time.Millisecond,
		MaxRetryDelay:           50 * time.Millisecond,
		SemaphoreAcquireTimeout: time.Second,
		MaxRequestsPerHost:      2,
		UserAgent:               "test-agent/1.0",
	}
}

// testLogger returns a logger that discards output
func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func testClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// mockServer creates an httptest.Server that returns status codes in sequence,
// repeating the last one. The counter tracks request attempts.
func mockServer(t *testing.T, statusCodes []int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	attemptCount := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idx := min(int(attemptCount.Add(1))-1, len(statusCodes)-1)
		w.WriteHeader(statusCodes[idx])
	}))
	t.Cleanup(server.Close)
	return server, attemptCount
}

func TestFetchWithRetry_StatusHandling(t *testing.T) {
	tests := []struct {
		name         string
		statuses     []int
		maxRetries   int
		wantStatus   int   // 0 = expect nil response
		wantErr      error // nil = expect success
		wantAttempts int32
	}{
		{"200 OK", []int{200}, 3, 200, nil, 1},
		{"204 No Content", []int{204}, 3, 204, nil, 1},
		{"5xx then success", []int{500, 500, 200}, 3, 200, nil, 3},
		{"429 then success", []int{429, 200}, 3, 200, nil, 2},
		{"mixed retryable then success", []int{500, 429, 500, 200}, 3, 200, nil, 4},
		{"5xx exhausts retries", []int{500}, 3, 0, utils.ErrServerHTTPError, 4},
		{"429 exhausts retries", []int{429}, 3, 0, utils.ErrRetryFailed, 4},
		{"zero retries", []int{500}, 0, 0, utils.ErrRetryFailed, 1},
		{"404 not retried", []int{404}, 3, 404, utils.ErrClientHTTPError, 1},
		{"403 not retried", []int{403}, 3, 403, utils.ErrClientHTTPError, 1},
		{"3xx not retried", []int{301}, 3, 301, utils.ErrOtherHTTPError, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, attempts := mockServer(t, tt.statuses)
			fetcher := NewFetcher(testClient(), testConfig(tt.maxRetries), testLogger())
			req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

			resp, err := fetcher.FetchWithRetry(context.Background(), req)
			if resp != nil {
				defer resp.Body.Close()
			}

			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantStatus == 0 {
				assert.Nil(t, resp)
			} else {
				require.NotNil(t, resp)
				assert.Equal(t, tt.wantStatus, resp.StatusCode)
			}
			assert.Equal(t, tt.wantAttempts, attempts.Load())
		})
	}
}

func TestFetchWithRetry_ExhaustedWrapsRetryFailed(t *testing.T) {
	server, _ := mockServer(t, []int{503})
	fetcher := NewFetcher(testClient(), testConfig(1), testLogger())
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	_, err := fetcher.FetchWithRetry(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrRetryFailed)
	assert.ErrorIs(t, err, utils.ErrServerHTTPError)
	assert.Equal(t, "RetryFailed_HTTPServer", utils.CategorizeError(err))
}

func TestFetchWithRetry_ContextCancelledBeforeAttempt(t *testing.T) {
	server, attempts := mockServer(t, []int{200})
	fetcher := NewFetcher(testClient(), testConfig(3), testLogger())
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := fetcher.FetchWithRetry(ctx, req)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), attempts.Load())
}

func TestFetchWithRetry_ContextTimeoutDuringBackoff(t *testing.T) {
	server, attempts := mockServer(t, []int{500})
	cfg := testConfig(3)
	cfg.InitialRetryDelay = 10 * time.Second
	cfg.MaxRetryDelay = 10 * time.Second
	fetcher := NewFetcher(testClient(), cfg, testLogger())
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	resp, err := fetcher.FetchWithRetry(ctx, req)
	assert.Nil(t, resp)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrServerHTTPError, "last attempt's error is kept")
	assert.Equal(t, int32(1), attempts.Load())
}

func TestFetchWithRetry_ContextTimeoutDuringRequest(t *testing.T) {
	slowServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(slowServer.Close)

	fetcher := NewFetcher(testClient(), testConfig(3), testLogger())
	req, _ := http.NewRequest(http.MethodGet, slowServer.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	resp, err := fetcher.FetchWithRetry(ctx, req)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchWithRetry_NetworkErrorThenSuccess(t *testing.T) {
	attemptCount := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attemptCount.Add(1) == 1 {
			// Drop the connection to simulate a network error
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Error("server doesn't support hijacking")
				return
			}
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	fetcher := NewFetcher(testClient(), testConfig(3), testLogger())
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := fetcher.FetchWithRetry(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), attemptCount.Load())
}
