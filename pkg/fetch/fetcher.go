package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/headless-crawler/pkg/config"
	"github.com/Sriram-PR/headless-crawler/pkg/utils"
)

// Fetcher performs HTTP requests with retry, exponential backoff and jitter
type Fetcher struct {
	client *http.Client
	cfg    *config.CrawlConfig // Retry settings
	log    *logrus.Entry
}

// NewFetcher creates a new Fetcher instance
func NewFetcher(client *http.Client, cfg *config.CrawlConfig, log *logrus.Entry) *Fetcher {
	return &Fetcher{client: client, cfg: cfg, log: log}
}

// FetchWithRetry runs req under ctx, retrying network errors, 5xx and 429.
// On 2xx the response is returned with a nil error. Other 4xx and non-2xx
// statuses are not retried and return both the response and a wrapped error;
// the caller must close the body in either case.
func (f *Fetcher) FetchWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	reqLog := f.log.WithField("url", req.URL.String())
	maxRetries := f.cfg.MaxRetries

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := f.backoffDelay(attempt)
			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_retries": maxRetries, "delay": delay}).Warn("Retrying request...")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				reqLog.Warnf("Context cancelled during retry sleep: %v", ctx.Err())
				return nil, fmt.Errorf("context cancelled (%v) during retry delay after error: %w", ctx.Err(), lastErr)
			}
		} else if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled before first attempt: %w", err)
		}

		resp, err := f.client.Do(req.WithContext(ctx))
		if err != nil {
			drainAndClose(resp)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				reqLog.Warnf("Context cancelled/timed out during HTTP request: %v", err)
				return nil, err
			}
			reqLog.WithField("attempt", attempt).Errorf("Network error: %v", err)
			lastErr = err
			continue
		}

		resLog := reqLog.WithFields(logrus.Fields{"status_code": resp.StatusCode, "attempt": attempt})
		statusErr, retryable := classifyStatus(resp)
		switch {
		case statusErr == nil:
			resLog.Debug("Successfully fetched")
			return resp, nil
		case retryable:
			resLog.Warnf("Retryable status %s", resp.Status)
			drainAndClose(resp)
			lastErr = statusErr
		default:
			resLog.Warnf("Non-retryable status %s", resp.Status)
			return resp, statusErr
		}
	}

	reqLog.Errorf("All %d fetch attempts failed. Last error: %v", maxRetries+1, lastErr)
	if lastErr == nil {
		return nil, utils.ErrRetryFailed
	}
	return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
}

// backoffDelay returns initial*2^(attempt-1), capped at max, with +/-10% jitter
func (f *Fetcher) backoffDelay(attempt int) time.Duration {
	maxDelay := f.cfg.MaxRetryDelay
	delay := time.Duration(float64(f.cfg.InitialRetryDelay) * math.Pow(2, float64(attempt-1)))
	if delay <= 0 || (maxDelay > 0 && delay > maxDelay) {
		delay = maxDelay
	}
	if spread := int64(delay) / 5; spread > 0 {
		delay += time.Duration(rand.Int63n(spread)) - delay/10
	}
	return max(delay, 0)
}

// classifyStatus maps a response status to a sentinel-wrapped error.
// A nil error means success.
func classifyStatus(resp *http.Response) (err error, retryable bool) {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil, false
	case code >= 500:
		return fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, code, resp.Status), true
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, code, resp.Status), true
	case code >= 400:
		return fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, code, resp.Status), false
	default:
		return fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, code, resp.Status), false
	}
}

func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
