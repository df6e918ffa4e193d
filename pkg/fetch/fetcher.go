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

	"site-audit/pkg/config"
	"site-audit/pkg/utils"
)

// HTTPFetcher is the page-fetch strategy contract. A headless rendering
// backend would satisfy the same interface with an identical output contract.
type HTTPFetcher interface {
	FetchWithRetry(req *http.Request, ctx context.Context) (*http.Response, error)
}

// Fetcher performs HTTP requests with retry logic over an underlying http.Client
type Fetcher struct {
	client *http.Client
	cfg    *config.AuditConfig // retry settings
	log    *logrus.Logger
}

// NewFetcher creates a new Fetcher instance
func NewFetcher(client *http.Client, cfg *config.AuditConfig, log *logrus.Logger) *Fetcher {
	return &Fetcher{client: client, cfg: cfg, log: log}
}

// FetchWithRetry performs an HTTP request associated with the provided context.
// Transient network errors and 5xx/429 responses are retried with exponential
// backoff and jitter; other non-2xx responses are returned immediately with a
// wrapped sentinel error. On a 2xx response the caller owns resp.Body.
func (f *Fetcher) FetchWithRetry(req *http.Request, ctx context.Context) (*http.Response, error) {
	var lastErr error
	var currentResp *http.Response

	reqLog := f.log.WithField("url", req.URL.String())

	maxRetries := f.cfg.MaxRetries
	initialRetryDelay := f.cfg.InitialRetryDelay
	maxRetryDelay := f.cfg.MaxRetryDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return nil, fmt.Errorf("context cancelled (%v) during retry backoff after error: %w", ctx.Err(), lastErr)
			}
			return nil, fmt.Errorf("context cancelled before first attempt: %w", ctx.Err())
		default:
		}

		// Backoff only applies to retry attempts, not the first try
		if attempt > 0 {
			backoff := float64(initialRetryDelay) * math.Pow(2, float64(attempt-1))
			delay := time.Duration(backoff)
			if delay <= 0 || delay > maxRetryDelay {
				delay = maxRetryDelay
			}
			var jitter time.Duration
			if delay > 0 {
				jitter = time.Duration(rand.Int63n(int64(delay)/5)) - (delay / 10)
			}
			finalDelay := delay + jitter
			if finalDelay < 0 {
				finalDelay = 0
			}

			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_retries": maxRetries, "delay": finalDelay}).Warn("Retrying request...")

			select {
			case <-time.After(finalDelay):
			case <-ctx.Done():
				if lastErr != nil {
					return nil, fmt.Errorf("context cancelled (%v) during retry delay after error: %w", ctx.Err(), lastErr)
				}
				return nil, fmt.Errorf("context cancelled during retry delay: %w", ctx.Err())
			}
		}

		reqWithCtx := req.WithContext(ctx)
		currentResp, lastErr = f.client.Do(reqWithCtx)

		if lastErr != nil {
			if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
				drainAndClose(currentResp)
				return nil, lastErr
			}
			reqLog.WithField("attempt", attempt).Errorf("Network error: %v", lastErr)
			drainAndClose(currentResp)
			continue
		}

		statusCode := currentResp.StatusCode
		resLog := reqLog.WithFields(logrus.Fields{"status_code": statusCode, "attempt": attempt})

		switch {
		case statusCode >= 200 && statusCode < 300:
			resLog.Debug("Successfully fetched")
			return currentResp, nil

		case statusCode >= 500:
			resLog.Warn("Server error, retrying...")
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, statusCode, currentResp.Status)
			drainAndClose(currentResp)
			continue

		case statusCode == http.StatusTooManyRequests:
			resLog.Warn("Received 429 Too Many Requests, retrying...")
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, statusCode, currentResp.Status)
			drainAndClose(currentResp)
			continue

		case statusCode >= 400 && statusCode < 500:
			// Not retryable; caller may inspect the response and must close Body
			resLog.Warn("Client error (4xx), not retrying")
			return currentResp, fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, statusCode, currentResp.Status)

		default:
			resLog.Warnf("Non-retryable/unexpected status: %d", statusCode)
			return currentResp, fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, statusCode, currentResp.Status)
		}
	}

	reqLog.Errorf("All %d fetch retries failed. Last error: %v", maxRetries+1, lastErr)
	drainAndClose(currentResp)

	if lastErr != nil {
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return nil, lastErr
		}
		return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
	}
	return nil, utils.ErrRetryFailed
}

// drainAndClose fully reads and closes a response body so the underlying
// connection can be reused. Safe on nil responses.
func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
