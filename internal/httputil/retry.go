// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers for the model API clients.
package httputil

import (
	"context"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// throttled responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

// MaxRetryDelay caps a single wait, including one requested by Retry-After.
var MaxRetryDelay = 30 * time.Second

const (
	defaultMaxRetries = 5

	// statusOverloaded is the Anthropic API's "overloaded" status.
	statusOverloaded = 529
)

// Retryable reports whether a response status means "try again later".
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusServiceUnavailable ||
		status == statusOverloaded
}

// DoWithRetry executes an HTTP request and retries on 429, 503 and 529
// responses with exponential backoff starting at RetryBaseDelay. A
// Retry-After header in seconds replaces the computed delay. Waits are capped
// at MaxRetryDelay.
//
// When maxRetries is 0 the default (5) is used. Request bodies are replayed
// through req.GetBody, so requests built with http.NewRequest over a
// bytes.Reader retry safely. If the context is cancelled during a wait the
// function returns ctx.Err(). After exhausting retries the last throttled
// response is returned so the caller can inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if client == nil {
		client = http.DefaultClient
	}

	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			attemptReq.Body = body
		}

		resp, err := client.Do(attemptReq)
		if err != nil {
			return nil, err
		}

		if !Retryable(resp.StatusCode) {
			return resp, nil
		}

		if attempt >= maxRetries {
			return resp, nil
		}

		backoff := delay(resp, attempt)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		slog.Debug("http.retry",
			"url", req.URL.Redacted(),
			"status", resp.StatusCode,
			"attempt", attempt+1,
			"max_retries", maxRetries,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// delay returns the wait before the next attempt.
func delay(resp *http.Response, attempt int) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs >= 0 {
		d = time.Duration(secs) * time.Second
	}
	if d > MaxRetryDelay {
		d = MaxRetryDelay
	}
	return d
}
