// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across pipeline ports.
package httputil

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pdiddy/arxiv-digest/pkg/types"
)

// retryable reports whether a response status is worth retrying:
// rate limiting and transient upstream failures.
func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// DoWithRetry executes an HTTP request under the given retry policy.
// Transport errors and retryable statuses (429, 502, 503, 504) are
// retried with the policy's exponential backoff and jitter. On each
// retried response the body is drained and closed before sleeping. If
// the context is cancelled during a backoff wait the function returns
// ctx.Err(). After exhausting attempts the last response (or transport
// error) is returned so the caller can inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, policy types.RetryPolicy) (*http.Response, error) {
	if policy.MaxAttempts <= 0 {
		policy = types.DefaultRetryPolicy
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err == nil && !retryable(resp.StatusCode) {
			return resp, nil
		}

		if err == nil {
			if attempt >= policy.MaxAttempts {
				// Exhausted attempts; hand back the retryable response.
				return resp, nil
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		} else {
			lastErr = err
			if attempt >= policy.MaxAttempts {
				return nil, lastErr
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(policy.Backoff(attempt)):
		}
	}
}
