// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the HTTP helper shared by the provider adapters.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"
)

// MaxBodyBytes bounds how much of a provider response is read.
const MaxBodyBytes = 4 << 20

// ErrLimiterWait is returned when the rate limiter cannot grant a token
// before the context deadline.
var ErrLimiterWait = errors.New("waiting for rate limiter")

// StatusError reports a provider response other than HTTP 200.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.URL, e.StatusCode)
}

// Get executes a single GET request. It waits on limiter first (nil means
// unlimited), so the wait counts against ctx's deadline. There are no
// retries: a 429 or 5xx is returned as a *StatusError and the caller
// decides what it means.
//
// On success the caller must close the response body. On a *StatusError
// the body has already been drained and closed.
func Get(ctx context.Context, client *http.Client, limiter *rate.Limiter, url string, header http.Header) (*http.Response, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLimiterWait, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, MaxBodyBytes))
		resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: req.URL.Redacted()}
	}
	return resp, nil
}

// LimitedBody wraps resp.Body so decoders never read more than MaxBodyBytes.
func LimitedBody(resp *http.Response) io.Reader {
	return io.LimitReader(resp.Body, MaxBodyBytes)
}

// NewLimiter returns a token bucket allowing perSecond calls with a burst
// of one, or nil when perSecond is zero.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}
