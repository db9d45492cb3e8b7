// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/pdiddy/termsource/internal/httputil"
)

// Kind classifies a provider failure.
type Kind string

const (
	KindTimeout           Kind = "timeout"
	KindUnavailable       Kind = "unavailable"
	KindMalformedResponse Kind = "malformed_response"
	KindRateLimited       Kind = "rate_limited"
	KindNotFound          Kind = "not_found"
)

// Error is the structured failure every adapter returns.
type Error struct {
	Provider string
	Kind     Kind
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider %s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the failure kind of err, or KindUnavailable for errors
// that did not come from an adapter.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnavailable
}

// Classify converts any error raised while calling a provider into a
// *Error. Errors that are already classified pass through unchanged.
func Classify(name string, err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}

	kind := KindUnavailable
	var se *httputil.StatusError
	var ne net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled),
		errors.Is(err, httputil.ErrLimiterWait):
		kind = KindTimeout
	case errors.As(err, &se):
		switch {
		case se.StatusCode == http.StatusTooManyRequests:
			kind = KindRateLimited
		case se.StatusCode == http.StatusNotFound:
			kind = KindNotFound
		}
	case errors.As(err, &ne) && ne.Timeout():
		kind = KindTimeout
	}
	return &Error{Provider: name, Kind: kind, Err: err}
}

func malformed(name string, err error) *Error {
	return &Error{Provider: name, Kind: KindMalformedResponse, Err: err}
}

func notFound(name, term string) *Error {
	return &Error{Provider: name, Kind: KindNotFound, Err: fmt.Errorf("no entry for %q", term)}
}
