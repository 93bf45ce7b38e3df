// Package fetch implements the two text-fetch backends behind the
// rotation scheduler: a rate-limited remote service (primary) and a
// self-hosted renderer (secondary). Failures surface as typed errors so
// the scheduler can record them without inspecting transport details.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a fetch failure.
type Kind string

// Failure kinds recorded on extraction results.
const (
	KindTimeout     Kind = "timeout"
	KindRateLimited Kind = "rate_limited"
	KindBlocked     Kind = "blocked"
	KindHTTP        Kind = "http"
	KindTransport   Kind = "transport"
)

// Error is a typed per-URL fetch failure.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: %s (status %d)", e.URL, e.Kind, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the failure kind, or an empty Kind for non-fetch errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsRateLimited reports whether the error is a typed rate-limit failure.
func IsRateLimited(err error) bool {
	return KindOf(err) == KindRateLimited
}

// IsTimeout reports whether the error is a typed timeout failure.
func IsTimeout(err error) bool {
	return KindOf(err) == KindTimeout
}

// classify wraps a transport error or non-200 status into a typed Error.
func classify(rawURL string, statusCode int, err error) *Error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimited, URL: rawURL, StatusCode: statusCode, Err: err}
	case statusCode == http.StatusForbidden:
		return &Error{Kind: KindBlocked, URL: rawURL, StatusCode: statusCode, Err: err}
	case statusCode > 0 && statusCode != http.StatusOK:
		return &Error{Kind: KindHTTP, URL: rawURL, StatusCode: statusCode, Err: err}
	case isTimeoutErr(err):
		return &Error{Kind: KindTimeout, URL: rawURL, Err: err}
	default:
		return &Error{Kind: KindTransport, URL: rawURL, Err: err}
	}
}

func isTimeoutErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
