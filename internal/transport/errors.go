package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/dshills/codeguard-mcp/pkg/types"
)

var (
	// ErrMissingToken is returned by New when no access token is configured
	ErrMissingToken = types.ErrMissingToken
	// ErrMissingEndpoint is returned by New when no base URL is configured
	ErrMissingEndpoint = errors.New("search service endpoint is required")
)

// StatusError is returned when the service answers with a non-2xx status
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if hint := e.Hint(); hint != "" {
		msg += " (" + hint + ")"
	}
	return msg
}

// Hint returns a remediation hint for well-known statuses
func (e *StatusError) Hint() string {
	switch e.StatusCode {
	case 401:
		return "check that the access token is set and valid"
	case 403:
		return "check that the access token has permission to search"
	case 404:
		return "check the service endpoint and path"
	case 429:
		return "the service is rate limiting requests; retry later"
	default:
		return ""
	}
}

// Retryable reports whether the status is a server-side failure
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500
}

// NetworkError is a failure where no response was received at all
type NetworkError struct {
	Method   string
	Path     string
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	if hint := e.Hint(); hint != "" {
		msg += " (" + hint + ")"
	}
	return msg
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Hint returns a remediation hint for connection-level failures
func (e *NetworkError) Hint() string {
	if errors.Is(e.Err, syscall.ECONNREFUSED) {
		return fmt.Sprintf("connection refused; check that the search service at %s is running and reachable", e.Endpoint)
	}
	var dnsErr *net.DNSError
	if errors.As(e.Err, &dnsErr) {
		return fmt.Sprintf("cannot resolve %s; check the endpoint configuration", e.Endpoint)
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return "request timed out"
	}
	return ""
}

// IsRetryable reports whether err should be retried: no response at all, or a
// status of 500 and above.
func IsRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// Hint returns the remediation hint carried by err, if any
func Hint(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Hint()
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr.Hint()
	}
	return ""
}
