// internal/proxy/errors.go
package proxy

import (
	"errors"
	"fmt"
)

// ErrorKind classifies rotation failures.
type ErrorKind string

const (
	// KindPoolEmpty means no eligible proxy remained after filtering.
	// Callers should add proxies or widen their targeting filters; the
	// rotator never retries these internally.
	KindPoolEmpty ErrorKind = "pool_empty"

	// KindInvalidArgument means the caller misused the API, for example
	// selecting with the session strategy without a session id.
	KindInvalidArgument ErrorKind = "invalid_argument"

	// KindConnectionError means all retry attempts were exhausted. The
	// error wraps the last underlying transport failure.
	KindConnectionError ErrorKind = "connection_error"

	// KindFetchFailed means bootstrapping an empty pool from external
	// sources did not produce any proxies. The outcome is cached and
	// surfaced on every subsequent call without re-fetching.
	KindFetchFailed ErrorKind = "fetch_failed"
)

// Sentinel errors for use with errors.Is.
var (
	ErrPoolEmpty       = &RotationError{Kind: KindPoolEmpty}
	ErrInvalidArgument = &RotationError{Kind: KindInvalidArgument}
	ErrConnection      = &RotationError{Kind: KindConnectionError}
	ErrFetchFailed     = &RotationError{Kind: KindFetchFailed}
)

// RotationError is the error type returned by the rotation engine. It
// carries enough context to diagnose a failure without leaking proxy
// credentials: proxy URLs are always stored redacted.
type RotationError struct {
	Kind     ErrorKind
	Message  string
	Cause    error
	ProxyURL string
	Attempts int
}

// Error implements the error interface.
func (e *RotationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Attempts > 0 {
		msg = fmt.Sprintf("%s (after %d attempts)", msg, e.Attempts)
	}
	if e.ProxyURL != "" {
		msg = fmt.Sprintf("%s (last proxy: %s)", msg, e.ProxyURL)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RotationError) Unwrap() error {
	return e.Cause
}

// Is matches on the error kind so callers can compare against the
// package sentinels.
func (e *RotationError) Is(target error) bool {
	if re, ok := target.(*RotationError); ok {
		return e.Kind == re.Kind
	}
	return false
}

// NewPoolEmptyError creates a PoolEmpty error. The message must name the
// filter that emptied the candidate set.
func NewPoolEmptyError(message string) *RotationError {
	return &RotationError{Kind: KindPoolEmpty, Message: message}
}

// NewInvalidArgumentError creates an InvalidArgument error.
func NewInvalidArgumentError(message string) *RotationError {
	return &RotationError{Kind: KindInvalidArgument, Message: message}
}

// NewConnectionError creates a ConnectionError summarizing exhausted
// retries. proxyURL must already be credential-redacted.
func NewConnectionError(cause error, attempts int, proxyURL string) *RotationError {
	return &RotationError{
		Kind:     KindConnectionError,
		Message:  "all retry attempts failed",
		Cause:    cause,
		Attempts: attempts,
		ProxyURL: proxyURL,
	}
}

// NewFetchFailedError creates a FetchFailed error wrapping the bootstrap
// failure cause.
func NewFetchFailedError(cause error) *RotationError {
	return &RotationError{
		Kind:    KindFetchFailed,
		Message: "fetching candidate proxies failed",
		Cause:   cause,
	}
}

// IsPoolEmpty reports whether err is a PoolEmpty rotation error.
func IsPoolEmpty(err error) bool {
	return errors.Is(err, ErrPoolEmpty)
}

// IsInvalidArgument reports whether err is an InvalidArgument rotation error.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsConnectionError reports whether err is a ConnectionError rotation error.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnection)
}

// IsFetchFailed reports whether err is a FetchFailed rotation error.
func IsFetchFailed(err error) bool {
	return errors.Is(err, ErrFetchFailed)
}
