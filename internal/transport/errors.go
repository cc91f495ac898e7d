// internal/transport/errors.go
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies transport level failures.
type ErrorKind string

const (
	// KindConnectFailed covers refused connections, DNS failures, and
	// resets before a response arrived.
	KindConnectFailed ErrorKind = "connect_failed"

	// KindTimeout covers deadline and per-request timeout expiry.
	KindTimeout ErrorKind = "timeout"

	// KindTLSError covers handshake and certificate failures.
	KindTLSError ErrorKind = "tls_error"
)

// TransportError wraps a failed exchange with its classification so the
// rotation engine can treat every transport failure uniformly.
type TransportError struct {
	Kind  ErrorKind
	Proxy string
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Proxy != "" {
		return fmt.Sprintf("%s via %s: %v", e.Kind, e.Proxy, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// IsTimeout reports whether err is a timeout classified transport error.
func IsTimeout(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Kind == KindTimeout
}

// classify maps a raw client error onto the transport taxonomy. proxy
// must already be credential-redacted.
func classify(err error, proxy string) *TransportError {
	kind := KindConnectFailed

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	case isTLSError(err):
		kind = KindTLSError
	}

	return &TransportError{Kind: kind, Proxy: proxy, Cause: err}
}

func isTLSError(err error) bool {
	var (
		recordErr tls.RecordHeaderError
		certErr   *tls.CertificateVerificationError
		hostErr   x509.HostnameError
		authErr   x509.UnknownAuthorityError
	)
	return errors.As(err, &recordErr) ||
		errors.As(err, &certErr) ||
		errors.As(err, &hostErr) ||
		errors.As(err, &authErr)
}
