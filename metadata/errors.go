package metadata

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ConfigError is an invalid caller-supplied option. It is returned before any
// request is sent.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid metadata request option %s: %s", e.Field, e.Msg)
}

// ProtocolError means a completed response violated the metadata server
// contract, e.g. a missing or mismatched Metadata-Flavor header. It usually
// indicates that something other than the real metadata service answered on
// the probed address.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return "invalid response from metadata service: " + e.Msg
}

// StatusError is a completed response with a non-200 status code.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unsuccessful response status code %d from metadata service: %s", e.StatusCode, e.Body)
}

// statusCode extracts the HTTP status from err, or 0 if err is not a
// StatusError.
func statusCode(err error) int {
	var serr *StatusError
	if errors.As(err, &serr) {
		return serr.StatusCode
	}
	return 0
}

// isTimeout reports whether err is a request timeout, either from the
// per-request deadline or from the transport.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// isKnownAbsence reports whether err is one of the connection-level failures
// that reliably indicate no metadata server exists at the probed address:
// connection refused, host or network unreachable, or the metadata DNS name
// not resolving. Off-GCE machines produce exactly these, so the availability
// verdict swallows them without logging.
func isKnownAbsence(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED, syscall.EHOSTUNREACH, syscall.ENETUNREACH:
			return true
		}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsNotFound
	}
	return false
}
