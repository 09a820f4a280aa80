package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so callers can tell bad input, bad
// configuration, and expected network churn apart.
type ErrorKind int

const (
	// KindUsage covers wrong argument counts or out-of-range values.
	// The process exits before performing any side effect.
	KindUsage ErrorKind = iota

	// KindConfiguration covers problems with the local setup, such as
	// an unreadable CA certificate or an invalid URL.
	KindConfiguration

	// KindTransientNetwork covers per-request and per-probe failures
	// (refused connections, timeouts, TLS errors). These are recorded
	// and never abort a run.
	KindTransientNetwork
)

// String returns a human-readable name for the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindUsage:
		return "usage"
	case KindConfiguration:
		return "configuration"
	case KindTransientNetwork:
		return "transient network"
	default:
		return "unknown"
	}
}

// ProbeError tags an error with its kind.
type ProbeError struct {
	Kind ErrorKind
	Err  error
}

// Error returns the underlying error message.
func (e *ProbeError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e *ProbeError) Unwrap() error {
	return e.Err
}

// NewUsageError creates a usage-class error.
func NewUsageError(format string, args ...any) *ProbeError {
	return &ProbeError{Kind: KindUsage, Err: fmt.Errorf(format, args...)}
}

// NewConfigurationError creates a configuration-class error.
func NewConfigurationError(format string, args ...any) *ProbeError {
	return &ProbeError{Kind: KindConfiguration, Err: fmt.Errorf(format, args...)}
}

// NewTransientError creates a transient network error.
func NewTransientError(err error) *ProbeError {
	return &ProbeError{Kind: KindTransientNetwork, Err: err}
}

// KindOf extracts the error kind from err or any error it wraps.
// The second return value is false if err carries no kind.
func KindOf(err error) (ErrorKind, bool) {
	var pe *ProbeError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}
