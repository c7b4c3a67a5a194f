package coral

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrHostUnavailable is returned when the host connection has been torn
	// down or cannot be reached. Retrying without a new connection will not help.
	ErrHostUnavailable = errors.New("host unavailable")

	// ErrUnresolvedType is returned when the host has no metadata for a type
	// identity or name
	ErrUnresolvedType = errors.New("unresolved type")
)

// TypeError records the operation and type a host failure occurred on.
// It unwraps to the failure kind so callers can use errors.Is.
type TypeError struct {
	Op   string
	Type string
	Err  error
}

// Error implements the error interface
func (e *TypeError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("coral: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("coral: %s %s: %v", e.Op, e.Type, e.Err)
}

// Unwrap returns the underlying error
func (e *TypeError) Unwrap() error {
	return e.Err
}

// IsHostUnavailable reports whether err is a host availability failure
func IsHostUnavailable(err error) bool {
	return errors.Is(err, ErrHostUnavailable)
}

// IsUnresolvedType reports whether err is an unresolved type failure
func IsUnresolvedType(err error) bool {
	return errors.Is(err, ErrUnresolvedType)
}

// classify makes sure every error leaving the core is one of the two kinds.
// Backends are expected to wrap one of the sentinels already; anything else
// means the host could not be reached. Cancellation of the caller's context
// is passed through as is.
func classify(op, typeName string, err error) error {
	if err == nil {
		return nil
	}
	known := errors.Is(err, ErrHostUnavailable) || errors.Is(err, ErrUnresolvedType) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	if !known {
		err = fmt.Errorf("%w: %w", ErrHostUnavailable, err)
	}
	return &TypeError{Op: op, Type: typeName, Err: err}
}
