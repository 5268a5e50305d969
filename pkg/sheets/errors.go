package sheets

import (
	"errors"
	"fmt"
)

// Failure taxonomy for the spreadsheet store. Transient failures (network,
// quota) are retried by the gateway; Permanent failures (bad credentials,
// schema mismatch) are not, and flip the gateway into degraded mode. Callers
// that exhaust the retry budget receive ErrUnavailable and are expected to
// continue on cached data.

type Kind int

const (
	KindTransient Kind = iota
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Error tags a store failure with its operation and retryability class.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("sheets: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("sheets: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Transient wraps err as a retryable store failure.
func Transient(op string, err error) *Error {
	return &Error{Op: op, Kind: KindTransient, Err: err}
}

// Permanent wraps err as a non-retryable store failure.
func Permanent(op string, err error) *Error {
	return &Error{Op: op, Kind: KindPermanent, Err: err}
}

// IsTransient reports whether err is a retryable store failure. Untagged
// errors are treated as transient so an unknown failure mode never disables
// the gateway outright.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *Error
	if errors.As(err, &se) {
		return se != nil && se.Kind == KindTransient
	}
	return true
}

// IsPermanent reports whether err is tagged as non-retryable.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var se *Error
	if errors.As(err, &se) {
		return se != nil && se.Kind == KindPermanent
	}
	return false
}

var (
	// ErrNotFound is returned by FetchRow when no row exists for the user.
	ErrNotFound = errors.New("sheets: row not found")

	// ErrUnavailable is returned after the transient retry budget is
	// exhausted; the caller must fall back to cached data.
	ErrUnavailable = errors.New("sheets: store unavailable")
)
