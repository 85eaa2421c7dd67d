// Package kotaerr defines the semantic error taxonomy shared by every core
// component: storage, the three indices, the coordination service, and the
// wrapper stack. Errors are constructed with a Kind and, optionally, the
// component that raised them, and wrap an underlying cause with
// github.com/pkg/errors so a stack trace survives across package
// boundaries.
package kotaerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the semantic class of a core error. Callers branch on Kind, not on
// the wrapped error string.
type Kind int

const (
	// Unknown is the zero value, so a missed assignment is caught by tests
	// rather than silently matching a real kind. No constructor in this
	// package produces it; Of returns it for nil and for errors that carry
	// no *Error.
	Unknown Kind = iota
	ValidationPrecondition
	ValidationPostcondition
	ValidationInvariant
	ValidationInvalidInput
	NotFound
	AlreadyExists
	IndexSynchronizationFailure
	CorruptedStorage
	DimensionMismatch
	IOError
	ConcurrencyLimit
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case ValidationPrecondition:
		return "ValidationError::Precondition"
	case ValidationPostcondition:
		return "ValidationError::Postcondition"
	case ValidationInvariant:
		return "ValidationError::Invariant"
	case ValidationInvalidInput:
		return "ValidationError::InvalidInput"
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case IndexSynchronizationFailure:
		return "IndexSynchronizationFailure"
	case CorruptedStorage:
		return "CorruptedStorage"
	case DimensionMismatch:
		return "DimensionMismatch"
	case IOError:
		return "IOError"
	case ConcurrencyLimit:
		return "ConcurrencyLimit"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Retryable reports whether the retry wrapper (wrappers.Retryable) is
// permitted to re-attempt an operation that failed with this Kind. Only
// IOError-class failures are retried; validation and corruption errors never
// are, per spec §7.
func (k Kind) Retryable() bool {
	return k == IOError
}

// Error is the concrete error type returned by every core package.
type Error struct {
	Kind      Kind
	Component string // e.g. "primary", "trigram", "vector" for IndexSynchronizationFailure
	Field     string // offending field name, for validation errors
	Reason    string // human-readable detail, e.g. CorruptedStorage{reason}
	cause     error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Component != "" {
		msg += fmt.Sprintf("{component=%s}", e.Component)
	}
	if e.Field != "" {
		msg += fmt.Sprintf("{field=%s}", e.Field)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

// Is makes errors.Is match when target is an *Error with the same Kind
// (and, if target names a Component, the same Component). A bare Kind is
// not an error value; use KindIs to compare against one.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	if other.Kind != e.Kind {
		return false
	}
	if other.Component != "" && other.Component != e.Component {
		return false
	}
	return true
}

// New constructs a bare *Error of the given kind with a stack trace attached.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason, cause: errors.New(reason)}
}

// Wrap attaches Kind to an existing error, preserving its chain. Wrap
// returns nil if err is nil, so callers can write
// `return kotaerr.Wrap(kind, someCall(), reason)` directly over a call
// that may succeed.
func Wrap(kind Kind, err error, reason string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Reason: reason, cause: errors.Wrap(err, reason)}
}

// Field builds a validation error naming the offending field.
func Field(kind Kind, field, reason string) *Error {
	return &Error{Kind: kind, Field: field, Reason: reason, cause: errors.New(reason)}
}

// Component builds an IndexSynchronizationFailure naming the drifted
// component, per spec §4.7/§7.
func Component(component, reason string) *Error {
	return &Error{Kind: IndexSynchronizationFailure, Component: component, Reason: reason, cause: errors.New(reason)}
}

// Of reports the Kind of err, walking the wrap chain. Returns Unknown if err
// is nil or not a *Error anywhere in its chain.
func Of(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// KindIs reports whether err's Kind, anywhere in its wrap chain, equals k.
func KindIs(err error, k Kind) bool {
	return Of(err) == k
}
