// Package apperr defines the typed error taxonomy shared across the
// orchestrator. Subgraphs and adapters return these kinds so the engine
// can map them to outcome codes without ever raising through the HTTP
// boundary.
package apperr

import "errors"

// Kind identifies a class of failure. Handlers switch on Kind rather
// than matching error strings.
type Kind string

const (
	KindInputError         Kind = "input_error"
	KindLLMUnavailable     Kind = "llm_unavailable"
	KindBackendTransient   Kind = "backend_transient"
	KindBackendPermanent   Kind = "backend_permanent"
	KindConflict           Kind = "conflict"
	KindLockDenied         Kind = "lock_denied"
	KindTimeout            Kind = "timeout"
	KindInvariantViolation Kind = "invariant_violation"
	KindNotFound           Kind = "not_found"
	KindThrottled          Kind = "throttled"
	KindUnavailable        Kind = "unavailable"
	KindCircuitOpen        Kind = "circuit_open"
)

// Error wraps an underlying cause with a Kind so callers can branch on
// failure class while still getting a useful message via Error().
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind around an existing cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to KindInvariantViolation
// when err is not a tagged *Error (an untyped error escaping this far is
// itself a bug).
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInvariantViolation
}

// Retryable reports whether the error kind is one the caller should
// retry rather than surface permanently, per spec §4.1/§7.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindBackendTransient, KindThrottled, KindUnavailable, KindTimeout:
		return true
	default:
		return false
	}
}

var (
	ErrNotFound = New(KindNotFound, "resource not found")
	ErrConflict = New(KindConflict, "optimistic concurrency conflict")
)
