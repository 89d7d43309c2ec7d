package store

import (
	"errors"
	"fmt"

	"paylesscars/platform/apperr"

	"github.com/google/uuid"
)

// Class tells callers how to react to a failure.
type Class string

const (
	// FetchError is transient (network, 5xx, timeout); retrying is safe.
	FetchError Class = "fetch"
	// ValidationError means the input must be corrected first.
	ValidationError Class = "validation"
	// ConflictError means the negotiation changed remotely; re-fetch before
	// acting again, never retry as-is.
	ConflictError Class = "conflict"
	// AuthError means the session is invalid or the caller may not act.
	AuthError Class = "auth"
)

var (
	ErrOperationInFlight = errors.New("another operation is in flight for this negotiation")
	ErrStoreClosed       = errors.New("negotiation store is closed")
)

// Error is what every store operation returns on failure.
type Error struct {
	Class         Class
	Op            string
	NegotiationID uuid.UUID
	Err           error
}

func (e *Error) Error() string {
	if e.NegotiationID != uuid.Nil {
		return fmt.Sprintf("%s %s (%s): %v", e.Op, e.Class, e.NegotiationID, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether repeating the same call unchanged is safe.
func (e *Error) Retryable() bool { return e.Class == FetchError }

// ClassOf returns the class of a store error, or "" for other errors.
func ClassOf(err error) Class {
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr.Class
	}
	return ""
}

func classify(err error) Class {
	switch {
	case errors.Is(err, ErrStoreClosed):
		return ValidationError
	case errors.Is(err, ErrOperationInFlight):
		return ConflictError
	}

	switch apperr.GetKind(err) {
	case apperr.KindValidation, apperr.KindBadRequest, apperr.KindNotFound:
		return ValidationError
	case apperr.KindConflict, apperr.KindGone:
		return ConflictError
	case apperr.KindUnauthorized, apperr.KindForbidden:
		return AuthError
	default:
		return FetchError
	}
}

func wrap(op string, id uuid.UUID, err error) *Error {
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr
	}
	return &Error{Class: classify(err), Op: op, NegotiationID: id, Err: err}
}
