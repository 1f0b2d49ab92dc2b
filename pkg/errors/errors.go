package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches by code so Clone/Wrap derivatives still compare equal.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e != nil && t != nil && e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// Scheduling engine errors.
var (
	// ErrCalculationDivergence is fatal: the holiday-skip walk exceeded its
	// iteration bound, which only happens with malformed holiday data. It is
	// surfaced to the admin, never silently truncated.
	ErrCalculationDivergence = New("CALCULATION_DIVERGENCE", http.StatusInternalServerError, "end date calculation exceeded iteration bound")

	// ErrDuplicateSession is raised when a session insert collides with an
	// existing non-cancelled session for the same student/tutor/date/slot.
	ErrDuplicateSession = New("DUPLICATE_SESSION", http.StatusConflict, "session already exists for this slot")

	// ErrMakeupWindowExceeded rejects makeup dates beyond the allowed window
	// after the origin session.
	ErrMakeupWindowExceeded = New("MAKEUP_WINDOW_EXCEEDED", http.StatusUnprocessableEntity, "makeup date falls outside the allowed window")

	// ErrInvalidStateTransition marks a forbidden status move; it is never
	// auto-corrected.
	ErrInvalidStateTransition = New("INVALID_STATE_TRANSITION", http.StatusConflict, "invalid state transition")

	// ErrProposalAlreadyResolved is expected under concurrent resolution:
	// the losing reviewer reloads and retries at most once.
	ErrProposalAlreadyResolved = New("PROPOSAL_ALREADY_RESOLVED", http.StatusConflict, "makeup proposal already resolved")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
