package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeInvalid          ErrorCode = "INVALID"
	ErrCodeConflict         ErrorCode = "CONFLICT"
	ErrCodeForbidden        ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal         ErrorCode = "INTERNAL"
	ErrCodeMutationDenied   ErrorCode = "MUTATION_DENIED"
	ErrCodeStaleWrite       ErrorCode = "STALE_WRITE"
	ErrCodeSeriesGeneration ErrorCode = "SERIES_GENERATION"
)

// Error represents a domain-level error. Details carries machine-readable
// context (field names, denial reasons) for the caller.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on code and message so sentinels still compare equal after WithDetail.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetail returns a copy of the error carrying an extra detail entry.
func (e *Error) WithDetail(key, value string) *Error {
	out := &Error{Code: e.Code, Message: e.Message, Err: e.Err, Details: make(map[string]string, len(e.Details)+1)}
	for k, v := range e.Details {
		out.Details[k] = v
	}
	out.Details[key] = value
	return out
}

// NewValidationError reports malformed input on a specific field.
func NewValidationError(field, message string) *Error {
	return NewError(ErrCodeInvalid, message).WithDetail("field", field)
}

// Denial reasons surfaced by the mutation guard.
const (
	ReasonAlreadyStarted = "already-started"
	ReasonAuditSafety    = "audit-safety"
)

// NewMutationDenied builds the guard refusal for the given status and reason.
func NewMutationDenied(status Status, reason string) *Error {
	var msg string
	switch reason {
	case ReasonAlreadyStarted:
		msg = "activity has already started"
	case ReasonAuditSafety:
		msg = "completed activities are retained for audit and can never be changed or deleted"
	default:
		msg = "mutation denied"
	}
	return NewError(ErrCodeMutationDenied, msg).
		WithDetail("reason", reason).
		WithDetail("status", string(status))
}

// NewStaleWrite reports that the record left the upcoming state between read and write.
func NewStaleWrite(status Status) *Error {
	msg := "activity has since started"
	if status == StatusCompleted {
		msg = "activity has since completed"
	}
	return NewError(ErrCodeStaleWrite, msg).WithDetail("status", string(status))
}

// Common domain errors.
var (
	ErrActivityNotFound        = NewError(ErrCodeNotFound, "activity not found")
	ErrSeriesNotFound          = NewError(ErrCodeNotFound, "series not found")
	ErrPrayerRequestNotFound   = NewError(ErrCodeNotFound, "prayer request not found")
	ErrFavoriteNotFound        = NewError(ErrCodeNotFound, "favorite not found")
	ErrUnauthorized            = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrForbidden               = NewError(ErrCodeForbidden, "forbidden")
	ErrInvalidPayload          = NewError(ErrCodeInvalid, "invalid payload")
	ErrInvalidTransition       = NewError(ErrCodeConflict, "invalid status transition")
	ErrNotLive                 = NewError(ErrCodeConflict, "activity is not in progress")
	ErrNoOccurrences           = NewError(ErrCodeSeriesGeneration, "recurrence rule produced no occurrences within the horizon")
	ErrMaterializationDeferred = NewError(ErrCodeSeriesGeneration, "occurrences could not be generated yet, the next horizon sweep will retry")
	ErrSeriesBusy              = NewError(ErrCodeConflict, "series is being updated, retry shortly")
	ErrSeriesInactive          = NewError(ErrCodeConflict, "series is no longer active")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// DetailOf returns a detail value from the first domain error in the chain.
func DetailOf(err error, key string) string {
	var dErr *Error
	if errors.As(err, &dErr) && dErr.Details != nil {
		return dErr.Details[key]
	}
	return ""
}
