package model

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes errors surfaced by the engine.
type ErrorCode string

const (
	// ErrCodeValidation indicates malformed caller input. No side effect happened.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// ErrCodeEmptyBatch indicates a batch with no items.
	ErrCodeEmptyBatch ErrorCode = "EMPTY_BATCH"

	// ErrCodeBatchTooLarge indicates a batch above the configured cap.
	ErrCodeBatchTooLarge ErrorCode = "BATCH_TOO_LARGE"

	// ErrCodeStateTransition indicates an illegal status change. The row is unchanged.
	ErrCodeStateTransition ErrorCode = "STATE_TRANSITION_ERROR"

	// ErrCodeNotFound indicates a referenced projection row does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodePersistence indicates the store failed. Retryable by the caller.
	ErrCodePersistence ErrorCode = "PERSISTENCE_FAILURE"
)

// Error is the single error type returned across component boundaries.
//
// It carries a machine-readable code so callers can branch without parsing
// messages, and optional details for diagnostics.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether repeating the call may succeed.
func (e *Error) Retryable() bool { return e.Code == ErrCodePersistence }

// NewValidationError creates a VALIDATION_ERROR for a single field.
func NewValidationError(field, message string) *Error {
	return &Error{
		Code:    ErrCodeValidation,
		Message: message,
		Details: map[string]string{"field": field},
	}
}

// NewEmptyBatchError creates an EMPTY_BATCH error.
func NewEmptyBatchError() *Error {
	return &Error{Code: ErrCodeEmptyBatch, Message: "batch must contain at least one item"}
}

// NewBatchTooLargeError creates a BATCH_TOO_LARGE error.
func NewBatchTooLargeError(maxItems, received int) *Error {
	return &Error{
		Code:    ErrCodeBatchTooLarge,
		Message: fmt.Sprintf("batch exceeds maximum size of %d items (received %d)", maxItems, received),
		Details: map[string]string{
			"max_items": fmt.Sprintf("%d", maxItems),
			"received":  fmt.Sprintf("%d", received),
		},
	}
}

// NewStateTransitionError creates a STATE_TRANSITION_ERROR.
func NewStateTransitionError(kind string, id int64, from, to string) *Error {
	return &Error{
		Code:    ErrCodeStateTransition,
		Message: fmt.Sprintf("%s %d cannot move from %s to %s", kind, id, from, to),
		Details: map[string]string{"kind": kind, "from": from, "to": to},
	}
}

// NewNotFoundError creates a NOT_FOUND error.
func NewNotFoundError(kind string, id int64) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %d not found", kind, id),
		Details: map[string]string{"kind": kind},
	}
}

// NewPersistenceError wraps a store failure.
func NewPersistenceError(op string, err error) *Error {
	return &Error{Code: ErrCodePersistence, Message: op, Err: err}
}

// CodeOf returns the code of err, or "" when err is not an *Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsValidationError returns true for VALIDATION_ERROR, EMPTY_BATCH and BATCH_TOO_LARGE.
// Uses errors.As to handle wrapped errors.
func IsValidationError(err error) bool {
	switch CodeOf(err) {
	case ErrCodeValidation, ErrCodeEmptyBatch, ErrCodeBatchTooLarge:
		return true
	}
	return false
}

// IsStateTransitionError returns true if err is a STATE_TRANSITION_ERROR.
func IsStateTransitionError(err error) bool {
	return CodeOf(err) == ErrCodeStateTransition
}

// IsNotFound returns true if err is a NOT_FOUND error.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// IsPersistenceFailure returns true if err is a PERSISTENCE_FAILURE.
func IsPersistenceFailure(err error) bool {
	return CodeOf(err) == ErrCodePersistence
}
