package credit

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes domain errors. None of them is retryable: the outcome
// for a given input and stored state is deterministic.
type ErrorCode string

const (
	// ErrCodeInvalidInput indicates a missing or malformed field in raw input.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrCodeDataConflict indicates an identifier match whose stored fields differ.
	ErrCodeDataConflict ErrorCode = "DATA_CONFLICT"

	// ErrCodeNotFound indicates the addressed record does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeAlreadyRetired indicates the record already has a RETIRED event.
	ErrCodeAlreadyRetired ErrorCode = "ALREADY_RETIRED"
)

// Error is a domain error with structured fields for callers that map
// outcomes onto transport status codes.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// RecordID identifies the affected record, when known.
	RecordID string

	// Field names the offending input field (InvalidInput only).
	Field string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
	}
	if e.RecordID != "" {
		return fmt.Sprintf("%s: %s (record=%s)", e.Code, e.Message, e.RecordID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf returns the domain code carried by err, or "" when err is not a
// domain error.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsInvalidInput reports whether err is an INVALID_INPUT error.
func IsInvalidInput(err error) bool { return CodeOf(err) == ErrCodeInvalidInput }

// IsDataConflict reports whether err is a DATA_CONFLICT error.
func IsDataConflict(err error) bool { return CodeOf(err) == ErrCodeDataConflict }

// IsNotFound reports whether err is a NOT_FOUND error.
func IsNotFound(err error) bool { return CodeOf(err) == ErrCodeNotFound }

// IsAlreadyRetired reports whether err is an ALREADY_RETIRED error.
func IsAlreadyRetired(err error) bool { return CodeOf(err) == ErrCodeAlreadyRetired }

// NewInvalidInputError reports a bad raw field.
func NewInvalidInputError(field, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeInvalidInput,
		Message: fmt.Sprintf(format, args...),
		Field:   field,
	}
}

// NewDataConflictError reports stored data that differs from the request.
func NewDataConflictError(recordID string, fields []string) *Error {
	return &Error{
		Code:     ErrCodeDataConflict,
		Message:  fmt.Sprintf("record exists with different data (fields: %v)", fields),
		RecordID: recordID,
	}
}

// NewNotFoundError reports a missing record.
func NewNotFoundError(recordID string) *Error {
	return &Error{
		Code:     ErrCodeNotFound,
		Message:  "record not found",
		RecordID: recordID,
	}
}

// NewAlreadyRetiredError reports a second retirement attempt.
func NewAlreadyRetiredError(recordID string) *Error {
	return &Error{
		Code:     ErrCodeAlreadyRetired,
		Message:  "record already retired",
		RecordID: recordID,
	}
}
