package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeCapacity     ErrorCode = "CAPACITY"
	ErrCodeLockedOut    ErrorCode = "LOCKED_OUT"
	ErrCodeCollaborator ErrorCode = "COLLABORATOR"
	ErrCodeInternal     ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
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

// Common domain errors.
var (
	ErrTaskNotFound     = NewError(ErrCodeNotFound, "task not found or not active")
	ErrProfileNotFound  = NewError(ErrCodeNotFound, "profile not found")
	ErrCapacityExceeded = NewError(ErrCodeCapacity, "no more than 3 tasks may be active at once")
	ErrLockedOut        = NewError(ErrCodeLockedOut, "game over: new tasks are locked until rank improves or data is purged")
	ErrExtensionUsed    = NewError(ErrCodeInvalid, "deadline extension already used")
	ErrInvalidPayload   = NewError(ErrCodeInvalid, "invalid payload")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}
