package models

import (
	"errors"
	"fmt"
)

// Error kinds shared by the repositories, the services and the HTTP layer.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION_ERROR"
	CodeForbidden    = "FORBIDDEN"
	CodeSelfFollow   = "SELF_FOLLOW"
	CodeDuplicate    = "DUPLICATE"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInternal     = "INTERNAL_ERROR"
)

// AppError is an error with a stable kind. Message is safe to show callers;
// Err is the underlying cause and stays server side.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error { return e.Err }

func appError(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// NewNotFoundError reports that a referenced entity is absent.
func NewNotFoundError(resource string, id interface{}) *AppError {
	return appError(CodeNotFound, fmt.Sprintf("%s with ID %v not found", resource, id))
}

func NewValidationError(message string) *AppError { return appError(CodeValidation, message) }

func NewForbiddenError(message string) *AppError { return appError(CodeForbidden, message) }

func NewSelfFollowError() *AppError { return appError(CodeSelfFollow, "Cannot follow yourself") }

func NewDuplicateError(message string) *AppError { return appError(CodeDuplicate, message) }

func NewUnauthorizedError(message string) *AppError { return appError(CodeUnauthorized, message) }

// NewInternalError hides cause behind a generic message.
func NewInternalError(cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: "Internal server error", Err: cause}
}

// CodeOf returns the kind of the first AppError in err's chain, or
// CodeInternal when there is none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// IsCode reports whether err is (or wraps) an AppError with the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
