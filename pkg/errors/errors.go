package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the typed rejection returned to a caller when an operation
// on the dispatch core fails. Status is only used by the REST edge; the
// WebSocket gateway sends Code and Message verbatim.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Taxonomy codes. Every rejection the core produces carries one of these.
const (
	CodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	CodeNotFound             = "NOT_FOUND"
	CodeForbidden            = "FORBIDDEN"
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodePreconditionFailed   = "PRECONDITION_FAILED"
	CodeAlreadyRated         = "ALREADY_RATED"
	CodeBadRequest           = "BAD_REQUEST"
	CodeInternal             = "INTERNAL_ERROR"
)

// AuthenticationFailed creates a connection-refused error; no session is
// ever created for the failing connection.
func AuthenticationFailed(message string, err error) *AppError {
	return &AppError{
		Code:    CodeAuthenticationFailed,
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

// NotFound creates an unknown-ride/identity error
func NotFound(message string, err error) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: message,
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

// Forbidden creates an actor-not-party-to-the-ride error
func Forbidden(message string, err error) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
		Status:  http.StatusForbidden,
		Err:     err,
	}
}

// InvalidTransition creates a status-table violation error. Lost accept
// races surface as this code.
func InvalidTransition(message string, err error) *AppError {
	return &AppError{
		Code:    CodeInvalidTransition,
		Message: message,
		Status:  http.StatusConflict,
		Err:     err,
	}
}

// PreconditionFailed creates an unmet-requirement error (e.g. the
// accepting driver has no verified vehicle).
func PreconditionFailed(message string, err error) *AppError {
	return &AppError{
		Code:    CodePreconditionFailed,
		Message: message,
		Status:  http.StatusPreconditionFailed,
		Err:     err,
	}
}

// AlreadyRated creates a duplicate-rating error
func AlreadyRated(message string, err error) *AppError {
	return &AppError{
		Code:    CodeAlreadyRated,
		Message: message,
		Status:  http.StatusConflict,
		Err:     err,
	}
}

// BadRequest creates a malformed-payload error
func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

// Internal creates a 500 error
func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Common instances

var (
	ErrRideNotFound = NotFound("Ride not found", nil)
	ErrUserNotFound = NotFound("User not found", nil)
)

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError attempts to convert an error to AppError
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	// Return generic internal error if not an AppError
	return Internal("An unexpected error occurred", err)
}

// HasCode reports whether err is an AppError carrying the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
