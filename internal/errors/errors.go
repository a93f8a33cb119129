package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeUnauthenticated indicates a missing, invalid, or expired session.
	ErrCodeUnauthenticated ErrorCode = "unauthenticated"
	// ErrCodeForbidden indicates a valid session that fails the allow-list checks.
	ErrCodeForbidden ErrorCode = "forbidden"
	// ErrCodeDirectoryUnavailable indicates a directory bind or search failure.
	ErrCodeDirectoryUnavailable ErrorCode = "directory_unavailable"
	// ErrCodeConfigInvalid indicates a malformed or incomplete configuration.
	ErrCodeConfigInvalid ErrorCode = "config_invalid"
	// ErrCodeConflict indicates a conflict with existing data.
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
)

// AppError represents a structured application error with a code, message,
// and optional cause. It supports error wrapping and unwrapping for use
// with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Unauthenticated creates a new Unauthenticated error.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Code:    ErrCodeUnauthenticated,
		Message: message,
	}
}

// Forbidden creates a new Forbidden error.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrCodeForbidden,
		Message: message,
	}
}

// DirectoryUnavailable creates a new DirectoryUnavailable error.
func DirectoryUnavailable(message string) *AppError {
	return &AppError{
		Code:    ErrCodeDirectoryUnavailable,
		Message: message,
	}
}

// DirectoryUnavailablef creates a new DirectoryUnavailable error with
// formatted message.
func DirectoryUnavailablef(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeDirectoryUnavailable,
		Message: fmt.Sprintf(format, args...),
	}
}

// ConfigInvalid creates a new ConfigInvalid error.
func ConfigInvalid(message string) *AppError {
	return &AppError{
		Code:    ErrCodeConfigInvalid,
		Message: message,
	}
}

// ConfigInvalidf creates a new ConfigInvalid error with formatted message.
func ConfigInvalidf(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeConfigInvalid,
		Message: fmt.Sprintf(format, args...),
	}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsUnauthenticated checks if an error is an Unauthenticated error.
func IsUnauthenticated(err error) bool {
	return isCode(err, ErrCodeUnauthenticated)
}

// IsForbidden checks if an error is a Forbidden error.
func IsForbidden(err error) bool {
	return isCode(err, ErrCodeForbidden)
}

// IsDirectoryUnavailable checks if an error is a DirectoryUnavailable error.
func IsDirectoryUnavailable(err error) bool {
	return isCode(err, ErrCodeDirectoryUnavailable)
}

// IsConfigInvalid checks if an error is a ConfigInvalid error.
func IsConfigInvalid(err error) bool {
	return isCode(err, ErrCodeConfigInvalid)
}

// IsTimeout checks if an error is a Timeout error.
func IsTimeout(err error) bool {
	return isCode(err, ErrCodeTimeout)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
