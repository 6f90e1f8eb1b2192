package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a category of gateway error.
type ErrorCode string

const (
	// ErrCodeValidation indicates missing or malformed input.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeUnauthorized indicates the identity provider or credential check rejected the caller.
	ErrCodeUnauthorized ErrorCode = "unauthorized"
	// ErrCodeChallenge indicates the bot challenge failed.
	ErrCodeChallenge ErrorCode = "challenge_failed"
	// ErrCodeConflict indicates the requested state already holds (user exists, already mentor).
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeNotFound indicates a record was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeTokenInvalid indicates a session token failed validation or is stale.
	ErrCodeTokenInvalid ErrorCode = "token_invalid"
	// ErrCodeInternal indicates a store or other server-side failure.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
)

// AppError represents a structured application error with a code, message, and optional cause.
// Message is safe to show to clients; Cause is for logs only.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a short human-readable reason
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific input field that caused the error (optional)
	Field string
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

func newError(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError { return newError(ErrCodeValidation, message) }

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	e := newError(ErrCodeValidation, message)
	e.Field = field
	return e
}

// Unauthorized creates a new Unauthorized error.
func Unauthorized(message string) *AppError { return newError(ErrCodeUnauthorized, message) }

// Challenge creates a new bot challenge failure.
func Challenge(message string) *AppError { return newError(ErrCodeChallenge, message) }

// Conflict creates a new Conflict error.
func Conflict(message string) *AppError { return newError(ErrCodeConflict, message) }

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError { return newError(ErrCodeNotFound, message) }

// TokenInvalid creates a new TokenInvalid error.
func TokenInvalid(message string) *AppError { return newError(ErrCodeTokenInvalid, message) }

// Internal creates a new Internal error.
func Internal(message string) *AppError { return newError(ErrCodeInternal, message) }

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
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool { return isCode(err, ErrCodeValidation) }

// IsUnauthorized checks if an error is an Unauthorized error.
func IsUnauthorized(err error) bool { return isCode(err, ErrCodeUnauthorized) }

// IsChallenge checks if an error is a bot challenge failure.
func IsChallenge(err error) bool { return isCode(err, ErrCodeChallenge) }

// IsConflict checks if an error is a Conflict error.
func IsConflict(err error) bool { return isCode(err, ErrCodeConflict) }

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool { return isCode(err, ErrCodeNotFound) }

// IsTokenInvalid checks if an error is a TokenInvalid error.
func IsTokenInvalid(err error) bool { return isCode(err, ErrCodeTokenInvalid) }

// IsInternal checks if an error is an Internal error.
func IsInternal(err error) bool { return isCode(err, ErrCodeInternal) }

// IsTimeout checks if an error is a Timeout error.
func IsTimeout(err error) bool { return isCode(err, ErrCodeTimeout) }

// IsCanceled checks if an error is a Canceled error.
func IsCanceled(err error) bool { return isCode(err, ErrCodeCanceled) }

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

// PublicMessage returns the client-safe message of an AppError, or fallback for anything else.
func PublicMessage(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}

// HTTPStatus maps an error to the response status used by the gateway.
// Errors that are not AppErrors are treated as internal.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case ErrCodeValidation, ErrCodeChallenge, ErrCodeConflict:
		return http.StatusBadRequest
	case ErrCodeUnauthorized, ErrCodeTokenInvalid:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
