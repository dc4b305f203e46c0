// Package errors defines the application error taxonomy. Every failure the
// auth service can surface maps to one of the values below; messages are
// short, stable, and never expose storage or hashing internals.
package errors

import (
	"net/http"

	"studytrack/internal/errors"
)

// AppError defines the interface for application-specific errors.
type AppError interface {
	error
	HTTPCode() int     // HTTP status code
	ErrorCode() string // Business error code
	Message() string   // User-friendly error message
	Details() string   // Detailed error information (optional)
}

// BaseError is a basic error structure that implements the AppError interface.
type BaseError struct {
	httpCode  int
	errorCode string
	message   string
	details   string
}

// NewBaseError creates a new base error.
func NewBaseError(httpCode int, errorCode, message, details string) *BaseError {
	return &BaseError{
		httpCode:  httpCode,
		errorCode: errorCode,
		message:   message,
		details:   details,
	}
}

// Error implements the error interface.
func (e *BaseError) Error() string {
	return e.message
}

// WrapMessage wraps the error with additional context message.
func (e *BaseError) WrapMessage(message string) error {
	return errors.Wrap(e, message)
}

// HTTPCode returns the HTTP status code.
func (e *BaseError) HTTPCode() int {
	return e.httpCode
}

// ErrorCode returns the business error code.
func (e *BaseError) ErrorCode() string {
	return e.errorCode
}

// Message returns the user-friendly error message.
func (e *BaseError) Message() string {
	return e.message
}

// Details returns detailed error information.
func (e *BaseError) Details() string {
	return e.details
}

// WithDetails adds detailed error information.
func (e *BaseError) WithDetails(details string) *BaseError {
	return &BaseError{
		httpCode:  e.httpCode,
		errorCode: e.errorCode,
		message:   e.message,
		details:   details,
	}
}

var (
	// ErrValidationFailed covers malformed emails, weak or unprintable
	// passwords, and structurally bad token strings in request bodies.
	ErrValidationFailed = NewBaseError(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"invalid input",
		"",
	)

	// ErrEmailAlreadyInUse is the registration conflict error.
	ErrEmailAlreadyInUse = NewBaseError(
		http.StatusConflict,
		"EMAIL_ALREADY_IN_USE",
		"this email address is already in use",
		"",
	)

	// ErrInvalidCredentials is deliberately shared across "no such user",
	// "no local password set" and "wrong password" so that callers cannot
	// distinguish the cases.
	ErrInvalidCredentials = NewBaseError(
		http.StatusUnauthorized,
		"INVALID_CREDENTIALS",
		"invalid email or password",
		"",
	)

	// ErrInvalidToken covers malformed, wrongly-signed and issuer-mismatched
	// bearer tokens, and also reset tokens that are unknown, expired or
	// already consumed. The merging is intentional.
	ErrInvalidToken = NewBaseError(
		http.StatusUnauthorized,
		"INVALID_TOKEN",
		"invalid or expired token",
		"",
	)

	// ErrTokenExpired is returned by bearer-token verification when the
	// signature is valid but the expiry has passed.
	ErrTokenExpired = NewBaseError(
		http.StatusUnauthorized,
		"TOKEN_EXPIRED",
		"token has expired, please log in again",
		"",
	)

	// ErrTokenTooOldToRefresh is the refresh-specific age-policy failure.
	ErrTokenTooOldToRefresh = NewBaseError(
		http.StatusUnauthorized,
		"TOKEN_TOO_OLD",
		"token is too old to be renewed, please log in again",
		"",
	)

	// ErrUserNotFound is returned when a refresh target no longer exists.
	ErrUserNotFound = NewBaseError(
		http.StatusUnauthorized,
		"USER_NOT_FOUND",
		"user not found",
		"",
	)

	// ErrTooManyAttempts is the rate-limit denial for credential checks.
	ErrTooManyAttempts = NewBaseError(
		http.StatusTooManyRequests,
		"TOO_MANY_ATTEMPTS",
		"too many login attempts, try again later",
		"",
	)

	// ErrTooManyRequests is the rate-limit denial for password-reset requests.
	ErrTooManyRequests = NewBaseError(
		http.StatusTooManyRequests,
		"TOO_MANY_REQUESTS",
		"too many password reset requests, try again later",
		"",
	)

	// ErrOAuthTokenInvalid is returned when an external identity token fails
	// verification.
	ErrOAuthTokenInvalid = NewBaseError(
		http.StatusUnauthorized,
		"OAUTH_TOKEN_INVALID",
		"invalid identity token",
		"",
	)

	// ErrInternal masks unexpected store or hash failures. The detailed cause
	// is logged, never returned.
	ErrInternal = NewBaseError(
		http.StatusInternalServerError,
		"INTERNAL_ERROR",
		"internal server error",
		"",
	)
)

// DatabaseExecuteError represents a storage execution failure. It satisfies
// AppError so the HTTP layer renders it as a generic internal error while the
// wrapped cause stays available for logging.
type DatabaseExecuteError struct {
	err     error
	details string
}

// NewDatabaseExecuteError creates a storage-related error.
func NewDatabaseExecuteError(err error, details string) AppError {
	return &DatabaseExecuteError{
		err:     err,
		details: details,
	}
}

// Error implements the error interface.
func (e *DatabaseExecuteError) Error() string {
	return errors.Wrap(e.err, "storage execution failed").Error()
}

// HTTPCode returns the HTTP status code.
func (e *DatabaseExecuteError) HTTPCode() int {
	return http.StatusInternalServerError
}

// ErrorCode returns the business error code.
func (e *DatabaseExecuteError) ErrorCode() string {
	return "STORAGE_EXECUTE_FAILED"
}

// Message returns the user-friendly error message. Deliberately generic: the
// caller must never learn which storage engine failed or why.
func (e *DatabaseExecuteError) Message() string {
	return "internal server error"
}

// Details returns detailed error information.
func (e *DatabaseExecuteError) Details() string {
	return e.details
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *DatabaseExecuteError) Unwrap() error {
	return e.err
}
