package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Domain errors
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"

	// Application errors
	ErrorTypeInternal    ErrorType = "INTERNAL"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"
	ErrorTypeRateLimit   ErrorType = "RATE_LIMIT"

	// Infrastructure errors
	ErrorTypeDatabase ErrorType = "DATABASE"
	ErrorTypeExternal ErrorType = "EXTERNAL"
)

// Error codes attached to canvas validation failures
const (
	CodeBlankTitle    = "BLANK_TITLE"
	CodeInvalidID     = "INVALID_ID"
	CodeInvalidColor  = "INVALID_COLOR"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeBoardTooLarge = "BOARD_TOO_LARGE"
	CodeSessionClosed = "SESSION_CLOSED"
)

// AppError represents an application-specific error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetail adds a single detail entry
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// captureStackTrace captures the current stack trace
func captureStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var sb strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&sb, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return sb.String()
}

func newAppError(t ErrorType, status int, message string) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		HTTPStatus: status,
		StackTrace: captureStackTrace(),
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return newAppError(ErrorTypeValidation, http.StatusBadRequest, message)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return newAppError(ErrorTypeNotFound, http.StatusNotFound, fmt.Sprintf("%s not found", resource))
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return newAppError(ErrorTypeConflict, http.StatusConflict, message)
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return newAppError(ErrorTypeUnauthorized, http.StatusUnauthorized, message)
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(message string) *AppError {
	if message == "" {
		message = "forbidden"
	}
	return newAppError(ErrorTypeForbidden, http.StatusForbidden, message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return newAppError(ErrorTypeInternal, http.StatusInternalServerError, message)
}

// NewUnavailableError creates a service unavailable error
func NewUnavailableError(service string) *AppError {
	return newAppError(ErrorTypeUnavailable, http.StatusServiceUnavailable,
		fmt.Sprintf("service '%s' is unavailable", service))
}

// NewRateLimitError creates a too many requests error
func NewRateLimitError(message string) *AppError {
	return newAppError(ErrorTypeRateLimit, http.StatusTooManyRequests, message)
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, err error) *AppError {
	return newAppError(ErrorTypeDatabase, http.StatusInternalServerError,
		fmt.Sprintf("database operation '%s' failed", operation)).WithCause(err)
}

// NewExternalError creates an external service error
func NewExternalError(service string, err error) *AppError {
	return newAppError(ErrorTypeExternal, http.StatusBadGateway,
		fmt.Sprintf("external service '%s' error", service)).WithCause(err)
}

// Helper functions

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// IsUnauthorized checks if an error is an unauthorized error
func IsUnauthorized(err error) bool {
	return IsType(err, ErrorTypeUnauthorized)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return IsType(err, ErrorTypeConflict)
}

// IsUnavailable checks if an error is a service unavailable error
func IsUnavailable(err error) bool {
	return IsType(err, ErrorTypeUnavailable)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, add context to message
	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}

	// Otherwise create a new internal error
	return NewInternalError(message).WithCause(err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
