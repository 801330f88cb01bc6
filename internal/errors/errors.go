// Package errors defines the service error type shared across layers.
// Services return *ServiceError for rule violations so HTTP handlers can
// translate them into status codes without inspecting error strings.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies the class of a service error.
type ErrorCode string

const (
	ErrCodeValidation   ErrorCode = "VALIDATION"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeRateLimit    ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal     ErrorCode = "INTERNAL"
)

// ServiceError carries an error class, a human readable message, and the
// HTTP status the API layer should respond with.
type ServiceError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As chains.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails attaches a key/value pair to the error for diagnostics.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Validation reports a request that failed input validation.
func Validation(msg string) *ServiceError {
	return &ServiceError{Code: ErrCodeValidation, Message: msg, HTTPStatus: http.StatusBadRequest}
}

// Validationf is Validation with formatting.
func Validationf(format string, args ...interface{}) *ServiceError {
	return Validation(fmt.Sprintf(format, args...))
}

// Unauthorized reports a missing or unusable credential.
func Unauthorized(msg string) *ServiceError {
	if msg == "" {
		msg = "authentication required"
	}
	return &ServiceError{Code: ErrCodeUnauthorized, Message: msg, HTTPStatus: http.StatusUnauthorized}
}

// InvalidToken reports a credential that failed verification.
func InvalidToken(err error) *ServiceError {
	return &ServiceError{Code: ErrCodeInvalidToken, Message: "invalid or expired token", HTTPStatus: http.StatusUnauthorized, Err: err}
}

// Forbidden reports an authenticated caller lacking permission.
func Forbidden(msg string) *ServiceError {
	if msg == "" {
		msg = "permission denied"
	}
	return &ServiceError{Code: ErrCodeForbidden, Message: msg, HTTPStatus: http.StatusForbidden}
}

// NotFound reports a missing (or hidden) resource.
func NotFound(resource string) *ServiceError {
	msg := "not found"
	if resource != "" {
		msg = resource + " not found"
	}
	return &ServiceError{Code: ErrCodeNotFound, Message: msg, HTTPStatus: http.StatusNotFound}
}

// Conflict reports a write that lost against concurrent state, such as a
// stale optimistic-lock version.
func Conflict(msg string) *ServiceError {
	if msg == "" {
		msg = "conflicting update"
	}
	return &ServiceError{Code: ErrCodeConflict, Message: msg, HTTPStatus: http.StatusConflict}
}

// RateLimitExceeded reports request throttling.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeRateLimit,
		Message:    fmt.Sprintf("rate limit of %d per %s exceeded", limit, window),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// Internal wraps an unexpected failure.
func Internal(msg string, err error) *ServiceError {
	if msg == "" {
		msg = "internal error"
	}
	return &ServiceError{Code: ErrCodeInternal, Message: msg, HTTPStatus: http.StatusInternalServerError, Err: err}
}

// GetServiceError returns the *ServiceError in err's chain, or nil.
func GetServiceError(err error) *ServiceError {
	var svcErr *ServiceError
	if stderrors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}

// IsNotFound reports whether err is a not-found service error.
func IsNotFound(err error) bool {
	if svcErr := GetServiceError(err); svcErr != nil {
		return svcErr.Code == ErrCodeNotFound
	}
	return false
}

// IsConflict reports whether err is a conflict service error.
func IsConflict(err error) bool {
	if svcErr := GetServiceError(err); svcErr != nil {
		return svcErr.Code == ErrCodeConflict
	}
	return false
}
