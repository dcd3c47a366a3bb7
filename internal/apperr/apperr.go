package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the class of a failure
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeAuth       ErrorType = "authentication"
	ErrorTypeAuthorize  ErrorType = "authorization"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeInternal   ErrorType = "internal"
)

// Error is a classified failure carrying the HTTP status it maps to.
// Every Error is local to one request and recoverable by retrying it.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
	err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause
func (e *Error) Unwrap() error {
	return e.err
}

// Retryable reports whether retrying the same action may succeed
func (e *Error) Retryable() bool {
	return e.Type == ErrorTypeNetwork || e.Type == ErrorTypeInternal
}

func newError(t ErrorType, code int, msg string, err error) *Error {
	return &Error{Type: t, Message: msg, Code: code, err: err}
}

// NewValidationError reports a missing or malformed input; nothing was sent to the store
func NewValidationError(msg string, err error) *Error {
	return newError(ErrorTypeValidation, http.StatusBadRequest, msg, err)
}

// NewAuthError reports a missing or invalid identity
func NewAuthError(msg string, err error) *Error {
	return newError(ErrorTypeAuth, http.StatusUnauthorized, msg, err)
}

// NewAuthorizationError reports an identity lacking the required role
func NewAuthorizationError(msg string, err error) *Error {
	return newError(ErrorTypeAuthorize, http.StatusForbidden, msg, err)
}

// NewNotFoundError reports a missing resource
func NewNotFoundError(msg string, err error) *Error {
	return newError(ErrorTypeNotFound, http.StatusNotFound, msg, err)
}

// NewConflictError reports an operation rejected by the current state
func NewConflictError(msg string, err error) *Error {
	return newError(ErrorTypeConflict, http.StatusConflict, msg, err)
}

// NewNetworkError reports an unreachable or failing collaborator
func NewNetworkError(msg string, err error) *Error {
	return newError(ErrorTypeNetwork, http.StatusBadGateway, msg, err)
}

// NewInternalError reports an unexpected failure
func NewInternalError(msg string, err error) *Error {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, msg, err)
}

// As extracts an *Error from the chain
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func isType(err error, t ErrorType) bool {
	appErr, ok := As(err)
	return ok && appErr.Type == t
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool { return isType(err, ErrorTypeValidation) }

// IsAuth checks if an error is an authentication error
func IsAuth(err error) bool { return isType(err, ErrorTypeAuth) }

// IsAuthorization checks if an error is an authorization error
func IsAuthorization(err error) bool { return isType(err, ErrorTypeAuthorize) }

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool { return isType(err, ErrorTypeNotFound) }

// IsNetwork checks if an error is a network error
func IsNetwork(err error) bool { return isType(err, ErrorTypeNetwork) }

// HTTPStatus maps any error to a response status; unclassified errors are 500
func HTTPStatus(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
