// Package errors defines the structured error taxonomy used across the
// integration layer. Callers switch on the error type rather than matching
// message strings, so "credential missing" is distinguishable from
// "storage broken" at every boundary.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeNotLinked means no credential is on file for the user; user action required
	ErrTypeNotLinked ErrorType = "not_linked"
	// ErrTypeReauthRequired means the refresh token was revoked or expired; the user must re-authorize
	ErrTypeReauthRequired ErrorType = "reauth_required"
	// ErrTypeConfig represents server misconfiguration; fatal and not user-fixable
	ErrTypeConfig ErrorType = "config"
	// ErrTypeTransient represents network/5xx/429 failures that are retried internally
	ErrTypeTransient ErrorType = "transient"
	// ErrTypeProviderRejected represents a non-auth 4xx from an external provider; never retried
	ErrTypeProviderRejected ErrorType = "provider_rejected"
	// ErrTypeStorage represents local persistence failures
	ErrTypeStorage ErrorType = "storage"
	// ErrTypeValidation represents validation errors
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeNotFound represents resource not found errors
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
	// ErrTypeConnection represents connection-related errors
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeTimeout represents timeout errors
	ErrTypeTimeout ErrorType = "timeout"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// NotLinkedError indicates no credential exists for the given provider
func NotLinkedError(provider string) *AppError {
	return &AppError{
		Type:    ErrTypeNotLinked,
		Message: fmt.Sprintf("%s account is not connected", provider),
	}
}

// ReauthRequiredError indicates the stored refresh token is revoked or expired
func ReauthRequiredError(provider string) *AppError {
	return &AppError{
		Type:    ErrTypeReauthRequired,
		Message: fmt.Sprintf("%s authorization has been revoked, re-authorization required", provider),
	}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// TransientError creates an error for retryable provider/network failures
func TransientError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeTransient,
		Message: msg,
		Cause:   cause,
	}
}

// ProviderRejectedError carries a provider's non-retryable rejection.
// The provider's HTTP status code is preserved in the error context so the
// boundary can surface it verbatim.
func ProviderRejectedError(statusCode int, msg string) *AppError {
	e := &AppError{
		Type:    ErrTypeProviderRejected,
		Message: msg,
	}
	return e.WithContext("status_code", statusCode)
}

// StorageError creates a new local persistence error
func StorageError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeStorage,
		Message: msg,
		Cause:   cause,
	}
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// NotFoundError creates a new not found error
func NotFoundError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// ConnectionError creates a new connection error
func ConnectionError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeConnection,
		Message: msg,
		Cause:   cause,
	}
}

// TimeoutError creates a new timeout error
func TimeoutError(operation string) *AppError {
	return &AppError{
		Type:    ErrTypeTimeout,
		Message: fmt.Sprintf("timeout during %s", operation),
	}
}

// IsType checks if an error is of a specific type, unwrapping as needed
func IsType(err error, errType ErrorType) bool {
	return err != nil && GetType(err) == errType
}

// GetType returns the error type of the first AppError in the chain,
// otherwise returns ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return ErrTypeInternal
	}

	return appErr.Type
}

// IsRetryable reports whether an error represents a condition that may
// succeed on retry. Auth and provider rejections never do.
func IsRetryable(err error) bool {
	switch GetType(err) {
	case ErrTypeTransient, ErrTypeConnection, ErrTypeTimeout:
		return true
	}
	return false
}

// ProviderStatusCode returns the preserved provider status code for a
// provider_rejected error, or 0 if the error carries none.
func ProviderStatusCode(err error) int {
	var appErr *AppError
	if !stderrors.As(err, &appErr) || appErr.Context == nil {
		return 0
	}
	if code, ok := appErr.Context["status_code"].(int); ok {
		return code
	}
	return 0
}

// HTTPStatus maps an error to the HTTP status the API boundary should return.
func HTTPStatus(err error) int {
	switch GetType(err) {
	case ErrTypeNotLinked, ErrTypeValidation:
		return http.StatusBadRequest
	case ErrTypeReauthRequired:
		return http.StatusUnauthorized
	case ErrTypeNotFound:
		return http.StatusNotFound
	case ErrTypeProviderRejected:
		if code := ProviderStatusCode(err); code != 0 {
			return code
		}
		return http.StatusBadGateway
	case ErrTypeTransient, ErrTypeConnection, ErrTypeTimeout:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
