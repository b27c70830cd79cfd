package errors

import (
	"fmt"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeValidation represents validation errors
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeAuth represents token acquisition failures
	ErrTypeAuth ErrorType = "authentication"
	// ErrTypeTransformation represents submission fields that cannot be normalized
	ErrTypeTransformation ErrorType = "transformation"
	// ErrTypeTransport represents network or HTTP-status level dispatch failures
	ErrTypeTransport ErrorType = "transport"
	// ErrTypeRemote represents business-level errors returned by the remote service
	ErrTypeRemote ErrorType = "remote"
	// ErrTypeAmbiguous represents well-formed responses that cannot be classified
	ErrTypeAmbiguous ErrorType = "ambiguous"
	// ErrTypeTimeout represents timeout errors
	ErrTypeTimeout ErrorType = "timeout"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
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

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// AuthError creates a new token acquisition error
func AuthError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeAuth,
		Message: msg,
		Cause:   cause,
	}
}

// TransformationError creates a new field transformation error
func TransformationError(field, msg string) *AppError {
	return &AppError{
		Type:    ErrTypeTransformation,
		Message: msg,
		Context: map[string]interface{}{"field": field},
	}
}

// TransportError creates a new dispatch transport error.
// The code is the HTTP status code string, or "unknown" when no status
// is available.
func TransportError(code string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeTransport,
		Message: "event dispatch failed",
		Code:    code,
		Cause:   cause,
	}
}

// RemoteError creates a new remote service error
func RemoteError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeRemote,
		Message: msg,
	}
}

// AmbiguousError creates a new unclassifiable response error
func AmbiguousError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeAmbiguous,
		Message: msg,
	}
}

// TimeoutError creates a new timeout error
func TimeoutError(operation string) *AppError {
	return &AppError{
		Type:    ErrTypeTimeout,
		Message: fmt.Sprintf("timeout during %s", operation),
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

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}

	return appErr.Type == errType
}

// GetType returns the error type if it's an AppError, otherwise returns ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return ErrTypeInternal
	}

	return appErr.Type
}
