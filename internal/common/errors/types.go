package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeConnection represents transport failures (DNS, refused, reset)
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeStatus represents a non-success HTTP status from an upstream
	ErrTypeStatus ErrorType = "status"
	// ErrTypeNotFound represents an expected data path that is absent
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeMalformed represents a payload that could not be decoded
	ErrTypeMalformed ErrorType = "malformed"
	// ErrTypeValidation represents data that is missing required fields
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
	// ErrTypeTimeout represents timeout errors
	ErrTypeTimeout ErrorType = "timeout"
	// ErrTypeFatal represents errors that abort the whole run
	ErrTypeFatal ErrorType = "fatal"
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
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
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

// ConnectionError creates a new connection error
func ConnectionError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeConnection,
		Message: msg,
		Cause:   cause,
	}
}

// StatusError creates an error for a non-success HTTP response.
// The status code is kept in Code so callers can match on it.
func StatusError(url string, status int) *AppError {
	return &AppError{
		Type:    ErrTypeStatus,
		Message: fmt.Sprintf("unexpected status fetching %s", url),
		Code:    fmt.Sprintf("%d", status),
	}
}

// NotFoundError creates a new not found error
func NotFoundError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// MalformedError creates an error for an undecodable payload
func MalformedError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeMalformed,
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

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
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

// TimeoutError creates a new timeout error
func TimeoutError(operation string) *AppError {
	return &AppError{
		Type:    ErrTypeTimeout,
		Message: fmt.Sprintf("timeout during %s", operation),
	}
}

// FatalError creates an error that must stop the pipeline
func FatalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeFatal,
		Message: msg,
		Cause:   cause,
	}
}

// IsType checks if an error, or any error it wraps, is of a specific type
func IsType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}

	return appErr.Type == errType
}

// GetType returns the error type if it's an AppError, otherwise returns ErrTypeInternal
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

// IsTransient reports whether err describes data that may appear on a later
// attempt: an absent or undecodable payload behind a successful fetch.
func IsTransient(err error) bool {
	switch GetType(err) {
	case ErrTypeNotFound, ErrTypeMalformed:
		return true
	default:
		return false
	}
}

// IsFatal reports whether err must abort the run
func IsFatal(err error) bool {
	return IsType(err, ErrTypeFatal)
}

// StatusCode returns the HTTP status carried by a status error anywhere in
// the chain, or 0
func StatusCode(err error) int {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return 0
		}
		if appErr.Type == ErrTypeStatus {
			var code int
			if _, scanErr := fmt.Sscanf(appErr.Code, "%d", &code); scanErr != nil {
				return 0
			}
			return code
		}
		err = appErr.Cause
	}
	return 0
}
