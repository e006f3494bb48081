package errors

import (
	stderrors "errors"
	"fmt"
)

// EngineError is the structured error type for the indexing engine.
// It carries enough context for the worker to classify a job failure
// and for the CLI to present it.
type EngineError struct {
	// Code is the unique error code (e.g., "ERR_201_ITEM_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Catalog, Credential, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is matches by code so errors.Is(err, New(code, "", nil)) works.
func (e *EngineError) Is(target error) bool {
	if t, ok := target.(*EngineError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *EngineError) WithDetail(key, value string) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new EngineError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *EngineError {
	return &EngineError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Newf is New with a formatted message and no cause.
func Newf(code string, format string, args ...any) *EngineError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates an EngineError from an existing error.
func Wrap(code string, err error) *EngineError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *EngineError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// NotFound creates a catalog item-not-found error.
func NotFound(zone, path string) *EngineError {
	return New(ErrCodeItemNotFound, fmt.Sprintf("%s: no such catalog item %s", zone, path), nil).
		WithDetail("zone", zone).
		WithDetail("path", path)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *EngineError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *EngineError {
	return New(ErrCodeInternal, message, cause)
}

// As finds the first EngineError in err's chain.
func As(err error) (*EngineError, bool) {
	var ee *EngineError
	if stderrors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// IsRetryable reports whether any EngineError in the chain is retryable.
func IsRetryable(err error) bool {
	if ee, ok := As(err); ok {
		return ee.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	if ee, ok := As(err); ok {
		return ee.Severity == SeverityFatal
	}
	return false
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code string) bool {
	return GetCode(err) == code
}

// GetCode extracts the error code from an EngineError.
// Returns empty string if not an EngineError.
func GetCode(err error) string {
	if ee, ok := As(err); ok {
		return ee.Code
	}
	return ""
}

// GetCategory extracts the category from an EngineError.
func GetCategory(err error) Category {
	if ee, ok := As(err); ok {
		return ee.Category
	}
	return ""
}
