package errors

import (
	stderrors "errors"
	"fmt"
)

// DocError is the structured error type for docindex.
type DocError struct {
	// Code is the unique error code (e.g., "ERR_207_PARSE_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context such as the file path.
	Details map[string]string

	// Cause is the underlying error.
	Cause error

	// Retryable indicates the operation may succeed if repeated.
	Retryable bool

	// Suggestion is an actionable hint for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *DocError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *DocError) Unwrap() error {
	return e.Cause
}

// Is matches by code so errors.Is works against sentinel DocErrors.
func (e *DocError) Is(target error) bool {
	if t, ok := target.(*DocError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *DocError) WithDetail(key, value string) *DocError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *DocError) WithSuggestion(suggestion string) *DocError {
	e.Suggestion = suggestion
	return e
}

// New creates a DocError. Category, severity and the retryable flag are
// derived from the code.
func New(code string, message string, cause error) *DocError {
	return &DocError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a DocError from an existing error, reusing its message.
func Wrap(code string, err error) *DocError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ParseError reports a per-file parse failure.
func ParseError(path string, cause error) *DocError {
	return New(ErrCodeParseFailed, "failed to parse "+path, cause).WithDetail("path", path)
}

// TimeoutError reports a per-file parse that exceeded its deadline.
func TimeoutError(path string, cause error) *DocError {
	return New(ErrCodeParseTimeout, "parse timed out for "+path, cause).WithDetail("path", path)
}

// StoreError reports an unreachable or unusable store.
func StoreError(message string, cause error) *DocError {
	return New(ErrCodeStoreUnavailable, message, cause)
}

// QueryError reports a rejected query.
func QueryError(message string) *DocError {
	return New(ErrCodeInvalidQuery, message, nil)
}

// FilterError reports a rejected search filter.
func FilterError(message string) *DocError {
	return New(ErrCodeInvalidFilter, message, nil)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *DocError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *DocError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable reports whether err, or any DocError in its chain, is retryable.
func IsRetryable(err error) bool {
	var de *DocError
	if stderrors.As(err, &de) {
		return de.Retryable
	}
	return false
}

// IsFatal reports whether err carries fatal severity.
func IsFatal(err error) bool {
	var de *DocError
	if stderrors.As(err, &de) {
		return de.Severity == SeverityFatal
	}
	return false
}

// IsValidation reports whether err is a query or filter validation error.
func IsValidation(err error) bool {
	return GetCategory(err) == CategoryValidation
}

// GetCode extracts the error code. Returns empty string if err has no DocError.
func GetCode(err error) string {
	var de *DocError
	if stderrors.As(err, &de) {
		return de.Code
	}
	return ""
}

// GetCategory extracts the category. Returns empty string if err has no DocError.
func GetCategory(err error) Category {
	var de *DocError
	if stderrors.As(err, &de) {
		return de.Category
	}
	return ""
}
