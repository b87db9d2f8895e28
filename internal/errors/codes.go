// Package errors provides structured error handling for docindex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: File and parse errors
//   - 3XX: Store errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file read and parse errors.
	CategoryIO Category = "IO"
	// CategoryStore indicates persistent store errors.
	CategoryStore Category = "STORE"
	// CategoryValidation indicates query and filter validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal aborts the current operation.
	SeverityFatal Severity = "FATAL"
	// SeverityError fails one unit of work; the run continues.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo is informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound   = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeConfigPermission = "ERR_103_CONFIG_PERMISSION"

	// File errors (200-299)
	ErrCodeFileNotFound    = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission  = "ERR_202_FILE_PERMISSION"
	ErrCodeFileTooLarge    = "ERR_204_FILE_TOO_LARGE"
	ErrCodeFileUnreadable  = "ERR_206_FILE_UNREADABLE"
	ErrCodeParseFailed     = "ERR_207_PARSE_FAILED"
	ErrCodeParseTimeout    = "ERR_208_PARSE_TIMEOUT"
	ErrCodeRootUnreachable = "ERR_211_ROOT_UNREACHABLE"

	// Store errors (300-399)
	ErrCodeStoreUnavailable = "ERR_301_STORE_UNAVAILABLE"
	ErrCodeStoreBusy        = "ERR_302_STORE_BUSY"
	ErrCodeCorruptIndex     = "ERR_303_CORRUPT_INDEX"
	ErrCodeBatchWriteFailed = "ERR_304_BATCH_WRITE_FAILED"
	ErrCodeWriteFailed      = "ERR_305_WRITE_FAILED"
	ErrCodeIndexLocked      = "ERR_306_INDEX_LOCKED"

	// Validation errors (400-499)
	ErrCodeInvalidInput   = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidQuery   = "ERR_403_INVALID_QUERY"
	ErrCodeQueryEmpty     = "ERR_404_QUERY_EMPTY"
	ErrCodeQueryTooLong   = "ERR_405_QUERY_TOO_LONG"
	ErrCodeInvalidPath    = "ERR_406_INVALID_PATH"
	ErrCodeInvalidFilter  = "ERR_407_INVALID_FILTER"
	ErrCodeUnknownLibrary = "ERR_408_UNKNOWN_LIBRARY"

	// Internal errors (500-599)
	ErrCodeInternal    = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_503_SEARCH_FAILED"
	ErrCodeIndexFailed  = "ERR_505_INDEX_FAILED"
	ErrCodeWorkerPanic  = "ERR_506_WORKER_PANIC"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "207" from "ERR_207_PARSE_FAILED"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryStore
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStoreUnavailable, ErrCodeCorruptIndex:
		return SeverityFatal
	case ErrCodeRootUnreachable:
		return SeverityInfo
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeStoreBusy, ErrCodeIndexLocked:
		return true
	default:
		return false
	}
}
