// Package errors provides structured error types for the tablekit core.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryValidation  ErrorCategory = "VALIDATION"
	ErrCategoryNotFound    ErrorCategory = "NOT_FOUND"
	ErrCategoryPersistence ErrorCategory = "PERSISTENCE"
	ErrCategoryMigration   ErrorCategory = "MIGRATION"
	ErrCategoryInternal    ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidColumns = "INVALID_COLUMNS"
	CodeInvalidSchema  = "INVALID_SCHEMA"
	CodeInvalidConfig  = "INVALID_CONFIG"

	// Not-found codes
	CodeSchemaNotFound  = "SCHEMA_NOT_FOUND"
	CodeVersionNotFound = "VERSION_NOT_FOUND"
	CodeTableNotFound   = "TABLE_NOT_FOUND"

	// Persistence codes
	CodeWriteConflict    = "WRITE_CONFLICT"
	CodeConnectionFailed = "CONNECTION_FAILED"
	CodeQueryFailed      = "QUERY_FAILED"

	// Migration codes
	CodeRowBackfillFailed = "ROW_BACKFILL_FAILED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// CoreError is the structured error type used throughout the core.
type CoreError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *CoreError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *CoreError) Is(target error) bool {
	var t *CoreError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new CoreError.
func New(category ErrorCategory, code, message string) *CoreError {
	return &CoreError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new CoreError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *CoreError {
	return &CoreError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *CoreError) WithDetails(details map[string]interface{}) *CoreError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsNotFound reports whether the error chain contains a NOT_FOUND error.
func IsNotFound(err error) bool {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Category == ErrCategoryNotFound
	}
	return false
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a CoreError.
func GetCategory(err error) ErrorCategory {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a CoreError.
func GetCode(err error) string {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable. Write conflicts and
// connection failures are transient; everything else requires caller action.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryPersistence && code == CodeWriteConflict:
		return true
	case category == ErrCategoryPersistence && code == CodeConnectionFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidation(code, message string) *CoreError {
	return New(ErrCategoryValidation, code, message)
}

func NewNotFound(code, message string) *CoreError {
	return New(ErrCategoryNotFound, code, message)
}

func NewPersistence(code, message string, cause error) *CoreError {
	return Wrap(ErrCategoryPersistence, code, message, cause)
}

func NewMigration(message string, cause error) *CoreError {
	return Wrap(ErrCategoryMigration, CodeRowBackfillFailed, message, cause)
}

func NewInternal(message string, cause error) *CoreError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
