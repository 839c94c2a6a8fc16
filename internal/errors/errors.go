// Package errors provides structured error types for driftguard.
// All errors include a category, code, message, and retryable flag so the
// engine can decide between aborting the run and isolating a single model.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by engine stage.
type ErrorCategory string

const (
	ErrCategoryPrecheck ErrorCategory = "PRECHECK"
	ErrCategoryManifest ErrorCategory = "MANIFEST"
	ErrCategoryCatalog  ErrorCategory = "CATALOG"
	ErrCategoryScope    ErrorCategory = "SCOPE"
	ErrCategorySchema   ErrorCategory = "SCHEMA"
	ErrCategoryDiff     ErrorCategory = "DIFF"
	ErrCategoryPersist  ErrorCategory = "PERSIST"
	ErrCategoryStorage  ErrorCategory = "STORAGE"
	ErrCategoryInternal ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Run-level codes (fatal)
	CodePrecheckFailure     = "PRECHECK_FAILURE"
	CodeManifestUnavailable = "MANIFEST_UNAVAILABLE"
	CodeCatalogParseError   = "CATALOG_PARSE_ERROR"
	CodeScopeViolation      = "SCOPE_VIOLATION"

	// Model-level codes (recovered at the model boundary)
	CodeSchemaLookupError  = "SCHEMA_LOOKUP_ERROR"
	CodeDiffExecutionError = "DIFF_EXECUTION_ERROR"
	CodePersistError       = "PERSIST_ERROR"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// DriftError is the structured error type used throughout the engine.
type DriftError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *DriftError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *DriftError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *DriftError) Is(target error) bool {
	var t *DriftError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new DriftError.
func New(category ErrorCategory, code, message string) *DriftError {
	return &DriftError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new DriftError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *DriftError {
	return &DriftError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DriftError) WithDetails(details map[string]interface{}) *DriftError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var de *DriftError
	if errors.As(err, &de) {
		return de.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a DriftError.
func GetCategory(err error) ErrorCategory {
	var de *DriftError
	if errors.As(err, &de) {
		return de.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a DriftError.
func GetCode(err error) string {
	var de *DriftError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsFatal reports whether the error aborts the whole run rather than a
// single model.
func IsFatal(err error) bool {
	switch GetCategory(err) {
	case ErrCategoryPrecheck, ErrCategoryManifest, ErrCategoryCatalog, ErrCategoryScope:
		return true
	}
	return false
}

func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Sentinels for errors.Is matching by category and code.
var (
	ErrPrecheckFailure     = New(ErrCategoryPrecheck, CodePrecheckFailure, "precheck failed")
	ErrManifestUnavailable = New(ErrCategoryManifest, CodeManifestUnavailable, "release manifest unavailable")
	ErrCatalogParse        = New(ErrCategoryCatalog, CodeCatalogParseError, "regression catalog invalid")
	ErrScopeViolation      = New(ErrCategoryScope, CodeScopeViolation, "release scope not covered by catalog")
	ErrSchemaLookup        = New(ErrCategorySchema, CodeSchemaLookupError, "schema lookup failed")
	ErrDiffExecution       = New(ErrCategoryDiff, CodeDiffExecutionError, "diff execution failed")
	ErrPersist             = New(ErrCategoryPersist, CodePersistError, "persist failed")
)

// Convenience constructors for common errors.
func NewPrecheckFailure(message string, cause error) *DriftError {
	return Wrap(ErrCategoryPrecheck, CodePrecheckFailure, message, cause)
}

func NewManifestUnavailable(message string, cause error) *DriftError {
	return Wrap(ErrCategoryManifest, CodeManifestUnavailable, message, cause)
}

func NewCatalogParseError(message string, cause error) *DriftError {
	return Wrap(ErrCategoryCatalog, CodeCatalogParseError, message, cause)
}

func NewScopeViolation(message string) *DriftError {
	return New(ErrCategoryScope, CodeScopeViolation, message)
}

func NewSchemaLookupError(message string, cause error) *DriftError {
	return Wrap(ErrCategorySchema, CodeSchemaLookupError, message, cause)
}

func NewDiffExecutionError(message string, cause error) *DriftError {
	return Wrap(ErrCategoryDiff, CodeDiffExecutionError, message, cause)
}

func NewPersistError(message string, cause error) *DriftError {
	return Wrap(ErrCategoryPersist, CodePersistError, message, cause)
}

func NewStorageError(code, message string, cause error) *DriftError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *DriftError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
