// Package errors provides the classified error taxonomy for the render engine.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Template lifecycle errors, rejected before any render work starts.
const (
	ErrCodeTemplateValidationFailed ErrorCode = "TEMPLATE_VALIDATION_FAILED"
	ErrCodeTemplateRetired          ErrorCode = "TEMPLATE_RETIRED"

	// Resolution errors are per record and recoverable; siblings proceed.
	ErrCodeMissingVariable  ErrorCode = "MISSING_VARIABLE"
	ErrCodeTypeMismatch     ErrorCode = "TYPE_MISMATCH"
	ErrCodeUnknownValueKind ErrorCode = "UNKNOWN_VALUE_KIND"

	// Composition errors are per record and recoverable.
	ErrCodeUnsupportedImageFormat ErrorCode = "UNSUPPORTED_IMAGE_FORMAT"
	ErrCodeAssetTooLarge          ErrorCode = "ASSET_TOO_LARGE"
	ErrCodeEncodingFailure        ErrorCode = "ENCODING_FAILURE"
	ErrCodeCompositionInterrupted ErrorCode = "COMPOSITION_INTERRUPTED"

	// Storage errors are transient I/O, retried with backoff before failing the job.
	ErrCodeStorageWriteFailed ErrorCode = "STORAGE_WRITE_FAILED"
	ErrCodeStorageReadFailed  ErrorCode = "STORAGE_READ_FAILED"

	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeBatchCancelled ErrorCode = "BATCH_CANCELLED"
)

// StandardError represents a structured engine error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewTemplateValidationFailedError creates a non-retryable template validation error.
func NewTemplateValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateValidationFailed,
		Message:   "Template placeholder spec validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateRetiredError creates a non-retryable error for renders against retired templates.
func NewTemplateRetiredError(templateID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateRetired,
		Message:   "Template is retired and rejects new render jobs",
		Details:   fmt.Sprintf("templateId: %s", templateID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMissingVariableError creates a non-retryable resolution error.
func NewMissingVariableError(placeholder string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingVariable,
		Message:   "Record is missing a value for a declared placeholder",
		Details:   fmt.Sprintf("placeholder: %s", placeholder),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTypeMismatchError creates a non-retryable resolution error.
func NewTypeMismatchError(placeholder, expected, got string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTypeMismatch,
		Message:   "Record value is incompatible with the declared placeholder type",
		Details:   fmt.Sprintf("placeholder: %s, expected: %s, got: %s", placeholder, expected, got),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnknownValueKindError creates a non-retryable resolution error for unrecognized value tags.
func NewUnknownValueKindError(placeholder, kind string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownValueKind,
		Message:   "Record value carries an unknown kind tag",
		Details:   fmt.Sprintf("placeholder: %s, kind: %s", placeholder, kind),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnsupportedImageFormatError creates a non-retryable composition error.
func NewUnsupportedImageFormatError(placeholder string, err error) *StandardError {
	details := fmt.Sprintf("placeholder: %s", placeholder)
	if err != nil {
		details = fmt.Sprintf("placeholder: %s, error: %s", placeholder, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeUnsupportedImageFormat,
		Message:   "Image bytes could not be decoded",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAssetTooLargeError creates a non-retryable composition error raised before decode.
func NewAssetTooLargeError(placeholder string, size, limit int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeAssetTooLarge,
		Message:   "Image payload exceeds the configured size limit",
		Details:   fmt.Sprintf("placeholder: %s, size: %d, limit: %d", placeholder, size, limit),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEncodingFailureError creates a non-retryable composition error.
func NewEncodingFailureError(format string, err error) *StandardError {
	details := fmt.Sprintf("format: %s", format)
	if err != nil {
		details = fmt.Sprintf("format: %s, error: %s", format, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeEncodingFailure,
		Message:   "Output surface could not be encoded",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCompositionInterruptedError marks a compose pass stopped by its
// deadline or by cancellation before the surface was encoded.
func NewCompositionInterruptedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCompositionInterrupted,
		Message:   "Composition stopped before the surface was encoded",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStorageWriteFailedError creates a retryable storage error.
func NewStorageWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageWriteFailed,
		Message:   "Writing asset payload to durable storage failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStorageReadFailedError creates a retryable storage error.
func NewStorageReadFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageReadFailed,
		Message:   "Reading asset payload from durable storage failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable lookup error.
func NewNotFoundError(entity, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", entity),
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewBatchCancelledError marks jobs skipped because their batch was cancelled.
func NewBatchCancelledError(batchID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBatchCancelled,
		Message:   "Batch was cancelled before the job was scheduled",
		Details:   fmt.Sprintf("batchId: %s", batchID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStorageWriteFailed, ErrCodeStorageReadFailed:
		return 3 // Transient I/O errors
	default:
		return 0 // Validation, resolution and composition errors: no retry
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// CodeOf extracts the ErrorCode from an error chain, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return "INTERNAL_ERROR"
}

// AsStandard normalizes any error into a StandardError.
func AsStandard(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "TEMPLATE"):
		return "TEMPLATE"
	case strings.Contains(codeStr, "VARIABLE") || strings.Contains(codeStr, "MISMATCH") || strings.Contains(codeStr, "VALUE"):
		return "RESOLUTION"
	case strings.Contains(codeStr, "IMAGE") || strings.Contains(codeStr, "ENCODING") ||
		strings.Contains(codeStr, "ASSET_TOO") || strings.Contains(codeStr, "COMPOSITION"):
		return "COMPOSITION"
	case strings.Contains(codeStr, "STORAGE"):
		return "STORAGE"
	case strings.Contains(codeStr, "BATCH"):
		return "ORCHESTRATION"
	default:
		return "OTHER"
	}
}
