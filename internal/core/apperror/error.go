// Package apperror provides structured error handling following RFC 7807 Problem Details.
// All errors crossing a package boundary must use AppError for consistent handling
// on both sides of the wire.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the allocation server and its clients.
const (
	// Infrastructure errors (5xx)
	CodeInternal           = "INTERNAL_ERROR"
	CodeDatabase           = "DATABASE_ERROR"
	CodePreviewUnavailable = "PREVIEW_UNAVAILABLE"
	CodeInconsistentState  = "INCONSISTENT_STATE"

	// Validation errors (400)
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidInput = "INVALID_INPUT"

	// Business rule violations (422)
	CodeBusinessRule    = "BUSINESS_RULE_VIOLATION"
	CodeModeLocked      = "MODE_LOCKED"
	CodeNumberImmutable = "NUMBER_IMMUTABLE"
	CodeInvalidAction   = "INVALID_ACTION"

	// Submit-time readiness (425)
	CodeNumberNotReady = "NUMBER_NOT_READY"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeAllocationConflict     = "ALLOCATION_CONFLICT"
	CodeSubmitInProgress       = "SUBMIT_IN_PROGRESS"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"

	// Commit failures that are not conflicts
	CodeSubmissionFailed = "SUBMISSION_FAILED"
)

// AppError is the standard error type for the platform.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, period keys, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewFieldValidation creates a validation error carrying per-field messages.
// Details["fields"] maps field name to message.
func NewFieldValidation(fields map[string]string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    "validation failed",
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"fields": fields},
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewModeLocked is returned when a number mode change is attempted on an existing document.
func NewModeLocked() *AppError {
	return NewBusinessRule(CodeModeLocked, "Document number is locked for existing documents")
}

// NewAllocationConflict creates the distinguished number-collision error (409).
func NewAllocationConflict(number string) *AppError {
	return &AppError{
		Code:       CodeAllocationConflict,
		Message:    fmt.Sprintf("Number %s is already assigned to another document", number),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"number": number},
	}
}

// NewPreviewUnavailable is used when no preview endpoint produced a usable value.
func NewPreviewUnavailable(docType, periodKey string) *AppError {
	return &AppError{
		Code:       CodePreviewUnavailable,
		Message:    "Number preview is unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"type": docType, "period_key": periodKey},
	}
}

// NewNumberNotReady is returned at submit time when an AUTO number could not be resolved.
func NewNumberNotReady(periodKey string) *AppError {
	return &AppError{
		Code:       CodeNumberNotReady,
		Message:    "Document number is not ready yet. Please try again.",
		HTTPStatus: http.StatusTooEarly,
		Details:    map[string]any{"period_key": periodKey},
	}
}

// NewInconsistentState signals a local invariant violation that a retry cannot fix.
func NewInconsistentState(message string) *AppError {
	return &AppError{
		Code:       CodeInconsistentState,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewSubmitInProgress is returned when a commit is already in flight for the draft.
func NewSubmitInProgress() *AppError {
	return &AppError{
		Code:       CodeSubmitInProgress,
		Message:    "Submission already in progress",
		HTTPStatus: http.StatusConflict,
	}
}

// NewSubmissionFailed wraps a non-conflict commit failure.
func NewSubmissionFailed(status int, message string) *AppError {
	if status == 0 {
		status = http.StatusBadGateway
	}
	return &AppError{
		Code:       CodeSubmissionFailed,
		Message:    message,
		HTTPStatus: status,
	}
}

// NewConcurrentModification creates an optimistic locking error
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified by another user. Please refresh and try again.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err carries the given AppError code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsAllocationConflict checks if error is the distinguished number collision.
// Only the code is inspected, never the message text.
func IsAllocationConflict(err error) bool {
	return HasCode(err, CodeAllocationConflict)
}

// IsValidation checks if error is CodeValidation
func IsValidation(err error) bool {
	return HasCode(err, CodeValidation)
}

// IsConcurrentModification checks if error is CodeConcurrentModification
func IsConcurrentModification(err error) bool {
	return HasCode(err, CodeConcurrentModification)
}

// FieldErrors returns the per-field messages of a validation error, if any.
func FieldErrors(err error) map[string]string {
	appErr, ok := AsAppError(err)
	if !ok || appErr.Details == nil {
		return nil
	}
	switch fields := appErr.Details["fields"].(type) {
	case map[string]string:
		return fields
	case map[string]any:
		// decoded from a JSON body
		out := make(map[string]string, len(fields))
		for k, v := range fields {
			out[k] = fmt.Sprint(v)
		}
		return out
	}
	return nil
}
