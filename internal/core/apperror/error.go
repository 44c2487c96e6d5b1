// Package apperror provides structured error handling following RFC 7807 Problem Details.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes following domain-driven design
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"

	// Validation errors (400)
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidInput = "INVALID_INPUT"

	// State machine and domain rule violations (400)
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	CodeQCNotApproved           = "QC_NOT_APPROVED"
	CodeDuplicateApproval       = "DUPLICATE_APPROVAL"
	CodeIncompleteInspection    = "INCOMPLETE_INSPECTION"
	CodeIncompleteStorageInfo   = "INCOMPLETE_STORAGE_INFO"
	CodeInsufficientAvailable   = "INSUFFICIENT_AVAILABLE"
	CodeNegativeQuantity        = "NEGATIVE_QUANTITY"
	CodeImmutableField          = "IMMUTABLE_FIELD"
	CodeNotSubmitted            = "NOT_SUBMITTED"
	CodeAlreadySubmitted        = "ALREADY_SUBMITTED"
	CodeDuplicateBatch          = "DUPLICATE_BATCH"
	CodeExceedsReserved         = "EXCEEDS_RESERVED"
	CodeSameWarehouse           = "SAME_WAREHOUSE"
	CodeBelowReserved           = "BELOW_RESERVED"
	CodeEmptyIDList             = "EMPTY_ID_LIST"
	CodeRecordClosed            = "RECORD_CLOSED"
	CodeInventoryNotActive      = "INVENTORY_NOT_ACTIVE"
	CodeInactiveWarehouse       = "INACTIVE_WAREHOUSE"
	CodeUnknownProduct          = "UNKNOWN_PRODUCT"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict               = "CONFLICT"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeIdempotencyInProgress  = "IDEMPOTENCY_IN_PROGRESS"

	// Unprocessable (422)
	CodeIdempotencyMismatch = "IDEMPOTENCY_MISMATCH"
)

// AppError is the standard error type for the platform.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, quantities, etc.)
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

// WithField records a field-level validation message under details.fields.
func (e *AppError) WithField(field, reason string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	fields, ok := e.Details["fields"].(map[string]string)
	if !ok {
		fields = make(map[string]string)
		e.Details["fields"] = fields
	}
	fields[field] = reason
	return e
}

// Fields returns field-level messages, if any.
func (e *AppError) Fields() map[string]string {
	if e.Details == nil {
		return nil
	}
	fields, _ := e.Details["fields"].(map[string]string)
	return fields
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

// NewFieldError is a validation error for a single field.
func NewFieldError(field, reason string) *AppError {
	return NewValidation(fmt.Sprintf("%s %s", field, reason)).WithField(field, reason)
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

// NewBusinessRule creates a domain precondition error (400).
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidTransition reports a status change the state machine does not allow.
func NewInvalidTransition(entity, from, to string) *AppError {
	return &AppError{
		Code:       CodeInvalidStatusTransition,
		Message:    fmt.Sprintf("cannot change %s status from %s to %s", entity, from, to),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"entity": entity, "from": from, "to": to},
	}
}

// NewInsufficientAvailable creates a stock shortage error
func NewInsufficientAvailable(requested, available int64) *AppError {
	return &AppError{
		Code:       CodeInsufficientAvailable,
		Message:    fmt.Sprintf("insufficient available quantity: requested %d, available %d", requested, available),
		HTTPStatus: http.StatusBadRequest,
		Details: map[string]any{
			"requested": requested,
			"available": available,
		},
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

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewIdempotencyInProgress reports a key whose first request is still running (409).
func NewIdempotencyInProgress(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotencyInProgress,
		Message:    "a request with this idempotency key is still in progress",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"key": key},
	}
}

// NewIdempotencyMismatch reports a key reused for a different request (422).
func NewIdempotencyMismatch(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotencyMismatch,
		Message:    "idempotency key was already used for a different request",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"key": key},
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

// HasCode reports whether err carries the given code.
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

// IsConcurrentModification checks if error is CodeConcurrentModification
func IsConcurrentModification(err error) bool {
	return HasCode(err, CodeConcurrentModification)
}
