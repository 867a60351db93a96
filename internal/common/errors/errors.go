// Package errors provides the submission error taxonomy and its BPMN and HTTP renderings.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode is a stable, machine-readable error kind.
type ErrorCode string

const (
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	ErrCodeAttachmentFailed  ErrorCode = "ATTACHMENT_FAILED"
	ErrCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"
	ErrCodeUnauthenticated   ErrorCode = "UNAUTHENTICATED"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeBadRequest        ErrorCode = "BAD_REQUEST"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// FieldViolation describes one failed field inside a VALIDATION_FAILED error.
type FieldViolation struct {
	Field      string      `json:"field"`
	Kind       string      `json:"kind"`
	Constraint string      `json:"constraint,omitempty"`
	Limit      interface{} `json:"limit,omitempty"`
	Message    string      `json:"message"`
}

// StandardError is the terminal error returned by pipeline operations.
// Message is safe to show to a submitter; Details is for logs only.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Fields    []FieldViolation       `json:"fields,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// AsStandardError extracts a *StandardError from an error chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err is a StandardError with the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == code
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	e := &StandardError{
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// NewNotFoundError is returned for a missing form, and equally for a form the caller does not own.
func NewNotFoundError(formID string) *StandardError {
	e := newError(ErrCodeNotFound, "Form not found", nil, false)
	e.Details = fmt.Sprintf("formId: %s", formID)
	return e
}

// NewValidationFailedError carries every failed field in schema order.
func NewValidationFailedError(fields []FieldViolation) *StandardError {
	e := newError(ErrCodeValidationFailed, "Submission failed validation", nil, false)
	e.Fields = fields
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Field)
	}
	e.Details = "fields: " + strings.Join(names, ",")
	return e
}

func NewAttachmentFailedError(fieldName string, cause error) *StandardError {
	e := newError(ErrCodeAttachmentFailed, "File upload failed", cause, true)
	e.Metadata = map[string]interface{}{"field": fieldName}
	return e
}

func NewPersistenceFailedError(cause error) *StandardError {
	return newError(ErrCodePersistenceFailed, "Failed to save submission", cause, true)
}

func NewUnauthenticatedError() *StandardError {
	return newError(ErrCodeUnauthenticated, "Authentication required", nil, false)
}

func NewUnauthorizedError(details string) *StandardError {
	e := newError(ErrCodeUnauthorized, "Not allowed", nil, false)
	e.Details = details
	return e
}

func NewBadRequestError(message string, cause error) *StandardError {
	return newError(ErrCodeBadRequest, message, cause, false)
}

func NewInternalError(cause error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", cause, false)
}

// ==========================
// 4. Error Conversion
// ==========================

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodePersistenceFailed, ErrCodeAttachmentFailed:
		return 3
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if len(stdErr.Fields) > 0 {
		vars["fieldErrors"] = stdErr.Fields
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// HTTPStatus maps an error code to the response status used by the HTTP transport.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeValidationFailed:
		return http.StatusUnprocessableEntity
	case ErrCodeAttachmentFailed:
		return http.StatusBadGateway
	case ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case ErrCodeUnauthorized:
		return http.StatusForbidden
	case ErrCodeBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory groups codes for log aggregation.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeValidationFailed, ErrCodeBadRequest:
		return "VALIDATION"
	case ErrCodeAttachmentFailed:
		return "STORAGE"
	case ErrCodePersistenceFailed:
		return "DATABASE"
	case ErrCodeUnauthenticated, ErrCodeUnauthorized:
		return "AUTH"
	case ErrCodeNotFound:
		return "LOOKUP"
	default:
		return "OTHER"
	}
}
