// Package errors provides standardized error handling for the process controller and its HTTP surface.
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

const (
	ErrCodeProcessNotFound      ErrorCode = "PROCESS_NOT_FOUND"
	ErrCodeProcessWriteFailed   ErrorCode = "PROCESS_WRITE_FAILED"
	ErrCodeProcessNotPersisted  ErrorCode = "PROCESS_NOT_PERSISTED"
	ErrCodeProcessSubmitted     ErrorCode = "PROCESS_ALREADY_SUBMITTED"
	ErrCodeSessionNotFound      ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeDatabaseConnection   ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeElasticsearchFailure ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeSearchQueryFailed    ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout        ErrorCode = "SEARCH_TIMEOUT"

	ErrCodeStepIncomplete   ErrorCode = "STEP_INCOMPLETE"
	ErrCodeInvalidStep      ErrorCode = "INVALID_STEP"
	ErrCodeInvalidPatch     ErrorCode = "INVALID_PATCH"
	ErrCodeInvalidFilter    ErrorCode = "INVALID_FILTER_FORMAT"
	ErrCodeAutofillDisabled ErrorCode = "AUTOFILL_DISABLED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeReviewStartFailed      ErrorCode = "REVIEW_START_FAILED"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error { return e.cause }

// WithMetadata attaches a metadata key and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 2. Error Constructors
// ==========================

// NewProcessNotFoundError creates a non-retryable lookup error.
func NewProcessNotFoundError(processID string) *StandardError {
	return newError(ErrCodeProcessNotFound, "Process not found",
		fmt.Sprintf("processId: %s", processID), false, nil)
}

// NewProcessWriteFailedError creates a retryable persistence error.
func NewProcessWriteFailedError(op string, err error) *StandardError {
	return newError(ErrCodeProcessWriteFailed, fmt.Sprintf("Process %s failed", op),
		errDetails(err), true, err)
}

// NewProcessNotPersistedError rejects guarantee submission without a stored process.
func NewProcessNotPersistedError() *StandardError {
	return newError(ErrCodeProcessNotPersisted, "Process has not been persisted yet",
		"a process id is required before the guarantee step can be submitted", false, nil)
}

func NewProcessAlreadySubmittedError(processID string) *StandardError {
	return newError(ErrCodeProcessSubmitted, "Process was already submitted",
		fmt.Sprintf("processId: %s", processID), false, nil)
}

func NewSessionNotFoundError(sessionID string) *StandardError {
	return newError(ErrCodeSessionNotFound, "Wizard session not found",
		fmt.Sprintf("session: %s", sessionID), false, nil)
}

// NewDatabaseConnectionFailedError creates a retryable database error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnection, "Failed to connect to database",
		errDetails(err), true, err)
}

func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeElasticsearchFailure, "Failed to connect to Elasticsearch",
		errDetails(err), true, err)
}

// NewSearchQueryFailedError creates a retryable search error.
func NewSearchQueryFailedError(view string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, fmt.Sprintf("Search query '%s' failed", view),
		errDetails(err), true, err)
}

func NewSearchTimeoutError(view string) *StandardError {
	return newError(ErrCodeSearchTimeout, fmt.Sprintf("Search query '%s' timed out", view),
		"", true, nil)
}

// NewStepIncompleteError lists the fields still missing for the step.
func NewStepIncompleteError(step int, missing []string) *StandardError {
	return newError(ErrCodeStepIncomplete, "Required fields are missing",
		fmt.Sprintf("step %d: %s", step, strings.Join(missing, ", ")), false, nil).
		WithMetadata("missing", missing).
		WithMetadata("step", step)
}

func NewInvalidStepError(details string) *StandardError {
	return newError(ErrCodeInvalidStep, "Invalid step transition", details, false, nil)
}

func NewInvalidPatchError(details string) *StandardError {
	return newError(ErrCodeInvalidPatch, "Invalid patch document", details, false, nil)
}

func NewInvalidFilterError(details string) *StandardError {
	return newError(ErrCodeInvalidFilter, "Invalid filter format", details, false, nil)
}

func NewAutofillDisabledError() *StandardError {
	return newError(ErrCodeAutofillDisabled, "Auto-fill is disabled",
		"set wizard.allow_autofill to enable", false, nil)
}

// NewNotificationSendFailedError creates a blocking notification error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, fmt.Sprintf("Failed to send %s notification", channel),
		errDetails(err), true, err)
}

func NewReviewStartFailedError(err error) *StandardError {
	return newError(ErrCodeReviewStartFailed, "Failed to start review process",
		errDetails(err), true, err)
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", errDetails(err), false, err)
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 3. Utility Functions
// ==========================

// GetRetryCount returns the recommended client retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeProcessWriteFailed,
		ErrCodeDatabaseConnection,
		ErrCodeElasticsearchFailure,
		ErrCodeSearchQueryFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeReviewStartFailed:
		return 3

	case ErrCodeSearchTimeout:
		return 2

	default:
		return 0
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "PROCESS") || strings.Contains(codeStr, "SESSION"):
		return "PROCESS"
	case strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION") || strings.Contains(codeStr, "REVIEW"):
		return "SUBMISSION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "INCOMPLETE") || strings.Contains(codeStr, "AUTOFILL"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// AsStandardError extracts a StandardError from the chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == code
}
