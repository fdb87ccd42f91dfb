// internal/common/errors/handler.go
package errors

import (
	"encoding/json"
	"net/http"
	"time"
)

// ErrorHandler renders errors as JSON responses with standardized codes
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// ErrorResponse is the body written for failed requests.
type ErrorResponse struct {
	Error      *StandardError `json:"error"`
	RetryAfter int            `json:"retryCount,omitempty"`
}

// HandleHTTPError writes err to w, choosing the status from its code.
func (h *ErrorHandler) HandleHTTPError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := Normalize(err)
	status := HTTPStatus(stdErr.Code)

	h.logError(r, stdErr, status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:      stdErr,
		RetryAfter: GetRetryCount(stdErr.Code),
	})
}

// Normalize ensures we always have a StandardError
func Normalize(err error) *StandardError {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   errDetails(err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// HTTPStatus maps an error code to the response status.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeProcessNotFound, ErrCodeSessionNotFound:
		return http.StatusNotFound
	case ErrCodeStepIncomplete, ErrCodeProcessNotPersisted:
		return http.StatusUnprocessableEntity
	case ErrCodeInvalidStep, ErrCodeInvalidPatch, ErrCodeInvalidFilter:
		return http.StatusBadRequest
	case ErrCodeProcessSubmitted:
		return http.StatusConflict
	case ErrCodeAutofillDisabled:
		return http.StatusForbidden
	case ErrCodeSearchTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeNotificationSendFailed, ErrCodeProcessWriteFailed,
		ErrCodeSearchQueryFailed, ErrCodeReviewStartFailed:
		return http.StatusBadGateway
	case ErrCodeDatabaseConnection, ErrCodeElasticsearchFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *ErrorHandler) logError(r *http.Request, stdErr *StandardError, status int) {
	if h.logger == nil {
		return
	}
	fields := map[string]interface{}{
		"method":        r.Method,
		"path":          r.URL.Path,
		"status":        status,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", fields)
		return
	}
	h.logger.Warn("Request rejected", fields)
}
