// Package errors provides the copilot error taxonomy and its mapping onto
// Zeebe job outcomes and HTTP status codes.
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

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Input validation (surfaced to the caller)
const (
	ErrCodeEmptyInput          ErrorCode = "EMPTY_INPUT"
	ErrCodeResourceNotFound    ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeTranscriptionFailed ErrorCode = "TRANSCRIPTION_FAILED"
	ErrCodeInvalidRequest      ErrorCode = "INVALID_REQUEST"
)

// Recovered inside the pipeline (logged, never surfaced as a hard failure)
const (
	ErrCodeAdapterFailure         ErrorCode = "ADAPTER_FAILURE"
	ErrCodeTranslationDegraded    ErrorCode = "TRANSLATION_DEGRADED"
	ErrCodeFusionAnalysisFailed   ErrorCode = "FUSION_ANALYSIS_FAILED"
	ErrCodeDetectionFailed        ErrorCode = "LANGUAGE_DETECTION_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// Infrastructure
const (
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout         ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
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
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
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

// NewEmptyInputError is returned before any network call when a request carries no content.
func NewEmptyInputError() *StandardError {
	return &StandardError{
		Code:      ErrCodeEmptyInput,
		Message:   "Input text/audio path is empty",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewResourceNotFoundError reports a referenced audio or image resource that does not exist.
func NewResourceNotFoundError(kind, path string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResourceNotFound,
		Message:   fmt.Sprintf("%s file not found", kind),
		Details:   path,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTranscriptionError reports that speech-to-text could not produce text.
func NewTranscriptionError(err error) *StandardError {
	details := "speech recognition could not understand the audio"
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeTranscriptionFailed,
		Message:   "Speech transcription failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInvalidRequestError reports a malformed inbound request.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAdapterFailureError wraps a per-adapter failure. It is always recovered by the orchestrator.
func NewAdapterFailureError(adapter string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAdapterFailure,
		Message:   fmt.Sprintf("Adapter '%s' failed", adapter),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewTranslationDegradedError records a translation fallback. It is an event, not a failure.
func NewTranslationDegradedError(target string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTranslationDegraded,
		Message:   "Translation unavailable, returned untranslated text",
		Details:   err.Error(),
		Retryable: false,
		Metadata:  map[string]interface{}{"targetLanguage": target},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewFusionAnalysisError reports a domain that could not be analyzed.
func NewFusionAnalysisError(domain, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFusionAnalysisFailed,
		Message:   fmt.Sprintf("Analysis of %s data failed", domain),
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"domain": domain},
		Timestamp: time.Now().UTC(),
	}
}

// NewDetectionError reports a language identification failure.
func NewDetectionError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDetectionFailed,
		Message:   "Language detection failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalService,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 4. Inspection
// ==========================

// AsStandard extracts the first StandardError in err's chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Code == code
}

// Normalize always yields a StandardError.
func Normalize(err error) *StandardError {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr
	}
	return NewInternalError(err)
}

// IsValidationError reports the up-front rejection class: errors the caller
// must fix, returned before any processing begins.
func IsValidationError(err error) bool {
	stdErr, ok := AsStandard(err)
	if !ok {
		return false
	}
	switch stdErr.Code {
	case ErrCodeEmptyInput, ErrCodeResourceNotFound, ErrCodeTranscriptionFailed, ErrCodeInvalidRequest:
		return true
	}
	return false
}

// HTTPStatus maps an error onto the status code the web surface returns.
func HTTPStatus(err error) int {
	stdErr, ok := AsStandard(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch stdErr.Code {
	case ErrCodeEmptyInput, ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case ErrCodeResourceNotFound:
		return http.StatusNotFound
	case ErrCodeTranscriptionFailed:
		return http.StatusUnprocessableEntity
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ==========================
// 5. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeExternalService, ErrCodeNotificationSendFailed:
		return 3
	case ErrCodeTimeout:
		return 2
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

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeEmptyInput || code == ErrCodeInvalidRequest || code == ErrCodeResourceNotFound:
		return "VALIDATION"
	case strings.Contains(codeStr, "TRANSCRIPTION") || strings.Contains(codeStr, "TRANSLATION") || strings.Contains(codeStr, "LANGUAGE"):
		return "LANGUAGE"
	case strings.Contains(codeStr, "ADAPTER"):
		return "ADAPTER"
	case strings.Contains(codeStr, "FUSION"):
		return "FUSION"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "EXTERNAL") || strings.Contains(codeStr, "TIMEOUT"):
		return "INFRASTRUCTURE"
	default:
		return "OTHER"
	}
}
