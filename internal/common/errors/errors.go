// Package errors provides the standardized error taxonomy shared by the HTTP API,
// the job workers and the inference core.
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

const (
	// Input normalization
	ErrCodeUnknownCategory      ErrorCode = "UNKNOWN_CATEGORY"
	ErrCodeUnknownDay           ErrorCode = "UNKNOWN_DAY"
	ErrCodeInvalidNumericDomain ErrorCode = "INVALID_NUMERIC_DOMAIN"

	// Artifact / model
	ErrCodeModelUnavailable ErrorCode = "MODEL_UNAVAILABLE"
	ErrCodeSchemaMismatch   ErrorCode = "SCHEMA_MISMATCH"
	ErrCodeInferenceFailed  ErrorCode = "INFERENCE_FAILED"
	ErrCodeModelNotFound    ErrorCode = "MODEL_NOT_FOUND"

	// Boundary
	ErrCodeParseError    ErrorCode = "PARSE_ERROR"
	ErrCodeBrokerError   ErrorCode = "BROKER_ERROR"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
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
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any StandardError carrying the same code, so the exported
// sentinels below work with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Permanent returns a copy of e that callers should not retry as is.
// extra is merged into the copy's metadata.
func (e *StandardError) Permanent(extra map[string]interface{}) *StandardError {
	c := *e
	c.Retryable = false
	c.Metadata = make(map[string]interface{}, len(e.Metadata)+len(extra))
	for k, v := range e.Metadata {
		c.Metadata[k] = v
	}
	for k, v := range extra {
		c.Metadata[k] = v
	}
	return &c
}

// Sentinels for errors.Is comparisons.
var (
	ErrUnknownCategory      = &StandardError{Code: ErrCodeUnknownCategory}
	ErrUnknownDay           = &StandardError{Code: ErrCodeUnknownDay}
	ErrInvalidNumericDomain = &StandardError{Code: ErrCodeInvalidNumericDomain}
	ErrModelUnavailable     = &StandardError{Code: ErrCodeModelUnavailable}
	ErrSchemaMismatch       = &StandardError{Code: ErrCodeSchemaMismatch}
	ErrInferenceFailed      = &StandardError{Code: ErrCodeInferenceFailed}
	ErrModelNotFound        = &StandardError{Code: ErrCodeModelNotFound}
)

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

// NewUnknownCategoryError reports a store category label matching neither label set.
func NewUnknownCategoryError(label string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownCategory,
		Message:   "Unknown store category",
		Details:   fmt.Sprintf("label: %q", label),
		Retryable: false,
		Metadata:  map[string]interface{}{"label": label},
		Timestamp: time.Now().UTC(),
	}
}

// NewUnknownDayError reports a weekday label matching neither label set.
func NewUnknownDayError(label string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownDay,
		Message:   "Unknown order day",
		Details:   fmt.Sprintf("label: %q", label),
		Retryable: false,
		Metadata:  map[string]interface{}{"label": label},
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidNumericDomainError reports a numeric field outside its allowed range.
func NewInvalidNumericDomainError(field string, value int, constraint string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidNumericDomain,
		Message:   "Numeric field out of range",
		Details:   fmt.Sprintf("%s=%d violates %s", field, value, constraint),
		Retryable: false,
		Metadata:  map[string]interface{}{"field": field, "value": value},
		Timestamp: time.Now().UTC(),
	}
}

// NewModelUnavailableError creates a retryable artifact acquisition error.
func NewModelUnavailableError(model string, err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeModelUnavailable,
		Message:   fmt.Sprintf("Model '%s' is unavailable", model),
		Details:   details,
		Retryable: true,
		Metadata:  map[string]interface{}{"model": model},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewSchemaMismatchError reports a record or artifact that disagrees with its declared schema.
func NewSchemaMismatchError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSchemaMismatch,
		Message:   "Feature record does not match the model schema",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInferenceFailedError wraps a failure raised inside the model's predict call.
func NewInferenceFailedError(model, reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInferenceFailed,
		Message:   fmt.Sprintf("Inference failed for model '%s'", model),
		Details:   reason,
		Retryable: false,
		Metadata:  map[string]interface{}{"model": model},
		Timestamp: time.Now().UTC(),
	}
}

// NewModelNotFoundError reports a model name absent from the registry.
func NewModelNotFoundError(model string) *StandardError {
	return &StandardError{
		Code:      ErrCodeModelNotFound,
		Message:   "Model not found in registry",
		Details:   fmt.Sprintf("model: %s", model),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewParseError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeParseError,
		Message:   "Malformed input",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewBrokerError reports a failed Zeebe gateway call.
func NewBrokerError(operation string, err error, retryable bool) *StandardError {
	return &StandardError{
		Code:      ErrCodeBrokerError,
		Message:   fmt.Sprintf("Zeebe operation '%s' failed", operation),
		Details:   err.Error(),
		Retryable: retryable,
		Metadata:  map[string]interface{}{"operation": operation},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 4. Error Conversion
// ==========================

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeModelUnavailable:
		return 2
	default:
		return 0
	}
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternalError,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
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

// HTTPStatus maps an error code onto the status returned by the API.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeUnknownCategory, ErrCodeUnknownDay, ErrCodeInvalidNumericDomain:
		return http.StatusUnprocessableEntity
	case ErrCodeParseError:
		return http.StatusBadRequest
	case ErrCodeModelNotFound:
		return http.StatusNotFound
	case ErrCodeModelUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "UNKNOWN") || strings.Contains(codeStr, "NUMERIC"):
		return "INPUT"
	case strings.Contains(codeStr, "MODEL") || strings.Contains(codeStr, "SCHEMA"):
		return "ARTIFACT"
	case strings.Contains(codeStr, "INFERENCE"):
		return "INFERENCE"
	case strings.Contains(codeStr, "PARSE"):
		return "VALIDATION"
	case strings.Contains(codeStr, "BROKER"):
		return "INTEGRATION"
	default:
		return "OTHER"
	}
}
