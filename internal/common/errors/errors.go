// Package errors provides standardized error handling for the intake service and its workflow workers.
package errors

import (
	stderrors "errors"
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
	ErrCodeRateLimited  ErrorCode = "RATE_LIMITED"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	ErrCodeExtractionFailed          ErrorCode = "EXTRACTION_FAILED"
	ErrCodeTopicClassificationFailed ErrorCode = "TOPIC_CLASSIFICATION_FAILED"
	ErrCodeBriefGenerationFailed     ErrorCode = "BRIEF_GENERATION_FAILED"
	ErrCodeGenerationTimeout         ErrorCode = "GENERATION_TIMEOUT"
	ErrCodeCredentialMissing         ErrorCode = "CREDENTIAL_MISSING"

	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"

	ErrCodeBenchmarkDiscoveryFailed ErrorCode = "BENCHMARK_DISCOVERY_FAILED"

	ErrCodeEmailSendFailed ErrorCode = "EMAIL_SEND_FAILED"
	ErrCodeAuthentication  ErrorCode = "AUTHENTICATION_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// As extracts a *StandardError from an error chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
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

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewRateLimitedError reports an admission rejection with its retry hint.
func NewRateLimitedError(retryAfterSeconds int) *StandardError {
	e := newError(ErrCodeRateLimited, "Too many requests", fmt.Sprintf("retry after %ds", retryAfterSeconds), true)
	e.Metadata = map[string]interface{}{"retryAfterSeconds": retryAfterSeconds}
	return e
}

// NewInvalidInputError creates a non-retryable validation error.
func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid request", details, false)
}

// NewExtractionFailedError wraps a failed line-item extraction call.
func NewExtractionFailedError(err error) *StandardError {
	return newError(ErrCodeExtractionFailed, "Line item extraction failed", err.Error(), true)
}

// NewTopicClassificationFailedError wraps a failed topic classifier call.
func NewTopicClassificationFailedError(err error) *StandardError {
	return newError(ErrCodeTopicClassificationFailed, "Topic classification failed", err.Error(), true)
}

// NewBriefGenerationFailedError wraps a failed advisory generation call.
func NewBriefGenerationFailedError(err error) *StandardError {
	return newError(ErrCodeBriefGenerationFailed, "Brief generation failed", err.Error(), true)
}

// NewGenerationTimeoutError creates a retryable generation timeout error.
func NewGenerationTimeoutError(operation string) *StandardError {
	return newError(ErrCodeGenerationTimeout, "Generation timeout", fmt.Sprintf("operation: %s", operation), true)
}

// NewCredentialMissingError creates a non-retryable configuration error.
func NewCredentialMissingError(service string) *StandardError {
	return newError(ErrCodeCredentialMissing, "Credential missing", fmt.Sprintf("service: %s", service), false)
}

// NewStoreUnavailableError wraps a persistence failure.
func NewStoreUnavailableError(err error) *StandardError {
	return newError(ErrCodeStoreUnavailable, "Session store unavailable", err.Error(), true)
}

// NewBenchmarkDiscoveryFailedError wraps a failed discovery attempt.
func NewBenchmarkDiscoveryFailedError(tool string, err error) *StandardError {
	return newError(ErrCodeBenchmarkDiscoveryFailed, "Benchmark discovery failed", fmt.Sprintf("tool: %s, error: %s", tool, err.Error()), true)
}

// NewEmailSendFailedError creates a retryable email delivery error.
func NewEmailSendFailedError(err error) *StandardError {
	return newError(ErrCodeEmailSendFailed, "Email delivery failed", err.Error(), true)
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return newError("EXTERNAL_SERVICE_ERROR", fmt.Sprintf("External service '%s' error", service), err.Error(), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError("TIMEOUT_ERROR", fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError("RESOURCE_NOT_FOUND", fmt.Sprintf("Resource not found in %s", service), details, false)
}

func NewBusinessRuleError(message, details string) *StandardError {
	return newError("BUSINESS_RULE_VIOLATION", message, details, false)
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthentication, "Authentication failed", details, false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStoreUnavailable,
		ErrCodeEmailSendFailed,
		ErrCodeExtractionFailed,
		ErrCodeBriefGenerationFailed,
		ErrCodeTopicClassificationFailed,
		"EXTERNAL_SERVICE_ERROR":
		return 3

	case ErrCodeGenerationTimeout,
		ErrCodeBenchmarkDiscoveryFailed,
		"TIMEOUT_ERROR":
		return 2

	case ErrCodeRateLimited:
		return 1

	default:
		return 0 // Business errors: no retry
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

// ==========================
// 5. Utility Functions
// ==========================

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "RATE"):
		return "ADMISSION"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "EXTRACTION") || strings.Contains(codeStr, "BRIEF") ||
		strings.Contains(codeStr, "TOPIC") || strings.Contains(codeStr, "GENERATION") ||
		strings.Contains(codeStr, "CREDENTIAL"):
		return "GENERATION"
	case strings.Contains(codeStr, "STORE") || strings.Contains(codeStr, "SESSION"):
		return "PERSISTENCE"
	case strings.Contains(codeStr, "BENCHMARK"):
		return "BENCHMARK"
	case strings.Contains(codeStr, "EMAIL"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "AUTH"):
		return "AUTH"
	default:
		return "OTHER"
	}
}
