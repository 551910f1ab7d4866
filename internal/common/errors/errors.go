// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Pipeline error codes. Terminal validation and deadline codes carry
// the exact reason string written to processing_error.
const (
	ErrCodeCoverageInsufficient  ErrorCode = "COVERAGE_INSUFFICIENT"
	ErrCodeSectionCoverageFailed ErrorCode = "SECTION_COVERAGE_FAILED"

	ErrCodeDeadlineExceeded ErrorCode = "DEADLINE_EXCEEDED"
	ErrCodeDeadlinePreStart ErrorCode = "DEADLINE_EXCEEDED_PRE_START"

	ErrCodeAnalysisFailed   ErrorCode = "ANALYSIS_FAILED_AFTER_RETRIES"
	ErrCodeExtractionFailed ErrorCode = "EXTRACTION_ERROR"

	ErrCodeStorageFetchFailed ErrorCode = "STORAGE_FETCH_FAILED"
	ErrCodeProviderTransient  ErrorCode = "PROVIDER_TRANSIENT"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeRecordUpdateFailed       ErrorCode = "RECORD_UPDATE_FAILED"
	ErrCodeRecordNotFound           ErrorCode = "RECORD_NOT_FOUND"

	ErrCodeInvalidJobPayload ErrorCode = "INVALID_JOB_PAYLOAD"
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

	if e.ErrorVariables != nil {
		for k, v := range e.ErrorVariables {
			vars[k] = v
		}
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewCoverageInsufficientError creates a terminal data-quality error.
func NewCoverageInsufficientError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCoverageInsufficient,
		Message:   "Extracted text below coverage thresholds",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSectionCoverageFailedError creates a terminal section-coverage error.
func NewSectionCoverageFailedError(missing []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSectionCoverageFailed,
		Message:   "Structured resume missing required sections",
		Details:   fmt.Sprintf("missing: %s", strings.Join(missing, ", ")),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDeadlineExceededError creates a terminal SLA breach error. preStart
// marks a breach detected before any stage ran.
func NewDeadlineExceededError(stage string, preStart bool) *StandardError {
	code := ErrCodeDeadlineExceeded
	if preStart {
		code = ErrCodeDeadlinePreStart
	}
	return &StandardError{
		Code:      code,
		Message:   "Job deadline exceeded",
		Details:   fmt.Sprintf("stage: %s", stage),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAnalysisFailedError creates a terminal analysis error after retries
// were exhausted.
func NewAnalysisFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAnalysisFailed,
		Message:   "Structured analysis failed after retries",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewExtractionFailedError creates a terminal extraction error.
func NewExtractionFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractionFailed,
		Message:   "Document extraction failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStorageFetchFailedError creates a retryable storage gateway error.
func NewStorageFetchFailedError(fileKey string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageFetchFailed,
		Message:   "Source document fetch failed",
		Details:   fmt.Sprintf("fileKey: %s, error: %s", fileKey, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderTransientError creates a retryable provider error.
func NewProviderTransientError(provider string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderTransient,
		Message:   fmt.Sprintf("Extraction provider '%s' transient failure", provider),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecordUpdateFailedError creates a retryable record update error.
func NewRecordUpdateFailedError(resumeID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordUpdateFailed,
		Message:   "Resume record update failed",
		Details:   fmt.Sprintf("resumeId: %s, error: %s", resumeID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecordNotFoundError creates a non-retryable missing record error.
func NewRecordNotFoundError(resumeID, userID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordNotFound,
		Message:   "Resume record not found",
		Details:   fmt.Sprintf("resumeId: %s, userId: %s", resumeID, userID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidJobPayloadError creates a non-retryable payload error.
func NewInvalidJobPayloadError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidJobPayload,
		Message:   "Queue event payload invalid",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	return &StandardError{
		Code:      "BUSINESS_RULE_VIOLATION",
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      "AUTHENTICATION_ERROR",
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes (same as internal).
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeCoverageInsufficient:     "COVERAGE_INSUFFICIENT",
	ErrCodeSectionCoverageFailed:    "SECTION_COVERAGE_FAILED",
	ErrCodeDeadlineExceeded:         "DEADLINE_EXCEEDED",
	ErrCodeDeadlinePreStart:         "DEADLINE_EXCEEDED_PRE_START",
	ErrCodeAnalysisFailed:           "ANALYSIS_FAILED_AFTER_RETRIES",
	ErrCodeExtractionFailed:         "EXTRACTION_ERROR",
	ErrCodeStorageFetchFailed:       "STORAGE_FETCH_FAILED",
	ErrCodeProviderTransient:        "PROVIDER_TRANSIENT",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeRecordUpdateFailed:       "RECORD_UPDATE_FAILED",
	ErrCodeRecordNotFound:           "RECORD_NOT_FOUND",
	ErrCodeInvalidJobPayload:        "INVALID_JOB_PAYLOAD",
}

// GetRetryCount returns how many broker-level retries each error code allows.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStorageFetchFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeRecordUpdateFailed:
		return 3 // Retryable technical errors

	case ErrCodeProviderTransient:
		return 2

	default:
		return 0 // Terminal pipeline outcomes: no broker retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code) // Fallback
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
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

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "DEADLINE"):
		return "SLA"
	case strings.Contains(codeStr, "COVERAGE"):
		return "VALIDATION"
	case strings.Contains(codeStr, "ANALYSIS"):
		return "AI"
	case strings.Contains(codeStr, "EXTRACTION") || strings.Contains(codeStr, "PROVIDER"):
		return "EXTRACTION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "RECORD"):
		return "DATABASE"
	case strings.Contains(codeStr, "STORAGE"):
		return "STORAGE"
	default:
		return "OTHER"
	}
}
