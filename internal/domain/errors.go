package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinels for errors.Is matching on the typed errors below.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrRuleInvariant = errors.New("rule evaluation invariant violation")
)

// ConfigurationError reports an unknown analysis type, an unknown VAF-threshold name,
// or a malformed pathway request. It is always fatal to the single call.
type ConfigurationError struct {
	AnalysisType AnalysisType `json:"analysis_type,omitempty"`
	Name         string       `json:"name,omitempty"`
	Reason       string       `json:"reason"`
}

// NewConfigurationError creates a new ConfigurationError
func NewConfigurationError(analysisType AnalysisType, name, reason string) *ConfigurationError {
	return &ConfigurationError{
		AnalysisType: analysisType,
		Name:         name,
		Reason:       reason,
	}
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	switch {
	case e.Name != "" && e.AnalysisType != "":
		return fmt.Sprintf("configuration error (%s, %q): %s", e.AnalysisType, e.Name, e.Reason)
	case e.Name != "":
		return fmt.Sprintf("configuration error (%q): %s", e.Name, e.Reason)
	case e.AnalysisType != "":
		return fmt.Sprintf("configuration error (%s): %s", e.AnalysisType, e.Reason)
	default:
		return "configuration error: " + e.Reason
	}
}

// Is makes errors.Is(err, ErrConfiguration) succeed.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// RuleEvaluationInvariantViolation signals a framework-definition bug: a non-null tier
// with no supporting rules, or a tier outside the framework's severity ordering.
// It never indicates a data problem.
type RuleEvaluationInvariantViolation struct {
	Framework GuidelineFramework `json:"framework"`
	VariantID string             `json:"variant_id"`
	Tier      Tier               `json:"tier,omitempty"`
	Reason    string             `json:"reason"`
}

// Error implements the error interface
func (e *RuleEvaluationInvariantViolation) Error() string {
	return fmt.Sprintf("rule invariant violated in %s for variant %s (tier %q): %s",
		e.Framework, e.VariantID, e.Tier, e.Reason)
}

// Is makes errors.Is(err, ErrRuleInvariant) succeed.
func (e *RuleEvaluationInvariantViolation) Is(target error) bool {
	return target == ErrRuleInvariant
}

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput      = "INVALID_INPUT"
	ErrConfigurationCode = "CONFIGURATION_ERROR"
	ErrRuleInvariantCode = "RULE_INVARIANT_VIOLATION"
	ErrStorage           = "STORAGE_ERROR"
	ErrNotFoundCode      = "NOT_FOUND"
	ErrInternalServer    = "INTERNAL_SERVER_ERROR"
	ErrValidation        = "VALIDATION_ERROR"
)

// ErrorCode maps an error onto one of the API error codes.
func ErrorCode(err error) string {
	var validationErr *ValidationError
	switch {
	case errors.Is(err, ErrConfiguration):
		return ErrConfigurationCode
	case errors.Is(err, ErrRuleInvariant):
		return ErrRuleInvariantCode
	case errors.As(err, &validationErr):
		return ErrValidation
	case errors.Is(err, ErrNotFound):
		return ErrNotFoundCode
	default:
		return ErrInternalServer
	}
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
