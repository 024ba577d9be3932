// Package errors provides standardized error handling for the pricing
// client and its workflow workers.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodePricingAPIFailed  ErrorCode = "PRICING_API_FAILED"
	ErrCodePricingAPITimeout ErrorCode = "PRICING_API_TIMEOUT"
	ErrCodePriceUnavailable  ErrorCode = "PRICE_UNAVAILABLE"
	ErrCodeInvalidSelection  ErrorCode = "INVALID_SELECTION"

	ErrCodeQuoteCacheFailed         ErrorCode = "QUOTE_CACHE_FAILED"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
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

// BPMNError represents an error that can be thrown to the workflow engine.
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

func NewPricingAPIFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePricingAPIFailed,
		Message:   "Pricing API request failed",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewPricingAPITimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodePricingAPITimeout,
		Message:   "Pricing API did not respond in time",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPriceUnavailableError is returned when the pricing service answered
// but could not produce a price for the selection.
func NewPriceUnavailableError(message string) *StandardError {
	return &StandardError{
		Code:      ErrCodePriceUnavailable,
		Message:   "Unable to calculate price",
		Details:   message,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidSelectionError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidSelection,
		Message:   "Pricing selection is invalid",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewQuoteCacheFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQuoteCacheFailed,
		Message:   "Quote cache unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodePricingAPIFailed:         "PRICING_API_FAILED",
	ErrCodePricingAPITimeout:        "PRICING_API_TIMEOUT",
	ErrCodePriceUnavailable:         "PRICE_UNAVAILABLE",
	ErrCodeInvalidSelection:         "INVALID_SELECTION",
	ErrCodeQuoteCacheFailed:         "QUOTE_CACHE_FAILED",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeDatabaseInsertFailed:     "DATABASE_INSERT_FAILED",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodePricingAPIFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeDatabaseInsertFailed:
		return 3
	case ErrCodePricingAPITimeout, ErrCodeQuoteCacheFailed:
		return 2
	default:
		return 0 // business errors: no retry
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
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

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "PRICING_API"):
		return "PRICING_API"
	case strings.HasPrefix(codeStr, "PRICE"):
		return "PRICING"
	case strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "CACHE"):
		return "CACHE"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
