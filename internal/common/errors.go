package common

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Error types for better error classification
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeUpstream      ErrorType = "upstream"
	ErrorTypeNetwork       ErrorType = "network"
	ErrorTypeTimeout       ErrorType = "timeout"
	ErrorTypeInternal      ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType
	Message string
	Field   string
	// Status is the upstream HTTP status for ErrorTypeUpstream, zero otherwise.
	Status int
	Hint   string
	Err    error
}

func (e *AppError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Type, e.Status, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the error may be retried. Upstream calls are
// single-attempt, so nothing is retried automatically; the user re-runs the scan.
func (e *AppError) IsRetryable() bool {
	return false
}

// IsTransport reports whether the error came from the transport rather than an HTTP status
func (e *AppError) IsTransport() bool {
	return e.Type == ErrorTypeNetwork || e.Type == ErrorTypeTimeout
}

// Error constructors
func NewValidationError(field, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Field:   field,
		Message: message,
	}
}

func NewConfigurationError(field, message, hint string) *AppError {
	return &AppError{
		Type:    ErrorTypeConfiguration,
		Field:   field,
		Message: message,
		Hint:    hint,
	}
}

func NewUpstreamError(status int, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeUpstream,
		Status:  status,
		Message: message,
	}
}

func NewNetworkError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeNetwork,
		Message: message,
		Err:     err,
	}
}

func NewTimeoutError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeTimeout,
		Message: message,
		Err:     err,
	}
}

func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// ErrorClassifier provides centralized error classification
type ErrorClassifier struct{}

func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

// ClassifyError classifies an error and returns an AppError
func (c *ErrorClassifier) ClassifyError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError("request timed out", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTimeoutError("request timed out", err)
	}

	errStr := strings.ToLower(err.Error())

	timeoutErrors := []string{
		"timeout",
		"deadline exceeded",
	}
	for _, t := range timeoutErrors {
		if strings.Contains(errStr, t) {
			return NewTimeoutError("request timed out", err)
		}
	}

	networkErrors := []string{
		"connection",
		"network",
		"no such host",
		"dial tcp",
		"eof",
		"tls",
		"context canceled",
	}
	for _, n := range networkErrors {
		if strings.Contains(errStr, n) {
			return NewNetworkError("network request failed", err)
		}
	}

	// Default to internal error
	return NewInternalError(err.Error(), err)
}

// UserMessage converts any scan error into the text shown to the user.
// Raw transport errors are never passed through.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	appErr := NewErrorClassifier().ClassifyError(err)
	switch appErr.Type {
	case ErrorTypeValidation:
		return appErr.Message
	case ErrorTypeConfiguration:
		if appErr.Hint != "" {
			return fmt.Sprintf("%s. %s", appErr.Message, appErr.Hint)
		}
		return appErr.Message
	case ErrorTypeUpstream:
		return upstreamMessage(appErr)
	case ErrorTypeTimeout:
		return "Request timed out. The API server took too long to respond."
	case ErrorTypeNetwork:
		return "Network error. Could not reach the intelligence API; check the gateway URL and your connection."
	default:
		return "An unexpected error occurred. Please try again."
	}
}

func upstreamMessage(e *AppError) string {
	switch e.Status {
	case 401:
		return "Authentication failed (401). Please check the API key configured on the gateway."
	case 403:
		return "Access forbidden (403). The API key may not have permission for this endpoint."
	case 404:
		return "Target not found (404): the API returned no results for this target."
	case 429:
		return "Rate limit exceeded (429). Please wait before making another request."
	case 503:
		return "Gateway unavailable (503). The gateway has no upstream API key configured."
	default:
		msg := e.Message
		if msg == "" {
			msg = "unexpected response"
		}
		return fmt.Sprintf("API Error %d: %s", e.Status, msg)
	}
}

// PartialDataWarning records a non-authoritative sub-query that produced no usable data.
// It is not an error: the scan still succeeds.
type PartialDataWarning struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

func (w PartialDataWarning) String() string {
	return fmt.Sprintf("%s: %s", w.Key, w.Reason)
}
