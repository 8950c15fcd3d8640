package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Event ingestion errors
	ErrCodeProtocol ErrorCode = "PROTOCOL_ERROR"

	// Process discovery errors
	ErrCodeDiscovery ErrorCode = "DISCOVERY_ERROR"

	// Correlation errors
	ErrCodeCorrelationMiss ErrorCode = "CORRELATION_MISS"

	// Transcript errors
	ErrCodeParse              ErrorCode = "PARSE_ERROR"
	ErrCodeTranscriptNotFound ErrorCode = "TRANSCRIPT_NOT_FOUND"

	// Daemon lifecycle errors
	ErrCodeDaemonNotRunning     ErrorCode = "DAEMON_NOT_RUNNING"
	ErrCodeDaemonAlreadyRunning ErrorCode = "DAEMON_ALREADY_RUNNING"
	ErrCodeListenFailed         ErrorCode = "LISTEN_FAILED"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// CanopyError represents a structured error with context
type CanopyError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *CanopyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *CanopyError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *CanopyError) WithDetail(key string, value interface{}) *CanopyError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *CanopyError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new CanopyError
func New(code ErrorCode, message string) *CanopyError {
	return &CanopyError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a CanopyError
func Wrap(err error, code ErrorCode, message string) *CanopyError {
	return &CanopyError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific CanopyError code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	canopyErr, ok := err.(*CanopyError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	return canopyErr.Code == code
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	canopyErr, ok := err.(*CanopyError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return canopyErr.Code
}
