package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Pipeline error taxonomy. Per-document terminal errors wrap exactly one
// of these sentinels so the batch summary can classify failures with
// errors.Is instead of string matching.
var (
	ErrOcrUnavailable    = errors.New("ocr unavailable")
	ErrOcrFailed         = errors.New("ocr failed")
	ErrPolicyViolation   = errors.New("policy violation")
	ErrProviderTransient = errors.New("provider transient error")
	ErrProviderFatal     = errors.New("provider fatal error")
	ErrSchemaValidation  = errors.New("schema validation failed")
	ErrDeadlineExceeded  = errors.New("document deadline exceeded")
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
)

// NewAppError creates an AppError wrapping a sentinel cause.
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ErrorCode maps an error chain to its taxonomy label for reporting.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrOcrUnavailable):
		return "OCR_UNAVAILABLE"
	case errors.Is(err, ErrOcrFailed):
		return "OCR_FAILED"
	case errors.Is(err, ErrPolicyViolation):
		return "POLICY_VIOLATION"
	case errors.Is(err, ErrSchemaValidation):
		return "SCHEMA_VALIDATION"
	case errors.Is(err, ErrProviderTransient):
		return "PROVIDER_TRANSIENT"
	case errors.Is(err, ErrProviderFatal):
		return "PROVIDER_FATAL"
	case errors.Is(err, ErrDeadlineExceeded):
		return "DEADLINE_EXCEEDED"
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_INPUT"
	default:
		return "INTERNAL"
	}
}

// WrapError annotates err with a message, preserving the chain.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
