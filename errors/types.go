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

	// Capture session errors
	ErrCodeRevisionChanged ErrorCode = "REVISION_CHANGED"
	ErrCodeArtifactMissing ErrorCode = "ARTIFACT_MISSING"
	ErrCodeWorkFailed      ErrorCode = "WORK_FAILED"

	// Environment descriptor errors
	ErrCodeEnvNameUnset    ErrorCode = "ENV_NAME_UNSET"
	ErrCodeEnvExportFailed ErrorCode = "ENV_EXPORT_FAILED"

	// Record errors
	ErrCodeUnsupportedType ErrorCode = "UNSUPPORTED_TYPE"
	ErrCodeRecordWrite     ErrorCode = "RECORD_WRITE"
	ErrCodeRecordInvalid   ErrorCode = "RECORD_INVALID"
	ErrCodeHashMismatch    ErrorCode = "HASH_MISMATCH"

	// Command execution errors
	ErrCodeCommandNotFound ErrorCode = "COMMAND_NOT_FOUND"
	ErrCodeCommandFailed   ErrorCode = "COMMAND_FAILED"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// ProvError represents a structured error with context
type ProvError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *ProvError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *ProvError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *ProvError) WithDetail(key string, value interface{}) *ProvError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *ProvError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new ProvError
func New(code ErrorCode, message string) *ProvError {
	return &ProvError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a ProvError
func Wrap(err error, code ErrorCode, message string) *ProvError {
	return &ProvError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific ProvError code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	provErr, ok := err.(*ProvError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	if provErr.Code == code {
		return true
	}
	// A ProvError may wrap another one (e.g. ARTIFACT_MISSING around a
	// COMMAND_FAILED); keep looking down the chain.
	return provErr.Cause != nil && Is(provErr.Cause, code)
}

// GetCode extracts the outermost error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	provErr, ok := err.(*ProvError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return provErr.Code
}

// As returns the outermost ProvError in err's chain, if any.
func As(err error) (*ProvError, bool) {
	for err != nil {
		if provErr, ok := err.(*ProvError); ok {
			return provErr, true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = unwrapper.Unwrap()
	}
	return nil, false
}
