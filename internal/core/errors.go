// internal/core/errors.go
package core

import (
	"context"
	"errors"
	"fmt"
)

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// ConfigError wraps a formatted message as a configuration error.
func ConfigError(format string, args ...any) *Error {
	return WrapError(ErrConfigInvalid, fmt.Errorf(format, args...))
}

// Predefined errors
var (
	// Data errors
	ErrNoData           = &Error{Code: "NO_DATA", Message: "no data available"}
	ErrSeriesInvalid    = &Error{Code: "SERIES_INVALID", Message: "price series invalid"}
	ErrInsufficientData = &Error{Code: "INSUFFICIENT_DATA", Message: "insufficient data for walk-forward window"}

	// Model errors
	ErrModelFailed = &Error{Code: "MODEL_FAILED", Message: "forecasting model failed"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// Job and archive errors
	ErrJobNotFound   = &Error{Code: "JOB_NOT_FOUND", Message: "job not found"}
	ErrArchiveFailed = &Error{Code: "ARCHIVE_FAILED", Message: "archive operation failed"}
	ErrCancelled     = &Error{Code: "CANCELLED", Message: "run cancelled"}

	ErrInternal = &Error{Code: "INTERNAL_ERROR", Message: "an internal error occurred"}
)

// AsError returns err as a structured error. Unstructured errors map to
// ErrInternal with err as the cause.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	var ide *InsufficientDataError
	if errors.As(err, &ide) {
		return WrapError(ErrInsufficientData,
			fmt.Errorf("have %d points, need at least %d", ide.Have, ide.Need))
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return WrapError(ErrCancelled, err)
	}
	return WrapError(ErrInternal, err)
}

// InsufficientDataError reports a series too short for a single
// training+test window. It matches ErrInsufficientData under errors.Is.
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("[%s] %s: have %d points, need at least %d",
		ErrInsufficientData.Code, ErrInsufficientData.Message, e.Have, e.Need)
}

// Is matches ErrInsufficientData.
func (e *InsufficientDataError) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.Code == ErrInsufficientData.Code
	}
	return false
}
