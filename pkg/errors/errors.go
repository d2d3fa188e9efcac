// Package errors provides structured error types for grainscale.
//
// Every failure a degradation run can surface carries a machine-readable
// [Code] so that callers can decide whether to skip one image, abort one
// degradation, or stop before any pixel work starts:
//
//   - ErrCodeImageLoad: a source image is missing or corrupt. Skip that image,
//     continue the batch.
//   - ErrCodeInvalidDimension: a resize target is non-positive. Abort that
//     single degradation.
//   - ErrCodeInvalidNoiseKind: an unrecognized distribution name. Fail fast or
//     fall back, depending on configuration.
//   - ErrCodeConfigurationConflict: two mutually exclusive consistency policies
//     were selected. Fail before any array work begins.
//   - ErrCodeSubprocessFailure: the external model process exited non-zero.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidDimension, "target %dx%d", w, h)
//	if errors.Is(err, errors.ErrCodeInvalidDimension) {
//	    // abort this degradation only
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeImageLoad, origErr, "decode %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Degradation errors
	ErrCodeImageLoad             Code = "IMAGE_LOAD"
	ErrCodeInvalidDimension      Code = "INVALID_DIMENSION"
	ErrCodeInvalidNoiseKind      Code = "INVALID_NOISE_KIND"
	ErrCodeConfigurationConflict Code = "CONFIGURATION_CONFLICT"
	ErrCodeSubprocessFailure     Code = "SUBPROCESS_FAILURE"

	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidPath   Code = "INVALID_PATH"

	// Resource not found errors
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code,
// so an ImageLoad error wrapped by an outer Internal error is still found.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode extracts the outermost error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// SubprocessError describes a non-zero exit of an external process.
type SubprocessError struct {
	ExitCode int    // Process exit status
	LogPath  string // Where the captured output was written
}

// Error implements the error interface.
func (e *SubprocessError) Error() string {
	if e.LogPath != "" {
		return fmt.Sprintf("process exited with status %d (log: %s)", e.ExitCode, e.LogPath)
	}
	return fmt.Sprintf("process exited with status %d", e.ExitCode)
}

// Code returns the error code for this error type.
func (e *SubprocessError) Code() Code {
	return ErrCodeSubprocessFailure
}
