// Package errors defines stable error codes for all blendlink failure modes.
// Codes travel inside Result envelopes, so callers can branch on them without
// parsing messages.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ValidationError indicates bad or missing input, or a conflict detected
	// before any mutation. Always caught before execute.
	ValidationError ErrorCode = "VALIDATION_ERROR"
	// ResolutionError indicates a path could not be made relative (no common
	// ancestor). Degraded to an absolute path plus warning, never fatal.
	ResolutionError ErrorCode = "RESOLUTION_ERROR"
	// EngineFailure indicates the file engine returned non-success for one file
	EngineFailure ErrorCode = "ENGINE_FAILURE"
	// Timeout indicates one file's engine invocation exceeded its budget
	Timeout ErrorCode = "TIMEOUT"
	// IOError indicates a filesystem fault (permission denied, vanished file)
	IOError ErrorCode = "IO_ERROR"
	// InternalError indicates an unexpected fault
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// E represents a blendlink error with a stable code and optional file context
type E struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Path    string    `json:"path,omitempty"`
	cause   error     // underlying error, not exported to JSON
}

// New creates an error with a stable code
func New(code ErrorCode, message string) *E {
	return &E{Code: code, Message: message}
}

// Wrap creates an error with a stable code and an underlying cause
func Wrap(code ErrorCode, message string, cause error) *E {
	return &E{Code: code, Message: message, cause: cause}
}

// WithPath attaches the file the error concerns
func (e *E) WithPath(path string) *E {
	e.Path = path
	return e
}

// Error implements the error interface
func (e *E) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying error
func (e *E) Unwrap() error {
	return e.cause
}

// CodeOf extracts the stable code from an error chain.
// Errors without a code report INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	var be *E
	if stderrors.As(err, &be) {
		return be.Code
	}
	return InternalError
}

// IsCode reports whether the error chain carries the given code
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// Hints maps error codes to suggested follow-up commands
var Hints = map[ErrorCode]string{
	EngineFailure: "run 'blendlink doctor' to check the file engine configuration",
	Timeout:       "raise the matching timeout class in .blendlink/config.json",
	IOError:       "check filesystem permissions under the project root",
}

// HintFor returns the suggested follow-up for an error code, if any
func HintFor(code ErrorCode) string {
	return Hints[code]
}
