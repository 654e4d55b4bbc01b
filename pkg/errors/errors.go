// Package errors provides structured error types for gearlayout.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, HTTP API and MCP server
//   - Machine-readable error codes for programmatic handling
//   - Process exit codes derived from the error code
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures (exit code 2)
//   - *_NOT_FOUND: Missing entities, layouts or files
//   - NOT_CONVERGED: The solver ran out of sweeps (exit code 3)
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidDocument, "entity %d: radius must be finite", id)
//	if errors.Is(err, errors.ErrCodeInvalidDocument) {
//	    // Handle validation error
//	}
//
//	// Map solver sentinels onto codes
//	err = errors.FromSolver(sys.AddEntity(1, 0, 0, 0, 5))
package errors

import (
	"context"
	"errors"
	"fmt"

	"github.com/matzehuels/gearlayout/pkg/core/solver"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidDocument Code = "INVALID_DOCUMENT"
	ErrCodeInvalidFormat   Code = "INVALID_FORMAT"
	ErrCodeInvalidPath     Code = "INVALID_PATH"
	ErrCodeDuplicateID     Code = "DUPLICATE_ID"

	// Resource not found errors
	ErrCodeNotFound       Code = "NOT_FOUND"
	ErrCodeEntityNotFound Code = "ENTITY_NOT_FOUND"
	ErrCodeFileNotFound   Code = "FILE_NOT_FOUND"

	// Solver outcomes
	ErrCodeCapacityExceeded  Code = "CAPACITY_EXCEEDED"
	ErrCodeDanglingReference Code = "DANGLING_REFERENCE"
	ErrCodeNotConverged      Code = "NOT_CONVERGED"

	// Service errors
	ErrCodeRateLimited  Code = "RATE_LIMITED"
	ErrCodeUnauthorized Code = "UNAUTHORIZED"
	ErrCodeTimeout      Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Process exit codes.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitInvalidInput = 2
	ExitNotConverged = 3
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
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
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

// IsInvalid reports whether the error stems from bad caller input.
func IsInvalid(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidDocument, ErrCodeInvalidFormat,
		ErrCodeInvalidPath, ErrCodeDuplicateID, ErrCodeDanglingReference,
		ErrCodeCapacityExceeded, ErrCodeEntityNotFound, ErrCodeFileNotFound:
		return true
	}
	return false
}

// ExitCode maps an error onto the process exit status: 0 for nil,
// 2 for invalid input, 3 when the solver did not converge and 1 otherwise.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case Is(err, ErrCodeNotConverged):
		return ExitNotConverged
	case IsInvalid(err):
		return ExitInvalidInput
	default:
		return ExitFailure
	}
}

// FromSolver wraps a solver sentinel error in an *Error carrying the
// matching code. Nil and already-coded errors pass through unchanged.
func FromSolver(err error) error {
	if err == nil || GetCode(err) != "" {
		return err
	}
	code := ErrCodeInternal
	switch {
	case errors.Is(err, solver.ErrDuplicateEntityID), errors.Is(err, solver.ErrDuplicateConstraintID):
		code = ErrCodeDuplicateID
	case errors.Is(err, solver.ErrEntityNotFound):
		code = ErrCodeEntityNotFound
	case errors.Is(err, solver.ErrCapacityExceeded):
		code = ErrCodeCapacityExceeded
	case errors.Is(err, solver.ErrInvalidDistance), errors.Is(err, solver.ErrInvalidValue):
		code = ErrCodeInvalidInput
	case errors.Is(err, solver.ErrDanglingReference):
		code = ErrCodeDanglingReference
	case errors.Is(err, context.DeadlineExceeded):
		code = ErrCodeTimeout
	}
	return Wrap(code, err, "solver")
}

// RateLimitedError provides additional information for rate-limited responses.
type RateLimitedError struct {
	RetryAfter int // Seconds to wait before retrying
	Message    string
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: retry after %d seconds", e.RetryAfter)
	}
	return "rate limited"
}

// Code returns the error code for this error type.
func (e *RateLimitedError) Code() Code {
	return ErrCodeRateLimited
}
