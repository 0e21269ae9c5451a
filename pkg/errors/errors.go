// Package errors provides structured error handling for stratum kernels.
//
// Every failure a kernel can report falls in one of three groups:
//   - precondition violations (unsupported type/operator, size mismatch, bad
//     arguments) detected before any parallel work is launched
//   - post-condition violations, reported as ErrorTypeInternal
//   - resource failures (allocation limit, worker error) that abort the invocation
//
// Callers branch on the category with IsType.
package errors

import (
	"errors"
	"runtime"

	stringpool "github.com/ajitpratap0/stratum/pkg/strings"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents broken engine invariants
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents invalid arguments
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeUnsupported represents an unsupported type/operator combination
	ErrorTypeUnsupported ErrorType = "unsupported"
	// ErrorTypeSizeMismatch represents inconsistent row counts or sizes
	ErrorTypeSizeMismatch ErrorType = "size_mismatch"
	// ErrorTypeAllocation represents allocation failures
	ErrorTypeAllocation ErrorType = "allocation"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeFile represents file operation errors
	ErrorTypeFile ErrorType = "file"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return stringpool.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return stringpool.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: stringpool.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// Keep the stack of the innermost structured error
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// As returns the first structured error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// TypeOf returns the category of err, or the empty string when err is not
// a structured error.
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Type
}

// Unsupported reports that op cannot run on the given element type.
func Unsupported(op, dtype string) *Error {
	e := &Error{
		Type:    ErrorTypeUnsupported,
		Message: stringpool.Sprintf("%s is not supported for type %s", op, dtype),
		Stack:   captureStack(2),
	}
	return e.WithDetail("operation", op).WithDetail("type", dtype)
}

// SizeMismatch reports inconsistent sizes between two inputs.
func SizeMismatch(what string, expected, actual int) *Error {
	e := &Error{
		Type:    ErrorTypeSizeMismatch,
		Message: stringpool.Sprintf("%s: expected at most %d, got %d", what, expected, actual),
		Stack:   captureStack(2),
	}
	return e.WithDetail("expected", expected).WithDetail("actual", actual)
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
