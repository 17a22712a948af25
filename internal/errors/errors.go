// Package errors provides centralized error definitions and error handling
// utilities for the seda engine. It defines the sentinel errors the engine
// returns, semantic error types carrying context, and classification helpers.
//
// # Error Types
//
//   - ValidationError: a stage or configuration parameter is out of range
//   - ProcessError: a stage's Process callback returned an error or panicked
//   - NotFoundError: a named stage is not registered
//
// # Usage
//
//	err := errors.NewValidationError("max pool size below min pool size").
//	    WithField("maxPoolSize").WithValue(0)
//
//	if errors.Is(err, errors.ErrInvalidConfig) { ... }
//
//	var perr *errors.ProcessError
//	if errors.As(err, &perr) && perr.Panicked() { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityInfo is for errors that signal a normal lifecycle condition.
	SeverityInfo Severity = iota
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Engine sentinel errors
var (
	// ErrInvalidConfig indicates a stage, dispatcher or configuration
	// parameter failed validation.
	ErrInvalidConfig = New("invalid configuration")
	// ErrStageNotFound indicates no stage is registered under a name.
	ErrStageNotFound = New("stage not found")
	// ErrMessageType indicates a message cannot be accepted by a stage
	// because of its element type.
	ErrMessageType = New("message type not accepted by stage")
	// ErrProcessPanic indicates a Process callback panicked.
	ErrProcessPanic = New("process panicked")
	// ErrInterrupted indicates a blocking wait was interrupted.
	ErrInterrupted = New("interrupted")
	// ErrStageShutdown indicates a stage is no longer accepting input.
	ErrStageShutdown = New("stage is shut down")
)

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// ValidationError represents an invalid construction parameter.
//
// Example:
//
//	err := errors.NewValidationError("stage name cannot be empty").WithField("name")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:  message,
			severity: SeverityWarning,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is reports ErrInvalidConfig and any *ValidationError as matches.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return target == ErrInvalidConfig
}

// ProcessError records a failure of a stage's Process callback. Stack is set
// only when the failure was a recovered panic.
type ProcessError struct {
	baseError
	Stage string
	Stack []byte
}

// NewProcessError wraps err as a failure of the named stage.
func NewProcessError(stage string, err error) *ProcessError {
	return &ProcessError{
		baseError: baseError{
			message:  "process failed",
			cause:    err,
			severity: SeverityError,
		},
		Stage: stage,
	}
}

// NewPanicError builds a ProcessError from a recovered panic value.
func NewPanicError(stage string, value any, stack []byte) *ProcessError {
	var cause error
	if err, ok := value.(error); ok {
		cause = fmt.Errorf("%w: %w", ErrProcessPanic, err)
	} else {
		cause = fmt.Errorf("%w: %v", ErrProcessPanic, value)
	}
	pe := NewProcessError(stage, cause)
	pe.Stack = stack
	return pe
}

// Panicked reports whether the failure was a recovered panic.
func (e *ProcessError) Panicked() bool {
	return Is(e.cause, ErrProcessPanic)
}

// Error returns the formatted error message.
func (e *ProcessError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.message, e.cause)
	}
	return fmt.Sprintf("stage %s: %s", e.Stage, e.message)
}

// NotFoundError indicates that a named resource could not be found.
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:  fmt.Sprintf("%s not found: %s", resourceType, resourceID),
			severity: SeverityWarning,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// Is matches ErrStageNotFound for stage lookups.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return target == ErrStageNotFound && e.ResourceType == "stage"
}

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var r interface{ IsRetryable() bool }
	if As(err, &r) {
		return r.IsRetryable()
	}
	return Is(err, ErrInterrupted)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't carry one.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityInfo
	}
	var s interface{ Severity() Severity }
	if As(err, &s) {
		return s.Severity()
	}
	return SeverityError
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
