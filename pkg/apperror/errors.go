// Package apperror provides a structured way to handle application errors
// with specific codes, severity levels, and additional details.
package apperror

import (
	"errors"
	"fmt"
)

// Code represents a specific application error code. The vocabulary is
// closed: every kind the control plane can surface is listed below.
type Code string

const (
	// CodeValidation marks a rejected or malformed optimization request.
	CodeValidation Code = "validation"

	// Per-delivery placement failures (§4.5); these are partial — the
	// delivery lands in the unserviceable list rather than failing the
	// whole request.
	CodeNoFeasibleVehicle  Code = "no_feasible_vehicle"
	CodeCapacityExceeded   Code = "capacity_exceeded"
	CodeTimeWindowConflict Code = "time_window_conflict"
	CodeRestrictedZone     Code = "restricted_zone"

	// CodeOptimizationFailed marks an unrecovered failure inside a
	// coordinator phase.
	CodeOptimizationFailed Code = "optimization_failed"

	// CodeTimeout marks a coordinator call that exceeded its deadline.
	CodeTimeout Code = "timeout"

	// CodeBreakerOpen marks a call short-circuited by an open breaker.
	CodeBreakerOpen Code = "breaker_open"

	// CodeInternal is the fallback for errors that carry no more
	// specific code.
	CodeInternal Code = "internal"

	// CodeNotFound marks a lookup against a registry (job, breaker,
	// store record) that found nothing.
	CodeNotFound Code = "not_found"
)

// Severity indicates the criticality level of an error.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Error is the structured error type surfaced by the core. It carries a
// closed Code, a human-readable Message, the offending Field (if any),
// arbitrary structured Details, an optional wrapped Cause, and a Severity.
type Error struct {
	Code     Code
	Message  string
	Field    string
	Details  map[string]any
	Cause    error
	Severity Severity
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new application error with SeverityError.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Details: make(map[string]any), Severity: SeverityError}
}

// NewWithField creates a new application error naming the offending field.
func NewWithField(code Code, message, field string) *Error {
	return &Error{Code: code, Message: message, Field: field, Details: make(map[string]any), Severity: SeverityError}
}

// NewWarning creates a new application error with SeverityWarning.
func NewWarning(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Details: make(map[string]any), Severity: SeverityWarning}
}

// NewCritical creates a new application error with SeverityCritical.
func NewCritical(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Details: make(map[string]any), Severity: SeverityCritical}
}

// Wrap wraps an existing error with a code and message, default severity.
func Wrap(cause error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Cause: cause, Details: make(map[string]any), Severity: SeverityError}
}

func (e *Error) WithDetails(key string, value any) *Error {
	e.Details[key] = value
	return e
}

func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

func (e *Error) WithSeverity(s Severity) *Error {
	e.Severity = s
	return e
}

// Is reports whether err is an *Error carrying the given code.
func Is(err error, code Code) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetCode extracts the Code from err, defaulting to CodeInternal.
func GetCode(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// IsWarning reports whether err is an *Error with SeverityWarning.
func IsWarning(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Severity == SeverityWarning
	}
	return false
}

// IsCritical reports whether err is an *Error with SeverityCritical.
func IsCritical(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Severity == SeverityCritical
	}
	return false
}

// Predefined sentinel errors for common conditions.
var (
	ErrTimeout     = New(CodeTimeout, "operation timed out")
	ErrBreakerOpen = New(CodeBreakerOpen, "circuit breaker is open")
	ErrNotFound    = New(CodeNotFound, "resource not found")
)

// ValidationErrors aggregates the errors and warnings collected while
// validating a single request (§4.1).
type ValidationErrors struct {
	Errors   []*Error
	Warnings []*Error
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{Errors: make([]*Error, 0), Warnings: make([]*Error, 0)}
}

func (v *ValidationErrors) Add(err *Error) {
	if err.Severity == SeverityWarning {
		v.Warnings = append(v.Warnings, err)
	} else {
		v.Errors = append(v.Errors, err)
	}
}

func (v *ValidationErrors) AddError(code Code, message string) {
	v.Errors = append(v.Errors, New(code, message))
}

func (v *ValidationErrors) AddErrorWithField(code Code, message, field string) {
	v.Errors = append(v.Errors, NewWithField(code, message, field))
}

func (v *ValidationErrors) AddWarning(code Code, message string) {
	v.Warnings = append(v.Warnings, NewWarning(code, message))
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationErrors) HasWarnings() bool {
	return len(v.Warnings) > 0
}

func (v *ValidationErrors) IsValid() bool {
	return !v.HasErrors()
}

func (v *ValidationErrors) Merge(other *ValidationErrors) {
	if other == nil {
		return
	}
	v.Errors = append(v.Errors, other.Errors...)
	v.Warnings = append(v.Warnings, other.Warnings...)
}

// Unwrap exposes the collected errors (not the warnings) to errors.Is and
// errors.As, so Is and GetCode report the code of the first error.
func (v *ValidationErrors) Unwrap() []error {
	errs := make([]error, len(v.Errors))
	for i, e := range v.Errors {
		errs[i] = e
	}
	return errs
}

func (v *ValidationErrors) ErrorMessages() []string {
	messages := make([]string, len(v.Errors))
	for i, err := range v.Errors {
		messages[i] = err.Error()
	}
	return messages
}

// Error implements the error interface so a *ValidationErrors can itself be
// returned from a function signature expecting `error`.
func (v *ValidationErrors) Error() string {
	if !v.HasErrors() {
		return ""
	}
	msg := v.Errors[0].Error()
	if len(v.Errors) > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, len(v.Errors)-1)
	}
	return msg
}
