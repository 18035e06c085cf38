// Package shared contains common domain types, errors, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
	"strings"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound = errors.New("entity not found")
	ErrConflict = errors.New("conflict")

	// ErrAlreadyExists is a conflict on a uniqueness rule.
	ErrAlreadyExists = fmt.Errorf("entity already exists: %w", ErrConflict)

	// ErrSettled is a conflict on a financial row that has already been paid.
	ErrSettled = fmt.Errorf("record already settled: %w", ErrConflict)

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")

	// Infrastructure errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrLocked             = errors.New("resource locked")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "evaluation", "attendance", "tuition"
	Op      string // Operation that failed, e.g., "Create", "Update"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Validation errors with offending inputs
// ═══════════════════════════════════════════════════════════════════════════

// Problem describes a single rejected input.
type Problem struct {
	Field  string
	Value  string
	Reason string
}

// ValidationError carries every offending input of a rejected request,
// so callers can report all of them at once.
type ValidationError struct {
	Op       string
	Problems []Problem
}

// NewValidationError creates a validation error for op.
func NewValidationError(op string, problems ...Problem) *ValidationError {
	return &ValidationError{Op: op, Problems: problems}
}

// Add appends a problem.
func (e *ValidationError) Add(field, value, reason string) {
	e.Problems = append(e.Problems, Problem{Field: field, Value: value, Reason: reason})
}

// HasProblems reports whether anything was rejected.
func (e *ValidationError) HasProblems() bool {
	return e != nil && len(e.Problems) > 0
}

// Offending returns the rejected values in the order they were reported.
func (e *ValidationError) Offending() []string {
	out := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		out = append(out, p.Value)
	}
	return out
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		switch {
		case p.Value != "":
			parts = append(parts, fmt.Sprintf("%s=%s: %s", p.Field, p.Value, p.Reason))
		default:
			parts = append(parts, fmt.Sprintf("%s: %s", p.Field, p.Reason))
		}
	}
	return fmt.Sprintf("%s: validation failed: %s", e.Op, strings.Join(parts, "; "))
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// OrNil returns nil when nothing was rejected, so it can be returned directly.
func (e *ValidationError) OrNil() error {
	if !e.HasProblems() {
		return nil
	}
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Domain-specific errors
// ═══════════════════════════════════════════════════════════════════════════

// Evaluation domain errors
var (
	ErrEvaluationNotFound = NewDomainError("evaluation", "Find", ErrNotFound, "evaluation not found")
	ErrInvalidEvalType    = NewDomainError("evaluation", "Validate", ErrInvalidInput, "invalid evaluation type")
)

// Attendance domain errors
var (
	ErrAttendanceNotFound  = NewDomainError("attendance", "Find", ErrNotFound, "attendance record not found")
	ErrAttendanceDuplicate = NewDomainError("attendance", "Create", ErrAlreadyExists, "attendance already recorded for this student, schedule and date")
	ErrNotAbsent           = NewDomainError("attendance", "MarkLate", ErrStateTransition, "only absent records can be corrected to late")
	ErrScheduleNotFound    = NewDomainError("schedule", "Find", ErrNotFound, "schedule not found")
)

// Directory errors
var (
	ErrStudentNotFound = NewDomainError("student", "Find", ErrNotFound, "student not found")
	ErrTeacherNotFound = NewDomainError("teacher", "Find", ErrNotFound, "teacher not found")
	ErrClassNotFound   = NewDomainError("class", "Find", ErrNotFound, "class not found")
)

// Finance domain errors
var (
	ErrTuitionNotFound = NewDomainError("tuition", "Find", ErrNotFound, "tuition not found")
	ErrTuitionSettled  = NewDomainError("tuition", "Update", ErrSettled, "tuition has already been paid")
	ErrPayrollNotFound = NewDomainError("payroll", "Find", ErrNotFound, "payroll not found")
	ErrPayrollSettled  = NewDomainError("payroll", "Update", ErrSettled, "payroll has already been paid")
	ErrInvalidStatus   = NewDomainError("finance", "Validate", ErrInvalidInput, "invalid payment status")
	ErrInvalidAmount   = NewDomainError("finance", "Validate", ErrNegativeValue, "amount must be positive")
)

// Notification domain errors
var (
	ErrNotificationNotFound = NewDomainError("notification", "Find", ErrNotFound, "notification not found")
	ErrInvalidNotifType     = NewDomainError("notification", "Validate", ErrInvalidInput, "invalid notification type")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsConflict checks if the error is any kind of conflict, settlement included.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsSettled checks if the error rejects a change to a paid record.
func IsSettled(err error) bool {
	return errors.Is(err, ErrSettled)
}

// IsUnauthorized checks if the error is an authorization failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// Unauthorized builds an authorization error for a domain operation.
func Unauthorized(domain, op, message string) error {
	return NewDomainError(domain, op, ErrUnauthorized, message)
}
