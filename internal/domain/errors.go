// Package domain defines core types, interfaces, and errors for the cube builder.
package domain

import (
	"fmt"
	"strings"
)

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., duplicate resource).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// TransientStorageError indicates a storage call timed out or failed in a
// way the caller may retry. Distinct from permanent validation failures.
type TransientStorageError struct {
	Message string
	Cause   error
}

func (e *TransientStorageError) Error() string { return e.Message }
func (e *TransientStorageError) Unwrap() error { return e.Cause }

// BindingFailedError wraps an unexpected engine or storage failure during a
// binding attempt. The core does not retry these; retry policy belongs to
// the caller.
type BindingFailedError struct {
	DatasetID   string
	DimensionID string
	Cause       error
}

func (e *BindingFailedError) Error() string {
	return fmt.Sprintf("binding failed for dimension %q of dataset %q: %v", e.DimensionID, e.DatasetID, e.Cause)
}

func (e *BindingFailedError) Unwrap() error { return e.Cause }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrTransientStorage wraps err as a retryable storage failure.
func ErrTransientStorage(cause error, format string, args ...interface{}) *TransientStorageError {
	return &TransientStorageError{Message: fmt.Sprintf(format, args...), Cause: cause}
}

// === Structural classification/binding errors ===
//
// Raised before any engine or storage work happens. They never partially
// mutate persisted state.

// DuplicateRoleError indicates more than one column was proposed for a role
// that admits at most one column (DataValues, Measure, NoteCodes).
type DuplicateRoleError struct {
	Role    ColumnRole
	Columns []string
}

func (e *DuplicateRoleError) Error() string {
	return fmt.Sprintf("role %s assigned to multiple columns: %s", e.Role, strings.Join(e.Columns, ", "))
}

// UnknownColumnError indicates a proposed column name is absent from the
// fact table's detected column descriptions.
type UnknownColumnError struct {
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("column %q does not exist in the fact table", e.Column)
}

// MissingParameterError indicates a required binder parameter is absent.
type MissingParameterError struct {
	Parameter string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("required parameter %q is missing", e.Parameter)
}

// IncompleteClassificationError indicates columns were left without a
// resolved role after a classification pass. Fatal: triggers full rollback.
type IncompleteClassificationError struct {
	Unresolved []string
}

func (e *IncompleteClassificationError) Error() string {
	return fmt.Sprintf("classification left %d column(s) unresolved: %s",
		len(e.Unresolved), strings.Join(e.Unresolved, ", "))
}
