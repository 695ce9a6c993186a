package workflow

import "fmt"

// ── Error taxonomy ─────────────────────────────────────────
// Row-scoped errors (ConversionError, MissingFieldError,
// DivisionByZeroError) fail a single record and let the run continue.
// Structural errors (ValidationError, UnsupportedOperationError)
// abort the run before or during setup.
//
// Message formats are part of the contract — run logs and callers
// match on them literally.

// ConversionError is a type coercion failure for a single field.
type ConversionError struct {
	Field  string
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("Field '%s'%s", e.Field, e.Reason)
}

func convertStringErr(field, s string) *ConversionError {
	return &ConversionError{Field: field, Reason: fmt.Sprintf(": cannot convert string '%s' to number", s)}
}

func nullNumberErr(field string) *ConversionError {
	return &ConversionError{Field: field, Reason: " is null, expected a number"}
}

func boolNumberErr(field string) *ConversionError {
	return &ConversionError{Field: field, Reason: ": cannot convert bool to number"}
}

func nullStringErr(field string) *ConversionError {
	return &ConversionError{Field: field, Reason: " is null, cannot convert to string"}
}

// MissingFieldError reports a mapping or operand referencing a field
// absent from the record scope.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("Field '%s' not found", e.Field)
}

// DivisionByZeroError reports a divide whose right operand resolved to zero.
type DivisionByZeroError struct {
	StepIndex int
	Target    string
}

func (e *DivisionByZeroError) Error() string {
	return fmt.Sprintf("Step %d: Division by zero in target field '%s'", e.StepIndex, e.Target)
}

// ValidationError is a structural defect in a workflow's step list.
// It aborts the run before any record is processed.
type ValidationError struct {
	StepIndex int
	Message   string
}

func (e *ValidationError) Error() string { return e.Message }

// UnsupportedOperationError reports an unrecognized source, transform,
// or operator variant. Structural: the definition itself is broken.
type UnsupportedOperationError struct {
	What string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported operation: %s", e.What)
}
