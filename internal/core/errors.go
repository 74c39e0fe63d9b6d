package core

import (
	"errors"
	"fmt"
)

// Engine error kinds. Callers match with errors.Is; the typed errors below
// carry the diagnostic detail and unwrap to one of these.
var (
	// ErrInvalidInput is returned for malformed quantities, prices, percentages or tax rules.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyInvoice is returned when an invoice would end up with no lines.
	ErrEmptyInvoice = errors.New("invoice must have at least one line")

	// ErrImmutableInvoice is returned for structural edits outside DRAFT.
	ErrImmutableInvoice = errors.New("invoice is immutable")

	// ErrInvalidTransition is returned for lifecycle moves the state machine does not allow.
	ErrInvalidTransition = errors.New("invalid invoice state transition")

	// ErrAllocationConflict means the sequence counter could not be advanced atomically.
	// No number was consumed, so the whole create call is safe to retry.
	ErrAllocationConflict = errors.New("invoice number allocation conflict")

	// ErrNumberingRangeExhausted means the company's authorised numbering range is used up.
	ErrNumberingRangeExhausted = errors.New("authorised numbering range exhausted")

	// ErrInvoiceNotFound is returned when an invoice id does not exist.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrProductNotFound is returned by tax-rule lookups for unknown product references.
	ErrProductNotFound = errors.New("product not found")

	// ErrCompanyNotFound is returned when a company has no numbering configuration.
	ErrCompanyNotFound = errors.New("company not found")

	// ErrCompanyExists is returned when a company with the same tax id is already registered.
	ErrCompanyExists = errors.New("company already exists")

	// ErrReferenceGeneration wraps failures of the external reference generator.
	ErrReferenceGeneration = errors.New("external reference generation failed")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s (value: %v)", e.Field, e.Message, e.Value)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func newValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// ImmutableInvoiceError names the invoice, its state and the rejected operation.
type ImmutableInvoiceError struct {
	InvoiceID int
	State     InvoiceState
	Op        string
}

func (e *ImmutableInvoiceError) Error() string {
	return fmt.Sprintf("invoice %d cannot %s: status is %s", e.InvoiceID, e.Op, e.State)
}

func (e *ImmutableInvoiceError) Unwrap() error { return ErrImmutableInvoice }

// InvalidTransitionError names the current and requested state.
type InvalidTransitionError struct {
	From InvoiceState
	To   InvoiceState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition invoice from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// lineError prefixes err with the 1-based line number while keeping it matchable.
func lineError(i int, err error) error {
	return fmt.Errorf("line %d: %w", i+1, err)
}
