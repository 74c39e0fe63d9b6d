package core

import (
	"context"
	"time"
)

// TaxRuleLookup resolves a product reference to its current tax configuration.
type TaxRuleLookup interface {
	LookupProduct(ctx context.Context, companyID int, productReference string) (ProductSnapshot, error)
}

// NumberingConfig is a company's invoice numbering setup as seen at allocation time.
// RangeFrom/RangeTo model an authorised numbering resolution; nil means unbounded.
type NumberingConfig struct {
	Prefix    string
	RangeFrom *int64
	RangeTo   *int64
}

// CounterStore advances a company's invoice counter. Increment must be a single
// atomic read-modify-write against durable storage, executed inside the
// surrounding StoreTx so that a rollback un-consumes the number.
type CounterStore interface {
	Increment(ctx context.Context, companyID int) (int64, NumberingConfig, error)
}

// StoreTx is the set of operations available inside one store transaction.
type StoreTx interface {
	CounterStore

	// InsertInvoice persists a new invoice and assigns inv.ID.
	InsertInvoice(ctx context.Context, inv *Invoice) error

	// LockInvoice loads an invoice and holds it exclusively until the transaction ends.
	LockInvoice(ctx context.Context, invoiceID int) (*Invoice, error)

	// UpdateInvoice replaces the stored header, lines and tax summaries.
	UpdateInvoice(ctx context.Context, inv *Invoice) error
}

// InvoiceReader serves queries outside transactions.
type InvoiceReader interface {
	GetInvoice(ctx context.Context, invoiceID int) (*Invoice, error)
	ListInvoices(ctx context.Context, companyID int, filter ListFilter) ([]Invoice, error)
}

// Store is a transactional invoice store. InTx commits when fn returns nil and
// rolls back otherwise; nothing fn wrote is visible after a rollback.
type Store interface {
	InvoiceReader
	InTx(ctx context.Context, fn func(ctx context.Context, tx StoreTx) error) error
}

// ReferenceGenerator produces the external compliance reference (CUFE) for an
// invoice leaving DRAFT. It is called exactly once per ISSUED transition.
type ReferenceGenerator interface {
	Generate(ctx context.Context, inv *Invoice) (string, error)
}

// Recorder receives engine events for metrics.
type Recorder interface {
	InvoiceCreated(companyID int, elapsed time.Duration)
	InvoiceTransitioned(from, to InvoiceState)
	AllocationFailed(reason string)
}

type noopRecorder struct{}

func (noopRecorder) InvoiceCreated(int, time.Duration)              {}
func (noopRecorder) InvoiceTransitioned(InvoiceState, InvoiceState) {}
func (noopRecorder) AllocationFailed(string)                        {}

// Clock returns the current time; tests substitute a fixed one.
type Clock func() time.Time
