package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"einvoicing/internal/money"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// InvoiceService is the invoice computation and lifecycle engine.
type InvoiceService interface {
	// CreateInvoice computes the lines, allocates the next company number and
	// persists a DRAFT invoice in one transaction.
	CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*Invoice, error)
	// ReplaceLines swaps every line of a DRAFT invoice and recomputes its totals.
	ReplaceLines(ctx context.Context, invoiceID int, lines []LineInput) (*Invoice, error)
	// Transition moves an invoice along the lifecycle.
	Transition(ctx context.Context, invoiceID int, target InvoiceState, opts TransitionOptions) (*Invoice, error)
	// UpdateAnnotations edits non-structural fields; totals are never recomputed.
	UpdateAnnotations(ctx context.Context, invoiceID int, upd AnnotationUpdate) (*Invoice, error)

	GetInvoice(ctx context.Context, invoiceID int) (*Invoice, error)
	ListInvoices(ctx context.Context, companyID int, filter ListFilter) ([]Invoice, error)
}

// Option configures an InvoiceService.
type Option func(*invoiceService)

// WithRounding sets the rounding mode for line calculation. Default is half-up.
func WithRounding(mode money.RoundingMode) Option {
	return func(s *invoiceService) {
		s.calc = NewLineCalculator(mode)
		s.agg = NewAggregator(mode)
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *invoiceService) { s.log = l }
}

func WithRecorder(r Recorder) Option {
	return func(s *invoiceService) {
		if r != nil {
			s.rec = r
		}
	}
}

func WithClock(c Clock) Option {
	return func(s *invoiceService) {
		if c != nil {
			s.now = c
		}
	}
}

type invoiceService struct {
	store    Store
	products TaxRuleLookup
	refs     ReferenceGenerator

	calc  LineCalculator
	agg   Aggregator
	alloc SequenceAllocator

	log zerolog.Logger
	rec Recorder
	now Clock
}

func NewInvoiceService(store Store, products TaxRuleLookup, refs ReferenceGenerator, opts ...Option) InvoiceService {
	s := &invoiceService{
		store:    store,
		products: products,
		refs:     refs,
		calc:     NewLineCalculator(money.RoundHalfUp),
		agg:      NewAggregator(money.RoundHalfUp),
		log:      zerolog.Nop(),
		rec:      noopRecorder{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ── Creation ─────────────────────────────────────────────────────────────────

func (s *invoiceService) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*Invoice, error) {
	start := time.Now()

	if in.CompanyID <= 0 {
		return nil, newValidationError("company_id", in.CompanyID, "must be positive")
	}
	// Checked before anything else so an empty request never reaches the counter.
	if len(in.Lines) == 0 {
		return nil, ErrEmptyInvoice
	}
	emission := in.EmissionDate
	if emission.IsZero() {
		emission = truncateToDay(s.now())
	}
	if in.DueDate != nil && in.DueDate.Before(emission) {
		return nil, newValidationError("due_date", in.DueDate.Format(time.DateOnly), "must not be before the emission date")
	}

	lines, totals, err := s.computeLines(ctx, in.CompanyID, in.Lines)
	if err != nil {
		return nil, err
	}

	now := s.now()
	inv := &Invoice{
		CompanyID:       in.CompanyID,
		ClientReference: in.ClientReference,
		EmissionDate:    emission,
		DueDate:         copyPtr(in.DueDate),
		Notes:           in.Notes,
		Observations:    in.Observations,
		Lines:           lines,
		State:           StateDraft,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	inv.applyTotals(totals)

	err = s.store.InTx(ctx, func(ctx context.Context, tx StoreTx) error {
		a, err := s.alloc.Next(ctx, tx, in.CompanyID)
		if err != nil {
			s.allocationFailed(in.CompanyID, err)
			return err
		}
		inv.Prefix = a.Prefix
		inv.SequenceNumber = a.SequenceNumber
		inv.DisplayNumber = a.DisplayNumber

		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return fmt.Errorf("failed to insert invoice %s: %w", a.DisplayNumber, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.rec.InvoiceCreated(inv.CompanyID, time.Since(start))
	s.log.Info().
		Int("company_id", inv.CompanyID).
		Int("invoice_id", inv.ID).
		Str("display_number", inv.DisplayNumber).
		Str("grand_total", inv.GrandTotal.String()).
		Int("lines", len(inv.Lines)).
		Msg("invoice created")
	return inv, nil
}

func (s *invoiceService) allocationFailed(companyID int, err error) {
	reason := "error"
	switch {
	case errors.Is(err, ErrAllocationConflict):
		reason = "conflict"
	case errors.Is(err, ErrNumberingRangeExhausted):
		reason = "range_exhausted"
	case errors.Is(err, ErrCompanyNotFound):
		reason = "company_not_found"
	}
	s.rec.AllocationFailed(reason)
	s.log.Warn().Err(err).Int("company_id", companyID).Str("reason", reason).Msg("invoice number allocation failed")
}

// computeLines resolves each product's tax rules, computes every line and
// aggregates the result. It touches no storage besides the product lookup.
func (s *invoiceService) computeLines(ctx context.Context, companyID int, inputs []LineInput) ([]InvoiceLine, Totals, error) {
	lines := make([]InvoiceLine, 0, len(inputs))
	results := make([]LineResult, 0, len(inputs))

	for i, in := range inputs {
		if in.ProductReference == "" {
			return nil, Totals{}, lineError(i, newValidationError("product_reference", "", "is required"))
		}
		p, err := s.products.LookupProduct(ctx, companyID, in.ProductReference)
		if err != nil {
			return nil, Totals{}, lineError(i, err)
		}
		res, err := s.calc.Compute(in, p.TaxRules)
		if err != nil {
			return nil, Totals{}, lineError(i, err)
		}
		lines = append(lines, InvoiceLine{
			LineNumber:         i + 1,
			ProductReference:   in.ProductReference,
			ProductCode:        p.Code,
			ProductName:        p.Name,
			Quantity:           in.Quantity,
			UnitPrice:          in.UnitPrice,
			DiscountPercentage: in.DiscountPercentage,
			TaxRules:           append([]TaxRule(nil), p.TaxRules...),
			Result:             res,
		})
		results = append(results, res)
	}

	totals, err := s.agg.Aggregate(results)
	if err != nil {
		return nil, Totals{}, err
	}
	return lines, totals, nil
}

// ── Draft edits ──────────────────────────────────────────────────────────────

// ReplaceLines computes the new lines before opening the transaction so product
// lookups never run while the invoice row is locked; the state is checked again
// under the lock.
func (s *invoiceService) ReplaceLines(ctx context.Context, invoiceID int, inputs []LineInput) (*Invoice, error) {
	current, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !current.State.IsMutable() {
		return nil, &ImmutableInvoiceError{InvoiceID: current.ID, State: current.State, Op: "replace lines"}
	}
	if len(inputs) == 0 {
		return nil, ErrEmptyInvoice
	}
	lines, totals, err := s.computeLines(ctx, current.CompanyID, inputs)
	if err != nil {
		return nil, err
	}

	var out *Invoice
	err = s.store.InTx(ctx, func(ctx context.Context, tx StoreTx) error {
		inv, err := tx.LockInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if !inv.State.IsMutable() {
			return &ImmutableInvoiceError{InvoiceID: inv.ID, State: inv.State, Op: "replace lines"}
		}
		inv.Lines = lines
		inv.applyTotals(totals)
		inv.UpdatedAt = s.now()

		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return fmt.Errorf("failed to update invoice %d: %w", invoiceID, err)
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int("invoice_id", out.ID).
		Str("display_number", out.DisplayNumber).
		Str("grand_total", out.GrandTotal.String()).
		Int("lines", len(out.Lines)).
		Msg("invoice lines replaced")
	return out, nil
}

func (s *invoiceService) UpdateAnnotations(ctx context.Context, invoiceID int, upd AnnotationUpdate) (*Invoice, error) {
	if upd.Notes == nil && upd.Observations == nil && upd.ClientReference == nil && upd.DueDate == nil {
		return nil, newValidationError("annotations", nil, "at least one field must be set")
	}

	var out *Invoice
	err := s.store.InTx(ctx, func(ctx context.Context, tx StoreTx) error {
		inv, err := tx.LockInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if !inv.State.AllowsAnnotations() {
			return &ImmutableInvoiceError{InvoiceID: inv.ID, State: inv.State, Op: "update annotations"}
		}
		if (upd.ClientReference != nil || upd.DueDate != nil) && !inv.State.IsMutable() {
			return &ImmutableInvoiceError{InvoiceID: inv.ID, State: inv.State, Op: "change client or due date"}
		}

		if upd.Notes != nil {
			inv.Notes = *upd.Notes
		}
		if upd.Observations != nil {
			inv.Observations = *upd.Observations
		}
		if upd.ClientReference != nil {
			inv.ClientReference = *upd.ClientReference
		}
		if upd.DueDate != nil {
			if upd.DueDate.Before(inv.EmissionDate) {
				return newValidationError("due_date", upd.DueDate.Format(time.DateOnly), "must not be before the emission date")
			}
			inv.DueDate = copyPtr(upd.DueDate)
		}
		inv.UpdatedAt = s.now()

		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return fmt.Errorf("failed to update invoice %d: %w", invoiceID, err)
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ── Lifecycle ────────────────────────────────────────────────────────────────

func (s *invoiceService) Transition(ctx context.Context, invoiceID int, target InvoiceState, opts TransitionOptions) (*Invoice, error) {
	if !target.Valid() {
		return nil, newValidationError("state", target, "unknown invoice state")
	}

	var (
		out  *Invoice
		from InvoiceState
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx StoreTx) error {
		inv, err := tx.LockInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		from = inv.State
		if err := ValidateTransition(from, target); err != nil {
			return err
		}

		now := s.now()
		switch target {
		case StateIssued:
			if len(inv.Lines) == 0 {
				return ErrEmptyInvoice
			}
			ref, err := s.refs.Generate(ctx, inv)
			if err != nil {
				if errors.Is(err, ErrReferenceGeneration) {
					return err
				}
				return fmt.Errorf("%w: %v", ErrReferenceGeneration, err)
			}
			inv.ExternalReference = &ref
			inv.IssuedAt = &now
		case StateAccepted, StateRejected:
			inv.ResolvedAt = &now
		case StateVoid:
			inv.Active = false
			inv.VoidedAt = &now
			inv.VoidReason = opts.Reason
		}
		inv.State = target
		inv.UpdatedAt = now

		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return fmt.Errorf("failed to update invoice %d: %w", invoiceID, err)
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.rec.InvoiceTransitioned(from, target)
	ev := s.log.Info().
		Int("invoice_id", out.ID).
		Str("display_number", out.DisplayNumber).
		Str("from", string(from)).
		Str("to", string(target))
	if out.ExternalReference != nil {
		ev = ev.Str("external_reference", *out.ExternalReference)
	}
	ev.Msg("invoice transitioned")
	return out, nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *invoiceService) GetInvoice(ctx context.Context, invoiceID int) (*Invoice, error) {
	if invoiceID <= 0 {
		return nil, newValidationError("invoice_id", invoiceID, "must be positive")
	}
	return s.store.GetInvoice(ctx, invoiceID)
}

func (s *invoiceService) ListInvoices(ctx context.Context, companyID int, filter ListFilter) ([]Invoice, error) {
	if companyID <= 0 {
		return nil, newValidationError("company_id", companyID, "must be positive")
	}
	if filter.State != nil && !filter.State.Valid() {
		return nil, newValidationError("state", *filter.State, "unknown invoice state")
	}
	if filter.Offset < 0 {
		return nil, newValidationError("offset", filter.Offset, "must not be negative")
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = DefaultListLimit
	case filter.Limit > MaxListLimit:
		filter.Limit = MaxListLimit
	}
	return s.store.ListInvoices(ctx, companyID, filter)
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
