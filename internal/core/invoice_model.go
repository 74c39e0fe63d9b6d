package core

import (
	"time"

	"einvoicing/internal/money"
)

// LineInput is one requested invoice line before calculation.
type LineInput struct {
	ProductReference   string           `json:"product_reference"`
	Quantity           money.Quantity   `json:"quantity"`
	UnitPrice          money.Money      `json:"unit_price"`
	DiscountPercentage money.Percentage `json:"discount_percentage"`
}

// LineResult is the computed, immutable outcome of one line.
// LineTotal == Subtotal - DiscountAmount + Σ TaxAmounts.
type LineResult struct {
	Subtotal       money.Money                  `json:"subtotal"`
	DiscountAmount money.Money                  `json:"discount_amount"`
	TaxableBase    money.Money                  `json:"taxable_base"`
	TaxAmounts     map[TaxType]money.Money      `json:"tax_amounts"`
	TaxRates       map[TaxType]money.Percentage `json:"tax_rates"`
	LineTotal      money.Money                  `json:"line_total"`
}

// TotalTaxes sums the line's tax amounts in reporting order.
func (r LineResult) TotalTaxes() money.Money {
	total := money.Zero
	for _, t := range TaxTypes {
		if amt, ok := r.TaxAmounts[t]; ok {
			total = total.Add(amt)
		}
	}
	return total
}

// InvoiceLine is a persisted line: the request, the product snapshot and the result.
type InvoiceLine struct {
	LineNumber         int              `json:"line_number"`
	ProductReference   string           `json:"product_reference"`
	ProductCode        string           `json:"product_code"`
	ProductName        string           `json:"product_name"`
	Quantity           money.Quantity   `json:"quantity"`
	UnitPrice          money.Money      `json:"unit_price"`
	DiscountPercentage money.Percentage `json:"discount_percentage"`
	TaxRules           []TaxRule        `json:"tax_rules"`
	Result             LineResult       `json:"result"`
}

// RateBreakdown is the part of a tax summary computed at one specific rate.
type RateBreakdown struct {
	Rate        money.Percentage `json:"rate"`
	TaxableBase money.Money      `json:"taxable_base"`
	TaxAmount   money.Money      `json:"tax_amount"`
}

// TaxSummary aggregates one tax type across all lines of an invoice.
type TaxSummary struct {
	Type        TaxType          `json:"type"`
	RateUsed    money.Percentage `json:"rate_used"`
	TaxableBase money.Money      `json:"taxable_base"`
	TaxAmount   money.Money      `json:"tax_amount"`
	Breakdown   []RateBreakdown  `json:"breakdown"`
}

// Totals is the header-level result of aggregation.
type Totals struct {
	Subtotal       money.Money  `json:"subtotal"`
	TotalDiscounts money.Money  `json:"total_discounts"`
	TaxSummaries   []TaxSummary `json:"tax_summaries"`
	TotalTaxes     money.Money  `json:"total_taxes"`
	GrandTotal     money.Money  `json:"grand_total"`
}

// Invoice is the invoice header with its lines and tax summaries.
// Status progresses through the state machine:
//
//	DRAFT → ISSUED → ACCEPTED | REJECTED
//	DRAFT | ISSUED | ACCEPTED | REJECTED → VOID
type Invoice struct {
	ID                int           `json:"id"`
	CompanyID         int           `json:"company_id"`
	ClientReference   string        `json:"client_reference"`
	Prefix            string        `json:"prefix"`
	SequenceNumber    int64         `json:"sequence_number"`
	DisplayNumber     string        `json:"display_number"`
	EmissionDate      time.Time     `json:"emission_date"`
	DueDate           *time.Time    `json:"due_date,omitempty"`
	Notes             string        `json:"notes"`
	Observations      string        `json:"observations"`
	Lines             []InvoiceLine `json:"lines"`
	TaxSummaries      []TaxSummary  `json:"tax_summaries"`
	Subtotal          money.Money   `json:"subtotal"`
	TotalDiscounts    money.Money   `json:"total_discounts"`
	TotalTaxes        money.Money   `json:"total_taxes"`
	GrandTotal        money.Money   `json:"grand_total"`
	State             InvoiceState  `json:"state"`
	ExternalReference *string       `json:"external_reference,omitempty"`
	Active            bool          `json:"active"`
	VoidReason        string        `json:"void_reason,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
	IssuedAt          *time.Time    `json:"issued_at,omitempty"`
	ResolvedAt        *time.Time    `json:"resolved_at,omitempty"`
	VoidedAt          *time.Time    `json:"voided_at,omitempty"`
}

// TaxTotal returns the summed amount of one tax type, zero if absent.
func (inv *Invoice) TaxTotal(t TaxType) money.Money {
	for _, s := range inv.TaxSummaries {
		if s.Type == t {
			return s.TaxAmount
		}
	}
	return money.Zero
}

// LineResults returns the computed results of every line, in line order.
func (inv *Invoice) LineResults() []LineResult {
	out := make([]LineResult, len(inv.Lines))
	for i, l := range inv.Lines {
		out[i] = l.Result
	}
	return out
}

func (inv *Invoice) applyTotals(t Totals) {
	inv.Subtotal = t.Subtotal
	inv.TotalDiscounts = t.TotalDiscounts
	inv.TaxSummaries = t.TaxSummaries
	inv.TotalTaxes = t.TotalTaxes
	inv.GrandTotal = t.GrandTotal
}

// Clone returns a deep copy, so stores can hand out invoices without sharing slices.
func (inv *Invoice) Clone() *Invoice {
	if inv == nil {
		return nil
	}
	c := *inv
	c.Lines = make([]InvoiceLine, len(inv.Lines))
	for i, l := range inv.Lines {
		l.TaxRules = append([]TaxRule(nil), l.TaxRules...)
		l.Result.TaxAmounts = copyMap(l.Result.TaxAmounts)
		l.Result.TaxRates = copyMap(l.Result.TaxRates)
		c.Lines[i] = l
	}
	c.TaxSummaries = make([]TaxSummary, len(inv.TaxSummaries))
	for i, s := range inv.TaxSummaries {
		s.Breakdown = append([]RateBreakdown(nil), s.Breakdown...)
		c.TaxSummaries[i] = s
	}
	c.DueDate = copyPtr(inv.DueDate)
	c.ExternalReference = copyPtr(inv.ExternalReference)
	c.IssuedAt = copyPtr(inv.IssuedAt)
	c.ResolvedAt = copyPtr(inv.ResolvedAt)
	c.VoidedAt = copyPtr(inv.VoidedAt)
	return &c
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// CreateInvoiceInput is the engine-level request to create a DRAFT invoice.
type CreateInvoiceInput struct {
	CompanyID       int
	ClientReference string
	EmissionDate    time.Time // zero means "today"
	DueDate         *time.Time
	Notes           string
	Observations    string
	Lines           []LineInput
}

// AnnotationUpdate carries non-structural edits. Nil fields are left unchanged.
// Notes and Observations may change in any state except VOID; ClientReference
// and DueDate only while DRAFT.
type AnnotationUpdate struct {
	Notes           *string
	Observations    *string
	ClientReference *string
	DueDate         *time.Time
}

// TransitionOptions carries optional data for a lifecycle transition.
type TransitionOptions struct {
	Reason string // recorded on VOID
}

// ListFilter narrows ListInvoices. Voided invoices are excluded unless IncludeVoided is set.
type ListFilter struct {
	State         *InvoiceState
	IncludeVoided bool
	Limit         int
	Offset        int
}
