package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"einvoicing/internal/core"
	"einvoicing/internal/money"
)

const dateLayout = "2006-01-02"

type appService struct {
	invoices core.InvoiceService
	catalog  Catalog
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(invoices core.InvoiceService, catalog Catalog) ApplicationService {
	return &appService{invoices: invoices, catalog: catalog}
}

// ── Master data ──────────────────────────────────────────────────────────────

func (s *appService) CreateCompany(ctx context.Context, req CreateCompanyRequest) (*CompanyResult, error) {
	c := core.Company{
		TaxID:     strings.TrimSpace(req.TaxID),
		Name:      strings.TrimSpace(req.Name),
		Prefix:    strings.TrimSpace(req.Prefix),
		RangeFrom: req.RangeFrom,
		RangeTo:   req.RangeTo,
	}
	id, err := s.catalog.CreateCompany(ctx, c)
	if err != nil {
		return nil, err
	}
	c.ID = id
	return &CompanyResult{Company: c}, nil
}

func (s *appService) GetCompany(ctx context.Context, companyID int) (*CompanyResult, error) {
	c, err := s.catalog.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return &CompanyResult{Company: c}, nil
}

func (s *appService) UpsertProduct(ctx context.Context, req UpsertProductRequest) (*ProductResult, error) {
	p := core.ProductSnapshot{
		Reference: strings.TrimSpace(req.Reference),
		Code:      strings.TrimSpace(req.Code),
		Name:      strings.TrimSpace(req.Name),
	}
	for i, t := range req.Taxes {
		rule, err := parseTaxRule(t)
		if err != nil {
			return nil, fmt.Errorf("tax %d: %w", i+1, err)
		}
		p.TaxRules = append(p.TaxRules, rule)
	}
	if err := s.catalog.UpsertProduct(ctx, req.CompanyID, p); err != nil {
		return nil, err
	}
	return &ProductResult{CompanyID: req.CompanyID, Product: p}, nil
}

// ── Invoices ─────────────────────────────────────────────────────────────────

func (s *appService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*InvoiceResult, error) {
	lines, err := parseLines(req.Lines)
	if err != nil {
		return nil, err
	}
	in := core.CreateInvoiceInput{
		CompanyID:       req.CompanyID,
		ClientReference: strings.TrimSpace(req.ClientReference),
		Notes:           req.Notes,
		Observations:    req.Observations,
		Lines:           lines,
	}
	if req.EmissionDate != "" {
		d, err := parseDate("emission_date", req.EmissionDate)
		if err != nil {
			return nil, err
		}
		in.EmissionDate = d
	}
	if req.DueDate != "" {
		d, err := parseDate("due_date", req.DueDate)
		if err != nil {
			return nil, err
		}
		in.DueDate = &d
	}

	inv, err := s.invoices.CreateInvoice(ctx, in)
	if err != nil {
		return nil, err
	}
	return &InvoiceResult{Invoice: inv}, nil
}

func (s *appService) GetInvoice(ctx context.Context, companyID, invoiceID int) (*InvoiceResult, error) {
	inv, err := s.ownedInvoice(ctx, companyID, invoiceID)
	if err != nil {
		return nil, err
	}
	return &InvoiceResult{Invoice: inv}, nil
}

func (s *appService) ListInvoices(ctx context.Context, req ListInvoicesRequest) (*InvoiceListResult, error) {
	filter := core.ListFilter{
		IncludeVoided: req.IncludeVoided,
		Limit:         req.Limit,
		Offset:        req.Offset,
	}
	if req.State != "" {
		st, err := core.ParseInvoiceState(req.State)
		if err != nil {
			return nil, err
		}
		filter.State = &st
	}
	invoices, err := s.invoices.ListInvoices(ctx, req.CompanyID, filter)
	if err != nil {
		return nil, err
	}
	if invoices == nil {
		invoices = []core.Invoice{}
	}
	return &InvoiceListResult{CompanyID: req.CompanyID, Invoices: invoices}, nil
}

func (s *appService) ReplaceLines(ctx context.Context, req ReplaceLinesRequest) (*InvoiceResult, error) {
	if _, err := s.ownedInvoice(ctx, req.CompanyID, req.InvoiceID); err != nil {
		return nil, err
	}
	lines, err := parseLines(req.Lines)
	if err != nil {
		return nil, err
	}
	inv, err := s.invoices.ReplaceLines(ctx, req.InvoiceID, lines)
	if err != nil {
		return nil, err
	}
	return &InvoiceResult{Invoice: inv}, nil
}

func (s *appService) UpdateAnnotations(ctx context.Context, req UpdateAnnotationsRequest) (*InvoiceResult, error) {
	if _, err := s.ownedInvoice(ctx, req.CompanyID, req.InvoiceID); err != nil {
		return nil, err
	}
	upd := core.AnnotationUpdate{
		Notes:           req.Notes,
		Observations:    req.Observations,
		ClientReference: req.ClientReference,
	}
	if req.DueDate != nil {
		d, err := parseDate("due_date", *req.DueDate)
		if err != nil {
			return nil, err
		}
		upd.DueDate = &d
	}
	inv, err := s.invoices.UpdateAnnotations(ctx, req.InvoiceID, upd)
	if err != nil {
		return nil, err
	}
	return &InvoiceResult{Invoice: inv}, nil
}

func (s *appService) IssueInvoice(ctx context.Context, req TransitionRequest) (*InvoiceResult, error) {
	return s.transition(ctx, req, core.StateIssued)
}

func (s *appService) AcceptInvoice(ctx context.Context, req TransitionRequest) (*InvoiceResult, error) {
	return s.transition(ctx, req, core.StateAccepted)
}

func (s *appService) RejectInvoice(ctx context.Context, req TransitionRequest) (*InvoiceResult, error) {
	return s.transition(ctx, req, core.StateRejected)
}

func (s *appService) VoidInvoice(ctx context.Context, req TransitionRequest) (*InvoiceResult, error) {
	return s.transition(ctx, req, core.StateVoid)
}

func (s *appService) transition(ctx context.Context, req TransitionRequest, target core.InvoiceState) (*InvoiceResult, error) {
	if _, err := s.ownedInvoice(ctx, req.CompanyID, req.InvoiceID); err != nil {
		return nil, err
	}
	inv, err := s.invoices.Transition(ctx, req.InvoiceID, target, core.TransitionOptions{Reason: strings.TrimSpace(req.Reason)})
	if err != nil {
		return nil, err
	}
	return &InvoiceResult{Invoice: inv}, nil
}

// ownedInvoice loads an invoice and hides it when it belongs to another company.
func (s *appService) ownedInvoice(ctx context.Context, companyID, invoiceID int) (*core.Invoice, error) {
	inv, err := s.invoices.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.CompanyID != companyID {
		return nil, fmt.Errorf("invoice %d of company %d: %w", invoiceID, companyID, core.ErrInvoiceNotFound)
	}
	return inv, nil
}

// ── Parsing ──────────────────────────────────────────────────────────────────

func parseLines(reqs []LineRequest) ([]core.LineInput, error) {
	lines := make([]core.LineInput, 0, len(reqs))
	for i, l := range reqs {
		in, err := parseLine(l)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		lines = append(lines, in)
	}
	return lines, nil
}

func parseLine(l LineRequest) (core.LineInput, error) {
	qty, err := money.ParseQuantity(l.Quantity)
	if err != nil {
		return core.LineInput{}, invalid("quantity", l.Quantity, err)
	}
	price, err := money.ParseMoney(l.UnitPrice)
	if err != nil {
		return core.LineInput{}, invalid("unit_price", l.UnitPrice, err)
	}
	discount := money.ZeroPercent
	if strings.TrimSpace(l.DiscountPercentage) != "" {
		if discount, err = money.ParsePercentage(l.DiscountPercentage); err != nil {
			return core.LineInput{}, invalid("discount_percentage", l.DiscountPercentage, err)
		}
	}
	return core.LineInput{
		ProductReference:   strings.TrimSpace(l.ProductReference),
		Quantity:           qty,
		UnitPrice:          price,
		DiscountPercentage: discount,
	}, nil
}

func parseTaxRule(t TaxRuleRequest) (core.TaxRule, error) {
	typ, err := core.ParseTaxType(t.Type)
	if err != nil {
		return core.TaxRule{}, err
	}
	rate, err := money.ParsePercentage(t.Rate)
	if err != nil {
		return core.TaxRule{}, invalid("rate", t.Rate, err)
	}
	applies := true
	if t.Applies != nil {
		applies = *t.Applies
	}
	return core.TaxRule{Type: typ, Rate: rate, Applies: applies}, nil
}

func parseDate(field, s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, invalid(field, s, err)
	}
	return d, nil
}

func invalid(field, value string, err error) error {
	return &core.ValidationError{Field: field, Value: value, Message: err.Error()}
}
