package app

import (
	"context"

	"github.com/invopop/jsonschema"

	"einvoicing/internal/core"
)

// Catalog holds the master data invoices are built from: issuing companies
// and the products whose tax rules lines snapshot.
type Catalog interface {
	core.TaxRuleLookup
	CreateCompany(ctx context.Context, c core.Company) (int, error)
	GetCompany(ctx context.Context, companyID int) (core.Company, error)
	UpsertProduct(ctx context.Context, companyID int, p core.ProductSnapshot) error
}

// ApplicationService is the single interface all adapters (CLI, Web) call.
// Requests carry amounts as decimal strings; the service parses them into the
// engine's fixed-point types. Implementations contain no display logic.
type ApplicationService interface {
	// CreateCompany registers an issuing company and its numbering resolution.
	CreateCompany(ctx context.Context, req CreateCompanyRequest) (*CompanyResult, error)

	GetCompany(ctx context.Context, companyID int) (*CompanyResult, error)

	// UpsertProduct creates or replaces a product and its tax rules.
	UpsertProduct(ctx context.Context, req UpsertProductRequest) (*ProductResult, error)

	// CreateInvoice creates a DRAFT invoice with the company's next number.
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*InvoiceResult, error)

	// GetInvoice returns an invoice of the given company.
	GetInvoice(ctx context.Context, companyID, invoiceID int) (*InvoiceResult, error)

	// ListInvoices returns a company's invoices ordered by sequence number.
	ListInvoices(ctx context.Context, req ListInvoicesRequest) (*InvoiceListResult, error)

	// ReplaceLines swaps the lines of a DRAFT invoice and recomputes its totals.
	ReplaceLines(ctx context.Context, req ReplaceLinesRequest) (*InvoiceResult, error)

	// UpdateAnnotations edits notes, observations, client reference or due date.
	UpdateAnnotations(ctx context.Context, req UpdateAnnotationsRequest) (*InvoiceResult, error)

	// IssueInvoice moves a DRAFT invoice to ISSUED and assigns its external reference.
	IssueInvoice(ctx context.Context, req TransitionRequest) (*InvoiceResult, error)

	// AcceptInvoice records the authority's acceptance of an ISSUED invoice.
	AcceptInvoice(ctx context.Context, req TransitionRequest) (*InvoiceResult, error)

	// RejectInvoice records the authority's rejection of an ISSUED invoice.
	RejectInvoice(ctx context.Context, req TransitionRequest) (*InvoiceResult, error)

	// VoidInvoice cancels an invoice. Its number stays consumed.
	VoidInvoice(ctx context.Context, req TransitionRequest) (*InvoiceResult, error)

	// RequestSchema returns the JSON Schema of a named request payload.
	RequestSchema(name string) (*jsonschema.Schema, error)
}
