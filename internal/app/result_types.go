package app

import "einvoicing/internal/core"

// CompanyResult is returned by company operations.
type CompanyResult struct {
	Company core.Company `json:"company"`
}

// ProductResult is returned by UpsertProduct.
type ProductResult struct {
	CompanyID int                  `json:"company_id"`
	Product   core.ProductSnapshot `json:"product"`
}

// InvoiceResult is returned by invoice operations.
type InvoiceResult struct {
	Invoice *core.Invoice `json:"invoice"`
}

// InvoiceListResult is returned by ListInvoices.
type InvoiceListResult struct {
	CompanyID int            `json:"company_id"`
	Invoices  []core.Invoice `json:"invoices"`
}
