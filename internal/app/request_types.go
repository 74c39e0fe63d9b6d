package app

// CreateCompanyRequest is the input for registering an issuing company.
type CreateCompanyRequest struct {
	TaxID     string `json:"tax_id" jsonschema:"required" jsonschema_description:"Tax identification number of the issuing company"`
	Name      string `json:"name" jsonschema:"required"`
	Prefix    string `json:"prefix,omitempty" jsonschema_description:"Numbering prefix from the company's resolution, e.g. SETT"`
	RangeFrom *int64 `json:"range_from,omitempty" jsonschema_description:"First authorised sequence number, defaults to 1"`
	RangeTo   *int64 `json:"range_to,omitempty" jsonschema_description:"Last authorised sequence number, unbounded when absent"`
}

// TaxRuleRequest is one tax of an UpsertProductRequest.
type TaxRuleRequest struct {
	Type    string `json:"type" jsonschema:"required,enum=IVA,enum=INC,enum=ICA"`
	Rate    string `json:"rate" jsonschema:"required" jsonschema_description:"Rate in percent as a decimal string with up to 2 places, e.g. 19.00"`
	Applies *bool  `json:"applies,omitempty" jsonschema_description:"Whether the tax is charged; defaults to true"`
}

// UpsertProductRequest creates or replaces a product of a company.
type UpsertProductRequest struct {
	CompanyID int              `json:"-"`
	Reference string           `json:"reference" jsonschema:"required" jsonschema_description:"Reference invoice lines use to look the product up"`
	Code      string           `json:"code,omitempty"`
	Name      string           `json:"name" jsonschema:"required"`
	Taxes     []TaxRuleRequest `json:"taxes,omitempty"`
}

// LineRequest is a single line of a CreateInvoiceRequest or ReplaceLinesRequest.
type LineRequest struct {
	ProductReference   string `json:"product_reference" jsonschema:"required"`
	Quantity           string `json:"quantity" jsonschema:"required" jsonschema_description:"Positive quantity as a decimal string with up to 3 places"`
	UnitPrice          string `json:"unit_price" jsonschema:"required" jsonschema_description:"Non-negative unit price as a decimal string with up to 2 places"`
	DiscountPercentage string `json:"discount_percentage,omitempty" jsonschema_description:"Discount in percent between 0 and 100, defaults to 0"`
}

// CreateInvoiceRequest is the input for creating a DRAFT invoice.
type CreateInvoiceRequest struct {
	CompanyID       int           `json:"-"`
	ClientReference string        `json:"client_reference,omitempty"`
	EmissionDate    string        `json:"emission_date,omitempty" jsonschema_description:"YYYY-MM-DD, defaults to today"`
	DueDate         string        `json:"due_date,omitempty" jsonschema_description:"YYYY-MM-DD, not before the emission date"`
	Notes           string        `json:"notes,omitempty"`
	Observations    string        `json:"observations,omitempty"`
	Lines           []LineRequest `json:"lines" jsonschema:"required,minItems=1"`
}

// ReplaceLinesRequest swaps every line of a DRAFT invoice.
type ReplaceLinesRequest struct {
	CompanyID int           `json:"-"`
	InvoiceID int           `json:"-"`
	Lines     []LineRequest `json:"lines" jsonschema:"required,minItems=1"`
}

// UpdateAnnotationsRequest edits non-structural fields. Absent fields are left unchanged.
type UpdateAnnotationsRequest struct {
	CompanyID       int     `json:"-"`
	InvoiceID       int     `json:"-"`
	Notes           *string `json:"notes,omitempty"`
	Observations    *string `json:"observations,omitempty"`
	ClientReference *string `json:"client_reference,omitempty" jsonschema_description:"Editable only while DRAFT"`
	DueDate         *string `json:"due_date,omitempty" jsonschema_description:"YYYY-MM-DD, editable only while DRAFT"`
}

// TransitionRequest identifies the invoice a lifecycle operation applies to.
type TransitionRequest struct {
	CompanyID int    `json:"-"`
	InvoiceID int    `json:"-"`
	Reason    string `json:"reason,omitempty" jsonschema_description:"Recorded when voiding"`
}

// ListInvoicesRequest narrows ListInvoices.
type ListInvoicesRequest struct {
	CompanyID     int
	State         string // empty means any state
	IncludeVoided bool
	Limit         int
	Offset        int
}
