package core

import "strings"

// Company is an issuing company and its numbering resolution.
type Company struct {
	ID        int    `json:"id"`
	TaxID     string `json:"tax_id"`
	Name      string `json:"name"`
	Prefix    string `json:"prefix"`
	RangeFrom *int64 `json:"range_from,omitempty"`
	RangeTo   *int64 `json:"range_to,omitempty"`
}

// NumberingConfig returns the part of c the sequence allocator needs.
func (c Company) NumberingConfig() NumberingConfig {
	return NumberingConfig{Prefix: c.Prefix, RangeFrom: c.RangeFrom, RangeTo: c.RangeTo}
}

// Validate checks the fields a store requires before registering c.
func (c Company) Validate() error {
	if strings.TrimSpace(c.TaxID) == "" {
		return newValidationError("tax_id", c.TaxID, "is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return newValidationError("name", c.Name, "is required")
	}
	if strings.ContainsAny(c.Prefix, " \t\n") {
		return newValidationError("prefix", c.Prefix, "must not contain whitespace")
	}
	if c.RangeFrom != nil && *c.RangeFrom <= 0 {
		return newValidationError("range_from", *c.RangeFrom, "must be positive")
	}
	if c.RangeFrom != nil && c.RangeTo != nil && *c.RangeTo < *c.RangeFrom {
		return newValidationError("range_to", *c.RangeTo, "must not be below range_from")
	}
	return nil
}

// Validate checks a product before it is registered.
func (p ProductSnapshot) Validate() error {
	if strings.TrimSpace(p.Reference) == "" {
		return newValidationError("reference", p.Reference, "is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return newValidationError("name", p.Name, "is required")
	}
	return validateTaxRules(p.TaxRules)
}
