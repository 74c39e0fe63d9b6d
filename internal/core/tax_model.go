package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"einvoicing/internal/money"
)

// TaxType is the closed set of taxes an invoice line can carry.
type TaxType string

const (
	TaxIVA TaxType = "IVA" // value added tax
	TaxINC TaxType = "INC" // national consumption tax
	TaxICA TaxType = "ICA" // industry and commerce tax
)

// TaxTypes lists every tax type in reporting order. Aggregation walks this slice,
// never a map, so summaries always come out in the same order.
var TaxTypes = []TaxType{TaxIVA, TaxINC, TaxICA}

// ParseTaxType normalises s and rejects anything outside the closed set.
func ParseTaxType(s string) (TaxType, error) {
	t := TaxType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown tax type %q: %w", s, ErrInvalidInput)
	}
	return t, nil
}

// Valid reports whether t is one of IVA, INC or ICA.
func (t TaxType) Valid() bool {
	switch t {
	case TaxIVA, TaxINC, TaxICA:
		return true
	default:
		return false
	}
}

func (t *TaxType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseTaxType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// TaxRule is one tax a product is configured with. Lines keep a copy of the
// rules as they were at invoice creation, so later product edits do not touch
// historical invoices.
type TaxRule struct {
	Type    TaxType          `json:"type"`
	Rate    money.Percentage `json:"rate"`
	Applies bool             `json:"applies"`
}

// ProductSnapshot is what the tax-rule lookup returns for a product reference.
type ProductSnapshot struct {
	Reference string    `json:"reference"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	TaxRules  []TaxRule `json:"tax_rules"`
}
