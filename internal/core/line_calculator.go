package core

import (
	"einvoicing/internal/money"
)

// LineCalculator computes one invoice line. It is stateless apart from the
// rounding mode and safe for concurrent use.
type LineCalculator struct {
	Rounding money.RoundingMode
}

// NewLineCalculator returns a calculator using the given rounding mode.
func NewLineCalculator(mode money.RoundingMode) LineCalculator {
	return LineCalculator{Rounding: mode}
}

// Compute derives subtotal, discount, per-tax amounts and the line total.
// Rounding to cents happens after the subtotal, after the discount and after
// each tax. Every tax is computed on the same discounted base; taxes never
// compound on one another.
func (c LineCalculator) Compute(in LineInput, rules []TaxRule) (LineResult, error) {
	if err := validateLineInput(in); err != nil {
		return LineResult{}, err
	}
	if err := validateTaxRules(rules); err != nil {
		return LineResult{}, err
	}

	subtotal := money.NewMoney(in.UnitPrice.MulQuantity(in.Quantity), c.Rounding)
	discount := money.NewMoney(subtotal.MulPercentage(in.DiscountPercentage), c.Rounding)
	base := subtotal.Sub(discount)

	res := LineResult{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		TaxableBase:    base,
		TaxAmounts:     make(map[TaxType]money.Money),
		TaxRates:       make(map[TaxType]money.Percentage),
	}
	for _, r := range rules {
		if !r.Applies {
			continue
		}
		res.TaxAmounts[r.Type] = money.NewMoney(base.MulPercentage(r.Rate), c.Rounding)
		res.TaxRates[r.Type] = r.Rate
	}
	res.LineTotal = base.Add(res.TotalTaxes())
	return res, nil
}

func validateLineInput(in LineInput) error {
	if !in.Quantity.IsPositive() {
		return newValidationError("quantity", in.Quantity.String(), "must be greater than zero")
	}
	if in.UnitPrice.IsNegative() {
		return newValidationError("unit_price", in.UnitPrice.String(), "must not be negative")
	}
	if !in.DiscountPercentage.InRange() {
		return newValidationError("discount_percentage", in.DiscountPercentage.String(), "must be between 0 and 100")
	}
	return nil
}

func validateTaxRules(rules []TaxRule) error {
	seen := make(map[TaxType]bool, len(rules))
	for _, r := range rules {
		if !r.Type.Valid() {
			return newValidationError("tax_rule.type", r.Type, "unknown tax type")
		}
		if seen[r.Type] {
			return newValidationError("tax_rule.type", r.Type, "duplicate tax type")
		}
		seen[r.Type] = true
		if !r.Rate.InRange() {
			return newValidationError("tax_rule.rate", r.Rate.String(), "must be between 0 and 100")
		}
	}
	return nil
}
