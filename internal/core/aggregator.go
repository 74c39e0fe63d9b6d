package core

import (
	"sort"

	"einvoicing/internal/money"
)

// Aggregator folds computed lines into header totals and tax summaries.
// It is pure: identical input yields identical output.
type Aggregator struct {
	// Rounding is only used for the effective rate of mixed-rate summaries;
	// all amounts are sums of already-rounded cents.
	Rounding money.RoundingMode
}

// NewAggregator returns an Aggregator using the given rounding mode.
func NewAggregator(mode money.RoundingMode) Aggregator {
	return Aggregator{Rounding: mode}
}

// Aggregate sums the lines. Tax summaries are emitted in IVA, INC, ICA order,
// only for types whose summed amount is non-zero.
func (a Aggregator) Aggregate(lines []LineResult) (Totals, error) {
	if len(lines) == 0 {
		return Totals{}, ErrEmptyInvoice
	}

	t := Totals{
		Subtotal:       money.Zero,
		TotalDiscounts: money.Zero,
		TotalTaxes:     money.Zero,
	}
	for _, l := range lines {
		t.Subtotal = t.Subtotal.Add(l.Subtotal)
		t.TotalDiscounts = t.TotalDiscounts.Add(l.DiscountAmount)
	}

	for _, typ := range TaxTypes {
		s, ok := a.summarize(typ, lines)
		if !ok {
			continue
		}
		t.TaxSummaries = append(t.TaxSummaries, s)
		t.TotalTaxes = t.TotalTaxes.Add(s.TaxAmount)
	}

	t.GrandTotal = t.Subtotal.Sub(t.TotalDiscounts).Add(t.TotalTaxes)
	return t, nil
}

func (a Aggregator) summarize(typ TaxType, lines []LineResult) (TaxSummary, bool) {
	s := TaxSummary{Type: typ, TaxableBase: money.Zero, TaxAmount: money.Zero}
	byRate := make(map[string]*RateBreakdown)

	for _, l := range lines {
		amt, ok := l.TaxAmounts[typ]
		if !ok {
			continue
		}
		rate := l.TaxRates[typ]
		s.TaxableBase = s.TaxableBase.Add(l.TaxableBase)
		s.TaxAmount = s.TaxAmount.Add(amt)

		key := rate.String()
		b, ok := byRate[key]
		if !ok {
			b = &RateBreakdown{Rate: rate, TaxableBase: money.Zero, TaxAmount: money.Zero}
			byRate[key] = b
		}
		b.TaxableBase = b.TaxableBase.Add(l.TaxableBase)
		b.TaxAmount = b.TaxAmount.Add(amt)
	}
	if s.TaxAmount.IsZero() {
		return TaxSummary{}, false
	}

	for _, b := range byRate {
		s.Breakdown = append(s.Breakdown, *b)
	}
	sort.Slice(s.Breakdown, func(i, j int) bool {
		return s.Breakdown[i].Rate.Cmp(s.Breakdown[j].Rate) < 0
	})

	if len(s.Breakdown) == 1 {
		s.RateUsed = s.Breakdown[0].Rate
	} else {
		s.RateUsed = money.EffectiveRate(s.TaxAmount, s.TaxableBase, a.Rounding)
	}
	return s, true
}
