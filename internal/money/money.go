// Package money provides the fixed-point value types used by invoice arithmetic:
// Money (2 fractional digits), Quantity (3) and Percentage (2, bounded to [0, 100]).
//
// All types wrap shopspring/decimal. Values are always held at their declared
// scale; operations that can produce extra digits return a raw decimal.Decimal
// which the caller rounds back through a RoundingMode.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	MoneyPlaces      int32 = 2
	QuantityPlaces   int32 = 3
	PercentagePlaces int32 = 2
)

var (
	// ErrTooManyDigits is returned when a value carries more fractional digits than its type allows.
	ErrTooManyDigits = errors.New("too many fractional digits")
	// ErrOutOfRange is returned when a percentage falls outside [0, 100].
	ErrOutOfRange = errors.New("value out of range")

	hundred = decimal.NewFromInt(100)
)

// RoundingMode selects how intermediate results are brought back to a fixed scale.
type RoundingMode int

const (
	// RoundHalfUp rounds ties away from zero (0.005 -> 0.01). Invoice amounts are
	// never negative, so this is plain half-up.
	RoundHalfUp RoundingMode = iota
	// RoundHalfEven rounds ties to the nearest even digit (banker's rounding).
	RoundHalfEven
)

// ParseRoundingMode accepts "half_up" or "half_even" (case-insensitive). Empty means half_up.
func ParseRoundingMode(s string) (RoundingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "half_up", "halfup":
		return RoundHalfUp, nil
	case "half_even", "halfeven", "bank":
		return RoundHalfEven, nil
	default:
		return RoundHalfUp, fmt.Errorf("unknown rounding mode %q (want half_up or half_even)", s)
	}
}

func (m RoundingMode) String() string {
	if m == RoundHalfEven {
		return "half_even"
	}
	return "half_up"
}

// Round brings d to the given number of fractional digits.
func (m RoundingMode) Round(d decimal.Decimal, places int32) decimal.Decimal {
	if m == RoundHalfEven {
		return d.RoundBank(places)
	}
	return d.Round(places)
}

func hasAtMostPlaces(d decimal.Decimal, places int32) bool {
	return d.Round(places).Equal(d)
}

// ── Money ────────────────────────────────────────────────────────────────────

// Money is a currency amount with exactly two fractional digits.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{d: decimal.Zero}

// NewMoney rounds d to two places using mode.
func NewMoney(d decimal.Decimal, mode RoundingMode) Money {
	return Money{d: mode.Round(d, MoneyPlaces)}
}

// MoneyFromDecimal accepts d only if it already has at most two fractional digits.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if !hasAtMostPlaces(d, MoneyPlaces) {
		return Zero, fmt.Errorf("money %s: %w", d.String(), ErrTooManyDigits)
	}
	return Money{d: d}, nil
}

// ParseMoney parses a decimal string such as "100000.00".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Zero, fmt.Errorf("invalid money %q: %w", s, err)
	}
	return MoneyFromDecimal(d)
}

// MustMoney is ParseMoney that panics; intended for constants and tests.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Decimal() decimal.Decimal { return m.d }
func (m Money) Add(o Money) Money        { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money        { return Money{d: m.d.Sub(o.d)} }
func (m Money) IsZero() bool             { return m.d.IsZero() }
func (m Money) IsNegative() bool         { return m.d.IsNegative() }
func (m Money) Equal(o Money) bool       { return m.d.Equal(o.d) }
func (m Money) Cmp(o Money) int          { return m.d.Cmp(o.d) }

// MulQuantity returns m × q at full precision.
func (m Money) MulQuantity(q Quantity) decimal.Decimal { return m.d.Mul(q.d) }

// MulPercentage returns m × p / 100 at full precision.
func (m Money) MulPercentage(p Percentage) decimal.Decimal { return m.d.Mul(p.d).Div(hundred) }

// String renders the amount with exactly two fractional digits.
func (m Money) String() string { return m.d.StringFixed(MoneyPlaces) }

func (m Money) MarshalJSON() ([]byte, error) { return json.Marshal(m.String()) }

func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	v, err := MoneyFromDecimal(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Scan implements sql.Scanner for NUMERIC(15,2) columns.
func (m *Money) Scan(value any) error {
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return err
	}
	m.d = d.Round(MoneyPlaces)
	return nil
}

// Value implements driver.Valuer.
func (m Money) Value() (driver.Value, error) { return m.String(), nil }

// Sum adds a list of amounts.
func Sum(ms ...Money) Money {
	total := Zero
	for _, m := range ms {
		total = total.Add(m)
	}
	return total
}

// ── Quantity ─────────────────────────────────────────────────────────────────

// Quantity is an item count with up to three fractional digits.
type Quantity struct {
	d decimal.Decimal
}

// QuantityFromDecimal accepts d only if it has at most three fractional digits.
func QuantityFromDecimal(d decimal.Decimal) (Quantity, error) {
	if !hasAtMostPlaces(d, QuantityPlaces) {
		return Quantity{}, fmt.Errorf("quantity %s: %w", d.String(), ErrTooManyDigits)
	}
	return Quantity{d: d}, nil
}

// ParseQuantity parses a decimal string such as "3" or "1.250".
func ParseQuantity(s string) (Quantity, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Quantity{}, fmt.Errorf("invalid quantity %q: %w", s, err)
	}
	return QuantityFromDecimal(d)
}

// MustQuantity is ParseQuantity that panics.
func MustQuantity(s string) Quantity {
	q, err := ParseQuantity(s)
	if err != nil {
		panic(err)
	}
	return q
}

func (q Quantity) Decimal() decimal.Decimal { return q.d }
func (q Quantity) IsPositive() bool         { return q.d.IsPositive() }
func (q Quantity) String() string           { return q.d.StringFixed(QuantityPlaces) }

func (q Quantity) MarshalJSON() ([]byte, error) { return json.Marshal(q.String()) }

func (q *Quantity) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	v, err := QuantityFromDecimal(d)
	if err != nil {
		return err
	}
	*q = v
	return nil
}

func (q *Quantity) Scan(value any) error {
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return err
	}
	q.d = d.Round(QuantityPlaces)
	return nil
}

func (q Quantity) Value() (driver.Value, error) { return q.String(), nil }

// ── Percentage ───────────────────────────────────────────────────────────────

// Percentage is a rate in [0, 100] with up to two fractional digits.
type Percentage struct {
	d decimal.Decimal
}

// ZeroPercent is 0.00%.
var ZeroPercent = Percentage{d: decimal.Zero}

// PercentageFromDecimal validates scale and range.
func PercentageFromDecimal(d decimal.Decimal) (Percentage, error) {
	if !hasAtMostPlaces(d, PercentagePlaces) {
		return ZeroPercent, fmt.Errorf("percentage %s: %w", d.String(), ErrTooManyDigits)
	}
	if d.IsNegative() || d.GreaterThan(hundred) {
		return ZeroPercent, fmt.Errorf("percentage %s not in [0, 100]: %w", d.String(), ErrOutOfRange)
	}
	return Percentage{d: d}, nil
}

// ParsePercentage parses a decimal string such as "19.00".
func ParsePercentage(s string) (Percentage, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return ZeroPercent, fmt.Errorf("invalid percentage %q: %w", s, err)
	}
	return PercentageFromDecimal(d)
}

// MustPercentage is ParsePercentage that panics.
func MustPercentage(s string) Percentage {
	p, err := ParsePercentage(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Percentage) Decimal() decimal.Decimal { return p.d }
func (p Percentage) IsZero() bool             { return p.d.IsZero() }
func (p Percentage) Equal(o Percentage) bool  { return p.d.Equal(o.d) }
func (p Percentage) Cmp(o Percentage) int     { return p.d.Cmp(o.d) }
func (p Percentage) String() string           { return p.d.StringFixed(PercentagePlaces) }

// InRange reports whether p lies within [0, 100]. Values built through the
// constructors always do; the zero value and scanned values are checked here.
func (p Percentage) InRange() bool {
	return !p.d.IsNegative() && !p.d.GreaterThan(hundred)
}

// EffectiveRate returns amount/base × 100 rounded to two places, or zero when base is zero.
func EffectiveRate(amount, base Money, mode RoundingMode) Percentage {
	if base.IsZero() {
		return ZeroPercent
	}
	return Percentage{d: mode.Round(amount.d.Div(base.d).Mul(hundred), PercentagePlaces)}
}

func (p Percentage) MarshalJSON() ([]byte, error) { return json.Marshal(p.String()) }

func (p *Percentage) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	v, err := PercentageFromDecimal(d)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func (p *Percentage) Scan(value any) error {
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return err
	}
	p.d = d.Round(PercentagePlaces)
	return nil
}

func (p Percentage) Value() (driver.Value, error) { return p.String(), nil }
