// Package valueobjects - Money is the most critical value object in the system.
// All balances, fees and commissions flow through it.
//
// Internal representation is integer kobo (Naira minor units); serialization
// is decimal major units with two digits. Integer arithmetic avoids the
// floating-point drift that plagued the old balance code, while
// shopspring/decimal handles parse/format and rate application at the edges.
package valueobjects

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Common domain errors for Money operations
var (
	ErrNegativeAmount = errors.New("amount cannot be negative")
	ErrInvalidAmount  = errors.New("invalid amount format")
)

// Money represents a Naira amount in kobo.
//
// Value Object Pattern:
// - Immutable: all operations return new Money values
// - Self-validating: user-facing constructors reject negative amounts
//
// Internal arithmetic (fee splits, net revenue) may legitimately go negative,
// so Sub returns a signed result and FromKobo accepts any int64.
type Money struct {
	kobo int64
}

// Zero is the zero Naira amount.
func Zero() Money {
	return Money{}
}

// FromKobo creates Money from an integer kobo amount. Signed: internal
// accounting values such as netDepositRevenue may be negative.
func FromKobo(kobo int64) Money {
	return Money{kobo: kobo}
}

// FromNaira creates Money from whole Naira.
func FromNaira(naira int64) Money {
	return Money{kobo: naira * 100}
}

// Parse creates Money from a decimal major-unit string (e.g. "970.00").
// Rejects negative and malformed input; this is the constructor for
// user-supplied and provider-supplied amounts.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

// FromDecimal converts a major-unit decimal to Money, rounding half-up to
// two places. Rejects negative input.
func FromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	kobo := d.Round(2).Mul(decimal.NewFromInt(100))
	if !kobo.IsInteger() {
		return Money{}, fmt.Errorf("%w: %s", ErrInvalidAmount, d.String())
	}
	return Money{kobo: kobo.IntPart()}, nil
}

// Kobo returns the amount in minor units.
func (m Money) Kobo() int64 {
	return m.kobo
}

// Decimal returns the amount in major units with two decimal places.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.kobo, -2)
}

// String formats the amount in major units, e.g. "970.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{kobo: m.kobo + other.kobo}
}

// Sub returns m - other. The result may be negative.
func (m Money) Sub(other Money) Money {
	return Money{kobo: m.kobo - other.kobo}
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{kobo: -m.kobo}
}

// ApplyRate returns m × rate rounded half-up to the nearest kobo.
// Used for commission and gateway-fee computation (rates like 0.016).
func (m Money) ApplyRate(rate decimal.Decimal) Money {
	kobo := decimal.NewFromInt(m.kobo).Mul(rate).Round(0)
	return Money{kobo: kobo.IntPart()}
}

// MarshalJSON serializes the amount as a decimal major-unit string.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts either a decimal string or a bare number.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Comparison helpers

func (m Money) IsZero() bool     { return m.kobo == 0 }
func (m Money) IsPositive() bool { return m.kobo > 0 }
func (m Money) IsNegative() bool { return m.kobo < 0 }

// GreaterThan returns true if m > other.
func (m Money) GreaterThan(other Money) bool {
	return m.kobo > other.kobo
}

// GreaterThanOrEqual returns true if m >= other.
func (m Money) GreaterThanOrEqual(other Money) bool {
	return m.kobo >= other.kobo
}

// LessThan returns true if m < other.
func (m Money) LessThan(other Money) bool {
	return m.kobo < other.kobo
}

// Equals returns true if the amounts are identical.
func (m Money) Equals(other Money) bool {
	return m.kobo == other.kobo
}

// AbsDiff returns |m - other|. Used by the delivered-product validator for
// the ₦50 tolerance check.
func (m Money) AbsDiff(other Money) Money {
	d := m.kobo - other.kobo
	if d < 0 {
		d = -d
	}
	return Money{kobo: d}
}
