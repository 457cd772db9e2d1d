// Package money converts between decimal currency amounts on the wire and the
// integer cents used for storage and arithmetic.
package money

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a non-negative currency value with at most two fractional digits.
// It decodes from a JSON number or numeric string ("100", 100.5, "100.50").
type Amount struct {
	cents int64
	set   bool
}

// FromCents builds an Amount from integer cents.
func FromCents(cents int64) Amount {
	return Amount{cents: cents, set: true}
}

// Parse converts a decimal string to an Amount.
func Parse(raw string) (Amount, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q", raw)
	}
	return fromDecimal(d)
}

func fromDecimal(d decimal.Decimal) (Amount, error) {
	if d.IsNegative() {
		return Amount{}, fmt.Errorf("amount must not be negative")
	}
	shifted := d.Shift(2)
	if !shifted.Equal(shifted.Truncate(0)) {
		return Amount{}, fmt.Errorf("amount has more than two decimal places")
	}
	return Amount{cents: shifted.IntPart(), set: true}, nil
}

// Cents returns the amount in minor units.
func (a Amount) Cents() int64 {
	return a.cents
}

// IsSet reports whether a value was supplied.
func (a Amount) IsSet() bool {
	return a.set
}

// String renders the amount with two decimals.
func (a Amount) String() string {
	return decimal.New(a.cents, -2).StringFixed(2)
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*a = Amount{}
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(trimmed); err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	parsed, err := fromDecimal(d)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(decimal.New(a.cents, -2).InexactFloat64())
}
