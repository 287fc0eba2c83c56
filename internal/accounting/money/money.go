// Package money holds the fixed-point helpers used for ledger amounts.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by every amount.
const Scale = 2

// Zero is the additive identity.
var Zero = decimal.Zero

// Parse reads a decimal string such as "1250.00". Empty input is zero.
// Values with more than two fractional digits are rejected rather than rounded.
func Parse(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("money: invalid amount %q", raw)
	}
	if !d.Equal(d.Round(Scale)) {
		return decimal.Zero, fmt.Errorf("money: amount %q has more than %d decimal places", raw, Scale)
	}
	return d, nil
}

// Format renders d with exactly two fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}

// Minor converts d into minor units (cents).
func Minor(d decimal.Decimal) int64 {
	return d.Shift(Scale).Round(0).IntPart()
}

// FromMinor converts minor units back into a decimal amount.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -Scale)
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Value is the wire shape of an amount: a fixed two-decimal string and its
// minor-unit integer.
type Value struct {
	Amount string `json:"amount"`
	Minor  int64  `json:"minor"`
}

// ToValue converts d to its wire shape.
func ToValue(d decimal.Decimal) Value {
	return Value{Amount: Format(d), Minor: Minor(d)}
}
