// Package money converts between stored minor units and display amounts.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/gigbridge/gigbridge-backend/pkg/enums"
)

// ToMajor converts minor units (paise, cents) to a decimal major amount.
func ToMajor(minor int64, currency enums.Currency) decimal.Decimal {
	return decimal.NewFromInt(minor).Shift(-currency.MinorUnitExponent())
}

// Format renders minor units as a fixed-point major amount, e.g. 1500 INR -> "15.00".
func Format(minor int64, currency enums.Currency) string {
	return ToMajor(minor, currency).StringFixed(currency.MinorUnitExponent())
}

// FromMajor parses a major amount string into minor units. Amounts with more
// precision than the currency allows are rejected rather than rounded.
func FromMajor(value string, currency enums.Currency) (int64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	shifted := d.Shift(currency.MinorUnitExponent())
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has too many decimal places for %s", value, currency)
	}
	if shifted.IsNegative() {
		return 0, fmt.Errorf("amount %q must be non-negative", value)
	}
	return shifted.IntPart(), nil
}
