// Package core holds the domain model and the pure aggregation functions
// used by the dashboard views.
//
// Amounts are exact decimal quantities: repeated summation must round-trip
// to the cent, so binary floating point is never used for money.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string into a positive money amount.
//
// Both dot (12.34) and comma (12,34) separators are accepted. The value is
// rounded half-up to two fractional digits. Zero and negative values are
// rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if d.IsZero() || d.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatEuros renders an amount for terminal output, e.g. "€1234,56".
// Currency formatting is presentation only and never feeds calculations.
func FormatEuros(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.Replace(s, ".", ",", 1)
	if neg {
		return fmt.Sprintf("-€%s", s)
	}
	return fmt.Sprintf("€%s", s)
}
