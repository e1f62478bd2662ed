package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CreditScale is the number of fraction digits kept for every credit amount.
const CreditScale = 2

// MaxCredits is the largest amount a NUMERIC(14,2) money column holds.
var MaxCredits = decimal.RequireFromString("999999999999.99")

// ParseCredits parses a decimal string and rejects values that carry more
// precision than the ledger stores.
func ParseCredits(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid credit amount %q: %w", s, err)
	}
	if !HasCreditPrecision(d) {
		return decimal.Zero, fmt.Errorf("credit amount %q has more than %d fraction digits", s, CreditScale)
	}
	return RoundCredits(d), nil
}

// MustParseCredits is ParseCredits for constants and tests.
func MustParseCredits(s string) decimal.Decimal {
	d, err := ParseCredits(s)
	if err != nil {
		panic(err)
	}
	return d
}

// WithinCreditRange reports whether d fits in a stored money column.
func WithinCreditRange(d decimal.Decimal) bool {
	return d.Abs().LessThanOrEqual(MaxCredits)
}

func HasCreditPrecision(d decimal.Decimal) bool {
	return d.Equal(d.Round(CreditScale))
}

func RoundCredits(d decimal.Decimal) decimal.Decimal {
	return d.Round(CreditScale)
}

// FormatCredits renders an amount with exactly two fraction digits.
func FormatCredits(d decimal.Decimal) string {
	return d.StringFixed(CreditScale)
}
