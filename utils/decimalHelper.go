package utils

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale is the fraction-digit scale every persisted money value is
// rounded to. decimal.Round rounds half away from zero, which is the rounding
// rule the whole engine depends on (EN16931 / SUMEX compatible).
const AmountScale = 2

// RoundAmount rounds a money value to the engine's fixed scale.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountScale)
}

// ParseAmount accepts common user-formatted amount strings like:
// - "20,000"
// - "CHF 1'234.50"
// - "$ -20,000"
// - "1 234,50" is NOT supported; decimal comma input must be normalized upstream.
//
// Keeps digits, '.', and a leading '-' only. Never goes through float64.
func ParseAmount(value string) (decimal.Decimal, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return decimal.Zero, errors.New("empty amount string")
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}

	// Strip currency symbols, thousands separators and whitespace.
	var b strings.Builder
	b.Grow(len(s) + 1)
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
		if r == '-' {
			neg = true
		}
	}
	clean := b.String()
	if clean == "" {
		return decimal.Zero, errors.New("invalid amount: " + value)
	}
	if neg {
		clean = "-" + clean
	}

	return decimal.NewFromString(clean)
}

// FormatAmount renders a money value at the fixed scale for display and
// for byte-stable snapshot comparisons.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(AmountScale)
}
