package utils

import (
	"github.com/shopspring/decimal"
)

var decimalOneHundred = decimal.NewFromInt(100)

// CalculateDiscountAmount resolves a discount entry against a base amount.
// discountType "P" means discount is a percent of base; "A" means discount is
// already an absolute amount. Zero or negative discounts resolve to zero.
// The result is rounded to the engine scale.
func CalculateDiscountAmount(base decimal.Decimal, discount decimal.Decimal, discountType string) decimal.Decimal {
	if !discount.GreaterThan(decimal.Zero) {
		return decimal.Zero
	}

	if discountType == "P" {
		return RoundAmount(base.Mul(discount).Div(decimalOneHundred))
	}
	return RoundAmount(discount)
}

// CalculateTaxAmount applies a percent tax rate to an already-resolved taxable
// base: base * percent / 100, rounded. Rates are stored as percents
// (10 for 10%), matching the tax_rates catalog.
func CalculateTaxAmount(base decimal.Decimal, percent decimal.Decimal) decimal.Decimal {
	if percent.IsZero() || base.IsZero() {
		return decimal.Zero
	}
	return RoundAmount(base.Mul(percent).Div(decimalOneHundred))
}

// PercentOf converts a percent entry to an absolute amount of base, rounded.
func PercentOf(base decimal.Decimal, percent decimal.Decimal) decimal.Decimal {
	return RoundAmount(base.Mul(percent).Div(decimalOneHundred))
}
