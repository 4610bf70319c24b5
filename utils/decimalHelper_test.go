package utils_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/invoicing_backend/utils"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"20000", "20000.00"},
		{"20,000", "20000.00"},
		{"$ 1,234.56", "1234.56"},
		{"CHF 1'234.50", "1234.50"},
		{"-20,000", "-20000.00"},
		{"$ -99.99", "-99.99"},
		{"0", "0.00"},
		{"  12.5  ", "12.50"},
	}
	for _, tc := range cases {
		got, err := utils.ParseAmount(tc.in)
		if err != nil {
			t.Errorf("ParseAmount(%q): %v", tc.in, err)
			continue
		}
		if utils.FormatAmount(got) != tc.want {
			t.Errorf("ParseAmount(%q) = %s, want %s", tc.in, utils.FormatAmount(got), tc.want)
		}
	}
}

func TestParseAmountRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "$"} {
		if _, err := utils.ParseAmount(in); err == nil {
			t.Errorf("ParseAmount(%q): expected error", in)
		}
	}
}

func TestRoundAmountHalfAwayFromZero(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1.005", "1.01"},
		{"1.004", "1.00"},
		{"-1.005", "-1.01"},
		{"2.675", "2.68"},
		{"0.125", "0.13"},
	}
	for _, tc := range cases {
		if got := utils.FormatAmount(utils.RoundAmount(dec(tc.in))); got != tc.want {
			t.Errorf("RoundAmount(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestCalculateDiscountAmount(t *testing.T) {
	cases := []struct {
		base         string
		discount     string
		discountType string
		want         string
	}{
		{"200", "25", "P", "50.00"},
		{"200", "25", "A", "25.00"},
		{"100", "0", "P", "0.00"},
		{"100", "-5", "A", "0.00"},
		{"33.33", "10", "P", "3.33"},
	}
	for _, tc := range cases {
		got := utils.CalculateDiscountAmount(dec(tc.base), dec(tc.discount), tc.discountType)
		if utils.FormatAmount(got) != tc.want {
			t.Errorf("CalculateDiscountAmount(%s, %s, %s) = %s, want %s",
				tc.base, tc.discount, tc.discountType, utils.FormatAmount(got), tc.want)
		}
	}
}

func TestCalculateTaxAmount(t *testing.T) {
	cases := []struct {
		base    string
		percent string
		want    string
	}{
		{"90", "20", "18.00"},
		{"100", "0", "0.00"},
		{"0", "20", "0.00"},
		{"33.33", "7.7", "2.57"},
	}
	for _, tc := range cases {
		got := utils.CalculateTaxAmount(dec(tc.base), dec(tc.percent))
		if utils.FormatAmount(got) != tc.want {
			t.Errorf("CalculateTaxAmount(%s, %s) = %s, want %s",
				tc.base, tc.percent, utils.FormatAmount(got), tc.want)
		}
	}
}
