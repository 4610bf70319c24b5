package models

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/invoicing_backend/utils"
	"github.com/shopspring/decimal"
)

func TestResolveDiscountEntryAmountWins(t *testing.T) {
	percent, amount, err := resolveDiscountEntry(decimal.NewFromInt(5), decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("resolveDiscountEntry: %v", err)
	}
	if !percent.IsZero() {
		t.Errorf("percent = %s, want 0 when an amount is set", percent.String())
	}
	if utils.FormatAmount(amount) != "10.00" {
		t.Errorf("amount = %s, want 10.00", utils.FormatAmount(amount))
	}
}

func TestResolveDiscountEntryPercentOnly(t *testing.T) {
	percent, amount, err := resolveDiscountEntry(decimal.NewFromInt(5), decimal.Zero)
	if err != nil {
		t.Fatalf("resolveDiscountEntry: %v", err)
	}
	if utils.FormatAmount(percent) != "5.00" {
		t.Errorf("percent = %s, want 5.00", utils.FormatAmount(percent))
	}
	if !amount.IsZero() {
		t.Errorf("amount = %s, want 0", amount.String())
	}
}

func TestResolveDiscountEntryRejectsNegatives(t *testing.T) {
	if _, _, err := resolveDiscountEntry(decimal.NewFromInt(-1), decimal.Zero); !errors.Is(err, utils.ErrorValidationFailed) {
		t.Errorf("negative percent: got %v, want validation failure", err)
	}
	if _, _, err := resolveDiscountEntry(decimal.Zero, decimal.NewFromInt(-1)); !errors.Is(err, utils.ErrorValidationFailed) {
		t.Errorf("negative amount: got %v, want validation failure", err)
	}
}

func TestResolveIncludeItemTaxKeepsStoredWhenOmitted(t *testing.T) {
	stored := true
	if got := resolveIncludeItemTax(&stored, nil); got == nil || !*got {
		t.Errorf("omitted input: got %v, want stored true", got)
	}

	incoming := false
	if got := resolveIncludeItemTax(&stored, &incoming); got == nil || *got {
		t.Errorf("explicit input: got %v, want false", got)
	}

	if got := resolveIncludeItemTax(nil, nil); got != nil {
		t.Errorf("both nil: got %v, want nil", got)
	}
}
