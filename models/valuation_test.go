package models_test

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/invoicing_backend/models"
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

func boolPtr(b bool) *bool { return &b }

func discountTypePtr(t models.DiscountType) *models.DiscountType { return &t }

func compute(t *testing.T, in *models.DocumentCalcInput) *models.DocumentAmounts {
	t.Helper()
	amounts, _, _, err := models.ComputeDocumentAmounts(in)
	if err != nil {
		t.Fatalf("ComputeDocumentAmounts: %v", err)
	}
	return amounts
}

func assertAmount(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if utils.FormatAmount(got) != want {
		t.Errorf("%s = %s, want %s", name, utils.FormatAmount(got), want)
	}
}

func TestLegacyGlobalTaxOnDiscountedSubtotal(t *testing.T) {
	// Two units at 10.00 with 10% item tax, plus a 5% document-level rate.
	doc := &models.Document{
		ID:                1,
		BusinessId:        "biz-1",
		DocumentType:      models.DocumentTypeInvoice,
		LegacyCalculation: true,
		Sign:              models.SignNormal,
	}
	items := []models.DocumentItem{
		{Name: "Widget", Quantity: dec("2"), Price: dec("10")},
	}
	amounts := compute(t, &models.DocumentCalcInput{
		Document:        doc,
		Items:           items,
		ItemTaxPercents: []decimal.Decimal{dec("10")},
		GlobalTaxRates: []models.DocumentTaxRate{
			{TaxRateId: 1, Percent: dec("5")},
		},
		PaidTotal: decimal.Zero,
	})

	assertAmount(t, "ItemSubtotal", amounts.ItemSubtotal, "20.00")
	assertAmount(t, "ItemTaxTotal", amounts.ItemTaxTotal, "2.00")
	assertAmount(t, "GlobalTaxTotal", amounts.GlobalTaxTotal, "1.00")
	assertAmount(t, "Total", amounts.Total, "23.00")
	assertAmount(t, "Balance", amounts.Balance, "23.00")
}

func TestLegacyStackedGlobalRatesShareOneBase(t *testing.T) {
	doc := &models.Document{
		ID:                1,
		BusinessId:        "biz-1",
		DocumentType:      models.DocumentTypeInvoice,
		LegacyCalculation: true,
		Sign:              models.SignNormal,
		DiscountAmount:    dec("10"),
	}
	items := []models.DocumentItem{
		{Name: "Service", Quantity: dec("1"), Price: dec("110")},
	}
	amounts := compute(t, &models.DocumentCalcInput{
		Document:        doc,
		Items:           items,
		ItemTaxPercents: []decimal.Decimal{decimal.Zero},
		GlobalTaxRates: []models.DocumentTaxRate{
			{TaxRateId: 1, Percent: dec("10")},
			{TaxRateId: 2, Percent: dec("5")},
		},
		PaidTotal: decimal.Zero,
	})

	// Both rates tax 100.00; stacked additively, never compounded.
	assertAmount(t, "GlobalTaxTotal", amounts.GlobalTaxTotal, "15.00")
	assertAmount(t, "Total", amounts.Total, "115.00")
}

func TestLegacyPercentDiscountShrinksStackedBase(t *testing.T) {
	doc := &models.Document{
		ID:                1,
		BusinessId:        "biz-1",
		DocumentType:      models.DocumentTypeInvoice,
		LegacyCalculation: true,
		Sign:              models.SignNormal,
		DiscountPercent:   dec("10"),
	}
	items := []models.DocumentItem{
		{Name: "Service", Quantity: dec("2"), Price: dec("100")},
	}
	amounts := compute(t, &models.DocumentCalcInput{
		Document:        doc,
		Items:           items,
		ItemTaxPercents: []decimal.Decimal{decimal.Zero},
		GlobalTaxRates: []models.DocumentTaxRate{
			{TaxRateId: 1, Percent: dec("7")},
			{TaxRateId: 2, Percent: dec("3")},
		},
	})

	// 10% of 200 comes off first; both rates then tax the 180.00 base.
	assertAmount(t, "GlobalDiscountApplied", amounts.GlobalDiscountApplied, "20.00")
	assertAmount(t, "GlobalTaxTotal", amounts.GlobalTaxTotal, "18.00")
	assertAmount(t, "Total", amounts.Total, "198.00")
}

func TestModernDiscountBeforeTaxShrinksBase(t *testing.T) {
	doc := &models.Document{
		ID:             1,
		BusinessId:     "biz-1",
		DocumentType:   models.DocumentTypeInvoice,
		Sign:           models.SignNormal,
		IncludeItemTax: boolPtr(false),
		DiscountAmount: dec("10"),
	}
	items := []models.DocumentItem{
		{Name: "Service", Quantity: dec("1"), Price: dec("100")},
	}
	amounts := compute(t, &models.DocumentCalcInput{
		Document:        doc,
		Items:           items,
		ItemTaxPercents: []decimal.Decimal{dec("20")},
		PaidTotal:       decimal.Zero,
	})

	assertAmount(t, "GlobalDiscountApplied", amounts.GlobalDiscountApplied, "10.00")
	assertAmount(t, "ItemTaxTotal", amounts.ItemTaxTotal, "18.00")
	assertAmount(t, "Total", amounts.Total, "108.00")
}

func TestModernDiscountAfterTaxKeepsBase(t *testing.T) {
	doc := &models.Document{
		ID:             1,
		BusinessId:     "biz-1",
		DocumentType:   models.DocumentTypeInvoice,
		Sign:           models.SignNormal,
		IncludeItemTax: boolPtr(true),
		DiscountAmount: dec("10"),
	}
	items := []models.DocumentItem{
		{Name: "Service", Quantity: dec("1"), Price: dec("100")},
	}
	amounts := compute(t, &models.DocumentCalcInput{
		Document:        doc,
		Items:           items,
		ItemTaxPercents: []decimal.Decimal{dec("20")},
		PaidTotal:       decimal.Zero,
	})

	assertAmount(t, "ItemTaxTotal", amounts.ItemTaxTotal, "20.00")
	assertAmount(t, "Total", amounts.Total, "110.00")
}

func TestModernItemDiscountReducesTaxableBase(t *testing.T) {
	doc := &models.Document{
		ID:           1,
		BusinessId:   "biz-1",
		DocumentType: models.DocumentTypeInvoice,
		Sign:         models.SignNormal,
	}
	items := []models.DocumentItem{
		{
			Name:          "Service",
			Quantity:      dec("1"),
			Price:         dec("200"),
			DiscountType:  discountTypePtr(models.DiscountTypePercent),
			DiscountValue: dec("25"),
		},
	}
	amounts := compute(t, &models.DocumentCalcInput{
		Document:        doc,
		Items:           items,
		ItemTaxPercents: []decimal.Decimal{dec("10")},
		PaidTotal:       decimal.Zero,
	})

	assertAmount(t, "ItemDiscountTotal", amounts.ItemDiscountTotal, "50.00")
	assertAmount(t, "ItemTaxTotal", amounts.ItemTaxTotal, "15.00")
	assertAmount(t, "Total", amounts.Total, "165.00")
}

func TestGlobalTaxOnModernDocumentRejected(t *testing.T) {
	doc := &models.Document{
		ID:           1,
		BusinessId:   "biz-1",
		DocumentType: models.DocumentTypeInvoice,
		Sign:         models.SignNormal,
	}
	_, _, _, err := models.ComputeDocumentAmounts(&models.DocumentCalcInput{
		Document:        doc,
		Items:           nil,
		ItemTaxPercents: nil,
		GlobalTaxRates: []models.DocumentTaxRate{
			{TaxRateId: 1, Percent: dec("5")},
		},
	})
	if !errors.Is(err, utils.ErrorInvariantViolation) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
}

func TestBothDiscountFieldsRejected(t *testing.T) {
	doc := &models.Document{
		ID:              1,
		BusinessId:      "biz-1",
		DocumentType:    models.DocumentTypeInvoice,
		Sign:            models.SignNormal,
		DiscountPercent: dec("5"),
		DiscountAmount:  dec("10"),
	}
	_, _, _, err := models.ComputeDocumentAmounts(&models.DocumentCalcInput{
		Document: doc,
	})
	if !errors.Is(err, utils.ErrorInvariantViolation) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
}

func TestEmptyItemNameRejected(t *testing.T) {
	doc := &models.Document{
		ID:           1,
		BusinessId:   "biz-1",
		DocumentType: models.DocumentTypeInvoice,
		Sign:         models.SignNormal,
	}
	_, _, _, err := models.ComputeDocumentAmounts(&models.DocumentCalcInput{
		Document:        doc,
		Items:           []models.DocumentItem{{Name: "  ", Quantity: dec("1"), Price: dec("10")}},
		ItemTaxPercents: []decimal.Decimal{decimal.Zero},
	})
	if !errors.Is(err, utils.ErrorValidationFailed) {
		t.Fatalf("expected validation failure, got %v", err)
	}
}

func TestDescriptiveZeroValueItemIsValid(t *testing.T) {
	doc := &models.Document{
		ID:           1,
		BusinessId:   "biz-1",
		DocumentType: models.DocumentTypeInvoice,
		Sign:         models.SignNormal,
	}
	amounts := compute(t, &models.DocumentCalcInput{
		Document: doc,
		Items: []models.DocumentItem{
			{Name: "See attached schedule"},
			{Name: "Consulting", Quantity: dec("1"), Price: dec("50")},
		},
		ItemTaxPercents: []decimal.Decimal{decimal.Zero, decimal.Zero},
	})
	assertAmount(t, "Total", amounts.Total, "50.00")
}

func TestCreditNoteNegatesTotalAndBalanceOnly(t *testing.T) {
	doc := &models.Document{
		ID:           1,
		BusinessId:   "biz-1",
		DocumentType: models.DocumentTypeInvoice,
		Sign:         models.SignCreditNote,
	}
	amounts := compute(t, &models.DocumentCalcInput{
		Document: doc,
		Items: []models.DocumentItem{
			{Name: "Refund", Quantity: dec("1"), Price: dec("100")},
		},
		ItemTaxPercents: []decimal.Decimal{dec("10")},
		PaidTotal:       decimal.Zero,
	})

	// Component columns stay positive; the sign lands on the bottom line.
	assertAmount(t, "ItemSubtotal", amounts.ItemSubtotal, "100.00")
	assertAmount(t, "ItemTaxTotal", amounts.ItemTaxTotal, "10.00")
	assertAmount(t, "Total", amounts.Total, "-110.00")
	assertAmount(t, "Balance", amounts.Balance, "-110.00")
}

func TestBalanceSubtractsPayments(t *testing.T) {
	doc := &models.Document{
		ID:           1,
		BusinessId:   "biz-1",
		DocumentType: models.DocumentTypeInvoice,
		Sign:         models.SignNormal,
	}
	amounts := compute(t, &models.DocumentCalcInput{
		Document: doc,
		Items: []models.DocumentItem{
			{Name: "Service", Quantity: dec("1"), Price: dec("100")},
		},
		ItemTaxPercents: []decimal.Decimal{decimal.Zero},
		PaidTotal:       dec("40"),
	})
	assertAmount(t, "Total", amounts.Total, "100.00")
	assertAmount(t, "Balance", amounts.Balance, "60.00")
}

func TestApportionedSharesSumExactly(t *testing.T) {
	// Three equal lines and a discount that does not divide by three. The
	// rounded shares must still sum exactly to the applied amount.
	doc := &models.Document{
		ID:             1,
		BusinessId:     "biz-1",
		DocumentType:   models.DocumentTypeInvoice,
		Sign:           models.SignNormal,
		DiscountAmount: dec("10"),
		IncludeItemTax: boolPtr(false),
	}
	items := []models.DocumentItem{
		{Name: "A", Quantity: dec("1"), Price: dec("10")},
		{Name: "B", Quantity: dec("1"), Price: dec("10")},
		{Name: "C", Quantity: dec("1"), Price: dec("10")},
	}

	resolved, err := models.ResolveGlobalDiscount(doc, items)
	if err != nil {
		t.Fatalf("ResolveGlobalDiscount: %v", err)
	}
	if len(resolved.Shares) != 3 {
		t.Fatalf("expected 3 shares, got %d", len(resolved.Shares))
	}
	sum := decimal.Zero
	for _, s := range resolved.Shares {
		sum = sum.Add(s)
	}
	if !sum.Equal(resolved.Amount) {
		t.Errorf("shares sum to %s, want %s", sum.String(), resolved.Amount.String())
	}
	assertAmount(t, "share[0]", resolved.Shares[0], "3.33")
	assertAmount(t, "share[1]", resolved.Shares[1], "3.33")
	assertAmount(t, "share[2]", resolved.Shares[2], "3.34")
}

func TestPercentDiscountConvertsAgainstPreDiscountSubtotal(t *testing.T) {
	doc := &models.Document{
		ID:              1,
		BusinessId:      "biz-1",
		DocumentType:    models.DocumentTypeInvoice,
		Sign:            models.SignNormal,
		DiscountPercent: dec("5"),
	}
	items := []models.DocumentItem{
		{Name: "A", Quantity: dec("2"), Price: dec("50")},
		{
			Name: "B", Quantity: dec("1"), Price: dec("100"),
			DiscountType: discountTypePtr(models.DiscountTypeAmount), DiscountValue: dec("20"),
		},
	}
	resolved, err := models.ResolveGlobalDiscount(doc, items)
	if err != nil {
		t.Fatalf("ResolveGlobalDiscount: %v", err)
	}
	// 5% of the full 200.00, not of the 180.00 left after item discounts.
	assertAmount(t, "Amount", resolved.Amount, "10.00")
}

func TestZeroValueItemGetsNoShare(t *testing.T) {
	doc := &models.Document{
		ID:             1,
		BusinessId:     "biz-1",
		DocumentType:   models.DocumentTypeInvoice,
		Sign:           models.SignNormal,
		DiscountAmount: dec("6"),
	}
	items := []models.DocumentItem{
		{Name: "Note only"},
		{Name: "A", Quantity: dec("1"), Price: dec("40")},
		{Name: "B", Quantity: dec("1"), Price: dec("20")},
	}
	resolved, err := models.ResolveGlobalDiscount(doc, items)
	if err != nil {
		t.Fatalf("ResolveGlobalDiscount: %v", err)
	}
	assertAmount(t, "share[0]", resolved.Shares[0], "0.00")
	assertAmount(t, "share[1]", resolved.Shares[1], "4.00")
	assertAmount(t, "share[2]", resolved.Shares[2], "2.00")
}

func TestLegacyIgnoresItemDiscounts(t *testing.T) {
	doc := &models.Document{
		ID:                1,
		BusinessId:        "biz-1",
		DocumentType:      models.DocumentTypeInvoice,
		LegacyCalculation: true,
		Sign:              models.SignNormal,
	}
	items := []models.DocumentItem{
		{
			Name: "Service", Quantity: dec("1"), Price: dec("100"),
			DiscountType: discountTypePtr(models.DiscountTypePercent), DiscountValue: dec("50"),
		},
	}
	amounts := compute(t, &models.DocumentCalcInput{
		Document:        doc,
		Items:           items,
		ItemTaxPercents: []decimal.Decimal{decimal.Zero},
	})
	assertAmount(t, "ItemDiscountTotal", amounts.ItemDiscountTotal, "0.00")
	assertAmount(t, "Total", amounts.Total, "100.00")
}

func TestRecomputeIsDeterministic(t *testing.T) {
	doc := &models.Document{
		ID:              1,
		BusinessId:      "biz-1",
		DocumentType:    models.DocumentTypeInvoice,
		Sign:            models.SignNormal,
		DiscountPercent: dec("7.5"),
		IncludeItemTax:  boolPtr(false),
	}
	items := []models.DocumentItem{
		{Name: "A", Quantity: dec("3"), Price: dec("19.99")},
		{Name: "B", Quantity: dec("0.5"), Price: dec("120")},
		{
			Name: "C", Quantity: dec("2"), Price: dec("45.45"),
			DiscountType: discountTypePtr(models.DiscountTypePercent), DiscountValue: dec("12.5"),
		},
	}
	percents := []decimal.Decimal{dec("5"), decimal.Zero, dec("7")}

	in := &models.DocumentCalcInput{
		Document:        doc,
		Items:           items,
		ItemTaxPercents: percents,
		PaidTotal:       dec("25"),
	}
	first := compute(t, in)
	second := compute(t, in)

	if utils.FormatAmount(first.Total) != utils.FormatAmount(second.Total) ||
		utils.FormatAmount(first.Balance) != utils.FormatAmount(second.Balance) {
		t.Errorf("recompute not stable: %s/%s vs %s/%s",
			utils.FormatAmount(first.Total), utils.FormatAmount(first.Balance),
			utils.FormatAmount(second.Total), utils.FormatAmount(second.Balance))
	}
}

func TestCopiedItemsProduceIdenticalTotals(t *testing.T) {
	// A copied document carries the same item values under a fresh identity;
	// its recompute must land on the same figures as the source's.
	source := &models.Document{
		ID:              1,
		BusinessId:      "biz-1",
		DocumentType:    models.DocumentTypeInvoice,
		Sign:            models.SignNormal,
		DiscountPercent: dec("7.5"),
		IncludeItemTax:  boolPtr(false),
	}
	items := []models.DocumentItem{
		{ID: 11, DocumentId: 1, Name: "A", Quantity: dec("3"), Price: dec("19.99")},
		{
			ID: 12, DocumentId: 1, Name: "B", Quantity: dec("2"), Price: dec("45.45"),
			DiscountType: discountTypePtr(models.DiscountTypePercent), DiscountValue: dec("12.5"),
		},
	}
	percents := []decimal.Decimal{dec("5"), dec("7")}

	original := compute(t, &models.DocumentCalcInput{
		Document:        source,
		Items:           items,
		ItemTaxPercents: percents,
	})

	clone := *source
	clone.ID = 2
	clonedItems := make([]models.DocumentItem, len(items))
	copy(clonedItems, items)
	for i := range clonedItems {
		clonedItems[i].ID = 0
		clonedItems[i].DocumentId = clone.ID
	}
	copied := compute(t, &models.DocumentCalcInput{
		Document:        &clone,
		Items:           clonedItems,
		ItemTaxPercents: percents,
	})

	if utils.FormatAmount(original.Total) != utils.FormatAmount(copied.Total) ||
		utils.FormatAmount(original.Balance) != utils.FormatAmount(copied.Balance) {
		t.Errorf("copy totals %s/%s differ from source %s/%s",
			utils.FormatAmount(copied.Total), utils.FormatAmount(copied.Balance),
			utils.FormatAmount(original.Total), utils.FormatAmount(original.Balance))
	}
}

func TestManyTinyLinesStayRoundingStable(t *testing.T) {
	// 100 lines of 0.01 at 3.33%: each line's tax rounds to zero, so the
	// document total must be exactly the subtotal, not a drifted sum.
	doc := &models.Document{
		ID:           1,
		BusinessId:   "biz-1",
		DocumentType: models.DocumentTypeInvoice,
		Sign:         models.SignNormal,
	}
	items := make([]models.DocumentItem, 100)
	percents := make([]decimal.Decimal, 100)
	for i := range items {
		items[i] = models.DocumentItem{Name: "Line", Quantity: dec("1"), Price: dec("0.01")}
		percents[i] = dec("3.33")
	}

	amounts := compute(t, &models.DocumentCalcInput{
		Document:        doc,
		Items:           items,
		ItemTaxPercents: percents,
	})

	assertAmount(t, "ItemSubtotal", amounts.ItemSubtotal, "1.00")
	assertAmount(t, "ItemTaxTotal", amounts.ItemTaxTotal, "0.00")
	assertAmount(t, "Total", amounts.Total, "1.00")
}

func TestTotalsInvariantHolds(t *testing.T) {
	cases := []struct {
		name string
		in   *models.DocumentCalcInput
	}{
		{
			name: "legacy with stacked rates",
			in: &models.DocumentCalcInput{
				Document: &models.Document{
					ID: 1, BusinessId: "biz-1", DocumentType: models.DocumentTypeInvoice,
					LegacyCalculation: true, Sign: models.SignNormal, DiscountPercent: dec("10"),
				},
				Items: []models.DocumentItem{
					{Name: "A", Quantity: dec("3"), Price: dec("33.33")},
					{Name: "B", Quantity: dec("1"), Price: dec("0.01")},
				},
				ItemTaxPercents: []decimal.Decimal{dec("5"), decimal.Zero},
				GlobalTaxRates: []models.DocumentTaxRate{
					{TaxRateId: 1, Percent: dec("7")},
					{TaxRateId: 2, Percent: dec("3")},
				},
			},
		},
		{
			name: "modern before-tax with apportionment",
			in: &models.DocumentCalcInput{
				Document: &models.Document{
					ID: 1, BusinessId: "biz-1", DocumentType: models.DocumentTypeInvoice,
					Sign: models.SignNormal, DiscountAmount: dec("13.37"), IncludeItemTax: boolPtr(false),
				},
				Items: []models.DocumentItem{
					{Name: "A", Quantity: dec("7"), Price: dec("11.11")},
					{Name: "B", Quantity: dec("2"), Price: dec("9.99")},
					{Name: "C", Quantity: dec("1"), Price: dec("0.03")},
				},
				ItemTaxPercents: []decimal.Decimal{dec("5"), dec("10"), decimal.Zero},
			},
		},
		{
			name: "modern after-tax credit note",
			in: &models.DocumentCalcInput{
				Document: &models.Document{
					ID: 1, BusinessId: "biz-1", DocumentType: models.DocumentTypeInvoice,
					Sign: models.SignCreditNote, DiscountPercent: dec("2.5"), IncludeItemTax: boolPtr(true),
				},
				Items: []models.DocumentItem{
					{Name: "A", Quantity: dec("4"), Price: dec("25.25")},
				},
				ItemTaxPercents: []decimal.Decimal{dec("8")},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			amounts := compute(t, tc.in)
			sign := decimal.NewFromInt(int64(tc.in.Document.Sign))
			want := amounts.ItemSubtotal.
				Sub(amounts.ItemDiscountTotal).
				Sub(amounts.GlobalDiscountApplied).
				Add(amounts.ItemTaxTotal).
				Add(amounts.GlobalTaxTotal).
				Mul(sign)
			if !amounts.Total.Equal(want) {
				t.Errorf("total %s does not satisfy the identity, want %s",
					amounts.Total.String(), want.String())
			}
		})
	}
}
