package models

import (
	"fmt"
	"strings"

	"bitbucket.org/mmdatafocus/invoicing_backend/utils"
	"github.com/shopspring/decimal"
)

// This file is the pure half of the amount-calculation engine: no DB access,
// no side effects. CalculateDocumentAmounts (amounts.go) loads the rows,
// calls into here, and persists the result.

// ItemValuation is the per-item output of the valuator.
type ItemValuation struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	GlobalShare    decimal.Decimal `json:"global_share"`
	TaxableBase    decimal.Decimal `json:"taxable_base"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Total          decimal.Decimal `json:"total"`
}

// ResolvedDiscount is the single active global discount after mutual
// exclusivity has been enforced, plus the modern-regime per-item
// apportionment.
type ResolvedDiscount struct {
	// Percent is the surviving percent entry; zero when an amount was set.
	Percent decimal.Decimal `json:"percent"`
	// Amount is the absolute discount actually applied, materialized even
	// when the user entered a percent.
	Amount decimal.Decimal `json:"amount"`
	// Shares apportions Amount across items proportionally to each item's
	// subtotal; parallel to the item slice and summing exactly to Amount.
	// Empty in the legacy regime.
	Shares []decimal.Decimal `json:"shares"`
}

// DocumentCalcInput is the fully loaded state one recompute operates on.
// ItemTaxPercents is parallel to Items (zero when the item carries no rate);
// GlobalTaxRates carry catalog-refreshed percents.
type DocumentCalcInput struct {
	Document        *Document
	Items           []DocumentItem
	ItemTaxPercents []decimal.Decimal
	GlobalTaxRates  []DocumentTaxRate
	PaidTotal       decimal.Decimal
}

func itemSubtotal(item *DocumentItem) decimal.Decimal {
	return utils.RoundAmount(item.Quantity.Mul(item.Price))
}

func validateItem(item *DocumentItem) error {
	// A value-less line with a name is a valid descriptive row. A line with
	// values but no name is not.
	if strings.TrimSpace(item.Name) == "" {
		return fmt.Errorf("%w: item name is required", utils.ErrorValidationFailed)
	}
	if item.Quantity.IsNegative() {
		return fmt.Errorf("%w: item quantity must not be negative", utils.ErrorValidationFailed)
	}
	if item.DiscountType != nil && !item.DiscountType.Valid() {
		return fmt.Errorf("%w: invalid item discount type", utils.ErrorValidationFailed)
	}
	return nil
}

// ResolveGlobalDiscount enforces the amount-XOR-percent rule and converts a
// percent entry to an absolute amount against the pre-discount item subtotal.
// Finding both fields non-zero here means upstream resolution was skipped;
// that surfaces as a hard invariant failure instead of a silent pick.
func ResolveGlobalDiscount(doc *Document, items []DocumentItem) (ResolvedDiscount, error) {
	resolved := ResolvedDiscount{Percent: decimal.Zero, Amount: decimal.Zero}

	hasPercent := doc.DiscountPercent.GreaterThan(decimal.Zero)
	hasAmount := doc.DiscountAmount.GreaterThan(decimal.Zero)
	if hasPercent && hasAmount {
		return resolved, fmt.Errorf("%w: both discount percent and amount set", utils.ErrorInvariantViolation)
	}

	subtotal := decimal.Zero
	for i := range items {
		subtotal = subtotal.Add(itemSubtotal(&items[i]))
	}

	switch {
	case hasAmount:
		resolved.Amount = utils.RoundAmount(doc.DiscountAmount)
	case hasPercent:
		resolved.Percent = doc.DiscountPercent
		resolved.Amount = utils.PercentOf(subtotal, doc.DiscountPercent)
	default:
		return resolved, nil
	}

	// Modern regime: spread the absolute discount across items proportionally
	// to their subtotal share. Each share is rounded to the money scale and
	// the last priced item absorbs the remainder, so the shares always sum
	// exactly to the applied amount.
	if !doc.LegacyCalculation && resolved.Amount.GreaterThan(decimal.Zero) && subtotal.GreaterThan(decimal.Zero) {
		resolved.Shares = make([]decimal.Decimal, len(items))
		lastPriced := -1
		for i := range items {
			if itemSubtotal(&items[i]).GreaterThan(decimal.Zero) {
				lastPriced = i
			}
		}
		allocated := decimal.Zero
		for i := range items {
			sub := itemSubtotal(&items[i])
			if !sub.GreaterThan(decimal.Zero) || i == lastPriced {
				resolved.Shares[i] = decimal.Zero
				continue
			}
			share := utils.RoundAmount(resolved.Amount.Mul(sub).Div(subtotal))
			resolved.Shares[i] = share
			allocated = allocated.Add(share)
		}
		if lastPriced >= 0 {
			resolved.Shares[lastPriced] = resolved.Amount.Sub(allocated)
		}
	}

	return resolved, nil
}

// ValueItem computes one line's money figures.
//
// legacy regime: item discounts and apportionment do not exist; the item tax,
// if any, is computed on the bare subtotal.
//
// modern regime: includeItemTax selects the discount/tax ordering. false
// applies the apportioned global discount before tax (it shrinks the taxable
// base); true taxes the post-item-discount subtotal and leaves the global
// discount to be subtracted at the document level.
func ValueItem(item *DocumentItem, taxPercent decimal.Decimal, globalShare decimal.Decimal, legacy bool, includeItemTax bool) ItemValuation {
	subtotal := itemSubtotal(item)

	discount := decimal.Zero
	if !legacy && item.DiscountType != nil {
		discount = utils.CalculateDiscountAmount(subtotal, item.DiscountValue, string(*item.DiscountType))
	}

	share := decimal.Zero
	if !legacy && !includeItemTax {
		share = globalShare
	}

	base := subtotal.Sub(discount).Sub(share)
	tax := utils.CalculateTaxAmount(base, taxPercent)

	return ItemValuation{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		GlobalShare:    share,
		TaxableBase:    base,
		TaxAmount:      tax,
		Total:          base.Add(tax),
	}
}

// ComputeDocumentAmounts runs the whole recompute in memory and returns the
// replacement amounts row plus the per-item valuations and per-attachment
// global tax amounts the caller persists alongside it.
//
// Invariant: total = item_subtotal - item_discount_total -
// global_discount_applied + item_tax_total + global_tax_total, with the
// document sign applied as the final multiplier on total and balance only.
func ComputeDocumentAmounts(in *DocumentCalcInput) (*DocumentAmounts, []ItemValuation, []decimal.Decimal, error) {
	doc := in.Document
	if doc == nil {
		return nil, nil, nil, utils.ErrorRecordNotFound
	}
	if len(in.ItemTaxPercents) != len(in.Items) {
		return nil, nil, nil, fmt.Errorf("%w: item tax percents out of step with items", utils.ErrorInvariantViolation)
	}
	if !doc.LegacyCalculation && len(in.GlobalTaxRates) > 0 {
		return nil, nil, nil, fmt.Errorf("%w: document-level tax rates on a non-legacy document", utils.ErrorInvariantViolation)
	}
	if !doc.Sign.Valid() {
		return nil, nil, nil, fmt.Errorf("%w: invalid document sign", utils.ErrorInvariantViolation)
	}

	for i := range in.Items {
		if err := validateItem(&in.Items[i]); err != nil {
			return nil, nil, nil, err
		}
	}

	discount, err := ResolveGlobalDiscount(doc, in.Items)
	if err != nil {
		return nil, nil, nil, err
	}

	includeItemTax := doc.IncludeItemTax != nil && *doc.IncludeItemTax

	subtotal := decimal.Zero
	itemDiscountTotal := decimal.Zero
	itemTaxTotal := decimal.Zero

	valuations := make([]ItemValuation, len(in.Items))
	for i := range in.Items {
		share := decimal.Zero
		if discount.Shares != nil {
			share = discount.Shares[i]
		}
		v := ValueItem(&in.Items[i], in.ItemTaxPercents[i], share, doc.LegacyCalculation, includeItemTax)
		valuations[i] = v

		subtotal = subtotal.Add(v.Subtotal)
		itemDiscountTotal = itemDiscountTotal.Add(v.DiscountAmount)
		itemTaxTotal = itemTaxTotal.Add(v.TaxAmount)
	}

	// Legacy regime: every attached rate taxes the same post-discount base,
	// stacked additively, never compounded.
	globalTaxTotal := decimal.Zero
	globalTaxAmounts := make([]decimal.Decimal, len(in.GlobalTaxRates))
	if doc.LegacyCalculation {
		globalBase := subtotal.Sub(discount.Amount)
		for i := range in.GlobalTaxRates {
			amount := utils.CalculateTaxAmount(globalBase, in.GlobalTaxRates[i].Percent)
			globalTaxAmounts[i] = amount
			globalTaxTotal = globalTaxTotal.Add(amount)
		}
	}

	total := subtotal.
		Sub(itemDiscountTotal).
		Sub(discount.Amount).
		Add(itemTaxTotal).
		Add(globalTaxTotal)
	balance := total.Sub(in.PaidTotal)

	sign := decimal.NewFromInt(int64(doc.Sign))

	amounts := &DocumentAmounts{
		BusinessId:            doc.BusinessId,
		DocumentId:            doc.ID,
		ItemSubtotal:          subtotal,
		ItemDiscountTotal:     itemDiscountTotal,
		ItemTaxTotal:          itemTaxTotal,
		GlobalTaxTotal:        globalTaxTotal,
		GlobalDiscountApplied: discount.Amount,
		Total:                 total.Mul(sign),
		Balance:               balance.Mul(sign),
	}
	return amounts, valuations, globalTaxAmounts, nil
}
