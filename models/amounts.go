package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/invoicing_backend/config"
	"bitbucket.org/mmdatafocus/invoicing_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
)

// DocumentAmounts is the fully derived totals row, 1:1 with its document.
// Nothing patches it field-by-field; it only ever exists as the output of a
// full recompute, deleted and replaced wholesale inside the document's
// transaction.
type DocumentAmounts struct {
	ID                    int             `gorm:"primary_key" json:"id"`
	BusinessId            string          `gorm:"index;not null" json:"business_id"`
	DocumentId            int             `gorm:"uniqueIndex;not null" json:"document_id"`
	ItemSubtotal          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"item_subtotal"`
	ItemDiscountTotal     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"item_discount_total"`
	ItemTaxTotal          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"item_tax_total"`
	GlobalTaxTotal        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"global_tax_total"`
	GlobalDiscountApplied decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"global_discount_applied"`
	Total                 decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total"`
	Balance               decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance"`
	CreatedAt             time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// CalculateDocumentAmounts is the single public recompute entry point and the
// only writer of the document_amounts row. It is synchronous, idempotent and
// all-or-nothing: on any failure the previously persisted amounts row stays
// untouched (a stale row beats a half-written one).
func CalculateDocumentAmounts(ctx context.Context, documentId int) (*DocumentAmounts, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	if db == nil {
		return nil, errors.New("db is nil")
	}

	var amounts *DocumentAmounts
	err := utils.WithDocumentLock(ctx, businessId, documentId, "models", "CalculateDocumentAmounts", func() error {
		tx := db.Begin()
		defer func() {
			if r := recover(); r != nil {
				tx.Rollback()
				panic(r)
			}
		}()

		var calcErr error
		amounts, calcErr = calculateDocumentAmountsTx(ctx, tx, businessId, documentId)
		if calcErr != nil {
			tx.Rollback()
			return calcErr
		}
		return tx.Commit().Error
	})
	if err != nil {
		config.LoggerWithTrace(ctx, config.GetLogger()).
			WithFields(logrus.Fields{
				"module":     "models",
				"funcName":   "CalculateDocumentAmounts",
				"documentId": documentId,
			}).Error(err.Error())
		return nil, err
	}
	return amounts, nil
}

// DeriveDocumentAmounts computes a document's totals without persisting
// anything. Audit tooling uses it to compare against the stored row.
func DeriveDocumentAmounts(ctx context.Context, documentId int) (*DocumentAmounts, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	doc, err := utils.FetchModel[Document](ctx, businessId, documentId)
	if err != nil {
		return nil, err
	}

	var items []DocumentItem
	err = db.WithContext(ctx).
		Where("business_id = ? AND document_id = ?", businessId, documentId).
		Order("position ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	percents := make([]decimal.Decimal, len(items))
	catalog := map[int]*TaxRate{}
	for i := range items {
		id := items[i].TaxRateId
		if id <= 0 {
			percents[i] = decimal.Zero
			continue
		}
		rate, lookupErr := lookupTaxRate(ctx, db, businessId, id, catalog)
		if lookupErr != nil {
			return nil, lookupErr
		}
		percents[i] = rate.Percent
	}

	var attachments []DocumentTaxRate
	err = db.WithContext(ctx).
		Where("business_id = ? AND document_id = ?", businessId, documentId).
		Order("id ASC").
		Find(&attachments).Error
	if err != nil {
		return nil, err
	}
	for i := range attachments {
		rate, lookupErr := lookupTaxRate(ctx, db, businessId, attachments[i].TaxRateId, catalog)
		if lookupErr != nil {
			return nil, lookupErr
		}
		attachments[i].Name = rate.Name
		attachments[i].Percent = rate.Percent
	}

	paid, err := sumDocumentPayments(ctx, db, businessId, documentId)
	if err != nil {
		return nil, err
	}

	amounts, _, _, err := ComputeDocumentAmounts(&DocumentCalcInput{
		Document:        doc,
		Items:           items,
		ItemTaxPercents: percents,
		GlobalTaxRates:  attachments,
		PaidTotal:       paid,
	})
	if err != nil {
		return nil, err
	}
	return amounts, nil
}

// calculateDocumentAmountsTx runs the recompute inside the caller's
// transaction. Every mutation path (item save/delete, tax attach/detach,
// discount edit, payment, copy/credit) calls this before committing, so a
// reader can never observe inputs and totals out of step.
func calculateDocumentAmountsTx(ctx context.Context, tx *gorm.DB, businessId string, documentId int) (*DocumentAmounts, error) {
	ctx, span := otel.Tracer("models").Start(ctx, "calculateDocumentAmounts")
	defer span.End()

	var doc Document
	err := tx.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessId, documentId).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	var items []DocumentItem
	err = tx.WithContext(ctx).
		Where("business_id = ? AND document_id = ?", businessId, documentId).
		Order("position ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	// Resolve per-item tax percents from the catalog. A dangling reference
	// aborts the recompute instead of silently taxing at zero.
	percents := make([]decimal.Decimal, len(items))
	catalog := map[int]*TaxRate{}
	for i := range items {
		id := items[i].TaxRateId
		if id <= 0 {
			percents[i] = decimal.Zero
			continue
		}
		rate, lookupErr := lookupTaxRate(ctx, tx, businessId, id, catalog)
		if lookupErr != nil {
			return nil, lookupErr
		}
		percents[i] = rate.Percent
	}

	var attachments []DocumentTaxRate
	err = tx.WithContext(ctx).
		Where("business_id = ? AND document_id = ?", businessId, documentId).
		Order("id ASC").
		Find(&attachments).Error
	if err != nil {
		return nil, err
	}

	// Refresh attachment snapshots from the catalog. Historical totals only
	// move when a recompute runs; this is that recompute.
	for i := range attachments {
		rate, lookupErr := lookupTaxRate(ctx, tx, businessId, attachments[i].TaxRateId, catalog)
		if lookupErr != nil {
			return nil, lookupErr
		}
		attachments[i].Name = rate.Name
		attachments[i].Percent = rate.Percent
	}

	paid, err := sumDocumentPayments(ctx, tx, businessId, documentId)
	if err != nil {
		return nil, err
	}

	amounts, valuations, globalTaxAmounts, err := ComputeDocumentAmounts(&DocumentCalcInput{
		Document:        &doc,
		Items:           items,
		ItemTaxPercents: percents,
		GlobalTaxRates:  attachments,
		PaidTotal:       paid,
	})
	if err != nil {
		return nil, err
	}

	// Persist per-item derived columns so line figures render without
	// recomputing.
	for i := range items {
		v := valuations[i]
		err = tx.WithContext(ctx).Model(&DocumentItem{}).
			Where("business_id = ? AND id = ?", businessId, items[i].ID).
			Updates(map[string]interface{}{
				"Subtotal":       v.Subtotal,
				"DiscountAmount": v.DiscountAmount,
				"TaxAmount":      v.TaxAmount,
				"TotalAmount":    v.Total,
			}).Error
		if err != nil {
			return nil, err
		}
	}

	for i := range attachments {
		err = tx.WithContext(ctx).Model(&DocumentTaxRate{}).
			Where("business_id = ? AND id = ?", businessId, attachments[i].ID).
			Updates(map[string]interface{}{
				"Name":    attachments[i].Name,
				"Percent": attachments[i].Percent,
				"Amount":  globalTaxAmounts[i],
			}).Error
		if err != nil {
			return nil, err
		}
	}

	// Replace the amounts row wholesale.
	err = tx.WithContext(ctx).
		Where("business_id = ? AND document_id = ?", businessId, documentId).
		Delete(&DocumentAmounts{}).Error
	if err != nil {
		return nil, err
	}
	if err = tx.WithContext(ctx).Create(amounts).Error; err != nil {
		return nil, err
	}

	return amounts, nil
}

func lookupTaxRate(ctx context.Context, tx *gorm.DB, businessId string, id int, cache map[int]*TaxRate) (*TaxRate, error) {
	if rate, ok := cache[id]; ok {
		return rate, nil
	}
	var rate TaxRate
	err := tx.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessId, id).
		First(&rate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	cache[id] = &rate
	return &rate, nil
}

func sumDocumentPayments(ctx context.Context, tx *gorm.DB, businessId string, documentId int) (decimal.Decimal, error) {
	var row struct {
		Paid decimal.Decimal
	}
	err := tx.WithContext(ctx).Model(&Payment{}).
		Select("COALESCE(SUM(amount), 0) AS paid").
		Where("business_id = ? AND document_id = ?", businessId, documentId).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Paid, nil
}
