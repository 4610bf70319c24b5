package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/invoicing_backend/config"
	"bitbucket.org/mmdatafocus/invoicing_backend/utils"
	"github.com/shopspring/decimal"
)

// DocumentTaxRate is a legacy-regime, document-level tax attachment. It
// stores a name/percent/amount snapshot taken at calculation time, not just a
// reference: editing the catalog never rewrites history, only the next
// recompute refreshes the snapshot.
type DocumentTaxRate struct {
	ID         int             `gorm:"primary_key" json:"id"`
	BusinessId string          `gorm:"index;not null" json:"business_id" binding:"required"`
	DocumentId int             `gorm:"index;not null" json:"document_id" binding:"required"`
	TaxRateId  int             `gorm:"not null" json:"tax_rate_id" binding:"required"`
	Name       string          `gorm:"size:100;not null" json:"name"`
	Percent    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"percent"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// AttachDocumentTaxRate adds a global tax line to a legacy document and
// recomputes. Non-legacy documents have no document-level tax concept at all;
// getting here with one is an upstream bug, not bad user input.
func AttachDocumentTaxRate(ctx context.Context, documentId int, taxRateId int) (*DocumentTaxRate, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	doc, err := utils.FetchModel[Document](ctx, businessId, documentId)
	if err != nil {
		return nil, err
	}
	if doc.readOnly() {
		return nil, fmt.Errorf("%w: document is read-only", utils.ErrorValidationFailed)
	}
	if !doc.LegacyCalculation {
		return nil, fmt.Errorf("%w: document-level tax rates require the legacy regime", utils.ErrorInvariantViolation)
	}

	rate, err := utils.FetchModel[TaxRate](ctx, businessId, taxRateId)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	attachment := DocumentTaxRate{
		BusinessId: businessId,
		DocumentId: documentId,
		TaxRateId:  taxRateId,
		Name:       rate.Name,
		Percent:    rate.Percent,
	}

	err = utils.WithDocumentLock(ctx, businessId, documentId, "models", "AttachDocumentTaxRate", func() error {
		tx := db.Begin()
		defer func() {
			if r := recover(); r != nil {
				tx.Rollback()
				panic(r)
			}
		}()

		if txErr := tx.WithContext(ctx).Create(&attachment).Error; txErr != nil {
			tx.Rollback()
			return txErr
		}
		if _, txErr := calculateDocumentAmountsTx(ctx, tx, businessId, documentId); txErr != nil {
			tx.Rollback()
			return txErr
		}
		return tx.Commit().Error
	})
	if err != nil {
		return nil, err
	}
	return &attachment, nil
}

// DetachDocumentTaxRate removes one global tax line and recomputes.
func DetachDocumentTaxRate(ctx context.Context, documentId int, attachmentId int) error {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return errors.New("business id is required")
	}

	doc, err := utils.FetchModel[Document](ctx, businessId, documentId)
	if err != nil {
		return err
	}
	if doc.readOnly() {
		return fmt.Errorf("%w: document is read-only", utils.ErrorValidationFailed)
	}

	db := config.GetDB()
	return utils.WithDocumentLock(ctx, businessId, documentId, "models", "DetachDocumentTaxRate", func() error {
		tx := db.Begin()
		defer func() {
			if r := recover(); r != nil {
				tx.Rollback()
				panic(r)
			}
		}()

		result := tx.WithContext(ctx).
			Where("business_id = ? AND document_id = ? AND id = ?", businessId, documentId, attachmentId).
			Delete(&DocumentTaxRate{})
		if result.Error != nil {
			tx.Rollback()
			return result.Error
		}
		if result.RowsAffected == 0 {
			tx.Rollback()
			return utils.ErrorRecordNotFound
		}

		if _, txErr := calculateDocumentAmountsTx(ctx, tx, businessId, documentId); txErr != nil {
			tx.Rollback()
			return txErr
		}
		return tx.Commit().Error
	})
}
