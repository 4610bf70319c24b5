package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/invoicing_backend/config"
	"bitbucket.org/mmdatafocus/invoicing_backend/utils"
	"github.com/shopspring/decimal"
)

// DocumentItem is one line on a document. Subtotal/DiscountAmount/TaxAmount/
// TotalAmount are derived columns refreshed by the recalculator; everything
// else is user input.
type DocumentItem struct {
	ID             int             `gorm:"primary_key" json:"id"`
	BusinessId     string          `gorm:"index;not null" json:"business_id" binding:"required"`
	DocumentId     int             `gorm:"index;not null" json:"document_id" binding:"required"`
	ProductId      int             `gorm:"index;default:null" json:"product_id"`
	TaskId         *int            `gorm:"index;default:null" json:"task_id"`
	Name           string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Description    string          `gorm:"size:255;default:null" json:"description"`
	Quantity       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	Price          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	DiscountValue  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount_value"`
	DiscountType   *DiscountType   `gorm:"type:enum('P','A');default:null" json:"discount_type"`
	TaxRateId      int             `gorm:"default:null" json:"tax_rate_id"`
	Position       int             `gorm:"not null;default:0" json:"position"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount_amount"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewDocumentItem struct {
	ProductId     int             `json:"product_id"`
	TaskId        *int            `json:"task_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	DiscountType  *DiscountType   `json:"discount_type"`
	TaxRateId     int             `json:"tax_rate_id"`
	Position      int             `json:"position"`
}

func (input *NewDocumentItem) validate(ctx context.Context, businessId string) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: item name is required", utils.ErrorValidationFailed)
	}
	if input.Quantity.IsNegative() || input.Price.IsNegative() {
		return fmt.Errorf("%w: item quantity and price must not be negative", utils.ErrorValidationFailed)
	}
	if input.DiscountType != nil && !input.DiscountType.Valid() {
		return fmt.Errorf("%w: invalid item discount type", utils.ErrorValidationFailed)
	}
	if input.TaxRateId > 0 {
		if err := utils.ValidateResourceId[TaxRate](ctx, businessId, input.TaxRateId); err != nil {
			return err
		}
	}
	if input.ProductId > 0 {
		if err := utils.ValidateResourceId[Product](ctx, businessId, input.ProductId); err != nil {
			return err
		}
	}
	return nil
}

// SaveDocumentItem creates (itemId == 0) or updates one line, pulls product
// defaults for unset price/tax, marks a referenced task invoiced, and
// recomputes the document before the transaction commits.
//
// Legacy documents silently drop per-item discount input: the legacy regime
// has no item-discount concept, and storing one would change totals if the
// document were ever recomputed under different code.
func SaveDocumentItem(ctx context.Context, documentId int, itemId int, input *NewDocumentItem) (*DocumentItem, error) {
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
	if err = input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	// Product defaults: only fill what the caller left unset.
	price := input.Price
	taxRateId := input.TaxRateId
	if input.ProductId > 0 && (price.IsZero() || taxRateId == 0) {
		product, prodErr := utils.FetchModel[Product](ctx, businessId, input.ProductId)
		if prodErr != nil {
			return nil, prodErr
		}
		if price.IsZero() {
			price = product.Price
		}
		if taxRateId == 0 {
			taxRateId = product.TaxRateId
		}
	}

	discountValue := input.DiscountValue
	discountType := input.DiscountType
	if doc.LegacyCalculation {
		discountValue = decimal.Zero
		discountType = nil
	}

	var task *Task
	if input.TaskId != nil && *input.TaskId > 0 {
		task, err = utils.FetchModel[Task](ctx, businessId, *input.TaskId)
		if err != nil {
			return nil, err
		}
	}

	db := config.GetDB()
	var saved DocumentItem
	err = utils.WithDocumentLock(ctx, businessId, documentId, "models", "SaveDocumentItem", func() error {
		tx := db.Begin()
		defer func() {
			if r := recover(); r != nil {
				tx.Rollback()
				panic(r)
			}
		}()

		if itemId > 0 {
			var existing DocumentItem
			txErr := tx.WithContext(ctx).
				Where("business_id = ? AND document_id = ? AND id = ?", businessId, documentId, itemId).
				First(&existing).Error
			if txErr != nil {
				tx.Rollback()
				return utils.ErrorRecordNotFound
			}
			saved = existing
		}

		saved.BusinessId = businessId
		saved.DocumentId = documentId
		saved.ProductId = input.ProductId
		saved.TaskId = input.TaskId
		saved.Name = input.Name
		saved.Description = input.Description
		saved.Quantity = input.Quantity
		saved.Price = price
		saved.DiscountValue = discountValue
		saved.DiscountType = discountType
		saved.TaxRateId = taxRateId
		saved.Position = input.Position

		if txErr := tx.WithContext(ctx).Save(&saved).Error; txErr != nil {
			tx.Rollback()
			return txErr
		}

		if task != nil && task.Status != TaskStatusInvoiced {
			txErr := tx.WithContext(ctx).Model(&Task{}).
				Where("business_id = ? AND id = ?", businessId, task.ID).
				Update("Status", TaskStatusInvoiced).Error
			if txErr != nil {
				tx.Rollback()
				return txErr
			}
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
	return &saved, nil
}

// DeleteDocumentItem removes one line and recomputes the document.
func DeleteDocumentItem(ctx context.Context, documentId int, itemId int) error {
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
	return utils.WithDocumentLock(ctx, businessId, documentId, "models", "DeleteDocumentItem", func() error {
		tx := db.Begin()
		defer func() {
			if r := recover(); r != nil {
				tx.Rollback()
				panic(r)
			}
		}()

		result := tx.WithContext(ctx).
			Where("business_id = ? AND document_id = ? AND id = ?", businessId, documentId, itemId).
			Delete(&DocumentItem{})
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
