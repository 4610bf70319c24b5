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

// Payment is recorded money against an invoice. The engine does not process
// payments; it only folds their sum into the balance during recompute.
type Payment struct {
	ID          int             `gorm:"primary_key" json:"id"`
	BusinessId  string          `gorm:"index;not null" json:"business_id" binding:"required"`
	DocumentId  int             `gorm:"index;not null" json:"document_id" binding:"required"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	PaymentDate time.Time       `gorm:"not null" json:"payment_date"`
	Method      string          `gorm:"size:100" json:"method"`
	Note        string          `gorm:"size:255;default:null" json:"note"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPayment struct {
	DocumentId  int             `json:"document_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"payment_date" validate:"required"`
	Method      string          `json:"method"`
	Note        string          `json:"note"`
}

// CreatePayment records a payment against an invoice and recomputes so the
// balance reflects it before the call returns. Quotes carry no balance and
// reject payments.
func CreatePayment(ctx context.Context, input *NewPayment) (*Payment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if !input.Amount.GreaterThan(decimal.Zero) {
		return nil, fmt.Errorf("%w: payment amount must be positive", utils.ErrorValidationFailed)
	}

	doc, err := utils.FetchModel[Document](ctx, businessId, input.DocumentId)
	if err != nil {
		return nil, err
	}
	if doc.DocumentType != DocumentTypeInvoice {
		return nil, fmt.Errorf("%w: payments apply to invoices only", utils.ErrorValidationFailed)
	}

	payment := Payment{
		BusinessId:  businessId,
		DocumentId:  input.DocumentId,
		Amount:      utils.RoundAmount(input.Amount),
		PaymentDate: input.PaymentDate,
		Method:      input.Method,
		Note:        input.Note,
	}

	db := config.GetDB()
	err = utils.WithDocumentLock(ctx, businessId, input.DocumentId, "models", "CreatePayment", func() error {
		tx := db.Begin()
		defer func() {
			if r := recover(); r != nil {
				tx.Rollback()
				panic(r)
			}
		}()

		if txErr := tx.WithContext(ctx).Create(&payment).Error; txErr != nil {
			tx.Rollback()
			return txErr
		}
		if _, txErr := calculateDocumentAmountsTx(ctx, tx, businessId, input.DocumentId); txErr != nil {
			tx.Rollback()
			return txErr
		}
		return tx.Commit().Error
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// DeletePayment removes a recorded payment and restores the balance.
func DeletePayment(ctx context.Context, id int) error {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return errors.New("business id is required")
	}

	payment, err := utils.FetchModel[Payment](ctx, businessId, id)
	if err != nil {
		return err
	}

	db := config.GetDB()
	return utils.WithDocumentLock(ctx, businessId, payment.DocumentId, "models", "DeletePayment", func() error {
		tx := db.Begin()
		defer func() {
			if r := recover(); r != nil {
				tx.Rollback()
				panic(r)
			}
		}()

		if txErr := tx.WithContext(ctx).Delete(payment).Error; txErr != nil {
			tx.Rollback()
			return txErr
		}
		if _, txErr := calculateDocumentAmountsTx(ctx, tx, businessId, payment.DocumentId); txErr != nil {
			tx.Rollback()
			return txErr
		}
		return tx.Commit().Error
	})
}
