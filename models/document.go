package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/invoicing_backend/config"
	"bitbucket.org/mmdatafocus/invoicing_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Document is an invoice or quote header. The calculation regime
// (LegacyCalculation) is stamped from configuration when the document is
// created and never re-read afterwards: flipping the global flag later must
// not corrupt totals that were computed under the old regime.
type Document struct {
	ID                int             `gorm:"primary_key" json:"id"`
	BusinessId        string          `gorm:"index;uniqueIndex:idx_document_sequence;not null" json:"business_id" binding:"required"`
	ClientId          int             `gorm:"index;not null" json:"client_id" binding:"required"`
	DocumentType      DocumentType    `gorm:"type:enum('Invoice','Quote');uniqueIndex:idx_document_sequence;not null" json:"document_type" binding:"required"`
	SequenceNo        int64           `gorm:"uniqueIndex:idx_document_sequence;not null" json:"sequence_no"`
	DocumentNumber    string          `gorm:"size:255;not null" json:"document_number"`
	Status            DocumentStatus  `gorm:"type:enum('Draft','Sent','Viewed','Paid','Overdue','Approved','Rejected','Canceled');not null;default:'Draft'" json:"status"`
	LegacyCalculation bool            `gorm:"not null;default:false" json:"legacy_calculation"`
	Sign              DocumentSign    `gorm:"not null;default:1" json:"sign"`
	ParentId          *int            `gorm:"index;default:null" json:"parent_id"`
	IncludeItemTax    *bool           `gorm:"not null;default:false" json:"include_item_tax"`
	DiscountPercent   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount_percent"`
	DiscountAmount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount_amount"`
	IsReadOnly        *bool           `gorm:"not null;default:false" json:"is_read_only"`
	DocumentDate      time.Time       `gorm:"not null" json:"document_date"`
	DueDate           *time.Time      `json:"due_date"`
	Terms             string          `gorm:"type:text;default:null" json:"terms"`
	Notes             string          `gorm:"type:text;default:null" json:"notes"`
	Items             []DocumentItem  `gorm:"foreignKey:DocumentId" json:"items"`
	TaxRates          []DocumentTaxRate `gorm:"foreignKey:DocumentId" json:"tax_rates"`
	Amounts           *DocumentAmounts  `gorm:"foreignKey:DocumentId" json:"amounts"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewDocument struct {
	ClientId        int             `json:"client_id" validate:"required"`
	DocumentType    DocumentType    `json:"document_type" validate:"required"`
	DocumentDate    time.Time       `json:"document_date" validate:"required"`
	DueDate         *time.Time      `json:"due_date"`
	IncludeItemTax  *bool           `json:"include_item_tax"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	Terms           string          `json:"terms"`
	Notes           string          `json:"notes"`
}

type UpdateDocumentInput struct {
	ClientId        int             `json:"client_id" validate:"required"`
	Status          DocumentStatus  `json:"status" validate:"required"`
	DocumentDate    time.Time       `json:"document_date" validate:"required"`
	DueDate         *time.Time      `json:"due_date"`
	IncludeItemTax  *bool           `json:"include_item_tax"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	Terms           string          `json:"terms"`
	Notes           string          `json:"notes"`
}

func (d *Document) readOnly() bool {
	return d.IsReadOnly != nil && *d.IsReadOnly
}

// resolveDiscountEntry enforces the amount-XOR-percent rule on raw input.
// When both arrive, the amount wins and the percent is cleared. This mirrors
// long-standing upstream behavior; it deliberately does not error.
func resolveDiscountEntry(percent decimal.Decimal, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if percent.IsNegative() || amount.IsNegative() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: discount must not be negative", utils.ErrorValidationFailed)
	}
	if amount.GreaterThan(decimal.Zero) {
		return decimal.Zero, amount, nil
	}
	return percent, decimal.Zero, nil
}

// resolveIncludeItemTax keeps the stored placement when the input omits it.
// The column is NOT NULL; a nil map value in an update would write SQL NULL.
func resolveIncludeItemTax(stored *bool, input *bool) *bool {
	if input != nil {
		return input
	}
	return stored
}

func nextDocumentSequence(ctx context.Context, tx *gorm.DB, businessId string, docType DocumentType) (int64, string, error) {
	var row struct {
		MaxSeq int64
	}
	err := tx.WithContext(ctx).Model(&Document{}).
		Select("COALESCE(MAX(sequence_no), 0) AS max_seq").
		Where("business_id = ? AND document_type = ?", businessId, docType).
		Scan(&row).Error
	if err != nil {
		return 0, "", err
	}

	seq := row.MaxSeq + 1
	prefix := "INV-"
	if docType == DocumentTypeQuote {
		prefix = "QUO-"
	}
	return seq, fmt.Sprintf("%s%d", prefix, seq), nil
}

// CreateDocument creates an empty invoice or quote and its initial (zero)
// amounts row in one transaction.
func CreateDocument(ctx context.Context, input *NewDocument) (*Document, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if !input.DocumentType.Valid() {
		return nil, fmt.Errorf("%w: invalid document type", utils.ErrorValidationFailed)
	}

	percent, amount, err := resolveDiscountEntry(input.DiscountPercent, input.DiscountAmount)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var doc Document
	for attempt := 0; ; attempt++ {
		seq, number, seqErr := nextDocumentSequence(ctx, tx, businessId, input.DocumentType)
		if seqErr != nil {
			tx.Rollback()
			return nil, seqErr
		}

		doc = Document{
			BusinessId:        businessId,
			ClientId:          input.ClientId,
			DocumentType:      input.DocumentType,
			SequenceNo:        seq,
			DocumentNumber:    number,
			Status:            DocumentStatusDraft,
			LegacyCalculation: config.LegacyCalculation(),
			Sign:              SignNormal,
			IncludeItemTax:    input.IncludeItemTax,
			DiscountPercent:   percent,
			DiscountAmount:    amount,
			DocumentDate:      input.DocumentDate,
			DueDate:           input.DueDate,
			Terms:             input.Terms,
			Notes:             input.Notes,
		}

		err = tx.WithContext(ctx).Create(&doc).Error
		if err == nil {
			break
		}
		// Concurrent creation races on the per-business sequence number.
		if utils.IsDuplicateKeyError(err) && attempt < 2 {
			continue
		}
		tx.Rollback()
		return nil, err
	}

	if _, err = calculateDocumentAmountsTx(ctx, tx, businessId, doc.ID); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err = tx.Commit().Error; err != nil {
		return nil, err
	}
	return GetDocument(ctx, doc.ID)
}

// UpdateDocument edits header fields and recomputes totals. Read-only
// documents reject every edit; documents with task-linked items reject client
// reassignment (billed time stays with the client it was worked for).
func UpdateDocument(ctx context.Context, id int, input *UpdateDocumentInput) (*Document, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if !input.Status.Valid() {
		return nil, fmt.Errorf("%w: invalid document status", utils.ErrorValidationFailed)
	}

	doc, err := utils.FetchModel[Document](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if doc.readOnly() {
		return nil, fmt.Errorf("%w: document is read-only", utils.ErrorValidationFailed)
	}

	if input.ClientId != doc.ClientId {
		taskLinked, countErr := utils.ResourceCountWhere[DocumentItem](ctx, businessId,
			"document_id = ? AND task_id IS NOT NULL AND task_id > 0", id)
		if countErr != nil {
			return nil, countErr
		}
		if taskLinked > 0 {
			return nil, fmt.Errorf("%w: document has task-linked items; client cannot be reassigned", utils.ErrorValidationFailed)
		}
	}

	percent, amount, err := resolveDiscountEntry(input.DiscountPercent, input.DiscountAmount)
	if err != nil {
		return nil, err
	}

	includeItemTax := resolveIncludeItemTax(doc.IncludeItemTax, input.IncludeItemTax)

	db := config.GetDB()
	var updated *Document
	err = utils.WithDocumentLock(ctx, businessId, id, "models", "UpdateDocument", func() error {
		tx := db.Begin()
		defer func() {
			if r := recover(); r != nil {
				tx.Rollback()
				panic(r)
			}
		}()

		txErr := tx.WithContext(ctx).Model(&Document{ID: id, BusinessId: businessId}).
			Updates(map[string]interface{}{
				"ClientId":        input.ClientId,
				"Status":          input.Status,
				"DocumentDate":    input.DocumentDate,
				"DueDate":         input.DueDate,
				"IncludeItemTax":  includeItemTax,
				"DiscountPercent": percent,
				"DiscountAmount":  amount,
				"Terms":           input.Terms,
				"Notes":           input.Notes,
			}).Error
		if txErr != nil {
			tx.Rollback()
			return txErr
		}

		if _, txErr = calculateDocumentAmountsTx(ctx, tx, businessId, id); txErr != nil {
			tx.Rollback()
			return txErr
		}
		return tx.Commit().Error
	})
	if err != nil {
		return nil, err
	}

	updated, err = GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// MarkDocumentReadOnly freezes a document. There is no unfreeze path.
func MarkDocumentReadOnly(ctx context.Context, id int) error {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return errors.New("business id is required")
	}
	if _, err := utils.FetchModel[Document](ctx, businessId, id); err != nil {
		return err
	}

	db := config.GetDB()
	readOnly := true
	return db.WithContext(ctx).Model(&Document{ID: id, BusinessId: businessId}).
		Update("IsReadOnly", &readOnly).Error
}

func GetDocument(ctx context.Context, id int) (*Document, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Document](ctx, businessId, id, "Items", "TaxRates", "Amounts")
}

// DeleteDocument removes a draft document and all of its dependents. Sent or
// read-only documents are never deleted.
func DeleteDocument(ctx context.Context, id int) error {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return errors.New("business id is required")
	}

	doc, err := utils.FetchModel[Document](ctx, businessId, id)
	if err != nil {
		return err
	}
	if doc.readOnly() {
		return fmt.Errorf("%w: document is read-only", utils.ErrorValidationFailed)
	}
	if doc.Status != DocumentStatusDraft {
		return fmt.Errorf("%w: only draft documents can be deleted", utils.ErrorValidationFailed)
	}

	db := config.GetDB()
	return utils.WithDocumentLock(ctx, businessId, id, "models", "DeleteDocument", func() error {
		tx := db.Begin()
		defer func() {
			if r := recover(); r != nil {
				tx.Rollback()
				panic(r)
			}
		}()

		for _, model := range []interface{}{&DocumentItem{}, &DocumentTaxRate{}, &Payment{}, &DocumentAmounts{}} {
			if txErr := tx.WithContext(ctx).Where("business_id = ? AND document_id = ?", businessId, id).Delete(model).Error; txErr != nil {
				tx.Rollback()
				return txErr
			}
		}
		if txErr := tx.WithContext(ctx).Delete(doc).Error; txErr != nil {
			tx.Rollback()
			return txErr
		}
		return tx.Commit().Error
	})
}
