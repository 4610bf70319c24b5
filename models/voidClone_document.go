package models

import (
	"context"
	"errors"
	"fmt"

	"bitbucket.org/mmdatafocus/invoicing_backend/config"
	"bitbucket.org/mmdatafocus/invoicing_backend/utils"
	"gorm.io/gorm"
)

// Copy/credit transforms. All three entry points clone the source header and
// items and then recompute the clone from scratch: the clone's totals must
// reflect today's tax catalog, not the source's historical snapshots.

type cloneOptions struct {
	documentType DocumentType
	sign         DocumentSign
	parentId     *int
}

func cloneDocumentTx(ctx context.Context, tx *gorm.DB, businessId string, source *Document, opts cloneOptions) (*Document, error) {
	seq, number, err := nextDocumentSequence(ctx, tx, businessId, opts.documentType)
	if err != nil {
		return nil, err
	}

	clone := Document{
		BusinessId:        businessId,
		ClientId:          source.ClientId,
		DocumentType:      opts.documentType,
		SequenceNo:        seq,
		DocumentNumber:    number,
		Status:            DocumentStatusDraft,
		LegacyCalculation: source.LegacyCalculation,
		Sign:              opts.sign,
		ParentId:          opts.parentId,
		IncludeItemTax:    source.IncludeItemTax,
		DiscountPercent:   source.DiscountPercent,
		DiscountAmount:    source.DiscountAmount,
		DocumentDate:      source.DocumentDate,
		DueDate:           source.DueDate,
		Terms:             source.Terms,
		Notes:             source.Notes,
	}
	if err = tx.WithContext(ctx).Create(&clone).Error; err != nil {
		return nil, err
	}

	var items []DocumentItem
	err = tx.WithContext(ctx).
		Where("business_id = ? AND document_id = ?", businessId, source.ID).
		Order("position ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		item.ID = 0
		item.DocumentId = clone.ID
		// Item totals stay positive on credit notes; the sign lives on the
		// document and is applied to the bottom line only.
		if err = tx.WithContext(ctx).Create(&item).Error; err != nil {
			return nil, err
		}
	}

	var attachments []DocumentTaxRate
	err = tx.WithContext(ctx).
		Where("business_id = ? AND document_id = ?", businessId, source.ID).
		Order("id ASC").
		Find(&attachments).Error
	if err != nil {
		return nil, err
	}
	for _, attachment := range attachments {
		attachment.ID = 0
		attachment.DocumentId = clone.ID
		if err = tx.WithContext(ctx).Create(&attachment).Error; err != nil {
			return nil, err
		}
	}

	if _, err = calculateDocumentAmountsTx(ctx, tx, businessId, clone.ID); err != nil {
		return nil, err
	}
	return &clone, nil
}

// CopyDocument duplicates a document. Status, number and the read-only flag
// are not carried over; totals are recomputed fresh, so catalog changes since
// the source was calculated show up on the copy and only on the copy.
func CopyDocument(ctx context.Context, sourceId int) (*Document, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	source, err := utils.FetchModel[Document](ctx, businessId, sourceId)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var clone *Document
	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	clone, err = cloneDocumentTx(ctx, tx, businessId, source, cloneOptions{
		documentType: source.DocumentType,
		sign:         SignNormal,
	})
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err = tx.Commit().Error; err != nil {
		return nil, err
	}
	return GetDocument(ctx, clone.ID)
}

// CreateCreditNote clones an invoice with sign -1 and a parent link. Totals
// come out as the negation of what the same items would produce on a normal
// invoice. Per configuration the source flips to read-only, freezing the
// invoice the credit note reverses.
func CreateCreditNote(ctx context.Context, sourceId int) (*Document, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	source, err := utils.FetchModel[Document](ctx, businessId, sourceId)
	if err != nil {
		return nil, err
	}
	if source.DocumentType != DocumentTypeInvoice {
		return nil, fmt.Errorf("%w: credit notes are created from invoices only", utils.ErrorValidationFailed)
	}
	if source.Sign == SignCreditNote {
		return nil, fmt.Errorf("%w: cannot credit a credit note", utils.ErrorValidationFailed)
	}

	db := config.GetDB()
	var clone *Document
	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	parentId := source.ID
	clone, err = cloneDocumentTx(ctx, tx, businessId, source, cloneOptions{
		documentType: DocumentTypeInvoice,
		sign:         SignCreditNote,
		parentId:     &parentId,
	})
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if config.ReadOnlyOnCreditNote() {
		readOnly := true
		err = tx.WithContext(ctx).Model(&Document{ID: source.ID, BusinessId: businessId}).
			Update("IsReadOnly", &readOnly).Error
		if err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err = tx.Commit().Error; err != nil {
		return nil, err
	}
	return GetDocument(ctx, clone.ID)
}

// ConvertQuoteToInvoice copies an approved (or draft) quote into a new draft
// invoice linked back to the quote.
func ConvertQuoteToInvoice(ctx context.Context, quoteId int) (*Document, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	source, err := utils.FetchModel[Document](ctx, businessId, quoteId)
	if err != nil {
		return nil, err
	}
	if source.DocumentType != DocumentTypeQuote {
		return nil, fmt.Errorf("%w: only quotes can be converted to invoices", utils.ErrorValidationFailed)
	}
	if source.Status == DocumentStatusRejected || source.Status == DocumentStatusCanceled {
		return nil, fmt.Errorf("%w: rejected or canceled quotes cannot be converted", utils.ErrorValidationFailed)
	}

	db := config.GetDB()
	var clone *Document
	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	parentId := source.ID
	clone, err = cloneDocumentTx(ctx, tx, businessId, source, cloneOptions{
		documentType: DocumentTypeInvoice,
		sign:         SignNormal,
		parentId:     &parentId,
	})
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err = tx.Commit().Error; err != nil {
		return nil, err
	}
	return GetDocument(ctx, clone.ID)
}
