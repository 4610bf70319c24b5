package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

// DocumentType separates invoices from quotes. Both share the same
// calculation engine and amounts shape.
type DocumentType string

const (
	DocumentTypeInvoice DocumentType = "Invoice"
	DocumentTypeQuote   DocumentType = "Quote"
)

func (t DocumentType) Valid() bool {
	return t == DocumentTypeInvoice || t == DocumentTypeQuote
}

type DocumentStatus string

const (
	DocumentStatusDraft    DocumentStatus = "Draft"
	DocumentStatusSent     DocumentStatus = "Sent"
	DocumentStatusViewed   DocumentStatus = "Viewed"
	DocumentStatusPaid     DocumentStatus = "Paid"
	DocumentStatusOverdue  DocumentStatus = "Overdue"
	DocumentStatusApproved DocumentStatus = "Approved"
	DocumentStatusRejected DocumentStatus = "Rejected"
	DocumentStatusCanceled DocumentStatus = "Canceled"
)

func (t DocumentStatus) Valid() bool {
	switch t {
	case DocumentStatusDraft, DocumentStatusSent, DocumentStatusViewed,
		DocumentStatusPaid, DocumentStatusOverdue, DocumentStatusApproved,
		DocumentStatusRejected, DocumentStatusCanceled:
		return true
	}
	return false
}

// DiscountType selects how a discount entry is interpreted.
// P = percent of the base, A = absolute amount. At most one global discount
// is active per document; amount wins when both arrive.
type DiscountType string

const (
	DiscountTypePercent DiscountType = "P"
	DiscountTypeAmount  DiscountType = "A"
)

func (t DiscountType) Valid() bool {
	return t == DiscountTypePercent || t == DiscountTypeAmount
}

func (t DiscountType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid discount type %q", string(t))
	}
	return string(t), nil
}

func (t *DiscountType) Scan(v any) error {
	switch s := v.(type) {
	case string:
		*t = DiscountType(s)
	case []byte:
		*t = DiscountType(s)
	default:
		return errors.New("discount type must be string")
	}
	return nil
}

// DocumentSign is +1 for normal documents and -1 for credit notes. It is
// applied as the final multiplier on total and balance, never folded into
// per-item arithmetic.
type DocumentSign int

const (
	SignNormal     DocumentSign = 1
	SignCreditNote DocumentSign = -1
)

func (s DocumentSign) Valid() bool {
	return s == SignNormal || s == SignCreditNote
}
