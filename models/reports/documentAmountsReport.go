package reports

import (
	"context"
	"errors"
	"io"
	"time"

	"bitbucket.org/mmdatafocus/invoicing_backend/config"
	"bitbucket.org/mmdatafocus/invoicing_backend/models"
	"bitbucket.org/mmdatafocus/invoicing_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DocumentAmountsResponse struct {
	DocumentId            int             `json:"DocumentId"`
	DocumentNumber        string          `json:"DocumentNumber"`
	DocumentType          string          `json:"DocumentType"`
	Status                string          `json:"Status"`
	Sign                  int             `json:"Sign"`
	ItemSubtotal          decimal.Decimal `json:"ItemSubtotal"`
	ItemDiscountTotal     decimal.Decimal `json:"ItemDiscountTotal"`
	GlobalDiscountApplied decimal.Decimal `json:"GlobalDiscountApplied"`
	ItemTaxTotal          decimal.Decimal `json:"ItemTaxTotal"`
	GlobalTaxTotal        decimal.Decimal `json:"GlobalTaxTotal"`
	Total                 decimal.Decimal `json:"Total"`
	Balance               decimal.Decimal `json:"Balance"`
}

// GetDocumentAmountsReport lists the persisted amounts row for every document
// in the date range, alongside enough header columns to read the report
// standalone. Raw SQL bypasses the tenant plugin, so business_id is bound
// here explicitly.
func GetDocumentAmountsReport(ctx context.Context, fromDate time.Time, toDate time.Time) ([]*DocumentAmountsResponse, error) {

	sql := `
SELECT
    documents.id AS document_id,
    documents.document_number,
    documents.document_type,
    documents.status,
    documents.sign,
    da.item_subtotal,
    da.item_discount_total,
    da.global_discount_applied,
    da.item_tax_total,
    da.global_tax_total,
    da.total,
    da.balance
FROM
    documents
        INNER JOIN
    document_amounts AS da ON da.document_id = documents.id
        AND da.business_id = documents.business_id
WHERE
    documents.business_id = @businessId
        AND documents.document_date BETWEEN @fromDate AND @toDate
ORDER BY documents.document_date ASC , documents.id ASC;
`

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	var records []*DocumentAmountsResponse
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"businessId": businessId,
		"fromDate":   fromDate,
		"toDate":     toDate,
	}).Scan(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

func ExportDocumentAmountsReport(ctx context.Context, w io.Writer, fromDate time.Time, toDate time.Time) error {
	records, err := GetDocumentAmountsReport(ctx, fromDate, toDate)
	if err != nil {
		return err
	}

	exporters := make([]ExcelExporter, 0, len(records))
	for _, r := range records {
		exporters = append(exporters, r)
	}

	return exportExcel(w, []string{
		"Document Number", "Type", "Status",
		"Item Subtotal", "Item Discount", "Global Discount",
		"Item Tax", "Global Tax", "Total", "Balance",
	}, exporters)
}

func (r DocumentAmountsResponse) GetCellValues() []interface{} {
	return []interface{}{
		r.DocumentNumber,
		r.DocumentType,
		r.Status,
		utils.FormatAmount(r.ItemSubtotal),
		utils.FormatAmount(r.ItemDiscountTotal),
		utils.FormatAmount(r.GlobalDiscountApplied),
		utils.FormatAmount(r.ItemTaxTotal),
		utils.FormatAmount(r.GlobalTaxTotal),
		utils.FormatAmount(r.Total),
		utils.FormatAmount(r.Balance),
	}
}

// VerifyDocumentAmounts re-derives every document's totals and compares them
// against the persisted row, returning the ids that disagree. Comparison is
// on the formatted 2dp strings, the same representation callers see.
func VerifyDocumentAmounts(ctx context.Context) ([]int, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var ids []int
	err := db.WithContext(ctx).Model(&models.Document{}).
		Where("business_id = ?", businessId).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}

	var mismatched []int
	for _, id := range ids {
		var persisted models.DocumentAmounts
		err := db.WithContext(ctx).
			Where("business_id = ? AND document_id = ?", businessId, id).
			First(&persisted).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				mismatched = append(mismatched, id)
				continue
			}
			return nil, err
		}
		fresh, err := models.DeriveDocumentAmounts(ctx, id)
		if err != nil {
			return nil, err
		}
		if utils.FormatAmount(persisted.Total) != utils.FormatAmount(fresh.Total) ||
			utils.FormatAmount(persisted.Balance) != utils.FormatAmount(fresh.Balance) {
			mismatched = append(mismatched, id)
		}
	}
	return mismatched, nil
}
