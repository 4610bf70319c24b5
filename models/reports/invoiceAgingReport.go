package reports

import (
	"context"
	"errors"
	"io"
	"time"

	"bitbucket.org/mmdatafocus/invoicing_backend/config"
	"bitbucket.org/mmdatafocus/invoicing_backend/utils"
	"github.com/shopspring/decimal"
)

type InvoiceAgingResponse struct {
	ClientId     int             `json:"ClientId"`
	InvoiceCount int             `json:"InvoiceCount"`
	Total        decimal.Decimal `json:"Total"`
	Current      decimal.Decimal `json:"Current"`
	Int1to15     decimal.Decimal `json:"Int1to15"`
	Int16to30    decimal.Decimal `json:"Int16to30"`
	Int31to45    decimal.Decimal `json:"Int31to45"`
	Int46plus    decimal.Decimal `json:"Int46plus"`
}

// GetInvoiceAgingReport buckets open invoice balances per client by days past
// due. Credit notes carry negative balances and net against the same buckets.
func GetInvoiceAgingReport(ctx context.Context, currentDate time.Time) ([]*InvoiceAgingResponse, error) {

	var results []*InvoiceAgingResponse
	sql := `
WITH InvoiceAging AS (
    SELECT
        documents.client_id,
        da.balance,
        CASE
            WHEN da.balance <> 0 AND documents.due_date IS NOT NULL
                THEN DATEDIFF(@currentDate, documents.due_date)
            ELSE 0
        END AS days_overdue
    FROM
        documents
            INNER JOIN
        document_amounts AS da ON da.document_id = documents.id
            AND da.business_id = documents.business_id
    WHERE
        documents.business_id = @businessId
            AND documents.document_type = 'Invoice'
            AND documents.document_date <= @currentDate
            AND documents.status NOT IN ('Draft' , 'Canceled')
            AND da.balance <> 0
)
SELECT
    client_id,
    COUNT(*) AS invoice_count,
    SUM(balance) AS total,
    SUM(CASE WHEN days_overdue <= 0 THEN balance ELSE 0 END) AS current,
    SUM(CASE WHEN days_overdue BETWEEN 1 AND 15 THEN balance ELSE 0 END) AS int1to15,
    SUM(CASE WHEN days_overdue BETWEEN 16 AND 30 THEN balance ELSE 0 END) AS int16to30,
    SUM(CASE WHEN days_overdue BETWEEN 31 AND 45 THEN balance ELSE 0 END) AS int31to45,
    SUM(CASE WHEN days_overdue > 45 THEN balance ELSE 0 END) AS int46plus
FROM
    InvoiceAging
GROUP BY client_id
ORDER BY client_id;
`

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"currentDate": currentDate,
		"businessId":  businessId,
	}).Scan(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func ExportInvoiceAgingReport(ctx context.Context, w io.Writer, currentDate time.Time) error {
	records, err := GetInvoiceAgingReport(ctx, currentDate)
	if err != nil {
		return err
	}

	exporters := make([]ExcelExporter, 0, len(records))
	for _, r := range records {
		exporters = append(exporters, r)
	}

	return exportExcel(w, []string{
		"Client", "Invoice Count", "Total",
		"Current", "1-15", "16-30", "31-45", "46+",
	}, exporters)
}

func (r InvoiceAgingResponse) GetCellValues() []interface{} {
	return []interface{}{
		r.ClientId,
		r.InvoiceCount,
		utils.FormatAmount(r.Total),
		utils.FormatAmount(r.Current),
		utils.FormatAmount(r.Int1to15),
		utils.FormatAmount(r.Int16to30),
		utils.FormatAmount(r.Int31to45),
		utils.FormatAmount(r.Int46plus),
	}
}
