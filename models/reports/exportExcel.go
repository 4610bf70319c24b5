package reports

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

type ExcelExporter interface {
	GetCellValues() []interface{}
}

// exportExcel writes rows to a single-sheet workbook. Column letters run
// A..Z which is plenty for the reports here.
func exportExcel(w io.Writer, headings []string, rows []ExcelExporter) error {

	f := excelize.NewFile()
	sheetName := "Sheet1"
	_, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}

	col := 'A'
	for _, h := range headings {
		if err := f.SetCellValue(sheetName, string(col)+"1", h); err != nil {
			return err
		}
		col++
	}

	rowNo := 2
	for _, r := range rows {
		col := 'A'
		for _, value := range r.GetCellValues() {
			if err := f.SetCellValue(sheetName, string(col)+fmt.Sprint(rowNo), value); err != nil {
				return err
			}
			col++
		}
		rowNo++
	}

	if _, err := f.WriteTo(w); err != nil {
		return err
	}
	return nil
}
