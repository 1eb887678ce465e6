package concordance

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"verity/internal/domain"
)

const sheetName = "Concordance"

// WriteXLSX renders concordance rows as an Excel workbook: the same columns
// as the CSV export on a "Concordance" sheet, plus a summary block beneath
// the table.
func WriteXLSX(w io.Writer, rows []domain.ConcordanceRow, summary Summary) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}

	if err := setRow(f, 1, columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i := range rows {
		record, err := rowToRecord(&rows[i])
		if err != nil {
			return err
		}
		if err := setRow(f, i+2, record); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	summaryTop := len(rows) + 3
	summaryLines := [][]string{
		{"Total Fields", strconv.Itoa(summary.TotalFields)},
		{"Perfect Agreement", strconv.Itoa(summary.PerfectAgreement)},
		{"Partial Agreement", strconv.Itoa(summary.PartialAgreement)},
		{"Conflicts", strconv.Itoa(summary.Conflicts)},
		{"Overall Agreement %", strconv.FormatFloat(summary.OverallAgreementPercentage, 'f', 1, 64)},
	}
	for i, line := range summaryLines {
		if err := setRow(f, summaryTop+i, line); err != nil {
			return fmt.Errorf("writing summary: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []string) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, v); err != nil {
			return err
		}
	}
	return nil
}

// BuildXLSXFilename returns a sanitized export filename:
// {sanitized_document_name}_concordance_{YYYY-MM-DD}.xlsx
func BuildXLSXFilename(documentName string) string {
	sanitized := SanitizeFilename(documentName)
	date := time.Now().Format("2006-01-02")
	return fmt.Sprintf("%s_concordance_%s.xlsx", sanitized, date)
}
