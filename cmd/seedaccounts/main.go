// Command seedaccounts converts a chart-of-accounts Excel workbook into a SQL
// seed file. Each sheet holds the accounts for one document type; rows map a
// field name to its account code and display name.
// Usage: go run ./cmd/seedaccounts [workbook.xlsx]
// Output: db/seeds/accounts.sql
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"verity/internal/domain"
)

const batchSize = 500

// sheetDocTypes maps workbook sheet names to document types. Sheets not
// listed here are ignored.
var sheetDocTypes = map[string]domain.DocumentType{
	"Balance Sheet":      domain.DocTypeBalanceSheet,
	"Income Statement":   domain.DocTypeIncomeStatement,
	"Cash Flow":          domain.DocTypeCashFlow,
	"Rent Roll":          domain.DocTypeRentRoll,
	"Mortgage Statement": domain.DocTypeMortgageStatement,
}

type accountEntry struct {
	documentType domain.DocumentType
	fieldName    string
	accountCode  string
	displayName  string
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	xlsxPath := "chart_of_accounts.xlsx"
	if len(os.Args) > 1 {
		xlsxPath = os.Args[1]
	}
	outPath := "db/seeds/accounts.sql"

	f, err := excelize.OpenFile(xlsxPath)
	if err != nil {
		return fmt.Errorf("open Excel file: %w", err)
	}
	defer func() { _ = f.Close() }()

	seen := make(map[string]bool)
	var entries []accountEntry

	for _, sheetName := range f.GetSheetList() {
		docType, ok := sheetDocTypes[sheetName]
		if !ok {
			log.Printf("skipping unrecognized sheet %q", sheetName)
			continue
		}
		sheetEntries, err := parseSheet(f, sheetName, docType, seen)
		if err != nil {
			return fmt.Errorf("parse sheet %q: %w", sheetName, err)
		}
		entries = append(entries, sheetEntries...)
		log.Printf("%s sheet: %d accounts", sheetName, len(sheetEntries))
	}

	if len(entries) == 0 {
		return fmt.Errorf("no accounts found in %s", xlsxPath)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer func() { _ = out.Close() }()

	w := func(s string) error { _, werr := fmt.Fprintln(out, s); return werr }

	for _, line := range []string{
		"-- Chart-of-accounts seed data generated from Excel.",
		fmt.Sprintf("-- %d accounts in batches of %d.", len(entries), batchSize),
		"-- Run: make seed-accounts",
		"BEGIN;",
		"",
	} {
		if werr := w(line); werr != nil {
			return fmt.Errorf("write header: %w", werr)
		}
	}

	for i := 0; i < len(entries); i += batchSize {
		end := i + batchSize
		if end > len(entries) {
			end = len(entries)
		}
		if err := writeBatch(out, entries[i:end]); err != nil {
			return fmt.Errorf("write batch at offset %d: %w", i, err)
		}
	}

	for _, line := range []string{"", "COMMIT;"} {
		if werr := w(line); werr != nil {
			return fmt.Errorf("write footer: %w", werr)
		}
	}

	log.Printf("Generated %d accounts (%d batches) in %s",
		len(entries), (len(entries)+batchSize-1)/batchSize, outPath)
	return nil
}

// parseSheet reads one sheet. Columns: A(0)=field name, B(1)=account code,
// C(2)=display name. Row 0 is the header.
func parseSheet(f *excelize.File, sheetName string, docType domain.DocumentType, seen map[string]bool) ([]accountEntry, error) {
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, err
	}

	var entries []accountEntry
	for i := 1; i < len(rows); i++ {
		row := rows[i]

		fieldName := normalizeFieldName(cellVal(row, 0))
		accountCode := strings.TrimSpace(cellVal(row, 1))
		displayName := strings.TrimSpace(cellVal(row, 2))
		if fieldName == "" || accountCode == "" {
			continue
		}
		if displayName == "" {
			displayName = strings.TrimSpace(cellVal(row, 0))
		}

		key := string(docType) + "|" + fieldName
		if seen[key] {
			continue
		}
		seen[key] = true

		entries = append(entries, accountEntry{
			documentType: docType,
			fieldName:    fieldName,
			accountCode:  accountCode,
			displayName:  displayName,
		})
	}
	return entries, nil
}

// normalizeFieldName lowercases and snake_cases a spreadsheet field label so
// it matches the field names the extraction engines emit.
func normalizeFieldName(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

func writeBatch(out *os.File, batch []accountEntry) error {
	if len(batch) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO accounts (id, document_type, field_name, account_code, display_name) VALUES\n")

	for i := range batch {
		e := &batch[i]
		if i > 0 {
			b.WriteString(",\n")
		}
		fmt.Fprintf(&b, "  (gen_random_uuid(), '%s', '%s', '%s', '%s')",
			escapeSQL(string(e.documentType)), escapeSQL(e.fieldName),
			escapeSQL(e.accountCode), escapeSQL(e.displayName))
	}

	b.WriteString("\nON CONFLICT (document_type, field_name) DO NOTHING;\n")

	_, err := out.WriteString(b.String())
	return err
}

func cellVal(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
