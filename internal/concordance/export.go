package concordance

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"verity/internal/domain"
)

// BOM is the UTF-8 byte order mark, written first for Excel compatibility.
var BOM = []byte{0xEF, 0xBB, 0xBF}

const (
	consensusGlyph = "✓"
	conflictGlyph  = "⚠"
)

// columns defines the CSV header: three identity columns, one per known
// engine, then the agreement outcome.
var columns = buildColumns()

func buildColumns() []string {
	cols := []string{"Field Name", "Display Name", "Account Code"}
	for _, engine := range domain.KnownEngines {
		cols = append(cols, domain.EngineDisplayNames[engine])
	}
	return append(cols, "Final Value", "Agreement %", "Consensus", "Conflicting Models")
}

// Writer exports concordance rows as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteRows converts concordance rows to CSV records and writes them.
func (w *Writer) WriteRows(rows []domain.ConcordanceRow) error {
	for i := range rows {
		record, err := rowToRecord(&rows[i])
		if err != nil {
			return err
		}
		if err := w.csv.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

func rowToRecord(row *domain.ConcordanceRow) ([]string, error) {
	record := make([]string, 0, len(columns))
	record = append(record, row.FieldName, row.FieldDisplayName, row.AccountCode)

	var modelValues map[domain.EngineName]*string
	if len(row.ModelValues) > 0 {
		if err := json.Unmarshal(row.ModelValues, &modelValues); err != nil {
			return nil, fmt.Errorf("unmarshaling model values for %s: %w", row.FieldName, err)
		}
	}
	for _, engine := range domain.KnownEngines {
		if v, ok := modelValues[engine]; ok && v != nil {
			record = append(record, *v)
		} else {
			record = append(record, "")
		}
	}

	record = append(record, row.FinalValue)
	record = append(record, strconv.FormatFloat(row.AgreementPercentage, 'f', 1, 64))

	if row.HasConsensus {
		record = append(record, consensusGlyph)
	} else {
		record = append(record, conflictGlyph)
	}

	var conflicting []domain.EngineName
	if len(row.ConflictingModels) > 0 {
		if err := json.Unmarshal(row.ConflictingModels, &conflicting); err != nil {
			return nil, fmt.Errorf("unmarshaling conflicting models for %s: %w", row.FieldName, err)
		}
	}
	names := make([]string, 0, len(conflicting))
	for _, engine := range conflicting {
		names = append(names, domain.EngineDisplayNames[engine])
	}
	record = append(record, strings.Join(names, ", "))

	return record, nil
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a document name for use in Content-Disposition.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns a sanitized export filename:
// {sanitized_document_name}_concordance_{YYYY-MM-DD}.csv
func BuildFilename(documentName string) string {
	sanitized := SanitizeFilename(documentName)
	date := time.Now().Format("2006-01-02")
	return fmt.Sprintf("%s_concordance_%s.csv", sanitized, date)
}
