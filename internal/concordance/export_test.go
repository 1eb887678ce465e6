package concordance_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verity/internal/concordance"
	"verity/internal/domain"
)

func TestWriter_HeaderColumns(t *testing.T) {
	var buf bytes.Buffer
	w := concordance.NewWriter(&buf)

	require.NoError(t, w.WriteHeader())
	w.Flush()
	require.NoError(t, w.Error())

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, []string{
		"Field Name", "Display Name", "Account Code",
		"PyMuPDF", "PDFPlumber", "Camelot", "LayoutLMv3", "EasyOCR", "Tesseract",
		"Final Value", "Agreement %", "Consensus", "Conflicting Models",
	}, records[0])
}

func TestWriter_RowRecord(t *testing.T) {
	modelValues, err := json.Marshal(map[domain.EngineName]*string{
		domain.EnginePyMuPDF:    strp("$1,000.00"),
		domain.EnginePDFPlumber: strp("1000"),
		domain.EngineCamelot:    nil,
	})
	require.NoError(t, err)
	conflicting, err := json.Marshal([]domain.EngineName{domain.EngineCamelot})
	require.NoError(t, err)

	rows := []domain.ConcordanceRow{
		{
			FieldName:           "total_assets",
			FieldDisplayName:    "Total Assets",
			AccountCode:         "1000",
			ModelValues:         modelValues,
			FinalValue:          "$1,000.00",
			AgreementPercentage: 66.66666,
			HasConsensus:        false,
			ConflictingModels:   conflicting,
		},
		{
			FieldName:           "total_equity",
			FieldDisplayName:    "Total Equity",
			AgreementPercentage: 100,
			HasConsensus:        true,
			FinalValue:          "400",
		},
	}

	var buf bytes.Buffer
	w := concordance.NewWriter(&buf)
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.WriteRows(rows))
	w.Flush()
	require.NoError(t, w.Error())

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[1]
	assert.Equal(t, "total_assets", first[0])
	assert.Equal(t, "Total Assets", first[1])
	assert.Equal(t, "1000", first[2])
	assert.Equal(t, "$1,000.00", first[3]) // PyMuPDF
	assert.Equal(t, "1000", first[4])      // PDFPlumber
	assert.Equal(t, "", first[5])          // Camelot ran but produced nothing
	assert.Equal(t, "", first[6])          // LayoutLMv3 did not run
	assert.Equal(t, "66.7", first[10])
	assert.Equal(t, "⚠", first[11])
	assert.Equal(t, "Camelot", first[12])

	second := records[2]
	assert.Equal(t, "100.0", second[10])
	assert.Equal(t, "✓", second[11])
	assert.Equal(t, "", second[12])
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		input    string
		expected string
	}{
		{"Q4 Balance Sheet.pdf", "Q4_Balance_Sheet_pdf"},
		{"report (final) v2", "report_final_v2"},
		{"///weird///", "weird"},
		{"already_clean-name", "already_clean-name"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, concordance.SanitizeFilename(tc.input), "input %q", tc.input)
	}
}

func TestSanitizeFilename_TruncatesLongNames(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "abcde"
	}
	assert.Len(t, concordance.SanitizeFilename(long), 100)
}

func TestBuildFilename(t *testing.T) {
	name := concordance.BuildFilename("Q4 Balance Sheet")
	expected := fmt.Sprintf("Q4_Balance_Sheet_concordance_%s.csv", time.Now().Format("2006-01-02"))
	assert.Equal(t, expected, name)
}
