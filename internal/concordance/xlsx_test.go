package concordance_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"verity/internal/concordance"
	"verity/internal/domain"
)

func TestWriteXLSX(t *testing.T) {
	modelValues, err := json.Marshal(map[domain.EngineName]*string{
		domain.EnginePyMuPDF:    strp("1000"),
		domain.EnginePDFPlumber: strp("1000"),
	})
	require.NoError(t, err)

	rows := []domain.ConcordanceRow{
		{
			FieldName:           "total_assets",
			FieldDisplayName:    "Total Assets",
			AccountCode:         "1000",
			ModelValues:         modelValues,
			FinalValue:          "1000",
			AgreementPercentage: 100,
			HasConsensus:        true,
		},
	}
	uploadID := uuid.New()
	summary := concordance.Summarize(uploadID, rows)

	var buf bytes.Buffer
	require.NoError(t, concordance.WriteXLSX(&buf, rows, summary))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	require.Equal(t, []string{"Concordance"}, f.GetSheetList())

	cells, err := f.GetRows("Concordance")
	require.NoError(t, err)

	header := cells[0]
	assert.Equal(t, "Field Name", header[0])
	assert.Equal(t, "PyMuPDF", header[3])
	assert.Equal(t, "Conflicting Models", header[12])

	first := cells[1]
	assert.Equal(t, "total_assets", first[0])
	assert.Equal(t, "1000", first[3]) // PyMuPDF
	assert.Equal(t, "1000", first[4]) // PDFPlumber
	assert.Equal(t, "100.0", first[10])
	assert.Equal(t, "✓", first[11])

	// Summary block starts one blank row below the table.
	assert.Equal(t, []string{"Total Fields", "1"}, cells[3][:2])
	assert.Equal(t, []string{"Overall Agreement %", "100.0"}, cells[7][:2])
}

func TestWriteXLSX_EmptyRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, concordance.WriteXLSX(&buf, nil, concordance.Summarize(uuid.New(), nil)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	cells, err := f.GetRows("Concordance")
	require.NoError(t, err)
	assert.Equal(t, "Field Name", cells[0][0])
	assert.Equal(t, []string{"Total Fields", "0"}, cells[2][:2])
}

func TestBuildXLSXFilename(t *testing.T) {
	name := concordance.BuildXLSXFilename("Q4 Balance Sheet")
	expected := fmt.Sprintf("Q4_Balance_Sheet_concordance_%s.xlsx", time.Now().Format("2006-01-02"))
	assert.Equal(t, expected, name)
}
