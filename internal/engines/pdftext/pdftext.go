// Package pdftext implements an embedded extraction engine for digital PDFs
// with a real text layer. It reports under the pdfplumber engine identity.
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"verity/internal/domain"
	"verity/internal/engines"
	"verity/internal/port"
)

// fieldLabels maps logical field names to the statement labels that carry
// them. Matching is case-insensitive on whole lines; the first label variant
// that matches wins.
var fieldLabels = []struct {
	field  string
	labels []string
}{
	{"total_assets", []string{"total assets"}},
	{"total_liabilities", []string{"total liabilities"}},
	{"total_equity", []string{"total equity", "total capital", "owners equity", "owner's equity"}},
	{"total_revenue", []string{"total revenue", "total income", "gross income"}},
	{"total_expenses", []string{"total expenses", "total operating expenses"}},
	{"net_operating_income", []string{"net operating income", "noi"}},
	{"beginning_balance", []string{"beginning balance", "opening balance"}},
	{"ending_balance", []string{"ending balance", "closing balance"}},
	{"occupancy_rate", []string{"occupancy rate", "occupancy"}},
	{"interest_rate", []string{"interest rate"}},
}

// amountPattern matches currency amounts, including accounting negatives and
// percentages, e.g. "$1,234.56", "(1,234.56)", "45.2%".
var amountPattern = regexp.MustCompile(`\(?-?\$?[\d,]+(?:\.\d+)?\)?%?`)

const (
	labelLineConfidence = 0.88
	looseConfidence     = 0.78
)

// Engine extracts fields from the PDF text layer.
type Engine struct{}

// NewEngine creates a text-layer extraction engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Factory creates the engine from a Spec for the engine registry.
func Factory(_ *engines.Spec) (port.ExtractionEngine, error) {
	return NewEngine(), nil
}

func (e *Engine) Name() domain.EngineName {
	return domain.EnginePDFPlumber
}

// Extract reads the PDF's text layer and matches known statement labels to
// their amounts. A PDF with no text layer (a scan) yields an unsuccessful
// result rather than an error; losing the text layer is a property of the
// document, not a crash.
func (e *Engine) Extract(ctx context.Context, pdfBytes []byte) (*port.ExtractionResult, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, engines.NewEngineError(e.Name(), err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	if err != nil {
		return nil, engines.NewEngineError(e.Name(), fmt.Errorf("opening pdf: %w", err))
	}

	var warnings []string
	extracted := make(map[string]port.FieldValue)

	numPages := reader.NumPage()
	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("page %d: text extraction failed", pageNum))
			continue
		}
		e.matchPage(text, pageNum, extracted)
	}

	if len(extracted) == 0 {
		return &port.ExtractionResult{
			EngineName:       e.Name(),
			Success:          false,
			Warnings:         append(warnings, "no labeled fields found in text layer"),
			ProcessingTimeMS: time.Since(start).Milliseconds(),
		}, nil
	}

	var confSum float64
	for _, fv := range extracted {
		confSum += fv.Confidence
	}

	return &port.ExtractionResult{
		EngineName:        e.Name(),
		Success:           true,
		OverallConfidence: confSum / float64(len(extracted)),
		ExtractedData:     extracted,
		Warnings:          warnings,
		ProcessingTimeMS:  time.Since(start).Milliseconds(),
	}, nil
}

// matchPage scans one page's lines for labeled amounts. The first page that
// yields a field keeps it; later duplicates never overwrite.
func (e *Engine) matchPage(text string, pageNum int, extracted map[string]port.FieldValue) {
	lines := strings.Split(text, "\n")
	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, fl := range fieldLabels {
			if _, done := extracted[fl.field]; done {
				continue
			}
			label := matchingLabel(lower, fl.labels)
			if label == "" {
				continue
			}
			amounts := amountPattern.FindAllString(line, -1)
			if len(amounts) == 0 {
				continue
			}

			conf := looseConfidence
			if strings.HasPrefix(strings.TrimSpace(lower), label) {
				conf = labelLineConfidence
			}
			// Statements put the period amount in the last column.
			extracted[fl.field] = port.FieldValue{
				Value:      amounts[len(amounts)-1],
				Confidence: conf,
				Page:       pageNum,
			}
		}
	}
}

func matchingLabel(lowerLine string, labels []string) string {
	for _, label := range labels {
		if strings.Contains(lowerLine, label) {
			return label
		}
	}
	return ""
}
