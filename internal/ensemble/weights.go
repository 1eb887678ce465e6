package ensemble

import (
	"strings"

	"verity/internal/domain"
)

// Fallback weights for engines missing from a weight table. Tables are
// injected configuration; an engine absent from the table is still allowed to
// vote, just at reduced trust.
const (
	defaultEngineWeight = 0.33
	fallbackFieldWeight = 0.30
)

// WeightTable maps a field category to per-engine reliability weights.
type WeightTable map[domain.FieldType]map[domain.EngineName]float64

// Weight returns the reliability weight for an engine on a field category,
// falling back to fallbackFieldWeight when either lookup misses.
func (t WeightTable) Weight(ft domain.FieldType, engine domain.EngineName) float64 {
	if engines, ok := t[ft]; ok {
		if w, ok := engines[engine]; ok {
			return w
		}
	}
	return fallbackFieldWeight
}

// DefaultFieldWeights returns the stock per-field-type engine weights.
// Table-specialized engines (Camelot, PDFPlumber) rank higher for codes and
// amounts; the layout model ranks higher for free-text names; raw OCR engines
// trail everywhere on digital documents.
func DefaultFieldWeights() WeightTable {
	return WeightTable{
		domain.FieldTypeAccountCode: {
			domain.EngineCamelot:    0.95,
			domain.EnginePDFPlumber: 0.90,
			domain.EnginePyMuPDF:    0.80,
			domain.EngineLayoutLM:   0.75,
			domain.EngineTesseract:  0.55,
			domain.EngineEasyOCR:    0.50,
		},
		domain.FieldTypeAmount: {
			domain.EngineCamelot:    0.95,
			domain.EnginePDFPlumber: 0.90,
			domain.EnginePyMuPDF:    0.85,
			domain.EngineLayoutLM:   0.70,
			domain.EngineTesseract:  0.50,
			domain.EngineEasyOCR:    0.45,
		},
		domain.FieldTypeAccountName: {
			domain.EngineLayoutLM:   0.90,
			domain.EnginePyMuPDF:    0.85,
			domain.EnginePDFPlumber: 0.80,
			domain.EngineCamelot:    0.60,
			domain.EngineEasyOCR:    0.55,
			domain.EngineTesseract:  0.50,
		},
		domain.FieldTypeHeaderField: {
			domain.EnginePyMuPDF:    0.90,
			domain.EnginePDFPlumber: 0.85,
			domain.EngineLayoutLM:   0.80,
			domain.EngineCamelot:    0.50,
			domain.EngineTesseract:  0.55,
			domain.EngineEasyOCR:    0.50,
		},
	}
}

// DefaultEngineWeights returns the single flat weight table the confidence
// engine uses when none is injected.
func DefaultEngineWeights() map[domain.EngineName]float64 {
	return map[domain.EngineName]float64{
		domain.EngineCamelot:    0.90,
		domain.EnginePDFPlumber: 0.85,
		domain.EnginePyMuPDF:    0.80,
		domain.EngineLayoutLM:   0.75,
		domain.EngineTesseract:  0.50,
		domain.EngineEasyOCR:    0.45,
	}
}

// DetectFieldType infers the field category from its name. The substring
// checks run in priority order; anything unrecognized is a header field.
func DetectFieldType(fieldName string) domain.FieldType {
	n := strings.ToLower(fieldName)
	switch {
	case strings.Contains(n, "code"):
		return domain.FieldTypeAccountCode
	case strings.Contains(n, "amount"),
		strings.Contains(n, "balance"),
		strings.Contains(n, "total"),
		strings.Contains(n, "percent"),
		strings.Contains(n, "rate"):
		return domain.FieldTypeAmount
	case strings.Contains(n, "name"), strings.Contains(n, "description"):
		return domain.FieldTypeAccountName
	default:
		return domain.FieldTypeHeaderField
	}
}

// CriticalFields carry double weight in the document-level confidence average.
var CriticalFields = map[string]bool{
	"total_assets":         true,
	"total_liabilities":    true,
	"total_equity":         true,
	"total_revenue":        true,
	"total_expenses":       true,
	"net_operating_income": true,
	"beginning_balance":    true,
	"ending_balance":       true,
}
