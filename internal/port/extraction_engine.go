package port

import (
	"context"

	"verity/internal/domain"
)

// FieldValue is one engine's extracted value for a single field.
type FieldValue struct {
	Value      string    `json:"value"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox,omitempty"`
	Page       int       `json:"page,omitempty"`
}

// ExtractionResult is the uniform output every extraction engine produces for
// one document. It is created once per engine invocation and never mutated.
// If Success is false, ExtractedData may be present but is not authoritative.
type ExtractionResult struct {
	EngineName        domain.EngineName     `json:"engine_name"`
	Success           bool                  `json:"success"`
	OverallConfidence float64               `json:"overall_confidence"`
	ExtractedData     map[string]FieldValue `json:"extracted_data"`
	Warnings          []string              `json:"warnings"`
	ProcessingTimeMS  int64                 `json:"processing_time_ms"`
}

// ExtractionEngine abstracts a single PDF extraction engine. An engine error
// means "engine unavailable for this document"; callers log and exclude it
// rather than failing the whole extraction.
type ExtractionEngine interface {
	Name() domain.EngineName
	Extract(ctx context.Context, pdfBytes []byte) (*ExtractionResult, error)
}
