// Package ensemble combines the outputs of multiple competing extraction
// engines into per-field decisions with explainable confidence scores.
package ensemble

import (
	"verity/internal/domain"
)

// FieldExtraction is one engine's opinion about one field, flattened from an
// ExtractionResult. In-memory only.
type FieldExtraction struct {
	FieldName  string
	Value      string
	Confidence float64
	Engine     domain.EngineName
	BBox       []float64
	Page       int
}

// CandidateSummary records one distinct proposed value and its supporters,
// kept in FieldResult metadata for auditability.
type CandidateSummary struct {
	Value      string              `json:"value"`
	Normalized string              `json:"normalized"`
	Score      float64             `json:"score"`
	Engines    []domain.EngineName `json:"engines"`
}

// FieldResult is the voting outcome for one field on one document.
type FieldResult struct {
	FieldName          string                    `json:"field_name"`
	FieldType          domain.FieldType          `json:"field_type"`
	FinalValue         string                    `json:"final_value"`
	Confidence         float64                   `json:"confidence"`
	ConsensusCount     int                       `json:"consensus_count"`
	ConflictDetected   bool                      `json:"conflict_detected"`
	EnginesUsed        []domain.EngineName       `json:"engines_used"`
	ResolutionStrategy domain.ResolutionStrategy `json:"resolution_strategy"`
	NeedsReview        bool                      `json:"needs_review"`
	Candidates         []CandidateSummary        `json:"candidates"`
}

// DocumentResult is the document-level outcome of one ensemble extraction run.
type DocumentResult struct {
	Success              bool                    `json:"success"`
	OverallConfidence    float64                 `json:"overall_confidence"`
	Fields               map[string]*FieldResult `json:"fields"`
	NeedsReviewFields    []string                `json:"needs_review_fields"`
	QualityGatePassed    bool                    `json:"quality_gate_passed"`
	ValidationErrors     []string                `json:"validation_errors"`
	EnginesUsed          []domain.EngineName     `json:"engines_used"`
	FailedEngines        []domain.EngineName     `json:"failed_engines"`
	TotalFieldsExtracted int                     `json:"total_fields_extracted"`
	HighConfidenceFields int                     `json:"high_confidence_fields"`
}

// Conflict describes a cross-engine disagreement on one field.
type Conflict struct {
	FieldName string                  `json:"field_name"`
	Values    []string                `json:"values"`
	Engines   []domain.EngineName     `json:"engines"`
	Spread    float64                 `json:"confidence_spread"`
	Severity  domain.ConflictSeverity `json:"severity"`
}

// ValueOpinion pairs an engine's proposed value for a field with the engine's
// confidence in it. It is the input unit for per-field confidence math.
type ValueOpinion struct {
	Engine     domain.EngineName `json:"engine"`
	Value      string            `json:"value"`
	Confidence float64           `json:"confidence"`
}
