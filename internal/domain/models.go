package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Document represents an uploaded financial statement tracked through extraction.
type Document struct {
	ID                uuid.UUID        `db:"id" json:"id"`
	PropertyID        uuid.UUID        `db:"property_id" json:"property_id"`
	PeriodID          uuid.UUID        `db:"period_id" json:"period_id"`
	Name              string           `db:"name" json:"name"`
	DocumentType      DocumentType     `db:"document_type" json:"document_type"`
	StorageBucket     string           `db:"storage_bucket" json:"storage_bucket"`
	StorageKey        string           `db:"storage_key" json:"storage_key"`
	QualityScore      float64          `db:"quality_score" json:"quality_score"`
	ExtractionStatus  ExtractionStatus `db:"extraction_status" json:"extraction_status"`
	ExtractionError   string           `db:"extraction_error" json:"extraction_error"`
	ExtractAttempts   int              `db:"extract_attempts" json:"extract_attempts"`
	OverallConfidence float64          `db:"overall_confidence" json:"overall_confidence"`
	QualityGatePassed bool             `db:"quality_gate_passed" json:"quality_gate_passed"`
	ValidationErrors  json.RawMessage  `db:"validation_errors" json:"validation_errors"`
	EnginesUsed       json.RawMessage  `db:"engines_used" json:"engines_used"`
	NeedsReview       bool             `db:"needs_review" json:"needs_review"`
	ReviewStatus      ReviewStatus     `db:"review_status" json:"review_status"`
	ReviewedBy        *uuid.UUID       `db:"reviewed_by" json:"reviewed_by"`
	ReviewedAt        *time.Time       `db:"reviewed_at" json:"reviewed_at"`
	ReviewerNotes     string           `db:"reviewer_notes" json:"reviewer_notes"`
	ExtractedAt       *time.Time       `db:"extracted_at" json:"extracted_at"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updated_at"`
}

// EnsembleField stores the voted outcome for one field of one document.
// Rows are regenerated on re-extraction, replacing the prior run's rows.
type EnsembleField struct {
	ID                 uuid.UUID          `db:"id" json:"id"`
	DocumentID         uuid.UUID          `db:"document_id" json:"document_id"`
	FieldName          string             `db:"field_name" json:"field_name"`
	FieldType          FieldType          `db:"field_type" json:"field_type"`
	FinalValue         string             `db:"final_value" json:"final_value"`
	Confidence         float64            `db:"confidence" json:"confidence"`
	ConsensusCount     int                `db:"consensus_count" json:"consensus_count"`
	ConflictDetected   bool               `db:"conflict_detected" json:"conflict_detected"`
	ResolutionStrategy ResolutionStrategy `db:"resolution_strategy" json:"resolution_strategy"`
	NeedsReview        bool               `db:"needs_review" json:"needs_review"`
	EnginesUsed        json.RawMessage    `db:"engines_used" json:"engines_used"`
	Metadata           json.RawMessage    `db:"metadata" json:"metadata"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
}

// Account maps a statement field to its chart-of-accounts entry, used to
// decorate concordance rows with account codes and display names.
type Account struct {
	ID           uuid.UUID    `db:"id" json:"id"`
	DocumentType DocumentType `db:"document_type" json:"document_type"`
	FieldName    string       `db:"field_name" json:"field_name"`
	AccountCode  string       `db:"account_code" json:"account_code"`
	DisplayName  string       `db:"display_name" json:"display_name"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// ConcordanceRow is the persisted audit record of per-engine agreement for one
// field of one document upload. Rows for an upload are always rewritten as a
// whole, never patched.
type ConcordanceRow struct {
	ID                  uuid.UUID       `db:"id" json:"id"`
	UploadID            uuid.UUID       `db:"upload_id" json:"upload_id"`
	PropertyID          uuid.UUID       `db:"property_id" json:"property_id"`
	PeriodID            uuid.UUID       `db:"period_id" json:"period_id"`
	DocumentType        DocumentType    `db:"document_type" json:"document_type"`
	FieldName           string          `db:"field_name" json:"field_name"`
	FieldDisplayName    string          `db:"field_display_name" json:"field_display_name"`
	AccountCode         string          `db:"account_code" json:"account_code"`
	ModelValues         json.RawMessage `db:"model_values" json:"model_values"`
	NormalizedValue     string          `db:"normalized_value" json:"normalized_value"`
	AgreementCount      int             `db:"agreement_count" json:"agreement_count"`
	TotalModels         int             `db:"total_models" json:"total_models"`
	AgreementPercentage float64         `db:"agreement_percentage" json:"agreement_percentage"`
	HasConsensus        bool            `db:"has_consensus" json:"has_consensus"`
	IsPerfectAgreement  bool            `db:"is_perfect_agreement" json:"is_perfect_agreement"`
	ConflictingModels   json.RawMessage `db:"conflicting_models" json:"conflicting_models"`
	FinalValue          string          `db:"final_value" json:"final_value"`
	FinalModel          EngineName      `db:"final_model" json:"final_model"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
}
