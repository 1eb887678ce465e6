// Package concordance records, per field and per upload, how far the
// extraction engines agreed with each other: a permanent audit artifact
// computed against committed ensemble results rather than live votes.
package concordance

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"verity/internal/domain"
	"verity/internal/ensemble"
	"verity/internal/normalize"
	"verity/internal/port"
)

// consensusThreshold is the agreement percentage at which a field counts as
// having cross-engine consensus.
const consensusThreshold = 75.0

// Agreement is the computed cross-engine agreement for one field.
type Agreement struct {
	NormalizedValue     string
	AgreementCount      int
	TotalModels         int
	AgreementPercentage float64
	HasConsensus        bool
	IsPerfectAgreement  bool
	ConflictingModels   []domain.EngineName
	FinalValue          string
	FinalModel          domain.EngineName
}

// CalculateAgreement computes the agreement over one field's per-engine
// values. A nil value means the engine produced nothing for the field. The
// modal normalized value wins, ties broken by first encounter in canonical
// engine order, so the result is deterministic for a fixed input.
func CalculateAgreement(modelValues map[domain.EngineName]*string) Agreement {
	total := len(modelValues)

	type observation struct {
		engine domain.EngineName
		raw    string
		norm   string
	}
	var observations []observation
	for _, engine := range domain.KnownEngines {
		raw, ok := modelValues[engine]
		if !ok || raw == nil {
			continue
		}
		observations = append(observations, observation{
			engine: engine,
			raw:    *raw,
			norm:   normalize.Normalize(*raw),
		})
	}

	if len(observations) == 0 {
		// Nothing extracted anywhere: zero agreement, everyone conflicts.
		var all []domain.EngineName
		for _, engine := range domain.KnownEngines {
			if _, ok := modelValues[engine]; ok {
				all = append(all, engine)
			}
		}
		return Agreement{
			TotalModels:       total,
			ConflictingModels: all,
		}
	}

	counts := make(map[string]int)
	var firstSeen []string
	for _, obs := range observations {
		if counts[obs.norm] == 0 {
			firstSeen = append(firstSeen, obs.norm)
		}
		counts[obs.norm]++
	}

	mode := firstSeen[0]
	for _, norm := range firstSeen[1:] {
		if counts[norm] > counts[mode] {
			mode = norm
		}
	}

	agreementCount := counts[mode]
	pct := float64(agreementCount) / float64(total) * 100

	var conflicting []domain.EngineName
	var finalValue string
	var finalModel domain.EngineName
	for _, engine := range domain.KnownEngines {
		raw, ok := modelValues[engine]
		if !ok {
			continue
		}
		if raw == nil || normalize.Normalize(*raw) != mode {
			conflicting = append(conflicting, engine)
			continue
		}
		if finalModel == "" {
			finalValue = *raw
			finalModel = engine
		}
	}

	return Agreement{
		NormalizedValue:     mode,
		AgreementCount:      agreementCount,
		TotalModels:         total,
		AgreementPercentage: pct,
		HasConsensus:        pct >= consensusThreshold,
		IsPerfectAgreement:  agreementCount == total,
		ConflictingModels:   conflicting,
		FinalValue:          finalValue,
		FinalModel:          finalModel,
	}
}

// Service rebuilds and reads the persisted concordance table.
type Service struct {
	rows     port.ConcordanceRepository
	fields   port.EnsembleFieldRepository
	accounts port.AccountRepository
}

// NewService creates a concordance Service.
func NewService(rows port.ConcordanceRepository, fields port.EnsembleFieldRepository, accounts port.AccountRepository) *Service {
	return &Service{rows: rows, fields: fields, accounts: accounts}
}

// Rebuild recomputes all concordance rows for a document from its committed
// ensemble fields and replaces the stored table for that upload in one
// transaction. It never merges with prior rows; a rerun always yields a table
// that reflects only the latest extraction.
func (s *Service) Rebuild(ctx context.Context, doc *domain.Document) ([]domain.ConcordanceRow, error) {
	fields, err := s.fields.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("loading ensemble fields: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrDocumentNotExtracted
	}

	accounts, err := s.accounts.MapByDocumentType(ctx, doc.DocumentType)
	if err != nil {
		return nil, fmt.Errorf("loading chart of accounts: %w", err)
	}

	rows, err := RowsForDocument(doc, fields, accounts)
	if err != nil {
		return nil, err
	}

	if err := s.rows.ReplaceForUpload(ctx, doc.ID, rows); err != nil {
		return nil, fmt.Errorf("replacing concordance rows: %w", err)
	}

	log.Printf("concordance.Service: rebuilt %d rows for upload %s", len(rows), doc.ID)
	return rows, nil
}

// ListByUpload returns the stored concordance rows for an upload.
func (s *Service) ListByUpload(ctx context.Context, uploadID uuid.UUID) ([]domain.ConcordanceRow, error) {
	return s.rows.ListByUpload(ctx, uploadID)
}

// RowsForDocument derives concordance rows from a document's committed
// ensemble fields. Each field's candidate metadata records which engine
// produced which raw value; engines that ran but produced nothing for the
// field are recorded as nulls.
func RowsForDocument(doc *domain.Document, fields []domain.EnsembleField, accounts map[string]domain.Account) ([]domain.ConcordanceRow, error) {
	var enginesUsed []domain.EngineName
	if len(doc.EnginesUsed) > 0 {
		if err := json.Unmarshal(doc.EnginesUsed, &enginesUsed); err != nil {
			return nil, fmt.Errorf("unmarshaling engines_used: %w", err)
		}
	}

	now := time.Now().UTC()
	rows := make([]domain.ConcordanceRow, 0, len(fields))
	for i := range fields {
		field := &fields[i]

		var candidates []ensemble.CandidateSummary
		if len(field.Metadata) > 0 {
			if err := json.Unmarshal(field.Metadata, &candidates); err != nil {
				return nil, fmt.Errorf("unmarshaling candidates for field %s: %w", field.FieldName, err)
			}
		}

		modelValues := make(map[domain.EngineName]*string, len(enginesUsed))
		for _, engine := range enginesUsed {
			modelValues[engine] = nil
		}
		for _, c := range candidates {
			for _, engine := range c.Engines {
				v := c.Value
				modelValues[engine] = &v
			}
		}

		agreement := CalculateAgreement(modelValues)

		modelValuesJSON, err := json.Marshal(modelValues)
		if err != nil {
			return nil, fmt.Errorf("marshaling model values: %w", err)
		}
		conflictingJSON, err := json.Marshal(agreement.ConflictingModels)
		if err != nil {
			return nil, fmt.Errorf("marshaling conflicting models: %w", err)
		}

		account := accounts[field.FieldName]

		rows = append(rows, domain.ConcordanceRow{
			ID:                  uuid.New(),
			UploadID:            doc.ID,
			PropertyID:          doc.PropertyID,
			PeriodID:            doc.PeriodID,
			DocumentType:        doc.DocumentType,
			FieldName:           field.FieldName,
			FieldDisplayName:    displayName(field.FieldName, account),
			AccountCode:         account.AccountCode,
			ModelValues:         modelValuesJSON,
			NormalizedValue:     agreement.NormalizedValue,
			AgreementCount:      agreement.AgreementCount,
			TotalModels:         agreement.TotalModels,
			AgreementPercentage: agreement.AgreementPercentage,
			HasConsensus:        agreement.HasConsensus,
			IsPerfectAgreement:  agreement.IsPerfectAgreement,
			ConflictingModels:   conflictingJSON,
			FinalValue:          agreement.FinalValue,
			FinalModel:          agreement.FinalModel,
			CreatedAt:           now,
		})
	}
	return rows, nil
}

// Summary aggregates agreement across one upload's concordance rows.
type Summary struct {
	UploadID                   uuid.UUID `json:"upload_id"`
	TotalFields                int       `json:"total_fields"`
	PerfectAgreement           int       `json:"perfect_agreement"`
	PartialAgreement           int       `json:"partial_agreement"`
	Conflicts                  int       `json:"conflicts"`
	OverallAgreementPercentage float64   `json:"overall_agreement_percentage"`
}

// Summarize rolls up per-field agreement: perfect (100%), partial (consensus
// but below 100%), and conflicted (below the consensus threshold). The
// overall percentage is the mean of per-field percentages.
func Summarize(uploadID uuid.UUID, rows []domain.ConcordanceRow) Summary {
	s := Summary{UploadID: uploadID, TotalFields: len(rows)}
	if len(rows) == 0 {
		return s
	}

	var sum float64
	for i := range rows {
		row := &rows[i]
		sum += row.AgreementPercentage
		switch {
		case row.IsPerfectAgreement:
			s.PerfectAgreement++
		case row.HasConsensus:
			s.PartialAgreement++
		default:
			s.Conflicts++
		}
	}
	s.OverallAgreementPercentage = sum / float64(len(rows))
	return s
}

// displayName prefers the chart-of-accounts name, falling back to a
// title-cased rendering of the raw field name.
func displayName(fieldName string, account domain.Account) string {
	if account.DisplayName != "" {
		return account.DisplayName
	}
	words := strings.Split(fieldName, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
