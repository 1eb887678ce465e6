package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"verity/internal/domain"
	"verity/internal/port"
)

type ensembleFieldRepo struct {
	db *sqlx.DB
}

// NewEnsembleFieldRepo creates a new PostgreSQL-backed EnsembleFieldRepository.
func NewEnsembleFieldRepo(db *sqlx.DB) port.EnsembleFieldRepository {
	return &ensembleFieldRepo{db: db}
}

// ReplaceForDocument swaps out all voted fields for a document in one
// transaction. Re-extraction must never leave rows from two runs mixed.
func (r *ensembleFieldRepo) ReplaceForDocument(ctx context.Context, documentID uuid.UUID, fields []domain.EnsembleField) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ensembleFieldRepo.ReplaceForDocument begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		"DELETE FROM ensemble_fields WHERE document_id = $1", documentID)
	if err != nil {
		return fmt.Errorf("ensembleFieldRepo.ReplaceForDocument delete: %w", err)
	}

	if len(fields) > 0 {
		now := time.Now().UTC()
		valueStrings := make([]string, 0, len(fields))
		valueArgs := make([]interface{}, 0, len(fields)*13)

		for i, f := range fields {
			if f.ID == uuid.Nil {
				f.ID = uuid.New()
			}
			f.DocumentID = documentID
			f.CreatedAt = now
			base := i * 13
			valueStrings = append(valueStrings, fmt.Sprintf(
				"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7,
				base+8, base+9, base+10, base+11, base+12, base+13))
			valueArgs = append(valueArgs,
				f.ID, f.DocumentID, f.FieldName, f.FieldType,
				f.FinalValue, f.Confidence, f.ConsensusCount,
				f.ConflictDetected, f.ResolutionStrategy, f.NeedsReview,
				f.EnginesUsed, f.Metadata, f.CreatedAt)
		}

		query := fmt.Sprintf(
			`INSERT INTO ensemble_fields (
				id, document_id, field_name, field_type,
				final_value, confidence, consensus_count,
				conflict_detected, resolution_strategy, needs_review,
				engines_used, metadata, created_at
			) VALUES %s`,
			strings.Join(valueStrings, ", "))

		if _, err := tx.ExecContext(ctx, query, valueArgs...); err != nil {
			return fmt.Errorf("ensembleFieldRepo.ReplaceForDocument insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ensembleFieldRepo.ReplaceForDocument commit: %w", err)
	}
	return nil
}

func (r *ensembleFieldRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]domain.EnsembleField, error) {
	var fields []domain.EnsembleField
	err := r.db.SelectContext(ctx, &fields,
		"SELECT * FROM ensemble_fields WHERE document_id = $1 ORDER BY field_name",
		documentID)
	if err != nil {
		return nil, fmt.Errorf("ensembleFieldRepo.ListByDocument: %w", err)
	}
	return fields, nil
}
