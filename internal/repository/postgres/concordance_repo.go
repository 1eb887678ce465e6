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

type concordanceRepo struct {
	db *sqlx.DB
}

// NewConcordanceRepo creates a new PostgreSQL-backed ConcordanceRepository.
func NewConcordanceRepo(db *sqlx.DB) port.ConcordanceRepository {
	return &concordanceRepo{db: db}
}

// ReplaceForUpload rebuilds the agreement table for one upload. Delete and
// insert share a transaction so readers never see a half-rebuilt table.
func (r *concordanceRepo) ReplaceForUpload(ctx context.Context, uploadID uuid.UUID, rows []domain.ConcordanceRow) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("concordanceRepo.ReplaceForUpload begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		"DELETE FROM concordance_rows WHERE upload_id = $1", uploadID)
	if err != nil {
		return fmt.Errorf("concordanceRepo.ReplaceForUpload delete: %w", err)
	}

	if len(rows) > 0 {
		now := time.Now().UTC()
		valueStrings := make([]string, 0, len(rows))
		valueArgs := make([]interface{}, 0, len(rows)*19)

		for i, row := range rows {
			if row.ID == uuid.Nil {
				row.ID = uuid.New()
			}
			row.UploadID = uploadID
			row.CreatedAt = now
			base := i * 19
			placeholders := make([]string, 19)
			for j := range placeholders {
				placeholders[j] = fmt.Sprintf("$%d", base+j+1)
			}
			valueStrings = append(valueStrings, "("+strings.Join(placeholders, ", ")+")")
			valueArgs = append(valueArgs,
				row.ID, row.UploadID, row.PropertyID, row.PeriodID,
				row.DocumentType, row.FieldName, row.FieldDisplayName, row.AccountCode,
				row.ModelValues, row.NormalizedValue,
				row.AgreementCount, row.TotalModels, row.AgreementPercentage,
				row.HasConsensus, row.IsPerfectAgreement, row.ConflictingModels,
				row.FinalValue, row.FinalModel, row.CreatedAt)
		}

		query := fmt.Sprintf(
			`INSERT INTO concordance_rows (
				id, upload_id, property_id, period_id,
				document_type, field_name, field_display_name, account_code,
				model_values, normalized_value,
				agreement_count, total_models, agreement_percentage,
				has_consensus, is_perfect_agreement, conflicting_models,
				final_value, final_model, created_at
			) VALUES %s`,
			strings.Join(valueStrings, ", "))

		if _, err := tx.ExecContext(ctx, query, valueArgs...); err != nil {
			return fmt.Errorf("concordanceRepo.ReplaceForUpload insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("concordanceRepo.ReplaceForUpload commit: %w", err)
	}
	return nil
}

func (r *concordanceRepo) ListByUpload(ctx context.Context, uploadID uuid.UUID) ([]domain.ConcordanceRow, error) {
	var rows []domain.ConcordanceRow
	err := r.db.SelectContext(ctx, &rows,
		"SELECT * FROM concordance_rows WHERE upload_id = $1 ORDER BY field_name",
		uploadID)
	if err != nil {
		return nil, fmt.Errorf("concordanceRepo.ListByUpload: %w", err)
	}
	return rows, nil
}
