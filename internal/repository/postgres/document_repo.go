package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"verity/internal/domain"
	"verity/internal/port"
)

type documentRepo struct {
	db *sqlx.DB
}

// NewDocumentRepo creates a new PostgreSQL-backed DocumentRepository.
func NewDocumentRepo(db *sqlx.DB) port.DocumentRepository {
	return &documentRepo{db: db}
}

func (r *documentRepo) Create(ctx context.Context, doc *domain.Document) error {
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	query := `INSERT INTO documents (
		id, property_id, period_id, name, document_type,
		storage_bucket, storage_key, quality_score,
		extraction_status, extraction_error, extract_attempts,
		overall_confidence, quality_gate_passed, validation_errors, engines_used,
		needs_review, review_status, reviewed_by, reviewed_at, reviewer_notes,
		extracted_at, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8,
		$9, $10, $11,
		$12, $13, $14, $15,
		$16, $17, $18, $19, $20,
		$21, $22, $23
	)`

	_, err := r.db.ExecContext(ctx, query,
		doc.ID, doc.PropertyID, doc.PeriodID, doc.Name, doc.DocumentType,
		doc.StorageBucket, doc.StorageKey, doc.QualityScore,
		doc.ExtractionStatus, doc.ExtractionError, doc.ExtractAttempts,
		doc.OverallConfidence, doc.QualityGatePassed, doc.ValidationErrors, doc.EnginesUsed,
		doc.NeedsReview, doc.ReviewStatus, doc.ReviewedBy, doc.ReviewedAt, doc.ReviewerNotes,
		doc.ExtractedAt, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("documentRepo.Create: %w", err)
	}
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	var doc domain.Document
	err := r.db.GetContext(ctx, &doc,
		"SELECT * FROM documents WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("documentRepo.GetByID: %w", err)
	}
	return &doc, nil
}

func (r *documentRepo) List(ctx context.Context, offset, limit int) ([]domain.Document, int, error) {
	var total int
	err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM documents")
	if err != nil {
		return nil, 0, fmt.Errorf("documentRepo.List count: %w", err)
	}

	var docs []domain.Document
	err = r.db.SelectContext(ctx, &docs,
		`SELECT * FROM documents ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("documentRepo.List: %w", err)
	}
	return docs, total, nil
}

// ClaimQueued flips queued documents to processing and returns them. The
// FOR UPDATE SKIP LOCKED subquery keeps concurrent workers from claiming the
// same document twice.
func (r *documentRepo) ClaimQueued(ctx context.Context, limit int) ([]domain.Document, error) {
	var docs []domain.Document
	err := r.db.SelectContext(ctx, &docs,
		`UPDATE documents SET
			extraction_status = $1,
			extract_attempts = extract_attempts + 1,
			updated_at = NOW()
		 WHERE id IN (
			SELECT id FROM documents
			WHERE extraction_status = $2
			ORDER BY created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING *`,
		domain.ExtractionStatusProcessing, domain.ExtractionStatusQueued, limit)
	if err != nil {
		return nil, fmt.Errorf("documentRepo.ClaimQueued: %w", err)
	}
	return docs, nil
}

func (r *documentRepo) UpdateExtractionResults(ctx context.Context, doc *domain.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE documents SET
			extraction_status = $1, extraction_error = $2,
			overall_confidence = $3, quality_gate_passed = $4,
			validation_errors = $5, engines_used = $6,
			needs_review = $7, extracted_at = $8, updated_at = $9
		 WHERE id = $10`,
		doc.ExtractionStatus, doc.ExtractionError,
		doc.OverallConfidence, doc.QualityGatePassed,
		doc.ValidationErrors, doc.EnginesUsed,
		doc.NeedsReview, doc.ExtractedAt, doc.UpdatedAt,
		doc.ID)
	if err != nil {
		return fmt.Errorf("documentRepo.UpdateExtractionResults: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *documentRepo) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, reason string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE documents SET
			extraction_status = $1, extraction_error = $2,
			extract_attempts = $3, updated_at = NOW()
		 WHERE id = $4`,
		domain.ExtractionStatusFailed, reason, attempts, id)
	if err != nil {
		return fmt.Errorf("documentRepo.MarkFailed: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *documentRepo) Requeue(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE documents SET
			extraction_status = $1, extraction_error = '', updated_at = NOW()
		 WHERE id = $2`,
		domain.ExtractionStatusQueued, id)
	if err != nil {
		return fmt.Errorf("documentRepo.Requeue: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *documentRepo) ListNeedingReview(ctx context.Context, offset, limit int) ([]domain.Document, int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM documents WHERE needs_review = TRUE AND review_status = $1",
		domain.ReviewStatusPending)
	if err != nil {
		return nil, 0, fmt.Errorf("documentRepo.ListNeedingReview count: %w", err)
	}

	var docs []domain.Document
	err = r.db.SelectContext(ctx, &docs,
		`SELECT * FROM documents
		 WHERE needs_review = TRUE AND review_status = $1
		 ORDER BY overall_confidence ASC, created_at ASC
		 LIMIT $2 OFFSET $3`,
		domain.ReviewStatusPending, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("documentRepo.ListNeedingReview: %w", err)
	}
	return docs, total, nil
}

func (r *documentRepo) UpdateReview(ctx context.Context, doc *domain.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE documents SET
			review_status = $1, reviewed_by = $2, reviewed_at = $3,
			reviewer_notes = $4, needs_review = $5, updated_at = $6
		 WHERE id = $7`,
		doc.ReviewStatus, doc.ReviewedBy, doc.ReviewedAt,
		doc.ReviewerNotes, doc.NeedsReview, doc.UpdatedAt,
		doc.ID)
	if err != nil {
		return fmt.Errorf("documentRepo.UpdateReview: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
