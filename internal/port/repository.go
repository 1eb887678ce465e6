package port

import (
	"context"

	"github.com/google/uuid"

	"verity/internal/domain"
)

// DocumentRepository persists uploaded documents and their extraction state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error)
	List(ctx context.Context, offset, limit int) ([]domain.Document, int, error)
	// ClaimQueued atomically marks up to limit queued documents as processing
	// and returns them.
	ClaimQueued(ctx context.Context, limit int) ([]domain.Document, error)
	UpdateExtractionResults(ctx context.Context, doc *domain.Document) error
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, reason string) error
	Requeue(ctx context.Context, id uuid.UUID) error
	ListNeedingReview(ctx context.Context, offset, limit int) ([]domain.Document, int, error)
	UpdateReview(ctx context.Context, doc *domain.Document) error
}

// EnsembleFieldRepository persists per-field voting outcomes. Rows for a
// document are replaced as a whole on every extraction run.
type EnsembleFieldRepository interface {
	ReplaceForDocument(ctx context.Context, documentID uuid.UUID, fields []domain.EnsembleField) error
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]domain.EnsembleField, error)
}

// AccountRepository reads the chart of accounts used to decorate concordance
// rows. Seeding happens out of band via generated SQL.
type AccountRepository interface {
	MapByDocumentType(ctx context.Context, documentType domain.DocumentType) (map[string]domain.Account, error)
}

// ConcordanceRepository persists the per-upload agreement audit table.
// ReplaceForUpload must delete and reinsert all rows for the upload in a
// single transaction so readers never observe a half-updated table.
type ConcordanceRepository interface {
	ReplaceForUpload(ctx context.Context, uploadID uuid.UUID, rows []domain.ConcordanceRow) error
	ListByUpload(ctx context.Context, uploadID uuid.UUID) ([]domain.ConcordanceRow, error)
}
