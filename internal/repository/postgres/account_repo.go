package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"verity/internal/domain"
	"verity/internal/port"
)

type accountRepo struct {
	db *sqlx.DB
}

// NewAccountRepo creates a new PostgreSQL-backed AccountRepository.
func NewAccountRepo(db *sqlx.DB) port.AccountRepository {
	return &accountRepo{db: db}
}

func (r *accountRepo) MapByDocumentType(ctx context.Context, documentType domain.DocumentType) (map[string]domain.Account, error) {
	var accounts []domain.Account
	err := r.db.SelectContext(ctx, &accounts,
		"SELECT * FROM accounts WHERE document_type = $1", documentType)
	if err != nil {
		return nil, fmt.Errorf("accountRepo.MapByDocumentType: %w", err)
	}

	byField := make(map[string]domain.Account, len(accounts))
	for _, a := range accounts {
		byField[a.FieldName] = a
	}
	return byField, nil
}
