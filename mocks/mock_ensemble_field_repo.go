package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"verity/internal/domain"
)

// MockEnsembleFieldRepo is a mock implementation of port.EnsembleFieldRepository.
type MockEnsembleFieldRepo struct {
	mock.Mock
}

func (m *MockEnsembleFieldRepo) ReplaceForDocument(ctx context.Context, documentID uuid.UUID, fields []domain.EnsembleField) error {
	args := m.Called(ctx, documentID, fields)
	return args.Error(0)
}

func (m *MockEnsembleFieldRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]domain.EnsembleField, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.EnsembleField), args.Error(1)
}
