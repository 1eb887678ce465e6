package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"verity/internal/domain"
)

// MockConcordanceRepo is a mock implementation of port.ConcordanceRepository.
type MockConcordanceRepo struct {
	mock.Mock
}

func (m *MockConcordanceRepo) ReplaceForUpload(ctx context.Context, uploadID uuid.UUID, rows []domain.ConcordanceRow) error {
	args := m.Called(ctx, uploadID, rows)
	return args.Error(0)
}

func (m *MockConcordanceRepo) ListByUpload(ctx context.Context, uploadID uuid.UUID) ([]domain.ConcordanceRow, error) {
	args := m.Called(ctx, uploadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ConcordanceRow), args.Error(1)
}
