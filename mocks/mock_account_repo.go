package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"verity/internal/domain"
)

// MockAccountRepo is a mock implementation of port.AccountRepository.
type MockAccountRepo struct {
	mock.Mock
}

func (m *MockAccountRepo) MapByDocumentType(ctx context.Context, documentType domain.DocumentType) (map[string]domain.Account, error) {
	args := m.Called(ctx, documentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.Account), args.Error(1)
}
