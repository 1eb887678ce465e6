package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"verity/internal/domain"
	"verity/internal/port"
)

// MockExtractionEngine is a mock implementation of port.ExtractionEngine.
type MockExtractionEngine struct {
	mock.Mock
	EngineName domain.EngineName
}

func (m *MockExtractionEngine) Name() domain.EngineName {
	return m.EngineName
}

func (m *MockExtractionEngine) Extract(ctx context.Context, pdfBytes []byte) (*port.ExtractionResult, error) {
	args := m.Called(ctx, pdfBytes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.ExtractionResult), args.Error(1)
}
