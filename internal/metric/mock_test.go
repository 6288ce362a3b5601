package metric

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockService is a testify mock of Service.
type MockService struct {
	mock.Mock
}

func (m *MockService) GetProjectMetric(ctx context.Context, ref, sha string) (*Metric, error) {
	args := m.Called(ctx, ref, sha)
	metric, _ := args.Get(0).(*Metric)
	return metric, args.Error(1)
}

func (m *MockService) SetProjectMetric(ctx context.Context, ref, sha string, coverage float64) (string, error) {
	args := m.Called(ctx, ref, sha, coverage)
	return args.String(0), args.Error(1)
}
