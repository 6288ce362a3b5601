package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/metric"
)

// InMemoryStorage implements Storage with a map. Data is lost on restart.
type InMemoryStorage struct {
	data   map[MetricKey]metric.Metric
	closed bool
	mu     sync.RWMutex
}

var _ Storage = (*InMemoryStorage)(nil)

// NewInMemoryStorage creates an empty InMemoryStorage.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		data: make(map[MetricKey]metric.Metric),
	}
}

// SaveMetric stores a copy of m.
func (s *InMemoryStorage) SaveMetric(ctx context.Context, m *metric.Metric) error {
	if err := validateMetric(m); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("storage is closed")
	}
	s.data[KeyOf(m)] = *m
	return nil
}

// GetMetric returns a copy of the stored metric, or nil if there is none.
func (s *InMemoryStorage) GetMetric(ctx context.Context, key MetricKey) (*metric.Metric, error) {
	if err := ValidateMetricKey(key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

// ListMetrics returns copies of all metrics stored for ref, newest first.
func (s *InMemoryStorage) ListMetrics(ctx context.Context, ref string) ([]*metric.Metric, error) {
	if err := ValidateRef(ref); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var metrics []*metric.Metric
	for key, m := range s.data {
		if key.Ref == ref {
			m := m
			metrics = append(metrics, &m)
		}
	}
	sortNewestFirst(metrics)
	return metrics, nil
}

// Close marks the storage closed; later saves fail.
func (s *InMemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
