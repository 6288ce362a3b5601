package metric

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMetricNotFound is returned by a Service when no metric is stored for a commit.
	ErrMetricNotFound = errors.New("metric not found")

	// ErrInvalidCoverage is returned when a coverage value is not a finite number.
	ErrInvalidCoverage = errors.New("invalid coverage value")
)

// Metric is a coverage measurement previously recorded for a commit.
type Metric struct {
	ID        string    `json:"id"`
	Ref       string    `json:"ref"`
	SHA       string    `json:"sha"`
	Coverage  float64   `json:"coverage"`
	CreatedAt time.Time `json:"createdAt"`
}

// Service is the remote store of coverage metrics.
type Service interface {
	// GetProjectMetric returns the metric recorded for ref and sha.
	// Returns ErrMetricNotFound if nothing was recorded.
	GetProjectMetric(ctx context.Context, ref, sha string) (*Metric, error)

	// SetProjectMetric records coverage for ref and sha and returns the record id.
	SetProjectMetric(ctx context.Context, ref, sha string, coverage float64) (string, error)
}
