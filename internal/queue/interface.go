// Package queue carries metric-recorded notifications from the metric server to
// downstream consumers such as pull request commenters.
package queue

import (
	"context"
	"time"
)

// MetricRecorded announces that a coverage metric was stored.
type MetricRecorded struct {
	// ProjectMetricID is the id returned to the submitting client.
	ProjectMetricID string `json:"project_metric_id"`

	// Ref is the short branch name (e.g., "main").
	Ref string `json:"ref"`

	// SHA is the commit the metric was recorded for.
	SHA string `json:"sha"`

	// Coverage is the recorded coverage percentage.
	Coverage float64 `json:"coverage"`

	// RecordedAt is when the server stored the metric.
	RecordedAt time.Time `json:"recorded_at"`
}

// Handler processes one MetricRecorded message.
type Handler func(context.Context, *MetricRecorded) error

// MessageQueue defines the interface for queue operations.
// Implementations include GCP Pub/Sub, Redis, and in-memory queues.
type MessageQueue interface {
	// Publish sends a MetricRecorded message to the queue.
	// Returns an error if the publish operation fails.
	Publish(ctx context.Context, msg *MetricRecorded) error

	// Subscribe starts consuming messages from the queue and calls handler for
	// each received message. A handler error may trigger redelivery depending on
	// the implementation.
	//
	// This method blocks until the context is cancelled or an unrecoverable error occurs.
	Subscribe(ctx context.Context, handler Handler) error

	// Close releases any resources held by the queue client.
	// After Close is called, the MessageQueue should not be used.
	Close() error
}
