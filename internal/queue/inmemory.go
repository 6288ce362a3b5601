package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// InMemoryQueue implements MessageQueue using a buffered channel.
// It is meant for single-process deployments where the server and the
// subscriber live side by side. Failed messages are not redelivered.
type InMemoryQueue struct {
	ch     chan *MetricRecorded
	closed bool
	mu     sync.RWMutex
	logger *slog.Logger
}

// InMemoryConfig holds configuration for creating an InMemoryQueue.
type InMemoryConfig struct {
	// BufferSize is the channel buffer size (default: 100)
	BufferSize int

	// Logger receives handler failures (default: slog.Default())
	Logger *slog.Logger
}

// NewInMemoryQueue creates a new InMemoryQueue instance.
// The caller is responsible for calling Close() when done.
func NewInMemoryQueue(cfg InMemoryConfig) *InMemoryQueue {
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 100
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &InMemoryQueue{
		ch:     make(chan *MetricRecorded, bufferSize),
		logger: logger,
	}
}

// Publish sends a MetricRecorded message to the in-memory queue.
func (q *InMemoryQueue) Publish(ctx context.Context, msg *MetricRecorded) error {
	if msg == nil {
		return fmt.Errorf("message cannot be nil")
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish cancelled: %w", ctx.Err())
	}
}

// Subscribe consumes messages until the context is cancelled or the queue is closed.
func (q *InMemoryQueue) Subscribe(ctx context.Context, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	for {
		select {
		case msg, ok := <-q.ch:
			if !ok {
				return nil
			}

			if err := handler(ctx, msg); err != nil {
				q.logger.Error("failed to handle message",
					"project_metric_id", msg.ProjectMetricID,
					"error", err,
				)
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close closes the channel and prevents further publishing.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.ch)
	return nil
}
