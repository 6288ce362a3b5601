package queue

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisConfig_Validation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		config  RedisConfig
		wantErr string
	}{
		{
			name: "missing address",
			config: RedisConfig{
				StreamKey:     "test-stream",
				ConsumerGroup: "test-group",
				ConsumerName:  "test-consumer",
			},
			wantErr: "redis address is required",
		},
		{
			name: "missing stream key",
			config: RedisConfig{
				Address:       "localhost:6379",
				ConsumerGroup: "test-group",
				ConsumerName:  "test-consumer",
			},
			wantErr: "stream key is required",
		},
		{
			name: "missing consumer group",
			config: RedisConfig{
				Address:      "localhost:6379",
				StreamKey:    "test-stream",
				ConsumerName: "test-consumer",
			},
			wantErr: "consumer group is required",
		},
		{
			name: "missing consumer name",
			config: RedisConfig{
				Address:       "localhost:6379",
				StreamKey:     "test-stream",
				ConsumerGroup: "test-group",
			},
			wantErr: "consumer name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRedisQueue(ctx, tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRedisQueue_ConnectionError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewRedisQueue(ctx, RedisConfig{
		Address:       "localhost:1",
		StreamKey:     "test-stream",
		ConsumerGroup: "test-group",
		ConsumerName:  "test-consumer",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func newMiniredisQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	q, err := NewRedisQueue(context.Background(), RedisConfig{
		Address:           mr.Addr(),
		StreamKey:         "coverdelta:metrics",
		ConsumerGroup:     "watchers",
		ConsumerName:      "watcher-1",
		CreateIfNotExists: true,
		Block:             50 * time.Millisecond,
		Logger:            discardLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })

	return q, mr
}

func TestRedisQueue_CreateIfNotExistsIsIdempotent(t *testing.T) {
	q, mr := newMiniredisQueue(t)

	again, err := NewRedisQueue(context.Background(), RedisConfig{
		Address:           mr.Addr(),
		StreamKey:         q.streamKey,
		ConsumerGroup:     q.consumerGroup,
		ConsumerName:      "watcher-2",
		CreateIfNotExists: true,
	})
	require.NoError(t, err)
	defer again.Close()
}

func TestRedisQueue_Validation(t *testing.T) {
	q, _ := newMiniredisQueue(t)
	ctx := context.Background()

	err := q.Publish(ctx, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message cannot be nil")

	err = q.Subscribe(ctx, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler cannot be nil")
}

func TestRedisQueue_PublishWritesStreamFields(t *testing.T) {
	q, mr := newMiniredisQueue(t)
	msg := recordedAt(4)

	require.NoError(t, q.Publish(context.Background(), msg))

	entries, err := mr.Stream(q.streamKey)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	fields := map[string]string{}
	for i := 0; i+1 < len(entries[0].Values); i += 2 {
		fields[entries[0].Values[i]] = entries[0].Values[i+1]
	}
	assert.Equal(t, "main", fields["ref"])
	assert.Equal(t, "sha004", fields["sha"])
	assert.Equal(t, "80.4", fields["coverage"])

	var decoded MetricRecorded
	require.NoError(t, json.Unmarshal([]byte(fields["data"]), &decoded))
	assert.Equal(t, *msg, decoded)
}

func TestRedisQueue_PublishAndSubscribe(t *testing.T) {
	q, _ := newMiniredisQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	messages := []*MetricRecorded{recordedAt(1), recordedAt(2), recordedAt(3)}
	for _, msg := range messages {
		require.NoError(t, q.Publish(ctx, msg))
	}

	var mu sync.Mutex
	var received []*MetricRecorded
	subCtx, subCancel := context.WithCancel(ctx)
	defer subCancel()

	done := make(chan error, 1)
	go func() {
		done <- q.Subscribe(subCtx, func(ctx context.Context, m *MetricRecorded) error {
			mu.Lock()
			defer mu.Unlock()
			received = append(received, m)
			if len(received) == len(messages) {
				subCancel()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-ctx.Done():
		t.Fatal("timeout waiting for messages")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, len(messages))
	for i, msg := range messages {
		assert.Equal(t, msg.ProjectMetricID, received[i].ProjectMetricID)
		assert.Equal(t, msg.SHA, received[i].SHA)
		assert.InDelta(t, msg.Coverage, received[i].Coverage, 1e-9)
		assert.True(t, msg.RecordedAt.Equal(received[i].RecordedAt))
	}

	pending, err := q.client.XPending(context.Background(), q.streamKey, q.consumerGroup).Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestRedisQueue_FailedMessagesStayPending(t *testing.T) {
	q, _ := newMiniredisQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, q.Publish(ctx, recordedAt(1)))
	require.NoError(t, q.Publish(ctx, recordedAt(2)))

	subCtx, subCancel := context.WithCancel(ctx)
	defer subCancel()

	var mu sync.Mutex
	var handled int
	done := make(chan error, 1)
	go func() {
		done <- q.Subscribe(subCtx, func(ctx context.Context, m *MetricRecorded) error {
			mu.Lock()
			defer mu.Unlock()
			handled++
			if handled == 2 {
				subCancel()
			}
			if m.ProjectMetricID == "pm-1" {
				return assert.AnError
			}
			return nil
		})
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("timeout waiting for messages")
	}

	pending, err := q.client.XPending(context.Background(), q.streamKey, q.consumerGroup).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)
}

func TestRedisQueue_MalformedMessageIsAcknowledged(t *testing.T) {
	q, _ := newMiniredisQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.streamKey,
		Values: map[string]interface{}{"data": "{not json"},
	}).Err())
	require.NoError(t, q.Publish(ctx, recordedAt(7)))

	subCtx, subCancel := context.WithCancel(ctx)
	defer subCancel()

	received := make(chan *MetricRecorded, 1)
	done := make(chan error, 1)
	go func() {
		done <- q.Subscribe(subCtx, func(ctx context.Context, m *MetricRecorded) error {
			received <- m
			subCancel()
			return nil
		})
	}()

	select {
	case m := <-received:
		assert.Equal(t, "pm-7", m.ProjectMetricID)
	case <-ctx.Done():
		t.Fatal("timeout waiting for message")
	}
	<-done

	pending, err := q.client.XPending(context.Background(), q.streamKey, q.consumerGroup).Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}
