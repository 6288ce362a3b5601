package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/metric"
)

// RedisStorage implements Storage on Redis.
//
// Each metric is a JSON string at {prefix}:metric:{ref}:{sha}. A sorted set at
// {prefix}:history:{ref}, scored by creation time, indexes the commits of a ref.
// ValidateMetricKey keeps ':' out of refs and shas, so keys are unambiguous.
type RedisStorage struct {
	client *redis.Client
	prefix string
}

var _ Storage = (*RedisStorage)(nil)

// RedisStorageConfig holds configuration for creating a RedisStorage.
type RedisStorageConfig struct {
	// Address is the Redis server address (host:port)
	Address string

	// Password is the Redis password (optional)
	Password string

	// DB is the Redis database number (default: 0)
	DB int

	// Prefix namespaces all keys (default: "coverdelta")
	Prefix string
}

// NewRedisStorage creates a new RedisStorage and checks the connection.
// The caller is responsible for calling Close() when done.
func NewRedisStorage(ctx context.Context, cfg RedisStorageConfig) (*RedisStorage, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "coverdelta"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStorage{client: client, prefix: prefix}, nil
}

func (r *RedisStorage) metricKey(key MetricKey) string {
	return fmt.Sprintf("%s:metric:%s:%s", r.prefix, key.Ref, key.SHA)
}

func (r *RedisStorage) historyKey(ref string) string {
	return fmt.Sprintf("%s:history:%s", r.prefix, ref)
}

// SaveMetric stores m and indexes it under its ref in a single transaction.
func (r *RedisStorage) SaveMetric(ctx context.Context, m *metric.Metric) error {
	if err := validateMetric(m); err != nil {
		return err
	}

	data, err := encodeMetric(m)
	if err != nil {
		return err
	}

	key := KeyOf(m)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.metricKey(key), data, 0)
		pipe.ZAdd(ctx, r.historyKey(key.Ref), redis.Z{
			Score:  float64(m.CreatedAt.UnixMilli()),
			Member: key.SHA,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save metric %s@%s: %w", key.Ref, key.SHA, err)
	}
	return nil
}

// GetMetric retrieves the metric for the given key.
// Returns nil if the key does not exist.
func (r *RedisStorage) GetMetric(ctx context.Context, key MetricKey) (*metric.Metric, error) {
	if err := ValidateMetricKey(key); err != nil {
		return nil, err
	}

	data, err := r.client.Get(ctx, r.metricKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get metric %s@%s: %w", key.Ref, key.SHA, err)
	}

	return decodeMetric(data)
}

// ListMetrics returns every metric indexed for ref, newest first.
func (r *RedisStorage) ListMetrics(ctx context.Context, ref string) ([]*metric.Metric, error) {
	if err := ValidateRef(ref); err != nil {
		return nil, err
	}

	shas, err := r.client.ZRevRange(ctx, r.historyKey(ref), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history of %s: %w", ref, err)
	}
	if len(shas) == 0 {
		return nil, nil
	}

	keys := make([]string, len(shas))
	for i, sha := range shas {
		keys[i] = r.metricKey(MetricKey{Ref: ref, SHA: sha})
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics of %s: %w", ref, err)
	}

	metrics := make([]*metric.Metric, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// Index entry without a value
			continue
		}
		m, err := decodeMetric([]byte(s))
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}

	sortNewestFirst(metrics)
	return metrics, nil
}

// Close releases resources held by the RedisStorage.
func (r *RedisStorage) Close() error {
	return r.client.Close()
}
