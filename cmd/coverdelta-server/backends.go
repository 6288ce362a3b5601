package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/config"
	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/queue"
	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/storage"
)

// openStorage creates the configured storage backend
func openStorage(ctx context.Context, cfg config.StorageConfig) (storage.Storage, error) {
	switch cfg.Type {
	case config.StorageTypeMemory:
		return storage.NewInMemoryStorage(), nil
	case config.StorageTypeGCS:
		return storage.NewGCSStorage(ctx, cfg.GCSBucket)
	case config.StorageTypeMinio:
		return storage.NewMinIOStorage(ctx, storage.MinIOConfig{
			Endpoint:        cfg.MinIOEndpoint,
			AccessKeyID:     cfg.MinIOAccessKey,
			SecretAccessKey: cfg.MinIOSecretKey,
			UseSSL:          cfg.MinIOUseSSL,
			Bucket:          cfg.MinIOBucket,
		})
	case config.StorageTypeRedis:
		return storage.NewRedisStorage(ctx, storage.RedisStorageConfig{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	default:
		return nil, fmt.Errorf("invalid storage type: %s", cfg.Type)
	}
}

// openQueue creates the configured message queue. It returns nil for QueueTypeNone.
// Only subscribers create the Redis consumer group or the Pub/Sub subscription.
func openQueue(ctx context.Context, cfg config.QueueConfig, subscriber bool, logger *slog.Logger) (queue.MessageQueue, error) {
	switch cfg.Type {
	case config.QueueTypeNone, "":
		return nil, nil
	case config.QueueTypeInMemory:
		return queue.NewInMemoryQueue(queue.InMemoryConfig{Logger: logger}), nil
	case config.QueueTypeRedis:
		consumer := cfg.RedisConsumer
		if consumer == "" {
			consumer = fmt.Sprintf("coverdelta-%d", os.Getpid())
		}
		return queue.NewRedisQueue(ctx, queue.RedisConfig{
			Address:           cfg.RedisAddr,
			Password:          cfg.RedisPassword,
			DB:                cfg.RedisDB,
			StreamKey:         cfg.RedisStream,
			ConsumerGroup:     cfg.RedisGroup,
			ConsumerName:      consumer,
			CreateIfNotExists: subscriber,
			Logger:            logger,
		})
	case config.QueueTypePubSub:
		pubsubCfg := queue.PubSubConfig{
			ProjectID:         cfg.PubSubProjectID,
			TopicName:         cfg.PubSubTopicID,
			CreateIfNotExists: true,
			Logger:            logger,
		}
		if subscriber {
			pubsubCfg.SubscriptionName = cfg.PubSubSubscription
		}
		return queue.NewPubSubQueue(ctx, pubsubCfg)
	default:
		return nil, fmt.Errorf("invalid queue type: %s", cfg.Type)
	}
}
