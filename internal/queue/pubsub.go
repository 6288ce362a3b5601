package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// PubSubQueue implements MessageQueue using Google Cloud Pub/Sub.
type PubSubQueue struct {
	client       *pubsub.Client
	topic        *pubsub.Topic
	subscription *pubsub.Subscription
	logger       *slog.Logger
}

// PubSubConfig holds configuration for creating a PubSubQueue.
type PubSubConfig struct {
	// ProjectID is the GCP project ID
	ProjectID string

	// TopicName is the Pub/Sub topic name
	TopicName string

	// SubscriptionName is the Pub/Sub subscription name. Only needed to Subscribe.
	SubscriptionName string

	// CreateIfNotExists creates the topic and subscription if they don't exist
	CreateIfNotExists bool

	// ClientOptions are passed to pubsub.NewClient (endpoint, credentials, gRPC conn)
	ClientOptions []option.ClientOption

	// Logger receives malformed message and handler failures (default: slog.Default())
	Logger *slog.Logger
}

// NewPubSubQueue creates a new PubSubQueue instance.
// The caller is responsible for calling Close() when done.
func NewPubSubQueue(ctx context.Context, cfg PubSubConfig) (*PubSubQueue, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project ID is required")
	}
	if cfg.TopicName == "" {
		return nil, fmt.Errorf("topic name is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, cfg.ClientOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	topic := client.Topic(cfg.TopicName)
	var sub *pubsub.Subscription
	if cfg.SubscriptionName != "" {
		sub = client.Subscription(cfg.SubscriptionName)
	}

	if cfg.CreateIfNotExists {
		topic, sub, err = ensureTopology(ctx, client, topic, sub, cfg)
		if err != nil {
			client.Close()
			return nil, err
		}
	}

	return &PubSubQueue{
		client:       client,
		topic:        topic,
		subscription: sub,
		logger:       logger,
	}, nil
}

func ensureTopology(ctx context.Context, client *pubsub.Client, topic *pubsub.Topic, sub *pubsub.Subscription, cfg PubSubConfig) (*pubsub.Topic, *pubsub.Subscription, error) {
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check topic existence: %w", err)
	}
	if !exists {
		topic, err = client.CreateTopic(ctx, cfg.TopicName)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create topic: %w", err)
		}
	}

	if sub == nil {
		return topic, nil, nil
	}

	exists, err = sub.Exists(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check subscription existence: %w", err)
	}
	if !exists {
		sub, err = client.CreateSubscription(ctx, cfg.SubscriptionName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 60 * time.Second,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create subscription: %w", err)
		}
	}

	return topic, sub, nil
}

// Publish sends a MetricRecorded message to the Pub/Sub topic and waits for
// the server to acknowledge it.
func (q *PubSubQueue) Publish(ctx context.Context, msg *MetricRecorded) error {
	if msg == nil {
		return fmt.Errorf("message cannot be nil")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	result := q.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"ref":      msg.Ref,
			"sha":      msg.SHA,
			"coverage": strconv.FormatFloat(msg.Coverage, 'f', -1, 64),
		},
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	return nil
}

// Subscribe starts consuming messages from the Pub/Sub subscription.
// Messages the handler fails on are nacked for redelivery.
// This method blocks until the context is cancelled or an error occurs.
func (q *PubSubQueue) Subscribe(ctx context.Context, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}
	if q.subscription == nil {
		return fmt.Errorf("subscription name is required to subscribe")
	}

	q.subscription.ReceiveSettings.MaxOutstandingMessages = 10
	q.subscription.ReceiveSettings.NumGoroutines = 4

	err := q.subscription.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		var recorded MetricRecorded
		if err := json.Unmarshal(m.Data, &recorded); err != nil {
			// Redelivering cannot fix a malformed payload
			q.logger.Error("dropping malformed message", "id", m.ID, "error", err)
			m.Ack()
			return
		}

		if err := handler(ctx, &recorded); err != nil {
			q.logger.Error("failed to handle message",
				"id", m.ID,
				"project_metric_id", recorded.ProjectMetricID,
				"error", err,
			)
			m.Nack()
			return
		}

		m.Ack()
	})

	if err != nil {
		return fmt.Errorf("subscription receive error: %w", err)
	}

	return nil
}

// Close releases resources held by the PubSubQueue.
func (q *PubSubQueue) Close() error {
	q.topic.Stop()
	return q.client.Close()
}
