// Package config loads coverdelta settings from COVERDELTA_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Mode represents which binary is loading configuration
type Mode string

const (
	// ModeClient is the CI-side CLI that reads and sends metrics.
	ModeClient Mode = "client"
	// ModeServer is the metric API server.
	ModeServer Mode = "server"
	// ModeWatch subscribes to metric-recorded events.
	ModeWatch Mode = "watch"
)

// EventSourceType selects where the client reads the event context from
type EventSourceType string

const (
	EventSourceGitHub EventSourceType = "github"
	EventSourceLocal  EventSourceType = "local"
)

// QueueType represents the type of message queue to use
type QueueType string

const (
	QueueTypeNone     QueueType = "none"
	QueueTypeInMemory QueueType = "inmemory"
	QueueTypeRedis    QueueType = "redis"
	QueueTypePubSub   QueueType = "pubsub"
)

// StorageType represents the type of storage backend to use
type StorageType string

const (
	StorageTypeMemory StorageType = "memory"
	StorageTypeGCS    StorageType = "gcs"
	StorageTypeMinio  StorageType = "minio"
	StorageTypeRedis  StorageType = "redis"
)

// Config holds all configuration for coverdelta
type Config struct {
	// Port for the HTTP server
	Port int

	// Log configuration
	Log LogConfig

	// Client configuration
	Client ClientConfig

	// Server configuration
	Server ServerConfig

	// Queue configuration
	Queue QueueConfig

	// Storage configuration
	Storage StorageConfig
}

// ClientConfig holds settings for talking to the metric service from CI
type ClientConfig struct {
	APIKey  string
	APIURL  string
	Timeout time.Duration

	EventSource EventSourceType
	WorkDir     string

	// Format is the report format of the run command
	Format string

	// GitHubOutput is the $GITHUB_OUTPUT file step outputs are appended to
	GitHubOutput string
}

// ServerConfig holds metric server settings
type ServerConfig struct {
	// APIKeys are accepted bearer tokens; empty disables authentication
	APIKeys []string

	ShutdownTimeout time.Duration
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Type QueueType

	// Redis configuration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisStream   string
	RedisGroup    string
	RedisConsumer string

	// Pub/Sub configuration
	PubSubProjectID    string
	PubSubTopicID      string
	PubSubSubscription string
}

// StorageConfig holds storage backend configuration
type StorageConfig struct {
	Type StorageType

	// GCS configuration
	GCSBucket string

	// MinIO configuration
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool

	// Redis configuration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// Load loads configuration from environment variables for the specified mode
func Load(mode Mode) (*Config, error) {
	if err := validateMode(mode); err != nil {
		return nil, err
	}

	cfg := &Config{}

	if err := cfg.loadLogConfig(); err != nil {
		return nil, err
	}

	switch mode {
	case ModeClient:
		if err := cfg.loadClientConfig(); err != nil {
			return nil, err
		}
	case ModeServer:
		port, err := strconv.Atoi(getEnv("COVERDELTA_PORT", "8080"))
		if err != nil {
			return nil, fmt.Errorf("invalid COVERDELTA_PORT: %w", err)
		}
		cfg.Port = port

		cfg.Server.APIKeys = splitList(getEnv("COVERDELTA_API_KEYS", ""))
		cfg.Server.ShutdownTimeout, err = getDuration("COVERDELTA_SHUTDOWN_TIMEOUT", "10s")
		if err != nil {
			return nil, err
		}

		if err := cfg.loadStorageConfig(); err != nil {
			return nil, err
		}
		if err := cfg.loadQueueConfig(mode, string(QueueTypeNone)); err != nil {
			return nil, err
		}
	case ModeWatch:
		if err := cfg.loadQueueConfig(mode, ""); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadClientConfig loads config for the CI client
func (c *Config) loadClientConfig() error {
	c.Client.APIKey = getEnv("COVERDELTA_API_KEY", os.Getenv("BARECHECK_API_KEY"))
	c.Client.APIURL = getEnv("COVERDELTA_API_URL", "https://api.barecheck.com/api")

	timeout, err := getDuration("COVERDELTA_TIMEOUT", "30s")
	if err != nil {
		return err
	}
	c.Client.Timeout = timeout

	// GitHub Actions sets GITHUB_ACTIONS=true; elsewhere fall back to the git checkout
	defaultSource := EventSourceLocal
	if os.Getenv("GITHUB_ACTIONS") == "true" {
		defaultSource = EventSourceGitHub
	}
	c.Client.EventSource = EventSourceType(getEnv("COVERDELTA_EVENT_SOURCE", string(defaultSource)))
	c.Client.WorkDir = getEnv("COVERDELTA_WORKDIR", "")
	c.Client.Format = getEnv("COVERDELTA_FORMAT", "Text")
	c.Client.GitHubOutput = getEnv("COVERDELTA_GITHUB_OUTPUT", os.Getenv("GITHUB_OUTPUT"))

	return nil
}

// loadQueueConfig loads message queue configuration
func (c *Config) loadQueueConfig(mode Mode, defaultType string) error {
	queueType := getEnv("COVERDELTA_QUEUE_TYPE", defaultType)
	if queueType == "" {
		return fmt.Errorf("COVERDELTA_QUEUE_TYPE is required in %s mode", mode)
	}
	c.Queue.Type = QueueType(queueType)

	switch c.Queue.Type {
	case QueueTypeNone, QueueTypeInMemory:
		// No additional config needed
	case QueueTypeRedis:
		return c.loadRedisQueueConfig()
	case QueueTypePubSub:
		return c.loadPubSubConfig(mode)
	default:
		return fmt.Errorf("invalid queue type: %s", queueType)
	}

	return nil
}

// loadRedisQueueConfig loads Redis stream configuration
func (c *Config) loadRedisQueueConfig() error {
	c.Queue.RedisAddr = getEnv("COVERDELTA_REDIS_ADDR", "localhost:6379")
	c.Queue.RedisPassword = getEnv("COVERDELTA_REDIS_PASSWORD", "")

	redisDB, err := strconv.Atoi(getEnv("COVERDELTA_REDIS_DB", "0"))
	if err != nil {
		return fmt.Errorf("invalid COVERDELTA_REDIS_DB: %w", err)
	}
	c.Queue.RedisDB = redisDB
	c.Queue.RedisStream = getEnv("COVERDELTA_REDIS_STREAM", "coverdelta-metric-recorded")
	c.Queue.RedisGroup = getEnv("COVERDELTA_REDIS_GROUP", "coverdelta-watchers")

	hostname, _ := os.Hostname()
	c.Queue.RedisConsumer = getEnv("COVERDELTA_REDIS_CONSUMER", hostname)

	return nil
}

// loadPubSubConfig loads Pub/Sub queue configuration
func (c *Config) loadPubSubConfig(mode Mode) error {
	c.Queue.PubSubProjectID = getEnv("COVERDELTA_PUBSUB_PROJECT_ID", "")
	if c.Queue.PubSubProjectID == "" {
		return fmt.Errorf("COVERDELTA_PUBSUB_PROJECT_ID is required for pubsub queue")
	}

	c.Queue.PubSubTopicID = getEnv("COVERDELTA_PUBSUB_TOPIC_ID", "coverdelta-metric-recorded")

	// Only subscribers need a subscription
	if mode == ModeWatch {
		c.Queue.PubSubSubscription = getEnv("COVERDELTA_PUBSUB_SUBSCRIPTION", "")
		if c.Queue.PubSubSubscription == "" {
			return fmt.Errorf("COVERDELTA_PUBSUB_SUBSCRIPTION is required in watch mode")
		}
	}

	return nil
}

// loadStorageConfig loads storage backend configuration
func (c *Config) loadStorageConfig() error {
	storageType := getEnv("COVERDELTA_STORAGE_TYPE", string(StorageTypeMemory))
	c.Storage.Type = StorageType(storageType)

	switch c.Storage.Type {
	case StorageTypeMemory:
		// No additional config needed
	case StorageTypeGCS:
		c.Storage.GCSBucket = getEnv("COVERDELTA_GCS_BUCKET", "")
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("COVERDELTA_GCS_BUCKET is required for gcs storage")
		}
	case StorageTypeMinio:
		c.Storage.MinIOEndpoint = getEnv("COVERDELTA_MINIO_ENDPOINT", "")
		if c.Storage.MinIOEndpoint == "" {
			return fmt.Errorf("COVERDELTA_MINIO_ENDPOINT is required for minio storage")
		}
		c.Storage.MinIOAccessKey = getEnv("COVERDELTA_MINIO_ACCESS_KEY", "")
		if c.Storage.MinIOAccessKey == "" {
			return fmt.Errorf("COVERDELTA_MINIO_ACCESS_KEY is required for minio storage")
		}
		c.Storage.MinIOSecretKey = getEnv("COVERDELTA_MINIO_SECRET_KEY", "")
		if c.Storage.MinIOSecretKey == "" {
			return fmt.Errorf("COVERDELTA_MINIO_SECRET_KEY is required for minio storage")
		}
		c.Storage.MinIOBucket = getEnv("COVERDELTA_MINIO_BUCKET", "coverdelta-metrics")
		c.Storage.MinIOUseSSL = getEnv("COVERDELTA_MINIO_USE_SSL", "false") == "true"
	case StorageTypeRedis:
		c.Storage.RedisAddr = getEnv("COVERDELTA_STORAGE_REDIS_ADDR", "localhost:6379")
		c.Storage.RedisPassword = getEnv("COVERDELTA_STORAGE_REDIS_PASSWORD", "")
		redisDB, err := strconv.Atoi(getEnv("COVERDELTA_STORAGE_REDIS_DB", "0"))
		if err != nil {
			return fmt.Errorf("invalid COVERDELTA_STORAGE_REDIS_DB: %w", err)
		}
		c.Storage.RedisDB = redisDB
		c.Storage.RedisPrefix = getEnv("COVERDELTA_STORAGE_REDIS_PREFIX", "coverdelta")
	default:
		return fmt.Errorf("invalid storage type: %s", storageType)
	}

	return nil
}

// validateMode validates that the mode is valid
func validateMode(mode Mode) error {
	switch mode {
	case ModeClient, ModeServer, ModeWatch:
		return nil
	default:
		return fmt.Errorf("invalid mode: %s (must be client, server, or watch)", mode)
	}
}

// Validate validates the complete configuration for the specified mode
func (c *Config) Validate(mode Mode) error {
	switch mode {
	case ModeClient:
		if c.Client.APIKey == "" {
			return fmt.Errorf("API key is required (set COVERDELTA_API_KEY or BARECHECK_API_KEY)")
		}
		if c.Client.APIURL == "" {
			return fmt.Errorf("API URL is required")
		}
		if c.Client.Timeout <= 0 {
			return fmt.Errorf("invalid timeout: %s (must be positive)", c.Client.Timeout)
		}
		switch c.Client.EventSource {
		case EventSourceGitHub, EventSourceLocal:
		default:
			return fmt.Errorf("invalid event source: %s (must be github or local)", c.Client.EventSource)
		}

	case ModeServer:
		if c.Port < 1 || c.Port > 65535 {
			return fmt.Errorf("invalid port: %d (must be between 1 and 65535)", c.Port)
		}
		if c.Storage.Type == "" {
			return fmt.Errorf("storage type is required")
		}

	case ModeWatch:
		if c.Queue.Type == "" || c.Queue.Type == QueueTypeNone {
			return fmt.Errorf("queue type is required in watch mode")
		}
		if c.Queue.Type == QueueTypeInMemory {
			return fmt.Errorf("in-memory queue cannot be used in watch mode")
		}
	}

	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration parses a time.Duration environment variable
func getDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// splitList splits a comma-separated value, dropping empty entries
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
