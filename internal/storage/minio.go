package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/metric"
)

// MinIOStorage implements the Storage interface using MinIO (S3-compatible storage).
type MinIOStorage struct {
	client *minio.Client
	bucket string
}

var _ Storage = (*MinIOStorage)(nil)

// MinIOConfig holds the configuration for MinIO client initialization.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Bucket          string
}

// NewMinIOStorage creates a new MinIO storage client.
// The bucket is created if it does not exist yet.
func NewMinIOStorage(ctx context.Context, config MinIOConfig) (*MinIOStorage, error) {
	if config.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if config.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if config.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, config.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, config.Bucket, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", config.Bucket, err)
		}
	}

	return &MinIOStorage{
		client: client,
		bucket: config.Bucket,
	}, nil
}

// SaveMetric stores m as a JSON object.
// Path format: metrics/{ref}/{sha}.json
func (m *MinIOStorage) SaveMetric(ctx context.Context, rec *metric.Metric) error {
	if err := validateMetric(rec); err != nil {
		return err
	}

	data, err := encodeMetric(rec)
	if err != nil {
		return err
	}

	objectPath := FormatObjectPath(KeyOf(rec))
	_, err = m.client.PutObject(ctx, m.bucket, objectPath, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload to MinIO object %s: %w", objectPath, err)
	}

	return nil
}

// GetMetric retrieves the metric for the given key.
// Returns nil if the object does not exist.
func (m *MinIOStorage) GetMetric(ctx context.Context, key MetricKey) (*metric.Metric, error) {
	if err := ValidateMetricKey(key); err != nil {
		return nil, err
	}

	return m.readMetric(ctx, FormatObjectPath(key))
}

func (m *MinIOStorage) readMetric(ctx context.Context, objectPath string) (*metric.Metric, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, objectPath, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get MinIO object %s: %w", objectPath, err)
	}
	defer obj.Close()

	// GetObject is lazy; a missing key only surfaces on the first read
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read MinIO object %s: %w", objectPath, err)
	}

	return decodeMetric(data)
}

// ListMetrics lists all metrics stored for ref, newest first.
func (m *MinIOStorage) ListMetrics(ctx context.Context, ref string) ([]*metric.Metric, error) {
	if err := ValidateRef(ref); err != nil {
		return nil, err
	}

	prefix := formatRefPrefix(ref)
	objectCh := m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	var metrics []*metric.Metric
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		if !isDirectChild(object.Key, prefix) {
			continue
		}

		rec, err := m.readMetric(ctx, object.Key)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		metrics = append(metrics, rec)
	}

	sortNewestFirst(metrics)
	return metrics, nil
}

// Close releases resources held by the storage client.
// MinIO client doesn't require explicit cleanup, but we implement this for interface compliance.
func (m *MinIOStorage) Close() error {
	return nil
}
