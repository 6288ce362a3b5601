package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/metric"
)

// GCSStorage implements the Storage interface using Google Cloud Storage.
type GCSStorage struct {
	client *storage.Client
	bucket string
}

var _ Storage = (*GCSStorage)(nil)

// NewGCSStorage creates a new GCS storage client for bucket.
// It uses Application Default Credentials (ADC) unless opts say otherwise.
// The STORAGE_EMULATOR_HOST variable is honoured by the underlying client.
func NewGCSStorage(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSStorage, error) {
	if bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStorage{
		client: client,
		bucket: bucket,
	}, nil
}

// SaveMetric stores m as a JSON object.
// Path format: metrics/{ref}/{sha}.json
func (g *GCSStorage) SaveMetric(ctx context.Context, m *metric.Metric) error {
	if err := validateMetric(m); err != nil {
		return err
	}

	data, err := encodeMetric(m)
	if err != nil {
		return err
	}

	objectPath := FormatObjectPath(KeyOf(m))
	w := g.client.Bucket(g.bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to write to GCS object %s: %w", objectPath, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %s: %w", objectPath, err)
	}

	return nil
}

// GetMetric retrieves the metric for the given key.
// Returns nil if the object does not exist.
func (g *GCSStorage) GetMetric(ctx context.Context, key MetricKey) (*metric.Metric, error) {
	if err := ValidateMetricKey(key); err != nil {
		return nil, err
	}

	return g.readMetric(ctx, FormatObjectPath(key))
}

func (g *GCSStorage) readMetric(ctx context.Context, objectPath string) (*metric.Metric, error) {
	r, err := g.client.Bucket(g.bucket).Object(objectPath).NewReader(ctx)
	if err != nil {
		// Return nil if object doesn't exist (not an error according to interface)
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open GCS object %s: %w", objectPath, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object %s: %w", objectPath, err)
	}

	return decodeMetric(data)
}

// ListMetrics lists all metrics stored for ref, newest first.
func (g *GCSStorage) ListMetrics(ctx context.Context, ref string) ([]*metric.Metric, error) {
	if err := ValidateRef(ref); err != nil {
		return nil, err
	}

	prefix := formatRefPrefix(ref)
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{
		Prefix: prefix,
	})

	var metrics []*metric.Metric
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		if !isDirectChild(attrs.Name, prefix) {
			continue
		}

		m, err := g.readMetric(ctx, attrs.Name)
		if err != nil {
			return nil, err
		}
		// Deleted between listing and reading
		if m == nil {
			continue
		}
		metrics = append(metrics, m)
	}

	sortNewestFirst(metrics)
	return metrics, nil
}

// Close releases resources held by the storage client.
func (g *GCSStorage) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
