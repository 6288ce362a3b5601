// Package storage persists coverage metrics for the metric server.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/metric"
)

// MetricKey uniquely identifies a metric in storage.
// Object path format: metrics/{ref}/{sha}.json
type MetricKey struct {
	Ref string
	SHA string
}

// KeyOf returns the key a metric is stored under.
func KeyOf(m *metric.Metric) MetricKey {
	return MetricKey{Ref: m.Ref, SHA: m.SHA}
}

// Storage defines the interface for metric persistence.
// Implementations include GCS and MinIO for object storage, Redis, and an
// in-memory store for development and tests.
type Storage interface {
	// SaveMetric stores m under KeyOf(m), replacing any previous metric for that commit.
	SaveMetric(ctx context.Context, m *metric.Metric) error

	// GetMetric retrieves the metric for the given key.
	// Returns nil if no metric is stored.
	// Returns an error if the retrieval operation fails (excluding not-found).
	GetMetric(ctx context.Context, key MetricKey) (*metric.Metric, error)

	// ListMetrics returns every metric stored for ref, newest first.
	ListMetrics(ctx context.Context, ref string) ([]*metric.Metric, error)

	// Close releases any resources held by the storage client.
	Close() error
}

// FormatObjectPath creates the object path from a metric key.
// Format: metrics/{ref}/{sha}.json
func FormatObjectPath(key MetricKey) string {
	return fmt.Sprintf("%s%s.json", formatRefPrefix(key.Ref), key.SHA)
}

// formatRefPrefix is the object prefix shared by all metrics of ref.
func formatRefPrefix(ref string) string {
	return fmt.Sprintf("metrics/%s/", ref)
}

// isDirectChild reports whether name sits directly below prefix. Branch names may
// contain slashes, so "metrics/feature/" also prefixes metrics of "feature/x".
func isDirectChild(name, prefix string) bool {
	rest := strings.TrimPrefix(name, prefix)
	return rest != name && !strings.Contains(rest, "/") && strings.HasSuffix(rest, ".json")
}

// ValidateMetricKey checks that key maps to exactly one storage location.
// The sha must be a hex object name and the ref must pass ValidateRef, so neither
// half can borrow the separators ('/' and ':') that join them in paths and keys.
func ValidateMetricKey(key MetricKey) error {
	if err := ValidateRef(key.Ref); err != nil {
		return err
	}
	return validateSHA(key.SHA)
}

// ValidateRef rejects refs that are empty or that git itself would refuse
// (see git check-ref-format).
func ValidateRef(ref string) error {
	switch {
	case ref == "":
		return errors.New("ref is required")
	case strings.HasPrefix(ref, "/") || strings.HasSuffix(ref, "/"):
		return fmt.Errorf("invalid ref %q: leading or trailing slash", ref)
	case strings.Contains(ref, "//"):
		return fmt.Errorf("invalid ref %q: empty path component", ref)
	case strings.Contains(ref, ".."):
		return fmt.Errorf("invalid ref %q: contains \"..\"", ref)
	case strings.HasSuffix(ref, ".lock") || strings.HasSuffix(ref, "."):
		return fmt.Errorf("invalid ref %q: bad suffix", ref)
	}
	for _, r := range ref {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(" ~^:?*[\\", r) {
			return fmt.Errorf("invalid ref %q: character %q not allowed", ref, r)
		}
	}
	return nil
}

// maxSHALength fits SHA-256 object names.
const maxSHALength = 64

func validateSHA(sha string) error {
	if sha == "" {
		return errors.New("sha is required")
	}
	if len(sha) > maxSHALength {
		return fmt.Errorf("invalid sha %q: longer than %d characters", sha, maxSHALength)
	}
	for _, r := range sha {
		if !isHex(r) {
			return fmt.Errorf("invalid sha %q: not a hex object name", sha)
		}
	}
	return nil
}

func isHex(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// validateMetric validates a metric before it is saved.
func validateMetric(m *metric.Metric) error {
	if m == nil {
		return errors.New("metric is nil")
	}
	if m.ID == "" {
		return errors.New("metric id is required")
	}
	return ValidateMetricKey(KeyOf(m))
}

func encodeMetric(m *metric.Metric) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metric: %w", err)
	}
	return data, nil
}

func decodeMetric(data []byte) (*metric.Metric, error) {
	var m metric.Metric
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metric: %w", err)
	}
	return &m, nil
}

// sortNewestFirst orders metrics by creation time, newest first.
func sortNewestFirst(metrics []*metric.Metric) {
	sort.SliceStable(metrics, func(i, j int) bool {
		return metrics[i].CreatedAt.After(metrics[j].CreatedAt)
	})
}
