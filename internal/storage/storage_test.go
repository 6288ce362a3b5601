package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/metric"
)

func TestFormatObjectPath(t *testing.T) {
	tests := []struct {
		name     string
		key      MetricKey
		expected string
	}{
		{
			name:     "standard path",
			key:      MetricKey{Ref: "main", SHA: "abc123"},
			expected: "metrics/main/abc123.json",
		},
		{
			name:     "feature branch",
			key:      MetricKey{Ref: "feature/add-tests", SHA: "def456"},
			expected: "metrics/feature/add-tests/def456.json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatObjectPath(tt.key))
		})
	}
}

func TestValidateMetricKey(t *testing.T) {
	tests := []struct {
		name     string
		key      MetricKey
		errorMsg string
	}{
		{name: "valid key", key: MetricKey{Ref: "main", SHA: "abc123"}},
		{name: "missing ref", key: MetricKey{SHA: "abc123"}, errorMsg: "ref is required"},
		{name: "missing sha", key: MetricKey{Ref: "main"}, errorMsg: "sha is required"},
		{name: "nested ref", key: MetricKey{Ref: "feature/add-tests", SHA: "DEF456"}},
		{name: "pull request ref", key: MetricKey{Ref: "refs/pull/12/merge", SHA: "abc123"}},
		{name: "colon in ref", key: MetricKey{Ref: "a:b", SHA: "abc123"}, errorMsg: "character ':' not allowed"},
		{name: "space in ref", key: MetricKey{Ref: "my branch", SHA: "abc123"}, errorMsg: "not allowed"},
		{name: "trailing slash", key: MetricKey{Ref: "feature/", SHA: "abc123"}, errorMsg: "leading or trailing slash"},
		{name: "leading slash", key: MetricKey{Ref: "/main", SHA: "abc123"}, errorMsg: "leading or trailing slash"},
		{name: "empty component", key: MetricKey{Ref: "feature//x", SHA: "abc123"}, errorMsg: "empty path component"},
		{name: "parent component", key: MetricKey{Ref: "feature/../main", SHA: "abc123"}, errorMsg: `contains ".."`},
		{name: "lock suffix", key: MetricKey{Ref: "main.lock", SHA: "abc123"}, errorMsg: "bad suffix"},
		{name: "colon in sha", key: MetricKey{Ref: "a", SHA: "b:c"}, errorMsg: "not a hex object name"},
		{name: "slash in sha", key: MetricKey{Ref: "feature", SHA: "x/y"}, errorMsg: "not a hex object name"},
		{name: "sha too long", key: MetricKey{Ref: "main", SHA: strings.Repeat("a", 65)}, errorMsg: "longer than 64"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMetricKey(tt.key)
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestIsDirectChild(t *testing.T) {
	prefix := formatRefPrefix("feature")

	assert.True(t, isDirectChild("metrics/feature/abc.json", prefix))
	assert.False(t, isDirectChild("metrics/feature/x/abc.json", prefix))
	assert.False(t, isDirectChild("metrics/feature/abc.txt", prefix))
	assert.False(t, isDirectChild("metrics/other/abc.json", prefix))
}

func TestSortNewestFirst(t *testing.T) {
	now := time.Now()
	metrics := []*metric.Metric{
		{ID: "old", CreatedAt: now.Add(-time.Hour)},
		{ID: "new", CreatedAt: now},
		{ID: "mid", CreatedAt: now.Add(-time.Minute)},
	}

	sortNewestFirst(metrics)

	assert.Equal(t, "new", metrics[0].ID)
	assert.Equal(t, "mid", metrics[1].ID)
	assert.Equal(t, "old", metrics[2].ID)
}
