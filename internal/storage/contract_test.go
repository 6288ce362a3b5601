package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/metric"
)

// testStorageContract exercises the behaviour every Storage implementation shares.
func testStorageContract(t *testing.T, s Storage) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	newMetric := func(id, ref, sha string, coverage float64, offset time.Duration) *metric.Metric {
		return &metric.Metric{ID: id, Ref: ref, SHA: sha, Coverage: coverage, CreatedAt: base.Add(offset)}
	}

	t.Run("save and get cycle", func(t *testing.T) {
		m := newMetric("pm-1", "main", "aaa111", 81.5, 0)
		require.NoError(t, s.SaveMetric(ctx, m))

		got, err := s.GetMetric(ctx, MetricKey{Ref: "main", SHA: "aaa111"})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "pm-1", got.ID)
		assert.Equal(t, 81.5, got.Coverage)
		assert.True(t, m.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("get missing metric returns nil", func(t *testing.T) {
		got, err := s.GetMetric(ctx, MetricKey{Ref: "main", SHA: "fff999"})
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("overwrite same commit", func(t *testing.T) {
		require.NoError(t, s.SaveMetric(ctx, newMetric("pm-2", "release", "bbb222", 70, time.Minute)))
		require.NoError(t, s.SaveMetric(ctx, newMetric("pm-3", "release", "bbb222", 72.5, 2*time.Minute)))

		got, err := s.GetMetric(ctx, MetricKey{Ref: "release", SHA: "bbb222"})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "pm-3", got.ID)
		assert.Equal(t, 72.5, got.Coverage)

		history, err := s.ListMetrics(ctx, "release")
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})

	t.Run("list is newest first and scoped to ref", func(t *testing.T) {
		require.NoError(t, s.SaveMetric(ctx, newMetric("pm-10", "feature", "c1", 60, 10*time.Minute)))
		require.NoError(t, s.SaveMetric(ctx, newMetric("pm-11", "feature", "c2", 61, 20*time.Minute)))
		require.NoError(t, s.SaveMetric(ctx, newMetric("pm-12", "feature/x", "c3", 62, 30*time.Minute)))

		history, err := s.ListMetrics(ctx, "feature")
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "pm-11", history[0].ID)
		assert.Equal(t, "pm-10", history[1].ID)

		nested, err := s.ListMetrics(ctx, "feature/x")
		require.NoError(t, err)
		require.Len(t, nested, 1)
		assert.Equal(t, "pm-12", nested[0].ID)
	})

	t.Run("list unknown ref is empty", func(t *testing.T) {
		history, err := s.ListMetrics(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("validation", func(t *testing.T) {
		assert.Error(t, s.SaveMetric(ctx, nil))
		assert.Error(t, s.SaveMetric(ctx, newMetric("", "main", "x", 1, 0)))
		assert.Error(t, s.SaveMetric(ctx, newMetric("pm", "", "x", 1, 0)))
		assert.Error(t, s.SaveMetric(ctx, newMetric("pm", "main", "", 1, 0)))

		_, err := s.GetMetric(ctx, MetricKey{Ref: "main"})
		assert.Error(t, err)

		_, err = s.ListMetrics(ctx, "")
		assert.Error(t, err)
	})

	t.Run("keys that would share a location are rejected", func(t *testing.T) {
		// a + "b:c" and "a:b" + c join to the same Redis key; feature + "x/y" and
		// "feature/x" + y join to the same object path.
		rejected := []MetricKey{
			{Ref: "a", SHA: "b:c"},
			{Ref: "a:b", SHA: "c"},
			{Ref: "feature", SHA: "x/y"},
			{Ref: "feature/", SHA: "abc"},
			{Ref: "/feature", SHA: "abc"},
			{Ref: "feature/../main", SHA: "abc"},
		}
		for _, key := range rejected {
			assert.Error(t, s.SaveMetric(ctx, newMetric("pm-x", key.Ref, key.SHA, 50, 0)), "save %+v", key)
			_, err := s.GetMetric(ctx, key)
			assert.Error(t, err, "get %+v", key)
		}

		_, err := s.ListMetrics(ctx, "a:b")
		assert.Error(t, err)

		require.NoError(t, s.SaveMetric(ctx, newMetric("pm-20", "feature/x", "abc", 50, 0)))
		got, err := s.GetMetric(ctx, MetricKey{Ref: "feature", SHA: "abc"})
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
