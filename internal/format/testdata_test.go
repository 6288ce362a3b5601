package format

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/metric"
)

func mustRefSha(t *testing.T, ref, sha string) metric.RefSha {
	t.Helper()
	rs, ok := metric.NewRefSha(ref, sha)
	require.True(t, ok)
	return rs
}

// reports returns the three report shapes every formatter must handle.
func reports(t *testing.T) map[string]*Report {
	return map[string]*Report{
		"with base": {
			Ref:             "feature/x",
			SHA:             "bbb222bbb222",
			Coverage:        92.3,
			ProjectMetricID: "pm-2",
			BaseRef:         mustRefSha(t, "develop", "aaa111aaa111"),
			Base:            &metric.Metric{ID: "pm-1", Ref: "develop", SHA: "aaa111aaa111", Coverage: 80},
		},
		"base without metric": {
			Ref:             "main",
			SHA:             "ccc333",
			Coverage:        75,
			ProjectMetricID: "pm-3",
			BaseRef:         mustRefSha(t, "main", "bbb222"),
		},
		"no base": {
			Ref:             "main",
			SHA:             "ddd444",
			Coverage:        60.127,
			ProjectMetricID: "pm-4",
		},
	}
}
