package format

import (
	"strconv"

	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/metric"
)

// Report is the outcome of one coverage run: the metric just recorded and the
// base metric it is compared against.
type Report struct {
	// Ref and SHA identify the current commit. Ref is already cleaned.
	Ref string
	SHA string

	// Coverage is the value sent for the current commit.
	Coverage float64

	// ProjectMetricID is the record id returned by the metric service.
	ProjectMetricID string

	// BaseRef is the resolved base commit; zero when none could be resolved.
	BaseRef metric.RefSha

	// Base is the metric stored for BaseRef, nil when absent.
	Base *metric.Metric
}

// HasBase reports whether a base metric was found.
func (r *Report) HasBase() bool {
	return r.Base != nil
}

// Delta returns current minus base coverage. ok is false without a base metric.
func (r *Report) Delta() (delta float64, ok bool) {
	if r.Base == nil {
		return 0, false
	}
	return r.Coverage - r.Base.Coverage, true
}

// formatPercent renders a coverage value with two decimals, e.g. "92.30%".
func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "%"
}

// formatDelta renders a signed coverage difference, e.g. "+12.30%" or "-0.50%".
func formatDelta(d float64) string {
	s := strconv.FormatFloat(d, 'f', 2, 64)
	if s == "-0.00" {
		s = "0.00"
	}
	if d >= 0 || s == "0.00" {
		s = "+" + s
	}
	return s + "%"
}
