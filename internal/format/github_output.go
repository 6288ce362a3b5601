package format

import (
	"fmt"
	"io"
	"strconv"
)

// GitHubOutputFormatter formats a report as name=value lines for a GitHub
// Actions $GITHUB_OUTPUT file. Base values are omitted when there is no base
// metric, so workflow expressions see them as empty.
type GitHubOutputFormatter struct{}

// Format formats the report as step outputs.
func (f *GitHubOutputFormatter) Format(report *Report, w io.Writer) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}

	writeOutput(w, "coverage", strconv.FormatFloat(report.Coverage, 'f', 2, 64))
	if report.ProjectMetricID != "" {
		writeOutput(w, "project-metric-id", report.ProjectMetricID)
	}

	if !report.BaseRef.IsZero() {
		writeOutput(w, "base-ref", report.BaseRef.Ref())
		writeOutput(w, "base-sha", report.BaseRef.SHA())
	}

	if delta, ok := report.Delta(); ok {
		writeOutput(w, "base-coverage", strconv.FormatFloat(report.Base.Coverage, 'f', 2, 64))
		writeOutput(w, "delta", strconv.FormatFloat(delta, 'f', 2, 64))
	}

	return nil
}

func writeOutput(w io.Writer, name, value string) {
	fmt.Fprintf(w, "%s=%s\n", name, value)
}
