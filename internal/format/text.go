package format

import (
	"fmt"
	"io"
)

// TextFormatter formats a report as plain text for console output.
type TextFormatter struct{}

// Format formats the report as plain text.
func (f *TextFormatter) Format(report *Report, w io.Writer) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}

	fmt.Fprintf(w, "Coverage for %s@%s: %s\n", report.Ref, report.SHA, formatPercent(report.Coverage))

	switch {
	case report.BaseRef.IsZero():
		fmt.Fprintln(w, "Base: none (no base commit could be resolved)")
	case !report.HasBase():
		fmt.Fprintf(w, "Base %s: no metric recorded\n", report.BaseRef)
	default:
		fmt.Fprintf(w, "Base %s: %s\n", report.BaseRef, formatPercent(report.Base.Coverage))
	}

	if delta, ok := report.Delta(); ok {
		fmt.Fprintf(w, "Delta: %s\n", formatDelta(delta))
	}

	if report.ProjectMetricID != "" {
		fmt.Fprintf(w, "Recorded as %s\n", report.ProjectMetricID)
	}

	return nil
}
