package format

import (
	"fmt"
	"io"
)

// MarkdownFormatter formats a report as a Markdown table, suitable for a pull
// request comment or a job summary.
type MarkdownFormatter struct{}

// Format formats the report as Markdown.
func (f *MarkdownFormatter) Format(report *Report, w io.Writer) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}

	fmt.Fprintln(w, "## Coverage Report")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "| | Ref | Commit | Coverage |")
	fmt.Fprintln(w, "|---|---|---|---|")
	fmt.Fprintf(w, "| Current | %s | %s | %s |\n", report.Ref, shortSHA(report.SHA), formatPercent(report.Coverage))

	if !report.BaseRef.IsZero() {
		baseCoverage := "n/a"
		if report.HasBase() {
			baseCoverage = formatPercent(report.Base.Coverage)
		}
		fmt.Fprintf(w, "| Base | %s | %s | %s |\n", report.BaseRef.Ref(), shortSHA(report.BaseRef.SHA()), baseCoverage)
	}

	fmt.Fprintln(w)

	if delta, ok := report.Delta(); ok {
		fmt.Fprintf(w, "**Delta:** %s\n", formatDelta(delta))
	} else {
		fmt.Fprintln(w, "**Delta:** no base coverage to compare against")
	}

	return nil
}

// shortSHA abbreviates a commit hash to seven characters like git does.
func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
