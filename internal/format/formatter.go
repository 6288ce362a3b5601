// Package format renders coverage reports for the console, for pull request
// comments and for GitHub Actions step outputs.
package format

import (
	"fmt"
	"io"
)

// Formatter renders a Report.
type Formatter interface {
	Format(report *Report, w io.Writer) error
}

// New creates a formatter based on the specified format type.
// Supported formats: "Text", "Markdown", "GitHubOutput"
func New(format string) (Formatter, error) {
	switch format {
	case "Text":
		return &TextFormatter{}, nil
	case "Markdown":
		return &MarkdownFormatter{}, nil
	case "GitHubOutput":
		return &GitHubOutputFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown format: %s (supported: Text, Markdown, GitHubOutput)", format)
	}
}
