// Package runner ties one CI run together: it reads the base metric, sends the
// current one and reports the difference.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/event"
	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/format"
	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/metric"
)

// EventSource loads the event context of the current run.
type EventSource func(ctx context.Context) (event.Context, error)

// GitHubEvents reads the event context from the GitHub Actions environment.
func GitHubEvents() EventSource {
	return func(ctx context.Context) (event.Context, error) {
		return event.LoadGitHub(os.Getenv)
	}
}

// GitEvents derives the event context from the git checkout at workDir.
func GitEvents(workDir string) EventSource {
	return func(ctx context.Context) (event.Context, error) {
		return event.LoadGit(ctx, workDir)
	}
}

// Config holds configuration for a run.
type Config struct {
	// Format is the report format (Text, Markdown, GitHubOutput)
	Format string

	// GitHubOutputPath, when set, receives the report as step outputs in
	// addition to the formatted report.
	GitHubOutputPath string
}

// Runner reads the base metric and sends the current metric for one run.
type Runner struct {
	config Config
	reader *metric.Reader
	writer *metric.Writer
	events EventSource
	out    io.Writer
	logger *slog.Logger
}

// Option is a functional option for configuring Runner.
type Option func(*Runner)

// WithEventSource sets the event source. Defaults to GitHubEvents.
func WithEventSource(src EventSource) Option {
	return func(r *Runner) {
		r.events = src
	}
}

// WithOutput sets where the formatted report is written. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) {
		r.out = w
	}
}

// WithLogger sets the logger passed to the metric reader and writer.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a new Runner talking to service.
func NewRunner(service metric.Service, config Config, opts ...Option) *Runner {
	r := &Runner{
		config: config,
		events: GitHubEvents(),
		out:    os.Stdout,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	r.reader = metric.NewReader(service, r.logger)
	r.writer = metric.NewWriter(service, r.logger)

	return r
}

// Event loads the event context of the current run.
func (r *Runner) Event(ctx context.Context) (event.Context, error) {
	ev, err := r.events(ctx)
	if err != nil {
		return event.Context{}, fmt.Errorf("failed to load event context: %w", err)
	}
	return ev, nil
}

// Base returns the metric recorded for the run's base commit, or nil when there
// is none.
func (r *Runner) Base(ctx context.Context) (*metric.Metric, metric.RefSha, error) {
	ev, err := r.Event(ctx)
	if err != nil {
		return nil, metric.RefSha{}, err
	}

	base, _ := metric.ResolveBase(ev)
	m, err := r.reader.BaseMetric(ctx, ev)
	if err != nil {
		return nil, base, err
	}
	return m, base, nil
}

// Send records coverage for the run's current commit and returns the record id.
func (r *Runner) Send(ctx context.Context, rawCoverage string) (string, error) {
	coverage, err := metric.ParseCoverage(rawCoverage)
	if err != nil {
		return "", err
	}

	ev, err := r.Event(ctx)
	if err != nil {
		return "", err
	}

	return r.writer.Send(ctx, ev, coverage)
}

// Run reads the base metric, sends rawCoverage for the current commit and
// writes the resulting report. Invalid coverage or format fails before any
// request is made.
func (r *Runner) Run(ctx context.Context, rawCoverage string) (*format.Report, error) {
	coverage, err := metric.ParseCoverage(rawCoverage)
	if err != nil {
		return nil, err
	}

	formatter, err := format.New(r.config.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to create formatter: %w", err)
	}

	ev, err := r.Event(ctx)
	if err != nil {
		return nil, err
	}

	// The base must be read before the current metric is written.
	base, err := r.reader.BaseMetric(ctx, ev)
	if err != nil {
		return nil, err
	}

	id, err := r.writer.Send(ctx, ev, coverage)
	if err != nil {
		return nil, err
	}

	baseRef, _ := metric.ResolveBase(ev)
	report := &format.Report{
		Ref:             metric.CleanRef(ev.Ref),
		SHA:             ev.SHA,
		Coverage:        coverage,
		ProjectMetricID: id,
		BaseRef:         baseRef,
		Base:            base,
	}

	if err := formatter.Format(report, r.out); err != nil {
		return nil, fmt.Errorf("failed to format report: %w", err)
	}

	if r.config.GitHubOutputPath != "" {
		if err := appendGitHubOutput(r.config.GitHubOutputPath, report); err != nil {
			return nil, err
		}
	}

	return report, nil
}

// appendGitHubOutput appends the report's step outputs to path.
func appendGitHubOutput(path string, report *format.Report) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open GitHub output file: %w", err)
	}

	if err := (&format.GitHubOutputFormatter{}).Format(report, f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write GitHub outputs: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write GitHub outputs: %w", err)
	}
	return nil
}
