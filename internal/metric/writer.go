package metric

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/event"
)

// Writer records the coverage of the commit under test.
type Writer struct {
	service Service
	logger  *slog.Logger
}

// NewWriter creates a Writer backed by service. A nil logger means slog.Default().
func NewWriter(service Service, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{service: service, logger: logger}
}

// ParseCoverage converts a coverage percentage such as "87.65" to a float.
// Surrounding whitespace is ignored; anything else that is not a finite decimal
// number is rejected with ErrInvalidCoverage.
func ParseCoverage(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCoverage, s)
	}
	if err := validateCoverage(v); err != nil {
		return 0, err
	}
	return v, nil
}

func validateCoverage(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidCoverage, v)
	}
	return nil
}

// Send records coverage for the current ref and commit of ev and returns the id
// of the stored record. Non-finite coverage fails before the service is called.
func (w *Writer) Send(ctx context.Context, ev event.Context, coverage float64) (string, error) {
	if err := validateCoverage(coverage); err != nil {
		return "", err
	}

	ref := CleanRef(ev.Ref)

	w.logger.Info("sending metrics", "ref", ref, "sha", ev.SHA, "coverage", coverage)

	id, err := w.service.SetProjectMetric(ctx, ref, ev.SHA, coverage)
	if err != nil {
		return "", fmt.Errorf("failed to set metric for %s@%s: %w", ref, ev.SHA, err)
	}
	return id, nil
}

// SendString is Send for coverage supplied as text, e.g. a step output.
func (w *Writer) SendString(ctx context.Context, ev event.Context, coverage string) (string, error) {
	v, err := ParseCoverage(coverage)
	if err != nil {
		return "", err
	}
	return w.Send(ctx, ev, v)
}
