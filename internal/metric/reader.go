package metric

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/event"
)

// Reader fetches the metric of the commit a run is compared against.
type Reader struct {
	service Service
	logger  *slog.Logger
}

// NewReader creates a Reader backed by service. A nil logger means slog.Default().
func NewReader(service Service, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{service: service, logger: logger}
}

// BaseMetric returns the metric recorded for the base of ev.
//
// It returns nil without contacting the service when no base can be resolved, and
// nil when the service has nothing recorded for the base. Any other service
// failure is returned as an error.
func (r *Reader) BaseMetric(ctx context.Context, ev event.Context) (*Metric, error) {
	base, ok := ResolveBase(ev)
	if !ok {
		return nil, nil
	}

	r.logger.Info("getting metrics", "ref", base.Ref(), "sha", base.SHA())

	m, err := r.service.GetProjectMetric(ctx, base.Ref(), base.SHA())
	if err != nil {
		if errors.Is(err, ErrMetricNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get metric for %s: %w", base, err)
	}
	return m, nil
}
