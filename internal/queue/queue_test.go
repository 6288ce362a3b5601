package queue

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func recordedAt(i int) *MetricRecorded {
	return &MetricRecorded{
		ProjectMetricID: fmt.Sprintf("pm-%d", i),
		Ref:             "main",
		SHA:             fmt.Sprintf("sha%03d", i),
		Coverage:        80 + float64(i)/10,
		RecordedAt:      time.Date(2026, 1, 2, 3, 4, i, 0, time.UTC),
	}
}
