// Package metricapi implements the HTTP protocol spoken between coverdelta and a
// coverage metric service.
//
//	GET  {base}/project-metrics?ref=&sha=       -> 200 {"metric": {...}} | 404
//	POST {base}/project-metrics                  -> 201 {"projectMetricId": "..."}
//	GET  {base}/project-metrics/history?ref=     -> 200 {"metrics": [...]}
//
// Requests authenticate with "Authorization: Bearer <api key>".
package metricapi

import (
	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/metric"
)

const (
	// MetricsPath is the collection path for project metrics.
	MetricsPath = "/project-metrics"
	// HistoryPath lists the metrics recorded on a ref.
	HistoryPath = "/project-metrics/history"

	// RequestIDHeader carries a per-request id for correlating client and server logs.
	RequestIDHeader = "X-Request-ID"
)

// GetMetricResponse is the body of a successful metric lookup.
type GetMetricResponse struct {
	Metric *metric.Metric `json:"metric"`
}

// SetMetricRequest is the body of a metric submission.
type SetMetricRequest struct {
	Ref      string   `json:"ref"`
	SHA      string   `json:"sha"`
	Coverage *float64 `json:"coverage"`
}

// SetMetricResponse is the body of a successful metric submission.
type SetMetricResponse struct {
	ProjectMetricID string `json:"projectMetricId"`
}

// HistoryResponse lists metrics recorded on a ref, newest first.
type HistoryResponse struct {
	Metrics []*metric.Metric `json:"metrics"`
}

// ErrorResponse is returned by the server for any non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}
