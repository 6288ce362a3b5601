package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/metric"
	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/metricapi"
	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/queue"
	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/storage"
)

const maxRequestBody = 1 << 20

// MetricsHandler serves the project-metrics endpoints on top of a Storage.
type MetricsHandler struct {
	storage storage.Storage
	queue   queue.MessageQueue
	logger  *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewMetricsHandler creates a MetricsHandler. q may be nil.
func NewMetricsHandler(store storage.Storage, q queue.MessageQueue, logger *slog.Logger) *MetricsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetricsHandler{
		storage: store,
		queue:   q,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.New().String() },
	}
}

// GetMetric handles GET /project-metrics?ref=&sha=.
func (h *MetricsHandler) GetMetric(w http.ResponseWriter, r *http.Request) {
	key := storage.MetricKey{
		Ref: metric.CleanRef(r.URL.Query().Get("ref")),
		SHA: r.URL.Query().Get("sha"),
	}
	if err := storage.ValidateMetricKey(key); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.storage.GetMetric(r.Context(), key)
	if err != nil {
		h.internalError(w, r, "failed to get metric", err)
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "metric not found")
		return
	}

	writeJSON(w, http.StatusOK, metricapi.GetMetricResponse{Metric: m})
}

// SetMetric handles POST /project-metrics.
func (h *MetricsHandler) SetMetric(w http.ResponseWriter, r *http.Request) {
	var req metricapi.SetMetricRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	key := storage.MetricKey{Ref: metric.CleanRef(req.Ref), SHA: req.SHA}
	if err := storage.ValidateMetricKey(key); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Coverage == nil {
		writeError(w, http.StatusBadRequest, "coverage is required")
		return
	}
	if math.IsNaN(*req.Coverage) || math.IsInf(*req.Coverage, 0) {
		writeError(w, http.StatusBadRequest, metric.ErrInvalidCoverage.Error())
		return
	}

	m := &metric.Metric{
		ID:        h.newID(),
		Ref:       key.Ref,
		SHA:       key.SHA,
		Coverage:  *req.Coverage,
		CreatedAt: h.now(),
	}
	if err := h.storage.SaveMetric(r.Context(), m); err != nil {
		h.internalError(w, r, "failed to save metric", err)
		return
	}

	h.logger.Info("metric recorded",
		"id", m.ID,
		"ref", m.Ref,
		"sha", m.SHA,
		"coverage", m.Coverage,
		"request_id", RequestIDFrom(r.Context()),
	)
	h.publish(r, m)

	writeJSON(w, http.StatusCreated, metricapi.SetMetricResponse{ProjectMetricID: m.ID})
}

// History handles GET /project-metrics/history?ref=.
func (h *MetricsHandler) History(w http.ResponseWriter, r *http.Request) {
	ref := metric.CleanRef(r.URL.Query().Get("ref"))
	if err := storage.ValidateRef(ref); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	metrics, err := h.storage.ListMetrics(r.Context(), ref)
	if err != nil {
		h.internalError(w, r, "failed to list metrics", err)
		return
	}
	if metrics == nil {
		metrics = []*metric.Metric{}
	}

	writeJSON(w, http.StatusOK, metricapi.HistoryResponse{Metrics: metrics})
}

// publish announces m on the queue. The metric is already stored, so a failed
// publish is logged and the request still succeeds.
func (h *MetricsHandler) publish(r *http.Request, m *metric.Metric) {
	if h.queue == nil {
		return
	}

	err := h.queue.Publish(r.Context(), &queue.MetricRecorded{
		ProjectMetricID: m.ID,
		Ref:             m.Ref,
		SHA:             m.SHA,
		Coverage:        m.Coverage,
		RecordedAt:      m.CreatedAt,
	})
	if err != nil {
		h.logger.Error("failed to publish metric recorded event",
			"id", m.ID,
			"error", err,
			"request_id", RequestIDFrom(r.Context()),
		)
	}
}

func (h *MetricsHandler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg, "error", err, "request_id", RequestIDFrom(r.Context()))
	writeError(w, http.StatusInternalServerError, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, metricapi.ErrorResponse{Error: msg})
}
