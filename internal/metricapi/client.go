package metricapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oleg-kozlyuk-grafana/go-coverdelta/internal/metric"
)

// DefaultBaseURL is the hosted Barecheck API.
const DefaultBaseURL = "https://api.barecheck.com/api"

var (
	// ErrUnauthorized is returned when the service rejects the API key.
	ErrUnauthorized = errors.New("metric service rejected API key")

	// ErrUnexpectedStatus is returned for any other non-success response.
	ErrUnexpectedStatus = errors.New("unexpected status from metric service")
)

// Doer performs HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to a metric service over HTTP. It implements metric.Service.
type Client struct {
	baseURL string
	apiKey  string
	http    Doer
	logger  *slog.Logger
}

var _ metric.Service = (*Client)(nil)

// Option is a functional option for configuring Client.
type Option func(*Client)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(doer Doer) Option {
	return func(c *Client) {
		c.http = doer
	}
}

// WithTimeout sets the request timeout. It only applies when the HTTP client is
// an *http.Client, so pass it after WithHTTPClient or not at all.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if hc, ok := c.http.(*http.Client); ok {
			hc.Timeout = timeout
		}
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client authenticating with apiKey.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}

	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if _, err := url.Parse(c.baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	return c, nil
}

// GetProjectMetric fetches the metric recorded for ref and sha.
// Returns metric.ErrMetricNotFound if the service has none.
func (c *Client) GetProjectMetric(ctx context.Context, ref, sha string) (*metric.Metric, error) {
	query := url.Values{}
	query.Set("ref", ref)
	query.Set("sha", sha)

	var resp GetMetricResponse
	if err := c.do(ctx, http.MethodGet, MetricsPath, query, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Metric == nil {
		return nil, metric.ErrMetricNotFound
	}
	return resp.Metric, nil
}

// SetProjectMetric records coverage for ref and sha and returns the record id.
func (c *Client) SetProjectMetric(ctx context.Context, ref, sha string, coverage float64) (string, error) {
	req := SetMetricRequest{Ref: ref, SHA: sha, Coverage: &coverage}

	var resp SetMetricResponse
	if err := c.do(ctx, http.MethodPost, MetricsPath, nil, req, &resp); err != nil {
		return "", err
	}
	if resp.ProjectMetricID == "" {
		return "", fmt.Errorf("%w: response has no projectMetricId", ErrUnexpectedStatus)
	}
	return resp.ProjectMetricID, nil
}

// History lists the metrics recorded on ref, newest first.
func (c *Client) History(ctx context.Context, ref string) ([]*metric.Metric, error) {
	query := url.Values{}
	query.Set("ref", ref)

	var resp HistoryResponse
	if err := c.do(ctx, http.MethodGet, HistoryPath, query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Metrics, nil
}

// do sends a JSON request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.New().String()
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s request failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("metric service request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", requestID,
	)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return notFound(method, path, resp)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := decodeError(resp)
		return fmt.Errorf("%w: status %d: %s", ErrUnexpectedStatus, resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// notFound maps a 404 to metric.ErrMetricNotFound only when it is the metric
// lookup answering with an ErrorResponse. Any other 404 (a wrong base URL, a proxy)
// is reported as an unexpected status.
func notFound(method, path string, resp *http.Response) error {
	msg, isErrorResponse := decodeError(resp)
	if method == http.MethodGet && path == MetricsPath && isErrorResponse {
		return metric.ErrMetricNotFound
	}
	return fmt.Errorf("%w: status %d on %s %s: %s", ErrUnexpectedStatus, resp.StatusCode, method, path, msg)
}

// decodeError reads the body of an error response. It reports whether the body
// was a JSON ErrorResponse, otherwise msg holds the raw body.
func decodeError(resp *http.Response) (msg string, ok bool) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", false
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var errResp ErrorResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			return errResp.Error, true
		}
	}
	return strings.TrimSpace(string(data)), false
}
