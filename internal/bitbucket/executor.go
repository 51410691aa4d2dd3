package bitbucket

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/stashhook/internal/metrics"
)

// RequestExecutor issues a prepared HTTP request and returns the raw
// response. Implementations must be safe for concurrent use; the Client
// issues no more than one call per invocation and holds no per-call state.
type RequestExecutor interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPRequestExecutor is the default RequestExecutor. It wraps an
// *http.Client, tags each request with an X-Request-Id for server-side
// correlation, and records per-request metrics. Timeouts are configured
// here, not in the layers above.
type HTTPRequestExecutor struct {
	client   *http.Client
	recorder metrics.Recorder
}

// ExecutorOption customizes an HTTPRequestExecutor.
type ExecutorOption func(*HTTPRequestExecutor)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) ExecutorOption {
	return func(e *HTTPRequestExecutor) { e.client = c }
}

// WithRecorder installs a metrics recorder.
func WithRecorder(r metrics.Recorder) ExecutorOption {
	return func(e *HTTPRequestExecutor) { e.recorder = r }
}

// NewHTTPRequestExecutor creates an executor with a 30s request timeout.
func NewHTTPRequestExecutor(opts ...ExecutorOption) *HTTPRequestExecutor {
	e := &HTTPRequestExecutor{
		client:   &http.Client{Timeout: 30 * time.Second},
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Do executes the request and records method/status metrics.
func (e *HTTPRequestExecutor) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("X-Request-Id", uuid.NewString())

	start := time.Now()
	resp, err := e.client.Do(req)

	statusClass := "transport_error"
	if err == nil {
		statusClass = strconv.Itoa(resp.StatusCode/100) + "xx"
	}
	e.recorder.IncRequest(req.Method, statusClass)
	e.recorder.ObserveRequestDuration(req.Method, statusClass, time.Since(start))

	return resp, err
}
