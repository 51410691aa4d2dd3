package bitbucket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"git.home.luguber.info/inful/stashhook/internal/foundation/errors"
	"git.home.luguber.info/inful/stashhook/internal/metrics"
)

// APIURL returns the REST API root for a Bitbucket Server base URL.
func APIURL(baseURL string) string {
	return strings.TrimSuffix(baseURL, "/") + "/rest/api/1.0"
}

// Client issues JSON requests against a Bitbucket Server REST API root.
// It is constructed once per (API URL, credentials) pair and is safe for
// concurrent use provided the RequestExecutor is; it holds no per-call state.
type Client struct {
	apiURL      *url.URL
	credentials Credentials
	executor    RequestExecutor
	recorder    metrics.Recorder
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithPageFetchRecorder installs a metrics recorder for page-fetch counters.
// Request-level metrics belong to the executor.
func WithPageFetchRecorder(r metrics.Recorder) ClientOption {
	return func(c *Client) { c.recorder = r }
}

// NewClient creates a client for the given API root (see APIURL).
func NewClient(apiURL string, credentials Credentials, executor RequestExecutor, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return nil, errors.ConfigError("failed to parse API URL").
			WithCause(err).
			WithContext("api_url", apiURL).
			Build()
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.ConfigError("API URL must be absolute").
			WithContext("api_url", apiURL).
			Build()
	}
	if credentials == nil {
		credentials = Anonymous
	}
	if executor == nil {
		executor = NewHTTPRequestExecutor()
	}
	c := &Client{
		apiURL:      u,
		credentials: credentials,
		executor:    executor,
		recorder:    metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get issues a GET for the resource path and decodes the JSON response into out.
// Repeated query values are encoded individually, preserving per-key order.
func (c *Client) Get(ctx context.Context, resource string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, resource, query, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// Post issues a POST with a JSON body and decodes the response into out.
func (c *Client) Post(ctx context.Context, resource string, body, out any) error {
	req, err := c.newRequest(ctx, http.MethodPost, resource, nil, body)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// Put issues a PUT with a JSON body and decodes the response into out.
func (c *Client) Put(ctx context.Context, resource string, body, out any) error {
	req, err := c.newRequest(ctx, http.MethodPut, resource, nil, body)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// Delete issues a DELETE for the resource path. The response body is discarded.
func (c *Client) Delete(ctx context.Context, resource string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, resource, nil, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// newRequest builds the full URL from the API root plus resource path and
// query, encodes an optional JSON body, and attaches credentials.
func (c *Client) newRequest(ctx context.Context, method, resource string, query url.Values, body any) (*http.Request, error) {
	u := *c.apiURL
	basePath := strings.TrimSuffix(u.Path, "/")
	u.Path = path.Join(basePath, strings.TrimPrefix(resource, "/"))
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var req *http.Request
	var err error
	if body != nil {
		var jsonBody []byte
		jsonBody, err = json.Marshal(body)
		if err != nil {
			return nil, errors.InternalError("failed to marshal request body").
				WithCause(err).
				Build()
		}
		req, err = http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(jsonBody))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), http.NoBody)
	}
	if err != nil {
		return nil, errors.InternalError("failed to create request").
			WithCause(err).
			WithContext("method", method).
			WithContext("url", u.String()).
			Build()
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Stashhook/1.0")
	c.credentials.ApplyTo(req)

	return req, nil
}

// do executes the request, maps non-2xx responses to classified errors, and
// decodes a 2xx body into out when out is non-nil. Exactly one network call
// per invocation; no retries, no caching.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.executor.Do(req)
	if err != nil {
		return errors.NetworkError("failed to execute request").
			WithCause(err).
			WithContext("method", req.Method).
			WithContext("url", req.URL.String()).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.mapErrorResponse(req, resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.ParseError("failed to decode response").
				WithCause(err).
				WithContext("url", req.URL.String()).
				Build()
		}
	}
	return nil
}

// remoteError is one entry of a Bitbucket Server error response body.
type remoteError struct {
	Context       string `json:"context"`
	Message       string `json:"message"`
	ExceptionName string `json:"exceptionName"`
}

type errorResponse struct {
	Errors []remoteError `json:"errors"`
}

func (c *Client) mapErrorResponse(req *http.Request, resp *http.Response) error {
	limitedBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var builder *errors.ErrorBuilder
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		builder = errors.ValidationError("request rejected by server")
		var parsed errorResponse
		if json.Unmarshal(limitedBody, &parsed) == nil && len(parsed.Errors) > 0 {
			msgs := make([]string, 0, len(parsed.Errors))
			for _, e := range parsed.Errors {
				if e.Context != "" {
					msgs = append(msgs, e.Context+": "+e.Message)
				} else {
					msgs = append(msgs, e.Message)
				}
			}
			builder = builder.WithContext("messages", msgs)
		}
	case resp.StatusCode == http.StatusUnauthorized:
		builder = errors.AuthError("authentication failed")
	case resp.StatusCode == http.StatusForbidden:
		builder = errors.ForbiddenError("insufficient permissions")
	case resp.StatusCode == http.StatusNotFound:
		builder = errors.NotFoundError("resource not found")
	case resp.StatusCode == http.StatusConflict:
		builder = errors.ConflictError("resource conflict")
	case resp.StatusCode >= 500:
		builder = errors.ServerError(fmt.Sprintf("server error: %s", resp.Status))
	default:
		builder = errors.UnknownError(fmt.Sprintf("unexpected status: %s", resp.Status))
	}

	return builder.
		WithContext("status", resp.StatusCode).
		WithContext("method", req.Method).
		WithContext("url", req.URL.String()).
		WithContext("body", strings.ReplaceAll(string(limitedBody), "\n", " ")).
		Build()
}
