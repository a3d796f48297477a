package flux

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout  = 10 * time.Second
	maxResponseBodySize = 1 << 20 // 1MB
)

// connection pooling limits to prevent resource exhaustion when many stores share an API
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// HTTPAPIConfig configures an [HTTPAPI].
type HTTPAPIConfig struct {
	// Name identifies the API in logs. Optional.
	Name string

	// BaseURL is prefixed to every request path. Must use http or https.
	BaseURL string

	// Dispatcher is the dispatcher the API is wired to. When nil,
	// [Registry.CreateHTTPAPI] resolves the registry's default.
	Dispatcher Dispatcher

	// Headers are sent with every request. Per-request headers win.
	Headers map[string]string

	// Timeout bounds each request. Defaults to 10 seconds.
	Timeout time.Duration

	// Client overrides the pooled HTTP client. Mostly useful in tests.
	Client *http.Client

	// Logger receives request events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Request describes one call made through an [HTTPAPI].
type Request struct {
	// Method defaults to GET.
	Method string

	// Path is joined to the API's base URL.
	Path string

	// Headers are added to (and override) the API's default headers.
	Headers map[string]string

	// Body, when non-nil, is encoded as JSON.
	Body any
}

// Response holds the result of a request made through an [HTTPAPI].
type Response struct {
	// Body contains the response body, limited to 1MB.
	Body []byte

	// StatusCode is the HTTP status code.
	StatusCode int

	// Header holds the response headers.
	Header http.Header

	// Latency is the total time taken for the request.
	Latency time.Duration
}

// DecodeJSON unmarshals the response body into v.
func (r Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// StatusError is returned for responses outside the 2xx range.
// The [Response] is still returned alongside it.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

// HTTPAPI is an HTTP client wrapper that stores use to load remote data.
//
// Timeouts are applied per request via context. Response bodies are limited
// to 1MB.
type HTTPAPI struct {
	name       string
	baseURL    *url.URL
	dispatcher Dispatcher
	headers    map[string]string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPAPI creates an [HTTPAPI] from cfg.
//
// Returns an error if BaseURL is invalid, has a scheme other than http or
// https, the timeout is negative, or Dispatcher is nil.
func NewHTTPAPI(cfg HTTPAPIConfig) (*HTTPAPI, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("http api dispatcher cannot be nil")
	}

	parsedURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, errors.New("invalid base URL: " + err.Error())
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, errors.New("base URL must have an http:// or https:// scheme")
	}

	if cfg.Timeout < 0 {
		return nil, errors.New("timeout cannot be negative")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultHTTPTimeout
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPAPI{
		name:       cfg.Name,
		baseURL:    parsedURL,
		dispatcher: cfg.Dispatcher,
		headers:    copyMap(cfg.Headers),
		timeout:    timeout,
		httpClient: client,
		logger:     logger,
	}, nil
}

// Name returns the API's configured name.
func (a *HTTPAPI) Name() string {
	return a.name
}

// BaseURL returns the API's base URL.
func (a *HTTPAPI) BaseURL() string {
	return a.baseURL.String()
}

// Dispatcher returns the dispatcher the API is wired to.
func (a *HTTPAPI) Dispatcher() Dispatcher {
	return a.dispatcher
}

// Timeout returns the per-request timeout.
func (a *HTTPAPI) Timeout() time.Duration {
	return a.timeout
}

// Headers returns a copy of the default request headers.
func (a *HTTPAPI) Headers() map[string]string {
	return copyMap(a.headers)
}

// Get performs a GET request for path.
func (a *HTTPAPI) Get(ctx context.Context, path string) (Response, error) {
	return a.Request(ctx, Request{Method: http.MethodGet, Path: path})
}

// Post performs a POST request for path with body encoded as JSON.
func (a *HTTPAPI) Post(ctx context.Context, path string, body any) (Response, error) {
	return a.Request(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put performs a PUT request for path with body encoded as JSON.
func (a *HTTPAPI) Put(ctx context.Context, path string, body any) (Response, error) {
	return a.Request(ctx, Request{Method: http.MethodPut, Path: path, Body: body})
}

// Delete performs a DELETE request for path.
func (a *HTTPAPI) Delete(ctx context.Context, path string) (Response, error) {
	return a.Request(ctx, Request{Method: http.MethodDelete, Path: path})
}

// Request performs req and returns the response.
//
// Transport failures are returned as errors with an empty [Response].
// Responses outside 2xx are returned together with a [*StatusError].
func (a *HTTPAPI) Request(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := a.resolve(req.Path)

	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return Response{}, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for key, value := range a.headers {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// read body with size limit
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response body: %w", err)
	}

	result := Response{
		Body:       data,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Latency:    time.Since(start),
	}

	a.logger.Debug("http api request",
		"api", a.name,
		"method", method,
		"url", target,
		"status_code", resp.StatusCode,
		"latency_ms", result.Latency.Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return result, &StatusError{Method: method, URL: target, StatusCode: resp.StatusCode}
	}
	return result, nil
}

// resolve joins path onto the base URL.
func (a *HTTPAPI) resolve(path string) string {
	if path == "" {
		return a.baseURL.String()
	}
	return strings.TrimRight(a.baseURL.String(), "/") + "/" + strings.TrimLeft(path, "/")
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times. After Close, the API remains usable but new
// connections will be established as needed.
func (a *HTTPAPI) Close() {
	if a == nil || a.httpClient == nil {
		return
	}
	a.httpClient.CloseIdleConnections()
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
