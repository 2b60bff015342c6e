package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-Id"

// Client sends requests to one backend origin, attaching the stored bearer
// token and recovering from an expired session once per request. It is safe
// for concurrent use.
type Client struct {
	httpClient      *http.Client
	resolver        *URLResolver
	store           *CredentialStore
	coordinator     *Coordinator
	defaultHeaders  http.Header
	queryEncoder    QueryEncoder
	middleware      []Middleware
	timeout         time.Duration
	metrics         *MetricsCollector
	debug           *DebugConfig
	logger          Logger
	validationError error
}

// New constructs a Client using the provided functional options. A best effort
// validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		resolver: NewURLResolver(""),
		defaultHeaders: http.Header{
			"Content-Type": []string{"application/json"},
			"Accept":       []string{"application/json"},
			"User-Agent":   []string{UserAgent()},
		},
		queryEncoder: EncodeQuery,
		middleware:   []Middleware{},
		timeout:      30 * time.Second,
		debug:        &DebugConfig{RequestIDGen: uuid.NewString},
	}

	for _, option := range options {
		option(client)
	}

	if client.store == nil && client.coordinator != nil {
		client.store = client.coordinator.Store()
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// Call describes one request against the client's origin.
type Call struct {
	Method     string
	Endpoint   Endpoint
	PathParams PathParams
	Query      Params
	// Body is sent as is when it is []byte, json.RawMessage, string or
	// io.Reader, and JSON-encoded otherwise.
	Body   any
	Header http.Header
}

// Response is a fully read 2xx response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if r == nil || len(bytes.TrimSpace(r.Body)) == 0 || v == nil {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &ClientError{
			Type:       ErrorTypeEncoding,
			Message:    "failed to decode response body",
			Cause:      err,
			StatusCode: r.StatusCode,
			Body:       r.Body,
			Timestamp:  time.Now(),
		}
	}
	return nil
}

type endpointContextKey struct{}

// NewRequest resolves call against the client's origin, encodes the query
// and body, and returns a request ready for Do. Encoding problems surface
// here, before any I/O.
func (c *Client) NewRequest(ctx context.Context, call Call) (*http.Request, error) {
	rawURL := c.resolver.Resolve(call.Endpoint, call.PathParams)

	if len(call.Query) > 0 {
		qs, err := c.queryEncoder(call.Query)
		if err != nil {
			return nil, asEncodingError(err, "failed to encode query")
		}
		if qs != "" {
			sep := "?"
			if strings.Contains(rawURL, "?") {
				sep = "&"
			}
			rawURL += sep + qs
		}
	}

	body, err := encodeBody(call.Body)
	if err != nil {
		return nil, err
	}

	method := call.Method
	if method == "" {
		method = http.MethodGet
	}

	if call.Endpoint != "" {
		ctx = context.WithValue(ctx, endpointContextKey{}, string(call.Endpoint))
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, &ClientError{
			Type:      ErrorTypeEncoding,
			Message:   "invalid request",
			Cause:     err,
			Method:    method,
			URL:       rawURL,
			Endpoint:  string(call.Endpoint),
			Timestamp: time.Now(),
		}
	}
	for key, values := range call.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	return req, nil
}

func encodeBody(body any) (io.Reader, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.NewReader(v), nil
	case json.RawMessage:
		return bytes.NewReader(v), nil
	case string:
		return strings.NewReader(v), nil
	case io.Reader:
		data, err := io.ReadAll(v)
		if err != nil {
			return nil, asEncodingError(err, "failed to read request body")
		}
		return bytes.NewReader(data), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, asEncodingError(err, "failed to encode request body")
		}
		return bytes.NewReader(data), nil
	}
}

func asEncodingError(err error, message string) error {
	if _, ok := err.(*ClientError); ok {
		return err
	}
	return &ClientError{
		Type:      ErrorTypeEncoding,
		Message:   message,
		Cause:     err,
		Timestamp: time.Now(),
	}
}

// Request sends call and reads the whole response. Non-2xx statuses that
// remain after session recovery are returned as an HTTP ClientError carrying
// the status and body.
func (c *Client) Request(ctx context.Context, call Call) (*Response, error) {
	req, err := c.NewRequest(ctx, call)
	if err != nil {
		return nil, err
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.createClientError(ErrorTypeNetwork, "failed to read response body", err, req.Header.Get(RequestIDHeader), req, 0, 0)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		cerr := c.createClientError(ErrorTypeHTTP, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil, req.Header.Get(RequestIDHeader), req, 0, 0)
		cerr.StatusCode = resp.StatusCode
		cerr.Body = body
		c.metrics.RecordError(ErrorTypeHTTP, req.Method, cerr.Endpoint)
		return nil, cerr
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// Get requests endpoint with the given path and query parameters.
func (c *Client) Get(ctx context.Context, endpoint Endpoint, params PathParams, query Params) (*Response, error) {
	return c.Request(ctx, Call{Method: http.MethodGet, Endpoint: endpoint, PathParams: params, Query: query})
}

// Post sends body to endpoint.
func (c *Client) Post(ctx context.Context, endpoint Endpoint, params PathParams, body any) (*Response, error) {
	return c.Request(ctx, Call{Method: http.MethodPost, Endpoint: endpoint, PathParams: params, Body: body})
}

// Put sends body to endpoint.
func (c *Client) Put(ctx context.Context, endpoint Endpoint, params PathParams, body any) (*Response, error) {
	return c.Request(ctx, Call{Method: http.MethodPut, Endpoint: endpoint, PathParams: params, Body: body})
}

// Patch sends body to endpoint.
func (c *Client) Patch(ctx context.Context, endpoint Endpoint, params PathParams, body any) (*Response, error) {
	return c.Request(ctx, Call{Method: http.MethodPatch, Endpoint: endpoint, PathParams: params, Body: body})
}

// Delete removes the resource at endpoint.
func (c *Client) Delete(ctx context.Context, endpoint Endpoint, params PathParams) (*Response, error) {
	return c.Request(ctx, Call{Method: http.MethodDelete, Endpoint: endpoint, PathParams: params})
}

// GetJSON is Get followed by Decode into out.
func (c *Client) GetJSON(ctx context.Context, endpoint Endpoint, params PathParams, query Params, out any) error {
	resp, err := c.Get(ctx, endpoint, params, query)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// PostJSON is Post followed by Decode into out. out may be nil.
func (c *Client) PostJSON(ctx context.Context, endpoint Endpoint, params PathParams, body, out any) error {
	resp, err := c.Post(ctx, endpoint, params, body)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// PutJSON is Put followed by Decode into out. out may be nil.
func (c *Client) PutJSON(ctx context.Context, endpoint Endpoint, params PathParams, body, out any) error {
	resp, err := c.Put(ctx, endpoint, params, body)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// Do sends a prepared request through the interceptors. A 401 answered
// while a coordinator is configured triggers one session renewal and one
// retry; whatever the retry returns is final.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	endpoint := getEndpointFromRequest(req)

	c.metrics.RecordRequestStart(req.Method, endpoint)
	defer c.metrics.RecordRequestEnd(req.Method, endpoint)

	if err := makeReplayable(req); err != nil {
		return nil, asEncodingError(err, "failed to buffer request body")
	}

	requestID := c.applyDefaults(req)
	attached := c.attachToken(req)

	if c.logRequests() {
		c.logger.Debug("request_started", "requestID", requestID, "method", req.Method, "url", req.URL.String(), "endpoint", endpoint, "token", redactToken(attached))
	}

	resp, err := c.send(req, requestID, 1, start)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || !c.sessionRecoveryEnabled(req) {
		return resp, nil
	}

	return c.recoverSession(req, resp, attached, requestID, start)
}

func (c *Client) send(req *http.Request, requestID string, attempt int, start time.Time) (*http.Response, error) {
	endpoint := getEndpointFromRequest(req)
	attemptStart := time.Now()

	resp, err := c.executeMiddleware(req)
	if err != nil {
		c.metrics.RecordError(ErrorTypeNetwork, req.Method, endpoint)
		if c.logRequests() {
			c.logger.Warn("request_failed", "requestID", requestID, "attempt", attempt, "error", err.Error())
		}
		return nil, c.createClientError(ErrorTypeNetwork, "network request failed", err, requestID, req, attempt, time.Since(start))
	}

	c.metrics.RecordRequest(req.Method, endpoint, resp.StatusCode, time.Since(attemptStart))
	if c.logRequests() {
		c.logger.Debug("request_finished", "requestID", requestID, "attempt", attempt, "statusCode", resp.StatusCode, "duration", time.Since(attemptStart))
	}
	return resp, nil
}

func (c *Client) executeMiddleware(req *http.Request) (*http.Response, error) {
	if len(c.middleware) == 0 {
		return c.httpClient.Do(req)
	}

	current := RoundTripperFunc(c.httpClient.Do)

	for i := len(c.middleware) - 1; i >= 0; i-- {
		middleware := c.middleware[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return middleware(r, next)
		})
	}

	return current.RoundTrip(req)
}

// makeReplayable makes sure the body can be sent a second time.
func makeReplayable(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return err
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	req.ContentLength = int64(len(data))
	return nil
}

func (c *Client) createClientError(errorType, message string, cause error, requestID string, req *http.Request, attempt int, duration time.Duration) *ClientError {
	endpoint := getEndpointFromRequest(req)

	return &ClientError{
		Type:      errorType,
		Message:   message,
		Cause:     cause,
		RequestID: requestID,
		Method:    req.Method,
		URL:       req.URL.String(),
		Attempt:   attempt,
		Timestamp: time.Now(),
		Duration:  duration,
		Endpoint:  endpoint,
	}
}

func (c *Client) logRequests() bool {
	return c.debug != nil && c.debug.Enabled && c.debug.LogRequests && c.logger != nil
}

func (c *Client) logRetries() bool {
	return c.debug != nil && c.debug.Enabled && c.debug.LogRetries && c.logger != nil
}

// Resolver returns the URL resolver requests are built with.
func (c *Client) Resolver() *URLResolver {
	return c.resolver
}

// Store returns the credential store read by the request interceptor.
func (c *Client) Store() *CredentialStore {
	return c.store
}

// Coordinator returns the session coordinator, or nil for anonymous clients.
func (c *Client) Coordinator() *Coordinator {
	return c.coordinator
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

// getEndpointFromRequest labels metrics and errors. Requests built by
// NewRequest use their endpoint template to keep label cardinality low.
func getEndpointFromRequest(req *http.Request) string {
	if template, ok := req.Context().Value(endpointContextKey{}).(string); ok && template != "" {
		return template
	}
	if req.URL == nil {
		return "unknown"
	}

	host := req.URL.Host
	path := req.URL.Path

	var builder strings.Builder
	builder.WriteString(host)

	if path != "" && path != "/" {
		builder.WriteString(path)
	} else {
		builder.WriteByte('/')
	}

	return builder.String()
}
