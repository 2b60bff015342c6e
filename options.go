package authclient

import (
	"fmt"
	"net/http"
	"time"
)

// WithOrigin resolves endpoints against origin.
func WithOrigin(origin string) Option {
	return func(c *Client) {
		c.resolver = NewURLResolver(origin)
	}
}

// WithURLResolver sets the resolver used to build request URLs.
func WithURLResolver(resolver *URLResolver) Option {
	return func(c *Client) {
		c.resolver = resolver
	}
}

// WithCredentialStore sets the store the request interceptor reads the
// bearer token from.
func WithCredentialStore(store *CredentialStore) Option {
	return func(c *Client) {
		c.store = store
	}
}

// WithCoordinator enables session recovery on 401 responses. Without an
// explicit store the client reads tokens from the coordinator's store.
func WithCoordinator(coordinator *Coordinator) Option {
	return func(c *Client) {
		c.coordinator = coordinator
	}
}

// WithDefaultHeader sets a header sent on every request unless the request
// sets it itself. An empty value removes a default.
func WithDefaultHeader(key, value string) Option {
	return func(c *Client) {
		if c.defaultHeaders == nil {
			c.defaultHeaders = http.Header{}
		}
		if value == "" {
			c.defaultHeaders.Del(key)
			return
		}
		c.defaultHeaders.Set(key, value)
	}
}

// WithQueryEncoder replaces EncodeQuery.
func WithQueryEncoder(encoder QueryEncoder) Option {
	return func(c *Client) {
		c.queryEncoder = encoder
	}
}

// WithTimeout sets the request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
		if c.httpClient != nil {
			c.httpClient.Timeout = d
		}
	}
}

// WithMiddleware adds middleware to the client
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, middleware...)
	}
}

// WithHTTPClient sends requests with a copy of client, so the caller's
// value (http.DefaultClient included) keeps its own Timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client == nil {
			c.httpClient = nil
			return
		}
		cp := *client
		if c.timeout != 0 {
			cp.Timeout = c.timeout
		}
		c.httpClient = &cp
	}
}

// WithMetrics enables Prometheus metrics collection
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithDebug enables debug logging with default configuration
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil || c.debug.RequestIDGen == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.debug.LogRequests = true
		c.debug.LogRenewals = true
		c.debug.LogRetries = true
	}
}

// WithDebugConfig sets custom debug configuration
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithLogger sets a custom logger for debug output
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger enables debug logging with a simple console logger
func WithSimpleLogger() Option {
	return func(c *Client) {
		WithDebug()(c)
		c.logger = NewSimpleLogger()
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = &DebugConfig{}
		}
		c.debug.RequestIDGen = gen
	}
}

// ValidateConfiguration validates the client configuration and returns an error if invalid
func (c *Client) ValidateConfiguration() error {
	var errors []string

	errors = append(errors, c.validateHTTPClientConfig()...)
	errors = append(errors, c.validateRequestConfig()...)
	errors = append(errors, c.validateSessionConfig()...)
	errors = append(errors, c.validateDebugConfig()...)
	errors = append(errors, c.validateMiddlewareConfig()...)

	if len(errors) > 0 {
		return &ClientError{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", errors),
		}
	}

	return nil
}

func (c *Client) validateHTTPClientConfig() []string {
	var errors []string

	if c.httpClient == nil {
		errors = append(errors, "HTTP client cannot be nil")
	}
	if c.timeout <= 0 {
		errors = append(errors, "timeout must be positive")
	}
	if c.timeout > 10*time.Minute {
		errors = append(errors, "timeout > 10m may cause requests to hang for too long")
	}

	return errors
}

func (c *Client) validateRequestConfig() []string {
	var errors []string

	if c.resolver == nil {
		errors = append(errors, "URL resolver cannot be nil")
	}
	if c.queryEncoder == nil {
		errors = append(errors, "query encoder cannot be nil")
	}

	return errors
}

func (c *Client) validateSessionConfig() []string {
	var errors []string

	if c.coordinator != nil && c.coordinator.Store() == nil {
		errors = append(errors, "coordinator must have a credential store")
	}
	if c.coordinator != nil && c.coordinator.provider == nil {
		errors = append(errors, "coordinator must have an identity provider")
	}

	return errors
}

func (c *Client) validateDebugConfig() []string {
	var errors []string

	if c.debug != nil && c.debug.Enabled && c.logger == nil {
		errors = append(errors, "logger must be set when debug is enabled")
	}

	return errors
}

func (c *Client) validateMiddlewareConfig() []string {
	var errors []string

	for i, middleware := range c.middleware {
		if middleware == nil {
			errors = append(errors, fmt.Sprintf("middleware[%d] cannot be nil", i))
		}
	}

	return errors
}
