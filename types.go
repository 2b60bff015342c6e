package authclient

import (
	"net/http"
)

// Middleware wraps the transport call of every attempt, including the retry
// issued after a session renewal.
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)

// RoundTripper represents the HTTP transport interface
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// Option configures a Client.
type Option func(*Client)

// Context keys for per-request overrides
type contextKey string

const (
	// SkipAuthKey marks a request that must not receive the stored bearer
	// token nor take part in session renewal.
	SkipAuthKey contextKey = "authclient_skip_auth"
)

// RoundTripperFunc is a helper type for middleware
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
