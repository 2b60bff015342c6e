// Package identity provides authclient.IdentityProvider implementations for
// hosted OAuth2 / OpenID Connect identity services.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/ambiyansyah-risyal/authclient"
	"github.com/ambiyansyah-risyal/authclient/config"
)

var (
	// ErrNoLoginHandler is returned by Login and Logout when no handler was
	// configured to take the user to the identity service.
	ErrNoLoginHandler = errors.New("identity: no login handler configured")

	// ErrStateMismatch is returned by Exchange when the callback state does
	// not match the one issued by the last Login.
	ErrStateMismatch = errors.New("identity: state mismatch")
)

// LoginHandler takes the user to rawURL, for example by redirecting a
// browser or printing the link in a CLI.
type LoginHandler func(ctx context.Context, rawURL string) error

// Endpoint returns the authorize and token endpoints of a hosted identity
// domain.
func Endpoint(domain string) oauth2.Endpoint {
	base := baseURL(domain)
	return oauth2.Endpoint{
		AuthURL:   base + "/authorize",
		TokenURL:  base + "/oauth/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

func baseURL(domain string) string {
	domain = strings.TrimRight(strings.TrimSpace(domain), "/")
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain
}

// Option configures an OAuth2Provider.
type Option func(*OAuth2Provider)

// WithAudience requests access tokens for audience.
func WithAudience(audience string) Option {
	return func(p *OAuth2Provider) {
		p.audience = audience
	}
}

// WithLoginHandler sets the handler that receives login and logout URLs.
func WithLoginHandler(handler LoginHandler) Option {
	return func(p *OAuth2Provider) {
		p.handler = handler
	}
}

// WithLogoutURL sets the identity service's logout endpoint.
func WithLogoutURL(logoutURL string) Option {
	return func(p *OAuth2Provider) {
		p.logoutURL = logoutURL
	}
}

// WithHTTPClient sets the client used for token requests.
func WithHTTPClient(client *http.Client) Option {
	return func(p *OAuth2Provider) {
		p.httpClient = client
	}
}

// WithStateGenerator replaces the random state used by Login.
func WithStateGenerator(gen func() string) Option {
	return func(p *OAuth2Provider) {
		if gen != nil {
			p.newState = gen
		}
	}
}

// WithLogger sets the logger for provider events.
func WithLogger(logger authclient.Logger) Option {
	return func(p *OAuth2Provider) {
		p.logger = logger
	}
}

// OAuth2Provider renews sessions with the refresh_token grant and runs the
// authorization code flow for interactive login.
type OAuth2Provider struct {
	oauth      *oauth2.Config
	audience   string
	logoutURL  string
	handler    LoginHandler
	httpClient *http.Client
	newState   func() string
	logger     authclient.Logger

	mu    sync.Mutex
	state string
}

var (
	_ authclient.IdentityProvider = (*OAuth2Provider)(nil)
	_ authclient.LogoutProvider   = (*OAuth2Provider)(nil)
)

// New creates a provider for the given OAuth2 client configuration.
func New(cfg *oauth2.Config, opts ...Option) *OAuth2Provider {
	p := &OAuth2Provider{
		oauth:    cfg,
		newState: uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFromConfig creates a provider for a hosted identity domain. Options
// are applied after the configured values.
func NewFromConfig(cfg config.IdentityConfig, opts ...Option) (*OAuth2Provider, error) {
	if strings.TrimSpace(cfg.Domain) == "" {
		return nil, errors.New("identity: domain is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("identity: client id is required")
	}

	oauth := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     Endpoint(cfg.Domain),
		RedirectURL:  cfg.RedirectURL,
		Scopes:       cfg.Scopes,
	}

	all := []Option{
		WithAudience(cfg.Audience),
		WithLogoutURL(baseURL(cfg.Domain) + "/v2/logout"),
	}
	return New(oauth, append(all, opts...)...), nil
}

// CheckSession exchanges the stored refresh token for a new session.
func (p *OAuth2Provider) CheckSession(ctx context.Context, current authclient.Credentials) (authclient.SessionResult, error) {
	if current.RefreshToken == "" {
		return authclient.SessionResult{}, authclient.ErrNoRefreshToken
	}

	src := p.oauth.TokenSource(p.context(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})
	token, err := src.Token()
	if err != nil {
		return authclient.SessionResult{}, fmt.Errorf("identity: refresh session: %w", err)
	}

	p.debug("session_refreshed", "expires_at", token.Expiry)
	return sessionFromToken(token), nil
}

// AuthCodeURL returns the authorization URL for state.
func (p *OAuth2Provider) AuthCodeURL(state string) string {
	var opts []oauth2.AuthCodeOption
	if p.audience != "" {
		opts = append(opts, oauth2.SetAuthURLParam("audience", p.audience))
	}
	return p.oauth.AuthCodeURL(state, opts...)
}

// Login issues a new state and hands the authorization URL to the login
// handler.
func (p *OAuth2Provider) Login(ctx context.Context) error {
	if p.handler == nil {
		return ErrNoLoginHandler
	}

	state := p.newState()
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()

	p.debug("login_started")
	return p.handler(ctx, p.AuthCodeURL(state))
}

// Exchange completes an interactive login with the code and state from the
// redirect callback. The result is meant for Coordinator.SetSession.
func (p *OAuth2Provider) Exchange(ctx context.Context, state, code string) (authclient.SessionResult, error) {
	p.mu.Lock()
	expected := p.state
	if expected != "" && state == expected {
		p.state = ""
	}
	p.mu.Unlock()

	if expected == "" || state != expected {
		return authclient.SessionResult{}, ErrStateMismatch
	}

	token, err := p.oauth.Exchange(p.context(ctx), code)
	if err != nil {
		return authclient.SessionResult{}, fmt.Errorf("identity: exchange code: %w", err)
	}
	return sessionFromToken(token), nil
}

// LogoutURL returns the identity service's logout URL, which sends the user
// back to the redirect URL.
func (p *OAuth2Provider) LogoutURL() string {
	if p.logoutURL == "" {
		return ""
	}
	q := url.Values{}
	q.Set("client_id", p.oauth.ClientID)
	if p.oauth.RedirectURL != "" {
		q.Set("returnTo", p.oauth.RedirectURL)
	}
	return p.logoutURL + "?" + q.Encode()
}

// Logout hands the logout URL to the login handler. Without a logout URL
// there is nothing to do on the provider side.
func (p *OAuth2Provider) Logout(ctx context.Context) error {
	logoutURL := p.LogoutURL()
	if logoutURL == "" {
		return nil
	}
	if p.handler == nil {
		return ErrNoLoginHandler
	}
	return p.handler(ctx, logoutURL)
}

func (p *OAuth2Provider) context(ctx context.Context) context.Context {
	if p.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func (p *OAuth2Provider) debug(msg string, keysAndValues ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, keysAndValues...)
	}
}

func sessionFromToken(token *oauth2.Token) authclient.SessionResult {
	result := authclient.SessionResult{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
	if id, ok := token.Extra("id_token").(string); ok {
		result.IDToken = id
	}
	if result.ExpiresAt.IsZero() && token.ExpiresIn > 0 {
		result.ExpiresIn = time.Duration(token.ExpiresIn) * time.Second
	}
	return result
}
