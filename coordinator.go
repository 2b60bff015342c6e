package authclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ambiyansyah-risyal/authclient/internal/singleflight"
)

// DefaultRenewalTimeout bounds a single silent renewal.
const DefaultRenewalTimeout = 30 * time.Second

const renewalKey = "session"

// SessionResult is what an identity provider hands back after a login or a
// silent renewal.
type SessionResult struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	// ExpiresIn is the token lifetime counted from the moment the result is
	// stored. It is ignored when ExpiresAt is set.
	ExpiresIn time.Duration
	ExpiresAt time.Time
}

// IdentityProvider performs the two session operations the coordinator
// needs. CheckSession renews silently given the current credentials; Login
// starts the interactive flow and is fire-and-forget from the caller's
// point of view.
type IdentityProvider interface {
	CheckSession(ctx context.Context, current Credentials) (SessionResult, error)
	Login(ctx context.Context) error
}

// LogoutProvider is implemented by providers that can end the session on
// their side as well.
type LogoutProvider interface {
	Logout(ctx context.Context) error
}

// Renewal is the shared future of one in-flight session renewal. Every
// caller that asks while it runs receives the same *Renewal.
type Renewal = singleflight.Call[Credentials]

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithRenewalTimeout bounds each renewal. A renewal that exceeds it fails.
func WithRenewalTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.renewalTimeout = d
		}
	}
}

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRoleNamespace sets the access token claim holding the user's roles.
func WithRoleNamespace(namespace string) CoordinatorOption {
	return func(c *Coordinator) {
		if namespace != "" {
			c.roleNamespace = namespace
		}
	}
}

// WithCoordinatorLogger sets the logger for renewal events.
func WithCoordinatorLogger(logger Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCoordinatorMetrics records renewal outcomes on collector.
func WithCoordinatorMetrics(collector *MetricsCollector) CoordinatorOption {
	return func(c *Coordinator) {
		c.metrics = collector
	}
}

// Coordinator owns the session lifecycle: it answers whether the user is
// authenticated and runs at most one silent renewal at a time.
type Coordinator struct {
	store          *CredentialStore
	provider       IdentityProvider
	flights        *singleflight.Group[Credentials]
	renewalTimeout time.Duration
	roleNamespace  string
	now            func() time.Time
	logger         Logger
	metrics        *MetricsCollector
}

// NewCoordinator creates a coordinator that keeps the session in store and
// renews it through provider.
func NewCoordinator(store *CredentialStore, provider IdentityProvider, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:          store,
		provider:       provider,
		flights:        singleflight.New[Credentials](),
		renewalTimeout: DefaultRenewalTimeout,
		roleNamespace:  DefaultRoleClaim,
		now:            time.Now,
		logger:         nopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the credential store the coordinator writes to.
func (c *Coordinator) Store() *CredentialStore {
	return c.store
}

// IsAuthenticated reports whether a stored session exists and has not
// expired. Storage errors count as unauthenticated.
func (c *Coordinator) IsAuthenticated(ctx context.Context) bool {
	creds, ok, err := c.store.Get(ctx)
	if err != nil {
		c.logger.Warn("credentials_read_failed", "err", err)
		return false
	}
	return ok && creds.Valid(c.now())
}

// AccessToken returns the stored access token whether or not it has expired;
// the backend decides and a 401 triggers renewal.
func (c *Coordinator) AccessToken(ctx context.Context) (string, bool) {
	creds, ok, err := c.store.Get(ctx)
	if err != nil || !ok || creds.AccessToken == "" {
		return "", false
	}
	return creds.AccessToken, true
}

// RenewSession starts a silent renewal, or joins the one already running.
//
// On success the new credentials are stored before the renewal resolves. On
// failure the stored session is cleared and the provider's Login is invoked
// once before the renewal rejects with the cause. The renewal is detached
// from ctx cancellation: a caller that gives up only stops waiting.
func (c *Coordinator) RenewSession(ctx context.Context) *Renewal {
	detached := context.WithoutCancel(ctx)
	renewal, shared := c.flights.Go(renewalKey, func() (Credentials, error) {
		return c.renew(detached)
	})
	if shared {
		c.metrics.RecordRenewalWaiter()
		c.logger.Debug("renewal_joined")
	}
	return renewal
}

// PendingRenewal returns the renewal in flight, if any.
func (c *Coordinator) PendingRenewal() (*Renewal, bool) {
	return c.flights.InFlight(renewalKey)
}

func (c *Coordinator) renew(parent context.Context) (Credentials, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, c.renewalTimeout)
	defer cancel()

	c.logger.Info("renewal_started", "timeout", c.renewalTimeout)

	current, _, err := c.store.Get(ctx)
	if err != nil {
		// A corrupt record cannot be refreshed; let the provider decide.
		c.logger.Warn("credentials_read_failed", "err", err)
		current = Credentials{}
	}

	creds, err := c.checkSession(ctx, current)
	if err == nil {
		err = c.store.Set(ctx, creds)
	}
	if err != nil {
		result := RenewalResultFailure
		if errors.Is(err, context.DeadlineExceeded) {
			result = RenewalResultTimeout
		}
		c.metrics.RecordRenewal(result, time.Since(start))
		c.fail(parent, err)
		return Credentials{}, err
	}

	c.metrics.RecordRenewal(RenewalResultSuccess, time.Since(start))
	c.logger.Info("renewal_succeeded",
		"duration", time.Since(start),
		"token", redactToken(creds.AccessToken),
		"expires_at", creds.ExpiresAt,
	)
	return creds, nil
}

// checkSession runs the provider call under ctx. Providers that ignore ctx
// are abandoned when it expires.
func (c *Coordinator) checkSession(ctx context.Context, current Credentials) (Credentials, error) {
	type outcome struct {
		result SessionResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := c.provider.CheckSession(ctx, current)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return Credentials{}, out.err
		}
		return c.credentialsFrom(out.result, current)
	case <-ctx.Done():
		return Credentials{}, fmt.Errorf("session renewal timed out after %s: %w", c.renewalTimeout, ctx.Err())
	}
}

func (c *Coordinator) fail(ctx context.Context, cause error) {
	c.logger.Warn("renewal_failed", "err", cause)

	if err := c.store.Clear(ctx); err != nil {
		c.logger.Error("credentials_clear_failed", "err", err)
	}
	if err := c.provider.Login(ctx); err != nil {
		c.logger.Error("login_redirect_failed", "err", err)
	}
}

func (c *Coordinator) credentialsFrom(result SessionResult, previous Credentials) (Credentials, error) {
	if result.AccessToken == "" {
		return Credentials{}, newValidationError("session result has no access token")
	}

	expiresAt := result.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = c.now().Add(result.ExpiresIn)
	}
	refresh := result.RefreshToken
	if refresh == "" {
		refresh = previous.RefreshToken
	}

	return Credentials{
		AccessToken:  result.AccessToken,
		IDToken:      result.IDToken,
		ExpiresAt:    expiresAt,
		RefreshToken: refresh,
	}, nil
}

// SetSession stores the outcome of an interactive login and returns the
// stored credentials.
func (c *Coordinator) SetSession(ctx context.Context, result SessionResult) (Credentials, error) {
	creds, err := c.credentialsFrom(result, Credentials{})
	if err != nil {
		return Credentials{}, err
	}
	if err := c.store.Set(ctx, creds); err != nil {
		return Credentials{}, err
	}
	c.logger.Info("session_set", "token", redactToken(creds.AccessToken), "expires_at", creds.ExpiresAt)
	return creds, nil
}

// Login starts the provider's interactive login.
func (c *Coordinator) Login(ctx context.Context) error {
	return c.provider.Login(ctx)
}

// Logout clears the stored session and, when the provider supports it, ends
// the session there too.
func (c *Coordinator) Logout(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return err
	}
	c.logger.Info("session_cleared")

	if lp, ok := c.provider.(LogoutProvider); ok {
		return lp.Logout(ctx)
	}
	return nil
}
