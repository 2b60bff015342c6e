package resources

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ambiyansyah-risyal/authclient"
)

// Auth talks to the identity API. Calls made before a session exists are
// sent without the stored token, so a rejected password never starts a
// session renewal.
type Auth struct {
	client *authclient.Client
}

func NewAuth(client *authclient.Client) *Auth {
	return &Auth{client: client}
}

func anonymous(ctx context.Context) context.Context {
	return context.WithValue(ctx, authclient.SkipAuthKey, true)
}

// Login authenticates with a password, or with a temporary code when
// Token is set.
func (r *Auth) Login(ctx context.Context, data Authentication) (*SuccessfulAuthentication, error) {
	endpoint := Login
	if data.Token != "" {
		endpoint = LoginWithTemporaryToken
	}

	var out SuccessfulAuthentication
	if err := r.client.PostJSON(anonymous(ctx), endpoint, nil, data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Auth) Register(ctx context.Context, data Registration) error {
	_, err := r.client.Post(anonymous(ctx), Register, nil, data)
	return err
}

// RequestTemporaryToken sends a one-time login code to phone. An empty
// channel means SMS.
func (r *Auth) RequestTemporaryToken(ctx context.Context, phone string, channel NotificationChannel) error {
	if channel == "" {
		channel = ChannelSMS
	}
	body := struct {
		Phone  string              `json:"phone"`
		Method NotificationChannel `json:"method"`
	}{phone, channel}

	_, err := r.client.Post(anonymous(ctx), RequestTemporaryToken, nil, body)
	return err
}

// Refresh exchanges a refresh token for a new session. The token is sent
// as a bare JSON string.
func (r *Auth) Refresh(ctx context.Context, refreshToken string) (*SuccessfulAuthentication, error) {
	body, err := json.Marshal(refreshToken)
	if err != nil {
		return nil, err
	}

	var out SuccessfulAuthentication
	if err := r.client.PostJSON(anonymous(ctx), RefreshToken, nil, json.RawMessage(body), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout ends the session identified by token, which is sent in place of
// the stored one.
func (r *Auth) Logout(ctx context.Context, token string) error {
	_, err := r.client.Request(ctx, authclient.Call{
		Method:   http.MethodPost,
		Endpoint: Logout,
		Header:   http.Header{"Authorization": []string{"Bearer " + token}},
	})
	return err
}

// RefreshProvider returns an authclient.IdentityProvider that renews the
// session through the identity API's refresh endpoint. login runs when
// renewal fails and may be nil.
func (r *Auth) RefreshProvider(login func(ctx context.Context) error) authclient.IdentityProvider {
	return refreshProvider{auth: r, login: login}
}

type refreshProvider struct {
	auth  *Auth
	login func(ctx context.Context) error
}

func (p refreshProvider) CheckSession(ctx context.Context, current authclient.Credentials) (authclient.SessionResult, error) {
	if current.RefreshToken == "" {
		return authclient.SessionResult{}, authclient.ErrNoRefreshToken
	}
	out, err := p.auth.Refresh(ctx, current.RefreshToken)
	if err != nil {
		return authclient.SessionResult{}, err
	}
	return out.Session(), nil
}

func (p refreshProvider) Login(ctx context.Context) error {
	if p.login == nil {
		return nil
	}
	return p.login(ctx)
}
