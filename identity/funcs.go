package identity

import (
	"context"

	"github.com/ambiyansyah-risyal/authclient"
)

// Funcs adapts plain functions to authclient.IdentityProvider. Nil
// functions fail CheckSession with authclient.ErrNoRefreshToken and make
// Login and Logout no-ops.
type Funcs struct {
	CheckSessionFunc func(ctx context.Context, current authclient.Credentials) (authclient.SessionResult, error)
	LoginFunc        func(ctx context.Context) error
	LogoutFunc       func(ctx context.Context) error
}

var (
	_ authclient.IdentityProvider = Funcs{}
	_ authclient.LogoutProvider   = Funcs{}
)

func (f Funcs) CheckSession(ctx context.Context, current authclient.Credentials) (authclient.SessionResult, error) {
	if f.CheckSessionFunc == nil {
		return authclient.SessionResult{}, authclient.ErrNoRefreshToken
	}
	return f.CheckSessionFunc(ctx, current)
}

func (f Funcs) Login(ctx context.Context) error {
	if f.LoginFunc == nil {
		return nil
	}
	return f.LoginFunc(ctx)
}

func (f Funcs) Logout(ctx context.Context) error {
	if f.LogoutFunc == nil {
		return nil
	}
	return f.LogoutFunc(ctx)
}
