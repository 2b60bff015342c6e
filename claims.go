package authclient

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultRoleClaim is the access token claim read for roles when no
	// namespace is configured.
	DefaultRoleClaim = "roles"

	// RoleAdministrator grants administrative access.
	RoleAdministrator = "administrator"
)

// Roles decodes the role claim from the stored access token. The signature
// is not verified; the token is only inspected for display and routing
// decisions, and the backend remains the authority.
func (c *Coordinator) Roles(ctx context.Context) ([]string, error) {
	creds, ok, err := c.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !ok || creds.AccessToken == "" {
		return nil, ErrNotAuthenticated
	}
	return rolesFromToken(creds.AccessToken, c.roleNamespace)
}

// HasRole reports whether the stored access token carries role.
func (c *Coordinator) HasRole(ctx context.Context, role string) bool {
	roles, err := c.Roles(ctx)
	if err != nil {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user holds the administrator role.
func (c *Coordinator) IsAdmin(ctx context.Context) bool {
	return c.HasRole(ctx, RoleAdministrator)
}

func rolesFromToken(token, claim string) ([]string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("decode access token: %w", err)
	}

	switch v := claims[claim].(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []any:
		roles := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				roles = append(roles, s)
			}
		}
		return roles, nil
	default:
		return nil, fmt.Errorf("claim %q has unexpected type %T", claim, v)
	}
}
