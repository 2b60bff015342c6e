// Package authclient is an HTTP access layer for APIs protected by short
// lived bearer tokens.
//
// A Client resolves endpoint templates against an origin, encodes query
// parameters the way the backend expects, and attaches the access token kept
// in a CredentialStore. When a request is answered with 401 the client asks
// the Coordinator for a new session. The Coordinator runs at most one silent
// renewal at a time; every request that hit a 401 meanwhile waits for that
// same renewal and is replayed once with the new token. If the renewal fails
// the stored session is cleared, the identity provider's login flow is
// started, and the callers receive a RenewalFailed error.
//
// Typical usage:
//
//	store := authclient.NewCredentialStore(storage.NewMemory())
//	coordinator := authclient.NewCoordinator(store, provider)
//	factory := authclient.NewFactory(store, authclient.NewURLResolver("https://api.example.com"), coordinator)
//
//	var tables []Table
//	err := factory.Client().GetJSON(ctx, "/api/Organizations/{id}/Tables",
//	    authclient.PathParams{"id": 42}, authclient.Params{"active": true}, &tables)
//
// Factories derived with WithResolver share the coordinator, so clients for
// the identity API and the business API renew the session together.
package authclient
