package authclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

const maxErrorBodyBytes = 1 << 20

// applyDefaults fills headers the caller did not set and returns the request
// id in use.
func (c *Client) applyDefaults(req *http.Request) string {
	for key, values := range c.defaultHeaders {
		if req.Header.Get(key) == "" && len(values) > 0 {
			req.Header[http.CanonicalHeaderKey(key)] = append([]string(nil), values...)
		}
	}

	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" && c.debug != nil && c.debug.RequestIDGen != nil {
		requestID = c.debug.RequestIDGen()
		req.Header.Set(RequestIDHeader, requestID)
	}
	return requestID
}

// attachToken adds the stored bearer token unless the request already
// carries an Authorization header or opted out. It returns the token it
// attached.
func (c *Client) attachToken(req *http.Request) string {
	if c.store == nil || skipAuth(req) || req.Header.Get("Authorization") != "" {
		return ""
	}

	creds, ok, err := c.store.Get(req.Context())
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("credentials_read_failed", "error", err.Error())
		}
		return ""
	}
	if !ok || creds.AccessToken == "" {
		return ""
	}

	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	return creds.AccessToken
}

func skipAuth(req *http.Request) bool {
	skip, _ := req.Context().Value(SkipAuthKey).(bool)
	return skip
}

func (c *Client) sessionRecoveryEnabled(req *http.Request) bool {
	return c.coordinator != nil && !skipAuth(req)
}

// recoverSession handles a 401: renew the session (or pick up a token some
// other request already renewed), then replay the request exactly once.
func (c *Client) recoverSession(req *http.Request, unauthorized *http.Response, attached, requestID string, start time.Time) (*http.Response, error) {
	ctx := req.Context()
	endpoint := getEndpointFromRequest(req)

	rejectedBody, _ := io.ReadAll(io.LimitReader(unauthorized.Body, maxErrorBodyBytes))
	_ = unauthorized.Body.Close()

	token, err := c.refreshedToken(ctx, attached, requestID)
	if err != nil {
		errorType := ErrorTypeRenewalFailed
		message := "session renewal failed"
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			errorType = ErrorTypeSessionExpired
			message = "gave up waiting for session renewal"
		}
		cerr := c.createClientError(errorType, message, err, requestID, req, 1, time.Since(start))
		cerr.StatusCode = http.StatusUnauthorized
		cerr.Body = rejectedBody
		c.metrics.RecordError(errorType, req.Method, endpoint)
		return nil, cerr
	}

	retry := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, c.createClientError(ErrorTypeEncoding, "failed to replay request body", err, requestID, req, 2, time.Since(start))
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+token)

	c.metrics.RecordSessionRetry(req.Method, endpoint)
	if c.logRetries() {
		c.logger.Info("session_retry", "requestID", requestID, "endpoint", endpoint, "token", redactToken(token))
	}

	return c.send(retry, requestID, 2, start)
}

// refreshedToken returns the token to retry with. When the client store, or
// the coordinator's store behind it, already holds a different, still valid
// token than the one that was rejected, another request renewed meanwhile and
// that token is used directly.
func (c *Client) refreshedToken(ctx context.Context, attached, requestID string) (string, error) {
	if attached != "" {
		if token, ok := c.newerToken(ctx, c.store, attached); ok {
			if c.logRetries() {
				c.logger.Debug("session_already_renewed", "requestID", requestID)
			}
			return token.AccessToken, nil
		}
		shared := c.coordinator.Store()
		if shared != c.store {
			if token, ok := c.newerToken(ctx, shared, attached); ok {
				if c.logRetries() {
					c.logger.Debug("session_already_renewed", "requestID", requestID, "store", "shared")
				}
				c.keepCredentials(ctx, token)
				return token.AccessToken, nil
			}
		}
	}

	renewal := c.coordinator.RenewSession(ctx)
	creds, err := renewal.Wait(ctx)
	if err != nil {
		return "", err
	}

	if c.store != c.coordinator.Store() {
		c.keepCredentials(ctx, creds)
	}

	return creds.AccessToken, nil
}

// newerToken reports the credentials in store when they differ from the
// rejected token and have not expired.
func (c *Client) newerToken(ctx context.Context, store *CredentialStore, attached string) (Credentials, bool) {
	if store == nil {
		return Credentials{}, false
	}
	creds, ok, err := store.Get(ctx)
	if err != nil || !ok || creds.AccessToken == "" || creds.AccessToken == attached {
		return Credentials{}, false
	}
	return creds, creds.Valid(c.coordinator.now())
}

// keepCredentials copies creds into the client's own store.
func (c *Client) keepCredentials(ctx context.Context, creds Credentials) {
	if c.store == nil {
		return
	}
	if err := c.store.Set(ctx, creds); err != nil && c.logger != nil {
		c.logger.Warn("credentials_write_failed", "error", err.Error())
	}
}
