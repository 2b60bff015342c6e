package authclient

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ambiyansyah-risyal/authclient/storage"
)

// fakeProvider is an IdentityProvider whose renewals can be held open.
type fakeProvider struct {
	mu     sync.Mutex
	result SessionResult
	err    error
	gate   chan struct{}
	seen   []Credentials

	checkCalls  int32
	loginCalls  int32
	logoutCalls int32
}

func (p *fakeProvider) CheckSession(ctx context.Context, current Credentials) (SessionResult, error) {
	atomic.AddInt32(&p.checkCalls, 1)

	p.mu.Lock()
	p.seen = append(p.seen, current)
	gate, result, err := p.gate, p.result, p.err
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return SessionResult{}, ctx.Err()
		}
	}
	return result, err
}

func (p *fakeProvider) Login(context.Context) error {
	atomic.AddInt32(&p.loginCalls, 1)
	return nil
}

func (p *fakeProvider) Logout(context.Context) error {
	atomic.AddInt32(&p.logoutCalls, 1)
	return nil
}

func (p *fakeProvider) checks() int { return int(atomic.LoadInt32(&p.checkCalls)) }
func (p *fakeProvider) logins() int { return int(atomic.LoadInt32(&p.loginCalls)) }

func newTestStore() *CredentialStore {
	return NewCredentialStore(storage.NewMemory())
}

func seedCredentials(t *testing.T, store *CredentialStore, token string, ttl time.Duration) {
	t.Helper()
	err := store.Set(context.Background(), Credentials{
		AccessToken:  token,
		IDToken:      "id-" + token,
		ExpiresAt:    time.Now().Add(ttl),
		RefreshToken: "refresh-" + token,
	})
	if err != nil {
		t.Fatalf("seed credentials: %v", err)
	}
}

func mustGet(t *testing.T, store *CredentialStore) (Credentials, bool) {
	t.Helper()
	creds, ok, err := store.Get(context.Background())
	if err != nil {
		t.Fatalf("store.Get() error: %v", err)
	}
	return creds, ok
}

func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}
