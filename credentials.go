package authclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// CredentialsKey is the storage key holding the serialized session.
const CredentialsKey = "userCredentials"

// Credentials is one authenticated session. Values are never mutated in
// place; a renewal produces a new value.
type Credentials struct {
	AccessToken  string
	IDToken      string
	ExpiresAt    time.Time
	RefreshToken string
}

// Valid reports whether the session is usable at now. A session expiring
// exactly at now is already expired.
func (c Credentials) Valid(now time.Time) bool {
	return now.Before(c.ExpiresAt)
}

type credentialsRecord struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// MarshalJSON stores ExpiresAt as unix milliseconds.
func (c Credentials) MarshalJSON() ([]byte, error) {
	return json.Marshal(credentialsRecord{
		AccessToken:  c.AccessToken,
		IDToken:      c.IDToken,
		ExpiresAt:    c.ExpiresAt.UnixMilli(),
		RefreshToken: c.RefreshToken,
	})
}

func (c *Credentials) UnmarshalJSON(data []byte) error {
	var rec credentialsRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	*c = Credentials{
		AccessToken:  rec.AccessToken,
		IDToken:      rec.IDToken,
		ExpiresAt:    time.UnixMilli(rec.ExpiresAt),
		RefreshToken: rec.RefreshToken,
	}
	return nil
}

// Storage is the key-value persistence behind a CredentialStore.
type Storage interface {
	Read(ctx context.Context, key string) (value []byte, ok bool, err error)
	Write(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// StoreOption configures a CredentialStore.
type StoreOption func(*CredentialStore)

// WithStorageKey overrides CredentialsKey, e.g. to keep sessions for two
// identities in one storage.
func WithStorageKey(key string) StoreOption {
	return func(s *CredentialStore) {
		if key != "" {
			s.key = key
		}
	}
}

// CredentialStore persists the current session. Writers are serialized;
// reads always go to storage so a renewal performed by one goroutine is
// visible to all others.
type CredentialStore struct {
	mu      sync.RWMutex
	storage Storage
	key     string
}

// NewCredentialStore creates a store on top of storage.
func NewCredentialStore(storage Storage, opts ...StoreOption) *CredentialStore {
	s := &CredentialStore{storage: storage, key: CredentialsKey}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the storage key in use.
func (s *CredentialStore) Key() string {
	return s.key
}

// Get loads the stored session. ok is false when nothing is stored.
func (s *CredentialStore) Get(ctx context.Context) (Credentials, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, ok, err := s.storage.Read(ctx, s.key)
	if err != nil {
		return Credentials{}, false, fmt.Errorf("read credentials: %w", err)
	}
	if !ok || len(raw) == 0 {
		return Credentials{}, false, nil
	}

	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return Credentials{}, false, fmt.Errorf("%w: %v", ErrCorruptCredentials, err)
	}
	return creds, true, nil
}

// Set replaces the stored session. The previous record is removed first;
// fields are never merged.
func (s *CredentialStore) Set(ctx context.Context, creds Credentials) error {
	raw, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Remove(ctx, s.key); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	if err := s.storage.Write(ctx, s.key, raw); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// Clear removes the stored session.
func (s *CredentialStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Remove(ctx, s.key); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}
