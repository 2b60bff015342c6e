package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ambiyansyah-risyal/authclient/storage"
)

func TestCredentialStoreRoundTrip(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	if _, ok := mustGet(t, store); ok {
		t.Fatal("empty store reported credentials")
	}

	want := Credentials{
		AccessToken:  "access",
		IDToken:      "id",
		ExpiresAt:    time.UnixMilli(1_700_000_000_123),
		RefreshToken: "refresh",
	}
	if err := store.Set(ctx, want); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	got, ok := mustGet(t, store)
	if !ok {
		t.Fatal("Get() after Set() reported no credentials")
	}
	if got.AccessToken != want.AccessToken || got.IDToken != want.IDToken || got.RefreshToken != want.RefreshToken {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
	if !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, want.ExpiresAt)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if _, ok := mustGet(t, store); ok {
		t.Error("Get() after Clear() reported credentials")
	}
}

func TestCredentialStoreSetReplacesWithoutMerge(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	_ = store.Set(ctx, Credentials{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now()})
	_ = store.Set(ctx, Credentials{AccessToken: "b", ExpiresAt: time.Now()})

	got, _ := mustGet(t, store)
	if got.AccessToken != "b" || got.RefreshToken != "" {
		t.Errorf("Set() merged records: %+v", got)
	}
}

func TestCredentialsJSONFormat(t *testing.T) {
	creds := Credentials{
		AccessToken: "a",
		IDToken:     "i",
		ExpiresAt:   time.UnixMilli(1500),
	}
	raw, err := json.Marshal(creds)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"access_token":"a","id_token":"i","expires_at":1500}`
	if string(raw) != want {
		t.Errorf("Marshal() = %s, want %s", raw, want)
	}
}

func TestCredentialStoreUsesKey(t *testing.T) {
	backend := storage.NewMemory()
	ctx := context.Background()

	defaultStore := NewCredentialStore(backend)
	if defaultStore.Key() != CredentialsKey {
		t.Errorf("Key() = %q, want %q", defaultStore.Key(), CredentialsKey)
	}
	_ = defaultStore.Set(ctx, Credentials{AccessToken: "x", ExpiresAt: time.Now()})
	if _, ok, _ := backend.Read(ctx, "userCredentials"); !ok {
		t.Error("credentials not stored under userCredentials")
	}

	other := NewCredentialStore(backend, WithStorageKey("admin"))
	if _, ok := mustGet(t, other); ok {
		t.Error("store with another key saw the default record")
	}
}

func TestCredentialStoreCorruptRecord(t *testing.T) {
	backend := storage.NewMemory()
	ctx := context.Background()
	_ = backend.Write(ctx, CredentialsKey, []byte("{not json"))

	_, _, err := NewCredentialStore(backend).Get(ctx)
	if !errors.Is(err, ErrCorruptCredentials) {
		t.Errorf("Get() error = %v, want ErrCorruptCredentials", err)
	}
}

type failingStorage struct{ err error }

func (f failingStorage) Read(context.Context, string) ([]byte, bool, error) { return nil, false, f.err }
func (f failingStorage) Write(context.Context, string, []byte) error        { return f.err }
func (f failingStorage) Remove(context.Context, string) error               { return f.err }

func TestCredentialStoreStorageErrors(t *testing.T) {
	boom := errors.New("disk gone")
	store := NewCredentialStore(failingStorage{err: boom})
	ctx := context.Background()

	if _, _, err := store.Get(ctx); !errors.Is(err, boom) {
		t.Errorf("Get() error = %v", err)
	}
	if err := store.Set(ctx, Credentials{}); !errors.Is(err, boom) {
		t.Errorf("Set() error = %v", err)
	}
	if err := store.Clear(ctx); !errors.Is(err, boom) {
		t.Errorf("Clear() error = %v", err)
	}
}

func TestCredentialStoreConcurrentWriters(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%5 == 0 {
				_ = store.Clear(ctx)
				return
			}
			_ = store.Set(ctx, Credentials{AccessToken: "t", ExpiresAt: time.Now().Add(time.Hour)})
			_, _, _ = store.Get(ctx)
		}(i)
	}
	wg.Wait()

	if _, _, err := store.Get(ctx); err != nil {
		t.Errorf("Get() error after concurrent writes: %v", err)
	}
}

func TestCredentialsValid(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name  string
		creds Credentials
		want  bool
	}{
		{"future", Credentials{AccessToken: "a", ExpiresAt: now.Add(time.Second)}, true},
		{"equal is expired", Credentials{AccessToken: "a", ExpiresAt: now}, false},
		{"past", Credentials{AccessToken: "a", ExpiresAt: now.Add(-time.Second)}, false},
	}
	for _, tt := range tests {
		if got := tt.creds.Valid(now); got != tt.want {
			t.Errorf("%s: Valid() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
