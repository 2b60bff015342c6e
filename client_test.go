package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const (
	contentTypeJSON   = "application/json"
	expectedStatusMsg = "Expected status %d, got %d"
)

// tokenServer accepts only "Bearer <valid>" and echoes the request path.
type tokenServer struct {
	*httptest.Server
	valid    atomic.Value
	rejected int32
	requests int32
}

func newTokenServer(t *testing.T, valid string) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.valid.Store(valid)
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&ts.requests, 1)
		if r.Header.Get("Authorization") != "Bearer "+ts.valid.Load().(string) {
			atomic.AddInt32(&ts.rejected, 1)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"token expired"}`))
			return
		}
		w.Header().Set("Content-Type", contentTypeJSON)
		_ = json.NewEncoder(w).Encode(map[string]string{"path": r.URL.Path})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newSessionClient(t *testing.T, origin string, provider *fakeProvider, opts ...Option) (*Client, *CredentialStore) {
	t.Helper()
	store := newTestStore()
	coord := NewCoordinator(store, provider)
	client := Create(store, NewURLResolver(origin), coord, opts...)
	if !client.IsValid() {
		t.Fatalf("client configuration invalid: %v", client.ValidationError())
	}
	return client, store
}

func TestNewDefaults(t *testing.T) {
	client := New()

	if client == nil {
		t.Fatal("New() returned nil")
	}
	if client.httpClient.Timeout != 30*time.Second {
		t.Errorf("Expected timeout=30s, got %v", client.httpClient.Timeout)
	}
	if client.defaultHeaders.Get("Content-Type") != contentTypeJSON || client.defaultHeaders.Get("Accept") != contentTypeJSON {
		t.Errorf("unexpected default headers: %v", client.defaultHeaders)
	}
	if client.coordinator != nil || client.store != nil {
		t.Error("New() should create an anonymous client")
	}
	if !client.IsValid() {
		t.Errorf("default client invalid: %v", client.ValidationError())
	}
}

func TestRequestAttachesStoredToken(t *testing.T) {
	server := newTokenServer(t, "good")
	client, store := newSessionClient(t, server.URL, &fakeProvider{})
	seedCredentials(t, store, "good", time.Hour)

	var out map[string]string
	err := client.GetJSON(context.Background(), "/api/Tables/{id}", PathParams{"id": 42}, nil, &out)
	if err != nil {
		t.Fatalf("GetJSON() error: %v", err)
	}
	if out["path"] != "/api/Tables/42" {
		t.Errorf("path = %q", out["path"])
	}
}

func TestDefaultHeadersAndRequestID(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := New(WithOrigin(server.URL), WithRequestIDGenerator(func() string { return "req-1" }))
	if _, err := client.Get(context.Background(), "/x", nil, nil); err != nil {
		t.Fatalf("Get() error: %v", err)
	}

	if got.Get("Content-Type") != contentTypeJSON || got.Get("Accept") != contentTypeJSON {
		t.Errorf("default headers missing: %v", got)
	}
	if got.Get(RequestIDHeader) != "req-1" {
		t.Errorf("%s = %q", RequestIDHeader, got.Get(RequestIDHeader))
	}
	if got.Get("Authorization") != "" {
		t.Error("anonymous client sent Authorization")
	}
	if !strings.HasPrefix(got.Get("User-Agent"), "authclient/") {
		t.Errorf("User-Agent = %q", got.Get("User-Agent"))
	}
}

func TestExplicitAuthorizationIsKept(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer server.Close()

	client, store := newSessionClient(t, server.URL, &fakeProvider{})
	seedCredentials(t, store, "stored", time.Hour)

	_, err := client.Request(context.Background(), Call{
		Method:   http.MethodPost,
		Endpoint: "/api/logout",
		Header:   http.Header{"Authorization": []string{"Bearer explicit"}},
	})
	if err != nil {
		t.Fatalf("Request() error: %v", err)
	}
	if got != "Bearer explicit" {
		t.Errorf("Authorization = %q, want the explicit header", got)
	}
}

func TestSkipAuthContext(t *testing.T) {
	server := newTokenServer(t, "good")
	provider := &fakeProvider{result: SessionResult{AccessToken: "good", ExpiresIn: time.Hour}}
	client, store := newSessionClient(t, server.URL, provider)
	seedCredentials(t, store, "good", time.Hour)

	ctx := context.WithValue(context.Background(), SkipAuthKey, true)
	_, err := client.Get(ctx, "/public", nil, nil)
	if StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401 HTTP error, got %v", err)
	}
	if provider.checks() != 0 {
		t.Error("skip-auth request triggered a renewal")
	}
}

func TestSingleFlightRenewalAcrossConcurrentRequests(t *testing.T) {
	server := newTokenServer(t, "new")
	bothRejected := make(chan struct{})
	provider := &fakeProvider{gate: bothRejected, result: SessionResult{AccessToken: "new", ExpiresIn: time.Hour}}

	registry := prometheus.NewRegistry()
	metrics := NewMetricsCollectorWithRegistry(registry)
	client, store := newSessionClient(t, server.URL, provider, WithMetricsCollector(metrics))
	client.coordinator.metrics = metrics
	seedCredentials(t, store, "old", time.Hour)

	// Hold the renewal open until both requests have been rejected.
	go func() {
		for atomic.LoadInt32(&server.rejected) < 2 {
			time.Sleep(time.Millisecond)
		}
		close(bothRejected)
	}()

	paths := []string{"/api/Tables/1", "/api/Tables/2"}
	results := make([]map[string]string, len(paths))
	errs := make([]error, len(paths))
	var wg sync.WaitGroup
	for i, p := range paths {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			errs[i] = client.GetJSON(context.Background(), Endpoint(p), nil, nil, &results[i])
		}(i, p)
	}
	wg.Wait()

	for i := range paths {
		if errs[i] != nil {
			t.Fatalf("request %d error: %v", i, errs[i])
		}
		if results[i]["path"] != paths[i] {
			t.Errorf("request %d got payload %v", i, results[i])
		}
	}
	if provider.checks() != 1 {
		t.Errorf("CheckSession() called %d times, want 1", provider.checks())
	}
	if got := atomic.LoadInt32(&server.requests); got != 4 {
		t.Errorf("server saw %d requests, want 4", got)
	}
	if stored, _ := mustGet(t, store); stored.AccessToken != "new" {
		t.Errorf("stored token = %q", stored.AccessToken)
	}
	if got := testutil.ToFloat64(metrics.sessionRetriesTotal.WithLabelValues("GET", "/api/Tables/1")); got != 1 {
		t.Errorf("session retries for /api/Tables/1 = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.renewalsTotal.WithLabelValues(RenewalResultSuccess)); got != 1 {
		t.Errorf("successful renewals = %v, want 1", got)
	}
}

func TestRenewalFailureRejectsAndRedirectsToLogin(t *testing.T) {
	server := newTokenServer(t, "never")
	cause := errors.New("login_required")
	provider := &fakeProvider{err: cause}
	client, store := newSessionClient(t, server.URL, provider)
	seedCredentials(t, store, "old", time.Hour)

	_, err := client.Get(context.Background(), "/api/Tables", nil, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, cause) {
		t.Errorf("error %v does not wrap the renewal cause", err)
	}
	if !errors.Is(err, ErrRenewalFailed) || !IsSessionError(err) {
		t.Errorf("error %v is not a renewal failure", err)
	}

	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("expected *ClientError, got %T", err)
	}
	if clientErr.StatusCode != http.StatusUnauthorized || !strings.Contains(string(clientErr.Body), "token expired") {
		t.Errorf("original 401 not attached: status=%d body=%q", clientErr.StatusCode, clientErr.Body)
	}
	if _, ok := mustGet(t, store); ok {
		t.Error("credentials still stored after failed renewal")
	}
	if provider.logins() != 1 {
		t.Errorf("Login() called %d times, want 1", provider.logins())
	}
	if got := atomic.LoadInt32(&server.requests); got != 1 {
		t.Errorf("server saw %d requests, want 1", got)
	}
}

func TestNoSecondRenewalAfterRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		if n == 1 {
			_, _ = w.Write([]byte("first"))
		} else {
			_, _ = w.Write([]byte("second"))
		}
	}))
	defer server.Close()

	provider := &fakeProvider{result: SessionResult{AccessToken: "new", ExpiresIn: time.Hour}}
	client, store := newSessionClient(t, server.URL, provider)
	seedCredentials(t, store, "old", time.Hour)

	_, err := client.Get(context.Background(), "/api/Tables", nil, nil)

	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("expected *ClientError, got %v", err)
	}
	if clientErr.Type != ErrorTypeHTTP || clientErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("error = %+v", clientErr)
	}
	if string(clientErr.Body) != "second" {
		t.Errorf("error body = %q, want the retried response", clientErr.Body)
	}
	if provider.checks() != 1 {
		t.Errorf("CheckSession() called %d times, want 1", provider.checks())
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("server saw %d requests, want 2", got)
	}
}

func TestRetryUsesTokenRenewedByAnotherRequest(t *testing.T) {
	server := newTokenServer(t, "fresh")
	provider := &fakeProvider{result: SessionResult{AccessToken: "unused", ExpiresIn: time.Hour}}

	var store *CredentialStore
	var once sync.Once
	swap := func(req *http.Request, next RoundTripper) (*http.Response, error) {
		// Simulate a renewal finishing while the stale request is on the wire.
		once.Do(func() { seedCredentials(t, store, "fresh", time.Hour) })
		return next.RoundTrip(req)
	}

	var client *Client
	client, store = newSessionClient(t, server.URL, provider, WithMiddleware(swap))
	seedCredentials(t, store, "stale", time.Hour)

	if _, err := client.Get(context.Background(), "/api/Users", nil, nil); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if provider.checks() != 0 {
		t.Errorf("CheckSession() called %d times, want 0", provider.checks())
	}
}

func TestAlternateStorePicksUpSharedRenewal(t *testing.T) {
	server := newTokenServer(t, "fresh")
	provider := &fakeProvider{result: SessionResult{AccessToken: "unused", ExpiresIn: time.Hour}}

	shared := newTestStore()
	own := newTestStore()
	seedCredentials(t, shared, "fresh", time.Hour)
	seedCredentials(t, own, "stale", time.Hour)

	coord := NewCoordinator(shared, provider)
	client := NewFactory(shared, NewURLResolver(server.URL), coord).WithStore(own).Create()

	if _, err := client.Get(context.Background(), "/api/Users", nil, nil); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if provider.checks() != 0 {
		t.Errorf("CheckSession() called %d times, want 0", provider.checks())
	}
	if got, _ := mustGet(t, own); got.AccessToken != "fresh" {
		t.Errorf("client store token = %q, want fresh", got.AccessToken)
	}
}

func TestPostBodyReplayedOnRetry(t *testing.T) {
	var bodies []string
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(data))
		mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer new" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(data)
	}))
	defer server.Close()

	provider := &fakeProvider{result: SessionResult{AccessToken: "new", ExpiresIn: time.Hour}}
	client, store := newSessionClient(t, server.URL, provider)
	seedCredentials(t, store, "old", time.Hour)

	var out map[string]string
	err := client.PostJSON(context.Background(), "/api/Tables", nil, map[string]string{"name": "budget"}, &out)
	if err != nil {
		t.Fatalf("PostJSON() error: %v", err)
	}
	if out["name"] != "budget" {
		t.Errorf("response = %v", out)
	}
	if len(bodies) != 2 || bodies[0] != bodies[1] || bodies[0] == "" {
		t.Errorf("bodies = %q", bodies)
	}
}

func TestCallerCancelledWhileWaitingForRenewal(t *testing.T) {
	server := newTokenServer(t, "new")
	gate := make(chan struct{})
	provider := &fakeProvider{gate: gate, result: SessionResult{AccessToken: "new", ExpiresIn: time.Hour}}
	client, store := newSessionClient(t, server.URL, provider)
	seedCredentials(t, store, "old", time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for provider.checks() < 1 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err := client.Get(ctx, "/api/Tables", nil, nil)
	if !errors.Is(err, ErrSessionExpired) || !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want session expired wrapping context.Canceled", err)
	}

	renewal, pending := client.Coordinator().PendingRenewal()
	if !pending {
		t.Fatal("renewal should still be running")
	}
	close(gate)
	if _, err := renewal.Wait(context.Background()); err != nil {
		t.Fatalf("renewal error: %v", err)
	}
	if stored, _ := mustGet(t, store); stored.AccessToken != "new" {
		t.Errorf("stored token = %q", stored.AccessToken)
	}
	if provider.logins() != 0 {
		t.Error("Login() called although the renewal succeeded")
	}
}

func TestNonUnauthorizedErrorsPropagate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"no such table"}`))
	}))
	defer server.Close()

	provider := &fakeProvider{}
	client, store := newSessionClient(t, server.URL, provider)
	seedCredentials(t, store, "t", time.Hour)

	_, err := client.Get(context.Background(), "/api/Tables/{id}", PathParams{"id": 9}, nil)
	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("expected *ClientError, got %v", err)
	}
	if clientErr.Type != ErrorTypeHTTP || clientErr.StatusCode != http.StatusNotFound {
		t.Errorf("error = %+v", clientErr)
	}
	if clientErr.Endpoint != "/api/Tables/{id}" {
		t.Errorf("Endpoint = %q, want the template", clientErr.Endpoint)
	}
	if provider.checks() != 0 {
		t.Error("404 triggered a renewal")
	}
	if _, ok := mustGet(t, store); !ok {
		t.Error("404 cleared the session")
	}
}

func TestAnonymousClientSurfacesUnauthorized(t *testing.T) {
	server := newTokenServer(t, "x")
	client := New(WithOrigin(server.URL))

	_, err := client.Get(context.Background(), "/api/Tables", nil, nil)
	if StatusCode(err) != http.StatusUnauthorized {
		t.Errorf("StatusCode(err) = %d, want 401", StatusCode(err))
	}
	if IsSessionError(err) {
		t.Error("plain 401 reported as session error")
	}
}

func TestNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	origin := server.URL
	server.Close()

	provider := &fakeProvider{}
	client, store := newSessionClient(t, origin, provider)
	seedCredentials(t, store, "t", time.Hour)

	_, err := client.Get(context.Background(), "/api/Tables", nil, nil)
	var clientErr *ClientError
	if !errors.As(err, &clientErr) || clientErr.Type != ErrorTypeNetwork {
		t.Fatalf("expected network error, got %v", err)
	}
	if provider.checks() != 0 {
		t.Error("network error triggered a renewal")
	}
}

func TestEncodingErrorBeforeIO(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	client := New(WithOrigin(server.URL))

	_, err := client.Get(context.Background(), "/x", nil, Params{"bad": func() {}})
	var clientErr *ClientError
	if !errors.As(err, &clientErr) || clientErr.Type != ErrorTypeEncoding {
		t.Errorf("query: expected encoding error, got %v", err)
	}

	_, err = client.Post(context.Background(), "/x", nil, map[string]any{"ch": make(chan int)})
	if !errors.As(err, &clientErr) || clientErr.Type != ErrorTypeEncoding {
		t.Errorf("body: expected encoding error, got %v", err)
	}

	if atomic.LoadInt32(&hits) != 0 {
		t.Error("request reached the server")
	}
}

func TestQueryStringAppended(t *testing.T) {
	var rawQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
	}))
	defer server.Close()

	client := New(WithOrigin(server.URL))
	_, err := client.Get(context.Background(), "/api/Rows", nil, Params{"ids": []int{1, 2}, "active": true, "tag": nil})
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if rawQuery != "active=1&ids[]=1&ids[]=2&tag" {
		t.Errorf("query = %q", rawQuery)
	}
}

func TestMiddlewareRunsOnEveryAttempt(t *testing.T) {
	server := newTokenServer(t, "new")
	provider := &fakeProvider{result: SessionResult{AccessToken: "new", ExpiresIn: time.Hour}}

	var seen []string
	var mu sync.Mutex
	record := func(req *http.Request, next RoundTripper) (*http.Response, error) {
		mu.Lock()
		seen = append(seen, req.Header.Get("Authorization"))
		mu.Unlock()
		return next.RoundTrip(req)
	}

	client, store := newSessionClient(t, server.URL, provider, WithMiddleware(record))
	seedCredentials(t, store, "old", time.Hour)

	if _, err := client.Get(context.Background(), "/api/Tables", nil, nil); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if len(seen) != 2 || seen[0] != "Bearer old" || seen[1] != "Bearer new" {
		t.Errorf("middleware saw %v", seen)
	}
}

func TestDoWithPlainRequest(t *testing.T) {
	server := newTokenServer(t, "new")
	provider := &fakeProvider{result: SessionResult{AccessToken: "new", ExpiresIn: time.Hour}}
	client, store := newSessionClient(t, server.URL, provider)
	seedCredentials(t, store, "old", time.Hour)

	req, _ := http.NewRequest(http.MethodPut, server.URL+"/api/Cells/1", io.NopCloser(strings.NewReader(`{"v":1}`)))
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf(expectedStatusMsg, http.StatusOK, resp.StatusCode)
	}
}

func TestResponseDecode(t *testing.T) {
	var v map[string]int
	if err := (&Response{Body: []byte(" ")}).Decode(&v); err != nil || v != nil {
		t.Errorf("empty body: (%v, %v)", v, err)
	}
	if err := (&Response{Body: []byte(`{"a":1}`)}).Decode(&v); err != nil || v["a"] != 1 {
		t.Errorf("valid body: (%v, %v)", v, err)
	}
	err := (&Response{Body: []byte(`nope`)}).Decode(&v)
	var clientErr *ClientError
	if !errors.As(err, &clientErr) || clientErr.Type != ErrorTypeEncoding {
		t.Errorf("invalid body: %v", err)
	}
}
