package authclient

import (
	"sync"
)

// Factory builds clients bound to one origin and one credential store.
// Factories derived with WithResolver or WithStore share the coordinator,
// so every client they create takes part in the same renewal.
type Factory struct {
	resolver    *URLResolver
	store       *CredentialStore
	coordinator *Coordinator
	options     []Option

	mu     sync.Mutex
	client *Client
}

// NewFactory creates a factory. coordinator may be nil for anonymous
// backends; opts apply to every client the factory creates.
func NewFactory(store *CredentialStore, resolver *URLResolver, coordinator *Coordinator, opts ...Option) *Factory {
	if resolver == nil {
		resolver = NewURLResolver("")
	}
	if store == nil && coordinator != nil {
		store = coordinator.Store()
	}
	return &Factory{
		resolver:    resolver,
		store:       store,
		coordinator: coordinator,
		options:     append([]Option(nil), opts...),
	}
}

// Create is shorthand for NewFactory(...).Create().
func Create(store *CredentialStore, resolver *URLResolver, coordinator *Coordinator, opts ...Option) *Client {
	return NewFactory(store, resolver, coordinator, opts...).Create()
}

// Create returns a new client. opts are applied after the factory's own.
func (f *Factory) Create(opts ...Option) *Client {
	all := make([]Option, 0, 3+len(f.options)+len(opts))
	all = append(all,
		WithURLResolver(f.resolver),
		WithCredentialStore(f.store),
		WithCoordinator(f.coordinator),
	)
	all = append(all, f.options...)
	all = append(all, opts...)
	return New(all...)
}

// Client returns the factory's shared client, creating it on first use.
func (f *Factory) Client() *Client {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.client == nil {
		f.client = f.Create()
	}
	return f.client
}

// WithResolver derives a factory for another origin.
func (f *Factory) WithResolver(resolver *URLResolver) *Factory {
	return NewFactory(f.store, resolver, f.coordinator, f.options...)
}

// WithStore derives a factory that reads tokens from another store.
func (f *Factory) WithStore(store *CredentialStore) *Factory {
	return NewFactory(store, f.resolver, f.coordinator, f.options...)
}

func (f *Factory) Resolver() *URLResolver {
	return f.resolver
}

func (f *Factory) Store() *CredentialStore {
	return f.store
}

func (f *Factory) Coordinator() *Coordinator {
	return f.coordinator
}

// Close releases idle connections of the shared client, if one was created.
func (f *Factory) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.client != nil && f.client.httpClient != nil {
		f.client.httpClient.CloseIdleConnections()
	}
}

var (
	defaultMu      sync.RWMutex
	defaultFactory *Factory
)

// Init installs f as the process default factory.
func Init(f *Factory) error {
	if f == nil {
		return newValidationError("default factory cannot be nil")
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultFactory != nil {
		return ErrAlreadyInitialized
	}
	defaultFactory = f
	return nil
}

// Default returns the factory installed by Init.
func Default() (*Factory, error) {
	defaultMu.RLock()
	defer defaultMu.RUnlock()

	if defaultFactory == nil {
		return nil, ErrNotInitialized
	}
	return defaultFactory, nil
}

// MustDefault is Default that panics before Init.
func MustDefault() *Factory {
	f, err := Default()
	if err != nil {
		panic(err)
	}
	return f
}

// Shutdown removes the default factory so Init can be called again.
func Shutdown() {
	defaultMu.Lock()
	f := defaultFactory
	defaultFactory = nil
	defaultMu.Unlock()

	if f != nil {
		f.Close()
	}
}
