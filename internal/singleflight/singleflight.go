// Package singleflight collapses concurrent calls for the same key into one
// execution whose outcome every caller shares.
package singleflight

import (
	"context"
	"sync"
)

// Call is the shared future of one execution.
type Call[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Done is closed once the result is available.
func (c *Call[T]) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the call completes or ctx is done. Cancelling ctx only
// releases this waiter; the execution itself keeps running.
func (c *Call[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the outcome without blocking. ok is false while the call is
// still running.
func (c *Call[T]) Result() (val T, err error, ok bool) {
	select {
	case <-c.done:
		return c.val, c.err, true
	default:
		var zero T
		return zero, nil, false
	}
}

// Group manages a set of in-flight calls keyed by name.
type Group[T any] struct {
	mu sync.Mutex
	m  map[string]*Call[T]
}

// New creates an empty Group.
func New[T any]() *Group[T] {
	return &Group[T]{m: make(map[string]*Call[T])}
}

// Go starts fn in its own goroutine unless a call for key is already in
// flight, in which case that call is returned and shared is true. The key is
// released before the result is published, so a caller woken by the result
// that calls Go again starts a fresh execution.
func (g *Group[T]) Go(key string, fn func() (T, error)) (c *Call[T], shared bool) {
	g.mu.Lock()
	if existing, ok := g.m[key]; ok {
		g.mu.Unlock()
		return existing, true
	}

	c = &Call[T]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	go g.run(key, c, fn)

	return c, false
}

// Do is Go followed by Wait.
func (g *Group[T]) Do(ctx context.Context, key string, fn func() (T, error)) (T, error, bool) {
	c, shared := g.Go(key, fn)
	val, err := c.Wait(ctx)
	return val, err, shared
}

// InFlight returns the running call for key, if any.
func (g *Group[T]) InFlight(key string) (*Call[T], bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.m[key]
	return c, ok
}

// Forget releases key so the next Go starts a new execution even if the
// current one has not finished. Waiters of the old call are unaffected.
func (g *Group[T]) Forget(key string) {
	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()
}

func (g *Group[T]) run(key string, c *Call[T], fn func() (T, error)) {
	val, err := fn()

	g.mu.Lock()
	if g.m[key] == c {
		delete(g.m, key)
	}
	g.mu.Unlock()

	c.val, c.err = val, err
	close(c.done)
}
