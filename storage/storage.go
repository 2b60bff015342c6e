// Package storage provides key-value backends for authclient.CredentialStore.
//
// Every backend satisfies authclient.Storage and additionally implements
// Close so callers that open one from configuration can release it.
package storage

import (
	"context"
	"errors"
)

// ErrUnavailable wraps failures of the underlying medium.
var ErrUnavailable = errors.New("storage: unavailable")

// Backend is a closable authclient.Storage.
type Backend interface {
	Read(ctx context.Context, key string) ([]byte, bool, error)
	Write(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Close() error
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
