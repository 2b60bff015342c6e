package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores values as plain strings under prefix:key.
type Redis struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
	closer func() error
}

// NewRedis wraps an existing client. A zero ttl keeps records until they are
// removed. The caller keeps ownership of rdb.
func NewRedis(rdb redis.Cmdable, prefix string, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

func (r *Redis) Read(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return data, true, nil
}

func (r *Redis) Write(ctx context.Context, key string, value []byte) error {
	if err := r.rdb.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close releases the client only when the backend created it.
func (r *Redis) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}
