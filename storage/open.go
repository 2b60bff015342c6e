package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/ambiyansyah-risyal/authclient/config"
)

const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
)

// Open builds the backend selected by cfg.Driver. For redis the connection
// is checked with PING before returning.
func Open(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverFile:
		return NewFile(cfg.Path)
	case DriverRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("%w: redis ping: %v", ErrUnavailable, err)
		}
		backend := NewRedis(rdb, cfg.Redis.Prefix, cfg.Redis.TTL)
		backend.closer = rdb.Close
		return backend, nil
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}
