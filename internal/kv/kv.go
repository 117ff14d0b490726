// Package kv holds the key-value byte stores the local appointment store
// persists into.
package kv

import (
	"context"
	"fmt"

	"rdv-service/internal/config"
)

// Store is a synchronous get/set-by-key byte store.
type Store interface {
	// Get returns the value under key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Removing an absent key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open builds the backend selected by cfg.LocalStore.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.LocalStore {
	case "", "sqlite":
		return OpenSQLite(cfg.SQLitePath)
	case "postgres":
		return OpenPostgres(ctx, cfg.PostgresDSN())
	case "redis":
		return OpenRedis(ctx, cfg.RedisURL, "rdv")
	case "memory":
		return NewMemory(0), nil
	default:
		return nil, fmt.Errorf("unknown LOCAL_STORE %q", cfg.LocalStore)
	}
}
