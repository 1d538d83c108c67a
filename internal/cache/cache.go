// internal/cache/cache.go
package cache

import (
	"context"
	"time"
)

// Stats is the operational view of the lobby cache: how many listing keys
// are live and how long each has left.
type Stats struct {
	Keys      int                      `json:"keys"`
	TTLByKey  map[string]time.Duration `json:"ttlByKey"`
	Available bool                     `json:"available"`
}

// LobbyCache holds serialized lobby listings keyed by scope. It is a pure
// optimization: implementations must swallow backend failures (a Get miss,
// a Set or Invalidate no-op) rather than surface them, so a dead backend
// degrades to uncached reads and never to listing failures.
type LobbyCache interface {
	// Get returns the cached value and true on a hit.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value under key with the given TTL. Best effort.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)

	// Invalidate drops the given keys. Best effort.
	Invalidate(ctx context.Context, keys ...string)

	// Stats reports key count and remaining TTLs for monitoring.
	Stats(ctx context.Context) Stats
}

// Noop is the LobbyCache used when no cache backend is configured. Every
// read misses and every write is discarded.
type Noop struct{}

func (Noop) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }

func (Noop) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {}

func (Noop) Invalidate(ctx context.Context, keys ...string) {}

func (Noop) Stats(ctx context.Context) Stats { return Stats{Available: false} }
