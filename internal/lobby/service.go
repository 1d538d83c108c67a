// internal/lobby/service.go
package lobby

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/eminemrre/cafeduo/internal/cache"
	"github.com/eminemrre/cafeduo/internal/metrics"
	"github.com/eminemrre/cafeduo/internal/models"
	"github.com/eminemrre/cafeduo/internal/store"
)

// DefaultTTL bounds how stale a cached lobby listing may get. Invalidation
// on mutation is the primary freshness mechanism; the TTL is the backstop.
const DefaultTTL = 10 * time.Second

// populateTimeout caps the fire-and-forget cache write after a miss.
const populateTimeout = 2 * time.Second

// Service serves the frequently polled waiting-session listings through a
// cache-aside read path. The cache is disposable: a backend failure means an
// uncached read, never a listing failure.
type Service struct {
	store store.SessionStore
	cache cache.LobbyCache
	ttl   time.Duration

	// group collapses concurrent store loads for the same scope after a
	// cache miss, so a polling stampede costs one query.
	group singleflight.Group
}

func NewService(st store.SessionStore, c cache.LobbyCache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{store: st, cache: c, ttl: ttl}
}

// List returns the waiting sessions in scope. On a cache hit the cached
// listing is returned as-is; on a miss the store is consulted and the cache
// repopulated asynchronously, so population lag never adds to read latency.
func (s *Service) List(ctx context.Context, scope models.LobbyScope) ([]*models.GameSession, error) {
	key := scope.CacheKey()
	if data, ok := s.cache.Get(ctx, key); ok {
		var sessions []*models.GameSession
		if err := json.Unmarshal(data, &sessions); err == nil {
			metrics.LobbyCacheHits.Inc()
			return sessions, nil
		}
		// Unreadable entry, treat as a miss and overwrite below.
		log.Warnf("lobby cache entry %s is corrupt, refreshing", key)
		s.cache.Invalidate(ctx, key)
	}
	metrics.LobbyCacheMisses.Inc()

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		sessions, err := s.store.ListWaiting(ctx, scope)
		if err != nil {
			return nil, err
		}
		s.populateAsync(key, sessions)
		return sessions, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*models.GameSession), nil
}

// populateAsync writes the listing back to the cache without holding up the
// read. A failed write is only a future miss.
func (s *Service) populateAsync(key string, sessions []*models.GameSession) {
	data, err := json.Marshal(sessions)
	if err != nil {
		log.Warnf("marshal lobby listing %s: %v", key, err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), populateTimeout)
		defer cancel()
		s.cache.Set(ctx, key, data, s.ttl)
	}()
}

// Invalidate drops the listings a mutation of the given session can affect:
// the all scope plus the session's table and cafe scopes. Coarser than
// strictly needed but never stale.
func (s *Service) Invalidate(ctx context.Context, sess *models.GameSession) {
	scopes := models.SessionScopes(sess)
	keys := make([]string, len(scopes))
	for i, sc := range scopes {
		keys[i] = sc.CacheKey()
	}
	s.cache.Invalidate(ctx, keys...)
}

// Stats exposes the cache's operational view for monitoring.
func (s *Service) Stats(ctx context.Context) cache.Stats {
	return s.cache.Stats(ctx)
}
