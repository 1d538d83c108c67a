// internal/cache/redis.go
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// keyPattern matches every lobby listing key this cache writes.
const keyPattern = "lobby:*"

// RedisCache is the go-redis backed LobbyCache. All errors are logged and
// swallowed per the LobbyCache contract.
type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

// ConnectRedis dials Redis at addr/db and verifies the connection with a ping.
func ConnectRedis(addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warnf("lobby cache get %s: %v", key, err)
		}
		return nil, false
	}
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Warnf("lobby cache set %s: %v", key, err)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		log.Warnf("lobby cache invalidate %v: %v", keys, err)
	}
}

func (c *RedisCache) Stats(ctx context.Context) Stats {
	stats := Stats{TTLByKey: make(map[string]time.Duration), Available: true}
	iter := c.rdb.Scan(ctx, 0, keyPattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ttl, err := c.rdb.TTL(ctx, key).Result()
		if err != nil {
			log.Warnf("lobby cache ttl %s: %v", key, err)
			continue
		}
		stats.Keys++
		stats.TTLByKey[key] = ttl
	}
	if err := iter.Err(); err != nil {
		log.Warnf("lobby cache stats scan: %v", err)
		stats.Available = false
	}
	return stats
}
