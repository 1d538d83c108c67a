// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/eminemrre/cafeduo/internal/auth"
	"github.com/eminemrre/cafeduo/internal/cache"
	"github.com/eminemrre/cafeduo/internal/config"
	"github.com/eminemrre/cafeduo/internal/duel"
	"github.com/eminemrre/cafeduo/internal/events"
	"github.com/eminemrre/cafeduo/internal/handlers"
	"github.com/eminemrre/cafeduo/internal/lobby"
	"github.com/eminemrre/cafeduo/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	if err := auth.Init(cfg.TokenExpire); err != nil {
		logger.Fatalf("auth init: %v", err)
	}

	ctx := context.Background()

	// Session store: Postgres is the real deployment; without a DSN we run
	// on the in-memory store for development.
	var sessions store.SessionStore
	if cfg.PostgresDSN != "" {
		pool, err := store.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		pg := store.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatalf("schema: %v", err)
		}
		sessions = pg
		logger.Info("using postgres session store")
	} else {
		sessions = store.NewMemoryStore()
		logger.Warn("POSTGRES_DSN not set, using in-memory session store")
	}

	// Lobby cache and event queue share the Redis connection. Without one
	// the cache is a no-op and events only reach live websocket feeds.
	var lobbyCache cache.LobbyCache = cache.Noop{}
	var queue *events.QueuePublisher
	if cfg.RedisAddr != "" {
		rdb, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		lobbyCache = cache.NewRedisCache(rdb)
		queue = events.NewQueuePublisher(rdb, cfg.EventQueue)
		logger.Info("lobby cache and event queue on redis")
	} else {
		logger.Warn("REDIS_ADDR not set, lobby cache disabled")
	}

	hub := events.NewHub(queue)
	lobbySvc := lobby.NewService(sessions, lobbyCache, cfg.LobbyTTL)
	manager := duel.NewManager(sessions, lobbySvc, hub.Publish)

	srv := handlers.NewServer(manager, lobbySvc, hub, logger)

	logger.Infof("cafeduo listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, srv.Routes()); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
