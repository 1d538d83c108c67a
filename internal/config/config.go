// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full service configuration, parsed from the environment.
// A missing PostgresDSN switches the server to the in-memory session store;
// a missing RedisAddr disables the lobby cache and the event queue. Both
// degradations are for development only.
type Config struct {
	Addr string `env:"ADDR" envDefault:":8080"`

	PostgresDSN string `env:"POSTGRES_DSN"`

	RedisAddr string `env:"REDIS_ADDR"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	LobbyTTL   time.Duration `env:"LOBBY_CACHE_TTL" envDefault:"10s"`
	EventQueue string        `env:"EVENT_QUEUE_NAME" envDefault:"cafeduo_events"`

	TokenExpire time.Duration `env:"TOKEN_EXPIRE_TIME" envDefault:"72h"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
