// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsCreated counts sessions opened by hosts.
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cafeduo_sessions_created_total",
		Help: "Number of game sessions created.",
	})

	// SessionsJoined counts successful guest joins.
	SessionsJoined = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cafeduo_sessions_joined_total",
		Help: "Number of successful session joins.",
	})

	// SessionsSettled counts settlements, labeled by how they ended.
	SessionsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cafeduo_sessions_settled_total",
		Help: "Number of sessions settled, by cause.",
	}, []string{"cause"}) // finish | resign

	// MovesAccepted counts accepted score submissions, by payload kind.
	MovesAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cafeduo_moves_accepted_total",
		Help: "Number of accepted score submissions, by kind.",
	}, []string{"kind"}) // live | final

	// LobbyCacheHits and LobbyCacheMisses track the cache-aside read path.
	LobbyCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cafeduo_lobby_cache_hits_total",
		Help: "Lobby listing reads served from cache.",
	})
	LobbyCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cafeduo_lobby_cache_misses_total",
		Help: "Lobby listing reads that fell through to the session store.",
	})
)
