// cmd/historian/main.go is the asynchronous historian: it drains session
// lifecycle events from the Redis queue and persists them to PostgreSQL,
// and sweeps sessions that went idle without ever settling.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"github.com/eminemrre/cafeduo/internal/duel"
	"github.com/eminemrre/cafeduo/internal/events"
	"github.com/eminemrre/cafeduo/internal/store"
)

type historianConfig struct {
	PostgresDSN string        `env:"POSTGRES_DSN,required"`
	RedisAddr   string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	EventQueue  string        `env:"EVENT_QUEUE_NAME" envDefault:"cafeduo_events"`
	BatchSize   int           `env:"HISTORIAN_BATCH_SIZE" envDefault:"20"`
	FlushDelay  time.Duration `env:"HISTORIAN_FLUSH_DELAY" envDefault:"500ms"`
	Inactivity  time.Duration `env:"SESSION_INACTIVITY_TIMEOUT" envDefault:"10m"`
}

// HistorianService encapsulates the Redis + DB logic for capturing session
// events and sweeping sessions abandoned mid-play.
type HistorianService struct {
	cfg         historianConfig
	redisClient *redis.Client
	pool        *pgxpool.Pool

	// lastActivity maps session ID -> time of its most recent event.
	lastActivity sync.Map

	batchMu  sync.Mutex
	batch    []events.EventRecord
	ctx      context.Context
	cancelFn context.CancelFunc
}

func NewHistorianService(cfg historianConfig, rdb *redis.Client, pool *pgxpool.Pool) *HistorianService {
	ctx, cancel := context.WithCancel(context.Background())
	return &HistorianService{
		cfg:         cfg,
		redisClient: rdb,
		pool:        pool,
		batch:       make([]events.EventRecord, 0, cfg.BatchSize),
		ctx:         ctx,
		cancelFn:    cancel,
	}
}

const eventSchemaSQL = `
CREATE TABLE IF NOT EXISTS session_events (
	id         BIGSERIAL PRIMARY KEY,
	session_id UUID NOT NULL,
	event_type TEXT NOT NULL,
	actor      TEXT NOT NULL,
	payload    JSONB NOT NULL,
	occurred   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events (session_id);
`

// Run starts the queue drain loop and the inactivity sweep, then blocks
// until Stop is called.
func (hs *HistorianService) Run() {
	if _, err := hs.pool.Exec(hs.ctx, eventSchemaSQL); err != nil {
		log.Fatalf("ensure session_events schema: %v", err)
	}

	go hs.readQueueLoop()
	go hs.inactivityLoop()

	log.Println("cafeduo-historian service started.")
	<-hs.ctx.Done()
	hs.flushBatchToDB()
	log.Println("cafeduo-historian shutting down.")
}

// readQueueLoop BLPops event records, accumulates them, and flushes on a
// timer or when the batch fills.
func (hs *HistorianService) readQueueLoop() {
	ticker := time.NewTicker(hs.cfg.FlushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-hs.ctx.Done():
			return

		case <-ticker.C:
			hs.flushBatchToDB()

		default:
			// 3-second BLPop timeout so cancellation is noticed.
			res, err := hs.redisClient.BLPop(hs.ctx, 3*time.Second, hs.cfg.EventQueue).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				if hs.ctx.Err() != nil {
					return
				}
				log.Printf("[ERROR] BLPop: %v\n", err)
				continue
			}
			if len(res) < 2 {
				continue
			}

			var rec events.EventRecord
			if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
				log.Printf("invalid event record: %v\n", err)
				continue
			}

			if rec.EventType == duel.EventSessionFinished {
				hs.lastActivity.Delete(rec.SessionID)
			} else {
				hs.lastActivity.Store(rec.SessionID, time.Now())
			}
			hs.appendToBatch(rec)
		}
	}
}

func (hs *HistorianService) appendToBatch(rec events.EventRecord) {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()
	hs.batch = append(hs.batch, rec)
	if len(hs.batch) >= hs.cfg.BatchSize {
		hs.flushBatchToDBLocked()
	}
}

func (hs *HistorianService) flushBatchToDB() {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()
	hs.flushBatchToDBLocked()
}

// flushBatchToDBLocked writes the batch in one transaction. Caller holds
// batchMu.
func (hs *HistorianService) flushBatchToDBLocked() {
	if len(hs.batch) == 0 {
		return
	}
	batchCopy := make([]events.EventRecord, len(hs.batch))
	copy(batchCopy, hs.batch)
	hs.batch = hs.batch[:0]

	ctx := context.Background()
	err := pgx.BeginTxFunc(ctx, hs.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range batchCopy {
			q := `
				INSERT INTO session_events (session_id, event_type, actor, payload, occurred)
				VALUES ($1, $2, $3, $4, $5)
			`
			ts := time.UnixMilli(rec.Timestamp)
			if _, err := tx.Exec(ctx, q, rec.SessionID, rec.EventType, rec.Actor, []byte(rec.Session), ts); err != nil {
				return fmt.Errorf("insert session event: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("[ERROR] flush events: %v\n", err)
	} else {
		log.Printf("Flushed %d events to DB.\n", len(batchCopy))
	}
}

// inactivityLoop periodically settles sessions whose last event is older
// than the configured threshold and that never reached finished. The
// opponent of nobody is the host, so the resolver default applies.
func (hs *HistorianService) inactivityLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	st := store.NewPostgresStore(hs.pool)

	for {
		select {
		case <-hs.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()
			hs.lastActivity.Range(func(key, val interface{}) bool {
				sessionID, ok1 := key.(uuid.UUID)
				last, ok2 := val.(time.Time)
				if ok1 && ok2 && now.Sub(last) > hs.cfg.Inactivity {
					hs.settleAbandoned(st, sessionID)
					hs.lastActivity.Delete(sessionID)
				}
				return true
			})
		}
	}
}

// settleAbandoned finishes an idle session through the store's settlement
// primitive so it can never race a live finish or resign.
func (hs *HistorianService) settleAbandoned(st *store.PostgresStore, sessionID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Same resolution as a live finish: ledger evidence decides, an
	// untouched session defaults to the host.
	_, err := st.Settle(ctx, sessionID, duel.ResolveWinner)
	switch {
	case err == nil:
		log.Printf("Settled abandoned session %v.", sessionID)
	case errors.Is(err, store.ErrSettled), errors.Is(err, store.ErrNotFound):
		// Finished or cleaned up since the last event, nothing to do.
	default:
		log.Printf("failed to settle abandoned session %v: %v", sessionID, err)
	}
}

// Stop gracefully stops the historian service.
func (hs *HistorianService) Stop() {
	hs.cancelFn()
}

func main() {
	var cfg historianConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("config: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	pool, err := store.Connect(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	hs := NewHistorianService(cfg, rdb, pool)
	go hs.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	hs.Stop()
	log.Println("Historian shutdown complete.")
}
