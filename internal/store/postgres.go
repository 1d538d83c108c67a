// internal/store/postgres.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eminemrre/cafeduo/internal/models"
)

// PostgresStore persists sessions in the game_sessions table. The guest
// assignment and settlement transitions ride on conditional UPDATEs so the
// exclusivity guarantees hold even with several service instances sharing
// the database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Connect builds a pgx pool from the DSN and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS game_sessions (
	id           UUID PRIMARY KEY,
	host_name    TEXT NOT NULL,
	guest_name   TEXT,
	game_type    TEXT NOT NULL,
	wager_points INT NOT NULL,
	table_code   TEXT NOT NULL,
	cafe_id      TEXT NOT NULL,
	status       TEXT NOT NULL,
	score_ledger JSONB NOT NULL DEFAULT '{}'::jsonb,
	winner       TEXT,
	created_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_game_sessions_waiting
	ON game_sessions (status, table_code, cafe_id);
`

// EnsureSchema creates the session table if it does not exist.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure game_sessions schema: %w", err)
	}
	return nil
}

const sessionColumns = `
	id, host_name, guest_name, game_type, wager_points, table_code, cafe_id,
	status, score_ledger, winner, created_at, finished_at`

func (p *PostgresStore) Create(ctx context.Context, s *models.GameSession) error {
	ledger, err := json.Marshal(s.ScoreLedger)
	if err != nil {
		return fmt.Errorf("marshal score ledger: %w", err)
	}
	q := `
		INSERT INTO game_sessions (
			id, host_name, game_type, wager_points, table_code, cafe_id,
			status, score_ledger, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = p.pool.Exec(ctx, q,
		s.ID, s.HostName, s.GameType, s.WagerPoints, s.TableCode, s.CafeID,
		s.Status, ledger, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*models.GameSession, error) {
	q := `SELECT` + sessionColumns + ` FROM game_sessions WHERE id = $1`
	return scanSession(p.pool.QueryRow(ctx, q, id))
}

func (p *PostgresStore) AssignGuest(ctx context.Context, id uuid.UUID, guest string) (*models.GameSession, error) {
	// The WHERE guest_name IS NULL clause is the mutual-exclusion
	// guarantee: of any number of concurrent attempts Postgres lets
	// exactly one through.
	q := `
		UPDATE game_sessions
		SET guest_name = $2, status = $3
		WHERE id = $1 AND guest_name IS NULL AND status = $4
		RETURNING` + sessionColumns
	s, err := scanSession(p.pool.QueryRow(ctx, q, id, guest, models.StatusActive, models.StatusWaiting))
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	// No row updated: decide which conflict the caller hit.
	cur, gerr := p.Get(ctx, id)
	if gerr != nil {
		return nil, gerr
	}
	if cur.Status == models.StatusFinished {
		return nil, ErrSettled
	}
	return nil, ErrGuestTaken
}

func (p *PostgresStore) SubmitScore(ctx context.Context, id uuid.UUID, participant string, entry models.ScoreEntry) (*models.GameSession, error) {
	var out *models.GameSession
	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `SELECT` + sessionColumns + ` FROM game_sessions WHERE id = $1 FOR UPDATE`
		s, err := scanSession(tx.QueryRow(ctx, q, id))
		if err != nil {
			return err
		}
		if s.Status == models.StatusFinished {
			return ErrSettled
		}
		if prev, ok := s.ScoreLedger[participant]; ok && prev.SubmissionKey == entry.SubmissionKey {
			out = s
			return nil
		}
		s.ScoreLedger[participant] = entry
		ledger, err := json.Marshal(s.ScoreLedger)
		if err != nil {
			return fmt.Errorf("marshal score ledger: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE game_sessions SET score_ledger = $2 WHERE id = $1`, id, ledger); err != nil {
			return fmt.Errorf("update score ledger: %w", err)
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *PostgresStore) Settle(ctx context.Context, id uuid.UUID, resolve func(*models.GameSession) string) (*models.GameSession, error) {
	var out *models.GameSession
	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `SELECT` + sessionColumns + ` FROM game_sessions WHERE id = $1 FOR UPDATE`
		s, err := scanSession(tx.QueryRow(ctx, q, id))
		if err != nil {
			return err
		}
		if s.Status == models.StatusFinished {
			return ErrSettled
		}
		winner := resolve(s.Clone())
		now := time.Now()
		upd := `
			UPDATE game_sessions
			SET status = $2, winner = $3, finished_at = $4
			WHERE id = $1
		`
		if _, err := tx.Exec(ctx, upd, id, models.StatusFinished, winner, now); err != nil {
			return fmt.Errorf("settle session: %w", err)
		}
		s.Status = models.StatusFinished
		s.Winner = winner
		s.FinishedAt = &now
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *PostgresStore) ListWaiting(ctx context.Context, scope models.LobbyScope) ([]*models.GameSession, error) {
	q := `SELECT` + sessionColumns + ` FROM game_sessions WHERE status = $1`
	args := []interface{}{models.StatusWaiting}
	switch scope.Kind {
	case models.ScopeTable:
		q += ` AND table_code = $2`
		args = append(args, scope.Key)
	case models.ScopeCafe:
		q += ` AND cafe_id = $2`
		args = append(args, scope.Key)
	}
	q += ` ORDER BY created_at DESC`

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list waiting sessions: %w", err)
	}
	defer rows.Close()

	var out []*models.GameSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM game_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanSession reads one session row. Works for both QueryRow and rows.Next
// iteration since pgx.Rows satisfies pgx.Row.
func scanSession(row pgx.Row) (*models.GameSession, error) {
	var (
		s      models.GameSession
		guest  *string
		winner *string
		ledger []byte
	)
	err := row.Scan(
		&s.ID, &s.HostName, &guest, &s.GameType, &s.WagerPoints,
		&s.TableCode, &s.CafeID, &s.Status, &ledger, &winner,
		&s.CreatedAt, &s.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if guest != nil {
		s.GuestName = *guest
	}
	if winner != nil {
		s.Winner = *winner
	}
	s.ScoreLedger = make(map[string]models.ScoreEntry)
	if len(ledger) > 0 {
		if err := json.Unmarshal(ledger, &s.ScoreLedger); err != nil {
			return nil, fmt.Errorf("unmarshal score ledger: %w", err)
		}
	}
	return &s, nil
}
