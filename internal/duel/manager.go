// internal/duel/manager.go
package duel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/eminemrre/cafeduo/internal/lobby"
	"github.com/eminemrre/cafeduo/internal/metrics"
	"github.com/eminemrre/cafeduo/internal/models"
	"github.com/eminemrre/cafeduo/internal/store"
)

// MaxWagerPoints caps the stake a host may put on a session.
const MaxWagerPoints = 10000

// MoveSubmission is one client's score report. SubmissionKey is the
// caller-supplied idempotency token; redelivering the same key never
// double-counts. Done=false marks a live in-round update, Done=true the
// final result used for settlement.
type MoveSubmission struct {
	Score         int    `json:"score"`
	RoundsWon     int    `json:"roundsWon"`
	DurationMs    int64  `json:"durationMs"`
	Done          bool   `json:"done"`
	SubmissionKey string `json:"submissionKey"`
}

// Manager owns the session state machine: waiting -> active -> finished.
// All mutations go through the injected SessionStore, whose conditional
// primitives carry the race-sensitive transitions; the lobby service is
// invalidated synchronously on every membership-changing mutation.
type Manager struct {
	store store.SessionStore
	lobby *lobby.Service
	emit  EmitFunc
}

func NewManager(st store.SessionStore, ls *lobby.Service, emit EmitFunc) *Manager {
	return &Manager{store: st, lobby: ls, emit: emit}
}

// Create opens a new waiting session hosted by host. Single writer, no race
// to guard; the lobby listings gain a member so their cache entries drop.
func (m *Manager) Create(ctx context.Context, host, gameType string, wagerPoints int, tableCode, cafeID string) (*models.GameSession, error) {
	if host == "" || gameType == "" || tableCode == "" || cafeID == "" {
		return nil, fmt.Errorf("%w: host, gameType, tableCode and cafeID are required", ErrInvalidInput)
	}
	if wagerPoints < 0 || wagerPoints > MaxWagerPoints {
		return nil, fmt.Errorf("%w: wagerPoints %d out of range [0,%d]", ErrInvalidInput, wagerPoints, MaxWagerPoints)
	}

	s := &models.GameSession{
		ID:          uuid.New(),
		HostName:    host,
		GameType:    gameType,
		WagerPoints: wagerPoints,
		TableCode:   tableCode,
		CafeID:      cafeID,
		Status:      models.StatusWaiting,
		ScoreLedger: make(map[string]models.ScoreEntry),
		CreatedAt:   time.Now().UTC(),
	}
	if err := m.store.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	m.lobby.Invalidate(ctx, s)
	m.emitEvent(EventSessionCreated, host, s)
	metrics.SessionsCreated.Inc()
	log.WithFields(log.Fields{
		"session": s.ID, "host": host, "table": tableCode, "wager": wagerPoints,
	}).Info("session created")
	return s, nil
}

// Join assigns guest to the session's single guest slot. The exclusivity
// lives in the store's conditional update: of N concurrent joins exactly
// one succeeds, the rest get ErrConflict.
func (m *Manager) Join(ctx context.Context, id uuid.UUID, guest string) (*models.GameSession, error) {
	if guest == "" {
		return nil, fmt.Errorf("%w: guest identity is required", ErrInvalidInput)
	}
	cur, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if cur.HostName == guest {
		return nil, fmt.Errorf("%w: host cannot join own session", ErrInvalidInput)
	}

	s, err := m.store.AssignGuest(ctx, id, guest)
	if err != nil {
		if errors.Is(err, store.ErrGuestTaken) {
			return nil, fmt.Errorf("%w: session already joined", ErrConflict)
		}
		return nil, mapStoreErr(err)
	}

	m.lobby.Invalidate(ctx, s)
	m.emitEvent(EventSessionJoined, guest, s)
	metrics.SessionsJoined.Inc()
	log.WithFields(log.Fields{"session": s.ID, "guest": guest}).Info("session joined")
	return s, nil
}

// SubmitMove records the submitter's own ledger entry. Non-participants are
// rejected outright; submissions after settlement are a conflict, not a
// silent drop. Each participant only ever writes its own slot so host and
// guest submissions need no coordination.
func (m *Manager) SubmitMove(ctx context.Context, id uuid.UUID, submitter string, move MoveSubmission) (*models.GameSession, error) {
	if submitter == "" || move.SubmissionKey == "" {
		return nil, fmt.Errorf("%w: submitter and submissionKey are required", ErrInvalidInput)
	}
	if move.Score < 0 || move.RoundsWon < 0 || move.DurationMs < 0 {
		return nil, fmt.Errorf("%w: negative score values", ErrInvalidInput)
	}

	cur, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if !cur.IsParticipant(submitter) {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, submitter)
	}
	if cur.Status == models.StatusFinished {
		return nil, fmt.Errorf("%w: session already settled", ErrConflict)
	}

	entry := models.ScoreEntry{
		Score:         move.Score,
		RoundsWon:     move.RoundsWon,
		DurationMs:    move.DurationMs,
		Done:          move.Done,
		SubmissionKey: move.SubmissionKey,
		SubmittedAt:   time.Now().UTC(),
	}
	s, err := m.store.SubmitScore(ctx, id, submitter, entry)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	// A redelivered submission key leaves the stored entry untouched; only
	// a fresh write counts and is announced.
	if stored, ok := s.ScoreLedger[submitter]; ok && stored.SubmittedAt.Equal(entry.SubmittedAt) {
		kind := "live"
		if move.Done {
			kind = "final"
		}
		metrics.MovesAccepted.WithLabelValues(kind).Inc()
		m.emitEvent(EventSessionMove, submitter, s)
	}
	return s, nil
}

// Resign settles the session immediately in favor of the resigner's
// opponent, whatever the ledger says. A second settlement attempt of any
// kind gets ErrConflict.
func (m *Manager) Resign(ctx context.Context, id uuid.UUID, resigner string) (*models.GameSession, error) {
	if resigner == "" {
		return nil, fmt.Errorf("%w: resigner identity is required", ErrInvalidInput)
	}
	cur, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if !cur.IsParticipant(resigner) {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, resigner)
	}

	s, err := m.store.Settle(ctx, id, func(cur *models.GameSession) string {
		if other := cur.Opponent(resigner); other != "" {
			return other
		}
		// Resign before anyone joined: the host is the only registered
		// participant and therefore the defined default.
		return cur.HostName
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}

	m.lobby.Invalidate(ctx, s)
	m.emitEvent(EventSessionFinished, resigner, s)
	metrics.SessionsSettled.WithLabelValues("resign").Inc()
	log.WithFields(log.Fields{"session": s.ID, "resigner": resigner, "winner": s.Winner}).Info("session resigned")
	return s, nil
}

// Finish settles the session. claimedWinner is accepted as input and
// discarded: the stored and returned winner always comes from
// ResolveWinner over the ledger, so a client naming an arbitrary winner
// changes nothing.
func (m *Manager) Finish(ctx context.Context, id uuid.UUID, caller, claimedWinner string) (*models.GameSession, error) {
	s, err := m.store.Settle(ctx, id, ResolveWinner)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	if claimedWinner != "" && claimedWinner != s.Winner {
		log.WithFields(log.Fields{
			"session": s.ID, "caller": caller,
			"claimed": claimedWinner, "resolved": s.Winner,
		}).Warn("finish claim rejected, resolver disagrees")
	}

	m.lobby.Invalidate(ctx, s)
	m.emitEvent(EventSessionFinished, caller, s)
	metrics.SessionsSettled.WithLabelValues("finish").Inc()
	log.WithFields(log.Fields{"session": s.ID, "winner": s.Winner}).Info("session finished")
	return s, nil
}

// Get returns a copy of the session.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*models.GameSession, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return s, nil
}

// Delete removes a session; only its host may do so. Retention sweeps use
// the store directly, this is the host-facing cancel.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID, caller string) error {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return mapStoreErr(err)
	}
	if s.HostName != caller {
		return fmt.Errorf("%w: only the host may delete a session", ErrForbidden)
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return mapStoreErr(err)
	}
	m.lobby.Invalidate(ctx, s)
	return nil
}

// mapStoreErr converts store sentinels into the Manager's typed failures.
func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w", ErrNotFound)
	case errors.Is(err, store.ErrSettled):
		return fmt.Errorf("%w: session already settled", ErrConflict)
	case errors.Is(err, store.ErrGuestTaken):
		return fmt.Errorf("%w: session already joined", ErrConflict)
	}
	return err
}
