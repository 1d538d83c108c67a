// internal/models/session.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Session status values. Transitions are forward-only:
// waiting -> active -> finished.
const (
	StatusWaiting  = "waiting"
	StatusActive   = "active"
	StatusFinished = "finished"
)

// GameSession is the authoritative record of a single two-player wagered
// match at a cafe table. The guest slot is assigned at most once; once the
// session is finished the ledger, guest and winner are frozen.
type GameSession struct {
	ID          uuid.UUID             `json:"id"`
	HostName    string                `json:"hostName"`
	GuestName   string                `json:"guestName,omitempty"` // empty until joined
	GameType    string                `json:"gameType"`
	WagerPoints int                   `json:"wagerPoints"`
	TableCode   string                `json:"tableCode"`
	CafeID      string                `json:"cafeId"`
	Status      string                `json:"status"`
	ScoreLedger map[string]ScoreEntry `json:"scoreLedger"`
	Winner      string                `json:"winner,omitempty"`
	CreatedAt   time.Time             `json:"createdAt"`
	FinishedAt  *time.Time            `json:"finishedAt,omitempty"`
}

// ScoreEntry is one participant's best-known result, written only by that
// participant. SubmissionKey is the caller-supplied idempotency token for
// at-least-once delivery.
type ScoreEntry struct {
	Score         int       `json:"score"`
	RoundsWon     int       `json:"roundsWon"`
	DurationMs    int64     `json:"durationMs"`
	Done          bool      `json:"done"`
	SubmissionKey string    `json:"submissionKey"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// BetterThan reports whether e beats other under the settlement ordering:
// more rounds won, then higher score, then lower duration (first to the
// result), then earlier submission. Deterministic so resolution is
// reproducible from the same ledger state.
func (e ScoreEntry) BetterThan(other ScoreEntry) bool {
	if e.RoundsWon != other.RoundsWon {
		return e.RoundsWon > other.RoundsWon
	}
	if e.Score != other.Score {
		return e.Score > other.Score
	}
	if e.DurationMs != other.DurationMs {
		return e.DurationMs < other.DurationMs
	}
	return e.SubmittedAt.Before(other.SubmittedAt)
}

// IsParticipant reports whether name is the session's host or assigned guest.
func (s *GameSession) IsParticipant(name string) bool {
	if name == "" {
		return false
	}
	return name == s.HostName || (s.GuestName != "" && name == s.GuestName)
}

// Opponent returns the other registered participant, or "" if none.
func (s *GameSession) Opponent(name string) string {
	switch name {
	case s.HostName:
		return s.GuestName
	case s.GuestName:
		return s.HostName
	}
	return ""
}

// Clone returns a deep copy. Stores hand copies out so callers can never
// mutate authoritative state through a returned pointer.
func (s *GameSession) Clone() *GameSession {
	cp := *s
	cp.ScoreLedger = make(map[string]ScoreEntry, len(s.ScoreLedger))
	for k, v := range s.ScoreLedger {
		cp.ScoreLedger[k] = v
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}
