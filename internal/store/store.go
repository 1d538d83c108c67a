// internal/store/store.go
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/eminemrre/cafeduo/internal/models"
)

// Sentinel errors returned by SessionStore implementations. The lifecycle
// manager maps these onto its own typed failures.
var (
	// ErrNotFound means no session exists with the given id.
	ErrNotFound = errors.New("store: session not found")

	// ErrGuestTaken means the guest slot was already assigned when an
	// AssignGuest attempt ran. Exactly one of any set of concurrent
	// attempts avoids this error.
	ErrGuestTaken = errors.New("store: guest slot already taken")

	// ErrSettled means the session is already finished and the attempted
	// mutation is rejected.
	ErrSettled = errors.New("store: session already settled")
)

// SessionStore is the durable home of sessions. It is the single source of
// truth and must serialize conflicting writes to the same session; the
// conditional operations below are atomic at the storage layer so they hold
// across multiple service instances, not just one process.
type SessionStore interface {
	// Create persists a new waiting session.
	Create(ctx context.Context, s *models.GameSession) error

	// Get returns a copy of the session or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*models.GameSession, error)

	// AssignGuest sets the guest and flips the session to active, iff the
	// guest slot is still empty. Returns ErrGuestTaken when it is not and
	// ErrSettled when the session already finished.
	AssignGuest(ctx context.Context, id uuid.UUID, guest string) (*models.GameSession, error)

	// SubmitScore writes the participant's own ledger entry, iff the
	// session is not finished. A repeated SubmissionKey for the same
	// participant is an idempotent no-op returning the current state.
	SubmitScore(ctx context.Context, id uuid.UUID, participant string, entry models.ScoreEntry) (*models.GameSession, error)

	// Settle transitions the session to finished exactly once. The winner
	// is computed by resolve from the session state observed under the
	// store's own serialization, so no concurrently accepted submission is
	// missed and a second settlement attempt gets ErrSettled.
	Settle(ctx context.Context, id uuid.UUID, resolve func(*models.GameSession) string) (*models.GameSession, error)

	// ListWaiting returns waiting sessions in the given scope, newest first.
	ListWaiting(ctx context.Context, scope models.LobbyScope) ([]*models.GameSession, error)

	// Delete removes a session. Used by retention/cleanup, not the core flow.
	Delete(ctx context.Context, id uuid.UUID) error
}
