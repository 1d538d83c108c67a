// internal/store/memory.go
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eminemrre/cafeduo/internal/models"
)

// MemoryStore is a mutex-guarded in-memory SessionStore. It backs tests and
// cache-less dev runs; the conditional semantics match the Postgres store
// exactly so the manager behaves the same against either.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.GameSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[uuid.UUID]*models.GameSession),
	}
}

func (m *MemoryStore) Create(ctx context.Context, s *models.GameSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*models.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) AssignGuest(ctx context.Context, id uuid.UUID, guest string) (*models.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.Status == models.StatusFinished {
		return nil, ErrSettled
	}
	if s.GuestName != "" {
		return nil, ErrGuestTaken
	}
	s.GuestName = guest
	s.Status = models.StatusActive
	return s.Clone(), nil
}

func (m *MemoryStore) SubmitScore(ctx context.Context, id uuid.UUID, participant string, entry models.ScoreEntry) (*models.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.Status == models.StatusFinished {
		return nil, ErrSettled
	}
	if prev, ok := s.ScoreLedger[participant]; ok && prev.SubmissionKey == entry.SubmissionKey {
		// Redelivered submission, keep the recorded entry.
		return s.Clone(), nil
	}
	s.ScoreLedger[participant] = entry
	return s.Clone(), nil
}

func (m *MemoryStore) Settle(ctx context.Context, id uuid.UUID, resolve func(*models.GameSession) string) (*models.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.Status == models.StatusFinished {
		return nil, ErrSettled
	}
	winner := resolve(s.Clone())
	now := time.Now()
	s.Status = models.StatusFinished
	s.Winner = winner
	s.FinishedAt = &now
	return s.Clone(), nil
}

func (m *MemoryStore) ListWaiting(ctx context.Context, scope models.LobbyScope) ([]*models.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.GameSession
	for _, s := range m.sessions {
		if s.Status != models.StatusWaiting {
			continue
		}
		switch scope.Kind {
		case models.ScopeTable:
			if s.TableCode != scope.Key {
				continue
			}
		case models.ScopeCafe:
			if s.CafeID != scope.Key {
				continue
			}
		}
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}
