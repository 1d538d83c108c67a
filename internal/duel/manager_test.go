package duel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eminemrre/cafeduo/internal/cache"
	"github.com/eminemrre/cafeduo/internal/lobby"
	"github.com/eminemrre/cafeduo/internal/models"
	"github.com/eminemrre/cafeduo/internal/store"
)

// recordingCache tracks invalidations so tests can assert they happen
// synchronously with the mutation.
type recordingCache struct {
	mu          sync.Mutex
	data        map[string][]byte
	invalidated []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{data: make(map[string][]byte)}
}

func (c *recordingCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *recordingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

func (c *recordingCache) Invalidate(ctx context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
		c.invalidated = append(c.invalidated, k)
	}
}

func (c *recordingCache) Stats(ctx context.Context) cache.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cache.Stats{Keys: len(c.data), Available: true}
}

func (c *recordingCache) invalidatedKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.invalidated...)
}

// mockSink collects emitted events instead of fanning them out.
type mockSink struct {
	mu     sync.Mutex
	events []Event
}

func (ms *mockSink) emit(ev Event) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.events = append(ms.events, ev)
}

func (ms *mockSink) byType(typ string) []Event {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	var out []Event
	for _, ev := range ms.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func setupManager(t *testing.T) (*Manager, *recordingCache, *mockSink) {
	t.Helper()
	st := store.NewMemoryStore()
	rc := newRecordingCache()
	ls := lobby.NewService(st, rc, time.Second)
	sink := &mockSink{}
	return NewManager(st, ls, sink.emit), rc, sink
}

func createWaiting(t *testing.T, m *Manager, host string) *models.GameSession {
	t.Helper()
	s, err := m.Create(context.Background(), host, "rock-paper-scissors", 40, "B7", "cafe-1")
	require.NoError(t, err)
	return s
}

func TestCreateSession(t *testing.T) {
	m, rc, sink := setupManager(t)

	s := createWaiting(t, m, "hatice")
	assert.Equal(t, models.StatusWaiting, s.Status)
	assert.Equal(t, "hatice", s.HostName)
	assert.Empty(t, s.GuestName)
	assert.Empty(t, s.Winner)
	assert.NotEqual(t, uuid.Nil, s.ID)

	assert.Contains(t, rc.invalidatedKeys(), "lobby:all")
	assert.Contains(t, rc.invalidatedKeys(), "lobby:table:B7")
	assert.Contains(t, rc.invalidatedKeys(), "lobby:cafe:cafe-1")

	require.Len(t, sink.byType(EventSessionCreated), 1)
}

func TestCreateSessionValidation(t *testing.T) {
	m, _, _ := setupManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "", "rps", 10, "B7", "cafe-1")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = m.Create(ctx, "hatice", "rps", -1, "B7", "cafe-1")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = m.Create(ctx, "hatice", "rps", MaxWagerPoints+1, "B7", "cafe-1")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestJoinExclusivity(t *testing.T) {
	m, _, sink := setupManager(t)
	s := createWaiting(t, m, "hatice")

	const attempts = 16
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = m.Join(context.Background(), s.ID, uuid.NewString())
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range results {
		if err == nil {
			won++
		} else {
			assert.ErrorIs(t, err, ErrConflict, "every loser must see a conflict, not a generic error")
		}
	}
	assert.Equal(t, 1, won, "exactly one concurrent join may succeed")

	joined, err := m.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, joined.Status)
	assert.NotEmpty(t, joined.GuestName)
	assert.Len(t, sink.byType(EventSessionJoined), 1)
}

func TestJoinOwnSession(t *testing.T) {
	m, _, _ := setupManager(t)
	s := createWaiting(t, m, "hatice")

	_, err := m.Join(context.Background(), s.ID, "hatice")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestJoinUnknownSession(t *testing.T) {
	m, _, _ := setupManager(t)
	_, err := m.Join(context.Background(), uuid.New(), "kerem")
	assert.ErrorIs(t, err, ErrNotFound)
}

func joinAs(t *testing.T, m *Manager, id uuid.UUID, guest string) {
	t.Helper()
	_, err := m.Join(context.Background(), id, guest)
	require.NoError(t, err)
}

func TestSubmitMoveForbiddenForNonParticipant(t *testing.T) {
	m, _, _ := setupManager(t)
	ctx := context.Background()
	s := createWaiting(t, m, "hatice")
	joinAs(t, m, s.ID, "kerem")

	move := MoveSubmission{Score: 10, RoundsWon: 1, SubmissionKey: "k1"}
	_, err := m.SubmitMove(ctx, s.ID, "intruder", move)
	assert.ErrorIs(t, err, ErrForbidden)

	// Still forbidden after settlement, not a conflict.
	_, err = m.Finish(ctx, s.ID, "hatice", "")
	require.NoError(t, err)
	_, err = m.SubmitMove(ctx, s.ID, "intruder", move)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSubmitMoveScoreIsolation(t *testing.T) {
	m, _, _ := setupManager(t)
	ctx := context.Background()
	s := createWaiting(t, m, "hatice")
	joinAs(t, m, s.ID, "kerem")

	_, err := m.SubmitMove(ctx, s.ID, "kerem", MoveSubmission{Score: 70, RoundsWon: 2, SubmissionKey: "g1"})
	require.NoError(t, err)

	after, err := m.SubmitMove(ctx, s.ID, "hatice", MoveSubmission{Score: 5, RoundsWon: 0, SubmissionKey: "h1"})
	require.NoError(t, err)

	guestEntry := after.ScoreLedger["kerem"]
	assert.Equal(t, 70, guestEntry.Score, "host submission must not alter the guest entry")
	assert.Equal(t, 2, guestEntry.RoundsWon)
	assert.Equal(t, 5, after.ScoreLedger["hatice"].Score)
}

func TestSubmitMoveIdempotentKey(t *testing.T) {
	m, _, sink := setupManager(t)
	ctx := context.Background()
	s := createWaiting(t, m, "hatice")
	joinAs(t, m, s.ID, "kerem")

	first, err := m.SubmitMove(ctx, s.ID, "hatice", MoveSubmission{Score: 10, RoundsWon: 1, SubmissionKey: "round-1"})
	require.NoError(t, err)

	// Redelivery with the same key carries a different score; it must not
	// overwrite the recorded entry or emit a second move event.
	second, err := m.SubmitMove(ctx, s.ID, "hatice", MoveSubmission{Score: 999, RoundsWon: 9, SubmissionKey: "round-1"})
	require.NoError(t, err)
	assert.Equal(t, first.ScoreLedger["hatice"], second.ScoreLedger["hatice"])
	assert.Len(t, sink.byType(EventSessionMove), 1)
}

func TestSubmitMoveLiveThenFinal(t *testing.T) {
	m, _, _ := setupManager(t)
	ctx := context.Background()
	s := createWaiting(t, m, "hatice")
	joinAs(t, m, s.ID, "kerem")

	_, err := m.SubmitMove(ctx, s.ID, "hatice", MoveSubmission{Score: 10, RoundsWon: 1, SubmissionKey: "h-live", Done: false})
	require.NoError(t, err)
	after, err := m.SubmitMove(ctx, s.ID, "hatice", MoveSubmission{Score: 45, RoundsWon: 3, SubmissionKey: "h-final", Done: true})
	require.NoError(t, err)

	entry := after.ScoreLedger["hatice"]
	assert.True(t, entry.Done)
	assert.Equal(t, 45, entry.Score)
}

func TestSubmitMoveAfterSettlement(t *testing.T) {
	m, _, _ := setupManager(t)
	ctx := context.Background()
	s := createWaiting(t, m, "hatice")
	joinAs(t, m, s.ID, "kerem")
	_, err := m.Finish(ctx, s.ID, "hatice", "")
	require.NoError(t, err)

	_, err = m.SubmitMove(ctx, s.ID, "hatice", MoveSubmission{Score: 1, SubmissionKey: "late"})
	assert.ErrorIs(t, err, ErrConflict, "late submissions are rejected, not ignored")
}

func TestFinishIgnoresClaimedWinner(t *testing.T) {
	m, _, _ := setupManager(t)
	ctx := context.Background()
	s := createWaiting(t, m, "hatice")
	joinAs(t, m, s.ID, "kerem")

	_, err := m.SubmitMove(ctx, s.ID, "hatice", MoveSubmission{Score: 30, RoundsWon: 3, SubmissionKey: "h1", Done: true})
	require.NoError(t, err)
	_, err = m.SubmitMove(ctx, s.ID, "kerem", MoveSubmission{Score: 10, RoundsWon: 1, SubmissionKey: "g1", Done: true})
	require.NoError(t, err)

	// The losing guest claims themselves as winner.
	settled, err := m.Finish(ctx, s.ID, "kerem", "kerem")
	require.NoError(t, err)
	assert.Equal(t, "hatice", settled.Winner, "claimed winner must never influence the result")

	stored, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "hatice", stored.Winner)
}

func TestSettlementFinality(t *testing.T) {
	m, _, _ := setupManager(t)
	ctx := context.Background()
	s := createWaiting(t, m, "hatice")
	joinAs(t, m, s.ID, "kerem")

	settled, err := m.Finish(ctx, s.ID, "hatice", "")
	require.NoError(t, err)
	require.Equal(t, models.StatusFinished, settled.Status)

	_, err = m.Finish(ctx, s.ID, "hatice", "")
	assert.ErrorIs(t, err, ErrConflict)
	_, err = m.Resign(ctx, s.ID, "kerem")
	assert.ErrorIs(t, err, ErrConflict)
	_, err = m.Join(ctx, s.ID, "late-guest")
	assert.ErrorIs(t, err, ErrConflict)
	_, err = m.SubmitMove(ctx, s.ID, "kerem", MoveSubmission{Score: 1, SubmissionKey: "late"})
	assert.ErrorIs(t, err, ErrConflict)

	after, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, settled.Winner, after.Winner, "winner immutable after settlement")
	assert.Equal(t, models.StatusFinished, after.Status)
}

func TestConcurrentSettlement(t *testing.T) {
	m, _, sink := setupManager(t)
	ctx := context.Background()
	s := createWaiting(t, m, "hatice")
	joinAs(t, m, s.ID, "kerem")

	const attempts = 8
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, results[i] = m.Finish(ctx, s.ID, "hatice", "")
			} else {
				_, results[i] = m.Resign(ctx, s.ID, "kerem")
			}
		}(i)
	}
	wg.Wait()

	settledOnce := 0
	for _, err := range results {
		if err == nil {
			settledOnce++
		} else {
			assert.ErrorIs(t, err, ErrConflict)
		}
	}
	assert.Equal(t, 1, settledOnce, "only one settlement transition may be accepted")
	assert.Len(t, sink.byType(EventSessionFinished), 1)
}

func TestResignWinnerIsOpponent(t *testing.T) {
	m, _, _ := setupManager(t)
	ctx := context.Background()
	s := createWaiting(t, m, "hatice")
	joinAs(t, m, s.ID, "kerem")

	// The resigner holds the better ledger entry; they still lose.
	_, err := m.SubmitMove(ctx, s.ID, "hatice", MoveSubmission{Score: 99, RoundsWon: 9, SubmissionKey: "h1"})
	require.NoError(t, err)

	settled, err := m.Resign(ctx, s.ID, "hatice")
	require.NoError(t, err)
	assert.Equal(t, "kerem", settled.Winner, "resign always yields the other participant")
	assert.Equal(t, models.StatusFinished, settled.Status)
}

func TestResignBeforeJoin(t *testing.T) {
	m, _, _ := setupManager(t)
	s := createWaiting(t, m, "hatice")

	settled, err := m.Resign(context.Background(), s.ID, "hatice")
	require.NoError(t, err)
	assert.Equal(t, "hatice", settled.Winner, "sole registered participant is the defined default")
}

func TestResignByNonParticipant(t *testing.T) {
	m, _, _ := setupManager(t)
	s := createWaiting(t, m, "hatice")
	_, err := m.Resign(context.Background(), s.ID, "intruder")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDeleteSession(t *testing.T) {
	m, _, _ := setupManager(t)
	ctx := context.Background()
	s := createWaiting(t, m, "hatice")

	err := m.Delete(ctx, s.ID, "kerem")
	assert.ErrorIs(t, err, ErrForbidden, "only the host may delete")

	require.NoError(t, m.Delete(ctx, s.ID, "hatice"))
	_, err = m.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestWagerScenario walks the end-to-end example: a wagered session, a join
// race with an intruder, a forbidden submission, and a spoofed finish claim.
func TestWagerScenario(t *testing.T) {
	m, _, _ := setupManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, "H", "tank-duel", 40, "T1", "cafe-9")
	require.NoError(t, err)

	var wg sync.WaitGroup
	joinErrs := make([]error, 2)
	for i, who := range []string{"G", "I"} {
		wg.Add(1)
		go func(i int, who string) {
			defer wg.Done()
			_, joinErrs[i] = m.Join(ctx, s.ID, who)
		}(i, who)
	}
	wg.Wait()

	okCount := 0
	for _, err := range joinErrs {
		if err == nil {
			okCount++
		} else {
			assert.ErrorIs(t, err, ErrConflict)
		}
	}
	require.Equal(t, 1, okCount)

	joined, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	guest := joined.GuestName
	intruder := "I"
	if guest == "I" {
		intruder = "G"
	}

	_, err = m.SubmitMove(ctx, s.ID, intruder, MoveSubmission{Score: 1, SubmissionKey: "x"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = m.SubmitMove(ctx, s.ID, "H", MoveSubmission{RoundsWon: 3, SubmissionKey: "h-final", Done: true})
	require.NoError(t, err)
	_, err = m.SubmitMove(ctx, s.ID, guest, MoveSubmission{RoundsWon: 1, SubmissionKey: "g-final", Done: true})
	require.NoError(t, err)

	settled, err := m.Finish(ctx, s.ID, guest, intruder)
	require.NoError(t, err)
	assert.Equal(t, "H", settled.Winner)
}

func TestLobbyInvalidationOnSettlement(t *testing.T) {
	m, rc, _ := setupManager(t)
	ctx := context.Background()
	s := createWaiting(t, m, "hatice")
	joinAs(t, m, s.ID, "kerem")

	before := len(rc.invalidatedKeys())
	_, err := m.Finish(ctx, s.ID, "hatice", "")
	require.NoError(t, err)
	assert.Greater(t, len(rc.invalidatedKeys()), before, "settlement must invalidate lobby scopes synchronously")
}

func TestMapStoreErr(t *testing.T) {
	assert.ErrorIs(t, mapStoreErr(store.ErrNotFound), ErrNotFound)
	assert.ErrorIs(t, mapStoreErr(store.ErrSettled), ErrConflict)
	assert.ErrorIs(t, mapStoreErr(store.ErrGuestTaken), ErrConflict)
	boom := errors.New("boom")
	assert.Equal(t, boom, mapStoreErr(boom))
}
