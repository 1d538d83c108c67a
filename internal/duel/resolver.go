// internal/duel/resolver.go
package duel

import "github.com/eminemrre/cafeduo/internal/models"

// ResolveWinner returns the authoritative winner for a session being
// settled, computed purely from the score ledger. It never reads any
// client-supplied winner claim; the ledger is the only evidence.
//
// Rules, in order:
//   - A participant with a ledger entry beats one without.
//   - Between two entries the ScoreEntry ordering decides (rounds won,
//     then score, then lower duration, then earlier submission).
//   - A fully tied ledger, or an empty one, falls back to the host so the
//     result is always a registered participant.
func ResolveWinner(s *models.GameSession) string {
	hostEntry, hostOK := s.ScoreLedger[s.HostName]
	var guestEntry models.ScoreEntry
	guestOK := false
	if s.GuestName != "" {
		guestEntry, guestOK = s.ScoreLedger[s.GuestName]
	}

	switch {
	case hostOK && guestOK:
		if guestEntry.BetterThan(hostEntry) {
			return s.GuestName
		}
		return s.HostName
	case guestOK:
		return s.GuestName
	default:
		// Host entry only, or no entries at all.
		return s.HostName
	}
}
