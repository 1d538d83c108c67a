package models

import "fmt"

// Scope kinds for lobby listings.
const (
	ScopeAll   = "all"
	ScopeTable = "table"
	ScopeCafe  = "cafe"
)

// LobbyScope selects which waiting sessions a listing covers: every session,
// one table, or one cafe. Key is empty for ScopeAll.
type LobbyScope struct {
	Kind string
	Key  string
}

// CacheKey returns the cache key for this scope, e.g. "lobby:table:B7".
func (s LobbyScope) CacheKey() string {
	if s.Kind == ScopeAll {
		return "lobby:all"
	}
	return fmt.Sprintf("lobby:%s:%s", s.Kind, s.Key)
}

// Valid reports whether the scope kind is known and the key is present when
// the kind requires one.
func (s LobbyScope) Valid() bool {
	switch s.Kind {
	case ScopeAll:
		return true
	case ScopeTable, ScopeCafe:
		return s.Key != ""
	}
	return false
}

// SessionScopes returns the scopes whose waiting-list membership a mutation
// of the given session can affect. Used for coarse cache invalidation.
func SessionScopes(s *GameSession) []LobbyScope {
	return []LobbyScope{
		{Kind: ScopeAll},
		{Kind: ScopeTable, Key: s.TableCode},
		{Kind: ScopeCafe, Key: s.CafeID},
	}
}
