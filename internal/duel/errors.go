// internal/duel/errors.go
package duel

import "errors"

// Typed failures returned by the Manager. Every invalid transition maps to
// one of these; nothing in the lifecycle panics on bad input. The HTTP
// boundary translates them to status codes.
var (
	// ErrNotFound: no session with the given id.
	ErrNotFound = errors.New("session not found")

	// ErrForbidden: the caller is not a registered participant of the
	// session it tried to mutate.
	ErrForbidden = errors.New("caller is not a session participant")

	// ErrConflict: the mutation lost a race or arrived after settlement
	// (join on a taken session, submit/finish/resign on a finished one).
	ErrConflict = errors.New("conflicting session state")

	// ErrInvalidInput: malformed or out-of-range request data.
	ErrInvalidInput = errors.New("invalid input")
)
