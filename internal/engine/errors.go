package engine

import "errors"

// Business-rule failures. These are deterministic outcomes of the pure
// transitions: never retried, surfaced verbatim to the caller.
var (
	ErrAlreadyQueued       = errors.New("player already queued")
	ErrAlreadyPlaying      = errors.New("player already playing")
	ErrNotYourTurn         = errors.New("not your turn")
	ErrNothingToConfirm    = errors.New("nothing to confirm")
	ErrConfirmationExpired = errors.New("confirmation window expired")
	ErrNotConfirmed        = errors.New("turn not confirmed")
	ErrMoveExpired         = errors.New("move window expired")
	ErrPlayerNotFound      = errors.New("player not found")
)
