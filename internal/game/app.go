// Package game is the application layer: it runs engine transitions through
// the mutation coordinator and propagates every successful mutation to the
// local cache and the observer hub.
package game

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crowdchess/crowdchess/internal/cache"
	"github.com/crowdchess/crowdchess/internal/coordinator"
	"github.com/crowdchess/crowdchess/internal/engine"
	"github.com/crowdchess/crowdchess/internal/journal"
	"github.com/crowdchess/crowdchess/internal/models"
	"github.com/crowdchess/crowdchess/internal/store"
)

// ErrUnauthorized is returned for admin operations without a valid
// credential.
var ErrUnauthorized = errors.New("unauthorized")

// Counter names kept in the shared store.
const (
	CounterMoves  = "moves_total"
	CounterResets = "resets_total"
)

// Broadcaster pushes a change notice to locally connected observers.
type Broadcaster interface {
	Broadcast(version int64)
}

// Waker nudges the deadline sweeper after a mutation may have produced a
// sooner deadline.
type Waker interface {
	Wake()
}

// App exposes the logical operations of the shared game.
type App struct {
	coord      *coordinator.Coordinator
	engine     *engine.Engine
	cache      *cache.Cache
	store      store.Store
	hub        Broadcaster
	journal    *journal.Journal
	sweeper    Waker
	adminToken string
}

// NewApp wires the application layer. journal and sweeper may be nil.
func NewApp(coord *coordinator.Coordinator, eng *engine.Engine, c *cache.Cache, st store.Store, hub Broadcaster, jnl *journal.Journal, sweeper Waker, adminToken string) *App {
	return &App{
		coord:      coord,
		engine:     eng,
		cache:      c,
		store:      st,
		hub:        hub,
		journal:    jnl,
		sweeper:    sweeper,
		adminToken: adminToken,
	}
}

// SetSweeper installs the deadline sweeper to nudge after mutations; the
// sweeper itself is constructed after the App because its expiry callback
// points back here.
func (a *App) SetSweeper(w Waker) {
	a.sweeper = w
}

// Join enqueues the player for a color, seating them immediately when the
// seat is free.
func (a *App) Join(ctx context.Context, playerID, displayName string, color models.Color) (*models.ConsolidatedState, error) {
	s, err := a.coord.Mutate(ctx, func(s *models.ConsolidatedState, now time.Time) error {
		p := models.Player{ID: playerID, DisplayName: displayName, JoinedAt: now}
		return a.engine.Join(s, p, color, now)
	})
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("player_id", playerID).
		Str("color", string(color)).
		Int64("version", s.Version).
		Msg("player joined")
	a.propagate(s)
	return s, nil
}

// Leave removes the player from queues and seats. Idempotent.
func (a *App) Leave(ctx context.Context, playerID string) (*models.ConsolidatedState, error) {
	s, err := a.coord.Mutate(ctx, func(s *models.ConsolidatedState, now time.Time) error {
		return a.engine.Leave(s, playerID, now)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("player_id", playerID).Int64("version", s.Version).Msg("player left")
	a.propagate(s)
	return s, nil
}

// ConfirmReady switches the caller's seat clock to the move phase.
func (a *App) ConfirmReady(ctx context.Context, playerID string) (*models.ConsolidatedState, error) {
	s, err := a.coord.Mutate(ctx, func(s *models.ConsolidatedState, now time.Time) error {
		return a.engine.ConfirmReady(s, playerID, now)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("player_id", playerID).Int64("version", s.Version).Msg("turn confirmed")
	a.propagate(s)
	return s, nil
}

// Move applies the caller's move and rotates the seat.
func (a *App) Move(ctx context.Context, playerID string, mv models.Move) (*models.ConsolidatedState, error) {
	s, err := a.coord.Mutate(ctx, func(s *models.ConsolidatedState, now time.Time) error {
		return a.engine.ApplyMove(s, playerID, mv, now)
	})
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("player_id", playerID).
		Str("san", s.Game.LastMove.SAN).
		Int64("version", s.Version).
		Msg("move applied")

	if a.journal != nil && s.Game.LastMove != nil {
		if err := a.journal.RecordMove(ctx, s.Version, len(s.Game.MoveHistory), *s.Game.LastMove, s.Game.FEN); err != nil {
			log.Warn().Err(err).Msg("move journal write failed")
		}
	}
	if _, err := a.store.IncrCounter(ctx, CounterMoves); err != nil {
		log.Warn().Err(err).Msg("move counter increment failed")
	}

	a.propagate(s)
	return s, nil
}

// Reset restores the starting position; queues are untouched.
func (a *App) Reset(ctx context.Context, token string) (*models.ConsolidatedState, error) {
	if err := a.authorize(token); err != nil {
		return nil, err
	}
	s, err := a.coord.Mutate(ctx, func(s *models.ConsolidatedState, now time.Time) error {
		return a.engine.Reset(s, now)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int64("version", s.Version).Msg("game reset")
	if _, err := a.store.IncrCounter(ctx, CounterResets); err != nil {
		log.Warn().Err(err).Msg("reset counter increment failed")
	}
	a.propagate(s)
	return s, nil
}

// ClearAll resets the entire record to its default.
func (a *App) ClearAll(ctx context.Context, token string) (*models.ConsolidatedState, error) {
	if err := a.authorize(token); err != nil {
		return nil, err
	}
	s, err := a.coord.Mutate(ctx, func(s *models.ConsolidatedState, now time.Time) error {
		a.engine.ClearAll(s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int64("version", s.Version).Msg("record cleared")
	a.propagate(s)
	return s, nil
}

// KickByName removes every matching player.
func (a *App) KickByName(ctx context.Context, token, displayName string) (*models.ConsolidatedState, error) {
	if err := a.authorize(token); err != nil {
		return nil, err
	}
	s, err := a.coord.Mutate(ctx, func(s *models.ConsolidatedState, now time.Time) error {
		return a.engine.KickByName(s, displayName, now)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("display_name", displayName).Int64("version", s.Version).Msg("player kicked")
	a.propagate(s)
	return s, nil
}

// View derives the read-only projection for a viewer from the local cache,
// with all other player ids anonymized.
func (a *App) View(ctx context.Context, viewerID string) (*models.View, error) {
	s, err := a.cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	turn, err := a.engine.Turn(s)
	if err != nil {
		return nil, err
	}
	return models.DeriveView(s, turn).AnonymizedFor(viewerID), nil
}

// Stats returns lightweight operational numbers.
func (a *App) Stats(ctx context.Context) (map[string]int64, error) {
	moves, err := a.store.Counter(ctx, CounterMoves)
	if err != nil {
		return nil, err
	}
	resets, err := a.store.Counter(ctx, CounterResets)
	if err != nil {
		return nil, err
	}
	return map[string]int64{
		"version":      a.cache.Version(),
		"moves_total":  moves,
		"resets_total": resets,
	}, nil
}

// OnRemoteChange is the probe-loop callback: a mutation made by another
// process was detected and the cache already holds the fresh value, so only
// local observers need notifying.
func (a *App) OnRemoteChange(s *models.ConsolidatedState) {
	a.hub.Broadcast(s.Version)
	if a.sweeper != nil {
		a.sweeper.Wake()
	}
}

// OnSweep is the sweeper callback for deadlines it enforced itself.
func (a *App) OnSweep(s *models.ConsolidatedState) {
	a.cache.Replace(s)
	a.hub.Broadcast(s.Version)
}

func (a *App) propagate(s *models.ConsolidatedState) {
	a.cache.Replace(s)
	a.hub.Broadcast(s.Version)
	if a.sweeper != nil {
		a.sweeper.Wake()
	}
}

func (a *App) authorize(token string) error {
	if a.adminToken == "" {
		// No credential configured: admin surface is disabled outright.
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(a.adminToken)) != 1 {
		return ErrUnauthorized
	}
	return nil
}
