// Package engine implements the turn-queue state machine as pure transitions
// over a ConsolidatedState value. Transitions are side-effect free and take
// "now" as an explicit input; persistence, retries and notification live in
// the coordinator above.
package engine

import (
	"time"

	"github.com/crowdchess/crowdchess/internal/models"
)

// Rules is the external rule engine contract. Apply must be a pure function
// of the position and the move.
type Rules interface {
	Apply(fen string, mv models.Move) (models.AppliedMove, error)
	SideToMove(fen string) (models.Color, error)
}

// Config holds the two turn-window budgets.
type Config struct {
	ConfirmTimeout time.Duration
	MoveTimeout    time.Duration
}

// DefaultConfig mirrors the budgets the deployed game runs with.
func DefaultConfig() Config {
	return Config{
		ConfirmTimeout: 30 * time.Second,
		MoveTimeout:    60 * time.Second,
	}
}

// Engine applies turn-queue transitions using an external rule engine.
type Engine struct {
	rules Rules
	cfg   Config
}

// New creates an engine.
func New(rules Rules, cfg Config) *Engine {
	return &Engine{rules: rules, cfg: cfg}
}

// Turn returns the color to move, derived solely from the position encoding.
func (e *Engine) Turn(s *models.ConsolidatedState) (models.Color, error) {
	return e.rules.SideToMove(s.Game.FEN)
}

// Join appends the player to the tail of the color's queue, seating them
// immediately when the seat is empty. A player id may occur at most once
// across both queues and both seats, so joining while seated anywhere fails
// ErrAlreadyPlaying and joining while queued anywhere fails ErrAlreadyQueued.
func (e *Engine) Join(s *models.ConsolidatedState, p models.Player, color models.Color, now time.Time) error {
	for _, c := range []models.Color{models.White, models.Black} {
		if seat := s.SeatFor(c); seat != nil && seat.ID == p.ID {
			return ErrAlreadyPlaying
		}
		for _, queued := range s.QueueFor(c) {
			if queued.ID == p.ID {
				return ErrAlreadyQueued
			}
		}
	}

	s.SetQueue(color, append(s.QueueFor(color), p))
	if s.SeatFor(color) == nil {
		return e.assign(s, color, now)
	}
	return nil
}

// Leave removes the id from both queues and, when the id occupies a seat,
// clears the seat and reassigns that color. Idempotent: leaving twice is the
// same as leaving once.
func (e *Engine) Leave(s *models.ConsolidatedState, playerID string, now time.Time) error {
	for _, c := range []models.Color{models.White, models.Black} {
		s.SetQueue(c, removeByID(s.QueueFor(c), playerID))
	}
	for _, c := range []models.Color{models.White, models.Black} {
		if seat := s.SeatFor(c); seat != nil && seat.ID == playerID {
			s.SetSeat(c, nil)
			s.SetTurn(c, nil)
			if err := e.assign(s, c, now); err != nil {
				return err
			}
		}
	}
	return nil
}

// ConfirmReady switches the seat clock from the confirmation phase to the
// move phase with a fresh deadline.
func (e *Engine) ConfirmReady(s *models.ConsolidatedState, playerID string, now time.Time) error {
	turnColor, err := e.Turn(s)
	if err != nil {
		return err
	}
	seat := s.SeatFor(turnColor)
	if seat == nil || seat.ID != playerID {
		return ErrNotYourTurn
	}
	ts := s.TurnFor(turnColor)
	if ts == nil || ts.Status != models.TurnPendingConfirmation {
		return ErrNothingToConfirm
	}
	if now.After(ts.Deadline) {
		return ErrConfirmationExpired
	}
	s.SetTurn(turnColor, &models.TurnState{
		Status:   models.TurnConfirmed,
		Deadline: now.Add(e.cfg.MoveTimeout),
	})
	return nil
}

// ApplyMove delegates legality to the rule engine and, on success, advances
// the game, rotates the mover to the back of their own queue, reassigns the
// seat, and starts the confirmation clock for the color that now must move
// if a player is already on deck there.
func (e *Engine) ApplyMove(s *models.ConsolidatedState, playerID string, mv models.Move, now time.Time) error {
	turnColor, err := e.Turn(s)
	if err != nil {
		return err
	}
	seat := s.SeatFor(turnColor)
	if seat == nil || seat.ID != playerID {
		return ErrNotYourTurn
	}
	ts := s.TurnFor(turnColor)
	if ts == nil || ts.Status != models.TurnConfirmed {
		return ErrNotConfirmed
	}
	if now.After(ts.Deadline) {
		return ErrMoveExpired
	}

	applied, err := e.rules.Apply(s.Game.FEN, mv)
	if err != nil {
		return err
	}

	mover := *seat
	s.Game.FEN = applied.FEN
	s.Game.LastMove = &models.MoveRecord{
		UCI:      applied.UCI,
		SAN:      applied.SAN,
		Color:    turnColor,
		PlayerID: mover.ID,
	}
	s.Game.MoveHistory = append(s.Game.MoveHistory, applied.SAN)

	s.SetQueue(turnColor, append(s.QueueFor(turnColor), mover))
	s.SetSeat(turnColor, nil)
	s.SetTurn(turnColor, nil)
	if err := e.assign(s, turnColor, now); err != nil {
		return err
	}

	// The opposing seat may have been filled while it was not that color's
	// move; its confirmation clock starts exactly now.
	next, err := e.Turn(s)
	if err != nil {
		return err
	}
	if s.SeatFor(next) != nil && s.TurnFor(next) == nil {
		s.SetTurn(next, &models.TurnState{
			Status:   models.TurnPendingConfirmation,
			Deadline: now.Add(e.cfg.ConfirmTimeout),
		})
	}
	return nil
}

// ExpireStaleTurn is the lazy deadline check run on every read/mutation.
// Only the color whose move it currently is can expire. Returns true when it
// changed the state.
func (e *Engine) ExpireStaleTurn(s *models.ConsolidatedState, now time.Time) (bool, error) {
	turnColor, err := e.Turn(s)
	if err != nil {
		return false, err
	}
	seat := s.SeatFor(turnColor)
	if seat == nil {
		return false, nil
	}
	ts := s.TurnFor(turnColor)
	if ts == nil {
		// Seated with no clock at all, e.g. just promoted from on deck by a
		// remote process that crashed mid-rotation. Start one instead of
		// evicting.
		s.SetTurn(turnColor, &models.TurnState{
			Status:   models.TurnPendingConfirmation,
			Deadline: now.Add(e.cfg.ConfirmTimeout),
		})
		return true, nil
	}
	if !now.After(ts.Deadline) {
		return false, nil
	}

	// Evict. The player is removed outright; the queue simply advances.
	s.SetSeat(turnColor, nil)
	s.SetTurn(turnColor, nil)
	if err := e.assign(s, turnColor, now); err != nil {
		return false, err
	}
	return true, nil
}

// Reset restores the starting position and restarts seat clocks; queues and
// seats are untouched.
func (e *Engine) Reset(s *models.ConsolidatedState, now time.Time) error {
	s.Game = models.Game{
		FEN:         models.StartFEN,
		MoveHistory: []string{},
	}
	s.Turns = models.Turns{}
	turnColor, err := e.Turn(s)
	if err != nil {
		return err
	}
	if s.SeatFor(turnColor) != nil {
		s.SetTurn(turnColor, &models.TurnState{
			Status:   models.TurnPendingConfirmation,
			Deadline: now.Add(e.cfg.ConfirmTimeout),
		})
	}
	return nil
}

// ClearAll resets the entire record to its default, preserving only the
// version counter, which the coordinator manages.
func (e *Engine) ClearAll(s *models.ConsolidatedState) {
	fresh := models.NewState()
	fresh.Version = s.Version
	*s = *fresh
}

// KickByName removes every player whose display name matches, from queues
// and seats alike. Fails ErrPlayerNotFound when nothing matched.
func (e *Engine) KickByName(s *models.ConsolidatedState, displayName string, now time.Time) error {
	var ids []string
	for _, c := range []models.Color{models.White, models.Black} {
		for _, p := range s.QueueFor(c) {
			if p.DisplayName == displayName {
				ids = append(ids, p.ID)
			}
		}
		if seat := s.SeatFor(c); seat != nil && seat.DisplayName == displayName {
			ids = append(ids, seat.ID)
		}
	}
	if len(ids) == 0 {
		return ErrPlayerNotFound
	}
	for _, id := range ids {
		if err := e.Leave(s, id, now); err != nil {
			return err
		}
	}
	return nil
}

// assign pops the queue head into the seat for color. The confirmation clock
// starts only when it is currently that color's move; otherwise the player
// holds the seat on deck with no clock running.
func (e *Engine) assign(s *models.ConsolidatedState, color models.Color, now time.Time) error {
	q := s.QueueFor(color)
	if len(q) == 0 {
		s.SetSeat(color, nil)
		s.SetTurn(color, nil)
		return nil
	}
	head := q[0]
	s.SetQueue(color, append([]models.Player(nil), q[1:]...))
	s.SetSeat(color, &head)

	turnColor, err := e.Turn(s)
	if err != nil {
		return err
	}
	if turnColor == color {
		s.SetTurn(color, &models.TurnState{
			Status:   models.TurnPendingConfirmation,
			Deadline: now.Add(e.cfg.ConfirmTimeout),
		})
	} else {
		s.SetTurn(color, nil)
	}
	return nil
}

func removeByID(players []models.Player, id string) []models.Player {
	out := players[:0]
	for _, p := range players {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}
