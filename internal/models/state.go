package models

import (
	"time"
)

// StartFEN is the standard chess starting position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Color identifies one side of the board.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Opponent returns the other color.
func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// Valid reports whether c is one of the two known colors.
func (c Color) Valid() bool {
	return c == White || c == Black
}

// TurnStatus defines the phase of an active turn window.
type TurnStatus string

const (
	TurnPendingConfirmation TurnStatus = "pending_confirmation"
	TurnConfirmed           TurnStatus = "confirmed"
)

// Player is a queued or seated participant. Identity is opaque and
// caller-supplied; the engine enforces uniqueness across queues and seats.
type Player struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
}

// TurnState exists only for the color whose move it currently is, and only
// while a player occupies that seat. Deadlines are wall-clock timestamps
// stored in the record itself so any process can enforce them.
type TurnState struct {
	Status   TurnStatus `json:"status"`
	Deadline time.Time  `json:"deadline"`
}

// Move is a caller-supplied move in coordinate form.
type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// AppliedMove is the rule engine's result for a legal move.
type AppliedMove struct {
	FEN string
	SAN string
	UCI string
}

// MoveRecord describes the most recently applied move.
type MoveRecord struct {
	UCI      string `json:"uci"`
	SAN      string `json:"san"`
	Color    Color  `json:"color"`
	PlayerID string `json:"player_id"`
}

// Game holds the position and history. The color to move is derived from the
// FEN, never stored alongside it.
type Game struct {
	FEN         string      `json:"fen"`
	LastMove    *MoveRecord `json:"last_move,omitempty"`
	MoveHistory []string    `json:"move_history"`
}

// Queues holds the per-color FIFO waiting lines.
type Queues struct {
	White []Player `json:"white"`
	Black []Player `json:"black"`
}

// Seats holds the per-color active players.
type Seats struct {
	White *Player `json:"white,omitempty"`
	Black *Player `json:"black,omitempty"`
}

// Turns holds the per-color turn windows.
type Turns struct {
	White *TurnState `json:"white,omitempty"`
	Black *TurnState `json:"black,omitempty"`
}

// ConsolidatedState is the single unit of truth for one logical game. It is
// persisted as one record in the shared store and mutated only through the
// coordinator's read-modify-write cycle. Version increases by exactly one on
// every successful mutation.
type ConsolidatedState struct {
	Game    Game   `json:"game"`
	Queues  Queues `json:"queues"`
	Current Seats  `json:"current"`
	Turns   Turns  `json:"turns"`
	Version int64  `json:"version"`
}

// NewState returns the default record: empty queues, no seated players,
// starting position, version zero.
func NewState() *ConsolidatedState {
	return &ConsolidatedState{
		Game: Game{
			FEN:         StartFEN,
			MoveHistory: []string{},
		},
	}
}

// QueueFor returns the FIFO queue for a color.
func (s *ConsolidatedState) QueueFor(c Color) []Player {
	if c == White {
		return s.Queues.White
	}
	return s.Queues.Black
}

// SetQueue replaces the FIFO queue for a color.
func (s *ConsolidatedState) SetQueue(c Color, q []Player) {
	if c == White {
		s.Queues.White = q
	} else {
		s.Queues.Black = q
	}
}

// SeatFor returns the seated player for a color, nil when empty.
func (s *ConsolidatedState) SeatFor(c Color) *Player {
	if c == White {
		return s.Current.White
	}
	return s.Current.Black
}

// SetSeat replaces the seated player for a color.
func (s *ConsolidatedState) SetSeat(c Color, p *Player) {
	if c == White {
		s.Current.White = p
	} else {
		s.Current.Black = p
	}
}

// TurnFor returns the turn window for a color, nil when no clock is running.
func (s *ConsolidatedState) TurnFor(c Color) *TurnState {
	if c == White {
		return s.Turns.White
	}
	return s.Turns.Black
}

// SetTurn replaces the turn window for a color.
func (s *ConsolidatedState) SetTurn(c Color, t *TurnState) {
	if c == White {
		s.Turns.White = t
	} else {
		s.Turns.Black = t
	}
}

// Clone returns a deep copy sharing no memory with the receiver.
func (s *ConsolidatedState) Clone() *ConsolidatedState {
	out := *s
	out.Game.MoveHistory = append([]string(nil), s.Game.MoveHistory...)
	if s.Game.LastMove != nil {
		lm := *s.Game.LastMove
		out.Game.LastMove = &lm
	}
	out.Queues.White = append([]Player(nil), s.Queues.White...)
	out.Queues.Black = append([]Player(nil), s.Queues.Black...)
	if s.Current.White != nil {
		p := *s.Current.White
		out.Current.White = &p
	}
	if s.Current.Black != nil {
		p := *s.Current.Black
		out.Current.Black = &p
	}
	if s.Turns.White != nil {
		t := *s.Turns.White
		out.Turns.White = &t
	}
	if s.Turns.Black != nil {
		t := *s.Turns.Black
		out.Turns.Black = &t
	}
	return &out
}
