// Package rules adapts a commodity chess rule engine to the pure
// apply(fen, move) contract the turn-queue engine consumes. It owns no game
// state; legality and position arithmetic are fully delegated.
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notnil/chess"

	"github.com/crowdchess/crowdchess/internal/models"
)

// ErrIllegalMove is returned for any move the rule engine rejects in the
// given position. The caller must not change state when it sees this.
var ErrIllegalMove = errors.New("illegal move")

// Engine is a stateless adapter over notnil/chess.
type Engine struct{}

// New returns a rule engine adapter.
func New() Engine {
	return Engine{}
}

// SideToMove derives the color to move from the position encoding alone.
func (Engine) SideToMove(fen string) (models.Color, error) {
	fields := strings.Fields(fen)
	if len(fields) < 2 {
		return "", fmt.Errorf("malformed fen %q", fen)
	}
	switch fields[1] {
	case "w":
		return models.White, nil
	case "b":
		return models.Black, nil
	default:
		return "", fmt.Errorf("malformed fen side-to-move %q", fields[1])
	}
}

// Apply validates mv against the position in fen and returns the successor
// position plus both notations of the move. Returns ErrIllegalMove without
// side effects when the move is not legal.
func (Engine) Apply(fen string, mv models.Move) (models.AppliedMove, error) {
	fenOpt, err := chess.FEN(fen)
	if err != nil {
		return models.AppliedMove{}, fmt.Errorf("parse fen: %w", err)
	}
	game := chess.NewGame(fenOpt)
	pos := game.Position()

	uci := mv.From + mv.To + strings.ToLower(mv.Promotion)
	move, err := chess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return models.AppliedMove{}, ErrIllegalMove
	}
	san := chess.AlgebraicNotation{}.Encode(pos, move)
	if err := game.Move(move); err != nil {
		return models.AppliedMove{}, ErrIllegalMove
	}

	return models.AppliedMove{
		FEN: game.Position().String(),
		SAN: san,
		UCI: uci,
	}, nil
}
