package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/crowdchess/crowdchess/internal/models"
)

func TestSideToMove(t *testing.T) {
	e := New()

	t.Run("start position", func(t *testing.T) {
		c, err := e.SideToMove(models.StartFEN)
		if err != nil {
			t.Fatalf("SideToMove: %v", err)
		}
		if c != models.White {
			t.Fatalf("expected white, got %s", c)
		}
	})

	t.Run("black to move", func(t *testing.T) {
		c, err := e.SideToMove("rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1")
		if err != nil {
			t.Fatalf("SideToMove: %v", err)
		}
		if c != models.Black {
			t.Fatalf("expected black, got %s", c)
		}
	})

	t.Run("malformed fen", func(t *testing.T) {
		if _, err := e.SideToMove("garbage"); err == nil {
			t.Fatal("expected error for malformed fen")
		}
	})
}

func TestApply(t *testing.T) {
	e := New()

	t.Run("legal opening move", func(t *testing.T) {
		applied, err := e.Apply(models.StartFEN, models.Move{From: "e2", To: "e4"})
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if applied.SAN != "e4" {
			t.Fatalf("expected SAN e4, got %s", applied.SAN)
		}
		if applied.UCI != "e2e4" {
			t.Fatalf("expected UCI e2e4, got %s", applied.UCI)
		}
		if !strings.Contains(applied.FEN, " b ") {
			t.Fatalf("expected black to move in successor fen, got %s", applied.FEN)
		}
	})

	t.Run("illegal move", func(t *testing.T) {
		_, err := e.Apply(models.StartFEN, models.Move{From: "e2", To: "e5"})
		if !errors.Is(err, ErrIllegalMove) {
			t.Fatalf("expected ErrIllegalMove, got %v", err)
		}
	})

	t.Run("moving the wrong color is illegal", func(t *testing.T) {
		_, err := e.Apply(models.StartFEN, models.Move{From: "e7", To: "e5"})
		if !errors.Is(err, ErrIllegalMove) {
			t.Fatalf("expected ErrIllegalMove, got %v", err)
		}
	})

	t.Run("promotion carries the piece suffix", func(t *testing.T) {
		fen := "8/P7/8/8/8/8/7k/K7 w - - 0 1"
		applied, err := e.Apply(fen, models.Move{From: "a7", To: "a8", Promotion: "q"})
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if applied.UCI != "a7a8q" {
			t.Fatalf("expected UCI a7a8q, got %s", applied.UCI)
		}
		if !strings.HasPrefix(applied.SAN, "a8=Q") {
			t.Fatalf("expected promotion SAN, got %s", applied.SAN)
		}
	})
}
