package models

import (
	"testing"
	"time"
)

func sampleState() *ConsolidatedState {
	joined := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewState()
	s.Version = 12
	s.Current.White = &Player{ID: "alice", DisplayName: "Alice", JoinedAt: joined}
	s.Current.Black = &Player{ID: "bob", DisplayName: "Bob", JoinedAt: joined}
	s.Turns.White = &TurnState{Status: TurnPendingConfirmation, Deadline: joined.Add(30 * time.Second)}
	s.Queues.White = []Player{{ID: "carol", DisplayName: "Carol", JoinedAt: joined}}
	s.Game.MoveHistory = []string{"e4", "e5"}
	s.Game.LastMove = &MoveRecord{UCI: "e7e5", SAN: "e5", Color: Black, PlayerID: "bob"}
	return s
}

func TestDeriveView(t *testing.T) {
	s := sampleState()
	v := DeriveView(s, White)

	if v.Version != 12 || v.Turn != White || v.FEN != s.Game.FEN {
		t.Fatalf("unexpected header fields: %+v", v)
	}
	if v.White.Player == nil || v.White.Player.ID != "alice" {
		t.Fatalf("expected alice at white, got %+v", v.White.Player)
	}
	if v.White.Turn == nil || v.White.Turn.Status != TurnPendingConfirmation {
		t.Fatalf("expected white turn window, got %+v", v.White.Turn)
	}
	if v.Black.Turn != nil {
		t.Fatalf("expected no black turn window, got %+v", v.Black.Turn)
	}
	if len(v.WhiteQueue) != 1 || v.WhiteQueue[0].ID != "carol" {
		t.Fatalf("expected [carol] queued, got %+v", v.WhiteQueue)
	}
	if v.LastMove == nil || v.LastMove.SAN != "e5" {
		t.Fatalf("expected last move e5, got %+v", v.LastMove)
	}

	// The view must not alias the record.
	v.MoveHistory[0] = "mutated"
	v.LastMove.SAN = "mutated"
	if s.Game.MoveHistory[0] != "e4" || s.Game.LastMove.SAN != "e5" {
		t.Fatal("view mutation leaked into the record")
	}
}

func TestAnonymizedFor(t *testing.T) {
	v := DeriveView(sampleState(), White)

	t.Run("viewer keeps their own id, others are tokenized", func(t *testing.T) {
		a := v.AnonymizedFor("alice")

		if a.White.Player.ID != "alice" {
			t.Fatalf("viewer's own id must pass through, got %s", a.White.Player.ID)
		}
		if a.Black.Player.ID == "bob" {
			t.Fatal("other player's id must be replaced")
		}
		if a.WhiteQueue[0].ID == "carol" {
			t.Fatal("queued player's id must be replaced")
		}
		if a.LastMove.PlayerID == "bob" {
			t.Fatal("last-move player id must be replaced")
		}
		// Display names stay readable.
		if a.Black.Player.DisplayName != "Bob" {
			t.Fatalf("display name must survive, got %s", a.Black.Player.DisplayName)
		}
	})

	t.Run("tokens are stable across views", func(t *testing.T) {
		a1 := v.AnonymizedFor("alice")
		a2 := v.AnonymizedFor("carol")
		if a1.Black.Player.ID != a2.Black.Player.ID {
			t.Fatal("the same player must map to the same token for every viewer")
		}
	})

	t.Run("anonymizing never mutates the source view", func(t *testing.T) {
		_ = v.AnonymizedFor("nobody")
		if v.Black.Player.ID != "bob" || v.WhiteQueue[0].ID != "carol" {
			t.Fatal("anonymization mutated the source view")
		}
	})
}

func TestAnonymize(t *testing.T) {
	t.Run("deterministic and distinct from the source", func(t *testing.T) {
		tok := Anonymize("alice", "viewer")
		if tok == "alice" || tok == "" {
			t.Fatalf("expected opaque token, got %q", tok)
		}
		if again := Anonymize("alice", "viewer"); again != tok {
			t.Fatalf("expected stable token, got %q then %q", tok, again)
		}
	})

	t.Run("distinct ids map to distinct tokens", func(t *testing.T) {
		if Anonymize("alice", "") == Anonymize("bob", "") {
			t.Fatal("token collision between distinct ids")
		}
	})

	t.Run("viewer match passes through", func(t *testing.T) {
		if got := Anonymize("alice", "alice"); got != "alice" {
			t.Fatalf("expected passthrough, got %q", got)
		}
	})
}

func TestClone(t *testing.T) {
	s := sampleState()
	c := s.Clone()

	c.Current.White.ID = "mutated"
	c.Queues.White[0].ID = "mutated"
	c.Game.MoveHistory[0] = "mutated"
	c.Turns.White.Status = TurnConfirmed
	c.Game.LastMove.SAN = "mutated"

	if s.Current.White.ID != "alice" {
		t.Fatal("clone shares the seat pointer")
	}
	if s.Queues.White[0].ID != "carol" {
		t.Fatal("clone shares the queue backing array")
	}
	if s.Game.MoveHistory[0] != "e4" {
		t.Fatal("clone shares the history backing array")
	}
	if s.Turns.White.Status != TurnPendingConfirmation {
		t.Fatal("clone shares the turn pointer")
	}
	if s.Game.LastMove.SAN != "e5" {
		t.Fatal("clone shares the last-move pointer")
	}
}

func TestStateAccessors(t *testing.T) {
	s := NewState()
	p := Player{ID: "p", DisplayName: "P"}

	s.SetSeat(Black, &p)
	if got := s.SeatFor(Black); got == nil || got.ID != "p" {
		t.Fatalf("SeatFor(Black) = %+v", got)
	}
	s.SetQueue(White, []Player{p})
	if got := s.QueueFor(White); len(got) != 1 {
		t.Fatalf("QueueFor(White) = %+v", got)
	}
	s.SetTurn(Black, &TurnState{Status: TurnConfirmed})
	if got := s.TurnFor(Black); got == nil || got.Status != TurnConfirmed {
		t.Fatalf("TurnFor(Black) = %+v", got)
	}

	if White.Opponent() != Black || Black.Opponent() != White {
		t.Fatal("Opponent mapping broken")
	}
	if !White.Valid() || Color("red").Valid() {
		t.Fatal("Valid mapping broken")
	}
}
