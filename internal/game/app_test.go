package game

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/crowdchess/crowdchess/internal/cache"
	"github.com/crowdchess/crowdchess/internal/coordinator"
	"github.com/crowdchess/crowdchess/internal/engine"
	"github.com/crowdchess/crowdchess/internal/models"
	"github.com/crowdchess/crowdchess/internal/rules"
	"github.com/crowdchess/crowdchess/internal/store"
)

type fakeHub struct {
	mu       sync.Mutex
	versions []int64
}

func (f *fakeHub) Broadcast(version int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versions = append(f.versions, version)
}

func (f *fakeHub) last() (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.versions) == 0 {
		return 0, false
	}
	return f.versions[len(f.versions)-1], true
}

type fixture struct {
	app   *App
	hub   *fakeHub
	store *store.MemoryStore
	cache *cache.Cache
	clock *clockwork.FakeClock
}

func newFixture(adminToken string) *fixture {
	mem := store.NewMemoryStore()
	clock := clockwork.NewFakeClock()
	eng := engine.New(rules.New(), engine.DefaultConfig())
	coord := coordinator.New(mem, eng, clock)
	c := cache.New(mem)
	hub := &fakeHub{}
	return &fixture{
		app:   NewApp(coord, eng, c, mem, hub, nil, nil, adminToken),
		hub:   hub,
		store: mem,
		cache: c,
		clock: clock,
	}
}

func TestJoinPropagates(t *testing.T) {
	ctx := context.Background()
	f := newFixture("")

	s, err := f.app.Join(ctx, "alice", "Alice", models.White)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if s.Version != 1 {
		t.Fatalf("expected version 1, got %d", s.Version)
	}
	if v, ok := f.hub.last(); !ok || v != 1 {
		t.Fatalf("expected broadcast of version 1, got %d, %v", v, ok)
	}
	if f.cache.Version() != 1 {
		t.Fatalf("expected cache at version 1, got %d", f.cache.Version())
	}
}

func TestMoveFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture("")

	if _, err := f.app.Join(ctx, "alice", "Alice", models.White); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if _, err := f.app.ConfirmReady(ctx, "alice"); err != nil {
		t.Fatalf("ConfirmReady: %v", err)
	}
	s, err := f.app.Move(ctx, "alice", models.Move{From: "e2", To: "e4"})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if s.Game.LastMove == nil || s.Game.LastMove.SAN != "e4" {
		t.Fatalf("expected last move e4, got %+v", s.Game.LastMove)
	}

	stats, err := f.app.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["moves_total"] != 1 {
		t.Fatalf("expected moves_total 1, got %d", stats["moves_total"])
	}
	if stats["version"] != s.Version {
		t.Fatalf("expected cached version %d, got %d", s.Version, stats["version"])
	}
}

func TestViewAnonymizesOtherPlayers(t *testing.T) {
	ctx := context.Background()
	f := newFixture("")

	if _, err := f.app.Join(ctx, "alice", "Alice", models.White); err != nil {
		t.Fatalf("Join alice: %v", err)
	}
	if _, err := f.app.Join(ctx, "bob", "Bob", models.Black); err != nil {
		t.Fatalf("Join bob: %v", err)
	}

	v, err := f.app.View(ctx, "alice")
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if v.Turn != models.White {
		t.Fatalf("expected white to move, got %s", v.Turn)
	}
	if v.White.Player.ID != "alice" {
		t.Fatalf("viewer must see their own id, got %s", v.White.Player.ID)
	}
	if v.Black.Player.ID == "bob" {
		t.Fatal("other player ids must be anonymized")
	}

	anon, err := f.app.View(ctx, "")
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if anon.White.Player.ID == "alice" || anon.Black.Player.ID == "bob" {
		t.Fatal("anonymous viewer must see no real ids")
	}
}

func TestAdminAuthorization(t *testing.T) {
	ctx := context.Background()

	t.Run("no credential configured disables the admin surface", func(t *testing.T) {
		f := newFixture("")
		if _, err := f.app.Reset(ctx, ""); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("wrong token is rejected", func(t *testing.T) {
		f := newFixture("secret")
		if _, err := f.app.Reset(ctx, "wrong"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("valid token runs the operation", func(t *testing.T) {
		f := newFixture("secret")
		if _, err := f.app.Join(ctx, "alice", "Alice", models.White); err != nil {
			t.Fatalf("Join: %v", err)
		}
		s, err := f.app.ClearAll(ctx, "secret")
		if err != nil {
			t.Fatalf("ClearAll: %v", err)
		}
		if s.Current.White != nil {
			t.Fatalf("expected cleared record, got %+v", s.Current.White)
		}

		stats, err := f.app.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if stats["resets_total"] != 0 {
			t.Fatalf("clear must not count as reset, got %d", stats["resets_total"])
		}
	})
}

func TestOnSweepRefreshesCacheAndNotifies(t *testing.T) {
	ctx := context.Background()
	f := newFixture("")

	if _, err := f.app.Join(ctx, "alice", "Alice", models.White); err != nil {
		t.Fatalf("Join: %v", err)
	}

	swept := models.NewState()
	swept.Version = 2
	f.app.OnSweep(swept)

	if f.cache.Version() != 2 {
		t.Fatalf("expected cache at swept version 2, got %d", f.cache.Version())
	}
	if v, ok := f.hub.last(); !ok || v != 2 {
		t.Fatalf("expected broadcast of version 2, got %d, %v", v, ok)
	}
}
