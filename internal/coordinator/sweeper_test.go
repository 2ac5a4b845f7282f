package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/crowdchess/crowdchess/internal/cache"
	"github.com/crowdchess/crowdchess/internal/engine"
	"github.com/crowdchess/crowdchess/internal/models"
	"github.com/crowdchess/crowdchess/internal/rules"
	"github.com/crowdchess/crowdchess/internal/store"
)

func TestSweeperEnforcesStaleDeadline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mem := store.NewMemoryStore()
	clock := clockwork.NewFakeClock()
	eng := engine.New(rules.New(), engine.DefaultConfig())
	coord := New(mem, eng, clock)
	c := cache.New(mem)

	s, err := coord.Mutate(ctx, joinOp(eng, alice, models.White))
	if err != nil {
		t.Fatalf("seed join: %v", err)
	}
	c.Replace(s)

	// The confirmation window lapses before the sweeper starts, so its first
	// pass must enforce it without any timer wait.
	clock.Advance(engine.DefaultConfig().ConfirmTimeout + time.Second)

	expired := make(chan *models.ConsolidatedState, 1)
	sweeper := NewSweeper(coord, c, clock, DefaultSweeperConfig(), func(s *models.ConsolidatedState) {
		c.Replace(s)
		expired <- s
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sweeper.Run(ctx)
	}()

	select {
	case swept := <-expired:
		if swept.Current.White != nil {
			t.Fatalf("expected seat evicted, got %+v", swept.Current.White)
		}
		if swept.Version != 2 {
			t.Fatalf("expected version 2 after sweep, got %d", swept.Version)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the sweeper to enforce the deadline")
	}

	stored, _, err := mem.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if stored.Current.White != nil {
		t.Fatal("eviction was not persisted")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not shut down")
	}
}

func TestSweeperWakeIsNonBlocking(t *testing.T) {
	sweeper := NewSweeper(nil, nil, clockwork.NewFakeClock(), DefaultSweeperConfig(), nil)
	// Repeated wakes without a running loop must never block.
	for range 5 {
		sweeper.Wake()
	}
}
