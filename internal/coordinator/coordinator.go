// Package coordinator wraps engine transitions in a read-modify-write cycle
// against the shared store, with bounded retry on version conflict. It is the
// only component that writes the consolidated record.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/crowdchess/crowdchess/internal/engine"
	"github.com/crowdchess/crowdchess/internal/models"
	"github.com/crowdchess/crowdchess/internal/store"
)

// maxAttempts bounds the read-modify-write cycle. A loser of a write race
// re-reads fresh state and tries again; exhausting the bound surfaces
// ErrConcurrentModification to the caller, who may retry the operation.
const maxAttempts = 3

var (
	// ErrConcurrentModification is returned when every attempt lost the
	// conditional-write race.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrStoreUnavailable is returned when the shared store could not be
	// reached within the retry bound.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Operation is one engine transition, applied to a private clone of the
// current record. A returned error is a business failure: the cycle stops
// immediately and nothing is written.
type Operation func(s *models.ConsolidatedState, now time.Time) error

// Coordinator serializes mutations of the shared record.
type Coordinator struct {
	store  store.Store
	engine *engine.Engine
	clock  clockwork.Clock
}

// New creates a coordinator.
func New(st store.Store, eng *engine.Engine, clock clockwork.Clock) *Coordinator {
	return &Coordinator{store: st, engine: eng, clock: clock}
}

// Mutate runs op under the optimistic protocol: read the record, apply the
// lazy expiry check, apply op, then write back conditioned on the revision
// observed at read time. On success the new record is returned for cache and
// broadcast propagation.
func (c *Coordinator) Mutate(ctx context.Context, op Operation) (*models.ConsolidatedState, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		now := c.clock.Now()

		s, rev, err := c.load(ctx)
		if err != nil {
			lastErr = err
			continue
		}

		if _, err := c.engine.ExpireStaleTurn(s, now); err != nil {
			return nil, err
		}
		if err := op(s, now); err != nil {
			return nil, err
		}

		s.Version++
		if err := c.store.PutState(ctx, s, rev); err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				log.Debug().Int("attempt", attempt).Msg("write conflict, re-reading")
				lastErr = ErrConcurrentModification
				continue
			}
			lastErr = fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			continue
		}

		c.publishVersion(ctx, s.Version)
		return s, nil
	}
	if lastErr == nil {
		lastErr = ErrConcurrentModification
	}
	return nil, lastErr
}

// Sweep runs the expiry check alone and writes only when it changed
// something. Used by the background sweeper; lazy expiry inside Mutate stays
// the correctness mechanism.
func (c *Coordinator) Sweep(ctx context.Context) (*models.ConsolidatedState, bool, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		now := c.clock.Now()

		s, rev, err := c.load(ctx)
		if err != nil {
			lastErr = err
			continue
		}

		changed, err := c.engine.ExpireStaleTurn(s, now)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			return s, false, nil
		}

		s.Version++
		if err := c.store.PutState(ctx, s, rev); err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				lastErr = ErrConcurrentModification
				continue
			}
			lastErr = fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			continue
		}

		c.publishVersion(ctx, s.Version)
		return s, true, nil
	}
	return nil, false, lastErr
}

// load reads the current record, seeding the default record when the store
// has never been written.
func (c *Coordinator) load(ctx context.Context) (*models.ConsolidatedState, uint64, error) {
	s, rev, err := c.store.GetState(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.NewState(), 0, nil
		}
		return nil, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return s, rev, nil
}

// publishVersion is best effort: the probe key only accelerates cross-process
// detection, it never carries correctness.
func (c *Coordinator) publishVersion(ctx context.Context, version int64) {
	if err := c.store.PublishVersion(ctx, version); err != nil {
		log.Warn().Err(err).Int64("version", version).Msg("failed to publish version probe")
	}
}
