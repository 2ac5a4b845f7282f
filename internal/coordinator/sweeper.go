package coordinator

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/crowdchess/crowdchess/internal/models"
)

// StateSource yields the current record without store traffic; in the server
// this is the local cache.
type StateSource interface {
	Get(ctx context.Context) (*models.ConsolidatedState, error)
}

// SweeperConfig tunes the background deadline loop.
type SweeperConfig struct {
	// IdlePoll is how often to re-check when no deadline is stored.
	IdlePoll time.Duration
	// RetryDelay is the wait after a failed sweep or state read.
	RetryDelay time.Duration
}

// DefaultSweeperConfig returns the shipped settings.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		IdlePoll:   5 * time.Second,
		RetryDelay: time.Second,
	}
}

// Sweeper enforces stored deadlines promptly instead of waiting for the next
// operation to touch the record. It is an optional promptness aid: lazy
// expiry inside every mutation keeps the system correct without it.
type Sweeper struct {
	coord     *Coordinator
	source    StateSource
	clock     clockwork.Clock
	cfg       SweeperConfig
	wakeCh    chan struct{}
	onExpired func(s *models.ConsolidatedState)
}

// NewSweeper creates a sweeper. onExpired runs after every sweep that evicted
// or re-clocked a seat, so the caller can refresh its cache and notify
// observers.
func NewSweeper(coord *Coordinator, source StateSource, clock clockwork.Clock, cfg SweeperConfig, onExpired func(*models.ConsolidatedState)) *Sweeper {
	return &Sweeper{
		coord:     coord,
		source:    source,
		clock:     clock,
		cfg:       cfg,
		wakeCh:    make(chan struct{}, 1),
		onExpired: onExpired,
	}
}

// Wake nudges the loop to re-read deadlines, e.g. after a local mutation that
// may have produced a sooner one.
func (w *Sweeper) Wake() {
	select {
	case w.wakeCh <- struct{}{}:
	default:
	}
}

// Run loops until ctx is done, sleeping until the next stored deadline and
// firing an expiry-only mutation when it passes.
func (w *Sweeper) Run(ctx context.Context) error {
	log.Info().Dur("idle_poll", w.cfg.IdlePoll).Msg("deadline sweeper started")

	timer := w.clock.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-w.wakeCh:
		default:
		}

		s, err := w.source.Get(ctx)
		if err != nil {
			log.Error().Err(err).Msg("sweeper failed to read state")
			if !w.sleep(ctx, timer, w.cfg.RetryDelay) {
				return nil
			}
			continue
		}

		deadline := nextDeadline(s)
		if deadline == nil {
			// No clock running anywhere; idle until poked or poll expires.
			if !w.sleep(ctx, timer, w.cfg.IdlePoll) {
				return nil
			}
			continue
		}

		if wait := deadline.Sub(w.clock.Now()); wait > 0 {
			timer.Reset(wait)
			select {
			case <-timer.Chan():
			case <-w.wakeCh:
				continue
			case <-ctx.Done():
				log.Info().Msg("sweeper shutting down")
				return nil
			}
		}

		swept, changed, err := w.coord.Sweep(ctx)
		if err != nil {
			log.Error().Err(err).Msg("sweep failed")
			if !w.sleep(ctx, timer, w.cfg.RetryDelay) {
				return nil
			}
			continue
		}
		if changed {
			log.Info().Int64("version", swept.Version).Msg("sweeper expired a stale turn")
			if w.onExpired != nil {
				w.onExpired(swept)
			}
			continue
		}

		// Another writer enforced the deadline first and the local record has
		// not caught up yet; back off instead of spinning on it.
		if !w.sleep(ctx, timer, w.cfg.RetryDelay) {
			return nil
		}
	}
}

// sleep waits for d, a wake, or shutdown; returns false on shutdown.
func (w *Sweeper) sleep(ctx context.Context, timer clockwork.Timer, d time.Duration) bool {
	timer.Reset(d)
	select {
	case <-timer.Chan():
		return true
	case <-w.wakeCh:
		return true
	case <-ctx.Done():
		log.Info().Msg("sweeper shutting down")
		return false
	}
}

// nextDeadline returns the single running clock's deadline. At most one turn
// window exists at a time: only the side to move carries one.
func nextDeadline(s *models.ConsolidatedState) *time.Time {
	if s.Turns.White != nil {
		d := s.Turns.White.Deadline
		return &d
	}
	if s.Turns.Black != nil {
		d := s.Turns.Black.Deadline
		return &d
	}
	return nil
}
