package cache

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/crowdchess/crowdchess/internal/models"
	"github.com/crowdchess/crowdchess/internal/store"
)

// RunProbe polls the store's lightweight latest-version key and, when another
// process has mutated the record, rehydrates and reports the fresh value
// through onRemote so local observers get notified. This is the cross-process
// half of change propagation; the in-process half is the immediate push after
// a local mutation.
func (c *Cache) RunProbe(ctx context.Context, clock clockwork.Clock, interval time.Duration, onRemote func(*models.ConsolidatedState)) error {
	log.Info().Dur("interval", interval).Msg("version probe started")

	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("version probe shutting down")
			return nil
		case <-ticker.Chan():
		}

		latest, err := c.store.LatestVersion(ctx)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// Probe key expired with no recent activity anywhere.
				continue
			}
			log.Warn().Err(err).Msg("version probe read failed")
			continue
		}

		if latest <= c.Version() {
			continue
		}

		s, err := c.Rehydrate(ctx)
		if err != nil {
			log.Error().Err(err).Msg("rehydration after remote mutation failed")
			continue
		}
		log.Debug().Int64("version", s.Version).Msg("detected remote mutation")
		if onRemote != nil {
			onRemote(s)
		}
	}
}
