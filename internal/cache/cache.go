// Package cache keeps one process-local mirror of the consolidated record.
// It hydrates from the shared store exactly once, serves all subsequent reads
// from memory, and is replaced wholesale after every mutation, whether local
// or detected remotely through the version probe.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/crowdchess/crowdchess/internal/models"
	"github.com/crowdchess/crowdchess/internal/store"
)

// Cache is safe for concurrent use. The cached value is treated as
// immutable: mutations always go through the coordinator, which works on a
// fresh read, and the cache only ever swaps the whole pointer.
type Cache struct {
	store store.Store

	mu       sync.RWMutex
	state    *models.ConsolidatedState
	hydrated bool
}

// New creates an unhydrated cache.
func New(st store.Store) *Cache {
	return &Cache{store: st}
}

// Get returns the cached record, hydrating from the store on first access.
// Callers must treat the returned value as read-only.
func (c *Cache) Get(ctx context.Context) (*models.ConsolidatedState, error) {
	c.mu.RLock()
	if c.hydrated {
		s := c.state
		c.mu.RUnlock()
		return s, nil
	}
	c.mu.RUnlock()

	return c.Rehydrate(ctx)
}

// Replace swaps the cached record for the post-mutation value returned by
// the coordinator. Never applies a partial mutation.
func (c *Cache) Replace(s *models.ConsolidatedState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// A slow replace must not roll the mirror backwards past a newer value
	// installed by the probe loop.
	if c.hydrated && c.state.Version > s.Version {
		return
	}
	c.state = s
	c.hydrated = true
}

// Rehydrate forces a full read from the shared store, for first hydration,
// remote-change detection, and administrative recovery.
func (c *Cache) Rehydrate(ctx context.Context) (*models.ConsolidatedState, error) {
	s, _, err := c.store.GetState(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s = models.NewState()
		} else {
			return nil, fmt.Errorf("hydrate cache: %w", err)
		}
	}
	c.Replace(s)
	return s, nil
}

// Version returns the cached record's version, zero when not yet hydrated.
func (c *Cache) Version() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.hydrated {
		return 0
	}
	return c.state.Version
}
