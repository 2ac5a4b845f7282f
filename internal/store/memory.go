package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/crowdchess/crowdchess/internal/models"
)

// MemoryStore implements Store in process memory. It backs tests and
// single-process deployments; the revision token and conditional-replace
// semantics match the networked backend exactly. Values are round-tripped
// through JSON so callers never share memory with the store.
type MemoryStore struct {
	mu       sync.Mutex
	state    []byte
	rev      uint64
	latest   int64
	hasProbe bool
	counters map[string]int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]int64),
	}
}

func (m *MemoryStore) GetState(ctx context.Context) (*models.ConsolidatedState, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return nil, 0, ErrNotFound
	}
	var s models.ConsolidatedState
	if err := json.Unmarshal(m.state, &s); err != nil {
		return nil, 0, fmt.Errorf("decode record: %w", err)
	}
	return &s, m.rev, nil
}

func (m *MemoryStore) PutState(ctx context.Context, s *models.ConsolidatedState, expectedRev uint64) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if expectedRev != m.rev {
		return ErrVersionConflict
	}
	if expectedRev == 0 && m.state != nil {
		return ErrVersionConflict
	}
	m.state = data
	m.rev++
	return nil
}

func (m *MemoryStore) PublishVersion(ctx context.Context, version int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = version
	m.hasProbe = true
	return nil
}

func (m *MemoryStore) LatestVersion(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasProbe {
		return 0, ErrNotFound
	}
	return m.latest, nil
}

func (m *MemoryStore) IncrCounter(ctx context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name]++
	return m.counters[name], nil
}

func (m *MemoryStore) Counter(ctx context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name], nil
}
