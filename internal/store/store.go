// Package store defines the shared-store contract the coordinator mutates
// through. The vocabulary is deliberately small: get, conditional replace,
// atomic counter increment, and a short-lived latest-version key. No
// multi-key transactions or server-side scripting are assumed.
package store

import (
	"context"
	"errors"

	"github.com/crowdchess/crowdchess/internal/models"
)

// ErrNotFound is returned when the record (or probe key) does not exist yet.
var ErrNotFound = errors.New("record not found")

// ErrVersionConflict is returned by PutState when the record changed since
// the revision the caller observed. The caller re-reads and retries.
var ErrVersionConflict = errors.New("version conflict")

// Store is the adapter over the external key-value store. All
// implementations must be safe for concurrent use.
type Store interface {
	// GetState returns the consolidated record and the store's revision
	// token for it. Returns ErrNotFound when the record has never been
	// written.
	GetState(ctx context.Context) (*models.ConsolidatedState, uint64, error)

	// PutState replaces the record, conditioned on expectedRev still being
	// the current revision. Pass expectedRev zero to create the record;
	// creation of an already-existing record is also ErrVersionConflict.
	PutState(ctx context.Context, s *models.ConsolidatedState, expectedRev uint64) error

	// PublishVersion writes the latest record version under a short-expiry
	// key so other processes can detect activity without reading the full
	// record.
	PublishVersion(ctx context.Context, version int64) error

	// LatestVersion reads the published version. ErrNotFound when the probe
	// key expired or was never written.
	LatestVersion(ctx context.Context) (int64, error)

	// IncrCounter atomically increments a named counter and returns the new
	// value.
	IncrCounter(ctx context.Context, name string) (int64, error)

	// Counter reads a named counter, zero when absent.
	Counter(ctx context.Context, name string) (int64, error)
}
