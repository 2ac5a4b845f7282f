package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/crowdchess/crowdchess/internal/models"
)

const (
	stateKey      = "game"
	versionKey    = "game"
	counterPrefix = "counter."
)

// NATSConfig holds connection and bucket settings for the JetStream-backed
// store.
type NATSConfig struct {
	URL           string
	StateBucket   string
	VersionBucket string
	VersionTTL    time.Duration
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns the settings the server ships with.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		StateBucket:   "crowdchess-state",
		VersionBucket: "crowdchess-versions",
		VersionTTL:    15 * time.Second,
		MaxReconnects: -1, // infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATSStore implements Store on JetStream key-value buckets. The state
// bucket's per-entry revision is the conditional-replace token; the version
// bucket carries a TTL so the latest-version probe key expires on its own.
type NATSStore struct {
	nc       *nats.Conn
	state    jetstream.KeyValue
	versions jetstream.KeyValue
}

// NewNATSStore connects and ensures both buckets exist.
func NewNATSStore(ctx context.Context, cfg NATSConfig) (*NATSStore, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	state, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.StateBucket,
		Description: "crowdchess consolidated game records",
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure state bucket: %w", err)
	}

	versions, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.VersionBucket,
		Description: "crowdchess latest-version probe keys",
		TTL:         cfg.VersionTTL,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure version bucket: %w", err)
	}

	log.Info().
		Str("url", cfg.URL).
		Str("state_bucket", cfg.StateBucket).
		Str("version_bucket", cfg.VersionBucket).
		Msg("connected to shared store")

	return &NATSStore{nc: nc, state: state, versions: versions}, nil
}

func (n *NATSStore) GetState(ctx context.Context) (*models.ConsolidatedState, uint64, error) {
	entry, err := n.state.Get(ctx, stateKey)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("get record: %w", err)
	}
	var s models.ConsolidatedState
	if err := json.Unmarshal(entry.Value(), &s); err != nil {
		return nil, 0, fmt.Errorf("decode record: %w", err)
	}
	return &s, entry.Revision(), nil
}

func (n *NATSStore) PutState(ctx context.Context, s *models.ConsolidatedState, expectedRev uint64) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	if expectedRev == 0 {
		if _, err := n.state.Create(ctx, stateKey, data); err != nil {
			if errors.Is(err, jetstream.ErrKeyExists) {
				return ErrVersionConflict
			}
			return fmt.Errorf("create record: %w", err)
		}
		return nil
	}

	if _, err := n.state.Update(ctx, stateKey, data, expectedRev); err != nil {
		if isWrongRevision(err) {
			return ErrVersionConflict
		}
		return fmt.Errorf("replace record: %w", err)
	}
	return nil
}

func (n *NATSStore) PublishVersion(ctx context.Context, version int64) error {
	_, err := n.versions.Put(ctx, versionKey, []byte(strconv.FormatInt(version, 10)))
	if err != nil {
		return fmt.Errorf("publish version: %w", err)
	}
	return nil
}

func (n *NATSStore) LatestVersion(ctx context.Context) (int64, error) {
	entry, err := n.versions.Get(ctx, versionKey)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("read version probe: %w", err)
	}
	v, err := strconv.ParseInt(string(entry.Value()), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode version probe: %w", err)
	}
	return v, nil
}

// IncrCounter does an atomic increment with a bounded create/update loop;
// the KV API has no native INCR.
func (n *NATSStore) IncrCounter(ctx context.Context, name string) (int64, error) {
	key := counterPrefix + name
	for attempt := 0; attempt < 10; attempt++ {
		entry, err := n.state.Get(ctx, key)
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			if _, err := n.state.Create(ctx, key, []byte("1")); err != nil {
				if errors.Is(err, jetstream.ErrKeyExists) {
					continue
				}
				return 0, fmt.Errorf("create counter %s: %w", name, err)
			}
			return 1, nil
		}
		if err != nil {
			return 0, fmt.Errorf("get counter %s: %w", name, err)
		}

		cur, err := strconv.ParseInt(string(entry.Value()), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("decode counter %s: %w", name, err)
		}
		next := cur + 1
		if _, err := n.state.Update(ctx, key, []byte(strconv.FormatInt(next, 10)), entry.Revision()); err != nil {
			if isWrongRevision(err) {
				continue
			}
			return 0, fmt.Errorf("update counter %s: %w", name, err)
		}
		return next, nil
	}
	return 0, fmt.Errorf("increment counter %s: %w", name, ErrVersionConflict)
}

func (n *NATSStore) Counter(ctx context.Context, name string) (int64, error) {
	entry, err := n.state.Get(ctx, counterPrefix+name)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get counter %s: %w", name, err)
	}
	v, err := strconv.ParseInt(string(entry.Value()), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode counter %s: %w", name, err)
	}
	return v, nil
}

// Close tears down the NATS connection.
func (n *NATSStore) Close() {
	if n.nc != nil {
		n.nc.Close()
	}
}

func isWrongRevision(err error) bool {
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}
