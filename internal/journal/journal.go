// Package journal writes an append-only record of applied moves to Postgres.
// It is a write-behind audit/recovery aid: the consolidated record in the
// shared store remains the single unit of truth, and journal failures never
// fail the operation that triggered them.
package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/crowdchess/crowdchess/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS move_journal (
	id          BIGSERIAL PRIMARY KEY,
	version     BIGINT      NOT NULL,
	ply         INT         NOT NULL,
	color       TEXT        NOT NULL,
	player_id   TEXT        NOT NULL,
	uci         TEXT        NOT NULL,
	san         TEXT        NOT NULL,
	fen         TEXT        NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const insertMove = `
INSERT INTO move_journal (version, ply, color, player_id, uci, san, fen)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Journal records applied moves.
type Journal struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres and ensures the journal table exists.
func Open(ctx context.Context, dsn string) (*Journal, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create journal pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping journal database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure journal schema: %w", err)
	}
	log.Info().Msg("move journal connected")
	return &Journal{pool: pool}, nil
}

// RecordMove appends one applied move. ply is the 1-based half-move number.
func (j *Journal) RecordMove(ctx context.Context, version int64, ply int, mv models.MoveRecord, fen string) error {
	_, err := j.pool.Exec(ctx, insertMove,
		version, ply, string(mv.Color), mv.PlayerID, mv.UCI, mv.SAN, fen)
	if err != nil {
		return fmt.Errorf("record move: %w", err)
	}
	return nil
}

// Close releases the pool.
func (j *Journal) Close() {
	j.pool.Close()
}
