package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the schema if it does not exist yet. The partial unique
// index enforces code uniqueness only among joinable sessions, so closed
// sessions free their codes for reuse.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			code          TEXT NOT NULL,
			host_id       UUID NOT NULL,
			status        TEXT NOT NULL DEFAULT 'waiting',
			passcode_hash TEXT,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_live_code
			ON sessions (code)
			WHERE status IN ('waiting', 'active')`,
		`CREATE TABLE IF NOT EXISTS session_sequences (
			session_id UUID PRIMARY KEY,
			last_seq   BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS stroke_points (
			session_id      UUID NOT NULL,
			author_id       UUID NOT NULL,
			x               DOUBLE PRECISION NOT NULL,
			y               DOUBLE PRECISION NOT NULL,
			color           TEXT NOT NULL,
			brush_size      DOUBLE PRECISION NOT NULL,
			is_start        BOOLEAN NOT NULL,
			server_sequence BIGINT NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (session_id, server_sequence)
		)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
