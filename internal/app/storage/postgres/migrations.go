package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations are applied in order on startup. Each statement is idempotent so
// Apply can run against an already-migrated database.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS bridge_locks (
		id BIGSERIAL PRIMARY KEY,
		asset TEXT NOT NULL,
		owner_address TEXT NOT NULL,
		amount NUMERIC(20,0) NOT NULL CHECK (amount > 0),
		released BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		released_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bridge_locks_released ON bridge_locks (released)`,
	`CREATE TABLE IF NOT EXISTS bridge_events (
		id UUID PRIMARY KEY,
		event_type TEXT NOT NULL,
		lock_id BIGINT,
		asset TEXT NOT NULL,
		account TEXT NOT NULL,
		amount NUMERIC(20,0) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bridge_events_created_at ON bridge_events (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_bridge_events_type ON bridge_events (event_type)`,
}

// Apply runs all schema migrations against db.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
