package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied on every start; each statement must be idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS fulfillments (
		payment_intent_id TEXT PRIMARY KEY,
		status            TEXT NOT NULL,
		amount            BIGINT NOT NULL,
		currency          TEXT NOT NULL,
		business_name     TEXT NOT NULL DEFAULT '',
		email             TEXT NOT NULL DEFAULT '',
		monthly_plan      INTEGER NOT NULL DEFAULT 0,
		last_event_id     TEXT NOT NULL DEFAULT '',
		failure_message   TEXT NOT NULL DEFAULT '',
		flagged           BOOLEAN NOT NULL DEFAULT FALSE,
		flag_reason       TEXT NOT NULL DEFAULT '',
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS fulfillments_status_created_idx ON fulfillments (status, created_at)`,
}

// Migrate creates the tables the service needs
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
