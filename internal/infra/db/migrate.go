package db

import (
	"context"
	"database/sql"
	"fmt"
)

// MigrateUp creates the notification log and dead-letter tables.
// Both tables are keyed by org_id first so every lookup is tenant scoped.
func MigrateUp(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS notifications (
    id              TEXT NOT NULL,
    org_id          TEXT NOT NULL CHECK (org_id <> ''),
    event           VARCHAR(32) NOT NULL,
    locale          VARCHAR(8) NOT NULL DEFAULT 'en',
    title           TEXT NOT NULL,
    body            TEXT NOT NULL,
    web_url         TEXT,
    deep_link       TEXT,
    data            JSONB,
    recipients      JSONB NOT NULL,
    priority        VARCHAR(8) NOT NULL,
    status          VARCHAR(20) NOT NULL DEFAULT 'pending',
    failure_reason  TEXT,
    channel_results JSONB,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    sent_at         TIMESTAMPTZ,
    delivered_at    TIMESTAMPTZ,
    PRIMARY KEY (org_id, id)
)`); err != nil {
		return fmt.Errorf("create notifications: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS dead_letters (
    id              UUID PRIMARY KEY,
    org_id          TEXT NOT NULL CHECK (org_id <> ''),
    notification_id TEXT NOT NULL,
    channel         VARCHAR(16) NOT NULL,
    attempts        INTEGER NOT NULL,
    last_error      TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    resolved_at     TIMESTAMPTZ,
    UNIQUE (org_id, notification_id, channel)
)`); err != nil {
		return fmt.Errorf("create dead_letters: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications(status)`,
		`CREATE INDEX IF NOT EXISTS idx_dead_letters_unresolved ON dead_letters(created_at) WHERE resolved_at IS NULL`,
	}
	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	return nil
}
