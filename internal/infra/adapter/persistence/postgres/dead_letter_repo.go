package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
	"github.com/EngSayh/Fixzit-sub003/internal/repository"
)

type DeadLetterRepo struct{ db DBTX }

func NewDeadLetterRepo(db DBTX) repository.DeadLetterRepository {
	return &DeadLetterRepo{db: db}
}

// InsertMany writes every entry independently. A failed insert is collected and
// the remaining entries are still attempted. Entries without an org id are never written.
func (repo *DeadLetterRepo) InsertMany(ctx context.Context, entries []entity.DeadLetterEntry) error {
	const query = `
INSERT INTO dead_letters (id, org_id, notification_id, channel, attempts, last_error, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (org_id, notification_id, channel) DO UPDATE SET
    attempts    = EXCLUDED.attempts,
    last_error  = EXCLUDED.last_error,
    resolved_at = NULL`

	var errs []error
	for _, e := range entries {
		if e.OrgID == "" {
			errs = append(errs, fmt.Errorf("InsertMany: notification %s channel %s: %w",
				e.NotificationID, e.Channel, entity.ErrMissingTenant))
			continue
		}
		id := e.ID
		if id == "" {
			id = uuid.NewString()
		}
		createdAt := e.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := repo.db.ExecContext(ctx, query,
			id, e.OrgID, e.NotificationID, string(e.Channel), e.Attempts, e.LastError, createdAt,
		); err != nil {
			errs = append(errs, fmt.Errorf("InsertMany: notification %s channel %s: %w",
				e.NotificationID, e.Channel, err))
		}
	}
	return errors.Join(errs...)
}

func (repo *DeadLetterRepo) ListUnresolved(ctx context.Context, limit int) ([]entity.DeadLetterEntry, error) {
	const query = `
SELECT id, org_id, notification_id, channel, attempts, last_error, created_at, resolved_at
FROM dead_letters
WHERE resolved_at IS NULL
ORDER BY created_at ASC
LIMIT $1`
	rows, err := repo.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ListUnresolved: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]entity.DeadLetterEntry, 0, limit)
	for rows.Next() {
		var (
			e       entity.DeadLetterEntry
			channel string
		)
		if err := rows.Scan(&e.ID, &e.OrgID, &e.NotificationID, &channel,
			&e.Attempts, &e.LastError, &e.CreatedAt, &e.ResolvedAt); err != nil {
			return nil, fmt.Errorf("ListUnresolved: %w", err)
		}
		e.Channel = entity.Channel(channel)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (repo *DeadLetterRepo) MarkResolved(ctx context.Context, orgID, notificationID string, channel entity.Channel) error {
	if orgID == "" {
		return fmt.Errorf("MarkResolved: %w", entity.ErrMissingTenant)
	}
	const query = `
UPDATE dead_letters SET resolved_at = $4
WHERE org_id = $1 AND notification_id = $2 AND channel = $3 AND resolved_at IS NULL`
	res, err := repo.db.ExecContext(ctx, query, orgID, notificationID, string(channel), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("MarkResolved: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkResolved: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("MarkResolved: %w", entity.ErrNotFound)
	}
	return nil
}

// RecordFailure overwrites the attempt count with the given total.
func (repo *DeadLetterRepo) RecordFailure(ctx context.Context, orgID, notificationID string, channel entity.Channel, attempts int, lastErr string) error {
	if orgID == "" {
		return fmt.Errorf("RecordFailure: %w", entity.ErrMissingTenant)
	}
	const query = `
UPDATE dead_letters SET attempts = $4, last_error = $5
WHERE org_id = $1 AND notification_id = $2 AND channel = $3`
	if _, err := repo.db.ExecContext(ctx, query, orgID, notificationID, string(channel), attempts, lastErr); err != nil {
		return fmt.Errorf("RecordFailure: %w", err)
	}
	return nil
}
