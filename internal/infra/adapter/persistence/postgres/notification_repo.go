package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
	"github.com/EngSayh/Fixzit-sub003/internal/repository"
)

type NotificationRepo struct{ db DBTX }

func NewNotificationRepo(db DBTX) repository.NotificationLogStore {
	return &NotificationRepo{db: db}
}

// Upsert writes n keyed by (org_id, id).
// The conflict branch only fires while the stored row is still pending, so a late
// pending write can never overwrite a terminal outcome.
func (repo *NotificationRepo) Upsert(ctx context.Context, n *entity.Notification) error {
	if n.OrgID == "" {
		return fmt.Errorf("Upsert: %w", entity.ErrMissingTenant)
	}
	const query = `
INSERT INTO notifications (
    id, org_id, event, locale, title, body, web_url, deep_link,
    data, recipients, priority, status, failure_reason, channel_results,
    created_at, sent_at, delivered_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (org_id, id) DO UPDATE SET
    status          = EXCLUDED.status,
    failure_reason  = EXCLUDED.failure_reason,
    channel_results = EXCLUDED.channel_results,
    sent_at         = EXCLUDED.sent_at,
    delivered_at    = EXCLUDED.delivered_at
WHERE notifications.status = 'pending'`

	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("Upsert: marshal data: %w", err)
	}
	recipients, err := json.Marshal(n.Recipients)
	if err != nil {
		return fmt.Errorf("Upsert: marshal recipients: %w", err)
	}
	results, err := json.Marshal(n.ChannelResults)
	if err != nil {
		return fmt.Errorf("Upsert: marshal channel_results: %w", err)
	}

	_, err = repo.db.ExecContext(ctx, query,
		n.ID, n.OrgID, string(n.Event), string(n.Locale), n.Title, n.Body,
		nullString(n.WebURL), nullString(n.DeepLink),
		data, recipients, string(n.Priority), string(n.Status),
		nullString(n.FailureReason), results,
		n.CreatedAt, n.SentAt, n.DeliveredAt,
	)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

func (repo *NotificationRepo) Get(ctx context.Context, orgID, id string) (*entity.Notification, error) {
	if orgID == "" {
		return nil, fmt.Errorf("Get: %w", entity.ErrMissingTenant)
	}
	const query = `
SELECT id, org_id, event, locale, title, body, web_url, deep_link,
       data, recipients, priority, status, failure_reason, channel_results,
       created_at, sent_at, delivered_at
FROM notifications
WHERE org_id = $1 AND id = $2
LIMIT 1`

	var (
		n                                 entity.Notification
		event, locale, priority, status   string
		webURL, deepLink, failureReason   sql.NullString
		dataJSON, recipientsJSON, results []byte
	)
	err := repo.db.QueryRowContext(ctx, query, orgID, id).Scan(
		&n.ID, &n.OrgID, &event, &locale, &n.Title, &n.Body, &webURL, &deepLink,
		&dataJSON, &recipientsJSON, &priority, &status, &failureReason, &results,
		&n.CreatedAt, &n.SentAt, &n.DeliveredAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("Get: %w", entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	n.Event = entity.EventKind(event)
	n.Locale = entity.Locale(locale)
	n.Priority = entity.Priority(priority)
	n.Status = entity.Status(status)
	n.WebURL = webURL.String
	n.DeepLink = deepLink.String
	n.FailureReason = failureReason.String

	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &n.Data); err != nil {
			return nil, fmt.Errorf("Get: unmarshal data: %w", err)
		}
	}
	if len(recipientsJSON) > 0 {
		if err := json.Unmarshal(recipientsJSON, &n.Recipients); err != nil {
			return nil, fmt.Errorf("Get: unmarshal recipients: %w", err)
		}
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &n.ChannelResults); err != nil {
			return nil, fmt.Errorf("Get: unmarshal channel_results: %w", err)
		}
	}
	return &n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
