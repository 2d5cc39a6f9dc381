package repository

import (
	"context"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
)

// NotificationLogStore persists notification records keyed by (orgId, notificationId).
// Upsert is idempotent: the pending write and the final outcome write target the same row.
type NotificationLogStore interface {
	Upsert(ctx context.Context, n *entity.Notification) error
	Get(ctx context.Context, orgID, id string) (*entity.Notification, error)
}
