package repository

import (
	"context"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
)

// DeadLetterSink receives channel sends that exhausted every retry.
// InsertMany is unordered: a failing entry does not prevent its siblings from being written.
type DeadLetterSink interface {
	InsertMany(ctx context.Context, entries []entity.DeadLetterEntry) error
}

// DeadLetterRepository is the durable dead-letter store used for out-of-band reprocessing.
type DeadLetterRepository interface {
	DeadLetterSink
	ListUnresolved(ctx context.Context, limit int) ([]entity.DeadLetterEntry, error)
	MarkResolved(ctx context.Context, orgID, notificationID string, channel entity.Channel) error

	// RecordFailure stores a failed reprocessing pass. attempts is the entry's
	// new total across every pass, not the number added by this one.
	RecordFailure(ctx context.Context, orgID, notificationID string, channel entity.Channel, attempts int, lastErr string) error
}
