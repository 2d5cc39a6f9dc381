package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
	"github.com/EngSayh/Fixzit-sub003/internal/observability/logging"
	"github.com/EngSayh/Fixzit-sub003/internal/repository"
)

// Redeliverer re-sends one channel of a stored notification.
type Redeliverer interface {
	Redeliver(ctx context.Context, n *entity.Notification, ch entity.Channel, maxAttempts int) (entity.ChannelDispatchResult, error)
}

// ReprocessStats summarizes one reprocessing run.
type ReprocessStats struct {
	Listed   int
	Resolved int
	Failed   int
	Skipped  int
}

// Reprocessor retries unresolved dead-letter entries out of band.
type Reprocessor struct {
	dlq         repository.DeadLetterRepository
	store       repository.NotificationLogStore
	redeliverer Redeliverer
	logger      *slog.Logger
	batchSize   int
	maxAttempts int
}

// NewReprocessor creates a Reprocessor that handles at most batchSize entries
// per run and gives each entry maxAttempts sends.
func NewReprocessor(dlq repository.DeadLetterRepository, store repository.NotificationLogStore, redeliverer Redeliverer, logger *slog.Logger, batchSize, maxAttempts int) *Reprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxRetries
	}
	return &Reprocessor{
		dlq:         dlq,
		store:       store,
		redeliverer: redeliverer,
		logger:      logger,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
	}
}

// Run lists one batch of unresolved entries and re-sends each of them.
// A successful send resolves the entry; a failed one records the new attempt
// count and error. Only a failure to list the batch is returned.
func (r *Reprocessor) Run(ctx context.Context) (ReprocessStats, error) {
	var stats ReprocessStats

	entries, err := r.dlq.ListUnresolved(ctx, r.batchSize)
	if err != nil {
		return stats, fmt.Errorf("list unresolved dead letters: %w", err)
	}
	stats.Listed = len(entries)

	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		switch r.reprocess(ctx, e) {
		case "resolved":
			stats.Resolved++
		case "failed":
			stats.Failed++
		default:
			stats.Skipped++
		}
	}

	r.logger.InfoContext(ctx, "dead letter reprocessing finished",
		slog.Int("listed", stats.Listed),
		slog.Int("resolved", stats.Resolved),
		slog.Int("failed", stats.Failed),
		slog.Int("skipped", stats.Skipped))
	return stats, nil
}

func (r *Reprocessor) reprocess(ctx context.Context, e entity.DeadLetterEntry) (outcome string) {
	defer func() { recordReprocessed(outcome) }()

	if strings.TrimSpace(e.OrgID) == "" {
		recordTenantDrop("reprocess")
		logging.Critical(ctx, r.logger, "dead letter without org id skipped",
			slog.String("notification_id", e.NotificationID),
			slog.String("channel", string(e.Channel)))
		return "skipped"
	}

	logger := logging.WithNotification(r.logger, e.OrgID, e.NotificationID).
		With(slog.String("channel", string(e.Channel)))

	n, err := r.store.Get(ctx, e.OrgID, e.NotificationID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			logger.WarnContext(ctx, "dead letter references unknown notification")
		} else {
			logger.ErrorContext(ctx, "failed to load notification for dead letter", slog.Any("error", err))
		}
		return "skipped"
	}

	res, err := r.redeliverer.Redeliver(ctx, n, e.Channel, r.maxAttempts)
	if err != nil {
		logger.WarnContext(ctx, "dead letter cannot be redelivered", slog.Any("error", err))
		return "skipped"
	}

	if res.Outcome == entity.OutcomeSent {
		if err := r.dlq.MarkResolved(ctx, e.OrgID, e.NotificationID, e.Channel); err != nil {
			recordPersistenceFailure("dead_letter")
			logger.ErrorContext(ctx, "failed to mark dead letter resolved", slog.Any("error", err))
		}
		logger.InfoContext(ctx, "dead letter redelivered", slog.Int("attempts", res.Attempts))
		return "resolved"
	}

	total := e.Attempts + res.Attempts
	if err := r.dlq.RecordFailure(ctx, e.OrgID, e.NotificationID, e.Channel, total, res.Error); err != nil {
		recordPersistenceFailure("dead_letter")
		logger.ErrorContext(ctx, "failed to record dead letter failure", slog.Any("error", err))
	}
	logger.WarnContext(ctx, "dead letter redelivery failed",
		slog.Int("total_attempts", total),
		slog.String("error", res.Error))
	return "failed"
}
