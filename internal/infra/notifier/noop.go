package notifier

import (
	"context"
	"log/slog"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
	"github.com/EngSayh/Fixzit-sub003/internal/usecase/notify"
)

// NoOpSender accepts every message and only logs it. It stands in for a
// provider in dry-run deployments so the rest of the pipeline runs unchanged.
type NoOpSender struct {
	channel entity.Channel
	logger  *slog.Logger
}

// NewNoOpSender creates a NoOpSender for ch.
func NewNoOpSender(ch entity.Channel, logger *slog.Logger) *NoOpSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoOpSender{channel: ch, logger: logger}
}

// Channel implements notify.Sender.
func (n *NoOpSender) Channel() entity.Channel { return n.channel }

// Send implements notify.Sender.
func (n *NoOpSender) Send(ctx context.Context, msg notify.Message, recipients []entity.Recipient) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.logger.InfoContext(ctx, "dry run: notification not sent",
		slog.String("channel", string(n.channel)),
		slog.String("notification_id", msg.NotificationID),
		slog.String("title", msg.Title),
		slog.Int("recipients", len(recipients)))
	return nil
}
