package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
	"github.com/EngSayh/Fixzit-sub003/internal/usecase/notify"
)

// DefaultEventTopic carries the domain events the worker notifies on.
const DefaultEventTopic = "fixzit.events"

// ErrUnknownEventKind is returned when an envelope names no known event.
var ErrUnknownEventKind = errors.New("unknown event kind")

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventHandler builds and dispatches notifications for one event.
type EventHandler interface {
	DispatchGrouped(ctx context.Context, ev entity.Event, recipients []entity.Recipient, opts notify.DispatchOptions) ([]*entity.Notification, error)
}

// eventEnvelope is the JSON shape of a domain event message. Only the fields
// of the named kind are read.
type eventEnvelope struct {
	Kind           entity.EventKind   `json:"kind"`
	OrgID          string             `json:"orgId"`
	WorkOrderID    string             `json:"workOrderId,omitempty"`
	TenantName     string             `json:"tenantName,omitempty"`
	Priority       string             `json:"priority,omitempty"`
	TechnicianName string             `json:"technicianName,omitempty"`
	ApprovalID     string             `json:"approvalId,omitempty"`
	RequesterName  string             `json:"requesterName,omitempty"`
	Amount         string             `json:"amount,omitempty"`
	ApproverName   string             `json:"approverName,omitempty"`
	ClosedBy       string             `json:"closedBy,omitempty"`
	Description    string             `json:"description,omitempty"`
	Recipients     []entity.Recipient `json:"recipients"`
}

func (e eventEnvelope) event() (entity.Event, error) {
	switch e.Kind {
	case entity.EventTicketCreated:
		return entity.NewTicketCreated(e.OrgID, entity.TicketCreatedFields{
			WorkOrderID: e.WorkOrderID, TenantName: e.TenantName, Priority: e.Priority, Description: e.Description,
		})
	case entity.EventAssigned:
		return entity.NewAssigned(e.OrgID, entity.AssignedFields{
			WorkOrderID: e.WorkOrderID, TechnicianName: e.TechnicianName, Description: e.Description,
		})
	case entity.EventApprovalRequested:
		return entity.NewApprovalRequested(e.OrgID, entity.ApprovalRequestedFields{
			ApprovalID: e.ApprovalID, RequesterName: e.RequesterName, Amount: e.Amount, Description: e.Description,
		})
	case entity.EventApproved:
		return entity.NewApproved(e.OrgID, entity.ApprovedFields{
			ApprovalID: e.ApprovalID, ApproverName: e.ApproverName, Description: e.Description,
		})
	case entity.EventClosed:
		return entity.NewClosed(e.OrgID, entity.ClosedFields{
			WorkOrderID: e.WorkOrderID, ClosedBy: e.ClosedBy, Description: e.Description,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventKind, e.Kind)
	}
}

// EventConsumer reads domain events from Kafka and hands them to an
// EventHandler. Each event is dispatched to completion before its offset is
// committed, so a crash mid-dispatch redelivers it.
type EventConsumer struct {
	reader  messageReader
	handler EventHandler
	logger  *slog.Logger
}

// NewEventConsumer creates a consumer in groupID reading topic.
func NewEventConsumer(brokers []string, topic, groupID string, handler EventHandler, logger *slog.Logger) *EventConsumer {
	if topic == "" {
		topic = DefaultEventTopic
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return newEventConsumer(r, handler, logger)
}

func newEventConsumer(r messageReader, handler EventHandler, logger *slog.Logger) *EventConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventConsumer{reader: r, handler: handler, logger: logger}
}

// Run consumes until ctx is cancelled, which returns nil.
func (c *EventConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch event: %w", err)
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit event offset %d: %w", msg.Offset, err)
		}
	}
}

// handle never fails the loop: malformed events are logged and skipped.
func (c *EventConsumer) handle(ctx context.Context, msg kafka.Message) {
	logger := c.logger.With(
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset))

	var env eventEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		logger.WarnContext(ctx, "malformed event skipped", slog.Any("error", err))
		return
	}
	ev, err := env.event()
	if err != nil {
		logger.WarnContext(ctx, "invalid event skipped",
			slog.String("kind", string(env.Kind)),
			slog.Any("error", err))
		return
	}

	notifications, err := c.handler.DispatchGrouped(ctx, ev, env.Recipients, notify.DispatchOptions{Mode: notify.ModeAwait})
	if err != nil {
		logger.WarnContext(ctx, "event not fully dispatched",
			slog.String("kind", string(env.Kind)),
			slog.String("org_id", env.OrgID),
			slog.Int("notifications", len(notifications)),
			slog.Any("error", err))
		return
	}
	logger.DebugContext(ctx, "event dispatched",
		slog.String("kind", string(env.Kind)),
		slog.String("org_id", env.OrgID),
		slog.Int("notifications", len(notifications)))
}

// Close closes the underlying reader.
func (c *EventConsumer) Close() error {
	return c.reader.Close()
}
