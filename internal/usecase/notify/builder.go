package notify

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
	"github.com/EngSayh/Fixzit-sub003/internal/i18n"
	"github.com/EngSayh/Fixzit-sub003/internal/link"
	"github.com/EngSayh/Fixzit-sub003/internal/observability/logging"
	"github.com/EngSayh/Fixzit-sub003/internal/repository"
)

const defaultPersistTimeout = 5 * time.Second

// Localizer renders the title and body for an event kind in a locale.
type Localizer interface {
	Localize(kind entity.EventKind, locale entity.Locale, params map[string]string) (i18n.Message, error)
}

// LinkBuilder resolves an entity reference to its web URL and deep link.
type LinkBuilder interface {
	Build(et link.EntityType, id, subPath string) (link.Links, error)
}

// Builder turns an event and its recipients into a pending Notification.
//
// The Localizer and LinkBuilder are called exactly once per Build. The whole
// batch is rendered in the first recipient's locale; callers with mixed-locale
// recipients should go through Service.DispatchGrouped.
type Builder struct {
	localizer      Localizer
	links          LinkBuilder
	store          repository.NotificationLogStore
	logger         *slog.Logger
	persistTimeout time.Duration
	now            func() time.Time
	wg             sync.WaitGroup
}

// NewBuilder creates a Builder. store may be nil, in which case the pending
// record is not persisted.
func NewBuilder(localizer Localizer, links LinkBuilder, store repository.NotificationLogStore, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		localizer:      localizer,
		links:          links,
		store:          store,
		logger:         logger,
		persistTimeout: defaultPersistTimeout,
		now:            time.Now,
	}
}

// TicketCreated builds the notification for a newly opened work order.
func (b *Builder) TicketCreated(ctx context.Context, orgID string, f entity.TicketCreatedFields, recipients []entity.Recipient) (*entity.Notification, error) {
	ev, err := entity.NewTicketCreated(orgID, f)
	if err != nil {
		return nil, err
	}
	return b.Build(ctx, ev, recipients)
}

// Assigned builds the notification for a work order assignment.
func (b *Builder) Assigned(ctx context.Context, orgID string, f entity.AssignedFields, recipients []entity.Recipient) (*entity.Notification, error) {
	ev, err := entity.NewAssigned(orgID, f)
	if err != nil {
		return nil, err
	}
	return b.Build(ctx, ev, recipients)
}

// ApprovalRequested builds the notification for a pending approval.
func (b *Builder) ApprovalRequested(ctx context.Context, orgID string, f entity.ApprovalRequestedFields, recipients []entity.Recipient) (*entity.Notification, error) {
	ev, err := entity.NewApprovalRequested(orgID, f)
	if err != nil {
		return nil, err
	}
	return b.Build(ctx, ev, recipients)
}

// Approved builds the notification for a granted approval.
func (b *Builder) Approved(ctx context.Context, orgID string, f entity.ApprovedFields, recipients []entity.Recipient) (*entity.Notification, error) {
	ev, err := entity.NewApproved(orgID, f)
	if err != nil {
		return nil, err
	}
	return b.Build(ctx, ev, recipients)
}

// Closed builds the notification for a closed work order.
func (b *Builder) Closed(ctx context.Context, orgID string, f entity.ClosedFields, recipients []entity.Recipient) (*entity.Notification, error) {
	ev, err := entity.NewClosed(orgID, f)
	if err != nil {
		return nil, err
	}
	return b.Build(ctx, ev, recipients)
}

// Build validates ev and recipients, renders the payload and returns a pending
// Notification with a fresh random id. The pending record is written to the
// log store in the background; a failed write is logged and never returned.
func (b *Builder) Build(ctx context.Context, ev entity.Event, recipients []entity.Recipient) (*entity.Notification, error) {
	if ev == nil {
		return nil, &entity.ValidationError{Field: "event", Message: "event is required"}
	}
	if strings.TrimSpace(ev.OrgID()) == "" {
		return nil, &entity.ValidationError{Field: "orgId", Message: "orgId is required"}
	}
	if len(recipients) == 0 {
		return nil, entity.ErrNoRecipients
	}

	p := payloadFor(ev)
	locale := recipients[0].Locale.OrDefault()

	msg, err := b.localizer.Localize(ev.Kind(), locale, p.params)
	if err != nil {
		return nil, fmt.Errorf("localize %s: %w", ev.Kind(), err)
	}
	links, err := b.links.Build(p.entityType, p.entityID, "")
	if err != nil {
		return nil, fmt.Errorf("build links for %s %q: %w", p.entityType, p.entityID, err)
	}

	n := &entity.Notification{
		ID:         uuid.NewString(),
		OrgID:      ev.OrgID(),
		Event:      ev.Kind(),
		Recipients: append([]entity.Recipient(nil), recipients...),
		Locale:     locale,
		Title:      msg.Title,
		Body:       msg.Body,
		WebURL:     links.WebURL,
		DeepLink:   links.DeepLink,
		Data: map[string]any{
			"event":      string(ev.Kind()),
			"entityType": string(p.entityType),
			"entityId":   p.entityID,
			"deepLink":   links.DeepLink,
		},
		Priority:  p.priority,
		CreatedAt: b.now().UTC(),
		Status:    entity.StatusPending,
	}

	logging.WithNotification(b.logger, n.OrgID, n.ID).DebugContext(ctx, "notification built",
		slog.String("event", string(n.Event)),
		slog.String("locale", string(n.Locale)),
		slog.Int("recipients", len(n.Recipients)))

	b.persistPending(n.Snapshot())
	return n, nil
}

// Wait blocks until every background pending write has finished.
func (b *Builder) Wait() {
	b.wg.Wait()
}

func (b *Builder) persistPending(n *entity.Notification) {
	if b.store == nil {
		return
	}
	logger := logging.WithNotification(b.logger, n.OrgID, n.ID)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic persisting pending notification",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), b.persistTimeout)
		defer cancel()

		if err := b.store.Upsert(ctx, n); err != nil {
			recordPersistenceFailure("log")
			logger.Error("failed to persist pending notification", slog.Any("error", err))
		}
	}()
}

// payload is what an event contributes to its notification.
type payload struct {
	params     map[string]string
	entityType link.EntityType
	entityID   string
	priority   entity.Priority
}

func payloadFor(ev entity.Event) payload {
	v := &payloadVisitor{}
	entity.Visit(ev, v)
	return v.p
}

// payloadVisitor maps each event variant to its template params, link target
// and priority. Params carry only the variant's own fields.
type payloadVisitor struct {
	p payload
}

func (v *payloadVisitor) VisitTicketCreated(e entity.TicketCreated) {
	v.p = payload{
		params: map[string]string{
			"workOrderId": e.WorkOrderID,
			"tenantName":  e.TenantName,
			"priority":    e.Priority,
		},
		entityType: link.EntityWorkOrder,
		entityID:   e.WorkOrderID,
		priority:   entity.PriorityHigh,
	}
}

func (v *payloadVisitor) VisitAssigned(e entity.Assigned) {
	v.p = payload{
		params: map[string]string{
			"workOrderId":    e.WorkOrderID,
			"technicianName": e.TechnicianName,
		},
		entityType: link.EntityWorkOrder,
		entityID:   e.WorkOrderID,
		priority:   entity.PriorityHigh,
	}
}

func (v *payloadVisitor) VisitApprovalRequested(e entity.ApprovalRequested) {
	v.p = payload{
		params: map[string]string{
			"approvalId":    e.ApprovalID,
			"requesterName": e.RequesterName,
			"amount":        e.Amount,
		},
		entityType: link.EntityApproval,
		entityID:   e.ApprovalID,
		priority:   entity.PriorityHigh,
	}
}

func (v *payloadVisitor) VisitApproved(e entity.Approved) {
	v.p = payload{
		params: map[string]string{
			"approvalId":   e.ApprovalID,
			"approverName": e.ApproverName,
		},
		entityType: link.EntityApproval,
		entityID:   e.ApprovalID,
		priority:   entity.PriorityNormal,
	}
}

func (v *payloadVisitor) VisitClosed(e entity.Closed) {
	v.p = payload{
		params: map[string]string{
			"workOrderId": e.WorkOrderID,
			"closedBy":    e.ClosedBy,
		},
		entityType: link.EntityWorkOrder,
		entityID:   e.WorkOrderID,
		priority:   entity.PriorityNormal,
	}
}
