package entity

import "strings"

// EventKind names the variant of an Event.
type EventKind string

const (
	EventTicketCreated     EventKind = "ticket_created"
	EventAssigned          EventKind = "assigned"
	EventApprovalRequested EventKind = "approval_requested"
	EventApproved          EventKind = "approved"
	EventClosed            EventKind = "closed"
)

// Event is the closed set of domain events that produce notifications.
//
// The set is sealed by the unexported accept method: only this package can add
// a variant, and a new variant must be added to EventVisitor, which breaks the
// build of every visitor that does not handle it.
//
// Variants can only be obtained through their New* constructors, which reject
// an empty orgId. A zero-value literal built elsewhere has no orgId and is
// rejected again by the notification builder.
type Event interface {
	Kind() EventKind
	OrgID() string
	Description() string
	accept(v EventVisitor)
}

// EventVisitor handles every Event variant.
type EventVisitor interface {
	VisitTicketCreated(e TicketCreated)
	VisitAssigned(e Assigned)
	VisitApprovalRequested(e ApprovalRequested)
	VisitApproved(e Approved)
	VisitClosed(e Closed)
}

// Visit dispatches e to the matching method of v.
func Visit(e Event, v EventVisitor) {
	e.accept(v)
}

// eventBase carries the fields shared by all variants.
type eventBase struct {
	orgID       string
	description string
}

func (b eventBase) OrgID() string       { return b.orgID }
func (b eventBase) Description() string { return b.description }

// TicketCreated is raised when a work order is opened.
type TicketCreated struct {
	eventBase
	WorkOrderID string
	TenantName  string
	Priority    string
}

// TicketCreatedFields holds the variant-specific input of NewTicketCreated.
type TicketCreatedFields struct {
	WorkOrderID string
	TenantName  string
	Priority    string
	Description string
}

// NewTicketCreated validates and constructs a TicketCreated event.
func NewTicketCreated(orgID string, f TicketCreatedFields) (TicketCreated, error) {
	if err := requireFields(orgID,
		field{"workOrderId", f.WorkOrderID},
		field{"tenantName", f.TenantName},
		field{"priority", f.Priority},
	); err != nil {
		return TicketCreated{}, err
	}
	return TicketCreated{
		eventBase:   eventBase{orgID: orgID, description: f.Description},
		WorkOrderID: f.WorkOrderID,
		TenantName:  f.TenantName,
		Priority:    f.Priority,
	}, nil
}

func (TicketCreated) Kind() EventKind         { return EventTicketCreated }
func (e TicketCreated) accept(v EventVisitor) { v.VisitTicketCreated(e) }

// Assigned is raised when a work order is assigned to a technician.
type Assigned struct {
	eventBase
	WorkOrderID    string
	TechnicianName string
}

// AssignedFields holds the variant-specific input of NewAssigned.
type AssignedFields struct {
	WorkOrderID    string
	TechnicianName string
	Description    string
}

// NewAssigned validates and constructs an Assigned event.
func NewAssigned(orgID string, f AssignedFields) (Assigned, error) {
	if err := requireFields(orgID,
		field{"workOrderId", f.WorkOrderID},
		field{"technicianName", f.TechnicianName},
	); err != nil {
		return Assigned{}, err
	}
	return Assigned{
		eventBase:      eventBase{orgID: orgID, description: f.Description},
		WorkOrderID:    f.WorkOrderID,
		TechnicianName: f.TechnicianName,
	}, nil
}

func (Assigned) Kind() EventKind         { return EventAssigned }
func (e Assigned) accept(v EventVisitor) { v.VisitAssigned(e) }

// ApprovalRequested is raised when an approval is needed from a manager.
type ApprovalRequested struct {
	eventBase
	ApprovalID    string
	RequesterName string
	Amount        string
}

// ApprovalRequestedFields holds the variant-specific input of NewApprovalRequested.
type ApprovalRequestedFields struct {
	ApprovalID    string
	RequesterName string
	Amount        string
	Description   string
}

// NewApprovalRequested validates and constructs an ApprovalRequested event.
func NewApprovalRequested(orgID string, f ApprovalRequestedFields) (ApprovalRequested, error) {
	if err := requireFields(orgID,
		field{"approvalId", f.ApprovalID},
		field{"requesterName", f.RequesterName},
		field{"amount", f.Amount},
	); err != nil {
		return ApprovalRequested{}, err
	}
	return ApprovalRequested{
		eventBase:     eventBase{orgID: orgID, description: f.Description},
		ApprovalID:    f.ApprovalID,
		RequesterName: f.RequesterName,
		Amount:        f.Amount,
	}, nil
}

func (ApprovalRequested) Kind() EventKind         { return EventApprovalRequested }
func (e ApprovalRequested) accept(v EventVisitor) { v.VisitApprovalRequested(e) }

// Approved is raised when a pending approval is granted.
type Approved struct {
	eventBase
	ApprovalID   string
	ApproverName string
}

// ApprovedFields holds the variant-specific input of NewApproved.
type ApprovedFields struct {
	ApprovalID   string
	ApproverName string
	Description  string
}

// NewApproved validates and constructs an Approved event.
func NewApproved(orgID string, f ApprovedFields) (Approved, error) {
	if err := requireFields(orgID,
		field{"approvalId", f.ApprovalID},
		field{"approverName", f.ApproverName},
	); err != nil {
		return Approved{}, err
	}
	return Approved{
		eventBase:    eventBase{orgID: orgID, description: f.Description},
		ApprovalID:   f.ApprovalID,
		ApproverName: f.ApproverName,
	}, nil
}

func (Approved) Kind() EventKind         { return EventApproved }
func (e Approved) accept(v EventVisitor) { v.VisitApproved(e) }

// Closed is raised when a work order is closed.
type Closed struct {
	eventBase
	WorkOrderID string
	ClosedBy    string
}

// ClosedFields holds the variant-specific input of NewClosed.
type ClosedFields struct {
	WorkOrderID string
	ClosedBy    string
	Description string
}

// NewClosed validates and constructs a Closed event.
func NewClosed(orgID string, f ClosedFields) (Closed, error) {
	if err := requireFields(orgID,
		field{"workOrderId", f.WorkOrderID},
		field{"closedBy", f.ClosedBy},
	); err != nil {
		return Closed{}, err
	}
	return Closed{
		eventBase:   eventBase{orgID: orgID, description: f.Description},
		WorkOrderID: f.WorkOrderID,
		ClosedBy:    f.ClosedBy,
	}, nil
}

func (Closed) Kind() EventKind         { return EventClosed }
func (e Closed) accept(v EventVisitor) { v.VisitClosed(e) }

type field struct {
	name  string
	value string
}

// requireFields checks orgID first, then each field in order.
func requireFields(orgID string, fields ...field) error {
	if strings.TrimSpace(orgID) == "" {
		return &ValidationError{Field: "orgId", Message: "orgId is required"}
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Field: f.name, Message: f.name + " is required"}
		}
	}
	return nil
}
