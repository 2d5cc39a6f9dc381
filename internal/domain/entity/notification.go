package entity

import "time"

// Priority is the delivery urgency forwarded to channel providers.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Status is the lifecycle state of a Notification.
// Transitions are pending → sent | partial_failure | failed and never leave a terminal state.
type Status string

const (
	StatusPending        Status = "pending"
	StatusSent           Status = "sent"
	StatusPartialFailure Status = "partial_failure"
	StatusFailed         Status = "failed"
)

// IsTerminal reports whether s is one of the final outcomes.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSent, StatusPartialFailure, StatusFailed:
		return true
	}
	return false
}

// Outcome is the final state of one channel send.
type Outcome string

const (
	OutcomeSent   Outcome = "sent"
	OutcomeFailed Outcome = "failed"
)

// ChannelDispatchResult records the outcome of one attempted channel.
// Channels that had no contactable recipient are never attempted and have no result.
type ChannelDispatchResult struct {
	Channel       Channel    `json:"channel"`
	Outcome       Outcome    `json:"outcome"`
	Attempts      int        `json:"attempts"`
	LastAttemptAt *time.Time `json:"lastAttemptAt,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// Notification is the payload produced once per locale group and dispatched once.
//
// The Dispatcher is the only writer of Status, SentAt, DeliveredAt, FailureReason
// and ChannelResults, and writes them once after every channel task has joined.
type Notification struct {
	ID             string
	OrgID          string
	Event          EventKind
	Recipients     []Recipient
	Locale         Locale
	Title          string
	Body           string
	WebURL         string
	DeepLink       string
	Data           map[string]any
	Priority       Priority
	CreatedAt      time.Time
	SentAt         *time.Time
	DeliveredAt    *time.Time
	Status         Status
	FailureReason  string
	ChannelResults []ChannelDispatchResult
}

// Snapshot returns a copy that shares no mutable state with n.
// It is used to hand a notification to a goroutine that must not observe later mutations.
func (n *Notification) Snapshot() *Notification {
	cp := *n
	cp.Recipients = append([]Recipient(nil), n.Recipients...)
	for i := range cp.Recipients {
		cp.Recipients[i].PreferredChannels = append([]Channel(nil), n.Recipients[i].PreferredChannels...)
	}
	cp.ChannelResults = append([]ChannelDispatchResult(nil), n.ChannelResults...)
	if n.Data != nil {
		cp.Data = make(map[string]any, len(n.Data))
		for k, v := range n.Data {
			cp.Data[k] = v
		}
	}
	if n.SentAt != nil {
		t := *n.SentAt
		cp.SentAt = &t
	}
	if n.DeliveredAt != nil {
		t := *n.DeliveredAt
		cp.DeliveredAt = &t
	}
	return &cp
}

// DeadLetterEntry is a channel send that exhausted every retry.
// It references its notification by id but has its own lifecycle:
// created on failure, resolved by out-of-band reprocessing.
type DeadLetterEntry struct {
	ID             string
	OrgID          string
	NotificationID string
	Channel        Channel
	Attempts       int
	LastError      string
	CreatedAt      time.Time
	ResolvedAt     *time.Time
}
