// Package notify turns domain events into localized notifications and delivers
// them concurrently over push, email, SMS and WhatsApp with per-channel retries,
// partial-failure accounting and a dead-letter queue.
package notify

import (
	"context"
	"maps"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
)

// Message is the rendered payload handed to a Sender.
type Message struct {
	NotificationID string
	OrgID          string
	Event          entity.EventKind
	Locale         entity.Locale
	Title          string
	Body           string
	WebURL         string
	DeepLink       string
	Data           map[string]any
	Priority       entity.Priority
}

// MessageFrom copies the rendered fields of n.
func MessageFrom(n *entity.Notification) Message {
	return Message{
		NotificationID: n.ID,
		OrgID:          n.OrgID,
		Event:          n.Event,
		Locale:         n.Locale,
		Title:          n.Title,
		Body:           n.Body,
		WebURL:         n.WebURL,
		DeepLink:       n.DeepLink,
		Data:           maps.Clone(n.Data),
		Priority:       n.Priority,
	}
}

// Sender delivers a message over one channel.
//
// Contract:
//   - recipients are already filtered to those contactable on Channel()
//   - Send must honor ctx cancellation and deadline
//   - Send returns nil only if the provider accepted the message for every recipient;
//     otherwise it returns an error describing the failures
//   - Send must be safe for concurrent use
//
// Senders do not retry on their own beyond provider rate-limit waits. The
// Dispatcher owns the retry loop.
type Sender interface {
	Channel() entity.Channel
	Send(ctx context.Context, msg Message, recipients []entity.Recipient) error
}

// channelGroup is the set of recipients one channel will be attempted for.
type channelGroup struct {
	channel    entity.Channel
	recipients []entity.Recipient
}

// contactableFor returns the recipients that prefer ch and have its contact field.
// skipped counts recipients that prefer ch but cannot be reached on it.
func contactableFor(recipients []entity.Recipient, ch entity.Channel) (eligible []entity.Recipient, skipped []string) {
	for _, r := range recipients {
		if !prefers(r, ch) {
			continue
		}
		if _, ok := r.ContactFor(ch); !ok {
			skipped = append(skipped, r.UserID)
			continue
		}
		eligible = append(eligible, r)
	}
	return eligible, skipped
}

func prefers(r entity.Recipient, ch entity.Channel) bool {
	for _, p := range r.PreferredChannels {
		if p == ch {
			return true
		}
	}
	return false
}
