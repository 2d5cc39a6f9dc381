package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
	"github.com/EngSayh/Fixzit-sub003/internal/i18n"
	"github.com/EngSayh/Fixzit-sub003/internal/link"
	"github.com/EngSayh/Fixzit-sub003/internal/resilience/retry"
)

// mockSender is a Sender for testing.
type mockSender struct {
	channel  entity.Channel
	err      error // returned on every failing call
	failN    int   // fail only the first failN calls when > 0
	panicMsg string
	block    bool // wait for ctx to be done

	mu             sync.Mutex
	calls          int
	lastMsg        Message
	lastRecipients []entity.Recipient
}

func (m *mockSender) Channel() entity.Channel {
	return m.channel
}

func (m *mockSender) Send(ctx context.Context, msg Message, recipients []entity.Recipient) error {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.lastMsg = msg
	m.lastRecipients = append([]entity.Recipient(nil), recipients...)
	m.mu.Unlock()

	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if m.failN > 0 {
		if call <= m.failN {
			return m.err
		}
		return nil
	}
	return m.err
}

func (m *mockSender) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockSender) recipients() []entity.Recipient {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRecipients
}

// mockLogStore records every upserted snapshot.
type mockLogStore struct {
	mu      sync.Mutex
	upserts []*entity.Notification
	err     error
}

func (m *mockLogStore) Upsert(_ context.Context, n *entity.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.upserts = append(m.upserts, n.Snapshot())
	return nil
}

func (m *mockLogStore) Get(_ context.Context, orgID, id string) (*entity.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.upserts) - 1; i >= 0; i-- {
		n := m.upserts[i]
		if n.OrgID == orgID && n.ID == id {
			return n.Snapshot(), nil
		}
	}
	return nil, entity.ErrNotFound
}

func (m *mockLogStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.upserts)
}

func (m *mockLogStore) last() *entity.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.upserts) == 0 {
		return nil
	}
	return m.upserts[len(m.upserts)-1]
}

type failureCall struct {
	orgID          string
	notificationID string
	channel        entity.Channel
	attempts       int
	lastErr        string
}

// mockDeadLetterStore implements repository.DeadLetterRepository in memory.
type mockDeadLetterStore struct {
	mu         sync.Mutex
	entries    []entity.DeadLetterEntry
	unresolved []entity.DeadLetterEntry
	resolved   []string
	failures   []failureCall
	err        error
	listErr    error
}

func (m *mockDeadLetterStore) InsertMany(_ context.Context, entries []entity.DeadLetterEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *mockDeadLetterStore) ListUnresolved(_ context.Context, limit int) ([]entity.DeadLetterEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	if len(m.unresolved) > limit {
		return m.unresolved[:limit], nil
	}
	return m.unresolved, nil
}

func (m *mockDeadLetterStore) MarkResolved(_ context.Context, orgID, notificationID string, channel entity.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolved = append(m.resolved, orgID+"/"+notificationID+"/"+string(channel))
	return nil
}

func (m *mockDeadLetterStore) RecordFailure(_ context.Context, orgID, notificationID string, channel entity.Channel, attempts int, lastErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, failureCall{orgID, notificationID, channel, attempts, lastErr})
	return nil
}

func (m *mockDeadLetterStore) inserted() []entity.DeadLetterEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entity.DeadLetterEntry(nil), m.entries...)
}

// countingLocalizer wraps a Localizer and counts calls.
type countingLocalizer struct {
	next  Localizer
	fail  map[entity.Locale]bool
	mu    sync.Mutex
	calls int
}

func (c *countingLocalizer) Localize(kind entity.EventKind, locale entity.Locale, params map[string]string) (i18n.Message, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.fail[locale] {
		return i18n.Message{}, errors.New("catalogue unavailable")
	}
	return c.next.Localize(kind, locale, params)
}

func (c *countingLocalizer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// countingLinks wraps a LinkBuilder and counts calls.
type countingLinks struct {
	next  LinkBuilder
	mu    sync.Mutex
	calls int
}

func (c *countingLinks) Build(et link.EntityType, id, subPath string) (link.Links, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.next.Build(et, id, subPath)
}

func (c *countingLinks) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastBackoff() retry.Config {
	return retry.Config{
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func newTestDispatcher(senders ...Sender) (*Dispatcher, *mockLogStore, *mockDeadLetterStore) {
	store := &mockLogStore{}
	dlq := &mockDeadLetterStore{}
	d := NewDispatcher(senders, store, dlq, discardLogger(), DispatcherConfig{
		MaxRetries:      3,
		ProviderTimeout: time.Second,
		PersistTimeout:  time.Second,
		Backoff:         fastBackoff(),
	})
	return d, store, dlq
}

func newTestBuilder(t *testing.T) (*Builder, *mockLogStore, *countingLocalizer, *countingLinks) {
	t.Helper()
	catalog, err := i18n.Default()
	require.NoError(t, err)

	store := &mockLogStore{}
	loc := &countingLocalizer{next: catalog}
	links := &countingLinks{next: link.NewBuilder(link.Config{})}
	return NewBuilder(loc, links, store, discardLogger()), store, loc, links
}

func pendingNotification(recipients ...entity.Recipient) *entity.Notification {
	return &entity.Notification{
		ID:         "n-1",
		OrgID:      "org1",
		Event:      entity.EventTicketCreated,
		Recipients: recipients,
		Locale:     entity.LocaleEN,
		Title:      "New Work Order Created",
		Body:       "Work order WO-1 was created for Acme with high priority.",
		WebURL:     "https://app.fixzit.co/fm/work-orders/WO-1",
		DeepLink:   "fixzit://work-orders/WO-1",
		Priority:   entity.PriorityHigh,
		CreatedAt:  time.Now().UTC(),
		Status:     entity.StatusPending,
	}
}

func resultFor(results []entity.ChannelDispatchResult, ch entity.Channel) (entity.ChannelDispatchResult, bool) {
	for _, r := range results {
		if r.Channel == ch {
			return r, true
		}
	}
	return entity.ChannelDispatchResult{}, false
}
