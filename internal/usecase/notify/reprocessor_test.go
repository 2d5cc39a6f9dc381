package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
)

func deadLetter(orgID, notificationID string, ch entity.Channel, attempts int) entity.DeadLetterEntry {
	return entity.DeadLetterEntry{
		ID:             "dl-" + notificationID,
		OrgID:          orgID,
		NotificationID: notificationID,
		Channel:        ch,
		Attempts:       attempts,
		LastError:      "provider 503",
		CreatedAt:      time.Now().UTC(),
	}
}

func TestReprocessor_Run(t *testing.T) {
	tests := []struct {
		name         string
		senderErr    error
		entry        entity.DeadLetterEntry
		stored       bool
		wantStats    ReprocessStats
		wantResolved []string
		wantFailure  *failureCall
		wantSends    int
	}{
		{
			name:         "redelivery succeeds",
			entry:        deadLetter("org1", "n-1", entity.ChannelEmail, 3),
			stored:       true,
			wantStats:    ReprocessStats{Listed: 1, Resolved: 1},
			wantResolved: []string{"org1/n-1/email"},
			wantSends:    1,
		},
		{
			name:      "redelivery fails again",
			senderErr: errors.New("still down"),
			entry:     deadLetter("org1", "n-1", entity.ChannelEmail, 3),
			stored:    true,
			wantStats: ReprocessStats{Listed: 1, Failed: 1},
			wantFailure: &failureCall{
				orgID: "org1", notificationID: "n-1", channel: entity.ChannelEmail,
				attempts: 5, lastErr: "still down",
			},
			wantSends: 2,
		},
		{
			name:      "notification missing",
			entry:     deadLetter("org1", "gone", entity.ChannelEmail, 3),
			stored:    true,
			wantStats: ReprocessStats{Listed: 1, Skipped: 1},
		},
		{
			name:      "entry without org id",
			entry:     deadLetter("", "n-1", entity.ChannelEmail, 3),
			stored:    true,
			wantStats: ReprocessStats{Listed: 1, Skipped: 1},
		},
		{
			name:      "channel no longer contactable",
			entry:     deadLetter("org1", "n-1", entity.ChannelSMS, 3),
			stored:    true,
			wantStats: ReprocessStats{Listed: 1, Skipped: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			email := &mockSender{channel: entity.ChannelEmail, err: tt.senderErr}
			sms := &mockSender{channel: entity.ChannelSMS}
			d, store, _ := newTestDispatcher(email, sms)
			if tt.stored {
				n := pendingNotification(emailRecipient)
				n.Status = entity.StatusFailed
				require.NoError(t, store.Upsert(context.Background(), n))
			}
			dlq := &mockDeadLetterStore{unresolved: []entity.DeadLetterEntry{tt.entry}}
			r := NewReprocessor(dlq, store, d, discardLogger(), 10, 2)

			// Act
			stats, err := r.Run(context.Background())

			// Assert
			require.NoError(t, err)
			assert.Equal(t, tt.wantStats, stats)
			assert.Equal(t, tt.wantResolved, dlq.resolved)
			if tt.wantFailure != nil {
				require.Len(t, dlq.failures, 1)
				assert.Equal(t, *tt.wantFailure, dlq.failures[0])
			} else {
				assert.Empty(t, dlq.failures)
			}
			assert.Equal(t, tt.wantSends, email.callCount())
			assert.Equal(t, 0, sms.callCount())
		})
	}
}

func TestReprocessor_ListError(t *testing.T) {
	d, store, _ := newTestDispatcher()
	dlq := &mockDeadLetterStore{listErr: errors.New("db down")}
	r := NewReprocessor(dlq, store, d, discardLogger(), 0, 0)

	_, err := r.Run(context.Background())

	assert.ErrorContains(t, err, "db down")
}

func TestReprocessor_BatchSizeLimitsWork(t *testing.T) {
	email := &mockSender{channel: entity.ChannelEmail}
	d, store, _ := newTestDispatcher(email)
	for _, id := range []string{"a", "b", "c"} {
		n := pendingNotification(emailRecipient)
		n.ID = id
		require.NoError(t, store.Upsert(context.Background(), n))
	}
	dlq := &mockDeadLetterStore{unresolved: []entity.DeadLetterEntry{
		deadLetter("org1", "a", entity.ChannelEmail, 3),
		deadLetter("org1", "b", entity.ChannelEmail, 3),
		deadLetter("org1", "c", entity.ChannelEmail, 3),
	}}
	r := NewReprocessor(dlq, store, d, discardLogger(), 2, 1)

	stats, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, ReprocessStats{Listed: 2, Resolved: 2}, stats)
	assert.Equal(t, 2, email.callCount())
}

func TestDispatcher_RedeliverErrors(t *testing.T) {
	d, _, _ := newTestDispatcher(&mockSender{channel: entity.ChannelEmail})
	n := pendingNotification(emailRecipient)

	_, err := d.Redeliver(context.Background(), nil, entity.ChannelEmail, 1)
	assert.ErrorIs(t, err, ErrNilNotification)

	_, err = d.Redeliver(context.Background(), n, entity.ChannelPush, 1)
	assert.ErrorIs(t, err, ErrNoSender)

	tenantless := n.Snapshot()
	tenantless.OrgID = ""
	_, err = d.Redeliver(context.Background(), tenantless, entity.ChannelEmail, 1)
	assert.ErrorIs(t, err, entity.ErrMissingTenant)
}
