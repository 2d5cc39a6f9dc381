package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
)

type mockWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func newTestPublisher(w *mockWriter) *DeadLetterPublisher {
	return newDeadLetterPublisher(w, "dlq", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDeadLetterPublisher_InsertMany(t *testing.T) {
	// Arrange
	w := &mockWriter{}
	p := newTestPublisher(w)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	entries := []entity.DeadLetterEntry{
		{ID: "d1", OrgID: "org1", NotificationID: "n1", Channel: entity.ChannelEmail, Attempts: 3, LastError: "smtp down", CreatedAt: created},
		{ID: "d2", OrgID: "org1", NotificationID: "n1", Channel: entity.ChannelSMS, Attempts: 3, LastError: "timeout", CreatedAt: created},
	}

	// Act
	err := p.InsertMany(context.Background(), entries)

	// Assert
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "dlq", w.msgs[0].Topic)
	assert.Equal(t, "org1/n1/email", string(w.msgs[0].Key))
	assert.Equal(t, "org1/n1/sms", string(w.msgs[1].Key))

	var ev deadLetterEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, "org1", ev.OrgID)
	assert.Equal(t, "email", ev.Channel)
	assert.Equal(t, 3, ev.Attempts)
	assert.Equal(t, "smtp down", ev.LastError)
	assert.True(t, created.Equal(ev.CreatedAt))
	assert.Contains(t, w.msgs[0].Headers, kafka.Header{Key: "org_id", Value: []byte("org1")})
}

func TestDeadLetterPublisher_DropsTenantless(t *testing.T) {
	w := &mockWriter{}
	p := newTestPublisher(w)

	err := p.InsertMany(context.Background(), []entity.DeadLetterEntry{
		{ID: "d1", NotificationID: "n1", Channel: entity.ChannelPush},
		{ID: "d2", OrgID: "org2", NotificationID: "n2", Channel: entity.ChannelPush},
	})

	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "org2/n2/push", string(w.msgs[0].Key))
}

func TestDeadLetterPublisher_NothingToWrite(t *testing.T) {
	w := &mockWriter{err: errors.New("must not be called")}
	p := newTestPublisher(w)

	assert.NoError(t, p.InsertMany(context.Background(), nil))
}

func TestDeadLetterPublisher_WriteErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{
			name:    "broker unavailable",
			err:     errors.New("dial tcp: connection refused"),
			wantMsg: "publish dead letters: dial tcp: connection refused",
		},
		{
			name:    "partial write",
			err:     kafka.WriteErrors{nil, errors.New("leader not available")},
			wantMsg: "1 of 2 failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &mockWriter{err: tt.err}
			p := newTestPublisher(w)

			err := p.InsertMany(context.Background(), []entity.DeadLetterEntry{
				{OrgID: "org1", NotificationID: "n1", Channel: entity.ChannelEmail},
				{OrgID: "org1", NotificationID: "n1", Channel: entity.ChannelSMS},
			})

			assert.ErrorContains(t, err, tt.wantMsg)
		})
	}
}

func TestDeadLetterPublisher_Close(t *testing.T) {
	w := &mockWriter{}
	p := newTestPublisher(w)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewDeadLetterPublisher_DefaultTopic(t *testing.T) {
	p := NewDeadLetterPublisher([]string{"localhost:9092"}, "", nil)
	assert.Equal(t, DefaultDeadLetterTopic, p.topic)
	require.NoError(t, p.Close())
}
