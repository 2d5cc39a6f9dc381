package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
	"github.com/EngSayh/Fixzit-sub003/internal/usecase/notify"
)

type removedToken struct {
	orgID, userID, token string
}

// mockTokenStore records removed tokens.
type mockTokenStore struct {
	mu      sync.Mutex
	removed []removedToken
	err     error
}

func (m *mockTokenStore) RemoveToken(_ context.Context, orgID, userID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, removedToken{orgID, userID, token})
	return m.err
}

func pushMessage() notify.Message {
	return notify.Message{
		NotificationID: "n-1",
		OrgID:          "org1",
		Title:          "Work Order Assigned",
		Body:           "Work order WO-1 has been assigned to Omar.",
		DeepLink:       "fixzit://work-orders/WO-1",
		Data:           map[string]any{"event": "assigned"},
		Priority:       entity.PriorityHigh,
	}
}

func TestPushSender_Send_Success(t *testing.T) {
	// Arrange
	var got []expoMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer push-secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data":[{"status":"ok","id":"t1"},{"status":"ok","id":"t2"}]}`))
	}))
	defer server.Close()

	sender := NewPushSender(PushConfig{Endpoint: server.URL, AccessToken: "push-secret"}, nil, nil)
	recipients := []entity.Recipient{
		{UserID: "u1", PushToken: "ExponentPushToken[1]"},
		{UserID: "u2", PushToken: "ExponentPushToken[2]"},
	}

	// Act
	err := sender.Send(context.Background(), pushMessage(), recipients)

	// Assert
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ExponentPushToken[1]", got[0].To)
	assert.Equal(t, "Work Order Assigned", got[0].Title)
	assert.Equal(t, "high", got[0].Priority)
	assert.Equal(t, "fixzit://work-orders/WO-1", got[0].Data["url"])
	assert.Equal(t, "n-1", got[0].Data["notificationId"])
	assert.Equal(t, "assigned", got[0].Data["event"])
	assert.Equal(t, entity.ChannelPush, sender.Channel())
}

func TestPushSender_Send_DeviceNotRegisteredRemovesToken(t *testing.T) {
	// Arrange
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[
			{"status":"ok","id":"t1"},
			{"status":"error","message":"not a registered push notification recipient","details":{"error":"DeviceNotRegistered"}}
		]}`))
	}))
	defer server.Close()

	tokens := &mockTokenStore{}
	sender := NewPushSender(PushConfig{Endpoint: server.URL}, tokens, nil)
	recipients := []entity.Recipient{
		{UserID: "u1", PushToken: "ExponentPushToken[1]"},
		{UserID: "u2", PushToken: "ExponentPushToken[stale]"},
	}

	// Act
	err := sender.Send(context.Background(), pushMessage(), recipients)

	// Assert
	require.Error(t, err)
	var invalid *InvalidTokenError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "u2", invalid.UserID)
	assert.False(t, invalid.Retryable())

	require.Len(t, tokens.removed, 1)
	assert.Equal(t, removedToken{"org1", "u2", "ExponentPushToken[stale]"}, tokens.removed[0])
}

func TestPushSender_Send_TokenStoreFailureStillReportsRecipient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"status":"error","details":{"error":"DeviceNotRegistered"}}]}`))
	}))
	defer server.Close()

	tokens := &mockTokenStore{err: errors.New("redis down")}
	sender := NewPushSender(PushConfig{Endpoint: server.URL}, tokens, nil)

	err := sender.Send(context.Background(), pushMessage(), []entity.Recipient{{UserID: "u1", PushToken: "tok"}})

	var recErr *RecipientError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, "u1", recErr.UserID)
	assert.Len(t, tokens.removed, 1)
}

func TestPushSender_Send_HTTPErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryAfter string
		wantRetry  bool
		check      func(t *testing.T, err error)
	}{
		{
			name:      "server error",
			status:    http.StatusBadGateway,
			wantRetry: true,
			check: func(t *testing.T, err error) {
				var target *ServerError
				require.ErrorAs(t, err, &target)
				assert.Equal(t, http.StatusBadGateway, target.StatusCode)
			},
		},
		{
			name:      "client error",
			status:    http.StatusBadRequest,
			wantRetry: false,
			check: func(t *testing.T, err error) {
				var target *ClientError
				require.ErrorAs(t, err, &target)
				assert.Contains(t, target.Message, `"code":"X"`)
			},
		},
		{
			name:       "rate limited",
			status:     http.StatusTooManyRequests,
			retryAfter: "7",
			wantRetry:  true,
			check: func(t *testing.T, err error) {
				var rl *RateLimitError
				require.ErrorAs(t, err, &rl)
				assert.Equal(t, 7*time.Second, rl.RetryAfter)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"errors":[{"code":"X"}]}`))
			}))
			defer server.Close()

			sender := NewPushSender(PushConfig{Endpoint: server.URL}, nil, nil)

			err := sender.Send(context.Background(), pushMessage(), []entity.Recipient{{UserID: "u1", PushToken: "tok"}})

			require.Error(t, err)
			tt.check(t, err)
			var retryable interface{ Retryable() bool }
			require.ErrorAs(t, err, &retryable)
			assert.Equal(t, tt.wantRetry, retryable.Retryable())
		})
	}
}

func TestPushSender_Send_TicketCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	sender := NewPushSender(PushConfig{Endpoint: server.URL}, nil, nil)

	err := sender.Send(context.Background(), pushMessage(), []entity.Recipient{{UserID: "u1", PushToken: "tok"}})

	assert.ErrorContains(t, err, "0 tickets for 1 messages")
}

func TestExpoPriority(t *testing.T) {
	assert.Equal(t, "high", expoPriority(entity.PriorityHigh))
	assert.Equal(t, "default", expoPriority(entity.PriorityNormal))
	assert.Equal(t, "normal", expoPriority(entity.PriorityLow))
}
