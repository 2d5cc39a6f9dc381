package notifier

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
	"github.com/EngSayh/Fixzit-sub003/internal/usecase/notify"
)

func TestNoOpSender_Send(t *testing.T) {
	var buf bytes.Buffer
	sender := NewNoOpSender(entity.ChannelSMS, slog.New(slog.NewJSONHandler(&buf, nil)))

	err := sender.Send(context.Background(), notify.Message{NotificationID: "n-1", Title: "Hi"},
		[]entity.Recipient{{UserID: "u1", Phone: "+966500000000"}})

	assert.NoError(t, err)
	assert.Equal(t, entity.ChannelSMS, sender.Channel())
	assert.Contains(t, buf.String(), `"notification_id":"n-1"`)
	assert.Contains(t, buf.String(), `"channel":"sms"`)
}

func TestNoOpSender_CancelledContext(t *testing.T) {
	sender := NewNoOpSender(entity.ChannelPush, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sender.Send(ctx, notify.Message{}, nil)

	assert.ErrorIs(t, err, context.Canceled)
}
