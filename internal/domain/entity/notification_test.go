package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecipient_ContactFor(t *testing.T) {
	full := Recipient{Email: "a@b.com", Phone: "+966500000000", PushToken: "tok"}
	empty := Recipient{}

	tests := []struct {
		channel     Channel
		wantContact string
	}{
		{ChannelEmail, "a@b.com"},
		{ChannelSMS, "+966500000000"},
		{ChannelWhatsApp, "+966500000000"},
		{ChannelPush, "tok"},
	}

	for _, tt := range tests {
		t.Run(string(tt.channel), func(t *testing.T) {
			got, ok := full.ContactFor(tt.channel)
			assert.True(t, ok)
			assert.Equal(t, tt.wantContact, got)

			_, ok = empty.ContactFor(tt.channel)
			assert.False(t, ok)
		})
	}

	_, ok := full.ContactFor(Channel("pigeon"))
	assert.False(t, ok, "unknown channel is never contactable")
}

func TestLocale_OrDefault(t *testing.T) {
	assert.Equal(t, LocaleEN, Locale("").OrDefault())
	assert.Equal(t, LocaleAR, LocaleAR.OrDefault())
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.True(t, StatusSent.IsTerminal())
	assert.True(t, StatusPartialFailure.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}

func TestNotification_Snapshot_IsIndependent(t *testing.T) {
	sent := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sentAt := sent
	n := &Notification{
		ID:         "n1",
		OrgID:      "org1",
		Recipients: []Recipient{{UserID: "u1", PreferredChannels: []Channel{ChannelEmail, ChannelSMS}}},
		Data:       map[string]any{"k": "v"},
		SentAt:     &sentAt,
		Status:     StatusPending,
	}

	cp := n.Snapshot()
	n.Status = StatusSent
	n.Recipients[0].UserID = "changed"
	n.Recipients[0].PreferredChannels[0] = ChannelPush
	n.Data["k"] = "changed"
	*n.SentAt = sent.Add(time.Hour)

	assert.Equal(t, StatusPending, cp.Status)
	assert.Equal(t, "u1", cp.Recipients[0].UserID)
	assert.Equal(t, []Channel{ChannelEmail, ChannelSMS}, cp.Recipients[0].PreferredChannels)
	assert.Equal(t, "v", cp.Data["k"])
	assert.Equal(t, sent, *cp.SentAt)
}
