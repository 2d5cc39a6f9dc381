package notifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
	"github.com/EngSayh/Fixzit-sub003/internal/usecase/notify"
)

// twilioRecorder is a fake Messages resource. Numbers listed in fail get a 400.
type twilioRecorder struct {
	mu    sync.Mutex
	forms []url.Values
	paths []string
	fail  map[string]bool
}

func (r *twilioRecorder) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		user, pass, ok := req.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)
		require.NoError(t, req.ParseForm())

		r.mu.Lock()
		r.forms = append(r.forms, req.PostForm)
		r.paths = append(r.paths, req.URL.Path)
		r.mu.Unlock()

		if r.fail[req.PostForm.Get("To")] {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	}
}

func twilioMessage() notify.Message {
	return notify.Message{
		NotificationID: "n-1",
		Title:          "Work Order Closed",
		Body:           "Work order WO-3 was closed by Sara.",
		WebURL:         "https://app.fixzit.co/fm/work-orders/WO-3",
	}
}

func TestSMSSender_Send(t *testing.T) {
	// Arrange
	rec := &twilioRecorder{}
	server := httptest.NewServer(rec.handler(t))
	defer server.Close()

	sender := NewSMSSender(TwilioConfig{BaseURL: server.URL, AccountSID: "AC123", AuthToken: "secret", From: "+15005550006"})
	recipients := []entity.Recipient{
		{UserID: "u1", Phone: "+966500000001"},
		{UserID: "u2", Phone: "+966500000002"},
	}

	// Act
	err := sender.Send(context.Background(), twilioMessage(), recipients)

	// Assert
	require.NoError(t, err)
	require.Len(t, rec.forms, 2)
	assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", rec.paths[0])
	assert.Equal(t, "+966500000001", rec.forms[0].Get("To"))
	assert.Equal(t, "+15005550006", rec.forms[0].Get("From"))
	body := rec.forms[0].Get("Body")
	assert.True(t, strings.HasPrefix(body, "Work Order Closed\n"))
	assert.Contains(t, body, "WO-3")
	assert.Contains(t, body, "https://app.fixzit.co/fm/work-orders/WO-3")
	assert.Equal(t, entity.ChannelSMS, sender.Channel())
}

func TestSMSSender_Send_PartialRecipientFailure(t *testing.T) {
	rec := &twilioRecorder{fail: map[string]bool{"+966500000002": true}}
	server := httptest.NewServer(rec.handler(t))
	defer server.Close()

	sender := NewSMSSender(TwilioConfig{BaseURL: server.URL, AccountSID: "AC123", AuthToken: "secret", From: "+15005550006"})

	err := sender.Send(context.Background(), twilioMessage(), []entity.Recipient{
		{UserID: "u1", Phone: "+966500000001"},
		{UserID: "u2", Phone: "+966500000002"},
		{UserID: "u3", Phone: "+966500000003"},
	})

	require.Error(t, err)
	var recErr *RecipientError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, "u2", recErr.UserID)
	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Contains(t, clientErr.Message, "21211")
	assert.Len(t, rec.forms, 3, "a failing recipient does not stop the others")
}

func TestWhatsAppSender_Send_PrefixesAddresses(t *testing.T) {
	rec := &twilioRecorder{}
	server := httptest.NewServer(rec.handler(t))
	defer server.Close()

	sender := NewWhatsAppSender(TwilioConfig{BaseURL: server.URL, AccountSID: "AC123", AuthToken: "secret", From: "+14155238886"})

	err := sender.Send(context.Background(), twilioMessage(), []entity.Recipient{{UserID: "u1", Phone: "+966500000001"}})

	require.NoError(t, err)
	require.Len(t, rec.forms, 1)
	assert.Equal(t, "whatsapp:+966500000001", rec.forms[0].Get("To"))
	assert.Equal(t, "whatsapp:+14155238886", rec.forms[0].Get("From"))
	assert.Equal(t, entity.ChannelWhatsApp, sender.Channel())
}

func TestWhatsAppAddress(t *testing.T) {
	assert.Equal(t, "whatsapp:+1", whatsAppAddress("+1"))
	assert.Equal(t, "whatsapp:+1", whatsAppAddress("whatsapp:+1"))
}

func TestMessageText_Truncates(t *testing.T) {
	msg := notify.Message{Title: "T", Body: strings.Repeat("ب", 2000)}

	text := messageText(msg)

	assert.LessOrEqual(t, len(text), maxTwilioBodyLength)
	assert.True(t, strings.HasSuffix(text, truncationSuffix))
	assert.True(t, utf8Valid(text))
}
