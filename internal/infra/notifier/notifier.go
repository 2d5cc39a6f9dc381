// Package notifier implements the channel senders used by the notification
// dispatcher: an Expo-style push gateway, the SendGrid v3 mail API and the
// Twilio messages API for SMS and WhatsApp.
//
// Senders make one provider request per attempt and never retry on their own;
// the dispatcher owns retries. Every sender waits on its own rate limiter and
// bounds each HTTP request with a client timeout.
package notifier

import (
	"net/http"
	"time"

	"github.com/EngSayh/Fixzit-sub003/internal/usecase/notify"
)

const defaultHTTPTimeout = 10 * time.Second

var (
	_ notify.Sender = (*PushSender)(nil)
	_ notify.Sender = (*EmailSender)(nil)
	_ notify.Sender = (*SMSSender)(nil)
	_ notify.Sender = (*WhatsAppSender)(nil)
	_ notify.Sender = (*NoOpSender)(nil)
)

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}
