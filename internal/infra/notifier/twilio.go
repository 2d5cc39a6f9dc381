package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
	"github.com/EngSayh/Fixzit-sub003/internal/usecase/notify"
)

const (
	// DefaultTwilioBaseURL is the Twilio REST API host.
	DefaultTwilioBaseURL = "https://api.twilio.com"

	maxTwilioBodyLength = 1600
	whatsAppPrefix      = "whatsapp:"
)

// TwilioConfig configures an SMSSender or WhatsAppSender.
type TwilioConfig struct {
	// BaseURL defaults to DefaultTwilioBaseURL.
	BaseURL string

	AccountSID string
	AuthToken  string

	// From is the sending number. For WhatsApp the "whatsapp:" prefix is optional.
	From string

	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// twilioClient posts one message per recipient to the Messages resource.
type twilioClient struct {
	config     TwilioConfig
	httpClient *http.Client
	limiter    *RateLimiter
}

func newTwilioClient(config TwilioConfig) *twilioClient {
	if config.BaseURL == "" {
		config.BaseURL = DefaultTwilioBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &twilioClient{
		config:     config,
		httpClient: newHTTPClient(config.Timeout),
		limiter:    NewRateLimiter(config.RequestsPerSecond, config.Burst),
	}
}

// sendAll sends text to every recipient's phone. address maps a phone number
// to the Twilio "To" value. A cancelled context stops the loop; the failures
// collected so far are returned with it.
func (c *twilioClient) sendAll(ctx context.Context, from string, address func(string) string, text string, recipients []entity.Recipient) error {
	var errs []error
	for _, r := range recipients {
		if err := c.limiter.Wait(ctx); err != nil {
			errs = append(errs, err)
			break
		}
		if err := c.sendOne(ctx, address(r.Phone), from, text); err != nil {
			errs = append(errs, &RecipientError{UserID: r.UserID, Err: err})
		}
	}
	return errors.Join(errs...)
}

func (c *twilioClient) sendOne(ctx context.Context, to, from, body string) error {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.config.BaseURL, url.PathEscape(c.config.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.SetBasicAuth(c.config.AccountSID, c.config.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return checkResponse("twilio", resp)
}

// messageText is the plain-text rendering shared by SMS and WhatsApp.
func messageText(msg notify.Message) string {
	var b strings.Builder
	b.WriteString(msg.Title)
	if msg.Body != "" {
		b.WriteString("\n")
		b.WriteString(msg.Body)
	}
	if msg.WebURL != "" {
		b.WriteString("\n")
		b.WriteString(msg.WebURL)
	}
	return truncate(b.String(), maxTwilioBodyLength, truncationSuffix)
}

// SMSSender delivers notifications as SMS through Twilio.
type SMSSender struct {
	client *twilioClient
}

// NewSMSSender creates an SMSSender.
func NewSMSSender(config TwilioConfig) *SMSSender {
	return &SMSSender{client: newTwilioClient(config)}
}

// Channel implements notify.Sender.
func (s *SMSSender) Channel() entity.Channel { return entity.ChannelSMS }

// Send implements notify.Sender.
func (s *SMSSender) Send(ctx context.Context, msg notify.Message, recipients []entity.Recipient) error {
	identity := func(phone string) string { return phone }
	return s.client.sendAll(ctx, s.client.config.From, identity, messageText(msg), recipients)
}

// WhatsAppSender delivers notifications as WhatsApp messages through Twilio.
type WhatsAppSender struct {
	client *twilioClient
}

// NewWhatsAppSender creates a WhatsAppSender.
func NewWhatsAppSender(config TwilioConfig) *WhatsAppSender {
	return &WhatsAppSender{client: newTwilioClient(config)}
}

// Channel implements notify.Sender.
func (w *WhatsAppSender) Channel() entity.Channel { return entity.ChannelWhatsApp }

// Send implements notify.Sender.
func (w *WhatsAppSender) Send(ctx context.Context, msg notify.Message, recipients []entity.Recipient) error {
	from := whatsAppAddress(w.client.config.From)
	return w.client.sendAll(ctx, from, whatsAppAddress, messageText(msg), recipients)
}

func whatsAppAddress(phone string) string {
	if strings.HasPrefix(phone, whatsAppPrefix) {
		return phone
	}
	return whatsAppPrefix + phone
}
