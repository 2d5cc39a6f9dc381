package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
	"github.com/EngSayh/Fixzit-sub003/internal/usecase/notify"
)

const (
	// DefaultEmailEndpoint is the SendGrid v3 mail send API.
	DefaultEmailEndpoint = "https://api.sendgrid.com/v3/mail/send"

	// SendGrid accepts at most 1000 personalizations per request.
	maxEmailBatch = 1000
)

// LinkSanitizer rewrites an outbound link to a safe form, or "" to drop it.
type LinkSanitizer interface {
	Sanitize(raw string) string
}

// EmailConfig configures an EmailSender.
type EmailConfig struct {
	// Endpoint defaults to DefaultEmailEndpoint.
	Endpoint string

	APIKey      string
	FromAddress string
	FromName    string

	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// EmailSender delivers notifications through the SendGrid v3 API. Every
// recipient gets its own personalization so addresses are never disclosed to
// each other. The action button is rendered only for links the sanitizer accepts.
type EmailSender struct {
	config     EmailConfig
	httpClient *http.Client
	limiter    *RateLimiter
	sanitizer  LinkSanitizer
	logger     *slog.Logger
}

// NewEmailSender creates an EmailSender.
func NewEmailSender(config EmailConfig, sanitizer LinkSanitizer, logger *slog.Logger) *EmailSender {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEmailEndpoint
	}
	if logger == nil {
		logger = slog.Default()
	}
	if sanitizer == nil {
		sanitizer = dropLinks{}
	}
	return &EmailSender{
		config:     config,
		httpClient: newHTTPClient(config.Timeout),
		limiter:    NewRateLimiter(config.RequestsPerSecond, config.Burst),
		sanitizer:  sanitizer,
		logger:     logger,
	}
}

// dropLinks rejects every link.
type dropLinks struct{}

func (dropLinks) Sanitize(string) string { return "" }

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridPayload struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
	CustomArgs       map[string]string         `json:"custom_args,omitempty"`
}

// Channel implements notify.Sender.
func (e *EmailSender) Channel() entity.Channel { return entity.ChannelEmail }

// Send implements notify.Sender.
func (e *EmailSender) Send(ctx context.Context, msg notify.Message, recipients []entity.Recipient) error {
	actionURL := e.sanitizer.Sanitize(msg.WebURL)
	if msg.WebURL != "" && actionURL == "" {
		e.logger.WarnContext(ctx, "email action link rejected by sanitizer",
			slog.String("notification_id", msg.NotificationID))
	}

	html, err := renderEmail(msg, actionURL)
	if err != nil {
		return fmt.Errorf("render email template: %w", err)
	}
	text := msg.Body
	if actionURL != "" {
		text += "\n\n" + actionURL
	}

	var errs []error
	for start := 0; start < len(recipients); start += maxEmailBatch {
		end := min(start+maxEmailBatch, len(recipients))
		payload := sendGridPayload{
			Personalizations: personalizations(recipients[start:end]),
			From:             sendGridAddress{Email: e.config.FromAddress, Name: e.config.FromName},
			Subject:          msg.Title,
			Content: []sendGridContent{
				{Type: "text/plain", Value: text},
				{Type: "text/html", Value: html},
			},
			CustomArgs: map[string]string{
				"notification_id": msg.NotificationID,
				"org_id":          msg.OrgID,
			},
		}
		if err := e.post(ctx, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func personalizations(recipients []entity.Recipient) []sendGridPersonalization {
	out := make([]sendGridPersonalization, 0, len(recipients))
	for _, r := range recipients {
		out = append(out, sendGridPersonalization{To: []sendGridAddress{{Email: r.Email, Name: r.Name}}})
	}
	return out
}

func (e *EmailSender) post(ctx context.Context, payload sendGridPayload) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return checkResponse("sendgrid", resp)
}

type emailView struct {
	Lang        string
	Dir         string
	Title       string
	Body        string
	ActionURL   string
	ActionLabel string
}

var actionLabels = map[entity.Locale]string{
	entity.LocaleEN: "View details",
	entity.LocaleAR: "عرض التفاصيل",
}

func renderEmail(msg notify.Message, actionURL string) (string, error) {
	locale := msg.Locale.OrDefault()
	view := emailView{
		Lang:        string(locale),
		Dir:         "ltr",
		Title:       msg.Title,
		Body:        msg.Body,
		ActionURL:   actionURL,
		ActionLabel: actionLabels[locale],
	}
	if locale == entity.LocaleAR {
		view.Dir = "rtl"
	}
	if view.ActionLabel == "" {
		view.ActionLabel = actionLabels[entity.DefaultLocale]
	}

	var buf bytes.Buffer
	if err := emailTmpl.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var emailTmpl = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}" dir="{{.Dir}}">
<head>
<meta charset="utf-8">
<style>
  body { font-family: -apple-system, Segoe UI, Tahoma, sans-serif; background: #f5f6f8; margin: 0; padding: 24px; }
  .card { max-width: 560px; margin: 0 auto; background: #ffffff; border-radius: 8px; padding: 24px; }
  h1 { font-size: 20px; color: #0f172a; margin: 0 0 12px; }
  p { font-size: 15px; color: #334155; line-height: 1.5; }
  a.button { display: inline-block; margin-top: 16px; padding: 10px 20px; background: #0061a8; color: #ffffff; border-radius: 6px; text-decoration: none; }
</style>
</head>
<body>
<div class="card">
  <h1>{{.Title}}</h1>
  <p class="body">{{.Body}}</p>
  {{if .ActionURL}}<a class="button" href="{{.ActionURL}}">{{.ActionLabel}}</a>{{end}}
</div>
</body>
</html>`))
