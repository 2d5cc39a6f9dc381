package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"time"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
	"github.com/EngSayh/Fixzit-sub003/internal/usecase/notify"
)

const (
	// DefaultPushEndpoint is the Expo push API.
	DefaultPushEndpoint = "https://exp.host/--/api/v2/push/send"

	// Expo accepts at most 100 messages per request.
	maxPushBatch = 100

	maxPushTitleLength = 178
	maxPushBodyLength  = 1024
	truncationSuffix   = "..."

	deviceNotRegistered = "DeviceNotRegistered"
)

// TokenStore holds the push tokens registered for each user.
type TokenStore interface {
	RemoveToken(ctx context.Context, orgID, userID, token string) error
}

// PushConfig configures a PushSender.
type PushConfig struct {
	// Endpoint defaults to DefaultPushEndpoint.
	Endpoint string

	// AccessToken is sent as a bearer token when push security is enabled on the project.
	AccessToken string

	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// PushSender delivers notifications through an Expo-compatible push gateway.
// Tokens the gateway reports as no longer registered are removed from the
// TokenStore.
type PushSender struct {
	config     PushConfig
	httpClient *http.Client
	limiter    *RateLimiter
	tokens     TokenStore
	logger     *slog.Logger
}

// NewPushSender creates a PushSender. tokens may be nil, in which case invalid
// tokens are only logged.
func NewPushSender(config PushConfig, tokens TokenStore, logger *slog.Logger) *PushSender {
	if config.Endpoint == "" {
		config.Endpoint = DefaultPushEndpoint
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PushSender{
		config:     config,
		httpClient: newHTTPClient(config.Timeout),
		limiter:    NewRateLimiter(config.RequestsPerSecond, config.Burst),
		tokens:     tokens,
		logger:     logger,
	}
}

// expoMessage is one entry of the push request array.
type expoMessage struct {
	To       string         `json:"to"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Data     map[string]any `json:"data,omitempty"`
	Priority string         `json:"priority"`
	Sound    string         `json:"sound,omitempty"`
}

// expoResponse holds one ticket per message, in request order.
type expoResponse struct {
	Data []expoTicket `json:"data"`
}

type expoTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details"`
}

// Channel implements notify.Sender.
func (p *PushSender) Channel() entity.Channel { return entity.ChannelPush }

// Send implements notify.Sender.
func (p *PushSender) Send(ctx context.Context, msg notify.Message, recipients []entity.Recipient) error {
	data := maps.Clone(msg.Data)
	if data == nil {
		data = make(map[string]any, 2)
	}
	data["notificationId"] = msg.NotificationID
	if msg.DeepLink != "" {
		data["url"] = msg.DeepLink
	}

	var errs []error
	for start := 0; start < len(recipients); start += maxPushBatch {
		end := min(start+maxPushBatch, len(recipients))
		if err := p.sendBatch(ctx, msg, data, recipients[start:end]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *PushSender) sendBatch(ctx context.Context, msg notify.Message, data map[string]any, batch []entity.Recipient) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	messages := make([]expoMessage, 0, len(batch))
	for _, r := range batch {
		messages = append(messages, expoMessage{
			To:       r.PushToken,
			Title:    truncate(msg.Title, maxPushTitleLength, truncationSuffix),
			Body:     truncate(msg.Body, maxPushBodyLength, truncationSuffix),
			Data:     data,
			Priority: expoPriority(msg.Priority),
			Sound:    "default",
		})
	}

	jsonData, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if p.config.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.AccessToken)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkResponse("push", resp); err != nil {
		return err
	}

	var out expoResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode push response: %w", err)
	}
	if len(out.Data) != len(batch) {
		return fmt.Errorf("push gateway returned %d tickets for %d messages", len(out.Data), len(batch))
	}

	var errs []error
	for i, ticket := range out.Data {
		if ticket.Status == "ok" {
			continue
		}
		r := batch[i]
		if ticket.Details.Error == deviceNotRegistered {
			p.removeToken(ctx, msg.OrgID, r)
			errs = append(errs, &RecipientError{UserID: r.UserID, Err: &InvalidTokenError{UserID: r.UserID, Token: r.PushToken}})
			continue
		}
		errs = append(errs, &RecipientError{
			UserID: r.UserID,
			Err:    fmt.Errorf("push rejected (%s): %s", ticket.Details.Error, ticket.Message),
		})
	}
	return errors.Join(errs...)
}

func (p *PushSender) removeToken(ctx context.Context, orgID string, r entity.Recipient) {
	logger := p.logger.With(slog.String("org_id", orgID), slog.String("user_id", r.UserID))
	if p.tokens == nil {
		logger.WarnContext(ctx, "push token not registered; no token store to clean up")
		return
	}
	if err := p.tokens.RemoveToken(ctx, orgID, r.UserID, r.PushToken); err != nil {
		logger.ErrorContext(ctx, "failed to remove invalid push token", slog.Any("error", err))
		return
	}
	logger.InfoContext(ctx, "removed invalid push token")
}

func expoPriority(p entity.Priority) string {
	switch p {
	case entity.PriorityHigh:
		return "high"
	case entity.PriorityLow:
		return "normal"
	default:
		return "default"
	}
}
