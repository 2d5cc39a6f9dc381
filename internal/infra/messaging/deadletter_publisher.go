// Package messaging publishes dead-lettered channel sends to Kafka so other
// services can react to delivery failures.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
	"github.com/EngSayh/Fixzit-sub003/internal/observability/logging"
)

// DefaultDeadLetterTopic is used when no topic is configured.
const DefaultDeadLetterTopic = "notifications.dead-letter"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// deadLetterEvent is the JSON value written for each entry.
type deadLetterEvent struct {
	ID             string    `json:"id"`
	OrgID          string    `json:"orgId"`
	NotificationID string    `json:"notificationId"`
	Channel        string    `json:"channel"`
	Attempts       int       `json:"attempts"`
	LastError      string    `json:"lastError"`
	CreatedAt      time.Time `json:"createdAt"`
}

// DeadLetterPublisher writes dead-letter entries to a Kafka topic.
type DeadLetterPublisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewDeadLetterPublisher creates a publisher writing to topic on brokers.
func NewDeadLetterPublisher(brokers []string, topic string, logger *slog.Logger) *DeadLetterPublisher {
	if topic == "" {
		topic = DefaultDeadLetterTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newDeadLetterPublisher(w, topic, logger)
}

func newDeadLetterPublisher(w messageWriter, topic string, logger *slog.Logger) *DeadLetterPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeadLetterPublisher{writer: w, topic: topic, logger: logger}
}

// InsertMany publishes one message per entry, keyed by org, notification and
// channel so retries of the same send land on the same partition. Entries
// without an org are dropped.
func (p *DeadLetterPublisher) InsertMany(ctx context.Context, entries []entity.DeadLetterEntry) error {
	msgs := make([]kafka.Message, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.OrgID) == "" {
			logging.Critical(ctx, p.logger, "dead letter without org dropped",
				slog.String("notification_id", e.NotificationID),
				slog.String("channel", string(e.Channel)))
			continue
		}
		value, err := json.Marshal(deadLetterEvent{
			ID:             e.ID,
			OrgID:          e.OrgID,
			NotificationID: e.NotificationID,
			Channel:        string(e.Channel),
			Attempts:       e.Attempts,
			LastError:      e.LastError,
			CreatedAt:      e.CreatedAt.UTC(),
		})
		if err != nil {
			return fmt.Errorf("marshal dead letter %s: %w", e.NotificationID, err)
		}
		msgs = append(msgs, kafka.Message{
			Topic: p.topic,
			Key:   []byte(e.OrgID + "/" + e.NotificationID + "/" + string(e.Channel)),
			Value: value,
			Headers: []kafka.Header{
				{Key: "org_id", Value: []byte(e.OrgID)},
				{Key: "channel", Value: []byte(e.Channel)},
			},
		})
	}
	if len(msgs) == 0 {
		return nil
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		var writeErrs kafka.WriteErrors
		if errors.As(err, &writeErrs) {
			return fmt.Errorf("publish dead letters: %d of %d failed: %w", writeErrs.Count(), len(msgs), err)
		}
		return fmt.Errorf("publish dead letters: %w", err)
	}
	p.logger.DebugContext(ctx, "dead letters published",
		slog.String("topic", p.topic),
		slog.Int("count", len(msgs)))
	return nil
}

// Close flushes pending writes and closes the connection.
func (p *DeadLetterPublisher) Close() error {
	return p.writer.Close()
}
