// Package kafka mirrors ticket lifecycle events onto a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/garyjia/procurement-bot/internal/application/port"
	"github.com/garyjia/procurement-bot/internal/domain/event"
)

// Publisher writes messages to one topic.
type Publisher struct {
	writer *kafka.Writer
}

var _ port.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a publisher for topic on brokers.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Publish writes one message. Messages with the same key land on the same
// partition, so one ticket's events stay ordered.
func (p *Publisher) Publish(ctx context.Context, key string, value []byte) error {
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value}); err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// ParseBrokers splits "host1:9092,host2:9092" into a list.
func ParseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// EventHandler returns a dispatcher handler that serializes each event and
// publishes it keyed by ticket number. Publishing is best effort: failures
// are logged and never fail the dispatch.
func EventHandler(publisher port.EventPublisher, logger *zap.Logger) func(ctx context.Context, evt *event.Event) error {
	return func(ctx context.Context, evt *event.Event) error {
		body, err := json.Marshal(evt)
		if err != nil {
			logger.Error("Failed to encode ticket event",
				zap.String("event_id", evt.ID),
				zap.Error(err))
			return nil
		}

		if err := publisher.Publish(ctx, evt.TicketNumber, body); err != nil {
			logger.Warn("Failed to publish ticket event",
				zap.String("event_id", evt.ID),
				zap.String("event_type", evt.Type.String()),
				zap.String("ticket_number", evt.TicketNumber),
				zap.Error(err))
			return nil
		}

		logger.Debug("Ticket event published",
			zap.String("event_id", evt.ID),
			zap.String("event_type", evt.Type.String()))
		return nil
	}
}
