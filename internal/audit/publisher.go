// Package audit publishes security-relevant events to Kafka. The publisher is
// optional: a nil *Publisher is safe to pass around and degrades to log-only
// behavior at call sites.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"cortex/internal/platform/kafka/producer"
)

// Sink is the subset of the Kafka producer the publisher needs.
type Sink interface {
	ProduceAsync(msg *producer.Message) error
}

// Publisher serializes events and hands them to the Kafka producer
// asynchronously so the request hot path never blocks on broker I/O.
type Publisher struct {
	sink   Sink
	topic  string
	logger *slog.Logger
}

// NewPublisher creates an audit publisher writing to the given topic.
func NewPublisher(sink Sink, topic string, logger *slog.Logger) *Publisher {
	return &Publisher{sink: sink, topic: topic, logger: logger}
}

// Emit publishes an event. Events are keyed by user ID so per-user ordering is
// preserved across partitions.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if p == nil || p.sink == nil {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	msg := &producer.Message{
		Topic: p.topic,
		Key:   []byte(event.UserID),
		Value: value,
	}
	if err := p.sink.ProduceAsync(msg); err != nil {
		if p.logger != nil {
			p.logger.WarnContext(ctx, "failed to publish audit event",
				"action", event.Action,
				"error", err,
			)
		}
		return err
	}
	return nil
}
