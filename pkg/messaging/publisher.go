package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// BrokerPublisher publishes events straight onto one broker channel.
type BrokerPublisher struct {
	broker  Broker
	channel string
}

func NewBrokerPublisher(broker Broker, channel string) *BrokerPublisher {
	return &BrokerPublisher{broker: broker, channel: channel}
}

func (p *BrokerPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	msg, err := NewMessage(eventType, payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return p.broker.Publish(ctx, p.channel, msg)
}

// OutboxWriter is the slice of the outbox repository the publisher needs.
type OutboxWriter interface {
	Create(ctx context.Context, event *model.OutboxEvent) error
}

// OutboxPublisher stores events in the outbox table; a relay worker later
// moves them onto the broker.
type OutboxPublisher struct {
	repo OutboxWriter
}

func NewOutboxPublisher(repo OutboxWriter) *OutboxPublisher {
	return &OutboxPublisher{repo: repo}
}

func (p *OutboxPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return p.repo.Create(ctx, &model.OutboxEvent{EventType: eventType, Payload: raw})
}

type instrumented struct {
	next    Publisher
	metrics *metrics.Metrics
}

// WithMetrics counts every publish attempt by event type and outcome.
func WithMetrics(next Publisher, m *metrics.Metrics) Publisher {
	return &instrumented{next: next, metrics: m}
}

func (p *instrumented) Publish(ctx context.Context, eventType string, payload interface{}) error {
	err := p.next.Publish(ctx, eventType, payload)
	p.metrics.ObservePublish(eventType, err)
	return err
}
