package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

type outboxFunc func(ctx context.Context, event *model.OutboxEvent) error

func (f outboxFunc) Create(ctx context.Context, event *model.OutboxEvent) error { return f(ctx, event) }

type publisherFunc func(ctx context.Context, eventType string, payload interface{}) error

func (f publisherFunc) Publish(ctx context.Context, eventType string, payload interface{}) error {
	return f(ctx, eventType, payload)
}

func TestOutboxPublisherStoresEvent(t *testing.T) {
	var stored *model.OutboxEvent
	pub := NewOutboxPublisher(outboxFunc(func(_ context.Context, e *model.OutboxEvent) error {
		stored = e
		return nil
	}))

	require.NoError(t, pub.Publish(context.Background(), model.EventPaymentCreate, map[string]interface{}{"id": "pay1", "amount": 12.5}))
	require.NotNil(t, stored)
	assert.Equal(t, model.EventPaymentCreate, stored.EventType)
	assert.JSONEq(t, `{"id":"pay1","amount":12.5}`, string(stored.Payload))
}

func TestOutboxPublisherRejectsUnencodable(t *testing.T) {
	pub := NewOutboxPublisher(outboxFunc(func(context.Context, *model.OutboxEvent) error { return nil }))
	assert.Error(t, pub.Publish(context.Background(), "X", make(chan int)))
}

func TestNewMessageKeepsRawPayload(t *testing.T) {
	msg, err := NewMessage("PATIENT_DELETE", json.RawMessage(`{"id":"p1"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"id":"p1"}`, string(msg.Payload))
}

func TestWithMetrics(t *testing.T) {
	m := metrics.New("test", prometheus.NewRegistry())
	fail := true
	pub := WithMetrics(publisherFunc(func(context.Context, string, interface{}) error {
		if fail {
			return errors.New("down")
		}
		return nil
	}), m)

	assert.Error(t, pub.Publish(context.Background(), "PATIENT_CREATE", nil))
	fail = false
	assert.NoError(t, pub.Publish(context.Background(), "PATIENT_CREATE", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("PATIENT_CREATE", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("PATIENT_CREATE", "success")))
}
