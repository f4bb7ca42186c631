package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/pkg/messaging"
)

func TestPublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	broker := NewRedisBrokerFromClient(client, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := broker.Subscribe(ctx, "clinic.events")
	require.NoError(t, err)

	pub := messaging.NewBrokerPublisher(broker, "clinic.events")
	require.NoError(t, pub.Publish(ctx, "PATIENT_CREATE", map[string]string{"id": "p1"}))

	select {
	case raw := <-msgs:
		var msg messaging.Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, "PATIENT_CREATE", msg.Type)
		assert.JSONEq(t, `{"id":"p1"}`, string(msg.Payload))
		assert.False(t, msg.OccurredAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-msgs:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewRedisBroker(t *testing.T) {
	mr := miniredis.RunT(t)
	url := "redis://" + mr.Addr()

	b, err := NewRedisBroker(Config{URL: url}, zerolog.Nop())
	require.NoError(t, err)
	assert.NoError(t, b.Publish(context.Background(), "ch", "hello"))
	assert.NoError(t, b.Close())

	mr.Close()
	_, err = NewRedisBroker(Config{URL: url}, zerolog.Nop())
	assert.Error(t, err)
}

func TestSharedClientStaysOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, NewRedisBrokerFromClient(client, zerolog.Nop()).Close())
	assert.NoError(t, client.Ping(context.Background()).Err())
}
