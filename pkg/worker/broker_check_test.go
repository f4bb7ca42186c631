package worker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	redisbroker "github.com/jwalitptl/clinic-api/pkg/messaging/redis"
)

func TestBrokerCheckRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	check := NewBrokerCheck(redisbroker.NewRedisBrokerFromClient(client, zerolog.Nop()), "clinic.events.health", 2*time.Second)
	assert.NoError(t, check.Ping(context.Background()))
}

func TestBrokerCheckFailsWhenBrokerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	check := NewBrokerCheck(redisbroker.NewRedisBrokerFromClient(client, zerolog.Nop()), "clinic.events.health", time.Second)
	assert.Error(t, check.Ping(context.Background()))
}

type silentBroker struct{}

func (silentBroker) Publish(context.Context, string, interface{}) error { return nil }
func (silentBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}
func (silentBroker) Close() error { return nil }

func TestBrokerCheckTimesOut(t *testing.T) {
	check := NewBrokerCheck(silentBroker{}, "clinic.events.health", 20*time.Millisecond)
	assert.ErrorIs(t, check.Ping(context.Background()), context.DeadlineExceeded)
}
