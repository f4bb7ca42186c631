package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/pkg/messaging"
)

// BrokerCheck verifies the broker end to end by subscribing to a channel and
// waiting for a message it published there itself.
type BrokerCheck struct {
	broker  messaging.Broker
	channel string
	timeout time.Duration
}

func NewBrokerCheck(broker messaging.Broker, channel string, timeout time.Duration) *BrokerCheck {
	return &BrokerCheck{broker: broker, channel: channel, timeout: timeout}
}

func (c *BrokerCheck) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msgs, err := c.broker.Subscribe(ctx, c.channel)
	if err != nil {
		return err
	}

	token := uuid.NewString()
	if err := c.broker.Publish(ctx, c.channel, token); err != nil {
		return fmt.Errorf("failed to publish health message: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("health message not received: %w", ctx.Err())
		case raw, ok := <-msgs:
			if !ok {
				return errors.New("broker subscription closed")
			}
			var got string
			if json.Unmarshal(raw, &got) == nil && got == token {
				return nil
			}
		}
	}
}
