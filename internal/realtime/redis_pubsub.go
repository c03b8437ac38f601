package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "live:event:"
	publishTimeout = 5 * time.Second
)

// RedisBus is a Bus over Redis pub/sub.
type RedisBus struct {
	client redis.UniversalClient
	logger *zap.Logger
}

// NewRedisBus creates a Redis pub/sub bus.
func NewRedisBus(client redis.UniversalClient, logger *zap.Logger) *RedisBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBus{client: client, logger: logger}
}

func channel(eventID string) string { return channelPrefix + eventID }

// Publish sends msg on the event's channel.
func (r *RedisBus) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode live message: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, channel(msg.EventID), body).Err()
}

// Subscribe calls handler for each message on the event's channel until
// cancel is called.
func (r *RedisBus) Subscribe(eventID string, handler func(Message)) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, channel(eventID))
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", eventID, err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					r.logger.Warn("live message not decodable", zap.String("channel", m.Channel), zap.Error(err))
					continue
				}
				handler(msg)
			}
		}
	}()
	return cancel, nil
}
