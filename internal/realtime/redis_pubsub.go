package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aura-webinar/coordinator/internal/models"
)

const (
	channelPrefix = "session:"
	eventTTL      = 5 * time.Second
)

// redisPayload is the message published to Redis for cross-instance delivery.
type redisPayload struct {
	Origin string         `json:"origin"`
	Events []models.Event `json:"events"`
	At     int64          `json:"at"`
}

// RedisPubSub implements RelayPublisher and RelaySubscriber using Redis pub/sub.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for session events.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, logger: logger}
}

// ChannelName returns the Redis channel carrying a session's events.
func ChannelName(sessionID string) string { return channelPrefix + sessionID }

// PublishSessionEvents publishes one batch to the session's channel. The batch stays one message
// so subscribers apply it atomically and in order.
func (r *RedisPubSub) PublishSessionEvents(ctx context.Context, sessionID, origin string, events []models.Event) error {
	body, err := json.Marshal(redisPayload{Origin: origin, Events: events, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, ChannelName(sessionID), body).Err()
}

// SubscribeSession subscribes to a session's channel and calls handler for each batch.
// Returns a cancel function to stop the subscription.
func (r *RedisPubSub) SubscribeSession(sessionID string, handler func(origin string, events []models.Event)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, ChannelName(sessionID))
	if _, err = pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var p redisPayload
				if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
					r.logger.Warn("invalid relay payload", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				handler(p.Origin, p.Events)
			}
		}
	}()
	return cancelCtx, nil
}
