package events

import (
	"context"
	"encoding/json"
	"fmt"

	"lensrelay/internal/core/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the pub/sub channel lifecycle events are published on.
const DefaultChannel = "lensrelay:sessions"

// envelope tags an event with the instance that produced it.
type envelope struct {
	InstanceID string                `json:"instance_id"`
	Event      domain.LifecycleEvent `json:"event"`
}

// RedisBus mirrors lifecycle events across relay instances.
type RedisBus struct {
	client     *redis.Client
	instanceID string
	channel    string
	logger     *zap.SugaredLogger
}

func NewRedisBus(client *redis.Client, instanceID, channel string, logger *zap.SugaredLogger) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &RedisBus{
		client:     client,
		instanceID: instanceID,
		channel:    channel,
		logger:     logger,
	}
}

// Publish publishes an event to the bus
func (b *RedisBus) Publish(ctx context.Context, event domain.LifecycleEvent) error {
	data, err := json.Marshal(envelope{InstanceID: b.instanceID, Event: event})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debugw("Published lifecycle event",
		"type", string(event.Type),
		"session_id", string(event.SessionID),
	)
	return nil
}

// Subscribe delivers events published by other instances to handler until
// ctx is cancelled.
func (b *RedisBus) Subscribe(ctx context.Context, handler func(domain.LifecycleEvent)) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			event, remote, err := b.decode(msg.Payload)
			if err != nil {
				b.logger.Warnw("Failed to decode event", "error", err)
				continue
			}
			if remote {
				handler(event)
			}
		}
	}
}

// decode parses a payload and reports whether another instance sent it.
func (b *RedisBus) decode(payload string) (domain.LifecycleEvent, bool, error) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return domain.LifecycleEvent{}, false, err
	}
	return env.Event, env.InstanceID != b.instanceID, nil
}

// Ping reports whether redis answers.
func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (b *RedisBus) Close() error {
	return b.client.Close()
}
