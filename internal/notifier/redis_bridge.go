package notifier

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBridge relays change events over a Redis pub/sub channel.
type RedisBridge struct {
	client  *redis.Client
	channel string
	logger  zerolog.Logger
}

// NewRedisBridge constructs a bridge publishing on "<base>:collections".
func NewRedisBridge(client *redis.Client, channelBase string, logger zerolog.Logger) *RedisBridge {
	if channelBase == "" {
		channelBase = "portal"
	}
	return &RedisBridge{
		client:  client,
		channel: channelBase + ":collections",
		logger:  logger.With().Str("component", "redis_bridge").Logger(),
	}
}

func (b *RedisBridge) Name() string { return "redis" }

func (b *RedisBridge) Publish(ctx context.Context, payload []byte) error {
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Subscribe blocks until the channel subscription is confirmed, then consumes in the background.
func (b *RedisBridge) Subscribe(ctx context.Context, handle func([]byte)) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}

	go func() {
		defer func() { _ = pubsub.Close() }()
		for {
			msg, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || ctx.Err() != nil {
					return
				}
				b.logger.Error().Err(err).Msg("change event redis subscription closed")
				return
			}
			handle([]byte(msg.Payload))
		}
	}()
	return nil
}
