package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "chat:"

// RedisNotifier publishes change signals on Redis so that every process
// serving live feeds (API server and chat server) sees them.
type RedisNotifier struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisNotifier creates a RedisNotifier.
func NewRedisNotifier(client *redis.Client, logger *slog.Logger) *RedisNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisNotifier{client: client, logger: logger.With("component", "redis_notifier")}
}

// ChannelFor returns the pub/sub channel of a conversation.
func ChannelFor(conversationID string) string {
	return channelPrefix + conversationID
}

// Notify publishes to chat:<conversationID>.
func (n *RedisNotifier) Notify(ctx context.Context, conversationID string) error {
	if err := n.client.Publish(ctx, ChannelFor(conversationID), "changed").Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", conversationID, err)
	}
	return nil
}

// Forward relays every chat:* publication into the local hub until ctx ends.
func (n *RedisNotifier) Forward(ctx context.Context, hub *Hub) error {
	pubsub := n.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	// 等待订阅确认，连接失败时尽早返回
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe: %w", err)
	}
	n.logger.Info("forwarding redis chat notifications")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			id := strings.TrimPrefix(msg.Channel, channelPrefix)
			if err := hub.Notify(ctx, id); err != nil {
				// hub stopped or ctx cancelled; either way we are shutting down
				return nil
			}
		}
	}
}
