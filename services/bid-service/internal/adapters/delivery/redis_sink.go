package delivery

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/floroz/gembid/services/bid-service/internal/domain/notifications"
)

// RedisPublisher is the slice of *redis.Client the sink needs
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSink publishes notifications on a per-user Pub/Sub channel
type RedisSink struct {
	client RedisPublisher
	prefix string
}

// NewRedisSink creates a sink publishing to "<prefix>:<user id>".
// An empty prefix defaults to "notifications".
func NewRedisSink(client RedisPublisher, prefix string) *RedisSink {
	if prefix == "" {
		prefix = "notifications"
	}
	return &RedisSink{client: client, prefix: prefix}
}

// Channel returns the Pub/Sub channel for a user
func (s *RedisSink) Channel(userID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, userID)
}

func (s *RedisSink) Send(ctx context.Context, n *notifications.Notification) error {
	body, err := marshal(n)
	if err != nil {
		return err
	}
	if err := s.client.Publish(ctx, s.Channel(n.UserID), body).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}
