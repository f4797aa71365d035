package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "editor:notifications:"

// RedisNotifier publishes notifications to a per-session Redis channel so a
// separate delivery tier (websocket gateway, SSE fanout) can push them to
// the browser.
type RedisNotifier struct {
	rdb *redis.Client
}

// NewRedisClient creates and verifies a Redis client connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return rdb, nil
}

// NewRedisNotifier wraps an established Redis client.
func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

// Publish sends the notification JSON to the session's channel.
func (r *RedisNotifier) Publish(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := r.rdb.Publish(ctx, channelPrefix+n.SessionID, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Channel returns the Redis channel name for a session, for subscribers.
func Channel(sessionID string) string {
	return channelPrefix + sessionID
}

var _ Notifier = (*RedisNotifier)(nil)
