package events

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var _ Notifier = (*RedisNotifier)(nil)

// RedisNotifier publishes events on a redis channel.
type RedisNotifier struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisNotifier(client redis.UniversalClient, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (r *RedisNotifier) Notify(ctx context.Context, e Event) {
	if err := r.client.Publish(ctx, r.channel, e.encode()).Err(); err != nil {
		logrus.Warnf("failed to publish event %s for %s: %v", e.Type, e.Context, err)
	}
}
