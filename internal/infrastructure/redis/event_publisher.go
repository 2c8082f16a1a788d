package redis

import (
	"context"
	"encoding/json"

	"auction-core/internal/domain"

	"github.com/go-redis/redis/v8"
)

const eventsChannel = "auction_events"

// RedisEventPublisher relays hub events to other instances over pub/sub.
// Redis preserves per-channel publish order, and the ledger publishes while
// holding the per-auction lock, so remote hubs see the same per-auction order
// as local watchers.
type RedisEventPublisher struct {
	client *redis.Client
}

func NewRedisEventPublisher(client *redis.Client) *RedisEventPublisher {
	return &RedisEventPublisher{client: client}
}

func (r *RedisEventPublisher) PublishEvent(ctx context.Context, event *domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, eventsChannel, payload).Err()
}
