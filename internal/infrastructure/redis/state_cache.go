package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"auction-core/internal/domain"

	"github.com/go-redis/redis/v8"
)

// RedisStateCache is a write-through copy of each auction's committed price
// and status. The ledger owns the truth; the cache serves cheap polling reads
// without touching MySQL.
type RedisStateCache struct {
	client *redis.Client
}

func NewRedisStateCache(client *redis.Client) *RedisStateCache {
	return &RedisStateCache{client: client}
}

func (r *RedisStateCache) SetCurrentPrice(ctx context.Context, auctionID string, price float64) error {
	key := fmt.Sprintf("auction:%s:price", auctionID)
	return r.client.Set(ctx, key, fmt.Sprintf("%.2f", price), 0).Err()
}

func (r *RedisStateCache) GetCurrentPrice(ctx context.Context, auctionID string) (float64, bool, error) {
	key := fmt.Sprintf("auction:%s:price", auctionID)

	result, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}

	price, err := strconv.ParseFloat(result, 64)
	if err != nil {
		return 0, false, err
	}
	return price, true, nil
}

func (r *RedisStateCache) SetStatus(ctx context.Context, auctionID string, status domain.AuctionStatus) error {
	key := fmt.Sprintf("auction:%s:status", auctionID)
	return r.client.Set(ctx, key, int(status), 0).Err()
}

func (r *RedisStateCache) GetStatus(ctx context.Context, auctionID string) (domain.AuctionStatus, bool, error) {
	key := fmt.Sprintf("auction:%s:status", auctionID)

	result, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.AuctionOpen, false, nil
		}
		return domain.AuctionOpen, false, err
	}

	status, err := strconv.Atoi(result)
	if err != nil {
		return domain.AuctionOpen, false, err
	}

	return domain.AuctionStatus(status), true, nil
}
