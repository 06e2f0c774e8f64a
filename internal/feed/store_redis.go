// Copyright (c) 2026 OpenG7. All rights reserved.

package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/OpenG7/openg7-platform-sub001/internal/platform/constants"
)

// RedisIdempotencyRepository implements IdempotencyRepository using Redis.
//
// A replay window is one key mapping (userID, Idempotency-Key) to the feed
// item created by the first request; the TTL bounds how long clients may
// safely retry.
type RedisIdempotencyRepository struct {
	client *redis.Client
}

// NewIdempotencyRepository creates a Redis-backed idempotency store.
func NewIdempotencyRepository(client *redis.Client) *RedisIdempotencyRepository {
	return &RedisIdempotencyRepository{client: client}
}

/*
Get returns the recorded item id for the user's key.

Description: Returns "" (not an error) when no replay window is open.

Parameters:
  - context: context.Context
  - userID: string
  - key: string

Returns:
  - string: Item id, or ""
  - error: Connectivity failures
*/
func (repository *RedisIdempotencyRepository) Get(context context.Context, userID, key string) (string, error) {

	// Use constants for key prefix
	redisKey := fmt.Sprintf("%s%s:%s", constants.RedisPrefixFeedIdem, userID, key)

	itemID, err := repository.client.Get(context, redisKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis_feed_idem_get_failed: %w", err)
	}

	return itemID, nil
}

/*
Set opens a replay window for the user's key.

Parameters:
  - context: context.Context
  - userID: string
  - key: string
  - itemID: string
  - ttl: time.Duration

Returns:
  - error: Connectivity failures
*/
func (repository *RedisIdempotencyRepository) Set(context context.Context, userID, key, itemID string, ttl time.Duration) error {

	redisKey := fmt.Sprintf("%s%s:%s", constants.RedisPrefixFeedIdem, userID, key)

	if err := repository.client.Set(context, redisKey, itemID, ttl).Err(); err != nil {
		return fmt.Errorf("redis_feed_idem_set_failed: %w", err)
	}

	return nil
}
