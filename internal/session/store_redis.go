// Copyright (c) 2026 OpenG7. All rights reserved.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/OpenG7/openg7-platform-sub001/internal/platform/constants"
)

// RedisStore implements Persistence using one Redis key per user.
//
// Records are small (history is capped) and read on every authenticated
// request, which is exactly the access pattern Redis is kept around for.
// Keys carry no TTL: session history must survive until explicitly rotated.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed session record store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

/*
Get loads the session record stored under auth:sessions:<userID>.

Description: A missing key yields a pristine record, per the Persistence
contract.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *Record: Stored or pristine state
  - error: Connectivity or decode failures
*/
func (store *RedisStore) Get(context context.Context, userID string) (*Record, error) {

	// Use constants for key prefix
	key := constants.RedisPrefixSessions + userID

	payload, err := store.client.Get(context, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return NewRecord(), nil
		}
		return nil, fmt.Errorf("redis_sessions_get_failed: %w", err)
	}

	var record Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("redis_sessions_decode_failed: %w", err)
	}

	// Guard against records written before versioning existed.
	if record.Version < DefaultVersion {
		record.Version = DefaultVersion
	}

	return &record, nil
}

/*
Set persists the session record under auth:sessions:<userID>.

Parameters:
  - context: context.Context
  - userID: string
  - record: *Record

Returns:
  - error: Connectivity or encode failures
*/
func (store *RedisStore) Set(context context.Context, userID string, record *Record) error {

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("redis_sessions_encode_failed: %w", err)
	}

	key := constants.RedisPrefixSessions + userID

	// No TTL: the record must outlive individual tokens.
	if err := store.client.Set(context, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("redis_sessions_set_failed: %w", err)
	}

	return nil
}
