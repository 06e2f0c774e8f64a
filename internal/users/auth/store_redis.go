// Copyright (c) 2026 OpenG7. All rights reserved.

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/OpenG7/openg7-platform-sub001/internal/platform/apperr"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/constants"
)

// # Refresh Grants

// RedisRefreshTokenRepository implements RefreshTokenRepository using Redis.
// Grants are stored as JSON so the session binding survives round-trips.
type RedisRefreshTokenRepository struct {
	client *redis.Client
}

// NewRefreshTokenRepository creates a Redis-backed RefreshTokenRepository.
func NewRefreshTokenRepository(client *redis.Client) *RedisRefreshTokenRepository {
	return &RedisRefreshTokenRepository{client: client}
}

/*
Set stores a refresh grant under the hashed token with the given TTL.

Parameters:
  - context: context.Context
  - tokenHash: string
  - grant: RefreshGrant
  - timeToLive: time.Duration

Returns:
  - error: Encoding or execution errors
*/
func (repository *RedisRefreshTokenRepository) Set(context context.Context, tokenHash string, grant RefreshGrant, timeToLive time.Duration) error {

	payload, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("redis_refresh_token_encode_failed: %w", err)
	}

	key := constants.RedisPrefixRefreshToken + tokenHash
	if err := repository.client.Set(context, key, payload, timeToLive).Err(); err != nil {
		return fmt.Errorf("redis_refresh_token_set_failed: %w", err)
	}

	return nil
}

/*
Get resolves a hashed refresh token into its grant.

Description: Returns apperr.NotFound if the token is absent or expired.

Parameters:
  - context: context.Context
  - tokenHash: string

Returns:
  - *RefreshGrant: The owning user and session
  - error: Not found or execution errors
*/
func (repository *RedisRefreshTokenRepository) Get(context context.Context, tokenHash string) (*RefreshGrant, error) {

	key := constants.RedisPrefixRefreshToken + tokenHash
	payload, err := repository.client.Get(context, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.NotFound("Refresh token")
		}
		return nil, fmt.Errorf("redis_refresh_token_get_failed: %w", err)
	}

	grant := &RefreshGrant{}
	if err := json.Unmarshal(payload, grant); err != nil {
		return nil, fmt.Errorf("redis_refresh_token_decode_failed: %w", err)
	}

	return grant, nil
}

/*
Delete removes a hashed refresh token. Unknown tokens are a no-op.

Parameters:
  - context: context.Context
  - tokenHash: string

Returns:
  - error: Execution errors
*/
func (repository *RedisRefreshTokenRepository) Delete(context context.Context, tokenHash string) error {

	key := constants.RedisPrefixRefreshToken + tokenHash
	if err := repository.client.Del(context, key).Err(); err != nil {
		return fmt.Errorf("redis_refresh_token_delete_failed: %w", err)
	}

	return nil
}

// # One-Time Tokens

// RedisOneTimeTokenRepository implements OneTimeTokenRepository using Redis.
// The same implementation serves password reset and email verification;
// only the key prefix differs.
type RedisOneTimeTokenRepository struct {
	client *redis.Client
	prefix string
}

// NewResetTokenRepository creates the repository for password reset tokens.
func NewResetTokenRepository(client *redis.Client) *RedisOneTimeTokenRepository {
	return &RedisOneTimeTokenRepository{client: client, prefix: constants.RedisPrefixResetToken}
}

// NewVerificationTokenRepository creates the repository for email
// verification tokens.
func NewVerificationTokenRepository(client *redis.Client) *RedisOneTimeTokenRepository {
	return &RedisOneTimeTokenRepository{client: client, prefix: constants.RedisPrefixVerifyToken}
}

// NewEmailChangeTokenRepository creates the repository for email change
// confirmation tokens (consumed by the account package).
func NewEmailChangeTokenRepository(client *redis.Client) *RedisOneTimeTokenRepository {
	return &RedisOneTimeTokenRepository{client: client, prefix: constants.RedisPrefixEmailChange}
}

/*
Set stores the owning user ID under the hashed token with the given TTL.

Parameters:
  - context: context.Context
  - tokenHash: string
  - userID: string
  - timeToLive: time.Duration

Returns:
  - error: Execution errors
*/
func (repository *RedisOneTimeTokenRepository) Set(context context.Context, tokenHash, userID string, timeToLive time.Duration) error {

	if err := repository.client.Set(context, repository.prefix+tokenHash, userID, timeToLive).Err(); err != nil {
		return fmt.Errorf("redis_one_time_token_set_failed: %w", err)
	}

	return nil
}

/*
Get resolves a hashed token into the owning user ID.

Description: Returns apperr.NotFound if the token is absent or expired.

Parameters:
  - context: context.Context
  - tokenHash: string

Returns:
  - string: The owning user ID
  - error: Not found or execution errors
*/
func (repository *RedisOneTimeTokenRepository) Get(context context.Context, tokenHash string) (string, error) {

	userID, err := repository.client.Get(context, repository.prefix+tokenHash).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperr.NotFound("Token")
		}
		return "", fmt.Errorf("redis_one_time_token_get_failed: %w", err)
	}

	return userID, nil
}

/*
Delete consumes a hashed token. Unknown tokens are a no-op.

Parameters:
  - context: context.Context
  - tokenHash: string

Returns:
  - error: Execution errors
*/
func (repository *RedisOneTimeTokenRepository) Delete(context context.Context, tokenHash string) error {

	if err := repository.client.Del(context, repository.prefix+tokenHash).Err(); err != nil {
		return fmt.Errorf("redis_one_time_token_delete_failed: %w", err)
	}

	return nil
}
