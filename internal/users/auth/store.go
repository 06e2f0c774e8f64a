// Copyright (c) 2026 OpenG7. All rights reserved.

package auth

import (
	"context"
	"time"
)

// # User Data Access

// UserRepository defines the data access contract for user accounts.
type UserRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByEmail returns the account with the given email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *User: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		FindByUsername returns the account with the given username.

		Parameters:
		  - context: context.Context
		  - username: string

		Returns:
		  - *User: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByUsername(context context.Context, username string) (*User, error)

	/*
		Create persists a brand-new user account to the storage.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, user *User) error

	/*
		UpdatePassword replaces only the user's password hash.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - newHash: string

		Returns:
		  - error: Persistence failures
	*/
	UpdatePassword(context context.Context, userID, newHash string) error

	/*
		MarkVerified flips the account's isverified flag to true.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: Persistence failures
	*/
	MarkVerified(context context.Context, userID string) error

	/*
		SoftDelete marks the account as deleted without removing the row.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - error: Persistence failures
	*/
	SoftDelete(context context.Context, id string) error
}

// # Token Data Access

// RefreshTokenRepository stores refresh grants keyed by the token's hash.
// Entries expire with the refresh token lifetime; deleting an entry is how a
// token is rotated or revoked.
type RefreshTokenRepository interface {

	/*
		Set stores a refresh grant under the hashed token.

		Parameters:
		  - context: context.Context
		  - tokenHash: string
		  - grant: RefreshGrant
		  - timeToLive: time.Duration

		Returns:
		  - error: Persistence failures
	*/
	Set(context context.Context, tokenHash string, grant RefreshGrant, timeToLive time.Duration) error

	/*
		Get resolves a hashed token into its grant.

		Parameters:
		  - context: context.Context
		  - tokenHash: string

		Returns:
		  - *RefreshGrant: The owning user and session
		  - error: apperr.NotFound when unknown or expired
	*/
	Get(context context.Context, tokenHash string) (*RefreshGrant, error)

	/*
		Delete removes a hashed token. Unknown tokens are a no-op.

		Parameters:
		  - context: context.Context
		  - tokenHash: string

		Returns:
		  - error: Persistence failures
	*/
	Delete(context context.Context, tokenHash string) error
}

// OneTimeTokenRepository stores single-use tokens (password reset, email
// verification) keyed by the token's hash, each resolving to a user ID.
type OneTimeTokenRepository interface {

	/*
		Set stores the owning user ID under the hashed token.

		Parameters:
		  - context: context.Context
		  - tokenHash: string
		  - userID: string
		  - timeToLive: time.Duration

		Returns:
		  - error: Persistence failures
	*/
	Set(context context.Context, tokenHash, userID string, timeToLive time.Duration) error

	/*
		Get resolves a hashed token into the owning user ID.

		Parameters:
		  - context: context.Context
		  - tokenHash: string

		Returns:
		  - string: The owning user ID
		  - error: apperr.NotFound when unknown or expired
	*/
	Get(context context.Context, tokenHash string) (string, error)

	/*
		Delete consumes a hashed token. Unknown tokens are a no-op.

		Parameters:
		  - context: context.Context
		  - tokenHash: string

		Returns:
		  - error: Persistence failures
	*/
	Delete(context context.Context, tokenHash string) error
}
