// Copyright (c) 2026 OpenG7. All rights reserved.

/*
Package auth implements account identity for the OpenG7 platform: register,
login, token refresh, logout, email verification, and the password lifecycle
(forgot / reset / change).

# Token Model

Access tokens are short-lived RS256 JWTs carrying the user's id, username,
role, and a session binding (sid, sv). Refresh tokens are opaque random
strings stored hashed in Redis, each mapped to the session it was minted for.
Rotating or revoking a session therefore cuts off both halves at once.

# Layout

  - user.go           Account entity and request payloads
  - constants.go      Token lifetimes and sizes
  - service.go        Identity flows
  - http.go           Route handlers
  - store.go          Repository contracts
  - store_postgres.go Account persistence (users.account)
  - store_redis.go    Token persistence (refresh / reset / verify)
*/
package auth

import (
	"time"

	"github.com/OpenG7/openg7-platform-sub001/internal/platform/sec"
)

// # Entities

// User is a registered OpenG7 account. The password hash never leaves the
// package; profile fields beyond the display name live in users.profile.
type User struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	DisplayName  string       `json:"displayName,omitempty"`
	Role         sec.UserRole `json:"role"`
	IsVerified   bool         `json:"isVerified"`
	PendingEmail string       `json:"pendingEmail,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// RefreshGrant links a refresh token to the session it was minted for. The
// grant is stored in Redis keyed by the token's hash.
type RefreshGrant struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

// # Request Payloads

// RegisterInput carries the fields accepted on account creation.
type RegisterInput struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// LoginInput carries credentials. Identifier accepts an email address or a
// username.
type LoginInput struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// # Results

// Credentials is the pair handed back by every flow that mints a session:
// login, refresh, and change-password.
type Credentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"-"`
	User         *User  `json:"user"`
}
