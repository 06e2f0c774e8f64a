// Copyright (c) 2026 OpenG7. All rights reserved.

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Security: JWT issuers and cookie configuration.
  - Streaming: SSE heartbeat cadence.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "openg7-core"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of
	// the response. SSE streaming routes opt out via http.ResponseController.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Authentication & Sessions

const (
	// AuthIssuer is the standard 'iss' claim in JWTs.
	AuthIssuer = "openg7.org"

	// RefreshTokenCookieName is the name of the cookie that stores the refresh token.
	RefreshTokenCookieName = "refresh_token"

	// RefreshTokenCookiePath is the scoped path for the refresh token cookie.
	RefreshTokenCookiePath = "/api/v1/auth"

	// SessionHistoryCap is the maximum number of sessions retained per user.
	// The oldest entries are evicted once the cap is exceeded.
	SessionHistoryCap = 10

	// SessionTouchInterval throttles lastSeenAt writes: a session is only
	// re-persisted if at least this much time has elapsed since the last touch.
	SessionTouchInterval = 60 * time.Second
)

// # Feed Streaming (SSE)

const (
	// StreamHeartbeatInterval is the cadence of keep-alive comment frames
	// written to every open SSE client.
	StreamHeartbeatInterval = 15 * time.Second

	// FeedIdempotencyTTL is how long an Idempotency-Key replay window stays open.
	FeedIdempotencyTTL = 24 * time.Hour
)

// # Alert Pipeline

const (
	// SavedSearchScanCap bounds how many saved searches are evaluated per run.
	SavedSearchScanCap = 50

	// AlertDedupWindow suppresses a second alert from the same saved search
	// within this window.
	AlertDedupWindow = 24 * time.Hour

	// AlertBatchSize bounds bulk read/delete mutations on user alerts.
	AlertBatchSize = 100
)

// # HTTP Header Identifiers

const (
	HeaderXRequestID     = "X-Request-ID"
	HeaderXRealIP        = "X-Real-IP"
	HeaderXForwardedFor  = "X-Forwarded-For"
	HeaderOrigin         = "Origin"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldMeta    = "meta"
	FieldError   = "error"
	FieldCode    = "code"
	FieldDetails = "details"
	FieldCursor  = "cursor"
	FieldMessage = "message"
	FieldStatus  = "status"
	FieldChecks  = "checks"
)

// # Database Schemas

const (
	SchemaUsers  = "users"
	SchemaFeed   = "feed"
	SchemaAlerts = "alerts"
)

// # Redis Prefixes (Cache Taxonomy)

const (
	RedisPrefixRefreshToken = "auth:refresh_token:"
	RedisPrefixResetToken   = "auth:reset_token:"
	RedisPrefixVerifyToken  = "auth:verify_token:"
	RedisPrefixEmailChange  = "auth:email_change:"
	RedisPrefixSessions     = "auth:sessions:"
	RedisPrefixFeedIdem     = "feed:idem:"
)
