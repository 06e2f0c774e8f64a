// Copyright (c) 2026 OpenG7. All rights reserved.

package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/OpenG7/openg7-platform-sub001/internal/platform/constants"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/metrics"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/sec"
)

// Service owns the session state machine: creation, validation, rotation,
// and snapshot rendering over a [Persistence] store.
//
// Read-modify-write on a user's record is not serialized across concurrent
// requests; a lost lastSeenAt touch is cosmetic and idle-timeout expiry is
// re-derived on the next read, so last-write-wins is acceptable here.
type Service struct {
	store       Persistence
	idleTimeout time.Duration
	logger      *slog.Logger

	// now is swappable so tests can drive idle-timeout and touch-throttle
	// transitions deterministically.
	now func() time.Time
}

// NewService creates the session service.
//
// idleTimeout <= 0 disables idle expiry entirely.
func NewService(store Persistence, idleTimeout time.Duration, logger *slog.Logger) *Service {
	return &Service{
		store:       store,
		idleTimeout: idleTimeout,
		logger:      logger,
		now:         time.Now,
	}
}

// # Session Lifecycle

/*
Create mints a fresh session at the user's current version and persists it.

Description: The new session is prepended to the history; the least recently
seen entries beyond the cap are evicted.

Parameters:
  - context: context.Context
  - userID: string
  - meta: RequestMeta

Returns:
  - *Session: The newly created session
  - error: Store failures
*/
func (service *Service) Create(context context.Context, userID string, meta RequestMeta) (*Session, error) {

	record, err := service.store.Get(context, userID)
	if err != nil {
		return nil, err
	}

	created, err := service.appendSession(record, meta)
	if err != nil {
		return nil, err
	}

	if err := service.store.Set(context, userID, record); err != nil {
		return nil, err
	}

	return created, nil
}

/*
Validate checks a request's session binding against the stored record.

Description: Implements the full acceptance state machine. As side effects it
may persist an idle-timeout revocation (expiry on read) or a throttled
lastSeenAt touch.

Parameters:
  - context: context.Context
  - userID: string
  - claims: Claims
  - meta: RequestMeta

Returns:
  - Verdict: Valid flag plus rejection reason
  - error: Store failures (callers must fail closed)
*/
func (service *Service) Validate(context context.Context, userID string, claims Claims, meta RequestMeta) (Verdict, error) {

	record, err := service.store.Get(context, userID)
	if err != nil {
		return Verdict{}, err
	}

	// ── 1. Legacy Tokens ──────────────────────────────────────────────────
	// Tokens minted before session binding carry no (sid, sv). They stay
	// valid only while the user's record has never been touched; anything
	// else means rotation happened and the token must be rejected.
	if !claims.Bound() {
		if record.Untouched() {
			return Verdict{Valid: true}, nil
		}
		return Verdict{Reason: RejectMissingClaims}, nil
	}

	// ── 2. Version Check ──────────────────────────────────────────────────
	if claims.Version != record.Version {
		return Verdict{Reason: RejectStaleVersion}, nil
	}

	// ── 3. Session Lookup ─────────────────────────────────────────────────
	current := record.Find(claims.SessionID)
	if current == nil || !current.Active() || current.Version != claims.Version {
		return Verdict{Reason: RejectSessionRevoked}, nil
	}

	currentTime := service.now()

	// ── 4. Idle Expiry (on read) ──────────────────────────────────────────
	if service.idleTimeout > 0 && currentTime.Sub(current.LastSeenAt) >= service.idleTimeout {
		revokedAt := currentTime
		current.RevokedAt = &revokedAt
		current.RevokedReason = RevokeIdleTimeout

		if err := service.store.Set(context, userID, record); err != nil {
			return Verdict{}, err
		}

		return Verdict{Reason: RejectIdleTimeout}, nil
	}

	// ── 5. Throttled Touch ────────────────────────────────────────────────
	// Re-persisting on every request would turn each read into a write, so
	// lastSeenAt only advances once per touch interval.
	if currentTime.Sub(current.LastSeenAt) >= constants.SessionTouchInterval {
		current.LastSeenAt = currentTime
		if current.UserAgent == "" {
			current.UserAgent = meta.UserAgent
		}
		if current.IPAddress == "" {
			current.IPAddress = meta.IPAddress
		}
		record.sortByActivity()

		if err := service.store.Set(context, userID, record); err != nil {
			return Verdict{}, err
		}
	}

	return Verdict{Valid: true}, nil
}

/*
Rotate invalidates every outstanding session and mints one fresh session at
the bumped version ("log out everywhere else").

Parameters:
  - context: context.Context
  - userID: string
  - meta: RequestMeta

Returns:
  - *Session: The sole surviving session
  - int: How many previously active sessions were revoked
  - error: Store failures
*/
func (service *Service) Rotate(context context.Context, userID string, meta RequestMeta) (*Session, int, error) {

	record, err := service.store.Get(context, userID)
	if err != nil {
		return nil, 0, err
	}

	currentTime := service.now()

	// ── 1. Version Bump ───────────────────────────────────────────────────
	// This alone invalidates every outstanding token; the per-session
	// revocation below keeps the snapshot history honest.
	record.Version++

	// ── 2. Mass Revocation ────────────────────────────────────────────────
	revokedCount := 0
	for i := range record.Sessions {
		if record.Sessions[i].Active() {
			revokedAt := currentTime
			record.Sessions[i].RevokedAt = &revokedAt
			record.Sessions[i].RevokedReason = RevokeLogoutOthers
			revokedCount++
		}
	}

	// ── 3. Fresh Session ──────────────────────────────────────────────────
	created, err := service.appendSession(record, meta)
	if err != nil {
		return nil, 0, err
	}

	if err := service.store.Set(context, userID, record); err != nil {
		return nil, 0, err
	}

	service.logger.Info("sessions_rotated",
		slog.String("user_id", userID),
		slog.Int("revoked_count", revokedCount),
		slog.Int64("version", record.Version),
	)

	return created, revokedCount, nil
}

/*
Lookup returns one stored session together with the record's current version.

Parameters:
  - context: context.Context
  - userID: string
  - sessionID: string

Returns:
  - *Session: The stored session, nil when unknown
  - int64: The record's current version
  - error: Store failures
*/
func (service *Service) Lookup(context context.Context, userID, sessionID string) (*Session, int64, error) {

	record, err := service.store.Get(context, userID)
	if err != nil {
		return nil, 0, err
	}

	return record.Find(sessionID), record.Version, nil
}

/*
Revoke invalidates a single session without touching the record version.

Description: Used by logout. Other sessions stay valid because the version is
left alone; only tokens carrying the revoked session id are rejected from now
on. Revoking an already revoked or unknown session is a no-op.

Parameters:
  - context: context.Context
  - userID: string
  - sessionID: string
  - reason: RevokeReason

Returns:
  - error: Store failures
*/
func (service *Service) Revoke(context context.Context, userID, sessionID string, reason RevokeReason) error {

	record, err := service.store.Get(context, userID)
	if err != nil {
		return err
	}

	entry := record.Find(sessionID)
	if entry == nil || !entry.Active() {
		return nil
	}

	revokedAt := service.now()
	entry.RevokedAt = &revokedAt
	entry.RevokedReason = reason

	if err := service.store.Set(context, userID, record); err != nil {
		return err
	}

	service.logger.Info("session_revoked",
		slog.String("user_id", userID),
		slog.String("session_id", sessionID),
		slog.String("reason", string(reason)),
	)

	return nil
}

/*
RevokeAll invalidates every outstanding session without minting a new one.

Description: Used by security cleanups (password reset) where the caller has
no session of their own to keep. The version bump alone invalidates every
token minted before this call.

Parameters:
  - context: context.Context
  - userID: string
  - reason: RevokeReason

Returns:
  - int: How many previously active sessions were revoked
  - error: Store failures
*/
func (service *Service) RevokeAll(context context.Context, userID string, reason RevokeReason) (int, error) {

	record, err := service.store.Get(context, userID)
	if err != nil {
		return 0, err
	}

	currentTime := service.now()
	record.Version++

	revokedCount := 0
	for i := range record.Sessions {
		if record.Sessions[i].Active() {
			revokedAt := currentTime
			record.Sessions[i].RevokedAt = &revokedAt
			record.Sessions[i].RevokedReason = reason
			revokedCount++
		}
	}

	if err := service.store.Set(context, userID, record); err != nil {
		return 0, err
	}

	service.logger.Info("sessions_revoked",
		slog.String("user_id", userID),
		slog.String("reason", string(reason)),
		slog.Int("revoked_count", revokedCount),
	)

	return revokedCount, nil
}

/*
Snapshot renders the user's session history for display.

Parameters:
  - context: context.Context
  - userID: string
  - claims: Claims

Returns:
  - []View: Sessions sorted by most recent activity, current one flagged
  - error: Store failures
*/
func (service *Service) Snapshot(context context.Context, userID string, claims Claims) ([]View, error) {

	record, err := service.store.Get(context, userID)
	if err != nil {
		return nil, err
	}

	record.sortByActivity()

	views := make([]View, 0, len(record.Sessions))
	for i := range record.Sessions {
		entry := &record.Sessions[i]

		status := "active"
		if !entry.Active() {
			status = "revoked"
		}

		views = append(views, View{
			ID:            entry.ID,
			Status:        status,
			Current:       claims.Bound() && entry.ID == claims.SessionID && entry.Version == record.Version && entry.Active(),
			CreatedAt:     entry.CreatedAt,
			LastSeenAt:    entry.LastSeenAt,
			RevokedReason: entry.RevokedReason,
			UserAgent:     entry.UserAgent,
			IPAddress:     entry.IPAddress,
		})
	}

	return views, nil
}

// appendSession creates a session at the record's current version and
// prepends it, enforcing the history cap. The caller persists.
func (service *Service) appendSession(record *Record, meta RequestMeta) (*Session, error) {

	// Session ids must be unguessable: 128 bits of OS entropy.
	sessionID, err := sec.GenerateSecureToken(16)
	if err != nil {
		return nil, fmt.Errorf("session: id generation failed: %w", err)
	}

	currentTime := service.now()
	created := Session{
		ID:         sessionID,
		Version:    record.Version,
		CreatedAt:  currentTime,
		LastSeenAt: currentTime,
		UserAgent:  meta.UserAgent,
		IPAddress:  meta.IPAddress,
	}

	record.Sessions = append([]Session{created}, record.Sessions...)
	record.trim(constants.SessionHistoryCap)

	return &created, nil
}

// # Middleware Adapter

// ValidateSession adapts [Service.Validate] to the middleware's
// SessionValidator contract and records the outcome metric.
func (service *Service) ValidateSession(context context.Context, claims *sec.AuthClaims, userAgent, ipAddress string) (bool, string, error) {

	verdict, err := service.Validate(context, claims.UserID, Claims{
		SessionID: claims.SessionID,
		Version:   claims.SessionVersion,
	}, RequestMeta{UserAgent: userAgent, IPAddress: ipAddress})

	if err != nil {
		metrics.SessionValidation("store-error")
		service.logger.Error("session_validation_failed", slog.Any("error", err))
		return false, "", err
	}

	if !verdict.Valid {
		metrics.SessionValidation(string(verdict.Reason))
		return false, string(verdict.Reason), nil
	}

	metrics.SessionValidation("valid")
	return true, "", nil
}
