// Copyright (c) 2026 OpenG7. All rights reserved.

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/OpenG7/openg7-platform-sub001/internal/platform/apperr"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/mailer"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/sec"
	"github.com/OpenG7/openg7-platform-sub001/internal/session"
	"github.com/OpenG7/openg7-platform-sub001/pkg/uuidv7"
)

// # Contracts

// TokenProvider mints session-bound access tokens.
type TokenProvider interface {
	GenerateAccessToken(userID, username, role, sessionID string, sessionVersion int64, timeToLive time.Duration) (string, error)
}

// SessionManager is the slice of the session service the identity flows
// need. Every credential flow ends in exactly one of these calls.
type SessionManager interface {
	Create(context context.Context, userID string, meta session.RequestMeta) (*session.Session, error)
	Lookup(context context.Context, userID, sessionID string) (*session.Session, int64, error)
	Rotate(context context.Context, userID string, meta session.RequestMeta) (*session.Session, int, error)
	Revoke(context context.Context, userID, sessionID string, reason session.RevokeReason) error
	RevokeAll(context context.Context, userID string, reason session.RevokeReason) (int, error)
}

// # Service

// Service orchestrates the identity flows.
type Service struct {
	users    UserRepository
	sessions SessionManager
	refresh  RefreshTokenRepository
	reset    OneTimeTokenRepository
	verify   OneTimeTokenRepository
	tokens   TokenProvider
	mail     mailer.Mailer
	logger   *slog.Logger
}

// NewService wires the identity flows to their dependencies.
func NewService(
	users UserRepository,
	sessions SessionManager,
	refresh RefreshTokenRepository,
	reset OneTimeTokenRepository,
	verify OneTimeTokenRepository,
	tokens TokenProvider,
	mail mailer.Mailer,
	logger *slog.Logger,
) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		refresh:  refresh,
		reset:    reset,
		verify:   verify,
		tokens:   tokens,
		mail:     mail,
		logger:   logger,
	}
}

/*
Register creates a new member account and signs it in.

Description: Rejects duplicate emails and usernames with distinct conflict
messages, hashes the password with bcrypt, and issues an email verification
token. The verification email is best-effort; a send failure never fails
registration. The new account gets a fresh session right away, so the
response carries a usable token pair.

Parameters:
  - context: context.Context
  - input: RegisterInput
  - meta: session.RequestMeta

Returns:
  - *Credentials: Tokens bound to the account's first session
  - error: apperr.Conflict on duplicates, hashing or storage failures
*/
func (service *Service) Register(context context.Context, input RegisterInput, meta session.RequestMeta) (*Credentials, error) {

	// ── Uniqueness Checks ──
	if _, err := service.users.FindByEmail(context, input.Email); err == nil {
		return nil, apperr.Conflict("Email is already registered")
	} else if !apperr.IsNotFound(err) {
		return nil, err
	}

	if _, err := service.users.FindByUsername(context, input.Username); err == nil {
		return nil, apperr.Conflict("Username is already taken")
	} else if !apperr.IsNotFound(err) {
		return nil, err
	}

	// ── Account Creation ──
	passwordHash, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	user := &User{
		ID:           uuidv7.New(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: passwordHash,
		DisplayName:  strings.TrimSpace(input.DisplayName),
		Role:         sec.RoleMember,
		IsVerified:   false,
	}

	if err := service.users.Create(context, user); err != nil {
		return nil, err
	}

	// ── Verification Token ──
	service.issueVerificationToken(context, user)

	// ── First Session ──
	entry, err := service.sessions.Create(context, user.ID, meta)
	if err != nil {
		return nil, err
	}

	credentials, err := service.mintCredentials(context, user, entry)
	if err != nil {
		return nil, err
	}

	service.logger.Info("user_registered",
		slog.String("user_id", user.ID),
		slog.String("session_id", entry.ID),
	)
	return credentials, nil
}

/*
Login authenticates by email or username and mints a fresh session.

Description: Credential failures are indistinguishable on purpose: an unknown
identifier and a wrong password both yield the same generic message.

Parameters:
  - context: context.Context
  - input: LoginInput
  - meta: session.RequestMeta (Client fingerprint recorded on the session)

Returns:
  - *Credentials: Access token, refresh token, and the account
  - error: apperr.Unauthorized on credential failure
*/
func (service *Service) Login(context context.Context, input LoginInput, meta session.RequestMeta) (*Credentials, error) {

	user, err := service.findByIdentifier(context, input.Identifier)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Unauthorized("Invalid login credentials")
		}
		return nil, err
	}

	if !sec.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, apperr.Unauthorized("Invalid login credentials")
	}

	entry, err := service.sessions.Create(context, user.ID, meta)
	if err != nil {
		return nil, err
	}

	credentials, err := service.mintCredentials(context, user, entry)
	if err != nil {
		return nil, err
	}

	service.logger.Info("user_logged_in",
		slog.String("user_id", user.ID),
		slog.String("session_id", entry.ID),
	)
	return credentials, nil
}

/*
RefreshSession exchanges a valid refresh token for a new token pair.

Description: The old refresh token is consumed regardless of outcome once it
resolves, so a replayed token fails on its second use. The session behind the
grant must still be active at the record's current version; rotated or
revoked sessions cannot refresh.

Parameters:
  - context: context.Context
  - refreshToken: string (Opaque token from the cookie)
  - meta: session.RequestMeta

Returns:
  - *Credentials: Fresh access and refresh tokens
  - error: apperr.Unauthorized when the token or its session is no longer good
*/
func (service *Service) RefreshSession(context context.Context, refreshToken string, meta session.RequestMeta) (*Credentials, error) {

	if refreshToken == "" {
		return nil, apperr.Unauthorized("Missing refresh token")
	}

	tokenHash := sec.HashToken(refreshToken)
	grant, err := service.refresh.Get(context, tokenHash)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Unauthorized("Invalid or expired refresh token")
		}
		return nil, err
	}

	// Single use: consume before any further checks.
	if err := service.refresh.Delete(context, tokenHash); err != nil {
		return nil, err
	}

	user, err := service.users.FindByID(context, grant.UserID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Unauthorized("Invalid or expired refresh token")
		}
		return nil, err
	}

	entry, currentVersion, err := service.sessions.Lookup(context, grant.UserID, grant.SessionID)
	if err != nil {
		return nil, err
	}
	if entry == nil || !entry.Active() || entry.Version != currentVersion {
		return nil, apperr.Unauthorized("Session is no longer active")
	}

	credentials, err := service.mintCredentials(context, user, entry)
	if err != nil {
		return nil, err
	}

	service.logger.Info("session_refreshed",
		slog.String("user_id", user.ID),
		slog.String("session_id", entry.ID),
	)
	return credentials, nil
}

/*
Logout revokes the session bound to the presented refresh token.

Description: Idempotent: an unknown or already-consumed token is not an
error. Other sessions of the same user stay valid.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - error: Store failures only
*/
func (service *Service) Logout(context context.Context, refreshToken string) error {

	if refreshToken == "" {
		return nil
	}

	tokenHash := sec.HashToken(refreshToken)
	grant, err := service.refresh.Get(context, tokenHash)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil
		}
		return err
	}

	if err := service.refresh.Delete(context, tokenHash); err != nil {
		return err
	}

	return service.sessions.Revoke(context, grant.UserID, grant.SessionID, session.RevokeLogout)
}

/*
RequestPasswordReset issues a reset token for the given email.

Description: Never discloses whether the email exists; unknown addresses
return success without a side effect.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - error: Store failures only
*/
func (service *Service) RequestPasswordReset(context context.Context, email string) error {

	user, err := service.users.FindByEmail(context, email)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil
		}
		return err
	}

	token, err := sec.GenerateSecureToken(ResetTokenLength)
	if err != nil {
		return apperr.Internal(err)
	}

	if err := service.reset.Set(context, sec.HashToken(token), user.ID, ResetTokenTTL); err != nil {
		return err
	}

	subject := "OpenG7: reset your password"
	body := fmt.Sprintf("Use this token to reset your password within the next hour:\n\n%s", token)
	if err := service.mail.Send(context, user.Email, subject, body); err != nil {
		service.logger.Warn("password_reset_email_failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	service.logger.Info("password_reset_requested", slog.String("user_id", user.ID))
	return nil
}

/*
ResetPassword consumes a reset token and replaces the password.

Description: All outstanding sessions are revoked first; every other device
has to log in again with the new password. The caller's device then gets a
fresh session so the response carries a usable token pair.

Parameters:
  - context: context.Context
  - token: string
  - newPassword: string
  - meta: session.RequestMeta

Returns:
  - *Credentials: Tokens bound to the only session that survives the reset
  - error: apperr.Unauthorized on a bad token, hashing or storage failures
*/
func (service *Service) ResetPassword(context context.Context, token, newPassword string, meta session.RequestMeta) (*Credentials, error) {

	tokenHash := sec.HashToken(token)
	userID, err := service.reset.Get(context, tokenHash)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Unauthorized("Invalid or expired reset token")
		}
		return nil, err
	}

	user, err := service.users.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	passwordHash, err := sec.HashPassword(newPassword)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if err := service.users.UpdatePassword(context, userID, passwordHash); err != nil {
		return nil, err
	}

	if err := service.reset.Delete(context, tokenHash); err != nil {
		return nil, err
	}

	if _, err := service.sessions.RevokeAll(context, userID, session.RevokeSecurity); err != nil {
		return nil, err
	}

	entry, err := service.sessions.Create(context, userID, meta)
	if err != nil {
		return nil, err
	}

	credentials, err := service.mintCredentials(context, user, entry)
	if err != nil {
		return nil, err
	}

	service.logger.Info("password_reset_completed",
		slog.String("user_id", userID),
		slog.String("session_id", entry.ID),
	)
	return credentials, nil
}

/*
ChangePassword replaces the password after verifying the current one.

Description: Rotates the caller's sessions: the version bump invalidates
every outstanding token, and the returned credentials are the only pair
minted against the new session.

Parameters:
  - context: context.Context
  - userID: string
  - currentPassword: string
  - newPassword: string
  - meta: session.RequestMeta

Returns:
  - *Credentials: Fresh tokens bound to the rotated session
  - error: apperr.Unauthorized on a wrong current password
*/
func (service *Service) ChangePassword(context context.Context, userID, currentPassword, newPassword string, meta session.RequestMeta) (*Credentials, error) {

	user, err := service.users.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	if !sec.CheckPasswordHash(currentPassword, user.PasswordHash) {
		return nil, apperr.Unauthorized("Current password is incorrect")
	}

	passwordHash, err := sec.HashPassword(newPassword)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if err := service.users.UpdatePassword(context, userID, passwordHash); err != nil {
		return nil, err
	}

	entry, _, err := service.sessions.Rotate(context, userID, meta)
	if err != nil {
		return nil, err
	}

	credentials, err := service.mintCredentials(context, user, entry)
	if err != nil {
		return nil, err
	}

	service.logger.Info("password_changed", slog.String("user_id", userID))
	return credentials, nil
}

/*
VerifyEmail consumes a verification token and activates the account.

Description: The activated account gets a fresh session, so a user arriving
from the email link is signed in without a second round trip.

Parameters:
  - context: context.Context
  - token: string
  - meta: session.RequestMeta

Returns:
  - *Credentials: Tokens bound to the new session, user marked verified
  - error: apperr.Unauthorized on a bad token, storage failures
*/
func (service *Service) VerifyEmail(context context.Context, token string, meta session.RequestMeta) (*Credentials, error) {

	tokenHash := sec.HashToken(token)
	userID, err := service.verify.Get(context, tokenHash)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Unauthorized("Invalid or expired verification token")
		}
		return nil, err
	}

	if err := service.users.MarkVerified(context, userID); err != nil {
		return nil, err
	}

	if err := service.verify.Delete(context, tokenHash); err != nil {
		return nil, err
	}

	// Reload after the flip so the response reflects the verified state.
	user, err := service.users.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	entry, err := service.sessions.Create(context, userID, meta)
	if err != nil {
		return nil, err
	}

	credentials, err := service.mintCredentials(context, user, entry)
	if err != nil {
		return nil, err
	}

	service.logger.Info("email_verified",
		slog.String("user_id", userID),
		slog.String("session_id", entry.ID),
	)
	return credentials, nil
}

// # Internals

// findByIdentifier resolves a login identifier: anything containing '@' is
// treated as an email, everything else as a username.
func (service *Service) findByIdentifier(context context.Context, identifier string) (*User, error) {
	if strings.Contains(identifier, "@") {
		return service.users.FindByEmail(context, identifier)
	}
	return service.users.FindByUsername(context, identifier)
}

// mintCredentials produces the access/refresh pair for a session entry.
func (service *Service) mintCredentials(context context.Context, user *User, entry *session.Session) (*Credentials, error) {

	accessToken, err := service.tokens.GenerateAccessToken(
		user.ID, user.Username, string(user.Role), entry.ID, entry.Version, AccessTokenTTL,
	)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	refreshToken, err := sec.GenerateSecureToken(RefreshTokenLength)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	grant := RefreshGrant{UserID: user.ID, SessionID: entry.ID}
	if err := service.refresh.Set(context, sec.HashToken(refreshToken), grant, RefreshTokenTTL); err != nil {
		return nil, err
	}

	return &Credentials{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}

// issueVerificationToken stores and mails a verification token. Failures are
// logged, never surfaced; the user can request another token later.
func (service *Service) issueVerificationToken(context context.Context, user *User) {

	token, err := sec.GenerateSecureToken(VerificationTokenLength)
	if err != nil {
		service.logger.Warn("verification_token_generate_failed", slog.String("user_id", user.ID))
		return
	}

	if err := service.verify.Set(context, sec.HashToken(token), user.ID, VerificationTokenTTL); err != nil {
		service.logger.Warn("verification_token_store_failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	subject := "OpenG7: verify your email"
	body := fmt.Sprintf("Welcome to OpenG7. Verify your email with this token within 24 hours:\n\n%s", token)
	if err := service.mail.Send(context, user.Email, subject, body); err != nil {
		service.logger.Warn("verification_email_failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
}
