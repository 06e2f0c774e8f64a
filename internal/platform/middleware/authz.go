// Copyright (c) 2026 OpenG7. All rights reserved.

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/OpenG7/openg7-platform-sub001/internal/platform/apperr"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/ctxkey"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/respond"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/sec"
)

// TokenVerifier defines the interface needed to verify tokens in middleware.
//
// # Why an interface?
//
// Defining TokenVerifier here decouples the middleware from the `auth` service
// implementation, allowing us to easily inject mocks during unit testing.
type TokenVerifier interface {
	VerifyToken(tokenStr string) (*sec.AuthClaims, error)
}

// SessionValidator checks a verified token's session binding against the
// user's live session record. Implemented by the session service; mirrored
// by mocks in middleware tests.
type SessionValidator interface {
	// ValidateSession returns whether the session is still live, and the
	// rejection reason when it is not ("missing-claims", "stale-version",
	// "session-revoked", "idle-timeout"). An error means the session store
	// itself could not be consulted.
	ValidateSession(ctx context.Context, claims *sec.AuthClaims, userAgent, ipAddress string) (bool, string, error)
}

// Authenticate extracts and verifies the JWT from the Authorization header,
// then validates its session binding against the session store.
//
// # Flow
//  1. Check for 'Authorization: Bearer <token>' header.
//  2. If absent, request proceeds as anonymous.
//  3. If present, parse and verify the JWT via [TokenVerifier].
//  4. Consult [SessionValidator]: a revoked, rotated, or idle-expired
//     session rejects the request even though the JWT signature is valid.
//  5. Inject [*sec.AuthClaims] into the request context for downstream use.
//
// Session validation fails closed: any ambiguity (store unreachable,
// malformed record) denies the request rather than letting a possibly
// revoked token through.
func Authenticate(verifier TokenVerifier, sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			authHeader := request.Header.Get("Authorization")

			// ── 1. Anonymous Access ───────────────────────────────────────────
			if authHeader == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// ── 2. Format Validation ──────────────────────────────────────────
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				respond.Error(writer, request, apperr.Unauthorized("Invalid authorization format"))
				return
			}

			// ── 3. Token Verification ─────────────────────────────────────────
			tokenStr := parts[1]
			claims, err := verifier.VerifyToken(tokenStr)
			if err != nil {
				respond.Error(writer, request, apperr.Unauthorized("Invalid or expired token"))
				return
			}

			// ── 4. Session Validation ─────────────────────────────────────────
			valid, reason, err := sessions.ValidateSession(request.Context(), claims, request.UserAgent(), RealIP(request))
			if err != nil || !valid {
				respond.Error(writer, request, sessionRejection(reason))
				return
			}

			// ── 5. Context Injection ──────────────────────────────────────────
			ctx := context.WithValue(request.Context(), ctxkey.KeyUser, claims)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// sessionRejection maps a validation reason onto the client-facing error.
// The message stays deliberately undifferentiated except for idle timeout,
// which gets its own phrasing so clients can prompt a re-login explicitly.
func sessionRejection(reason string) error {
	if reason == "idle-timeout" {
		return apperr.Unauthorized("Session expired due to inactivity")
	}
	return apperr.Unauthorized("Session expired")
}

// RequireAuth blocks requests that are not authenticated.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate].
//
// # Flow
//  1. Check if [*sec.AuthClaims] exists in context.
//  2. If missing, abort with HTTP 401 Unauthorized.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		claims := GetUser(request.Context())
		if claims == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// RequireRole blocks requests if the authenticated user doesn't have the required role.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate]. It automatically implies
// [RequireAuth] so you don't need to mount both.
//
// # Flow
//  1. Check if [*sec.AuthClaims] exists in context (implies AuthN).
//  2. Check if the user's role meets or exceeds the required target role using [sec.UserRole.AtLeast].
//  3. If insufficient, abort with HTTP 403 Forbidden.
func RequireRole(role sec.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			claims := GetUser(request.Context())

			// ── 1. Authentication Check ───────────────────────────────────────
			if claims == nil {
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}

			// ── 2. Authorization Check ────────────────────────────────────────
			userRole := sec.UserRole(claims.Role)
			if !userRole.AtLeast(role) {
				respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// GetUser retrieves the [*sec.AuthClaims] from the [context.Context].
//
// # Returns
//   - A pointer to [*sec.AuthClaims] if the user is authenticated.
//   - nil if the user is anonymous.
func GetUser(ctx context.Context) *sec.AuthClaims {
	claims, ok := ctx.Value(ctxkey.KeyUser).(*sec.AuthClaims)
	if !ok {
		return nil
	}
	return claims
}
