// Copyright (c) 2026 OpenG7. All rights reserved.

package session

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/OpenG7/openg7-platform-sub001/internal/platform/middleware"
	requestutil "github.com/OpenG7/openg7-platform-sub001/internal/platform/request"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/respond"
)

// # HTTP Delivery

// accessTokenTTL mirrors the identity layer's token lifetime so a rotated
// token behaves like a freshly logged-in one.
const accessTokenTTL = 15 * time.Minute

// TokenIssuer re-mints an access token bound to a new session. Satisfied by
// the platform TokenService.
type TokenIssuer interface {
	GenerateAccessToken(userID, username, role, sessionID string, sessionVersion int64, timeToLive time.Duration) (string, error)
}

// Handler exposes session transparency endpoints for the authenticated user.
type Handler struct {
	sessions *Service
	tokens   TokenIssuer
}

// NewHandler constructs a new [Handler].
func NewHandler(sessions *Service, tokens TokenIssuer) *Handler {
	return &Handler{sessions: sessions, tokens: tokens}
}

// Routes returns a [chi.Router] for the /auth/sessions surface.
//
// # Endpoints
//   - GET  /        : Lists the caller's sessions with the current one flagged.
//   - POST /rotate  : Logs out everywhere else and returns a fresh token.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)

	router.Get("/", handler.list)
	router.Post("/rotate", handler.rotate)

	return router
}

/*
list renders the caller's session history.

GET /api/v1/auth/sessions

Returns:
  - 200: {data: [View]}
  - 401: Missing authentication
*/
func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	views, err := handler.sessions.Snapshot(request.Context(), claims.UserID, Claims{
		SessionID: claims.SessionID,
		Version:   claims.SessionVersion,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, views)
}

/*
rotate revokes every other session and re-binds the caller to a fresh one.

POST /api/v1/auth/sessions/rotate

Description: Bumps the session version (invalidating all outstanding tokens,
including the one used for this request) and immediately issues a replacement
token bound to the new session.

Returns:
  - 200: {data: {jwt, session_id, revoked_count}}
  - 401: Missing authentication
*/
func (handler *Handler) rotate(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	meta := RequestMeta{
		UserAgent: request.UserAgent(),
		IPAddress: middleware.RealIP(request),
	}

	created, revokedCount, err := handler.sessions.Rotate(request.Context(), claims.UserID, meta)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	token, err := handler.tokens.GenerateAccessToken(
		claims.UserID, claims.Username, claims.Role,
		created.ID, created.Version, accessTokenTTL,
	)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		"jwt":           token,
		"session_id":    created.ID,
		"revoked_count": revokedCount,
	})
}
