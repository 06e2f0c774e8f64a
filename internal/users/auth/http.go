// Copyright (c) 2026 OpenG7. All rights reserved.

package auth

import (
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/OpenG7/openg7-platform-sub001/internal/platform/constants"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/middleware"
	requestutil "github.com/OpenG7/openg7-platform-sub001/internal/platform/request"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/respond"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/validate"
	"github.com/OpenG7/openg7-platform-sub001/internal/session"
)

// Handler implements the HTTP layer for identity flows.
type Handler struct {
	authService   *Service
	secureCookies bool
}

// NewHandler constructs a new auth [Handler]. secureCookies should be true
// everywhere except local development over plain HTTP.
func NewHandler(service *Service, secureCookies bool) *Handler {
	return &Handler{authService: service, secureCookies: secureCookies}
}

// Routes returns a [chi.Router] configured with the identity endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)
	router.Post("/verify-email", handler.verifyEmail)
	router.Post("/forgot-password", handler.forgotPassword)
	router.Post("/reset-password", handler.resetPassword)

	router.Group(func(authenticated chi.Router) {
		authenticated.Use(middleware.RequireAuth)

		authenticated.Post("/logout", handler.logout)
		authenticated.Post("/change-password", handler.changePassword)
	})

	return router
}

// # Public Endpoints

/*
POST /api/v1/auth/register.

Request:
  - body: {username, email, password, displayName?}

Description: The new account is signed in immediately: the refresh token is
set as an HttpOnly cookie and the body carries the access token.

Response:
  - 201: {accessToken, user}: The created account (unverified), signed in
  - 400: ErrInvalidJSON/Validation: Invalid input data
  - 409: Conflict: Email or username already taken
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var payload RegisterInput
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := (&validate.Validator{}).
		Required("username", payload.Username).
		MinLen("username", payload.Username, 3).
		MaxLen("username", payload.Username, 32).
		Required("email", payload.Email).
		Email("email", payload.Email).
		Required("password", payload.Password).
		MinLen("password", payload.Password, 8).
		MaxLen("displayName", payload.DisplayName, 80)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	credentials, err := handler.authService.Register(request.Context(), payload, requestMeta(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, credentials.RefreshToken)
	respond.Created(writer, credentials)
}

/*
POST /api/v1/auth/login.

Description: Authenticates by email or username. On success the refresh token
is set as an HttpOnly cookie scoped to the auth path; the access token and
account travel in the body.

Request:
  - body: {identifier, password}

Response:
  - 200: {accessToken, user}
  - 401: Unauthorized: Invalid login credentials
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var payload LoginInput
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := (&validate.Validator{}).
		Required("identifier", payload.Identifier).
		Required("password", payload.Password)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	credentials, err := handler.authService.Login(request.Context(), payload, requestMeta(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, credentials.RefreshToken)
	respond.OK(writer, credentials)
}

/*
POST /api/v1/auth/refresh.

Description: Exchanges the refresh cookie for a new token pair. The old
refresh token is consumed; replaying it fails.

Response:
  - 200: {accessToken, user}
  - 401: Unauthorized: Missing, invalid, or superseded refresh token
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	credentials, err := handler.authService.RefreshSession(
		request.Context(), refreshTokenFromCookie(request), requestMeta(request))
	if err != nil {
		handler.clearRefreshCookie(writer)
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, credentials.RefreshToken)
	respond.OK(writer, credentials)
}

/*
POST /api/v1/auth/verify-email.

Description: Activates the account and signs the caller in, so the email
link lands on an authenticated state.

Request:
  - body: {token}

Response:
  - 200: {accessToken, user}: Account activated and signed in
  - 401: Unauthorized: Invalid or expired verification token
*/
func (handler *Handler) verifyEmail(writer http.ResponseWriter, request *http.Request) {
	var payload struct {
		Token string `json:"token"`
	}
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := (&validate.Validator{}).Required("token", payload.Token).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	credentials, err := handler.authService.VerifyEmail(request.Context(), payload.Token, requestMeta(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, credentials.RefreshToken)
	respond.OK(writer, credentials)
}

/*
POST /api/v1/auth/forgot-password.

Description: Always answers 204, whether or not the email exists.

Request:
  - body: {email}

Response:
  - 204: Reset token issued when the account exists
*/
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := (&validate.Validator{}).
		Required("email", payload.Email).
		Email("email", payload.Email)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.RequestPasswordReset(request.Context(), payload.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
POST /api/v1/auth/reset-password.

Description: Consumes a reset token. Every other device is logged out; the
caller gets a fresh session bound to the new password, with the refresh
token set as the cookie.

Request:
  - body: {token, newPassword}

Response:
  - 200: {accessToken, user}: Password replaced, caller signed in
  - 401: Unauthorized: Invalid or expired reset token
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var payload struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := (&validate.Validator{}).
		Required("token", payload.Token).
		Required("newPassword", payload.NewPassword).
		MinLen("newPassword", payload.NewPassword, 8)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	credentials, err := handler.authService.ResetPassword(
		request.Context(), payload.Token, payload.NewPassword, requestMeta(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, credentials.RefreshToken)
	respond.OK(writer, credentials)
}

// # Authenticated Endpoints

/*
POST /api/v1/auth/logout.

Description: Revokes the session behind the refresh cookie and clears the
cookie. Idempotent.

Response:
  - 204: Logged out
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	if err := handler.authService.Logout(request.Context(), refreshTokenFromCookie(request)); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.clearRefreshCookie(writer)
	respond.NoContent(writer)
}

/*
POST /api/v1/auth/change-password.

Description: Verifies the current password, replaces it, and rotates the
caller's sessions. Every other device is logged out; the response carries the
only valid token pair.

Request:
  - body: {currentPassword, newPassword}

Response:
  - 200: {accessToken, user}
  - 401: Unauthorized: Current password is incorrect
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var payload struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := (&validate.Validator{}).
		Required("currentPassword", payload.CurrentPassword).
		Required("newPassword", payload.NewPassword).
		MinLen("newPassword", payload.NewPassword, 8).
		Custom("newPassword", payload.CurrentPassword == payload.NewPassword,
			"must differ from the current password")
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	credentials, err := handler.authService.ChangePassword(
		request.Context(), claims.UserID, payload.CurrentPassword, payload.NewPassword, requestMeta(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, credentials.RefreshToken)
	respond.OK(writer, credentials)
}

// # Cookie & Fingerprint Helpers

func (handler *Handler) setRefreshCookie(writer http.ResponseWriter, token string) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    token,
		Path:     constants.RefreshTokenCookiePath,
		MaxAge:   int(RefreshTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   handler.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (handler *Handler) clearRefreshCookie(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    "",
		Path:     constants.RefreshTokenCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   handler.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func refreshTokenFromCookie(request *http.Request) string {
	cookie, err := request.Cookie(constants.RefreshTokenCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// requestMeta captures the client fingerprint recorded on sessions.
func requestMeta(request *http.Request) session.RequestMeta {
	return session.RequestMeta{
		UserAgent: request.UserAgent(),
		IPAddress: clientIP(request),
	}
}

// clientIP resolves the originating address, trusting proxy headers in the
// order X-Real-IP, X-Forwarded-For, then the socket peer.
func clientIP(request *http.Request) string {
	if realIP := request.Header.Get(constants.HeaderXRealIP); realIP != "" {
		return realIP
	}
	if forwarded := request.Header.Get(constants.HeaderXForwardedFor); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return request.RemoteAddr
	}
	return host
}
