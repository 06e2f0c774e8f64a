// Copyright (c) 2026 OpenG7. All rights reserved.

package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/OpenG7/openg7-platform-sub001/internal/platform/middleware"
	requestutil "github.com/OpenG7/openg7-platform-sub001/internal/platform/request"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/respond"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/validate"
)

// Handler implements the HTTP layer for account profiles.
type Handler struct {
	accountService *Service
}

// NewHandler constructs a new account [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{accountService: service}
}

// Routes returns a [chi.Router] configured with the profile endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)

	router.Get("/me", handler.getProfile)
	router.Put("/me", handler.updateProfile)
	router.Post("/me/email-change", handler.requestEmailChange)
	router.Post("/me/email-change/confirm", handler.confirmEmailChange)

	return router
}

/*
GET /api/v1/account-profile/me.

Description: Returns the profile and raw notification preferences. Users who
never saved a profile get an empty default rather than a 404.

Response:
  - 200: Profile
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) getProfile(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	profile, err := handler.accountService.GetProfile(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, profile)
}

// updateProfileRequest defines the expected JSON payload for PUT /me.
type updateProfileRequest struct {
	DisplayName       string         `json:"displayName"`
	Organization      string         `json:"organization"`
	Province          string         `json:"province"`
	Language          string         `json:"language"`
	NotificationPrefs map[string]any `json:"notificationPrefs"`
}

/*
PUT /api/v1/account-profile/me.

Description: Replaces the profile. Notification preferences are stored as
submitted once the webhook URL, quiet hours, and frequency pass their shape
checks; unknown keys survive the round-trip.

Request:
  - body: updateProfileRequest

Response:
  - 200: Profile: The persisted profile
  - 400: ErrInvalidJSON/Validation: Invalid input data
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) updateProfile(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var payload updateProfileRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := (&validate.Validator{}).
		MaxLen("displayName", payload.DisplayName, 80).
		MaxLen("organization", payload.Organization, 120).
		MaxLen("province", payload.Province, 32).
		MaxLen("language", payload.Language, 16)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	profile, err := handler.accountService.UpdateProfile(request.Context(), userID, UpdateProfileInput{
		DisplayName:       payload.DisplayName,
		Organization:      payload.Organization,
		Province:          payload.Province,
		Language:          payload.Language,
		NotificationPrefs: payload.NotificationPrefs,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, profile)
}

/*
POST /api/v1/account-profile/me/email-change.

Description: Starts the email change flow. The current password is required;
a confirmation token is mailed to the new address.

Request:
  - body: {currentPassword, newEmail}

Response:
  - 204: Pending address stored, token issued
  - 401: Unauthorized: Current password is incorrect
  - 409: Conflict: Address already in use
*/
func (handler *Handler) requestEmailChange(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var payload struct {
		CurrentPassword string `json:"currentPassword"`
		NewEmail        string `json:"newEmail"`
	}
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := (&validate.Validator{}).
		Required("currentPassword", payload.CurrentPassword).
		Required("newEmail", payload.NewEmail).
		Email("newEmail", payload.NewEmail)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.accountService.RequestEmailChange(
		request.Context(), userID, payload.CurrentPassword, payload.NewEmail); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
POST /api/v1/account-profile/me/email-change/confirm.

Request:
  - body: {token}

Response:
  - 204: Address promoted
  - 401: Unauthorized: Invalid or expired confirmation token
  - 404: NotFound: No pending address remains
*/
func (handler *Handler) confirmEmailChange(writer http.ResponseWriter, request *http.Request) {
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

	if err := handler.accountService.ConfirmEmailChange(request.Context(), payload.Token); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
