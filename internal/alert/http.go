// Copyright (c) 2026 OpenG7. All rights reserved.

package alert

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/OpenG7/openg7-platform-sub001/internal/platform/middleware"
	requestutil "github.com/OpenG7/openg7-platform-sub001/internal/platform/request"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/respond"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/validate"
	"github.com/OpenG7/openg7-platform-sub001/pkg/pagination"
)

// Handler implements the HTTP layer for user alerts.
type Handler struct {
	alertService *Service
}

// NewHandler constructs a new alert [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{alertService: service}
}

// Routes returns a [chi.Router] configured with the alert domain's endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)

	router.Get("/me", handler.listAlerts)
	router.Post("/me", handler.createAlert)
	router.Post("/me/generate", handler.generateAlerts)
	router.Put("/me/{id}/read", handler.markRead)
	router.Put("/me/read-all", handler.markAllRead)
	router.Delete("/me/read", handler.deleteRead)
	router.Delete("/me/{id}", handler.deleteAlert)

	return router
}

// # Alert Endpoints

/*
GET /api/v1/user-alert/me.

Description: Lists the user's alerts newest-first, unread rows first.

Query:
  - page: 1.. (default 1)
  - limit: 1..100 (default 20)

Response:
  - 200: []UserAlert with pagination meta
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) listAlerts(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	params := pagination.FromRequest(request)

	alerts, meta, err := handler.alertService.List(request.Context(), userID, params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.WithMeta(writer, alerts, meta)
}

// createAlertRequest defines the expected JSON payload for a manual alert.
type createAlertRequest struct {
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Severity string         `json:"severity"`
	Metadata map[string]any `json:"metadata"`
}

/*
POST /api/v1/user-alert/me.

Description: Creates a system-sourced alert for the authenticated user.

Request:
  - body: createAlertRequest

Response:
  - 201: UserAlert
  - 400: ErrInvalidJSON/Validation: Invalid input data
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) createAlert(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var payload createAlertRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := (&validate.Validator{}).
		Required("title", payload.Title).
		MaxLen("title", payload.Title, 200).
		MaxLen("message", payload.Message, 2000)
	if payload.Severity != "" {
		validator.OneOf("severity", payload.Severity, KnownSeverities...)
	}
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	alert, err := handler.alertService.Create(request.Context(), userID, CreateInput{
		Title:    payload.Title,
		Message:  payload.Message,
		Severity: Severity(payload.Severity),
		Metadata: payload.Metadata,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, alert)
}

/*
POST /api/v1/user-alert/me/generate.

Description: Runs the saved-search alert pipeline for the authenticated user.
Delivery failures are reported inside the result, never as request errors.

Response:
  - 200: GenerateReport
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) generateAlerts(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	report, err := handler.alertService.GenerateFromSavedSearches(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, report)
}

/*
PUT /api/v1/user-alert/me/{id}/read.

Description: Acknowledges one alert. Idempotent: re-reading keeps the
original readAt stamp.

Response:
  - 200: UserAlert: The acknowledged alert
  - 404: ErrNotFound: The alert does not exist or belongs to another user
*/
func (handler *Handler) markRead(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	alert, err := handler.alertService.MarkRead(request.Context(), userID, requestutil.Param(request, "id"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, alert)
}

/*
PUT /api/v1/user-alert/me/read-all.

Description: Acknowledges every unread alert in bounded batches.

Response:
  - 200: {updated: int}
*/
func (handler *Handler) markAllRead(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	updated, err := handler.alertService.MarkAllRead(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]int{"updated": updated})
}

/*
DELETE /api/v1/user-alert/me/read.

Description: Removes every acknowledged alert in bounded batches.

Response:
  - 200: {deleted: int}
*/
func (handler *Handler) deleteRead(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	deleted, err := handler.alertService.DeleteRead(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]int{"deleted": deleted})
}

/*
DELETE /api/v1/user-alert/me/{id}.

Description: Removes one alert owned by the authenticated user.

Response:
  - 204: No content
  - 404: ErrNotFound: The alert does not exist or belongs to another user
*/
func (handler *Handler) deleteAlert(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.alertService.Delete(request.Context(), userID, requestutil.Param(request, "id")); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
