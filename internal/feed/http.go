// Copyright (c) 2026 OpenG7. All rights reserved.

package feed

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/OpenG7/openg7-platform-sub001/internal/platform/apperr"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/constants"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/middleware"
	requestutil "github.com/OpenG7/openg7-platform-sub001/internal/platform/request"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/respond"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/validate"
	"github.com/OpenG7/openg7-platform-sub001/pkg/cursor"
)

// highlightsCacheControl lets CDNs absorb the public highlights read model.
const highlightsCacheControl = "public, max-age=30, stale-while-revalidate=30"

// Handler implements the HTTP layer for the trade signal feed.
type Handler struct {
	feedService *Service
	broker      *StreamBroker
}

// NewHandler constructs a new feed [Handler].
func NewHandler(service *Service, broker *StreamBroker) *Handler {
	return &Handler{feedService: service, broker: broker}
}

// Routes returns a [chi.Router] configured with the feed domain's endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public read model
	router.Get("/highlights", handler.getHighlights)

	// Authenticated feed surface
	router.Group(func(authenticated chi.Router) {
		authenticated.Use(middleware.RequireAuth)

		authenticated.Get("/", handler.listFeed)
		authenticated.Post("/", handler.createItem)
		authenticated.Get("/stream", handler.streamFeed)
	})

	return router
}

// # Feed Endpoints

/*
GET /api/v1/feed.

Description: Returns one keyset page of confirmed feed items. The `cursor`
parameter must have been issued for the same `sort`, otherwise the request is
rejected rather than silently reinterpreted.

Query:
  - sort: NEWEST | URGENCY | VOLUME | CREDIBILITY (default NEWEST)
  - cursor: opaque cursor from a previous page
  - limit: 1..100 (default 20)
  - type, mode, sectorId, fromProvinceId, toProvinceId, q: filters

Response:
  - 200: {data, cursor}: Page and next cursor (null when exhausted)
  - 400: Unknown sort, malformed cursor, or sort/cursor mismatch
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) listFeed(writer http.ResponseWriter, request *http.Request) {

	// ── 1. Sort & Filters ─────────────────────────────────────────────────
	sort, err := cursor.ParseSort(requestutil.Query(request, "sort", ""))
	if err != nil {
		respond.Error(writer, request, apperr.BadRequest("Unknown sort"))
		return
	}

	filter := Filter{
		Sort:           sort,
		SectorID:       requestutil.Query(request, "sectorId", ""),
		FromProvinceID: requestutil.Query(request, "fromProvinceId", ""),
		ToProvinceID:   requestutil.Query(request, "toProvinceId", ""),
		Search:         requestutil.Query(request, "q", ""),
	}

	if rawType := requestutil.Query(request, "type", ""); rawType != "" {
		itemType := ParseType(strings.ToUpper(rawType))
		if itemType == "" {
			respond.Error(writer, request, apperr.BadRequest("Unknown feed item type"))
			return
		}
		filter.Type = itemType
	}
	if rawMode := requestutil.Query(request, "mode", ""); rawMode != "" {
		mode := ParseMode(strings.ToUpper(rawMode))
		if mode == "" {
			respond.Error(writer, request, apperr.BadRequest("Unknown trade mode"))
			return
		}
		filter.Mode = mode
	}

	// ── 2. Page Fetch ─────────────────────────────────────────────────────
	limit := cursor.LimitFromRequest(request)
	items, nextCursor, err := handler.feedService.List(
		request.Context(), filter, requestutil.Query(request, "cursor", ""), limit)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.WithCursor(writer, items, nextCursor)
}

/*
GET /api/v1/feed/highlights.

Description: Public, unpaginated highlights read model. Responses are
cacheable for 30 seconds so the landing page never hammers the database.

Query:
  - scope: canada | g7 | world (default canada)
  - filter: labor | transport | offer | request
  - q: free-text search
  - type, tag: exact filters
  - limit: 1..100 (default 20)

Response:
  - 200: {data, meta}: Filtered items plus the applied query echo
*/
func (handler *Handler) getHighlights(writer http.ResponseWriter, request *http.Request) {
	query := HighlightsQuery{
		Scope:  strings.ToLower(requestutil.Query(request, "scope", "")),
		Filter: strings.ToLower(requestutil.Query(request, "filter", "")),
		Search: requestutil.Query(request, "q", ""),
		Tag:    requestutil.Query(request, "tag", ""),
		Limit:  cursor.LimitFromRequest(request),
	}

	if rawType := requestutil.Query(request, "type", ""); rawType != "" {
		itemType := ParseType(strings.ToUpper(rawType))
		if itemType == "" {
			respond.Error(writer, request, apperr.BadRequest("Unknown feed item type"))
			return
		}
		query.Type = itemType
	}

	items, meta, err := handler.feedService.Highlights(request.Context(), query)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	writer.Header().Set("Cache-Control", highlightsCacheControl)
	respond.WithMeta(writer, items, meta)
}

// createItemRequest defines the expected JSON payload for publishing an item.
type createItemRequest struct {
	Type                 string    `json:"type"`
	Title                string    `json:"title"`
	Summary              string    `json:"summary"`
	SectorID             string    `json:"sectorId"`
	FromProvinceID       string    `json:"fromProvinceId"`
	ToProvinceID         string    `json:"toProvinceId"`
	Mode                 string    `json:"mode"`
	Quantity             *Quantity `json:"quantity"`
	Urgency              int       `json:"urgency"`
	Credibility          int       `json:"credibility"`
	Tags                 []string  `json:"tags"`
	AccessibilitySummary string    `json:"accessibilitySummary"`
	Geo                  *Geo      `json:"geo"`
}

/*
POST /api/v1/feed.

Description: Publishes a community feed item and broadcasts it to live stream
clients. An Idempotency-Key header opens a 24h replay window: retries with the
same key return the original item instead of duplicating it.

Request:
  - header: Idempotency-Key (optional)
  - body: createItemRequest

Response:
  - 201: Item: The created item (also on idempotent replay)
  - 400: ErrInvalidJSON/Validation: Invalid input data
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) createItem(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var payload createItemRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 1. Validation ─────────────────────────────────────────────────────
	validator := (&validate.Validator{}).
		Required("title", payload.Title).
		MaxLen("title", payload.Title, 200).
		MaxLen("summary", payload.Summary, 2000).
		OneOf("type", payload.Type,
			string(TypeOffer), string(TypeRequest), string(TypeAlert),
			string(TypeTender), string(TypeCapacity), string(TypeIndicator))
	if payload.Mode != "" {
		validator.OneOf("mode", payload.Mode,
			string(ModeExport), string(ModeImport), string(ModeBoth))
	}
	if payload.Urgency != 0 {
		validator.Range("urgency", payload.Urgency, 1, 3)
	}
	if payload.Credibility != 0 {
		validator.Range("credibility", payload.Credibility, 1, 3)
	}
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	input := CreateInput{
		Type:                 Type(payload.Type),
		Title:                payload.Title,
		Summary:              payload.Summary,
		SectorID:             payload.SectorID,
		FromProvinceID:       payload.FromProvinceID,
		ToProvinceID:         payload.ToProvinceID,
		Mode:                 Mode(payload.Mode),
		Quantity:             payload.Quantity,
		Urgency:              payload.Urgency,
		Credibility:          payload.Credibility,
		Tags:                 payload.Tags,
		AccessibilitySummary: payload.AccessibilitySummary,
		Geo:                  payload.Geo,
	}

	// ── 2. Create or Replay ───────────────────────────────────────────────
	idempotencyKey := strings.TrimSpace(request.Header.Get(constants.HeaderIdempotencyKey))
	item, _, err := handler.feedService.Create(
		request.Context(), claims.UserID, claims.Username, input, idempotencyKey)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, item)
}

/*
GET /api/v1/feed/stream.

Description: Long-lived Server-Sent Events stream of feed activity. The
handler disables proxy buffering and the server write deadline, emits a
comment handshake immediately, then blocks until the client disconnects.
Keep-alive comment frames flow every 15 seconds while any client is attached.

Response:
  - 200: text/event-stream
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) streamFeed(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	flusher, supported := writer.(http.Flusher)
	if !supported {
		respond.Error(writer, request, apperr.Internal(errors.New("response writer does not support streaming")))
		return
	}

	// ── 1. SSE Preamble ───────────────────────────────────────────────────
	header := writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	writer.WriteHeader(http.StatusOK)

	// The connection outlives any server write timeout.
	controller := http.NewResponseController(writer)
	_ = controller.SetWriteDeadline(time.Time{})

	// ── 2. Attach & Block ─────────────────────────────────────────────────
	clientID, err := handler.broker.Register(sseStream{writer: writer, flusher: flusher}, claims.UserID)
	if err != nil {
		return
	}
	defer handler.broker.Unregister(clientID)

	<-request.Context().Done()
}

// sseStream adapts an HTTP response into the broker's StreamWriter.
type sseStream struct {
	writer  http.ResponseWriter
	flusher http.Flusher
}

func (stream sseStream) Write(frame []byte) (int, error) {
	return stream.writer.Write(frame)
}

func (stream sseStream) Flush() {
	stream.flusher.Flush()
}
