// Copyright (c) 2026 OpenG7. All rights reserved.

package feed

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/OpenG7/openg7-platform-sub001/internal/platform/apperr"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/constants"
	"github.com/OpenG7/openg7-platform-sub001/pkg/cursor"
	"github.com/OpenG7/openg7-platform-sub001/pkg/uuidv7"
)

// # Highlights Pool Sizing

const (
	// highlightsPoolFactor widens the DB fetch relative to the requested
	// limit so in-memory filtering still fills a page.
	highlightsPoolFactor = 8
	// highlightsPoolFloor is the minimum widened fetch.
	highlightsPoolFloor = 250
	// highlightsPoolCeil bounds the widened fetch.
	highlightsPoolCeil = 500
)

// namedTagSets maps the highlights "filter" parameter onto keyword lists
// matched against item tags and titles.
var namedTagSets = map[string][]string{
	"labor":     {"labor", "labour", "workforce", "employment", "staffing", "skills"},
	"transport": {"transport", "logistics", "freight", "shipping", "rail", "trucking"},
}

// # Application Service

// Service implements the feed use cases over the repositories and broker.
type Service struct {
	store  Repository
	idem   IdempotencyRepository
	broker *StreamBroker
	logger *slog.Logger
}

// NewService constructs the feed service.
func NewService(store Repository, idem IdempotencyRepository, broker *StreamBroker, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		idem:   idem,
		broker: broker,
		logger: logger,
	}
}

// CreateInput is the validated payload for publishing a feed item.
type CreateInput struct {
	Type                 Type
	Title                string
	Summary              string
	SectorID             string
	FromProvinceID       string
	ToProvinceID         string
	Mode                 Mode
	Quantity             *Quantity
	Urgency              int
	Credibility          int
	Tags                 []string
	AccessibilitySummary string
	Geo                  *Geo
}

/*
Create publishes a feed item and broadcasts it to connected stream clients.

Description: When idempotencyKey is non-empty and a replay window is open for
it, the originally created item is returned unchanged and no duplicate row or
broadcast is produced.

Parameters:
  - context: context.Context
  - userID: string
  - username: string
  - input: CreateInput
  - idempotencyKey: string (optional)

Returns:
  - *Item: The created (or replayed) item
  - bool: True when this call replayed an earlier create
  - error: Validation or persistence failures
*/
func (service *Service) Create(context context.Context, userID, username string, input CreateInput, idempotencyKey string) (*Item, bool, error) {

	// ── 1. Idempotency Replay ─────────────────────────────────────────────
	if idempotencyKey != "" {
		existingID, err := service.idem.Get(context, userID, idempotencyKey)
		if err != nil {
			return nil, false, err
		}
		if existingID != "" {
			item, err := service.store.FindByID(context, existingID)
			if err != nil {
				return nil, false, err
			}
			return item, true, nil
		}
	}

	// ── 2. Item Assembly ──────────────────────────────────────────────────
	currentTime := time.Now().UTC()
	item := &Item{
		ID:                   uuidv7.New(),
		Type:                 input.Type,
		SectorID:             input.SectorID,
		Title:                strings.TrimSpace(input.Title),
		Summary:              strings.TrimSpace(input.Summary),
		FromProvinceID:       input.FromProvinceID,
		ToProvinceID:         input.ToProvinceID,
		Mode:                 input.Mode,
		Quantity:             input.Quantity,
		Urgency:              clampScore(input.Urgency),
		Credibility:          clampScore(input.Credibility),
		Tags:                 normalizeTags(input.Tags),
		Source:               Source{Kind: SourceCommunity, Label: username},
		Status:               StatusConfirmed,
		AccessibilitySummary: strings.TrimSpace(input.AccessibilitySummary),
		Geo:                  input.Geo,
		CreatedBy:            userID,
		CreatedAt:            currentTime,
		UpdatedAt:            currentTime,
	}

	if item.Mode == "" {
		item.Mode = ModeBoth
	}
	if input.Quantity != nil {
		item.VolumeScore = input.Quantity.Value
	}

	if err := service.store.Insert(context, item); err != nil {
		return nil, false, err
	}

	// ── 3. Replay Window ──────────────────────────────────────────────────
	// Best effort: a failed window write must not fail the create that
	// already committed.
	if idempotencyKey != "" {
		if err := service.idem.Set(context, userID, idempotencyKey, item.ID, constants.FeedIdempotencyTTL); err != nil {
			service.logger.Warn("feed_idempotency_record_failed",
				slog.String("item_id", item.ID),
				slog.Any("error", err),
			)
		}
	}

	// ── 4. Stream Fan-out ─────────────────────────────────────────────────
	itemCursor := cursor.Encode(cursor.SortNewest, item.Marker(cursor.SortNewest))
	service.broker.Broadcast(Envelope{
		EventID: uuidv7.New(),
		Type:    "feed.item.created",
		Payload: item,
		Cursor:  &itemCursor,
	})

	return item, false, nil
}

/*
List returns one keyset page of confirmed items.

Parameters:
  - context: context.Context
  - filter: Filter (sort already resolved; Cursor field ignored)
  - rawCursor: string (opaque cursor from the client, "" for the first page)
  - limit: int (already clamped)

Returns:
  - []*Item: The page
  - *string: Cursor for the next page, nil when exhausted
  - error: apperr.BadRequest on malformed or mismatched cursors
*/
func (service *Service) List(context context.Context, filter Filter, rawCursor string, limit int) ([]*Item, *string, error) {

	// ── 1. Cursor Decoding ────────────────────────────────────────────────
	if rawCursor != "" {
		decoded, err := cursor.DecodeFor(rawCursor, filter.Sort)
		if err != nil {
			if errors.Is(err, cursor.ErrSortMismatch) {
				return nil, nil, apperr.BadRequest("Cursor was issued for a different sort")
			}
			return nil, nil, apperr.BadRequest("Malformed cursor")
		}
		filter.Cursor = &decoded
	}

	// ── 2. Page Fetch (limit+1 for hasMore) ───────────────────────────────
	rows, err := service.store.List(context, filter, limit+1)
	if err != nil {
		return nil, nil, err
	}

	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}

	// ── 3. Next Cursor ────────────────────────────────────────────────────
	var nextCursor *string
	if hasMore && len(rows) > 0 {
		last := rows[len(rows)-1]
		encoded := cursor.Encode(filter.Sort, last.Marker(filter.Sort))
		nextCursor = &encoded
	}

	if rows == nil {
		rows = []*Item{}
	}

	return rows, nextCursor, nil
}

// HighlightsQuery narrows the public highlights read model.
type HighlightsQuery struct {
	Scope  string // canada (all), g7 (GOV/PARTNER sources), world (non-GOV)
	Filter string // named tag set, or "offer"/"request" type shorthands
	Search string
	Type   Type
	Tag    string
	Limit  int
}

// HighlightsMeta describes the query echoed back with the result.
type HighlightsMeta struct {
	Scope  string `json:"scope"`
	Filter string `json:"filter"`
	Search string `json:"search"`
	Limit  int    `json:"limit"`
	Count  int    `json:"count"`
}

/*
Highlights returns the unpaginated public read model.

Description: A widened newest-first pool is fetched from storage, then scope,
type, tag-set, and free-text filtering run in memory before truncating to the
requested limit. The pool is max(limit*8, 250) capped at 500 rows, so a
heavily filtered view can still fill a page without unbounded scans.

Parameters:
  - context: context.Context
  - query: HighlightsQuery

Returns:
  - []*Item: Filtered newest-first items
  - HighlightsMeta: Echo of the applied query plus result count
  - error: Database execution failures
*/
func (service *Service) Highlights(context context.Context, query HighlightsQuery) ([]*Item, HighlightsMeta, error) {

	if query.Scope == "" {
		query.Scope = "canada"
	}

	// ── 1. Widened Pool ───────────────────────────────────────────────────
	poolSize := max(query.Limit*highlightsPoolFactor, highlightsPoolFloor)
	poolSize = min(poolSize, highlightsPoolCeil)

	pool, err := service.store.ListRecent(context, poolSize)
	if err != nil {
		return nil, HighlightsMeta{}, err
	}

	// ── 2. In-memory Filtering ────────────────────────────────────────────
	// An unknown named filter widens to everything, mirroring the unknown
	// scope behavior; surface it so bad client input is visible.
	if query.Filter != "" && !knownFilter(query.Filter) {
		service.logger.Debug("highlights_unknown_filter", slog.String("filter", query.Filter))
	}

	folder := cases.Fold()
	searchTerm := folder.String(strings.TrimSpace(query.Search))

	matched := make([]*Item, 0, query.Limit)
	for _, item := range pool {
		if !scopeMatches(query.Scope, item) {
			continue
		}
		if query.Type != "" && item.Type != query.Type {
			continue
		}
		if !filterMatches(query.Filter, item, folder) {
			continue
		}
		if query.Tag != "" && !tagMatches(item, folder.String(query.Tag), folder) {
			continue
		}
		if searchTerm != "" && !textMatches(item, searchTerm, folder) {
			continue
		}

		matched = append(matched, item)
		if len(matched) == query.Limit {
			break
		}
	}

	meta := HighlightsMeta{
		Scope:  query.Scope,
		Filter: query.Filter,
		Search: query.Search,
		Limit:  query.Limit,
		Count:  len(matched),
	}

	return matched, meta, nil
}

// # Filtering Helpers

// scopeMatches applies the highlights scope rules.
func scopeMatches(scope string, item *Item) bool {
	switch scope {
	case "g7":
		return item.Source.Kind == SourceGov || item.Source.Kind == SourcePartner
	case "world":
		return item.Source.Kind != SourceGov
	default:
		// canada, and any unknown scope, widens to everything
		return true
	}
}

// knownFilter reports whether the named filter is a recognized type
// shorthand or tag set.
func knownFilter(filter string) bool {
	switch filter {
	case "offer", "request":
		return true
	}
	_, known := namedTagSets[filter]
	return known
}

// filterMatches applies the named tag set or type shorthand.
func filterMatches(filter string, item *Item, folder cases.Caser) bool {
	switch filter {
	case "":
		return true
	case "offer":
		return item.Type == TypeOffer
	case "request":
		return item.Type == TypeRequest
	}

	keywords, known := namedTagSets[filter]
	if !known {
		return true
	}

	haystack := folder.String(item.Title) + " " + folder.String(strings.Join(item.Tags, " "))
	for _, keyword := range keywords {
		if strings.Contains(haystack, keyword) {
			return true
		}
	}
	return false
}

// tagMatches reports whether the item carries the (case-folded) tag.
func tagMatches(item *Item, foldedTag string, folder cases.Caser) bool {
	for _, tag := range item.Tags {
		if folder.String(tag) == foldedTag {
			return true
		}
	}
	return false
}

// textMatches runs the free-text search across title, summary, source label,
// sector, provinces, and tags.
func textMatches(item *Item, foldedTerm string, folder cases.Caser) bool {
	fields := []string{
		item.Title, item.Summary, item.Source.Label,
		item.SectorID, item.FromProvinceID, item.ToProvinceID,
	}
	fields = append(fields, item.Tags...)

	for _, field := range fields {
		if field == "" {
			continue
		}
		if strings.Contains(folder.String(field), foldedTerm) {
			return true
		}
	}
	return false
}

// clampScore forces urgency/credibility into the 1..3 scale.
func clampScore(score int) int {
	if score < 1 {
		return 1
	}
	if score > 3 {
		return 3
	}
	return score
}

// normalizeTags trims, lowercases, de-duplicates, and drops empty tags.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	normalized := make([]string, 0, len(tags))

	for _, tag := range tags {
		cleaned := strings.ToLower(strings.TrimSpace(tag))
		if cleaned == "" {
			continue
		}
		if _, duplicate := seen[cleaned]; duplicate {
			continue
		}
		seen[cleaned] = struct{}{}
		normalized = append(normalized, cleaned)
	}

	return normalized
}
