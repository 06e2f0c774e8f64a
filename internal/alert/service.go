// Copyright (c) 2026 OpenG7. All rights reserved.

package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/OpenG7/openg7-platform-sub001/internal/platform/constants"
	"github.com/OpenG7/openg7-platform-sub001/pkg/pagination"
	"github.com/OpenG7/openg7-platform-sub001/pkg/uuidv7"
)

// dayKeyLayout keys digest alerts to one calendar day in the user's zone.
const dayKeyLayout = "2006-01-02"

// ProfileDirectory reads the slice of the user profile the pipeline needs.
type ProfileDirectory interface {
	// NotificationPrefs returns the raw preferences document. A missing
	// profile yields an empty map, not an error.
	NotificationPrefs(ctx context.Context, userID string) (map[string]any, error)

	// EmailAddress returns the user's verified email address.
	EmailAddress(ctx context.Context, userID string) (string, error)
}

// Service implements the alert pipeline use cases.
type Service struct {
	alerts     AlertRepository
	searches   SavedSearchRepository
	profiles   ProfileDirectory
	dispatcher *Dispatcher
	logger     *slog.Logger

	// now is a test hook.
	now func() time.Time
}

// NewService constructs the alert service.
func NewService(
	alerts AlertRepository,
	searches SavedSearchRepository,
	profiles ProfileDirectory,
	dispatcher *Dispatcher,
	logger *slog.Logger,
) *Service {
	return &Service{
		alerts:     alerts,
		searches:   searches,
		profiles:   profiles,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Preferences resolves the user's normalized notification preferences.
func (service *Service) Preferences(ctx context.Context, userID string) (NotificationPreferences, error) {
	raw, err := service.profiles.NotificationPrefs(ctx, userID)
	if err != nil {
		return NotificationPreferences{}, err
	}
	return ResolvePreferences(raw), nil
}

/*
GenerateFromSavedSearches evaluates the user's notify-enabled saved searches
and turns fresh matches into alerts.

Description: Searches are scanned most-recently-updated first, capped at 50
per run. A search that already produced an alert within the last 24 hours is
skipped. Surviving candidates are dropped when their severity or source kind
falls outside the user's filters. In digest mode (daily-digest preference, or
quiet hours currently active) all candidates collapse into a single day-keyed
digest alert, upserted in place so a second run on the same day never
duplicates it. Delivery runs after generation unless quiet hours are active;
a digest already dispatched for today's day key is not re-delivered.

Parameters:
  - ctx: context.Context
  - userID: string

Returns:
  - GenerateReport: Generated/skipped/filtered counters plus delivery outcome
  - error: Preference or persistence failures (delivery failures never bubble)
*/
func (service *Service) GenerateFromSavedSearches(ctx context.Context, userID string) (GenerateReport, error) {

	// ── 1. Preferences & Mode ─────────────────────────────────────────────
	preferences, err := service.Preferences(ctx, userID)
	if err != nil {
		return GenerateReport{}, err
	}

	currentTime := service.now().UTC()
	quietActive := preferences.QuietHoursActive(currentTime)
	digestMode := preferences.Frequency == FrequencyDigest || quietActive
	dayKey := currentTime.In(preferences.Location()).Format(dayKeyLayout)

	report := GenerateReport{DigestMode: digestMode, QuietHours: quietActive}

	// ── 2. Saved Search Scan ──────────────────────────────────────────────
	searches, err := service.searches.ListNotifyEnabled(ctx, userID, constants.SavedSearchScanCap)
	if err != nil {
		return GenerateReport{}, err
	}

	dedupSince := currentTime.Add(-constants.AlertDedupWindow)
	candidates := make([]*UserAlert, 0, len(searches))

	for _, search := range searches {
		recent, err := service.alerts.FindRecentBySource(ctx, userID, search.ID, dedupSince)
		if err != nil {
			return GenerateReport{}, err
		}
		if recent != nil {
			report.Skipped++
			continue
		}

		candidate := service.buildCandidate(userID, search, currentTime)

		if !preferences.SeverityAllowed(candidate.Severity) || !preferences.SourceAllowed(search.SourceKind) {
			report.FilteredOut++
			continue
		}

		if !digestMode {
			// Instant mode persists per-candidate, in-app channel permitting.
			if preferences.Channels.InApp {
				if err := service.alerts.Insert(ctx, candidate); err != nil {
					return GenerateReport{}, err
				}
			}
			candidates = append(candidates, candidate)
			report.Generated++
		} else {
			candidates = append(candidates, candidate)
			report.Generated++
		}

		// Best effort: a failed stamp must not abort the run.
		if err := service.searches.TouchLastRun(ctx, search.ID, currentTime); err != nil {
			service.logger.Warn("saved_search_touch_failed",
				slog.String("search_id", search.ID),
				slog.Any("error", err),
			)
		}
	}

	// ── 3. Digest Upsert ──────────────────────────────────────────────────
	var digest *UserAlert
	if digestMode && len(candidates) > 0 {
		digest, err = service.upsertDigest(ctx, userID, dayKey, candidates, currentTime)
		if err != nil {
			return GenerateReport{}, err
		}
	}

	// ── 4. Delivery ───────────────────────────────────────────────────────
	deliverable := candidates
	if digestMode {
		deliverable = nil
		if digest != nil && !digestDispatchedFor(digest, dayKey) {
			deliverable = []*UserAlert{digest}
		}
	}

	if quietActive || len(deliverable) == 0 {
		return report, nil
	}

	result := service.dispatcher.Dispatch(ctx, userID, preferences, deliverable, digestMode)
	report.Dispatch = &result

	// The dispatch stamp is written only on a successful channel, so a user
	// with every channel disabled keeps recomputing the digest. Matches the
	// upstream contract.
	if digestMode && digest != nil && (result.EmailSent || result.WebhookSent) {
		digest.Metadata[metaDispatchedAt] = currentTime.Format(time.RFC3339)
		digest.Metadata[metaDispatchedDateKey] = dayKey
		digest.UpdatedAt = currentTime
		if err := service.alerts.Update(ctx, digest); err != nil {
			service.logger.Warn("digest_stamp_failed",
				slog.String("alert_id", digest.ID),
				slog.Any("error", err),
			)
		}
	}

	return report, nil
}

// buildCandidate turns a saved search into an alert candidate.
func (service *Service) buildCandidate(userID string, search *SavedSearch, currentTime time.Time) *UserAlert {
	severity := search.Severity
	if ParseSeverity(string(severity)) == "" {
		severity = SeverityInfo
	}

	return &UserAlert{
		ID:         uuidv7.New(),
		UserID:     userID,
		Title:      fmt.Sprintf("New activity for %q", search.Name),
		Message:    fmt.Sprintf("Your saved search %q (%s) has fresh matches.", search.Name, search.Scope),
		Severity:   severity,
		SourceType: SourceSavedSearch,
		SourceID:   search.ID,
		Metadata: map[string]any{
			"scope": search.Scope,
			"query": search.Query,
		},
		CreatedAt: currentTime,
		UpdatedAt: currentTime,
	}
}

// upsertDigest folds candidates into today's digest alert, creating it on
// first use and rewriting its content in place on subsequent runs. Any
// dispatch stamp already present is preserved.
func (service *Service) upsertDigest(ctx context.Context, userID, dayKey string, candidates []*UserAlert, currentTime time.Time) (*UserAlert, error) {

	severity := highestSeverity(candidates)
	items := make([]any, 0, len(candidates))
	for _, candidate := range candidates {
		items = append(items, map[string]any{
			"title":    candidate.Title,
			"severity": string(candidate.Severity),
			"sourceId": candidate.SourceID,
		})
	}

	existing, err := service.alerts.FindDigest(ctx, userID, dayKey)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		digest := &UserAlert{
			ID:         uuidv7.New(),
			UserID:     userID,
			Title:      fmt.Sprintf("Daily digest for %s", dayKey),
			Message:    fmt.Sprintf("%d saved-search update(s) were collected for you today.", len(candidates)),
			Severity:   severity,
			SourceType: SourceSystem,
			Metadata: map[string]any{
				metaDigest:  true,
				metaDateKey: dayKey,
				metaCount:   len(candidates),
				metaItems:   items,
			},
			CreatedAt: currentTime,
			UpdatedAt: currentTime,
		}
		if err := service.alerts.Insert(ctx, digest); err != nil {
			return nil, err
		}
		return digest, nil
	}

	previousCount, _ := existing.Metadata[metaCount].(int)
	if previousCount == 0 {
		if asFloat, ok := existing.Metadata[metaCount].(float64); ok {
			previousCount = int(asFloat)
		}
	}
	total := previousCount + len(candidates)

	existing.Title = fmt.Sprintf("Daily digest for %s", dayKey)
	existing.Message = fmt.Sprintf("%d saved-search update(s) were collected for you today.", total)
	if severityRank(severity) > severityRank(existing.Severity) {
		existing.Severity = severity
	}
	existing.Metadata[metaDigest] = true
	existing.Metadata[metaDateKey] = dayKey
	existing.Metadata[metaCount] = total
	existing.Metadata[metaItems] = appendItems(existing.Metadata[metaItems], items)
	existing.UpdatedAt = currentTime

	if err := service.alerts.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// digestDispatchedFor reports whether the digest was already delivered under
// this day key.
func digestDispatchedFor(digest *UserAlert, dayKey string) bool {
	stamped, _ := digest.Metadata[metaDispatchedDateKey].(string)
	return stamped == dayKey
}

func appendItems(existing any, fresh []any) []any {
	merged, _ := existing.([]any)
	return append(merged, fresh...)
}

func severityRank(severity Severity) int {
	switch severity {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeveritySuccess:
		return 1
	default:
		return 0
	}
}

func highestSeverity(alerts []*UserAlert) Severity {
	highest := SeverityInfo
	for _, alert := range alerts {
		if severityRank(alert.Severity) > severityRank(highest) {
			highest = alert.Severity
		}
	}
	return highest
}

// # Read & Mutate

// List returns one page of the user's alerts newest-first with unread rows
// surfacing ahead of read ones, plus the pagination metadata for the full set.
func (service *Service) List(ctx context.Context, userID string, params pagination.Params) ([]*UserAlert, pagination.Meta, error) {
	alerts, err := service.alerts.ListByUser(ctx, userID, params.Limit, params.Offset())
	if err != nil {
		return nil, pagination.Meta{}, err
	}

	total, err := service.alerts.CountByUser(ctx, userID)
	if err != nil {
		return nil, pagination.Meta{}, err
	}

	return alerts, pagination.NewMeta(params.Page, params.Limit, total), nil
}

// CreateInput is the validated payload for a manually created alert.
type CreateInput struct {
	Title    string
	Message  string
	Severity Severity
	Metadata map[string]any
}

// Create persists a system-sourced alert for the user.
func (service *Service) Create(ctx context.Context, userID string, input CreateInput) (*UserAlert, error) {
	currentTime := service.now().UTC()

	severity := input.Severity
	if ParseSeverity(string(severity)) == "" {
		severity = SeverityInfo
	}

	alert := &UserAlert{
		ID:         uuidv7.New(),
		UserID:     userID,
		Title:      input.Title,
		Message:    input.Message,
		Severity:   severity,
		SourceType: SourceSystem,
		Metadata:   input.Metadata,
		CreatedAt:  currentTime,
		UpdatedAt:  currentTime,
	}

	if err := service.alerts.Insert(ctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

// MarkRead acknowledges one alert. Re-reading an already-read alert keeps its
// original readAt stamp.
func (service *Service) MarkRead(ctx context.Context, userID, alertID string) (*UserAlert, error) {
	return service.alerts.MarkRead(ctx, userID, alertID, service.now().UTC())
}

// MarkAllRead acknowledges every unread alert in bounded batches, looping
// until the store reports no further progress.
func (service *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	currentTime := service.now().UTC()

	total := 0
	for {
		affected, err := service.alerts.MarkReadBatch(ctx, userID, currentTime, constants.AlertBatchSize)
		if err != nil {
			return total, err
		}
		total += affected
		if affected < constants.AlertBatchSize {
			return total, nil
		}
	}
}

// DeleteRead removes every acknowledged alert in bounded batches.
func (service *Service) DeleteRead(ctx context.Context, userID string) (int, error) {
	total := 0
	for {
		affected, err := service.alerts.DeleteReadBatch(ctx, userID, constants.AlertBatchSize)
		if err != nil {
			return total, err
		}
		total += affected
		if affected < constants.AlertBatchSize {
			return total, nil
		}
	}
}

// Delete removes one alert owned by the user.
func (service *Service) Delete(ctx context.Context, userID, alertID string) error {
	return service.alerts.Delete(ctx, userID, alertID)
}
