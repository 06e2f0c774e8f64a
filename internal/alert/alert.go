// Copyright (c) 2026 OpenG7. All rights reserved.

/*
Package alert implements the user alert pipeline: saved-search evaluation,
notification-preference resolution, quiet-hours digesting, and multi-channel
delivery (in-app, email, webhook).

# File layout

  - alert.go          entities and enumerations
  - prefs.go          notification-preference normalization and quiet hours
  - service.go        generation, de-duplication, digest upsert, read/delete
  - dispatch.go       email and webhook delivery with failure tracking
  - store.go          repository contracts
  - store_postgres.go pgx implementations
  - http.go           HTTP delivery layer

# Delivery guarantees

Delivery is strictly best-effort. Generation already committed by the time
channels run, so email and webhook failures are recorded in a failures list
and never surfaced as request errors.
*/
package alert

import "time"

// Severity grades an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeveritySuccess  Severity = "success"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// KnownSeverities is the default severity filter (everything passes).
var KnownSeverities = []string{
	string(SeverityInfo), string(SeveritySuccess),
	string(SeverityWarning), string(SeverityCritical),
}

// ParseSeverity maps a raw value onto a known severity; unknown values yield "".
func ParseSeverity(raw string) Severity {
	switch Severity(raw) {
	case SeverityInfo, SeveritySuccess, SeverityWarning, SeverityCritical:
		return Severity(raw)
	default:
		return ""
	}
}

// SourceType records what produced an alert.
type SourceType string

const (
	SourceSavedSearch SourceType = "saved-search"
	SourceSystem      SourceType = "system"
)

// KnownSourceKinds is the default source filter, matching the feed's
// provenance taxonomy.
var KnownSourceKinds = []string{"GOV", "PARTNER", "MEDIA", "COMMUNITY"}

// # Entities

// UserAlert is one notification row owned by a single user.
type UserAlert struct {
	ID         string         `json:"id"`
	UserID     string         `json:"-"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Severity   Severity       `json:"severity"`
	SourceType SourceType     `json:"sourceType"`
	SourceID   string         `json:"sourceId,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	ReadAt     *time.Time     `json:"readAt,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// Read reports whether the alert has been acknowledged.
func (alert *UserAlert) Read() bool {
	return alert.ReadAt != nil
}

// Digest metadata keys. The dispatch stamp lives in metadata so upserts can
// preserve it while rewriting everything else.
const (
	metaDigest            = "digest"
	metaDateKey           = "dateKey"
	metaCount             = "count"
	metaItems             = "items"
	metaDispatchedAt      = "dispatchedAt"
	metaDispatchedDateKey = "dispatchedDateKey"
)

// SavedSearch is a stored feed query a user can be alerted about.
type SavedSearch struct {
	ID            string     `json:"id"`
	UserID        string     `json:"-"`
	Name          string     `json:"name"`
	Scope         string     `json:"scope"`
	Query         string     `json:"query"`
	Severity      Severity   `json:"severity"`
	SourceKind    string     `json:"sourceKind"`
	NotifyEnabled bool       `json:"notifyEnabled"`
	LastRunAt     *time.Time `json:"lastRunAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// GenerateReport summarizes one generation run.
type GenerateReport struct {
	Generated   int             `json:"generated"`
	Skipped     int             `json:"skipped"`
	FilteredOut int             `json:"filteredOut"`
	DigestMode  bool            `json:"digestMode"`
	QuietHours  bool            `json:"quietHours"`
	Dispatch    *DispatchResult `json:"dispatch,omitempty"`
}
