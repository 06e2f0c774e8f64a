// Copyright (c) 2026 OpenG7. All rights reserved.

package alert

import (
	"time"

	"github.com/OpenG7/openg7-platform-sub001/pkg/parse"
)

// Frequency selects between per-event and aggregated delivery.
type Frequency string

const (
	FrequencyInstant Frequency = "instant"
	FrequencyDigest  Frequency = "daily-digest"
)

// Channels toggles the delivery surfaces.
type Channels struct {
	InApp   bool `json:"inApp"`
	Email   bool `json:"email"`
	Webhook bool `json:"webhook"`
}

// Filters restricts which candidates become alerts.
type Filters struct {
	Severities []string `json:"severities"`
	Sources    []string `json:"sources"`
}

// QuietHours is a local-time window during which instant delivery is
// suppressed in favor of digesting.
type QuietHours struct {
	Enabled  bool   `json:"enabled"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Timezone string `json:"timezone"`

	location *time.Location
}

// NotificationPreferences is the fully normalized per-user delivery policy.
type NotificationPreferences struct {
	Channels   Channels   `json:"channels"`
	Frequency  Frequency  `json:"frequency"`
	EmailOptIn bool       `json:"emailOptIn"`
	WebhookURL string     `json:"webhookUrl,omitempty"`
	Filters    Filters    `json:"filters"`
	QuietHours QuietHours `json:"quietHours"`
}

/*
ResolvePreferences normalizes the raw notification-preferences document stored
on the user profile.

Description: Every sub-field is read defensively. Unknown or malformed input
falls back to a safe default rather than failing: channels default to in-app
only (webhook turns on only when a URL is present), severity and source
filters default to "all known values", and frequency defaults to instant.
Quiet hours count as enabled only when the stored flag is set AND both wall
clock times are valid, distinct HH:MM values AND the timezone resolves as an
IANA name. Anything less and the window is treated as disabled.

Parameters:
  - raw: map[string]any (raw JSONB document, may be nil)

Returns:
  - NotificationPreferences: Never nil fields, always usable
*/
func ResolvePreferences(raw map[string]any) NotificationPreferences {

	// ── 1. Channels & Delivery ────────────────────────────────────────────
	webhookURL := parse.String(raw["webhookUrl"], "")
	channelsRaw := parse.Object(raw["channels"])

	preferences := NotificationPreferences{
		Channels: Channels{
			InApp:   parse.Bool(channelsRaw["inApp"], true),
			Email:   parse.Bool(channelsRaw["email"], false),
			Webhook: parse.Bool(channelsRaw["webhook"], webhookURL != ""),
		},
		Frequency: Frequency(parse.Enum(raw["frequency"],
			[]string{string(FrequencyInstant), string(FrequencyDigest)},
			string(FrequencyInstant))),
		EmailOptIn: parse.Bool(raw["emailOptIn"], false),
		WebhookURL: webhookURL,
	}

	// ── 2. Filters ────────────────────────────────────────────────────────
	filtersRaw := parse.Object(raw["filters"])
	preferences.Filters = Filters{
		Severities: knownSubset(parse.StringSlice(filtersRaw["severities"]), KnownSeverities),
		Sources:    knownSubset(parse.StringSlice(filtersRaw["sources"]), KnownSourceKinds),
	}

	// ── 3. Quiet Hours ────────────────────────────────────────────────────
	quietRaw := parse.Object(raw["quietHours"])
	start, startValid := parse.HHMM(quietRaw["start"])
	end, endValid := parse.HHMM(quietRaw["end"])
	location, timezoneValid := parse.Timezone(quietRaw["timezone"])

	wellFormed := startValid && endValid && timezoneValid && start != end
	preferences.QuietHours = QuietHours{
		Enabled:  parse.Bool(quietRaw["enabled"], false) && wellFormed,
		Start:    start,
		End:      end,
		Timezone: parse.String(quietRaw["timezone"], ""),
		location: location,
	}

	return preferences
}

/*
QuietHoursActive reports whether the given instant falls inside the user's
quiet-hours window.

Description: The instant is resolved to wall clock time in the configured
timezone and tested against the [start, end) window. A start later than the
end means the window spans midnight (22:00-06:00 is active at 23:30 and at
02:00, inactive at 12:00). A zero-width window is never active.

Parameters:
  - now: time.Time

Returns:
  - bool: True when instant delivery should be suppressed
*/
func (preferences NotificationPreferences) QuietHoursActive(now time.Time) bool {
	quiet := preferences.QuietHours
	if !quiet.Enabled || quiet.location == nil || quiet.Start == quiet.End {
		return false
	}

	wallClock := now.In(quiet.location).Format("15:04")

	if quiet.Start < quiet.End {
		return wallClock >= quiet.Start && wallClock < quiet.End
	}
	// Overnight wraparound.
	return wallClock >= quiet.Start || wallClock < quiet.End
}

// Location returns the quiet-hours timezone, defaulting to UTC. Day keys for
// digest aggregation are computed in this zone so "today" matches the user's
// wall clock.
func (preferences NotificationPreferences) Location() *time.Location {
	if preferences.QuietHours.location != nil {
		return preferences.QuietHours.location
	}
	return time.UTC
}

// SeverityAllowed tests a candidate against the severity filter.
func (preferences NotificationPreferences) SeverityAllowed(severity Severity) bool {
	return contains(preferences.Filters.Severities, string(severity))
}

// SourceAllowed tests a candidate against the source filter. Candidates with
// no source kind always pass.
func (preferences NotificationPreferences) SourceAllowed(sourceKind string) bool {
	if sourceKind == "" {
		return true
	}
	return contains(preferences.Filters.Sources, sourceKind)
}

// knownSubset keeps the provided values that appear in the known list, falling
// back to every known value when nothing usable remains.
func knownSubset(values, known []string) []string {
	kept := make([]string, 0, len(values))
	for _, value := range values {
		if contains(known, value) {
			kept = append(kept, value)
		}
	}
	if len(kept) == 0 {
		return append([]string(nil), known...)
	}
	return kept
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
