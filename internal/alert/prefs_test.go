// Copyright (c) 2026 OpenG7. All rights reserved.

package alert_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenG7/openg7-platform-sub001/internal/alert"
)

/*
TestResolvePreferences verifies the defensive normalization of the raw
notification-preferences document.
*/
func TestResolvePreferences(t *testing.T) {
	t.Run("nil document yields safe defaults", func(t *testing.T) {
		preferences := alert.ResolvePreferences(nil)

		assert.True(t, preferences.Channels.InApp)
		assert.False(t, preferences.Channels.Email)
		assert.False(t, preferences.Channels.Webhook)
		assert.Equal(t, alert.FrequencyInstant, preferences.Frequency)
		assert.False(t, preferences.EmailOptIn)
		assert.ElementsMatch(t, alert.KnownSeverities, preferences.Filters.Severities)
		assert.ElementsMatch(t, alert.KnownSourceKinds, preferences.Filters.Sources)
		assert.False(t, preferences.QuietHours.Enabled)
	})

	t.Run("webhook channel defaults to url presence", func(t *testing.T) {
		preferences := alert.ResolvePreferences(map[string]any{
			"webhookUrl": "https://hooks.example.com/notify",
		})
		assert.True(t, preferences.Channels.Webhook)
	})

	t.Run("malformed sub-fields fall back instead of failing", func(t *testing.T) {
		preferences := alert.ResolvePreferences(map[string]any{
			"channels":  "not-an-object",
			"frequency": "hourly",
			"filters": map[string]any{
				"severities": []any{"warning", "bogus", 42},
				"sources":    "GOV",
			},
		})

		assert.True(t, preferences.Channels.InApp)
		assert.Equal(t, alert.FrequencyInstant, preferences.Frequency)
		assert.Equal(t, []string{"warning"}, preferences.Filters.Severities)
		// Unusable source list falls back to everything.
		assert.ElementsMatch(t, alert.KnownSourceKinds, preferences.Filters.Sources)
	})

	t.Run("quiet hours require start end and timezone", func(t *testing.T) {
		tests := []struct {
			name    string
			quiet   map[string]any
			enabled bool
		}{
			{
				name: "fully specified",
				quiet: map[string]any{
					"enabled": true, "start": "22:00", "end": "06:00",
					"timezone": "America/Toronto",
				},
				enabled: true,
			},
			{
				name: "flag set but missing end",
				quiet: map[string]any{
					"enabled": true, "start": "22:00", "timezone": "America/Toronto",
				},
				enabled: false,
			},
			{
				name: "invalid timezone",
				quiet: map[string]any{
					"enabled": true, "start": "22:00", "end": "06:00",
					"timezone": "Mars/Olympus",
				},
				enabled: false,
			},
			{
				name: "zero width window",
				quiet: map[string]any{
					"enabled": true, "start": "22:00", "end": "22:00",
					"timezone": "America/Toronto",
				},
				enabled: false,
			},
			{
				name: "well formed but flag off",
				quiet: map[string]any{
					"enabled": false, "start": "22:00", "end": "06:00",
					"timezone": "America/Toronto",
				},
				enabled: false,
			},
		}

		for _, test := range tests {
			t.Run(test.name, func(t *testing.T) {
				preferences := alert.ResolvePreferences(map[string]any{"quietHours": test.quiet})
				assert.Equal(t, test.enabled, preferences.QuietHours.Enabled)
			})
		}
	})
}

/*
TestQuietHoursActive verifies the [start, end) window including the overnight
wraparound.
*/
func TestQuietHoursActive(t *testing.T) {
	overnight := alert.ResolvePreferences(map[string]any{
		"quietHours": map[string]any{
			"enabled": true, "start": "22:00", "end": "06:00", "timezone": "UTC",
		},
	})
	require.True(t, overnight.QuietHours.Enabled)

	day := func(hour, minute int) time.Time {
		return time.Date(2026, 5, 1, hour, minute, 0, 0, time.UTC)
	}

	tests := []struct {
		name   string
		at     time.Time
		active bool
	}{
		{"late evening inside window", day(23, 30), true},
		{"small hours inside window", day(2, 0), true},
		{"noon outside window", day(12, 0), false},
		{"boundary start is inside", day(22, 0), true},
		{"boundary end is outside", day(6, 0), false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.active, overnight.QuietHoursActive(test.at))
		})
	}

	t.Run("same day window", func(t *testing.T) {
		daytime := alert.ResolvePreferences(map[string]any{
			"quietHours": map[string]any{
				"enabled": true, "start": "09:00", "end": "17:00", "timezone": "UTC",
			},
		})
		assert.True(t, daytime.QuietHoursActive(day(12, 0)))
		assert.False(t, daytime.QuietHoursActive(day(20, 0)))
	})

	t.Run("timezone shifts the wall clock", func(t *testing.T) {
		toronto := alert.ResolvePreferences(map[string]any{
			"quietHours": map[string]any{
				"enabled": true, "start": "22:00", "end": "06:00",
				"timezone": "America/Toronto",
			},
		})
		// 03:00 UTC is 23:00 in Toronto (EDT): inside the window.
		assert.True(t, toronto.QuietHoursActive(day(3, 0)))
		// 16:00 UTC is noon in Toronto: outside.
		assert.False(t, toronto.QuietHoursActive(day(16, 0)))
	})
}
