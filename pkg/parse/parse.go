// Copyright (c) 2026 OpenG7. All rights reserved.

/*
Package parse provides defaulted, fault-tolerant readers over untyped values.

It exists for data that crosses a trust boundary in loosely-typed form, such
as a JSONB preferences column decoded into map[string]any. Every reader takes
a fallback and never returns an error: unknown shapes, wrong types, and
malformed values silently resolve to the safe default. Callers rely on this
fallback-to-default behavior, so keep it when adding readers.

Do not use this package where distinguishing malformed data from a default
matters; decode into explicit structs instead.
*/
package parse

import (
	"regexp"
	"strings"
	"time"
)

// String reads v as a trimmed string, or returns fallback.
func String(v any, fallback string) string {
	s, ok := v.(string)
	if !ok {
		return fallback
	}

	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return fallback
	}

	return trimmed
}

// Bool reads v as a boolean, accepting native bools, the common string forms
// ("true"/"false"/"1"/"0"/"yes"/"no"), and JSON numbers (non-zero is true).
// Anything else returns fallback.
func Bool(v any, fallback bool) bool {
	switch value := v.(type) {
	case bool:
		return value
	case string:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
		return fallback
	case float64:
		return value != 0
	case int:
		return value != 0
	default:
		return fallback
	}
}

// StringSlice reads v as a slice of non-empty trimmed strings. Non-string
// elements are dropped; a non-slice value returns nil.
func StringSlice(v any) []string {
	var raw []any
	switch value := v.(type) {
	case []any:
		raw = value
	case []string:
		result := make([]string, 0, len(value))
		for _, s := range value {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	default:
		return nil
	}

	var result []string
	for _, element := range raw {
		if s, ok := element.(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				result = append(result, trimmed)
			}
		}
	}

	return result
}

// Enum reads v as a string and returns it only when it is one of allowed
// (case-insensitive match, returning the canonical allowed spelling).
// Everything else returns fallback.
func Enum(v any, allowed []string, fallback string) string {
	s := String(v, "")
	if s == "" {
		return fallback
	}

	for _, candidate := range allowed {
		if strings.EqualFold(s, candidate) {
			return candidate
		}
	}

	return fallback
}

// Object reads v as a JSON object. A non-object value returns nil.
func Object(v any) map[string]any {
	object, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return object
}

var hhmmPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// HHMM reads v as a 24-hour "HH:MM" time-of-day string. The second return is
// false when the value is absent or malformed.
func HHMM(v any) (string, bool) {
	s := String(v, "")
	if !hhmmPattern.MatchString(s) {
		return "", false
	}
	return s, true
}

// Timezone reads v as an IANA timezone name and resolves it. The second
// return is false when the value is absent or unknown to the tz database.
func Timezone(v any) (*time.Location, bool) {
	s := String(v, "")
	if s == "" {
		return nil, false
	}

	location, err := time.LoadLocation(s)
	if err != nil {
		return nil, false
	}

	return location, true
}
