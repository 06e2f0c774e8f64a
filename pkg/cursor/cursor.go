// Copyright (c) 2026 OpenG7. All rights reserved.

// Package cursor implements the opaque keyset-pagination cursor used by feed
// list endpoints.
//
// # Wire format
//
// A cursor is base64url(JSON) of a versioned envelope:
//
//	{"v":1,"sort":"NEWEST","marker":{"id":"...","createdAt":"...","score":0}}
//
// Clients must treat the string as opaque and echo it back unmodified. The
// schema carries an explicit version so a future v2 can change the marker
// shape without breaking old clients mid-flight.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	// Version is the current cursor schema version.
	Version = 1

	// DefaultLimit is the page size when the client does not specify one.
	DefaultLimit = 20
	// MaxLimit is the upper bound for page size to prevent system abuse.
	MaxLimit = 100
)

// # Sort Kinds

// Sort selects the ordering of a feed listing. Every sort is descending on
// its primary key with createdAt and id as descending tie-breaks.
type Sort string

const (
	SortNewest      Sort = "NEWEST"
	SortUrgency     Sort = "URGENCY"
	SortVolume      Sort = "VOLUME"
	SortCredibility Sort = "CREDIBILITY"
)

// ParseSort maps a raw query value onto a known sort kind.
//
// An empty value falls back to [SortNewest]; anything else unknown is an
// error so a typo'd sort never silently re-orders a cursor stream.
func ParseSort(raw string) (Sort, error) {
	switch Sort(raw) {
	case "":
		return SortNewest, nil
	case SortNewest, SortUrgency, SortVolume, SortCredibility:
		return Sort(raw), nil
	default:
		return "", fmt.Errorf("cursor: unknown sort %q", raw)
	}
}

// # Encoding & Decoding

// Decode failure modes, distinguishable by the caller for error reporting.
var (
	ErrMalformed    = errors.New("cursor: malformed encoding")
	ErrVersion      = errors.New("cursor: unsupported version")
	ErrUnknownSort  = errors.New("cursor: unknown sort")
	ErrMarker       = errors.New("cursor: incomplete marker")
	ErrSortMismatch = errors.New("cursor: sort does not match request")
)

// Marker pins the position of the last row the client has seen.
type Marker struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Score     float64   `json:"score"`
}

// Cursor is the decoded envelope.
type Cursor struct {
	Version int    `json:"v"`
	Sort    Sort   `json:"sort"`
	Marker  Marker `json:"marker"`
}

// Encode serializes a cursor for the given sort and marker.
func Encode(sort Sort, marker Marker) string {
	payload, _ := json.Marshal(Cursor{
		Version: Version,
		Sort:    sort,
		Marker:  marker,
	})
	return base64.RawURLEncoding.EncodeToString(payload)
}

// Decode parses an opaque cursor string.
//
// It rejects malformed base64/JSON, a version other than [Version], an
// unknown sort kind, and a marker missing its id or createdAt.
func Decode(encoded string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		// Tolerate padded variants of the same alphabet.
		raw, err = base64.URLEncoding.DecodeString(encoded)
		if err != nil {
			return Cursor{}, ErrMalformed
		}
	}

	var decoded Cursor
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Cursor{}, ErrMalformed
	}

	if decoded.Version != Version {
		return Cursor{}, ErrVersion
	}

	switch decoded.Sort {
	case SortNewest, SortUrgency, SortVolume, SortCredibility:
	default:
		return Cursor{}, ErrUnknownSort
	}

	if decoded.Marker.ID == "" || decoded.Marker.CreatedAt.IsZero() {
		return Cursor{}, ErrMarker
	}

	return decoded, nil
}

// DecodeFor parses a cursor and additionally enforces that it was issued for
// the same sort the client is requesting now. Mixing sorts across pages
// produces nonsense seek predicates, so a mismatch is a client error.
func DecodeFor(encoded string, sort Sort) (Cursor, error) {
	decoded, err := Decode(encoded)
	if err != nil {
		return Cursor{}, err
	}
	if decoded.Sort != sort {
		return Cursor{}, ErrSortMismatch
	}
	return decoded, nil
}

// # Request Helpers

// LimitFromRequest parses the "limit" query parameter.
//
// Invalid, non-positive, or excessive values are clamped to [DefaultLimit]
// or [MaxLimit].
func LimitFromRequest(request *http.Request) int {
	return ClampLimit(request.URL.Query().Get("limit"))
}

// ClampLimit converts a raw limit value into the [1, MaxLimit] range with
// [DefaultLimit] as the fallback.
func ClampLimit(raw string) int {
	if raw == "" {
		return DefaultLimit
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}

	return limit
}
