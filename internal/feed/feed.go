// Copyright (c) 2026 OpenG7. All rights reserved.

/*
Package feed implements the trade-signal feed: publishing, cursor-paginated
listing, the public highlights read model, and live streaming over SSE.

# Architecture

The package follows the platform's domain layout:

  - feed.go: Entities and enumerations.
  - query.go: Dynamic SQL construction for keyset pagination.
  - store.go / store_postgres.go / store_redis.go: Persistence contracts
    and implementations (items in PostgreSQL, idempotency keys in Redis).
  - stream.go: The SSE broker (client registry, heartbeats, broadcast).
  - service.go: Application logic tying the above together.
  - http.go: Transport layer.
*/
package feed

import (
	"time"

	"github.com/OpenG7/openg7-platform-sub001/pkg/cursor"
)

// # Enumerations

// Type classifies what a feed item announces.
type Type string

const (
	TypeOffer     Type = "OFFER"
	TypeRequest   Type = "REQUEST"
	TypeAlert     Type = "ALERT"
	TypeTender    Type = "TENDER"
	TypeCapacity  Type = "CAPACITY"
	TypeIndicator Type = "INDICATOR"
)

// ParseType maps a raw value onto a known type; unknown values yield "".
func ParseType(raw string) Type {
	switch Type(raw) {
	case TypeOffer, TypeRequest, TypeAlert, TypeTender, TypeCapacity, TypeIndicator:
		return Type(raw)
	default:
		return ""
	}
}

// Mode is the trade direction of an item.
type Mode string

const (
	ModeExport Mode = "EXPORT"
	ModeImport Mode = "IMPORT"
	ModeBoth   Mode = "BOTH"
)

// ParseMode maps a raw value onto a known mode; unknown values yield "".
func ParseMode(raw string) Mode {
	switch Mode(raw) {
	case ModeExport, ModeImport, ModeBoth:
		return Mode(raw)
	default:
		return ""
	}
}

// Status is the publication state of an item. Only confirmed items are ever
// served by list endpoints.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusPending   Status = "pending"
	StatusFailed    Status = "failed"
)

// SourceKind classifies where a feed item originated.
type SourceKind string

const (
	SourceGov       SourceKind = "GOV"
	SourcePartner   SourceKind = "PARTNER"
	SourceMedia     SourceKind = "MEDIA"
	SourceCommunity SourceKind = "COMMUNITY"
)

// # Entities

// Quantity is an optional amount attached to an item.
type Quantity struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Source describes the provenance of an item.
type Source struct {
	Kind  SourceKind `json:"kind"`
	Label string     `json:"label"`
	URL   string     `json:"url,omitempty"`
}

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Geo carries optional origin/destination coordinates.
type Geo struct {
	From *GeoPoint `json:"from,omitempty"`
	To   *GeoPoint `json:"to,omitempty"`
}

// Item is one immutable feed entry.
type Item struct {
	ID                   string     `json:"id"`
	Type                 Type       `json:"type"`
	SectorID             string     `json:"sectorId,omitempty"`
	Title                string     `json:"title"`
	Summary              string     `json:"summary"`
	FromProvinceID       string     `json:"fromProvinceId,omitempty"`
	ToProvinceID         string     `json:"toProvinceId,omitempty"`
	Mode                 Mode       `json:"mode"`
	Quantity             *Quantity  `json:"quantity,omitempty"`
	Urgency              int        `json:"urgency"`
	Credibility          int        `json:"credibility"`
	VolumeScore          float64    `json:"volumeScore"`
	Tags                 []string   `json:"tags"`
	Source               Source     `json:"source"`
	Status               Status     `json:"status"`
	AccessibilitySummary string     `json:"accessibilitySummary,omitempty"`
	Geo                  *Geo       `json:"geo,omitempty"`
	CreatedBy            string     `json:"-"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// ScoreFor resolves the item's sort score for a cursor marker. NEWEST rows
// carry a zero score since createdAt alone orders them.
func (item *Item) ScoreFor(sort cursor.Sort) float64 {
	switch sort {
	case cursor.SortUrgency:
		return float64(item.Urgency)
	case cursor.SortVolume:
		return item.VolumeScore
	case cursor.SortCredibility:
		return float64(item.Credibility)
	default:
		return 0
	}
}

// Marker builds the cursor marker pinning this item's position.
func (item *Item) Marker(sort cursor.Sort) cursor.Marker {
	return cursor.Marker{
		ID:        item.ID,
		CreatedAt: item.CreatedAt,
		Score:     item.ScoreFor(sort),
	}
}

// # Query Inputs

// Filter narrows a feed listing. Zero-valued fields are not applied.
type Filter struct {
	Type           Type
	Mode           Mode
	SectorID       string
	FromProvinceID string
	ToProvinceID   string
	Search         string
	Sort           cursor.Sort
	Cursor         *cursor.Cursor
}
