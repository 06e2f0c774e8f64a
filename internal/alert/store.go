// Copyright (c) 2026 OpenG7. All rights reserved.

package alert

import (
	"context"
	"time"
)

// AlertRepository persists user alerts.
type AlertRepository interface {
	// Insert stores a new alert.
	Insert(ctx context.Context, alert *UserAlert) error

	// Update rewrites a mutable alert row (title, message, severity,
	// metadata, readAt, updatedAt).
	Update(ctx context.Context, alert *UserAlert) error

	// ListByUser returns one page of the user's alerts newest-first,
	// unread rows surfacing ahead of read ones.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*UserAlert, error)

	// CountByUser returns the user's total alert count.
	CountByUser(ctx context.Context, userID string) (int, error)

	// FindByID returns one alert scoped to its owner, or dberr.ErrNotFound.
	FindByID(ctx context.Context, userID, alertID string) (*UserAlert, error)

	// FindRecentBySource returns the newest alert generated from the given
	// source since the cutoff, or nil when none exists.
	FindRecentBySource(ctx context.Context, userID, sourceID string, since time.Time) (*UserAlert, error)

	// FindDigest returns the digest alert keyed to the given calendar day,
	// or nil when none exists.
	FindDigest(ctx context.Context, userID, dateKey string) (*UserAlert, error)

	// MarkRead acknowledges one alert idempotently: an already-read alert
	// keeps its original readAt. Returns the updated row or dberr.ErrNotFound.
	MarkRead(ctx context.Context, userID, alertID string, at time.Time) (*UserAlert, error)

	// MarkReadBatch acknowledges up to limit unread alerts, returning how
	// many rows changed. Callers loop until progress stops.
	MarkReadBatch(ctx context.Context, userID string, at time.Time, limit int) (int, error)

	// DeleteReadBatch removes up to limit acknowledged alerts, returning how
	// many rows were deleted. Callers loop until progress stops.
	DeleteReadBatch(ctx context.Context, userID string, limit int) (int, error)

	// Delete removes one alert scoped to its owner, or dberr.ErrNotFound.
	Delete(ctx context.Context, userID, alertID string) error
}

// SavedSearchRepository persists saved feed searches.
type SavedSearchRepository interface {
	// ListNotifyEnabled returns the user's notify-enabled searches,
	// most-recently-updated first, capped at limit.
	ListNotifyEnabled(ctx context.Context, userID string, limit int) ([]*SavedSearch, error)

	// TouchLastRun stamps the search's lastRunAt.
	TouchLastRun(ctx context.Context, searchID string, at time.Time) error
}
