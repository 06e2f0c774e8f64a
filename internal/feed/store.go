// Copyright (c) 2026 OpenG7. All rights reserved.

package feed

import (
	"context"
	"time"
)

// # Feed Data Access

// Repository defines the data access contract for feed items.
type Repository interface {

	/*
		Insert persists a new feed item.

		Parameters:
		  - context: context.Context
		  - item: *Item

		Returns:
		  - error: Database execution failures
	*/
	Insert(context context.Context, item *Item) error

	/*
		FindByID returns the item with the given id.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *Item: Hydrated entity
		  - error: dberr.ErrNotFound or execution failures
	*/
	FindByID(context context.Context, id string) (*Item, error)

	/*
		List returns confirmed items matching the filter.

		Description: Rows follow the filter's sort with createdAt/id
		tie-breaks; fetchLimit rows at most are returned (callers pass page
		size plus one to detect another page).

		Parameters:
		  - context: context.Context
		  - filter: Filter
		  - fetchLimit: int

		Returns:
		  - []*Item: Result page
		  - error: Database execution failures
	*/
	List(context context.Context, filter Filter, fetchLimit int) ([]*Item, error)

	/*
		ListRecent returns the newest confirmed items, ignoring filters.

		Description: Feeds the highlights read model, which filters the
		widened pool in memory.

		Parameters:
		  - context: context.Context
		  - fetchLimit: int

		Returns:
		  - []*Item: Newest-first pool
		  - error: Database execution failures
	*/
	ListRecent(context context.Context, fetchLimit int) ([]*Item, error)
}

// IdempotencyRepository stores Idempotency-Key replay windows.
type IdempotencyRepository interface {

	// Get returns the feed item id recorded for the user's key, or "" when
	// no replay window is open.
	Get(context context.Context, userID, key string) (string, error)

	// Set opens a replay window mapping the user's key to an item id.
	Set(context context.Context, userID, key, itemID string, ttl time.Duration) error
}
