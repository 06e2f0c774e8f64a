// Copyright (c) 2026 OpenG7. All rights reserved.

package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenG7/openg7-platform-sub001/internal/platform/apperr"
	"github.com/OpenG7/openg7-platform-sub001/pkg/cursor"
)

// # Test Doubles

// memoryRepository is an in-memory Repository honoring the keyset contract
// closely enough for service-level tests.
type memoryRepository struct {
	items []*Item
}

func (repo *memoryRepository) Insert(_ context.Context, item *Item) error {
	repo.items = append(repo.items, item)
	return nil
}

func (repo *memoryRepository) FindByID(_ context.Context, id string) (*Item, error) {
	for _, item := range repo.items {
		if item.ID == id {
			return item, nil
		}
	}
	return nil, fmt.Errorf("find item: not found")
}

func (repo *memoryRepository) List(_ context.Context, filter Filter, fetchLimit int) ([]*Item, error) {
	matched := make([]*Item, 0, len(repo.items))
	for _, item := range repo.items {
		if filter.Type != "" && item.Type != filter.Type {
			continue
		}
		matched = append(matched, item)
	}

	sort.Slice(matched, func(left, right int) bool {
		a, b := matched[left], matched[right]
		if filter.Sort != cursor.SortNewest && a.ScoreFor(filter.Sort) != b.ScoreFor(filter.Sort) {
			return a.ScoreFor(filter.Sort) > b.ScoreFor(filter.Sort)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})

	if filter.Cursor != nil {
		marker := filter.Cursor.Marker
		seek := make([]*Item, 0, len(matched))
		for _, item := range matched {
			if afterMarker(item, marker, filter.Sort) {
				seek = append(seek, item)
			}
		}
		matched = seek
	}

	if len(matched) > fetchLimit {
		matched = matched[:fetchLimit]
	}
	return matched, nil
}

func (repo *memoryRepository) ListRecent(_ context.Context, fetchLimit int) ([]*Item, error) {
	recent := make([]*Item, len(repo.items))
	copy(recent, repo.items)
	sort.Slice(recent, func(left, right int) bool {
		if !recent[left].CreatedAt.Equal(recent[right].CreatedAt) {
			return recent[left].CreatedAt.After(recent[right].CreatedAt)
		}
		return recent[left].ID > recent[right].ID
	})
	if len(recent) > fetchLimit {
		recent = recent[:fetchLimit]
	}
	return recent, nil
}

// afterMarker mirrors the SQL seek predicate.
func afterMarker(item *Item, marker cursor.Marker, itemSort cursor.Sort) bool {
	if itemSort != cursor.SortNewest {
		switch {
		case item.ScoreFor(itemSort) != marker.Score:
			return item.ScoreFor(itemSort) < marker.Score
		case !item.CreatedAt.Equal(marker.CreatedAt):
			return item.CreatedAt.Before(marker.CreatedAt)
		default:
			return item.ID < marker.ID
		}
	}
	if !item.CreatedAt.Equal(marker.CreatedAt) {
		return item.CreatedAt.Before(marker.CreatedAt)
	}
	return item.ID < marker.ID
}

// memoryIdempotency is an in-memory IdempotencyRepository.
type memoryIdempotency struct {
	entries map[string]string
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{entries: make(map[string]string)}
}

func (repo *memoryIdempotency) Get(_ context.Context, userID, key string) (string, error) {
	return repo.entries[userID+":"+key], nil
}

func (repo *memoryIdempotency) Set(_ context.Context, userID, key, itemID string, _ time.Duration) error {
	repo.entries[userID+":"+key] = itemID
	return nil
}

func newTestService() (*Service, *memoryRepository, *StreamBroker) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := &memoryRepository{}
	broker := NewStreamBroker(time.Hour, logger)
	service := NewService(repo, newMemoryIdempotency(), broker, logger)
	return service, repo, broker
}

func seedItem(repo *memoryRepository, id string, createdAt time.Time, mutate func(*Item)) *Item {
	item := &Item{
		ID:        id,
		Type:      TypeOffer,
		Title:     "Softwood lumber surplus " + id,
		Summary:   "Mill capacity available for export",
		SectorID:  "forestry",
		Mode:      ModeExport,
		Urgency:   1,
		Tags:      []string{"lumber"},
		Source:    Source{Kind: SourceCommunity, Label: "tester"},
		Status:    StatusConfirmed,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if mutate != nil {
		mutate(item)
	}
	repo.items = append(repo.items, item)
	return item
}

// # Create

/*
TestService_Create_Idempotent verifies that retrying a create with the same
Idempotency-Key returns the original item and produces exactly one broadcast.
*/
func TestService_Create_Idempotent(t *testing.T) {
	service, repo, broker := newTestService()

	listener := &fakeStream{}
	_, err := broker.Register(listener, "watcher")
	require.NoError(t, err)

	input := CreateInput{
		Type:    TypeOffer,
		Title:   "Canola ready for export",
		Urgency: 2,
		Tags:    []string{"Canola", "canola", " ", "grain"},
	}

	// 1. First create persists and broadcasts.
	first, replayed, err := service.Create(context.Background(), "user-1", "prairie-coop", input, "retry-key")
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Len(t, repo.items, 1)

	// 2. Retry with the same key replays without a second row or broadcast.
	second, replayed, err := service.Create(context.Background(), "user-1", "prairie-coop", input, "retry-key")
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.items, 1)
	assert.Equal(t, 1, strings.Count(listener.contents(), "feed.item.created"))

	// 3. Defaults and normalization applied on the stored item.
	assert.Equal(t, StatusConfirmed, first.Status)
	assert.Equal(t, SourceCommunity, first.Source.Kind)
	assert.Equal(t, "prairie-coop", first.Source.Label)
	assert.Equal(t, 2, first.Urgency)
	assert.Equal(t, 1, first.Credibility)
	assert.Equal(t, []string{"canola", "grain"}, first.Tags)
}

/*
TestService_Create_NoKey verifies that creates without an Idempotency-Key are
never deduplicated.
*/
func TestService_Create_NoKey(t *testing.T) {
	service, repo, _ := newTestService()

	input := CreateInput{Type: TypeRequest, Title: "Need refrigerated trucking"}
	_, _, err := service.Create(context.Background(), "user-1", "shipper", input, "")
	require.NoError(t, err)
	_, _, err = service.Create(context.Background(), "user-1", "shipper", input, "")
	require.NoError(t, err)

	assert.Len(t, repo.items, 2)
}

// # List

/*
TestService_List_CursorFlow walks two keyset pages and verifies the second
page resumes exactly after the first.
*/
func TestService_List_CursorFlow(t *testing.T) {
	service, repo, _ := newTestService()

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	for index := 0; index < 5; index++ {
		seedItem(repo, fmt.Sprintf("item-%d", index), base.Add(time.Duration(index)*time.Minute), nil)
	}

	filter := Filter{Sort: cursor.SortNewest}

	// 1. First page: newest 2, with a next cursor.
	page, next, err := service.List(context.Background(), filter, "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, next)
	assert.Equal(t, "item-4", page[0].ID)
	assert.Equal(t, "item-3", page[1].ID)

	// 2. Second page resumes after the last returned row.
	page, next, err = service.List(context.Background(), filter, *next, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, next)
	assert.Equal(t, "item-2", page[0].ID)
	assert.Equal(t, "item-1", page[1].ID)

	// 3. Final page exhausts the cursor.
	page, next, err = service.List(context.Background(), filter, *next, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "item-0", page[0].ID)
	assert.Nil(t, next)
}

/*
TestService_List_CursorErrors verifies the rejection messages for malformed
and mismatched cursors.
*/
func TestService_List_CursorErrors(t *testing.T) {
	service, _, _ := newTestService()

	// Malformed cursor.
	_, _, err := service.List(context.Background(), Filter{Sort: cursor.SortNewest}, "!!not-a-cursor!!", 20)
	var appError *apperr.AppError
	require.ErrorAs(t, err, &appError)
	assert.Equal(t, "Malformed cursor", appError.Message)

	// Cursor issued for another sort.
	urgencyCursor := cursor.Encode(cursor.SortUrgency, cursor.Marker{
		ID:        "item-1",
		CreatedAt: time.Now().UTC(),
		Score:     3,
	})
	_, _, err = service.List(context.Background(), Filter{Sort: cursor.SortNewest}, urgencyCursor, 20)
	require.ErrorAs(t, err, &appError)
	assert.Equal(t, "Cursor was issued for a different sort", appError.Message)
}

/*
TestService_List_ScoredSort verifies score-ordered pages with the created-at
tie-break.
*/
func TestService_List_ScoredSort(t *testing.T) {
	service, repo, _ := newTestService()

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	seedItem(repo, "low", base.Add(2*time.Minute), func(item *Item) { item.Urgency = 1 })
	seedItem(repo, "high", base, func(item *Item) { item.Urgency = 3 })
	seedItem(repo, "mid", base.Add(time.Minute), func(item *Item) { item.Urgency = 2 })

	page, next, err := service.List(context.Background(), Filter{Sort: cursor.SortUrgency}, "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "high", page[0].ID)
	assert.Equal(t, "mid", page[1].ID)
	require.NotNil(t, next)

	page, _, err = service.List(context.Background(), Filter{Sort: cursor.SortUrgency}, *next, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "low", page[0].ID)
}

// # Highlights

/*
TestService_Highlights verifies scope, named tag sets, free-text search, and
limit truncation over the widened pool.
*/
func TestService_Highlights(t *testing.T) {
	service, repo, _ := newTestService()

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	seedItem(repo, "gov", base.Add(3*time.Minute), func(item *Item) {
		item.Source = Source{Kind: SourceGov, Label: "Statistics Canada"}
		item.Title = "Rail freight volumes up"
		item.Tags = []string{"rail"}
	})
	seedItem(repo, "partner", base.Add(2*time.Minute), func(item *Item) {
		item.Source = Source{Kind: SourcePartner, Label: "Chamber of Commerce"}
		item.Title = "Workforce staffing gap in manufacturing"
		item.Tags = []string{"labour"}
	})
	seedItem(repo, "community", base.Add(time.Minute), func(item *Item) {
		item.Source = Source{Kind: SourceCommunity, Label: "prairie-coop"}
		item.Title = "Canola OFFER from Saskatchewan"
		item.Type = TypeOffer
	})

	tests := []struct {
		name     string
		query    HighlightsQuery
		expected []string
	}{
		{
			name:     "default scope returns everything newest first",
			query:    HighlightsQuery{Limit: 20},
			expected: []string{"gov", "partner", "community"},
		},
		{
			name:     "g7 scope keeps gov and partner sources",
			query:    HighlightsQuery{Scope: "g7", Limit: 20},
			expected: []string{"gov", "partner"},
		},
		{
			name:     "world scope drops gov sources",
			query:    HighlightsQuery{Scope: "world", Limit: 20},
			expected: []string{"partner", "community"},
		},
		{
			name:     "transport tag set matches rail keyword",
			query:    HighlightsQuery{Filter: "transport", Limit: 20},
			expected: []string{"gov"},
		},
		{
			name:     "labor tag set folds labour",
			query:    HighlightsQuery{Filter: "labor", Limit: 20},
			expected: []string{"partner"},
		},
		{
			name:     "offer shorthand filters by type",
			query:    HighlightsQuery{Filter: "offer", Limit: 20},
			expected: []string{"community"},
		},
		{
			name:     "free-text search is case folded",
			query:    HighlightsQuery{Search: "CANOLA", Limit: 20},
			expected: []string{"community"},
		},
		{
			name:     "limit truncates newest first",
			query:    HighlightsQuery{Limit: 1},
			expected: []string{"gov"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			items, meta, err := service.Highlights(context.Background(), test.query)
			require.NoError(t, err)

			ids := make([]string, 0, len(items))
			for _, item := range items {
				ids = append(ids, item.ID)
			}
			assert.Equal(t, test.expected, ids)
			assert.Equal(t, len(test.expected), meta.Count)
		})
	}
}


/*
TestService_Highlights_UnknownFilter verifies that an unrecognized named
filter widens to the full set, like an unknown scope does, and leaves a
debug trace of the ignored value.
*/
func TestService_Highlights_UnknownFilter(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	repo := &memoryRepository{}
	service := NewService(repo, newMemoryIdempotency(), NewStreamBroker(time.Hour, logger), logger)

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	seedItem(repo, "first", base.Add(time.Minute), nil)
	seedItem(repo, "second", base, nil)

	items, _, err := service.Highlights(context.Background(), HighlightsQuery{Filter: "no-such-set", Limit: 20})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	assert.Contains(t, logs.String(), "highlights_unknown_filter")
	assert.Contains(t, logs.String(), "no-such-set")

	// Known filters stay quiet.
	logs.Reset()
	_, _, err = service.Highlights(context.Background(), HighlightsQuery{Filter: "offer", Limit: 20})
	require.NoError(t, err)
	assert.NotContains(t, logs.String(), "highlights_unknown_filter")
}
