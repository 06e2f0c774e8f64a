// Copyright (c) 2026 OpenG7. All rights reserved.

package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenG7/openg7-platform-sub001/pkg/cursor"
)

/*
TestBuildListQuery_Base verifies the always-on confirmed predicate, the
newest-first ordering, and the limit argument.
*/
func TestBuildListQuery_Base(t *testing.T) {
	sql, args := buildListQuery(Filter{Sort: cursor.SortNewest}, 21)

	assert.Contains(t, sql, "WHERE status = 'confirmed'")
	assert.Contains(t, sql, "ORDER BY createdat DESC, id DESC")
	assert.Contains(t, sql, "LIMIT $1")
	require.Len(t, args, 1)
	assert.Equal(t, 21, args[0])
}

/*
TestBuildListQuery_Filters verifies equality filters and the free-text OR
block are numbered in order.
*/
func TestBuildListQuery_Filters(t *testing.T) {
	filter := Filter{
		Type:           TypeOffer,
		Mode:           ModeExport,
		SectorID:       "agri",
		FromProvinceID: "QC",
		ToProvinceID:   "ON",
		Search:         "ma%ple",
		Sort:           cursor.SortNewest,
	}

	sql, args := buildListQuery(filter, 11)

	assert.Contains(t, sql, "type = $1")
	assert.Contains(t, sql, "mode = $2")
	assert.Contains(t, sql, "sectorid = $3")
	assert.Contains(t, sql, "fromprovinceid = $4")
	assert.Contains(t, sql, "toprovinceid = $5")
	assert.Contains(t, sql, "title ILIKE $6 OR summary ILIKE $6 OR sourcelabel ILIKE $6")
	assert.Contains(t, sql, "LIMIT $7")

	require.Len(t, args, 7)
	// LIKE metacharacters in the search term are escaped
	assert.Equal(t, `%ma\%ple%`, args[5])
}

/*
TestBuildListQuery_SeekNewest verifies the two-level keyset tie-break for the
NEWEST sort.
*/
func TestBuildListQuery_SeekNewest(t *testing.T) {
	createdAt := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	filter := Filter{
		Sort: cursor.SortNewest,
		Cursor: &cursor.Cursor{
			Version: cursor.Version,
			Sort:    cursor.SortNewest,
			Marker:  cursor.Marker{ID: "item-9", CreatedAt: createdAt},
		},
	}

	sql, args := buildListQuery(filter, 21)

	assert.Contains(t, sql, "(createdat < $1 OR (createdat = $1 AND id < $2))")
	require.Len(t, args, 3)
	assert.Equal(t, createdAt, args[0])
	assert.Equal(t, "item-9", args[1])
}

/*
TestBuildListQuery_SeekScored verifies the three-level keyset tie-break and
matching ORDER BY for every score-based sort.
*/
func TestBuildListQuery_SeekScored(t *testing.T) {
	tests := []struct {
		sort   cursor.Sort
		column string
	}{
		{cursor.SortUrgency, "urgency"},
		{cursor.SortVolume, "volumescore"},
		{cursor.SortCredibility, "credibility"},
	}

	createdAt := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	for _, tt := range tests {
		t.Run(string(tt.sort), func(t *testing.T) {
			filter := Filter{
				Sort: tt.sort,
				Cursor: &cursor.Cursor{
					Version: cursor.Version,
					Sort:    tt.sort,
					Marker:  cursor.Marker{ID: "item-9", CreatedAt: createdAt, Score: 2},
				},
			}

			sql, args := buildListQuery(filter, 21)

			assert.Contains(t, sql,
				"("+tt.column+" < $1 OR ("+tt.column+" = $1 AND createdat < $2) OR ("+tt.column+" = $1 AND createdat = $2 AND id < $3))")
			assert.Contains(t, sql, "ORDER BY "+tt.column+" DESC, createdat DESC, id DESC")
			require.Len(t, args, 4)
			assert.Equal(t, float64(2), args[0])
		})
	}
}
