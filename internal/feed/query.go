// Copyright (c) 2026 OpenG7. All rights reserved.

package feed

import (
	"fmt"
	"strings"

	"github.com/OpenG7/openg7-platform-sub001/internal/platform/database/schema"
	"github.com/OpenG7/openg7-platform-sub001/pkg/cursor"
)

// # Dynamic Query Construction

// scoreColumn maps a sort kind to the column carrying its score.
func scoreColumn(sort cursor.Sort) string {
	switch sort {
	case cursor.SortUrgency:
		return schema.FeedItem.Urgency
	case cursor.SortVolume:
		return schema.FeedItem.VolumeScore
	case cursor.SortCredibility:
		return schema.FeedItem.Credibility
	default:
		return ""
	}
}

/*
buildListQuery assembles the feed listing SQL for a filter.

Description: The base predicate always pins status = confirmed. Equality
filters and the free-text OR block are ANDed in as present. When a cursor is
set, a keyset seek condition is ANDed in with strictly-descending tie-breaks
so pagination is stable under concurrent inserts:

  - NEWEST: (createdat, id) < (marker.createdAt, marker.id)
  - score sorts: three-level (score, createdat, id) OR-chain

The ORDER BY mirrors the seek condition exactly; fetchLimit is expected to be
the page size plus one so the caller can detect hasMore.

Parameters:
  - filter: Filter
  - fetchLimit: int

Returns:
  - string: Parameterized SQL
  - []any: Positional arguments
*/
func buildListQuery(filter Filter, fetchLimit int) (string, []any) {

	item := schema.FeedItem

	var queryBuilder strings.Builder
	var args []any
	argID := 1

	queryBuilder.WriteString(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s = '%s'
	`, strings.Join(item.Columns(), ", "), item.Table, item.Status, StatusConfirmed))

	// Apply Filters (Dynamic WHERE clause construction)
	if filter.Type != "" {
		queryBuilder.WriteString(fmt.Sprintf(" AND %s = $%d", item.Type, argID))
		args = append(args, string(filter.Type))
		argID++
	}

	if filter.Mode != "" {
		queryBuilder.WriteString(fmt.Sprintf(" AND %s = $%d", item.Mode, argID))
		args = append(args, string(filter.Mode))
		argID++
	}

	if filter.SectorID != "" {
		queryBuilder.WriteString(fmt.Sprintf(" AND %s = $%d", item.SectorID, argID))
		args = append(args, filter.SectorID)
		argID++
	}

	if filter.FromProvinceID != "" {
		queryBuilder.WriteString(fmt.Sprintf(" AND %s = $%d", item.FromProvinceID, argID))
		args = append(args, filter.FromProvinceID)
		argID++
	}

	if filter.ToProvinceID != "" {
		queryBuilder.WriteString(fmt.Sprintf(" AND %s = $%d", item.ToProvinceID, argID))
		args = append(args, filter.ToProvinceID)
		argID++
	}

	// Free-text search across title, summary, and source label
	if filter.Search != "" {
		queryBuilder.WriteString(fmt.Sprintf(
			" AND (%s ILIKE $%d OR %s ILIKE $%d OR %s ILIKE $%d)",
			item.Title, argID, item.Summary, argID, item.SourceLabel, argID,
		))
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		argID++
	}

	// Keyset seek condition
	if filter.Cursor != nil {
		marker := filter.Cursor.Marker

		if score := scoreColumn(filter.Sort); score != "" {
			queryBuilder.WriteString(fmt.Sprintf(
				" AND (%s < $%d OR (%s = $%d AND %s < $%d) OR (%s = $%d AND %s = $%d AND %s < $%d))",
				score, argID,
				score, argID, item.CreatedAt, argID+1,
				score, argID, item.CreatedAt, argID+1, item.ID, argID+2,
			))
			args = append(args, marker.Score, marker.CreatedAt, marker.ID)
			argID += 3
		} else {
			queryBuilder.WriteString(fmt.Sprintf(
				" AND (%s < $%d OR (%s = $%d AND %s < $%d))",
				item.CreatedAt, argID,
				item.CreatedAt, argID, item.ID, argID+1,
			))
			args = append(args, marker.CreatedAt, marker.ID)
			argID += 2
		}
	}

	// Sort order must mirror the seek condition
	if score := scoreColumn(filter.Sort); score != "" {
		queryBuilder.WriteString(fmt.Sprintf(
			" ORDER BY %s DESC, %s DESC, %s DESC", score, item.CreatedAt, item.ID,
		))
	} else {
		queryBuilder.WriteString(fmt.Sprintf(
			" ORDER BY %s DESC, %s DESC", item.CreatedAt, item.ID,
		))
	}

	queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d", argID))
	args = append(args, fetchLimit)

	return queryBuilder.String(), args
}

// escapeLike neutralizes LIKE metacharacters in user search input.
func escapeLike(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(term)
}
