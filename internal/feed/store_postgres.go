// Copyright (c) 2026 OpenG7. All rights reserved.

package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/OpenG7/openg7-platform-sub001/internal/platform/database/schema"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/dberr"
)

// # PostgreSQL Repository

// feedRepository implements [Repository] using pgx.
type feedRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed feed item store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &feedRepository{pool: pool}
}

/*
Insert persists a new feed item.

Parameters:
  - context: context.Context
  - item: *Item

Returns:
  - error: Database execution failures
*/
func (repository *feedRepository) Insert(context context.Context, item *Item) error {

	table := schema.FeedItem
	columns := table.Columns()

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table.Table, strings.Join(columns, ", "), strings.Join(placeholders, ", "),
	)

	geoFrom, geoTo, err := encodeGeo(item.Geo)
	if err != nil {
		return err
	}

	var quantityValue *float64
	var quantityUnit *string
	if item.Quantity != nil {
		quantityValue = &item.Quantity.Value
		quantityUnit = &item.Quantity.Unit
	}

	_, err = repository.pool.Exec(context, query,
		item.ID, string(item.Type), nullable(item.SectorID), item.Title, item.Summary,
		nullable(item.FromProvinceID), nullable(item.ToProvinceID), string(item.Mode),
		quantityValue, quantityUnit, item.Urgency, item.Credibility, item.VolumeScore,
		item.Tags, string(item.Source.Kind), item.Source.Label, nullable(item.Source.URL),
		string(item.Status), nullable(item.AccessibilitySummary), geoFrom, geoTo,
		item.CreatedBy, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return dberr.Wrap(err, "feed_item_insert")
	}

	return nil
}

/*
FindByID returns the item with the given id.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - *Item: Hydrated entity
  - error: dberr.ErrNotFound or execution failures
*/
func (repository *feedRepository) FindByID(context context.Context, id string) (*Item, error) {

	table := schema.FeedItem
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1",
		strings.Join(table.Columns(), ", "), table.Table, table.ID,
	)

	row := repository.pool.QueryRow(context, query, id)

	item, err := scanItem(row)
	if err != nil {
		return nil, dberr.Wrap(err, "feed_item_find")
	}

	return item, nil
}

/*
List returns confirmed items matching the filter, at most fetchLimit rows.

Parameters:
  - context: context.Context
  - filter: Filter
  - fetchLimit: int

Returns:
  - []*Item: Result page in seek order
  - error: Database execution failures
*/
func (repository *feedRepository) List(context context.Context, filter Filter, fetchLimit int) ([]*Item, error) {

	query, args := buildListQuery(filter, fetchLimit)

	rows, err := repository.pool.Query(context, query, args...)
	if err != nil {
		return nil, dberr.Wrap(err, "feed_item_list")
	}
	defer rows.Close()

	return collectItems(rows)
}

/*
ListRecent returns the newest confirmed items for the highlights pool.

Parameters:
  - context: context.Context
  - fetchLimit: int

Returns:
  - []*Item: Newest-first rows
  - error: Database execution failures
*/
func (repository *feedRepository) ListRecent(context context.Context, fetchLimit int) ([]*Item, error) {

	table := schema.FeedItem
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1 ORDER BY %s DESC, %s DESC LIMIT $2",
		strings.Join(table.Columns(), ", "), table.Table, table.Status,
		table.CreatedAt, table.ID,
	)

	rows, err := repository.pool.Query(context, query, string(StatusConfirmed), fetchLimit)
	if err != nil {
		return nil, dberr.Wrap(err, "feed_item_list_recent")
	}
	defer rows.Close()

	return collectItems(rows)
}

// # Row Mapping

// collectItems drains a row set into hydrated items.
func collectItems(rows pgx.Rows) ([]*Item, error) {
	var items []*Item

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, dberr.Wrap(err, "feed_item_scan")
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "feed_item_rows")
	}

	return items, nil
}

// scanItem maps one row (in Columns() order) onto an Item.
func scanItem(row pgx.Row) (*Item, error) {
	var item Item
	var itemType, mode, sourceKind, status string
	var sectorID, fromProvince, toProvince, quantityUnit, sourceURL, accessibility *string
	var quantityValue *float64
	var geoFrom, geoTo []byte

	err := row.Scan(
		&item.ID, &itemType, &sectorID, &item.Title, &item.Summary,
		&fromProvince, &toProvince, &mode,
		&quantityValue, &quantityUnit, &item.Urgency, &item.Credibility, &item.VolumeScore,
		&item.Tags, &sourceKind, &item.Source.Label, &sourceURL,
		&status, &accessibility, &geoFrom, &geoTo,
		&item.CreatedBy, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Type = Type(itemType)
	item.Mode = Mode(mode)
	item.Source.Kind = SourceKind(sourceKind)
	item.Status = Status(status)
	item.SectorID = deref(sectorID)
	item.FromProvinceID = deref(fromProvince)
	item.ToProvinceID = deref(toProvince)
	item.Source.URL = deref(sourceURL)
	item.AccessibilitySummary = deref(accessibility)

	if quantityValue != nil {
		item.Quantity = &Quantity{Value: *quantityValue, Unit: deref(quantityUnit)}
	}

	geo, err := decodeGeo(geoFrom, geoTo)
	if err != nil {
		return nil, err
	}
	item.Geo = geo

	if item.Tags == nil {
		item.Tags = []string{}
	}

	return &item, nil
}

// encodeGeo serializes the optional coordinates into two JSONB columns.
func encodeGeo(geo *Geo) ([]byte, []byte, error) {
	if geo == nil {
		return nil, nil, nil
	}

	var geoFrom, geoTo []byte
	var err error

	if geo.From != nil {
		if geoFrom, err = json.Marshal(geo.From); err != nil {
			return nil, nil, fmt.Errorf("feed: geo encode failed: %w", err)
		}
	}
	if geo.To != nil {
		if geoTo, err = json.Marshal(geo.To); err != nil {
			return nil, nil, fmt.Errorf("feed: geo encode failed: %w", err)
		}
	}

	return geoFrom, geoTo, nil
}

// decodeGeo rebuilds the optional coordinates from the JSONB columns.
func decodeGeo(geoFrom, geoTo []byte) (*Geo, error) {
	if len(geoFrom) == 0 && len(geoTo) == 0 {
		return nil, nil
	}

	geo := &Geo{}
	if len(geoFrom) > 0 {
		geo.From = &GeoPoint{}
		if err := json.Unmarshal(geoFrom, geo.From); err != nil {
			return nil, fmt.Errorf("feed: geo decode failed: %w", err)
		}
	}
	if len(geoTo) > 0 {
		geo.To = &GeoPoint{}
		if err := json.Unmarshal(geoTo, geo.To); err != nil {
			return nil, fmt.Errorf("feed: geo decode failed: %w", err)
		}
	}

	return geo, nil
}

// nullable maps "" to NULL for optional text columns.
func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// deref maps NULL back to "".
func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
