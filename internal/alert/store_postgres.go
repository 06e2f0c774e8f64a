// Copyright (c) 2026 OpenG7. All rights reserved.

package alert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/OpenG7/openg7-platform-sub001/internal/platform/database/schema"
	"github.com/OpenG7/openg7-platform-sub001/internal/platform/dberr"
)

// # PostgreSQL Repositories

// alertRepository implements [AlertRepository] using pgx.
type alertRepository struct {
	pool *pgxpool.Pool
}

// NewAlertRepository constructs a PostgreSQL backed user alert store.
func NewAlertRepository(pool *pgxpool.Pool) AlertRepository {
	return &alertRepository{pool: pool}
}

func (repository *alertRepository) Insert(ctx context.Context, alert *UserAlert) error {
	table := schema.AlertsUserAlert
	columns := table.Columns()

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table.Table, strings.Join(columns, ", "), strings.Join(placeholders, ", "),
	)

	_, err := repository.pool.Exec(ctx, query,
		alert.ID, alert.UserID, alert.Title, alert.Message, string(alert.Severity),
		string(alert.SourceType), nullable(alert.SourceID), alert.Metadata,
		alert.ReadAt, alert.CreatedAt, alert.UpdatedAt,
	)
	if err != nil {
		return dberr.Wrap(err, "user_alert_insert")
	}

	return nil
}

func (repository *alertRepository) Update(ctx context.Context, alert *UserAlert) error {
	table := schema.AlertsUserAlert

	query := fmt.Sprintf(
		"UPDATE %s SET %s = $1, %s = $2, %s = $3, %s = $4, %s = $5, %s = $6 WHERE %s = $7 AND %s = $8",
		table.Table,
		table.Title, table.Message, table.Severity, table.Metadata, table.ReadAt, table.UpdatedAt,
		table.ID, table.UserID,
	)

	tag, err := repository.pool.Exec(ctx, query,
		alert.Title, alert.Message, string(alert.Severity), alert.Metadata,
		alert.ReadAt, alert.UpdatedAt,
		alert.ID, alert.UserID,
	)
	if err != nil {
		return dberr.Wrap(err, "user_alert_update")
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}

	return nil
}

func (repository *alertRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*UserAlert, error) {
	table := schema.AlertsUserAlert

	// Unread first, then newest first with an id tie-break.
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1 ORDER BY (%s IS NULL) DESC, %s DESC, %s DESC LIMIT $2 OFFSET $3",
		strings.Join(table.Columns(), ", "), table.Table,
		table.UserID, table.ReadAt, table.CreatedAt, table.ID,
	)

	rows, err := repository.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, dberr.Wrap(err, "user_alert_list")
	}
	defer rows.Close()

	return collectAlerts(rows)
}

func (repository *alertRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	table := schema.AlertsUserAlert

	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE %s = $1",
		table.Table, table.UserID,
	)

	var total int
	if err := repository.pool.QueryRow(ctx, query, userID).Scan(&total); err != nil {
		return 0, dberr.Wrap(err, "user_alert_count")
	}

	return total, nil
}

func (repository *alertRepository) FindByID(ctx context.Context, userID, alertID string) (*UserAlert, error) {
	table := schema.AlertsUserAlert

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1 AND %s = $2",
		strings.Join(table.Columns(), ", "), table.Table, table.ID, table.UserID,
	)

	alert, err := scanAlert(repository.pool.QueryRow(ctx, query, alertID, userID))
	if err != nil {
		return nil, dberr.Wrap(err, "user_alert_find")
	}

	return alert, nil
}

func (repository *alertRepository) FindRecentBySource(ctx context.Context, userID, sourceID string, since time.Time) (*UserAlert, error) {
	table := schema.AlertsUserAlert

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1 AND %s = $2 AND %s >= $3 ORDER BY %s DESC LIMIT 1",
		strings.Join(table.Columns(), ", "), table.Table,
		table.UserID, table.SourceID, table.CreatedAt, table.CreatedAt,
	)

	alert, err := scanAlert(repository.pool.QueryRow(ctx, query, userID, sourceID, since))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, dberr.Wrap(err, "user_alert_find_recent")
	}

	return alert, nil
}

func (repository *alertRepository) FindDigest(ctx context.Context, userID, dateKey string) (*UserAlert, error) {
	table := schema.AlertsUserAlert

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1 AND %s = $2 AND %s->>'digest' = 'true' AND %s->>'dateKey' = $3 LIMIT 1",
		strings.Join(table.Columns(), ", "), table.Table,
		table.UserID, table.SourceType, table.Metadata, table.Metadata,
	)

	alert, err := scanAlert(repository.pool.QueryRow(ctx, query, userID, string(SourceSystem), dateKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, dberr.Wrap(err, "user_alert_find_digest")
	}

	return alert, nil
}

func (repository *alertRepository) MarkRead(ctx context.Context, userID, alertID string, at time.Time) (*UserAlert, error) {
	table := schema.AlertsUserAlert

	// COALESCE keeps the original readAt on repeated acknowledgements.
	query := fmt.Sprintf(
		"UPDATE %s SET %s = COALESCE(%s, $1), %s = $2 WHERE %s = $3 AND %s = $4 RETURNING %s",
		table.Table,
		table.ReadAt, table.ReadAt, table.UpdatedAt,
		table.ID, table.UserID,
		strings.Join(table.Columns(), ", "),
	)

	alert, err := scanAlert(repository.pool.QueryRow(ctx, query, at, at, alertID, userID))
	if err != nil {
		return nil, dberr.Wrap(err, "user_alert_mark_read")
	}

	return alert, nil
}

func (repository *alertRepository) MarkReadBatch(ctx context.Context, userID string, at time.Time, limit int) (int, error) {
	table := schema.AlertsUserAlert

	query := fmt.Sprintf(
		"UPDATE %s SET %s = $1, %s = $1 WHERE %s IN (SELECT %s FROM %s WHERE %s = $2 AND %s IS NULL ORDER BY %s LIMIT $3)",
		table.Table, table.ReadAt, table.UpdatedAt,
		table.ID, table.ID, table.Table, table.UserID, table.ReadAt, table.CreatedAt,
	)

	tag, err := repository.pool.Exec(ctx, query, at, userID, limit)
	if err != nil {
		return 0, dberr.Wrap(err, "user_alert_mark_read_batch")
	}

	return int(tag.RowsAffected()), nil
}

func (repository *alertRepository) DeleteReadBatch(ctx context.Context, userID string, limit int) (int, error) {
	table := schema.AlertsUserAlert

	query := fmt.Sprintf(
		"DELETE FROM %s WHERE %s IN (SELECT %s FROM %s WHERE %s = $1 AND %s IS NOT NULL ORDER BY %s LIMIT $2)",
		table.Table,
		table.ID, table.ID, table.Table, table.UserID, table.ReadAt, table.CreatedAt,
	)

	tag, err := repository.pool.Exec(ctx, query, userID, limit)
	if err != nil {
		return 0, dberr.Wrap(err, "user_alert_delete_read_batch")
	}

	return int(tag.RowsAffected()), nil
}

func (repository *alertRepository) Delete(ctx context.Context, userID, alertID string) error {
	table := schema.AlertsUserAlert

	query := fmt.Sprintf(
		"DELETE FROM %s WHERE %s = $1 AND %s = $2",
		table.Table, table.ID, table.UserID,
	)

	tag, err := repository.pool.Exec(ctx, query, alertID, userID)
	if err != nil {
		return dberr.Wrap(err, "user_alert_delete")
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}

	return nil
}

// # Row Mapping

func collectAlerts(rows pgx.Rows) ([]*UserAlert, error) {
	alerts := []*UserAlert{}
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, dberr.Wrap(err, "user_alert_scan")
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "user_alert_rows")
	}

	return alerts, nil
}

// scanAlert maps one row in [schema.AlertsUserAlertTable.Columns] order.
func scanAlert(row pgx.Row) (*UserAlert, error) {
	var (
		alert      UserAlert
		severity   string
		sourceType string
		sourceID   *string
	)

	err := row.Scan(
		&alert.ID, &alert.UserID, &alert.Title, &alert.Message, &severity,
		&sourceType, &sourceID, &alert.Metadata,
		&alert.ReadAt, &alert.CreatedAt, &alert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	alert.Severity = Severity(severity)
	alert.SourceType = SourceType(sourceType)
	if sourceID != nil {
		alert.SourceID = *sourceID
	}
	if alert.Metadata == nil {
		alert.Metadata = map[string]any{}
	}

	return &alert, nil
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// savedSearchRepository implements [SavedSearchRepository] using pgx.
type savedSearchRepository struct {
	pool *pgxpool.Pool
}

// NewSavedSearchRepository constructs a PostgreSQL backed saved search store.
func NewSavedSearchRepository(pool *pgxpool.Pool) SavedSearchRepository {
	return &savedSearchRepository{pool: pool}
}

func (repository *savedSearchRepository) ListNotifyEnabled(ctx context.Context, userID string, limit int) ([]*SavedSearch, error) {
	table := schema.AlertsSavedSearch

	query := fmt.Sprintf(
		"SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s FROM %s WHERE %s = $1 AND %s = TRUE ORDER BY %s DESC LIMIT $2",
		table.ID, table.UserID, table.Name, table.Scope, table.Query,
		table.Severity, table.SourceKind, table.NotifyEnabled, table.LastRunAt,
		table.CreatedAt, table.UpdatedAt,
		table.Table, table.UserID, table.NotifyEnabled, table.UpdatedAt,
	)

	rows, err := repository.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, dberr.Wrap(err, "saved_search_list")
	}
	defer rows.Close()

	searches := []*SavedSearch{}
	for rows.Next() {
		var (
			search     SavedSearch
			severity   string
			sourceKind *string
		)
		err := rows.Scan(
			&search.ID, &search.UserID, &search.Name, &search.Scope, &search.Query,
			&severity, &sourceKind, &search.NotifyEnabled, &search.LastRunAt,
			&search.CreatedAt, &search.UpdatedAt,
		)
		if err != nil {
			return nil, dberr.Wrap(err, "saved_search_scan")
		}
		search.Severity = Severity(severity)
		if sourceKind != nil {
			search.SourceKind = *sourceKind
		}
		searches = append(searches, &search)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "saved_search_rows")
	}

	return searches, nil
}

func (repository *savedSearchRepository) TouchLastRun(ctx context.Context, searchID string, at time.Time) error {
	table := schema.AlertsSavedSearch

	query := fmt.Sprintf(
		"UPDATE %s SET %s = $1 WHERE %s = $2",
		table.Table, table.LastRunAt, table.ID,
	)

	if _, err := repository.pool.Exec(ctx, query, at, searchID); err != nil {
		return dberr.Wrap(err, "saved_search_touch")
	}

	return nil
}
