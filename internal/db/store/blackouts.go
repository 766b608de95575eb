package store

import (
	"context"
	"database/sql"
)

const blackoutColumns = `id, tenant_id, start_date, end_date, reason, recurring, created_at`

type ListFutureBlackoutsParams struct {
	TenantID int64
	// Today is a YYYY-MM-DD date in the tenant's time zone.
	Today string
}

// Recurring periods are always returned since their past dates repeat.
const listFutureBlackouts = `SELECT ` + blackoutColumns + `
FROM blackout_periods
WHERE tenant_id = ? AND (end_date >= ? OR recurring = 1)
ORDER BY start_date, id`

func (q *Queries) ListFutureBlackouts(ctx context.Context, arg ListFutureBlackoutsParams) ([]BlackoutPeriod, error) {
	rows, err := q.db.QueryContext(ctx, listFutureBlackouts, arg.TenantID, arg.Today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []BlackoutPeriod
	for rows.Next() {
		item, err := scanBlackout(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type CreateBlackoutParams struct {
	TenantID  int64
	StartDate string
	EndDate   string
	Reason    sql.NullString
	Recurring bool
}

const createBlackout = `
INSERT INTO blackout_periods (tenant_id, start_date, end_date, reason, recurring)
VALUES (?, ?, ?, ?, ?)`

func (q *Queries) CreateBlackout(ctx context.Context, arg CreateBlackoutParams) (BlackoutPeriod, error) {
	result, err := q.db.ExecContext(ctx, createBlackout, arg.TenantID, arg.StartDate, arg.EndDate, arg.Reason, arg.Recurring)
	if err != nil {
		return BlackoutPeriod{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return BlackoutPeriod{}, err
	}
	return q.GetBlackout(ctx, GetBlackoutParams{ID: id, TenantID: arg.TenantID})
}

type GetBlackoutParams struct {
	ID       int64
	TenantID int64
}

const getBlackout = `SELECT ` + blackoutColumns + ` FROM blackout_periods WHERE id = ? AND tenant_id = ?`

func (q *Queries) GetBlackout(ctx context.Context, arg GetBlackoutParams) (BlackoutPeriod, error) {
	return scanBlackout(q.db.QueryRowContext(ctx, getBlackout, arg.ID, arg.TenantID))
}

type DeleteBlackoutParams struct {
	ID       int64
	TenantID int64
}

const deleteBlackout = `DELETE FROM blackout_periods WHERE id = ? AND tenant_id = ?`

func (q *Queries) DeleteBlackout(ctx context.Context, arg DeleteBlackoutParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteBlackout, arg.ID, arg.TenantID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanBlackout(row rowScanner) (BlackoutPeriod, error) {
	var b BlackoutPeriod
	err := row.Scan(&b.ID, &b.TenantID, &b.StartDate, &b.EndDate, &b.Reason, &b.Recurring, &b.CreatedAt)
	return b, err
}
