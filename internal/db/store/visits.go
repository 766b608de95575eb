package store

import (
	"context"
	"database/sql"
	"time"
)

const visitColumns = `id, public_id, tenant_id, property_id, lead_name, lead_email, lead_phone,
option_datetime_1, option_datetime_2, confirmed_datetime, status, notes, reminder_sent_at,
created_at, updated_at`

type CreateVisitParams struct {
	PublicID        string
	TenantID        int64
	PropertyID      sql.NullInt64
	LeadName        string
	LeadEmail       sql.NullString
	LeadPhone       sql.NullString
	OptionDatetime1 time.Time
	OptionDatetime2 sql.NullTime
	Notes           sql.NullString
}

const createVisit = `
INSERT INTO visits (
    public_id, tenant_id, property_id, lead_name, lead_email, lead_phone,
    option_datetime_1, option_datetime_2, status, notes
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'requested', ?)`

func (q *Queries) CreateVisit(ctx context.Context, arg CreateVisitParams) (Visit, error) {
	result, err := q.db.ExecContext(ctx, createVisit,
		arg.PublicID,
		arg.TenantID,
		arg.PropertyID,
		arg.LeadName,
		arg.LeadEmail,
		arg.LeadPhone,
		arg.OptionDatetime1.UTC(),
		utcNullTime(arg.OptionDatetime2),
		arg.Notes,
	)
	if err != nil {
		return Visit{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Visit{}, err
	}
	return q.GetVisitByID(ctx, GetVisitByIDParams{ID: id, TenantID: arg.TenantID})
}

type GetVisitByIDParams struct {
	ID       int64
	TenantID int64
}

const getVisitByID = `SELECT ` + visitColumns + ` FROM visits WHERE id = ? AND tenant_id = ?`

func (q *Queries) GetVisitByID(ctx context.Context, arg GetVisitByIDParams) (Visit, error) {
	return scanVisit(q.db.QueryRowContext(ctx, getVisitByID, arg.ID, arg.TenantID))
}

type GetVisitByPublicIDParams struct {
	PublicID string
	TenantID int64
}

const getVisitByPublicID = `SELECT ` + visitColumns + ` FROM visits WHERE public_id = ? AND tenant_id = ?`

func (q *Queries) GetVisitByPublicID(ctx context.Context, arg GetVisitByPublicIDParams) (Visit, error) {
	return scanVisit(q.db.QueryRowContext(ctx, getVisitByPublicID, arg.PublicID, arg.TenantID))
}

type ListActiveBookingsInWindowParams struct {
	TenantID    int64
	WindowStart time.Time
	WindowEnd   time.Time
}

// Effective time is the confirmed time, else the first option.
const listActiveBookingsInWindow = `SELECT ` + visitColumns + `
FROM visits
WHERE tenant_id = ?
  AND status NOT IN ('cancelled', 'completed')
  AND COALESCE(confirmed_datetime, option_datetime_1) >= ?
  AND COALESCE(confirmed_datetime, option_datetime_1) < ?
ORDER BY COALESCE(confirmed_datetime, option_datetime_1), id`

func (q *Queries) ListActiveBookingsInWindow(ctx context.Context, arg ListActiveBookingsInWindowParams) ([]Visit, error) {
	return q.listVisits(ctx, listActiveBookingsInWindow, arg.TenantID, arg.WindowStart.UTC(), arg.WindowEnd.UTC())
}

type UpdateVisitStatusParams struct {
	ID       int64
	TenantID int64
	Status   string
	Notes    sql.NullString
}

const updateVisitStatus = `
UPDATE visits
SET status = ?, notes = COALESCE(?, notes), updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND tenant_id = ?`

func (q *Queries) UpdateVisitStatus(ctx context.Context, arg UpdateVisitStatusParams) (Visit, error) {
	result, err := q.db.ExecContext(ctx, updateVisitStatus, arg.Status, arg.Notes, arg.ID, arg.TenantID)
	if err != nil {
		return Visit{}, err
	}
	if err := requireAffected(result); err != nil {
		return Visit{}, err
	}
	return q.GetVisitByID(ctx, GetVisitByIDParams{ID: arg.ID, TenantID: arg.TenantID})
}

type ConfirmVisitParams struct {
	ID                int64
	TenantID          int64
	ConfirmedDatetime time.Time
	Status            string
}

const confirmVisit = `
UPDATE visits
SET confirmed_datetime = ?, status = ?, reminder_sent_at = NULL, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND tenant_id = ?`

func (q *Queries) ConfirmVisit(ctx context.Context, arg ConfirmVisitParams) (Visit, error) {
	result, err := q.db.ExecContext(ctx, confirmVisit, arg.ConfirmedDatetime.UTC(), arg.Status, arg.ID, arg.TenantID)
	if err != nil {
		return Visit{}, err
	}
	if err := requireAffected(result); err != nil {
		return Visit{}, err
	}
	return q.GetVisitByID(ctx, GetVisitByIDParams{ID: arg.ID, TenantID: arg.TenantID})
}

type ListVisitsNeedingReminderParams struct {
	TenantID    int64
	WindowStart time.Time
	WindowEnd   time.Time
}

const listVisitsNeedingReminder = `SELECT ` + visitColumns + `
FROM visits
WHERE tenant_id = ?
  AND status IN ('confirmed', 'rescheduled')
  AND reminder_sent_at IS NULL
  AND confirmed_datetime >= ?
  AND confirmed_datetime < ?
ORDER BY confirmed_datetime, id`

func (q *Queries) ListVisitsNeedingReminder(ctx context.Context, arg ListVisitsNeedingReminderParams) ([]Visit, error) {
	return q.listVisits(ctx, listVisitsNeedingReminder, arg.TenantID, arg.WindowStart.UTC(), arg.WindowEnd.UTC())
}

type MarkVisitReminderSentParams struct {
	ID     int64
	SentAt time.Time
}

const markVisitReminderSent = `UPDATE visits SET reminder_sent_at = ? WHERE id = ?`

func (q *Queries) MarkVisitReminderSent(ctx context.Context, arg MarkVisitReminderSentParams) error {
	_, err := q.db.ExecContext(ctx, markVisitReminderSent, arg.SentAt.UTC(), arg.ID)
	return err
}

// Requests whose every proposed option already passed are cancelled.
const expireStaleVisitRequests = `
UPDATE visits
SET status = 'cancelled', notes = 'expired', updated_at = CURRENT_TIMESTAMP
WHERE status = 'requested'
  AND option_datetime_1 < ?
  AND (option_datetime_2 IS NULL OR option_datetime_2 < ?)`

func (q *Queries) ExpireStaleVisitRequests(ctx context.Context, now time.Time) (int64, error) {
	now = now.UTC()
	result, err := q.db.ExecContext(ctx, expireStaleVisitRequests, now, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (q *Queries) listVisits(ctx context.Context, query string, args ...interface{}) ([]Visit, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Visit
	for rows.Next() {
		item, err := scanVisit(rows)
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

func scanVisit(row rowScanner) (Visit, error) {
	var v Visit
	err := row.Scan(
		&v.ID,
		&v.PublicID,
		&v.TenantID,
		&v.PropertyID,
		&v.LeadName,
		&v.LeadEmail,
		&v.LeadPhone,
		&v.OptionDatetime1,
		&v.OptionDatetime2,
		&v.ConfirmedDatetime,
		&v.Status,
		&v.Notes,
		&v.ReminderSentAt,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	return v, err
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func utcNullTime(value sql.NullTime) sql.NullTime {
	if !value.Valid {
		return value
	}
	return sql.NullTime{Time: value.Time.UTC(), Valid: true}
}
