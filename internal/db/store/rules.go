package store

import (
	"context"
)

const ruleColumns = `id, tenant_id, day_of_week, start_time, end_time, slot_duration_minutes, active, created_at, updated_at`

const listWeeklyRules = `SELECT ` + ruleColumns + `
FROM availability_rules
WHERE tenant_id = ?
ORDER BY day_of_week, id`

func (q *Queries) ListWeeklyRules(ctx context.Context, tenantID int64) ([]AvailabilityRule, error) {
	return q.listRules(ctx, listWeeklyRules, tenantID)
}

const listActiveWeeklyRules = `SELECT ` + ruleColumns + `
FROM availability_rules
WHERE tenant_id = ? AND active = 1
ORDER BY day_of_week, id`

func (q *Queries) ListActiveWeeklyRules(ctx context.Context, tenantID int64) ([]AvailabilityRule, error) {
	return q.listRules(ctx, listActiveWeeklyRules, tenantID)
}

type GetWeeklyRuleParams struct {
	TenantID  int64
	DayOfWeek int64
}

const getWeeklyRule = `SELECT ` + ruleColumns + `
FROM availability_rules
WHERE tenant_id = ? AND day_of_week = ?`

func (q *Queries) GetWeeklyRule(ctx context.Context, arg GetWeeklyRuleParams) (AvailabilityRule, error) {
	return scanRule(q.db.QueryRowContext(ctx, getWeeklyRule, arg.TenantID, arg.DayOfWeek))
}

type UpsertWeeklyRuleParams struct {
	TenantID            int64
	DayOfWeek           int64
	StartTime           string
	EndTime             string
	SlotDurationMinutes int64
	Active              bool
}

const upsertWeeklyRule = `
INSERT INTO availability_rules (tenant_id, day_of_week, start_time, end_time, slot_duration_minutes, active)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (tenant_id, day_of_week) DO UPDATE SET
    start_time = excluded.start_time,
    end_time = excluded.end_time,
    slot_duration_minutes = excluded.slot_duration_minutes,
    active = excluded.active,
    updated_at = CURRENT_TIMESTAMP`

func (q *Queries) UpsertWeeklyRule(ctx context.Context, arg UpsertWeeklyRuleParams) (AvailabilityRule, error) {
	_, err := q.db.ExecContext(ctx, upsertWeeklyRule,
		arg.TenantID,
		arg.DayOfWeek,
		arg.StartTime,
		arg.EndTime,
		arg.SlotDurationMinutes,
		arg.Active,
	)
	if err != nil {
		return AvailabilityRule{}, err
	}
	return q.GetWeeklyRule(ctx, GetWeeklyRuleParams{TenantID: arg.TenantID, DayOfWeek: arg.DayOfWeek})
}

type DeleteWeeklyRuleParams struct {
	TenantID  int64
	DayOfWeek int64
}

const deleteWeeklyRule = `DELETE FROM availability_rules WHERE tenant_id = ? AND day_of_week = ?`

func (q *Queries) DeleteWeeklyRule(ctx context.Context, arg DeleteWeeklyRuleParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteWeeklyRule, arg.TenantID, arg.DayOfWeek)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (q *Queries) listRules(ctx context.Context, query string, tenantID int64) ([]AvailabilityRule, error) {
	rows, err := q.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []AvailabilityRule
	for rows.Next() {
		item, err := scanRule(rows)
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

func scanRule(row rowScanner) (AvailabilityRule, error) {
	var r AvailabilityRule
	err := row.Scan(
		&r.ID,
		&r.TenantID,
		&r.DayOfWeek,
		&r.StartTime,
		&r.EndTime,
		&r.SlotDurationMinutes,
		&r.Active,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}
