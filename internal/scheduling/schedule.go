package scheduling

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vitrine-imob/vitrine/internal/availability"
	"github.com/vitrine-imob/vitrine/internal/db/store"
)

// RuleInput is a weekly rule as received from callers. Times are "HH:MM".
type RuleInput struct {
	DayOfWeek           int
	StartTime           string
	EndTime             string
	SlotDurationMinutes int
	Active              bool
}

// BlackoutInput is a blackout period as received from callers. Dates are YYYY-MM-DD.
type BlackoutInput struct {
	StartDate string
	EndDate   string
	Reason    string
	Recurring bool
}

func (s *Service) Rules(ctx context.Context, tenantID int64) ([]store.AvailabilityRule, error) {
	if _, err := s.tenant(ctx, tenantID); err != nil {
		return nil, err
	}
	rules, err := s.db.Queries.ListWeeklyRules(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list weekly rules: %w", err)
	}
	return rules, nil
}

// UpsertRule validates and stores the tenant's rule for in.DayOfWeek, replacing any existing one.
func (s *Service) UpsertRule(ctx context.Context, tenantID int64, in RuleInput) (store.AvailabilityRule, error) {
	rule, err := parseRule(in)
	if err != nil {
		return store.AvailabilityRule{}, err
	}
	if _, err := s.tenant(ctx, tenantID); err != nil {
		return store.AvailabilityRule{}, err
	}

	saved, err := s.db.Queries.UpsertWeeklyRule(ctx, store.UpsertWeeklyRuleParams{
		TenantID:            tenantID,
		DayOfWeek:           int64(rule.DayOfWeek),
		StartTime:           rule.StartTime.String(),
		EndTime:             rule.EndTime.String(),
		SlotDurationMinutes: int64(rule.SlotDurationMinutes),
		Active:              rule.Active,
	})
	if err != nil {
		return store.AvailabilityRule{}, fmt.Errorf("upsert weekly rule: %w", err)
	}
	s.cache.InvalidateTenant(ctx, tenantID)

	log.Ctx(ctx).Info().
		Int64("tenant_id", tenantID).
		Int("day_of_week", rule.DayOfWeek).
		Str("start_time", saved.StartTime).
		Str("end_time", saved.EndTime).
		Msg("Weekly rule saved")
	return saved, nil
}

func (s *Service) DeleteRule(ctx context.Context, tenantID int64, dayOfWeek int) error {
	if dayOfWeek < 0 || dayOfWeek > 6 {
		return fieldError("day_of_week", "must be between 0 and 6")
	}
	affected, err := s.db.Queries.DeleteWeeklyRule(ctx, store.DeleteWeeklyRuleParams{
		TenantID:  tenantID,
		DayOfWeek: int64(dayOfWeek),
	})
	if err != nil {
		return fmt.Errorf("delete weekly rule: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("weekly rule for day %d: %w", dayOfWeek, ErrNotFound)
	}
	s.cache.InvalidateTenant(ctx, tenantID)
	log.Ctx(ctx).Info().Int64("tenant_id", tenantID).Int("day_of_week", dayOfWeek).Msg("Weekly rule deleted")
	return nil
}

// Blackouts lists the tenant's blackout periods that still affect the horizon.
func (s *Service) Blackouts(ctx context.Context, tenantID int64) ([]store.BlackoutPeriod, error) {
	tenant, err := s.tenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	today := s.now().In(TenantLocation(ctx, tenant)).Format(availability.DateLayout)
	periods, err := s.db.Queries.ListFutureBlackouts(ctx, store.ListFutureBlackoutsParams{TenantID: tenantID, Today: today})
	if err != nil {
		return nil, fmt.Errorf("list blackout periods: %w", err)
	}
	return periods, nil
}

func (s *Service) AddBlackout(ctx context.Context, tenantID int64, in BlackoutInput) (store.BlackoutPeriod, error) {
	period, err := parseBlackout(in)
	if err != nil {
		return store.BlackoutPeriod{}, err
	}
	if _, err := s.tenant(ctx, tenantID); err != nil {
		return store.BlackoutPeriod{}, err
	}

	reason := strings.TrimSpace(in.Reason)
	saved, err := s.db.Queries.CreateBlackout(ctx, store.CreateBlackoutParams{
		TenantID:  tenantID,
		StartDate: period.StartDate.Format(availability.DateLayout),
		EndDate:   period.EndDate.Format(availability.DateLayout),
		Reason:    sql.NullString{String: reason, Valid: reason != ""},
		Recurring: period.Recurring,
	})
	if err != nil {
		return store.BlackoutPeriod{}, fmt.Errorf("create blackout period: %w", err)
	}
	s.cache.InvalidateTenant(ctx, tenantID)

	log.Ctx(ctx).Info().
		Int64("tenant_id", tenantID).
		Int64("blackout_id", saved.ID).
		Str("start_date", saved.StartDate).
		Str("end_date", saved.EndDate).
		Bool("recurring", saved.Recurring).
		Msg("Blackout period created")
	return saved, nil
}

func (s *Service) DeleteBlackout(ctx context.Context, tenantID, blackoutID int64) error {
	affected, err := s.db.Queries.DeleteBlackout(ctx, store.DeleteBlackoutParams{ID: blackoutID, TenantID: tenantID})
	if err != nil {
		return fmt.Errorf("delete blackout period: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("blackout period %d: %w", blackoutID, ErrNotFound)
	}
	s.cache.InvalidateTenant(ctx, tenantID)
	log.Ctx(ctx).Info().Int64("tenant_id", tenantID).Int64("blackout_id", blackoutID).Msg("Blackout period deleted")
	return nil
}

func parseRule(in RuleInput) (availability.WeeklyRule, error) {
	start, err := availability.ParseTimeOfDay(in.StartTime)
	if err != nil {
		return availability.WeeklyRule{}, fieldError("start_time", "must be HH:MM")
	}
	end, err := availability.ParseTimeOfDay(in.EndTime)
	if err != nil {
		return availability.WeeklyRule{}, fieldError("end_time", "must be HH:MM")
	}
	duration := in.SlotDurationMinutes
	if duration == 0 {
		duration = availability.DefaultSlotDurationMinutes
	}

	rule := availability.WeeklyRule{
		DayOfWeek:           in.DayOfWeek,
		StartTime:           start,
		EndTime:             end,
		SlotDurationMinutes: duration,
		Active:              in.Active,
	}
	if err := availability.ValidateRule(rule); err != nil {
		return availability.WeeklyRule{}, ruleFieldError(err)
	}
	return rule, nil
}

func ruleFieldError(err error) error {
	switch {
	case errors.Is(err, availability.ErrInvalidDayOfWeek):
		return fieldError("day_of_week", "must be between 0 and 6")
	case errors.Is(err, availability.ErrInvalidDuration):
		return fieldError("slot_duration_minutes", "must be greater than 0")
	case errors.Is(err, availability.ErrInvalidRange):
		return fieldError("end_time", "must be after start_time")
	default:
		return fieldError("end_time", "must not be later than 24:00")
	}
}

func parseBlackout(in BlackoutInput) (availability.BlackoutPeriod, error) {
	start, err := time.Parse(availability.DateLayout, strings.TrimSpace(in.StartDate))
	if err != nil {
		return availability.BlackoutPeriod{}, fieldError("start_date", "must be YYYY-MM-DD")
	}
	endRaw := strings.TrimSpace(in.EndDate)
	end := start
	if endRaw != "" {
		end, err = time.Parse(availability.DateLayout, endRaw)
		if err != nil {
			return availability.BlackoutPeriod{}, fieldError("end_date", "must be YYYY-MM-DD")
		}
	}

	period := availability.BlackoutPeriod{
		StartDate: start,
		EndDate:   end,
		Reason:    strings.TrimSpace(in.Reason),
		Recurring: in.Recurring,
	}
	if err := availability.ValidateBlackout(period); err != nil {
		if errors.Is(err, availability.ErrInvalidDates) {
			return availability.BlackoutPeriod{}, fieldError("end_date", "must be on or after start_date")
		}
		return availability.BlackoutPeriod{}, fieldError("end_date", "recurring period cannot span more than a year")
	}
	return period, nil
}
