package availability

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDayOfWeek = errors.New("day_of_week must be between 0 and 6")
	ErrInvalidRange     = errors.New("start_time must be before end_time")
	ErrInvalidDuration  = errors.New("slot_duration_minutes must be greater than 0")
	ErrInvalidDates     = errors.New("start_date must be on or before end_date")
	ErrMissingDate      = errors.New("start_date and end_date are required")
)

// ValidateRule checks a rule at the write boundary. GenerateSlots assumes
// rules passed this check and never calls it.
func ValidateRule(rule WeeklyRule) error {
	if rule.DayOfWeek < 0 || rule.DayOfWeek > 6 {
		return ErrInvalidDayOfWeek
	}
	if rule.StartTime < 0 || rule.EndTime > NewTimeOfDay(24, 0) {
		return fmt.Errorf("rule times out of range: %s-%s", rule.StartTime, rule.EndTime)
	}
	if rule.StartTime >= rule.EndTime {
		return ErrInvalidRange
	}
	if rule.SlotDurationMinutes <= 0 {
		return ErrInvalidDuration
	}
	return nil
}

// ValidateBlackout checks a blackout period at the write boundary.
func ValidateBlackout(b BlackoutPeriod) error {
	if b.StartDate.IsZero() || b.EndDate.IsZero() {
		return ErrMissingDate
	}
	if dateKey(b.StartDate) > dateKey(b.EndDate) {
		return ErrInvalidDates
	}
	if b.Recurring && b.EndDate.After(b.StartDate.AddDate(1, 0, 0)) {
		return fmt.Errorf("recurring blackout cannot span more than a year")
	}
	return nil
}
