package store

import (
	"fmt"
	"time"

	"github.com/vitrine-imob/vitrine/internal/availability"
)

// WeeklyRules converts stored rows into engine rules. Stored times are validated
// on write, so a parse failure here means the row was edited out of band.
func WeeklyRules(rows []AvailabilityRule) ([]availability.WeeklyRule, error) {
	rules := make([]availability.WeeklyRule, 0, len(rows))
	for _, row := range rows {
		rule, err := row.WeeklyRule()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (r AvailabilityRule) WeeklyRule() (availability.WeeklyRule, error) {
	start, err := availability.ParseTimeOfDay(r.StartTime)
	if err != nil {
		return availability.WeeklyRule{}, fmt.Errorf("rule %d start_time: %w", r.ID, err)
	}
	end, err := availability.ParseTimeOfDay(r.EndTime)
	if err != nil {
		return availability.WeeklyRule{}, fmt.Errorf("rule %d end_time: %w", r.ID, err)
	}
	return availability.WeeklyRule{
		ID:                  r.ID,
		DayOfWeek:           int(r.DayOfWeek),
		StartTime:           start,
		EndTime:             end,
		SlotDurationMinutes: int(r.SlotDurationMinutes),
		Active:              r.Active,
	}, nil
}

func BlackoutPeriods(rows []BlackoutPeriod) ([]availability.BlackoutPeriod, error) {
	periods := make([]availability.BlackoutPeriod, 0, len(rows))
	for _, row := range rows {
		period, err := row.BlackoutPeriod()
		if err != nil {
			return nil, err
		}
		periods = append(periods, period)
	}
	return periods, nil
}

func (b BlackoutPeriod) BlackoutPeriod() (availability.BlackoutPeriod, error) {
	start, err := time.Parse(availability.DateLayout, b.StartDate)
	if err != nil {
		return availability.BlackoutPeriod{}, fmt.Errorf("blackout %d start_date: %w", b.ID, err)
	}
	end, err := time.Parse(availability.DateLayout, b.EndDate)
	if err != nil {
		return availability.BlackoutPeriod{}, fmt.Errorf("blackout %d end_date: %w", b.ID, err)
	}
	return availability.BlackoutPeriod{
		ID:        b.ID,
		StartDate: start,
		EndDate:   end,
		Reason:    b.Reason.String,
		Recurring: b.Recurring,
	}, nil
}

func Appointments(rows []Visit) []availability.Appointment {
	appointments := make([]availability.Appointment, 0, len(rows))
	for _, row := range rows {
		appointments = append(appointments, row.Appointment())
	}
	return appointments
}

func (v Visit) Appointment() availability.Appointment {
	appointment := availability.Appointment{
		Option1: v.OptionDatetime1,
		Status:  availability.AppointmentStatus(v.Status),
	}
	if v.ConfirmedDatetime.Valid {
		confirmed := v.ConfirmedDatetime.Time
		appointment.ConfirmedAt = &confirmed
	}
	if v.OptionDatetime2.Valid {
		option := v.OptionDatetime2.Time
		appointment.Option2 = &option
	}
	return appointment
}
