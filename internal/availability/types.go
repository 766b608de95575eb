package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// HorizonDays is the number of calendar days, starting tomorrow, covered by slot generation.
	HorizonDays = 60

	// DefaultSlotDurationMinutes applies when a rule carries no usable duration.
	DefaultSlotDurationMinutes = 60

	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// AppointmentStatus is the lifecycle state of a visit.
type AppointmentStatus string

const (
	StatusRequested   AppointmentStatus = "requested"
	StatusConfirmed   AppointmentStatus = "confirmed"
	StatusRescheduled AppointmentStatus = "rescheduled"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusCompleted   AppointmentStatus = "completed"
	StatusNoShow      AppointmentStatus = "no_show"
)

// Valid reports whether s is one of the known statuses.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusRequested, StatusConfirmed, StatusRescheduled, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// TimeOfDay is a wall-clock time without a date, stored as minutes since midnight.
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from hour and minute.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay accepts "HH:MM" and "HH:MM:SS" values. Seconds are dropped.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time of day %q", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 || len(parts[0]) != 2 {
		return 0, fmt.Errorf("invalid time of day %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time of day %q", raw)
	}
	if len(parts) == 3 {
		second, err := strconv.Atoi(parts[2])
		if err != nil || second < 0 || second > 59 {
			return 0, fmt.Errorf("invalid time of day %q", raw)
		}
	}
	return NewTimeOfDay(hour, minute), nil
}

// MustParseTimeOfDay is ParseTimeOfDay for literals known to be valid.
func MustParseTimeOfDay(raw string) TimeOfDay {
	tod, err := ParseTimeOfDay(raw)
	if err != nil {
		panic(err)
	}
	return tod
}

// Hour returns the hour component, 0 through 23.
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component, 0 through 59.
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// String formats the time as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// WeeklyRule is a tenant's recurring availability for one day of the week.
type WeeklyRule struct {
	ID                  int64
	DayOfWeek           int // 0 = Sunday ... 6 = Saturday
	StartTime           TimeOfDay
	EndTime             TimeOfDay
	SlotDurationMinutes int
	Active              bool
}

// BlackoutPeriod is an inclusive date range with no availability.
// Only the calendar components of StartDate and EndDate are used.
type BlackoutPeriod struct {
	ID        int64
	StartDate time.Time
	EndDate   time.Time
	Reason    string
	Recurring bool
}

// Appointment is an existing booking that may conflict with generated slots.
type Appointment struct {
	ConfirmedAt *time.Time
	Option1     time.Time
	Option2     *time.Time
	Status      AppointmentStatus
}

// Blocks reports whether the appointment participates in conflict checks.
func (a Appointment) Blocks() bool {
	return a.Status != StatusCancelled && a.Status != StatusCompleted
}

// EffectiveTime is the confirmed time when set, otherwise the first proposed option.
func EffectiveTime(a Appointment) time.Time {
	if a.ConfirmedAt != nil && !a.ConfirmedAt.IsZero() {
		return *a.ConfirmedAt
	}
	return a.Option1
}

// TimeSlot is a derived bookable unit. It is never persisted.
type TimeSlot struct {
	Date      time.Time
	Time      string
	Available bool
}

// DateString formats the slot date as YYYY-MM-DD.
func (s TimeSlot) DateString() string {
	return s.Date.Format(DateLayout)
}

// Start combines the slot date and time in the slot date's location.
func (s TimeSlot) Start() time.Time {
	tod, err := ParseTimeOfDay(s.Time)
	if err != nil {
		return s.Date
	}
	y, m, d := s.Date.Date()
	return time.Date(y, m, d, tod.Hour(), tod.Minute(), 0, 0, s.Date.Location())
}
