// Package availability computes bookable visit slots from weekly rules,
// blackout periods and existing bookings. Every function here is pure.
package availability

import (
	"time"
)

var defaultSlotTimes = []string{
	"09:00", "09:30", "10:00", "10:30", "11:00", "11:30", "12:00", "12:30",
	"13:00", "13:30", "14:00", "14:30", "15:00", "15:30", "16:00", "16:30",
	"17:00", "17:30", "18:00",
}

// HorizonStart returns midnight of the day after now, in now's location.
func HorizonStart(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}

// HorizonEnd returns the exclusive end of the horizon that starts tomorrow.
func HorizonEnd(now time.Time) time.Time {
	return HorizonStart(now).AddDate(0, 0, HorizonDays)
}

// GenerateSlots expands rules over [tomorrow, tomorrow+60 days) in now's location.
// Dates without an active rule or inside a blackout produce no slots. Slots that
// match the effective date and time of a blocking booking are kept but marked
// unavailable. With no rules at all the default weekday schedule is returned and
// blackouts and bookings are not applied to it.
func GenerateSlots(rules []WeeklyRule, blackouts []BlackoutPeriod, bookings []Appointment, now time.Time) []TimeSlot {
	if len(rules) == 0 {
		return GenerateDefaultSlots(now)
	}

	loc := now.Location()
	booked := bookedSet(bookings, loc)

	var slots []TimeSlot
	start := HorizonStart(now)
	for i := 0; i < HorizonDays; i++ {
		day := start.AddDate(0, 0, i)

		rule, ok := ruleForDay(rules, int(day.Weekday()))
		if !ok {
			continue
		}
		if inBlackout(blackouts, day) {
			continue
		}

		step := rule.SlotDurationMinutes
		if step <= 0 {
			step = DefaultSlotDurationMinutes
		}
		dayKey := day.Format(DateLayout)
		for current := rule.StartTime; current < rule.EndTime; current += TimeOfDay(step) {
			label := current.String()
			_, taken := booked[dayKey+" "+label]
			slots = append(slots, TimeSlot{
				Date:      day,
				Time:      label,
				Available: !taken,
			})
		}
	}
	return slots
}

// GenerateDefaultSlots returns the fallback schedule: Monday to Friday,
// 09:00 through 18:00 every 30 minutes, all available.
func GenerateDefaultSlots(now time.Time) []TimeSlot {
	var slots []TimeSlot
	start := HorizonStart(now)
	for i := 0; i < HorizonDays; i++ {
		day := start.AddDate(0, 0, i)
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		for _, label := range defaultSlotTimes {
			slots = append(slots, TimeSlot{Date: day, Time: label, Available: true})
		}
	}
	return slots
}

// IsDayAvailable reports whether any slot on date is available.
func IsDayAvailable(slots []TimeSlot, date time.Time) bool {
	for _, slot := range slots {
		if slot.Available && sameDay(slot.Date, date) {
			return true
		}
	}
	return false
}

// SlotsForDate returns the available slots on date in generation order.
func SlotsForDate(slots []TimeSlot, date time.Time) []TimeSlot {
	var out []TimeSlot
	for _, slot := range slots {
		if slot.Available && sameDay(slot.Date, date) {
			out = append(out, slot)
		}
	}
	return out
}

// HasConfiguredSchedule reports whether the tenant has stored any rule, active or not.
func HasConfiguredSchedule(rules []WeeklyRule) bool {
	return len(rules) > 0
}

// AvailableDays lists the distinct dates holding at least one available slot.
func AvailableDays(slots []TimeSlot) []time.Time {
	var days []time.Time
	for _, slot := range slots {
		if !slot.Available {
			continue
		}
		if n := len(days); n > 0 && sameDay(days[n-1], slot.Date) {
			continue
		}
		days = append(days, slot.Date)
	}
	return days
}

// FindSlot returns the slot starting at t, if t falls on a generated slot.
func FindSlot(slots []TimeSlot, t time.Time) (TimeSlot, bool) {
	for _, slot := range slots {
		// Each slot date carries its own zone; decoded caches may hold per-date offsets.
		local := t.In(slot.Date.Location())
		if slot.Time == local.Format(TimeLayout) && sameDay(slot.Date, local) {
			return slot, true
		}
	}
	return TimeSlot{}, false
}

// ruleForDay keeps first-match-wins semantics. Storage holds one rule per day.
func ruleForDay(rules []WeeklyRule, dayOfWeek int) (WeeklyRule, bool) {
	for _, rule := range rules {
		if rule.DayOfWeek == dayOfWeek && rule.Active {
			return rule, true
		}
	}
	return WeeklyRule{}, false
}

func inBlackout(blackouts []BlackoutPeriod, day time.Time) bool {
	for _, b := range blackouts {
		if b.Contains(day) {
			return true
		}
	}
	return false
}

// Contains reports whether the calendar date of day lies within the period.
// Recurring periods repeat every year from their first occurrence on, and may
// wrap across the new year.
func (b BlackoutPeriod) Contains(day time.Time) bool {
	if !b.Recurring {
		key := dateKey(day)
		return dateKey(b.StartDate) <= key && key <= dateKey(b.EndDate)
	}

	if dateKey(day) < dateKey(b.StartDate) {
		return false
	}
	start, end, current := monthDayKey(b.StartDate), monthDayKey(b.EndDate), monthDayKey(day)
	if start <= end {
		return start <= current && current <= end
	}
	return current >= start || current <= end
}

func bookedSet(bookings []Appointment, loc *time.Location) map[string]struct{} {
	booked := make(map[string]struct{}, len(bookings))
	for _, booking := range bookings {
		if !booking.Blocks() {
			continue
		}
		effective := EffectiveTime(booking)
		if effective.IsZero() {
			continue
		}
		booked[effective.In(loc).Format(DateLayout+" "+TimeLayout)] = struct{}{}
	}
	return booked
}

func sameDay(a, b time.Time) bool {
	return dateKey(a) == dateKey(b)
}

func dateKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

func monthDayKey(t time.Time) int {
	_, m, d := t.Date()
	return int(m)*100 + d
}
