package store

import (
	"database/sql"
	"time"
)

type Tenant struct {
	ID           int64          `json:"id"`
	Kind         string         `json:"kind"`
	Name         string         `json:"name"`
	Slug         string         `json:"slug"`
	Timezone     string         `json:"timezone"`
	ContactEmail sql.NullString `json:"contactEmail"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

type Property struct {
	ID        int64          `json:"id"`
	TenantID  int64          `json:"tenantId"`
	Title     string         `json:"title"`
	Slug      string         `json:"slug"`
	Address   sql.NullString `json:"address"`
	CreatedAt time.Time      `json:"createdAt"`
}

type AvailabilityRule struct {
	ID                  int64     `json:"id"`
	TenantID            int64     `json:"tenantId"`
	DayOfWeek           int64     `json:"dayOfWeek"`
	StartTime           string    `json:"startTime"`
	EndTime             string    `json:"endTime"`
	SlotDurationMinutes int64     `json:"slotDurationMinutes"`
	Active              bool      `json:"active"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

type BlackoutPeriod struct {
	ID        int64          `json:"id"`
	TenantID  int64          `json:"tenantId"`
	StartDate string         `json:"startDate"`
	EndDate   string         `json:"endDate"`
	Reason    sql.NullString `json:"reason"`
	Recurring bool           `json:"recurring"`
	CreatedAt time.Time      `json:"createdAt"`
}

type Visit struct {
	ID                int64          `json:"id"`
	PublicID          string         `json:"publicId"`
	TenantID          int64          `json:"tenantId"`
	PropertyID        sql.NullInt64  `json:"propertyId"`
	LeadName          string         `json:"leadName"`
	LeadEmail         sql.NullString `json:"leadEmail"`
	LeadPhone         sql.NullString `json:"leadPhone"`
	OptionDatetime1   time.Time      `json:"optionDatetime1"`
	OptionDatetime2   sql.NullTime   `json:"optionDatetime2"`
	ConfirmedDatetime sql.NullTime   `json:"confirmedDatetime"`
	Status            string         `json:"status"`
	Notes             sql.NullString `json:"notes"`
	ReminderSentAt    sql.NullTime   `json:"reminderSentAt"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}
