package scheduling_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vitrine-imob/vitrine/internal/availability"
	"github.com/vitrine-imob/vitrine/internal/scheduling"
	"github.com/vitrine-imob/vitrine/internal/testutil"
)

func TestRequestVisit_BooksSlotAndNotifiesTenant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mondayMornings(t)
	property := testutil.SeedProperty(t, f.db, f.tenantID, "vista-mar")

	visit, err := f.service.RequestVisit(ctx, f.tenantID, scheduling.VisitRequest{
		PropertyID: property.ID,
		LeadName:   "Joao Pereira",
		LeadEmail:  "joao@example.com",
		LeadPhone:  "(11) 98765-4321",
		Options:    []time.Time{f.at(time.January, 8, 9, 0), f.at(time.January, 15, 10, 0)},
	})
	if err != nil {
		t.Fatalf("request visit: %v", err)
	}
	if visit.Status != string(availability.StatusRequested) {
		t.Fatalf("expected requested status, got %s", visit.Status)
	}
	if visit.LeadPhone.String != "+5511987654321" {
		t.Fatalf("expected E.164 phone, got %q", visit.LeadPhone.String)
	}
	if visit.PublicID == "" {
		t.Fatalf("expected public id")
	}

	msg := f.sender.next(t)
	if msg.To != "contato@horizonte.test" {
		t.Fatalf("expected tenant contact recipient, got %q", msg.To)
	}
	if msg.ReplyTo != "joao@example.com" {
		t.Fatalf("expected reply-to lead, got %q", msg.ReplyTo)
	}

	slots, err := f.service.DaySlots(ctx, f.tenantID, f.at(time.January, 8, 0, 0))
	if err != nil {
		t.Fatalf("day slots: %v", err)
	}
	for _, slot := range slots {
		if slot.Time == "09:00" {
			t.Fatalf("expected 09:00 to be booked, got %+v", slots)
		}
	}

	found, err := f.service.VisitByPublicID(ctx, f.tenantID, visit.PublicID)
	if err != nil {
		t.Fatalf("visit by public id: %v", err)
	}
	if found.ID != visit.ID {
		t.Fatalf("expected visit %d, got %d", visit.ID, found.ID)
	}
}

func TestRequestVisit_RejectsTakenSlot(t *testing.T) {
	f := newFixture(t)
	f.mondayMornings(t)
	f.request(t, f.at(time.January, 8, 9, 0))

	_, err := f.service.RequestVisit(context.Background(), f.tenantID, scheduling.VisitRequest{
		LeadName:  "Ana Lima",
		LeadEmail: "ana@example.com",
		Options:   []time.Time{f.at(time.January, 8, 9, 0)},
	})
	if !errors.Is(err, scheduling.ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
}

func TestRequestVisit_RejectsTimeOutsideSchedule(t *testing.T) {
	f := newFixture(t)
	f.mondayMornings(t)

	_, err := f.service.RequestVisit(context.Background(), f.tenantID, scheduling.VisitRequest{
		LeadName:  "Ana Lima",
		LeadEmail: "ana@example.com",
		Options:   []time.Time{f.at(time.January, 9, 9, 0)},
	})
	if !errors.Is(err, scheduling.ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable for a Tuesday, got %v", err)
	}
}

func TestRequestVisit_FallbackScheduleStillPreventsDoubleBooking(t *testing.T) {
	f := newFixture(t)
	f.request(t, f.at(time.January, 2, 9, 30))

	_, err := f.service.RequestVisit(context.Background(), f.tenantID, scheduling.VisitRequest{
		LeadName:  "Ana Lima",
		LeadEmail: "ana@example.com",
		Options:   []time.Time{f.at(time.January, 2, 9, 30)},
	})
	if !errors.Is(err, scheduling.ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
}

func TestRequestVisit_Validation(t *testing.T) {
	f := newFixture(t)
	option := f.at(time.January, 2, 9, 0)

	tests := []struct {
		name  string
		req   scheduling.VisitRequest
		field string
	}{
		{
			name:  "missing name",
			req:   scheduling.VisitRequest{LeadEmail: "a@example.com", Options: []time.Time{option}},
			field: "lead_name",
		},
		{
			name:  "missing contact",
			req:   scheduling.VisitRequest{LeadName: "Ana", Options: []time.Time{option}},
			field: "lead_email",
		},
		{
			name:  "invalid email",
			req:   scheduling.VisitRequest{LeadName: "Ana", LeadEmail: "not-an-email", Options: []time.Time{option}},
			field: "lead_email",
		},
		{
			name:  "invalid phone",
			req:   scheduling.VisitRequest{LeadName: "Ana", LeadPhone: "123", Options: []time.Time{option}},
			field: "lead_phone",
		},
		{
			name:  "no options",
			req:   scheduling.VisitRequest{LeadName: "Ana", LeadEmail: "a@example.com"},
			field: "options",
		},
		{
			name:  "duplicate options",
			req:   scheduling.VisitRequest{LeadName: "Ana", LeadEmail: "a@example.com", Options: []time.Time{option, option}},
			field: "options",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.RequestVisit(context.Background(), f.tenantID, tt.req)
			var fieldErr scheduling.FieldError
			if !errors.As(err, &fieldErr) {
				t.Fatalf("expected field error, got %v", err)
			}
			if fieldErr.Field != tt.field {
				t.Fatalf("expected field %s, got %s", tt.field, fieldErr.Field)
			}
		})
	}
}

func TestConfirmVisit_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mondayMornings(t)
	visitID := f.request(t, f.at(time.January, 8, 9, 0), f.at(time.January, 8, 10, 0))

	visit, err := f.service.ConfirmVisit(ctx, f.tenantID, visitID, scheduling.ConfirmInput{Option: 2})
	if err != nil {
		t.Fatalf("confirm visit: %v", err)
	}
	if visit.Status != string(availability.StatusConfirmed) {
		t.Fatalf("expected confirmed, got %s", visit.Status)
	}
	if !visit.ConfirmedDatetime.Time.Equal(f.at(time.January, 8, 10, 0)) {
		t.Fatalf("expected confirmed at 10:00, got %s", visit.ConfirmedDatetime.Time)
	}
	if msg := f.sender.next(t); msg.To != "maria@example.com" {
		t.Fatalf("expected confirmation to lead, got %q", msg.To)
	}

	// The confirmed time blocks 10:00 and frees the first option.
	slots, err := f.service.DaySlots(ctx, f.tenantID, f.at(time.January, 8, 0, 0))
	if err != nil {
		t.Fatalf("day slots: %v", err)
	}
	var times []string
	for _, slot := range slots {
		times = append(times, slot.Time)
	}
	if len(times) != 2 || times[0] != "09:00" || times[1] != "11:00" {
		t.Fatalf("expected 09:00 and 11:00 open, got %v", times)
	}

	visit, err = f.service.ConfirmVisit(ctx, f.tenantID, visitID, scheduling.ConfirmInput{At: f.at(time.January, 15, 11, 0)})
	if err != nil {
		t.Fatalf("reschedule visit: %v", err)
	}
	if visit.Status != string(availability.StatusRescheduled) {
		t.Fatalf("expected rescheduled, got %s", visit.Status)
	}
	f.sender.next(t)

	visit, err = f.service.CompleteVisit(ctx, f.tenantID, visitID)
	if err != nil {
		t.Fatalf("complete visit: %v", err)
	}
	if visit.Status != string(availability.StatusCompleted) {
		t.Fatalf("expected completed, got %s", visit.Status)
	}

	if _, err := f.service.CancelVisit(ctx, f.tenantID, visitID, "late"); !errors.Is(err, scheduling.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestConfirmVisit_KeepsOwnSlot(t *testing.T) {
	f := newFixture(t)
	f.mondayMornings(t)
	visitID := f.request(t, f.at(time.January, 8, 9, 0))

	visit, err := f.service.ConfirmVisit(context.Background(), f.tenantID, visitID, scheduling.ConfirmInput{Option: 1})
	if err != nil {
		t.Fatalf("confirm own option: %v", err)
	}
	if visit.Status != string(availability.StatusConfirmed) {
		t.Fatalf("expected confirmed, got %s", visit.Status)
	}
}

func TestConfirmVisit_RejectsTakenSlot(t *testing.T) {
	f := newFixture(t)
	f.mondayMornings(t)
	f.request(t, f.at(time.January, 8, 9, 0))
	second := f.request(t, f.at(time.January, 8, 10, 0))

	_, err := f.service.ConfirmVisit(context.Background(), f.tenantID, second, scheduling.ConfirmInput{At: f.at(time.January, 8, 9, 0)})
	if !errors.Is(err, scheduling.ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
}

func TestConfirmVisit_RequestedCannotCompleteOrNoShow(t *testing.T) {
	f := newFixture(t)
	f.mondayMornings(t)
	visitID := f.request(t, f.at(time.January, 8, 9, 0))

	if _, err := f.service.CompleteVisit(context.Background(), f.tenantID, visitID); !errors.Is(err, scheduling.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on complete, got %v", err)
	}
	if _, err := f.service.MarkNoShow(context.Background(), f.tenantID, visitID); !errors.Is(err, scheduling.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on no-show, got %v", err)
	}
}

func TestCancelVisit_FreesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mondayMornings(t)
	visitID := f.request(t, f.at(time.January, 8, 9, 0))

	visit, err := f.service.CancelVisit(ctx, f.tenantID, visitID, "Cliente desistiu")
	if err != nil {
		t.Fatalf("cancel visit: %v", err)
	}
	if visit.Status != string(availability.StatusCancelled) || visit.Notes.String != "Cliente desistiu" {
		t.Fatalf("unexpected cancelled visit: %+v", visit)
	}
	f.sender.next(t)

	slots, err := f.service.DaySlots(ctx, f.tenantID, f.at(time.January, 8, 0, 0))
	if err != nil {
		t.Fatalf("day slots: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("expected all 3 slots open after cancel, got %d", len(slots))
	}
}

func TestVisit_TenantScoped(t *testing.T) {
	f := newFixture(t)
	f.mondayMornings(t)
	visitID := f.request(t, f.at(time.January, 8, 9, 0))
	other := testutil.SeedTenant(t, f.db, "outra", testZone)

	if _, err := f.service.Visit(context.Background(), other.ID, visitID); !errors.Is(err, scheduling.ErrNotFound) {
		t.Fatalf("expected ErrNotFound across tenants, got %v", err)
	}
}

func TestSendDueReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mondayMornings(t)
	visitID := f.request(t, f.at(time.January, 8, 9, 0))
	if _, err := f.service.ConfirmVisit(ctx, f.tenantID, visitID, scheduling.ConfirmInput{Option: 1}); err != nil {
		t.Fatalf("confirm visit: %v", err)
	}
	f.sender.next(t)

	sent, err := f.service.SendDueReminders(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("send reminders: %v", err)
	}
	if sent != 0 {
		t.Fatalf("expected no reminders a week ahead, got %d", sent)
	}

	f.clock.Advance(6 * 24 * time.Hour)
	sent, err = f.service.SendDueReminders(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("send reminders: %v", err)
	}
	if sent != 1 {
		t.Fatalf("expected one reminder, got %d", sent)
	}
	if msg := f.sender.next(t); msg.To != "maria@example.com" {
		t.Fatalf("expected reminder to lead, got %q", msg.To)
	}

	sent, err = f.service.SendDueReminders(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("send reminders: %v", err)
	}
	if sent != 0 {
		t.Fatalf("expected reminder sent once, got %d", sent)
	}
}

func TestExpireStaleRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mondayMornings(t)
	visitID := f.request(t, f.at(time.January, 8, 9, 0))

	f.clock.Advance(8 * 24 * time.Hour)
	expired, err := f.service.ExpireStaleRequests(ctx)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired request, got %d", expired)
	}

	visit, err := f.service.Visit(ctx, f.tenantID, visitID)
	if err != nil {
		t.Fatalf("load visit: %v", err)
	}
	if visit.Status != string(availability.StatusCancelled) || visit.Notes.String != "expired" {
		t.Fatalf("expected cancelled/expired, got %s/%s", visit.Status, visit.Notes.String)
	}
}
