package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/vitrine-imob/vitrine/internal/availability"
	"github.com/vitrine-imob/vitrine/internal/db"
	"github.com/vitrine-imob/vitrine/internal/db/store"
	"github.com/vitrine-imob/vitrine/internal/testutil"
)

func TestUpsertWeeklyRule_OneRulePerDay(t *testing.T) {
	database := testutil.NewTestDB(t)
	tenant := testutil.SeedTenant(t, database, "aurora", "UTC")
	ctx := context.Background()

	_, err := database.Queries.UpsertWeeklyRule(ctx, store.UpsertWeeklyRuleParams{
		TenantID: tenant.ID, DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", SlotDurationMinutes: 60, Active: true,
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	updated, err := database.Queries.UpsertWeeklyRule(ctx, store.UpsertWeeklyRuleParams{
		TenantID: tenant.ID, DayOfWeek: 1, StartTime: "13:00", EndTime: "17:00", SlotDurationMinutes: 30, Active: false,
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if updated.StartTime != "13:00" || updated.SlotDurationMinutes != 30 || updated.Active {
		t.Fatalf("rule not updated: %+v", updated)
	}

	all, err := database.Queries.ListWeeklyRules(ctx, tenant.ID)
	if err != nil {
		t.Fatalf("list rules: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(all))
	}
	active, err := database.Queries.ListActiveWeeklyRules(ctx, tenant.ID)
	if err != nil {
		t.Fatalf("list active rules: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active rules, got %d", len(active))
	}

	rules, err := store.WeeklyRules(all)
	if err != nil {
		t.Fatalf("convert rules: %v", err)
	}
	if rules[0].StartTime != availability.NewTimeOfDay(13, 0) || rules[0].DayOfWeek != 1 {
		t.Fatalf("converted rule: %+v", rules[0])
	}
}

func TestDeleteWeeklyRule(t *testing.T) {
	database := testutil.NewTestDB(t)
	tenant := testutil.SeedTenant(t, database, "aurora", "UTC")
	ctx := context.Background()

	if _, err := database.Queries.UpsertWeeklyRule(ctx, store.UpsertWeeklyRuleParams{
		TenantID: tenant.ID, DayOfWeek: 3, StartTime: "09:00", EndTime: "12:00", SlotDurationMinutes: 60, Active: true,
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	deleted, err := database.Queries.DeleteWeeklyRule(ctx, store.DeleteWeeklyRuleParams{TenantID: tenant.ID, DayOfWeek: 3})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted rows: %d", deleted)
	}
	if _, err := database.Queries.GetWeeklyRule(ctx, store.GetWeeklyRuleParams{TenantID: tenant.ID, DayOfWeek: 3}); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestListFutureBlackouts(t *testing.T) {
	database := testutil.NewTestDB(t)
	tenant := testutil.SeedTenant(t, database, "aurora", "UTC")
	ctx := context.Background()

	seed := []store.CreateBlackoutParams{
		{TenantID: tenant.ID, StartDate: "2023-12-01", EndDate: "2023-12-10"},
		{TenantID: tenant.ID, StartDate: "2023-12-28", EndDate: "2024-01-03", Reason: sql.NullString{String: "Recesso", Valid: true}},
		{TenantID: tenant.ID, StartDate: "2019-02-12", EndDate: "2019-02-13", Recurring: true},
	}
	for _, params := range seed {
		if _, err := database.Queries.CreateBlackout(ctx, params); err != nil {
			t.Fatalf("create blackout: %v", err)
		}
	}

	rows, err := database.Queries.ListFutureBlackouts(ctx, store.ListFutureBlackoutsParams{TenantID: tenant.ID, Today: "2024-01-01"})
	if err != nil {
		t.Fatalf("list blackouts: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 blackouts, got %d", len(rows))
	}
	periods, err := store.BlackoutPeriods(rows)
	if err != nil {
		t.Fatalf("convert blackouts: %v", err)
	}
	if !periods[0].Recurring || periods[1].Reason != "Recesso" {
		t.Fatalf("periods: %+v", periods)
	}
}

func TestCreateBlackout_RejectsInvertedRange(t *testing.T) {
	database := testutil.NewTestDB(t)
	tenant := testutil.SeedTenant(t, database, "aurora", "UTC")

	_, err := database.Queries.CreateBlackout(context.Background(), store.CreateBlackoutParams{
		TenantID: tenant.ID, StartDate: "2024-02-10", EndDate: "2024-02-01",
	})
	if err == nil {
		t.Fatalf("expected check constraint failure")
	}
}

func TestListActiveBookingsInWindow(t *testing.T) {
	database := testutil.NewTestDB(t)
	tenant := testutil.SeedTenant(t, database, "aurora", "UTC")
	ctx := context.Background()

	base := time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)
	requested := createVisit(t, database, tenant.ID, "req", base)
	cancelled := createVisit(t, database, tenant.ID, "can", base.Add(time.Hour))
	confirmed := createVisit(t, database, tenant.ID, "con", base.AddDate(0, 3, 0))
	outside := createVisit(t, database, tenant.ID, "out", base.AddDate(0, 4, 0))

	if _, err := database.Queries.UpdateVisitStatus(ctx, store.UpdateVisitStatusParams{
		ID: cancelled.ID, TenantID: tenant.ID, Status: string(availability.StatusCancelled),
	}); err != nil {
		t.Fatalf("cancel visit: %v", err)
	}
	// Confirming moves the effective time into the window.
	if _, err := database.Queries.ConfirmVisit(ctx, store.ConfirmVisitParams{
		ID: confirmed.ID, TenantID: tenant.ID, ConfirmedDatetime: base.Add(2 * time.Hour), Status: string(availability.StatusConfirmed),
	}); err != nil {
		t.Fatalf("confirm visit: %v", err)
	}

	visits, err := database.Queries.ListActiveBookingsInWindow(ctx, store.ListActiveBookingsInWindowParams{
		TenantID:    tenant.ID,
		WindowStart: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("list bookings: %v", err)
	}
	if len(visits) != 2 {
		t.Fatalf("expected 2 bookings, got %d", len(visits))
	}
	if visits[0].ID != requested.ID || visits[1].ID != confirmed.ID {
		t.Fatalf("unexpected bookings: %d, %d", visits[0].ID, visits[1].ID)
	}
	for _, v := range visits {
		if v.ID == outside.ID {
			t.Fatalf("visit outside window returned")
		}
	}

	appointments := store.Appointments(visits)
	if appointments[1].ConfirmedAt == nil || !appointments[1].ConfirmedAt.Equal(base.Add(2*time.Hour)) {
		t.Fatalf("confirmed appointment: %+v", appointments[1])
	}
	if !availability.EffectiveTime(appointments[0]).Equal(base) {
		t.Fatalf("requested appointment effective time: %s", availability.EffectiveTime(appointments[0]))
	}
}

func TestExpireStaleVisitRequests(t *testing.T) {
	database := testutil.NewTestDB(t)
	tenant := testutil.SeedTenant(t, database, "aurora", "UTC")
	ctx := context.Background()

	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	stale := createVisit(t, database, tenant.ID, "stale", now.Add(-48*time.Hour))
	fresh := createVisit(t, database, tenant.ID, "fresh", now.Add(48*time.Hour))

	expired, err := database.Queries.ExpireStaleVisitRequests(ctx, now)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expired rows: %d", expired)
	}

	got, err := database.Queries.GetVisitByID(ctx, store.GetVisitByIDParams{ID: stale.ID, TenantID: tenant.ID})
	if err != nil {
		t.Fatalf("get stale: %v", err)
	}
	if got.Status != string(availability.StatusCancelled) || got.Notes.String != "expired" {
		t.Fatalf("stale visit: %s %q", got.Status, got.Notes.String)
	}
	got, err = database.Queries.GetVisitByID(ctx, store.GetVisitByIDParams{ID: fresh.ID, TenantID: tenant.ID})
	if err != nil {
		t.Fatalf("get fresh: %v", err)
	}
	if got.Status != string(availability.StatusRequested) {
		t.Fatalf("fresh visit status: %s", got.Status)
	}
}

func TestVisitsAreTenantScoped(t *testing.T) {
	database := testutil.NewTestDB(t)
	aurora := testutil.SeedTenant(t, database, "aurora", "UTC")
	horizonte := testutil.SeedTenant(t, database, "horizonte", "UTC")

	visit := createVisit(t, database, aurora.ID, "scoped", time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC))

	_, err := database.Queries.GetVisitByID(context.Background(), store.GetVisitByIDParams{ID: visit.ID, TenantID: horizonte.ID})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows across tenants, got %v", err)
	}
}

func TestCreateTenant_DuplicateSlug(t *testing.T) {
	database := testutil.NewTestDB(t)
	testutil.SeedTenant(t, database, "aurora", "UTC")

	_, err := database.Queries.CreateTenant(context.Background(), store.CreateTenantParams{
		Kind: "construtora", Name: "Outra", Slug: "aurora", Timezone: "UTC",
	})
	if !db.IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

func createVisit(t *testing.T, database *db.DB, tenantID int64, publicID string, option time.Time) store.Visit {
	t.Helper()

	visit, err := database.Queries.CreateVisit(context.Background(), store.CreateVisitParams{
		PublicID:        publicID,
		TenantID:        tenantID,
		LeadName:        "Maria Souza",
		LeadEmail:       sql.NullString{String: "maria@example.com", Valid: true},
		OptionDatetime1: option,
	})
	if err != nil {
		t.Fatalf("create visit: %v", err)
	}
	return visit
}
