package scheduling

import (
	"context"
	"database/sql"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog/log"

	"github.com/vitrine-imob/vitrine/internal/availability"
	"github.com/vitrine-imob/vitrine/internal/db"
	"github.com/vitrine-imob/vitrine/internal/db/store"
	"github.com/vitrine-imob/vitrine/internal/email"
)

const maxVisitOptions = 2

// VisitRequest is a lead's request to visit, proposing one or two slot start times.
type VisitRequest struct {
	// PropertyID is optional; zero means a general visit to the tenant.
	PropertyID int64
	LeadName   string
	LeadEmail  string
	LeadPhone  string
	Notes      string
	Options    []time.Time
}

// ConfirmInput picks the confirmed time: a proposed option (1 or 2) or an explicit slot.
type ConfirmInput struct {
	Option int
	At     time.Time
}

var allowedTransitions = map[availability.AppointmentStatus][]availability.AppointmentStatus{
	availability.StatusRequested: {
		availability.StatusConfirmed,
		availability.StatusCancelled,
	},
	availability.StatusConfirmed: {
		availability.StatusConfirmed,
		availability.StatusRescheduled,
		availability.StatusCancelled,
		availability.StatusCompleted,
		availability.StatusNoShow,
	},
	availability.StatusRescheduled: {
		availability.StatusRescheduled,
		availability.StatusCancelled,
		availability.StatusCompleted,
		availability.StatusNoShow,
	},
}

func canTransition(from, to availability.AppointmentStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RequestVisit records a visit request. Every option must be an available slot.
func (s *Service) RequestVisit(ctx context.Context, tenantID int64, req VisitRequest) (store.Visit, error) {
	params, err := s.visitParams(tenantID, req)
	if err != nil {
		return store.Visit{}, err
	}
	tenant, err := s.tenant(ctx, tenantID)
	if err != nil {
		return store.Visit{}, err
	}

	var property store.Property
	if req.PropertyID != 0 {
		property, err = s.db.Queries.GetProperty(ctx, store.GetPropertyParams{ID: req.PropertyID, TenantID: tenantID})
		if err != nil {
			return store.Visit{}, notFound(err, fmt.Sprintf("property %d", req.PropertyID))
		}
	}

	result, err := s.Slots(ctx, tenantID)
	if err != nil {
		return store.Visit{}, err
	}
	for i, option := range req.Options {
		if err := requireAvailable(result.Slots, option); err != nil {
			return store.Visit{}, fmt.Errorf("option %d: %w", i+1, err)
		}
	}

	var visit store.Visit
	err = s.db.RunInTx(ctx, func(tx *db.DB) error {
		if err := checkNoConflict(ctx, tx, tenantID, params.OptionDatetime1, 0); err != nil {
			return err
		}
		created, err := tx.Queries.CreateVisit(ctx, params)
		if err != nil {
			return fmt.Errorf("create visit: %w", err)
		}
		visit = created
		return nil
	})
	if err != nil {
		return store.Visit{}, err
	}
	s.cache.InvalidateTenant(ctx, tenantID)

	logger := log.Ctx(ctx).With().Int64("tenant_id", tenantID).Int64("visit_id", visit.ID).Logger()
	logger.Info().Str("public_id", visit.PublicID).Int("options", len(req.Options)).Msg("Visit requested")

	if tenant.ContactEmail.Valid {
		msg := email.BuildVisitRequested(s.visitDetails(ctx, tenant, property, visit))
		msg.To = tenant.ContactEmail.String
		email.SendAsync(ctx, s.sender, msg, &logger)
	}
	return visit, nil
}

// ConfirmVisit fixes the visit time. Confirming an already confirmed visit at a
// different time reschedules it.
func (s *Service) ConfirmVisit(ctx context.Context, tenantID, visitID int64, in ConfirmInput) (store.Visit, error) {
	tenant, err := s.tenant(ctx, tenantID)
	if err != nil {
		return store.Visit{}, err
	}
	current, err := s.visit(ctx, tenantID, visitID)
	if err != nil {
		return store.Visit{}, err
	}

	from := availability.AppointmentStatus(current.Status)
	at, err := confirmTime(current, in)
	if err != nil {
		return store.Visit{}, err
	}
	to := availability.StatusConfirmed
	if from != availability.StatusRequested {
		to = from
		if !current.ConfirmedDatetime.Valid || !current.ConfirmedDatetime.Time.Equal(at) {
			to = availability.StatusRescheduled
		}
	}
	if !canTransition(from, to) {
		return store.Visit{}, fmt.Errorf("%s to %s: %w", from, to, ErrInvalidTransition)
	}

	slots, err := s.slotsExcluding(ctx, tenant, visitID)
	if err != nil {
		return store.Visit{}, err
	}
	if err := requireAvailable(slots, at); err != nil {
		return store.Visit{}, err
	}

	var visit store.Visit
	err = s.db.RunInTx(ctx, func(tx *db.DB) error {
		if err := checkNoConflict(ctx, tx, tenantID, at, visitID); err != nil {
			return err
		}
		updated, err := tx.Queries.ConfirmVisit(ctx, store.ConfirmVisitParams{
			ID:                visitID,
			TenantID:          tenantID,
			ConfirmedDatetime: at,
			Status:            string(to),
		})
		if err != nil {
			return notFound(err, "confirm visit")
		}
		visit = updated
		return nil
	})
	if err != nil {
		return store.Visit{}, err
	}
	s.cache.InvalidateTenant(ctx, tenantID)

	logger := log.Ctx(ctx).With().Int64("tenant_id", tenantID).Int64("visit_id", visitID).Logger()
	logger.Info().Str("status", visit.Status).Time("confirmed_at", at).Msg("Visit confirmed")

	if visit.LeadEmail.Valid {
		msg := email.BuildVisitConfirmed(s.visitDetails(ctx, tenant, s.property(ctx, visit), visit))
		msg.To = visit.LeadEmail.String
		email.SendAsync(ctx, s.sender, msg, &logger)
	}
	return visit, nil
}

func (s *Service) CancelVisit(ctx context.Context, tenantID, visitID int64, reason string) (store.Visit, error) {
	visit, tenant, err := s.transition(ctx, tenantID, visitID, availability.StatusCancelled, reason)
	if err != nil {
		return store.Visit{}, err
	}
	if visit.LeadEmail.Valid {
		logger := log.Ctx(ctx).With().Int64("tenant_id", tenantID).Int64("visit_id", visitID).Logger()
		details := s.visitDetails(ctx, tenant, s.property(ctx, visit), visit)
		details.Reason = reason
		msg := email.BuildVisitCancelled(details)
		msg.To = visit.LeadEmail.String
		email.SendAsync(ctx, s.sender, msg, &logger)
	}
	return visit, nil
}

func (s *Service) CompleteVisit(ctx context.Context, tenantID, visitID int64) (store.Visit, error) {
	visit, _, err := s.transition(ctx, tenantID, visitID, availability.StatusCompleted, "")
	return visit, err
}

func (s *Service) MarkNoShow(ctx context.Context, tenantID, visitID int64) (store.Visit, error) {
	visit, _, err := s.transition(ctx, tenantID, visitID, availability.StatusNoShow, "")
	return visit, err
}

func (s *Service) Visit(ctx context.Context, tenantID, visitID int64) (store.Visit, error) {
	return s.visit(ctx, tenantID, visitID)
}

// VisitByPublicID looks a visit up by the identifier shared with leads.
func (s *Service) VisitByPublicID(ctx context.Context, tenantID int64, publicID string) (store.Visit, error) {
	if _, err := uuid.Parse(publicID); err != nil {
		return store.Visit{}, fmt.Errorf("visit %q: %w", publicID, ErrNotFound)
	}
	visit, err := s.db.Queries.GetVisitByPublicID(ctx, store.GetVisitByPublicIDParams{PublicID: publicID, TenantID: tenantID})
	if err != nil {
		return store.Visit{}, notFound(err, fmt.Sprintf("visit %q", publicID))
	}
	return visit, nil
}

func (s *Service) transition(ctx context.Context, tenantID, visitID int64, to availability.AppointmentStatus, notes string) (store.Visit, store.Tenant, error) {
	tenant, err := s.tenant(ctx, tenantID)
	if err != nil {
		return store.Visit{}, store.Tenant{}, err
	}
	current, err := s.visit(ctx, tenantID, visitID)
	if err != nil {
		return store.Visit{}, store.Tenant{}, err
	}
	from := availability.AppointmentStatus(current.Status)
	if !canTransition(from, to) {
		return store.Visit{}, store.Tenant{}, fmt.Errorf("%s to %s: %w", from, to, ErrInvalidTransition)
	}

	notes = strings.TrimSpace(notes)
	visit, err := s.db.Queries.UpdateVisitStatus(ctx, store.UpdateVisitStatusParams{
		ID:       visitID,
		TenantID: tenantID,
		Status:   string(to),
		Notes:    sql.NullString{String: notes, Valid: notes != ""},
	})
	if err != nil {
		return store.Visit{}, store.Tenant{}, notFound(err, "update visit status")
	}
	s.cache.InvalidateTenant(ctx, tenantID)

	log.Ctx(ctx).Info().
		Int64("tenant_id", tenantID).
		Int64("visit_id", visitID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Visit status changed")
	return visit, tenant, nil
}

func (s *Service) visit(ctx context.Context, tenantID, visitID int64) (store.Visit, error) {
	visit, err := s.db.Queries.GetVisitByID(ctx, store.GetVisitByIDParams{ID: visitID, TenantID: tenantID})
	if err != nil {
		return store.Visit{}, notFound(err, fmt.Sprintf("visit %d", visitID))
	}
	return visit, nil
}

// slotsExcluding computes uncached slots as if visitID held no booking.
func (s *Service) slotsExcluding(ctx context.Context, tenant store.Tenant, visitID int64) ([]availability.TimeSlot, error) {
	now := s.now().In(TenantLocation(ctx, tenant))
	in, err := s.loadInputs(ctx, tenant.ID, now)
	if err != nil {
		return nil, err
	}
	others := in.bookings[:0:0]
	for _, booking := range in.bookings {
		if booking.ID != visitID {
			others = append(others, booking)
		}
	}
	return availability.GenerateSlots(in.activeRules, in.blackouts, store.Appointments(others), now), nil
}

// checkNoConflict rejects a second blocking booking on the same start time.
// It runs inside the write transaction so concurrent requests cannot both pass.
func checkNoConflict(ctx context.Context, tx *db.DB, tenantID int64, at time.Time, exceptID int64) error {
	at = at.Truncate(time.Minute)
	rows, err := tx.Queries.ListActiveBookingsInWindow(ctx, store.ListActiveBookingsInWindowParams{
		TenantID:    tenantID,
		WindowStart: at,
		WindowEnd:   at.Add(time.Minute),
	})
	if err != nil {
		return fmt.Errorf("check booking conflicts: %w", err)
	}
	for _, row := range rows {
		if row.ID != exceptID {
			return fmt.Errorf("%s already booked: %w", at.Format(time.RFC3339), ErrSlotUnavailable)
		}
	}
	return nil
}

func requireAvailable(slots []availability.TimeSlot, at time.Time) error {
	slot, ok := availability.FindSlot(slots, at)
	if !ok {
		return fmt.Errorf("%s is not a bookable slot: %w", at.Format(time.RFC3339), ErrSlotUnavailable)
	}
	if !slot.Available {
		return fmt.Errorf("%s is already booked: %w", at.Format(time.RFC3339), ErrSlotUnavailable)
	}
	return nil
}

func confirmTime(visit store.Visit, in ConfirmInput) (time.Time, error) {
	if !in.At.IsZero() {
		if !onMinute(in.At) {
			return time.Time{}, fieldError("at", "must fall on a whole minute")
		}
		return in.At, nil
	}
	switch in.Option {
	case 1:
		return visit.OptionDatetime1, nil
	case 2:
		if !visit.OptionDatetime2.Valid {
			return time.Time{}, fieldError("option", "visit has no second option")
		}
		return visit.OptionDatetime2.Time, nil
	default:
		return time.Time{}, fieldError("option", "must be 1 or 2")
	}
}

func (s *Service) visitParams(tenantID int64, req VisitRequest) (store.CreateVisitParams, error) {
	name := strings.TrimSpace(req.LeadName)
	if name == "" {
		return store.CreateVisitParams{}, fieldError("lead_name", "is required")
	}

	leadEmail := strings.TrimSpace(req.LeadEmail)
	if leadEmail != "" {
		addr, err := mail.ParseAddress(leadEmail)
		if err != nil || addr.Address != leadEmail {
			return store.CreateVisitParams{}, fieldError("lead_email", "is not a valid address")
		}
	}
	phone, err := s.normalizePhone(req.LeadPhone)
	if err != nil {
		return store.CreateVisitParams{}, err
	}
	if leadEmail == "" && phone == "" {
		return store.CreateVisitParams{}, fieldError("lead_email", "or lead_phone is required")
	}

	if len(req.Options) == 0 || len(req.Options) > maxVisitOptions {
		return store.CreateVisitParams{}, fieldError("options", "must hold one or two times")
	}
	for _, option := range req.Options {
		if option.IsZero() || !onMinute(option) {
			return store.CreateVisitParams{}, fieldError("options", "must be whole-minute times")
		}
	}
	if len(req.Options) == 2 && req.Options[0].Equal(req.Options[1]) {
		return store.CreateVisitParams{}, fieldError("options", "must be distinct")
	}

	notes := strings.TrimSpace(req.Notes)
	params := store.CreateVisitParams{
		PublicID:        uuid.NewString(),
		TenantID:        tenantID,
		PropertyID:      sql.NullInt64{Int64: req.PropertyID, Valid: req.PropertyID != 0},
		LeadName:        name,
		LeadEmail:       sql.NullString{String: leadEmail, Valid: leadEmail != ""},
		LeadPhone:       sql.NullString{String: phone, Valid: phone != ""},
		OptionDatetime1: req.Options[0],
		Notes:           sql.NullString{String: notes, Valid: notes != ""},
	}
	if len(req.Options) == 2 {
		params.OptionDatetime2 = sql.NullTime{Time: req.Options[1], Valid: true}
	}
	return params, nil
}

// normalizePhone returns raw in E.164 form, or "" when raw is blank.
func (s *Service) normalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	number, err := phonenumbers.Parse(raw, s.phoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(number) {
		return "", fieldError("lead_phone", "is not a valid phone number")
	}
	return phonenumbers.Format(number, phonenumbers.E164), nil
}

func (s *Service) property(ctx context.Context, visit store.Visit) store.Property {
	if !visit.PropertyID.Valid {
		return store.Property{}
	}
	property, err := s.db.Queries.GetProperty(ctx, store.GetPropertyParams{ID: visit.PropertyID.Int64, TenantID: visit.TenantID})
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Int64("visit_id", visit.ID).Msg("Failed to load visit property for email")
		return store.Property{}
	}
	return property
}

func (s *Service) visitDetails(ctx context.Context, tenant store.Tenant, property store.Property, visit store.Visit) email.VisitDetails {
	loc := TenantLocation(ctx, tenant)
	details := email.VisitDetails{
		TenantName:    tenant.Name,
		PropertyTitle: property.Title,
		LeadName:      visit.LeadName,
		LeadEmail:     visit.LeadEmail.String,
		LeadPhone:     visit.LeadPhone.String,
		Options:       []time.Time{visit.OptionDatetime1.In(loc)},
	}
	if visit.OptionDatetime2.Valid {
		details.Options = append(details.Options, visit.OptionDatetime2.Time.In(loc))
	}
	if visit.ConfirmedDatetime.Valid {
		details.ConfirmedAt = visit.ConfirmedDatetime.Time.In(loc)
	}
	return details
}

func onMinute(t time.Time) bool {
	return t.Second() == 0 && t.Nanosecond() == 0
}
