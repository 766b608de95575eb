package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vitrine-imob/vitrine/internal/db/store"
	"github.com/vitrine-imob/vitrine/internal/email"
)

// SendDueReminders emails leads whose confirmed visit starts within leadTime.
// Each visit is marked before its email is queued, so reminders go out at most once.
func (s *Service) SendDueReminders(ctx context.Context, leadTime time.Duration) (int, error) {
	tenants, err := s.db.Queries.ListTenants(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tenants: %w", err)
	}

	now := s.now()
	sent := 0
	for _, tenant := range tenants {
		visits, err := s.db.Queries.ListVisitsNeedingReminder(ctx, store.ListVisitsNeedingReminderParams{
			TenantID:    tenant.ID,
			WindowStart: now,
			WindowEnd:   now.Add(leadTime),
		})
		if err != nil {
			return sent, fmt.Errorf("list visits needing reminder for tenant %d: %w", tenant.ID, err)
		}

		for _, visit := range visits {
			logger := log.Ctx(ctx).With().Int64("tenant_id", tenant.ID).Int64("visit_id", visit.ID).Logger()
			if err := s.db.Queries.MarkVisitReminderSent(ctx, store.MarkVisitReminderSentParams{ID: visit.ID, SentAt: now}); err != nil {
				logger.Error().Err(err).Msg("Failed to mark visit reminder sent")
				continue
			}
			sent++
			if !visit.LeadEmail.Valid {
				continue
			}
			msg := email.BuildVisitReminder(s.visitDetails(ctx, tenant, s.property(ctx, visit), visit))
			msg.To = visit.LeadEmail.String
			email.SendAsync(ctx, s.sender, msg, &logger)
		}
	}
	return sent, nil
}

// ExpireStaleRequests cancels requested visits whose proposed options have all passed.
func (s *Service) ExpireStaleRequests(ctx context.Context) (int64, error) {
	expired, err := s.db.Queries.ExpireStaleVisitRequests(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("expire stale visit requests: %w", err)
	}
	if expired == 0 {
		return 0, nil
	}

	tenants, err := s.db.Queries.ListTenants(ctx)
	if err != nil {
		return expired, fmt.Errorf("list tenants: %w", err)
	}
	for _, tenant := range tenants {
		s.cache.InvalidateTenant(ctx, tenant.ID)
	}
	return expired, nil
}
