package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vitrine-imob/vitrine/internal/config"
	"github.com/vitrine-imob/vitrine/internal/scheduling"
)

const (
	JobVisitReminders      = "visit_reminders"
	JobExpireVisitRequests = "expire_visit_requests"

	visitJobTimeout = 2 * time.Minute
)

// RegisterVisitJobs registers the visit reminder and request expiry jobs on the singleton scheduler.
func RegisterVisitJobs(svc *scheduling.Service, cfg config.JobsConfig) error {
	sched, err := ServiceInstance()
	if err != nil {
		return err
	}
	return sched.RegisterVisitJobs(svc, cfg)
}

func (s *Service) RegisterVisitJobs(svc *scheduling.Service, cfg config.JobsConfig) error {
	if svc == nil {
		return fmt.Errorf("visit jobs require the scheduling service")
	}
	if _, err := s.AddJob(JobVisitReminders, cfg.ReminderCron, visitJobTimeout, reminderTask(svc, cfg.ReminderLeadTime)); err != nil {
		return fmt.Errorf("register %s: %w", JobVisitReminders, err)
	}
	if _, err := s.AddJob(JobExpireVisitRequests, cfg.ExpireRequestsCron, visitJobTimeout, expireTask(svc)); err != nil {
		return fmt.Errorf("register %s: %w", JobExpireVisitRequests, err)
	}
	return nil
}

func reminderTask(svc *scheduling.Service, leadTime time.Duration) Task {
	return func(ctx context.Context) {
		logger := log.Ctx(ctx)
		sent, err := svc.SendDueReminders(ctx, leadTime)
		if err != nil {
			logger.Error().Err(err).Int("sent", sent).Msg("Visit reminder job failed")
			return
		}
		if sent > 0 {
			logger.Info().Int("sent", sent).Msg("Visit reminders sent")
		}
	}
}

func expireTask(svc *scheduling.Service) Task {
	return func(ctx context.Context) {
		logger := log.Ctx(ctx)
		expired, err := svc.ExpireStaleRequests(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Visit request expiry job failed")
			return
		}
		if expired > 0 {
			logger.Info().Int64("expired", expired).Msg("Stale visit requests expired")
		}
	}
}
