// Package scheduling combines stored schedules with the availability engine
// and owns the visit lifecycle.
package scheduling

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/vitrine-imob/vitrine/internal/availability"
	"github.com/vitrine-imob/vitrine/internal/db"
	"github.com/vitrine-imob/vitrine/internal/db/store"
	"github.com/vitrine-imob/vitrine/internal/email"
)

const defaultPhoneRegion = "BR"

type Service struct {
	db          *db.DB
	cache       SlotCache
	sender      email.Sender
	now         func() time.Time
	phoneRegion string
}

type Option func(*Service)

func WithCache(cache SlotCache) Option {
	return func(s *Service) {
		if cache != nil {
			s.cache = cache
		}
	}
}

func WithSender(sender email.Sender) Option {
	return func(s *Service) {
		if sender != nil {
			s.sender = sender
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPhoneRegion sets the region used to parse lead phone numbers without a country code.
func WithPhoneRegion(region string) Option {
	return func(s *Service) {
		if region != "" {
			s.phoneRegion = region
		}
	}
}

func NewService(database *db.DB, opts ...Option) *Service {
	s := &Service{
		db:          database,
		cache:       noCache{},
		sender:      email.NopSender{},
		now:         time.Now,
		phoneRegion: defaultPhoneRegion,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result is a computed slot list for one tenant.
type Result struct {
	TenantID int64
	Slots    []availability.TimeSlot
	// Configured reports whether the tenant stored any weekly rule, active or not.
	Configured bool
	// Fallback is set when no active rule exists and the default schedule was served.
	Fallback    bool
	GeneratedAt time.Time
}

type inputs struct {
	activeRules []availability.WeeklyRule
	configured  bool
	blackouts   []availability.BlackoutPeriod
	bookings    []store.Visit
}

// Slots computes the tenant's bookable slots over the booking horizon.
func (s *Service) Slots(ctx context.Context, tenantID int64) (Result, error) {
	tenant, err := s.tenant(ctx, tenantID)
	if err != nil {
		return Result{}, err
	}
	now := s.now().In(TenantLocation(ctx, tenant))

	in, err := s.loadInputs(ctx, tenantID, now)
	if err != nil {
		return Result{}, err
	}
	bookings := store.Appointments(in.bookings)

	result := Result{
		TenantID:    tenantID,
		Configured:  in.configured,
		Fallback:    len(in.activeRules) == 0,
		GeneratedAt: now,
	}

	logger := log.Ctx(ctx).With().Int64("tenant_id", tenantID).Logger()
	if result.Fallback {
		logger.Warn().Bool("configured", in.configured).Msg("No active weekly rules, serving default schedule")
	}

	key := cacheKey(tenantID, in.activeRules, in.blackouts, bookings, now)
	if cached, ok := s.cache.Get(ctx, key); ok {
		result.Slots = cached
		return result, nil
	}

	result.Slots = availability.GenerateSlots(in.activeRules, in.blackouts, bookings, now)
	s.cache.Set(ctx, key, result.Slots)
	logger.Debug().Int("slots", len(result.Slots)).Msg("Generated availability slots")
	return result, nil
}

// DaySlots returns the available slots on date, in generation order.
func (s *Service) DaySlots(ctx context.Context, tenantID int64, date time.Time) ([]availability.TimeSlot, error) {
	result, err := s.Slots(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return availability.SlotsForDate(result.Slots, date), nil
}

func (s *Service) DayAvailable(ctx context.Context, tenantID int64, date time.Time) (bool, error) {
	result, err := s.Slots(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return availability.IsDayAvailable(result.Slots, date), nil
}

func (s *Service) AvailableDays(ctx context.Context, tenantID int64) ([]time.Time, error) {
	result, err := s.Slots(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return availability.AvailableDays(result.Slots), nil
}

// loadInputs fetches rules, blackouts and bookings concurrently.
// Any fetch failure fails the whole load.
func (s *Service) loadInputs(ctx context.Context, tenantID int64, now time.Time) (inputs, error) {
	var (
		in        inputs
		activeRaw []store.AvailabilityRule
		allRaw    []store.AvailabilityRule
		blackRaw  []store.BlackoutPeriod
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.db.Queries.ListActiveWeeklyRules(gctx, tenantID)
		if err != nil {
			return fmt.Errorf("list active weekly rules: %w", err)
		}
		activeRaw = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.db.Queries.ListWeeklyRules(gctx, tenantID)
		if err != nil {
			return fmt.Errorf("list weekly rules: %w", err)
		}
		allRaw = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.db.Queries.ListFutureBlackouts(gctx, store.ListFutureBlackoutsParams{
			TenantID: tenantID,
			Today:    now.Format(availability.DateLayout),
		})
		if err != nil {
			return fmt.Errorf("list blackout periods: %w", err)
		}
		blackRaw = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.db.Queries.ListActiveBookingsInWindow(gctx, store.ListActiveBookingsInWindowParams{
			TenantID:    tenantID,
			WindowStart: availability.HorizonStart(now),
			WindowEnd:   availability.HorizonEnd(now),
		})
		if err != nil {
			return fmt.Errorf("list bookings: %w", err)
		}
		in.bookings = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return inputs{}, err
	}

	rules, err := store.WeeklyRules(activeRaw)
	if err != nil {
		return inputs{}, err
	}
	blackouts, err := store.BlackoutPeriods(blackRaw)
	if err != nil {
		return inputs{}, err
	}
	in.activeRules = rules
	in.configured = len(allRaw) > 0
	in.blackouts = blackouts
	return in, nil
}

func (s *Service) tenant(ctx context.Context, tenantID int64) (store.Tenant, error) {
	tenant, err := s.db.Queries.GetTenantByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Tenant{}, fmt.Errorf("tenant %d: %w", tenantID, ErrNotFound)
		}
		return store.Tenant{}, fmt.Errorf("load tenant: %w", err)
	}
	return tenant, nil
}

// TenantBySlug resolves a tenant from its public slug.
func (s *Service) TenantBySlug(ctx context.Context, slug string) (store.Tenant, error) {
	tenant, err := s.db.Queries.GetTenantBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Tenant{}, fmt.Errorf("tenant %q: %w", slug, ErrNotFound)
		}
		return store.Tenant{}, fmt.Errorf("load tenant: %w", err)
	}
	return tenant, nil
}

// TenantLocation loads the tenant time zone, falling back to UTC when unknown.
func TenantLocation(ctx context.Context, tenant store.Tenant) *time.Location {
	if tenant.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tenant.Timezone)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Int64("tenant_id", tenant.ID).Str("timezone", tenant.Timezone).Msg("Unknown tenant time zone, using UTC")
		return time.UTC
	}
	return loc
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}
