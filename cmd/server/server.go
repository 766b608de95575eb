package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/vitrine-imob/vitrine/internal/api"
	"github.com/vitrine-imob/vitrine/internal/api/schedule"
	"github.com/vitrine-imob/vitrine/internal/api/slots"
	"github.com/vitrine-imob/vitrine/internal/api/visits"
	"github.com/vitrine-imob/vitrine/internal/config"
	"github.com/vitrine-imob/vitrine/internal/ratelimit"
	"github.com/vitrine-imob/vitrine/internal/scheduling"
)

func newServer(cfg *config.Config, svc *scheduling.Service, limiter *ratelimit.Limiter) *http.Server {
	return &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      newHandler(cfg, svc, limiter),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func newHandler(cfg *config.Config, svc *scheduling.Service, limiter *ratelimit.Limiter) http.Handler {
	router := http.NewServeMux()

	slots.InitHandlers(svc)
	schedule.InitHandlers(svc)
	visits.InitHandlers(svc)
	visits.InitRateLimiter(limiter, cfg.RateLimit.TrustProxy)
	registerRoutes(router)

	return api.ChainMiddleware(
		router,
		api.WithRecovery,
		api.WithLogging,
		api.WithTenant(svc, cfg.App.BaseDomain),
		api.WithRequestID,
	)
}

func registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Availability
	mux.HandleFunc("GET /api/v1/availability/slots", slots.HandleSlots)
	mux.HandleFunc("GET /api/v1/availability/days", slots.HandleDays)
	mux.HandleFunc("GET /api/v1/availability/days/{date}", slots.HandleDayAvailability)

	// Schedule configuration
	mux.HandleFunc("GET /api/v1/availability/rules", schedule.HandleRulesList)
	mux.HandleFunc("PUT /api/v1/availability/rules/{day_of_week}", schedule.HandleRuleUpsert)
	mux.HandleFunc("DELETE /api/v1/availability/rules/{day_of_week}", schedule.HandleRuleDelete)
	mux.HandleFunc("GET /api/v1/availability/blackouts", schedule.HandleBlackoutsList)
	mux.HandleFunc("POST /api/v1/availability/blackouts", schedule.HandleBlackoutCreate)
	mux.HandleFunc("DELETE /api/v1/availability/blackouts/{id}", schedule.HandleBlackoutDelete)

	// Visits
	mux.HandleFunc("POST /api/v1/visits", visits.HandleVisitCreate)
	mux.HandleFunc("GET /api/v1/visits/{public_id}", visits.HandleVisitGet)
	mux.HandleFunc("POST /api/v1/visits/{id}/confirm", visits.HandleVisitConfirm)
	mux.HandleFunc("POST /api/v1/visits/{id}/cancel", visits.HandleVisitCancel)
	mux.HandleFunc("POST /api/v1/visits/{id}/complete", visits.HandleVisitComplete)
	mux.HandleFunc("POST /api/v1/visits/{id}/no-show", visits.HandleVisitNoShow)
}
