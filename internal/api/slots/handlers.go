package slots

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vitrine-imob/vitrine/internal/api/apiutil"
	"github.com/vitrine-imob/vitrine/internal/availability"
	"github.com/vitrine-imob/vitrine/internal/scheduling"
)

const slotsQueryTimeout = 10 * time.Second

var (
	service     *scheduling.Service
	serviceOnce sync.Once
)

type slotResponse struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

type slotsResponse struct {
	Configured  bool           `json:"configured"`
	Fallback    bool           `json:"fallback"`
	GeneratedAt time.Time      `json:"generatedAt"`
	Slots       []slotResponse `json:"slots"`
}

type daySlotsResponse struct {
	Date      string         `json:"date"`
	Available bool           `json:"available"`
	Slots     []slotResponse `json:"slots"`
}

type dayAvailabilityResponse struct {
	Date      string `json:"date"`
	Available bool   `json:"available"`
}

type daysResponse struct {
	Days []string `json:"days"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(s *scheduling.Service) {
	if s == nil {
		return
	}
	serviceOnce.Do(func() {
		service = s
	})
}

// GET /api/v1/availability/slots[?date=YYYY-MM-DD]
func HandleSlots(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	svc := loadService()
	if svc == nil {
		logger.Error().Msg("Scheduling service not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	tenant, ok := apiutil.RequireTenant(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), slotsQueryTimeout)
	defer cancel()

	if rawDate := r.URL.Query().Get("date"); rawDate != "" {
		date, err := apiutil.ParseDate(rawDate, "date", tenant.Loc())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		daySlots, err := svc.DaySlots(ctx, tenant.ID, date)
		if err != nil {
			apiutil.WriteError(w, r, err, "Failed to load availability")
			return
		}
		resp := daySlotsResponse{
			Date:      date.Format(availability.DateLayout),
			Available: len(daySlots) > 0,
			Slots:     toSlotResponses(daySlots),
		}
		if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
			logger.Error().Err(err).Int64("tenant_id", tenant.ID).Msg("Failed to write day slots response")
		}
		return
	}

	result, err := svc.Slots(ctx, tenant.ID)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to load availability")
		return
	}
	resp := slotsResponse{
		Configured:  result.Configured,
		Fallback:    result.Fallback,
		GeneratedAt: result.GeneratedAt,
		Slots:       toSlotResponses(result.Slots),
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Int64("tenant_id", tenant.ID).Msg("Failed to write slots response")
	}
}

// GET /api/v1/availability/days
func HandleDays(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	svc := loadService()
	if svc == nil {
		logger.Error().Msg("Scheduling service not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	tenant, ok := apiutil.RequireTenant(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), slotsQueryTimeout)
	defer cancel()

	days, err := svc.AvailableDays(ctx, tenant.ID)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to load available days")
		return
	}

	resp := daysResponse{Days: make([]string, 0, len(days))}
	for _, day := range days {
		resp.Days = append(resp.Days, day.Format(availability.DateLayout))
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Int64("tenant_id", tenant.ID).Msg("Failed to write days response")
	}
}

// GET /api/v1/availability/days/{date}
func HandleDayAvailability(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	svc := loadService()
	if svc == nil {
		logger.Error().Msg("Scheduling service not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	tenant, ok := apiutil.RequireTenant(w, r)
	if !ok {
		return
	}

	date, err := apiutil.ParseDate(r.PathValue("date"), "date", tenant.Loc())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), slotsQueryTimeout)
	defer cancel()

	available, err := svc.DayAvailable(ctx, tenant.ID, date)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to load availability")
		return
	}
	resp := dayAvailabilityResponse{Date: date.Format(availability.DateLayout), Available: available}
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Int64("tenant_id", tenant.ID).Msg("Failed to write day availability response")
	}
}

func toSlotResponses(slots []availability.TimeSlot) []slotResponse {
	out := make([]slotResponse, 0, len(slots))
	for _, slot := range slots {
		out = append(out, slotResponse{
			Date:      slot.DateString(),
			Time:      slot.Time,
			Available: slot.Available,
		})
	}
	return out
}

func loadService() *scheduling.Service {
	return service
}
