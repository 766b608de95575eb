package schedule

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vitrine-imob/vitrine/internal/api/apiutil"
	"github.com/vitrine-imob/vitrine/internal/db/store"
	"github.com/vitrine-imob/vitrine/internal/scheduling"
)

const (
	scheduleQueryTimeout = 5 * time.Second
	dayOfWeekParam       = "day_of_week"
	blackoutIDParam      = "id"
)

var (
	service     *scheduling.Service
	serviceOnce sync.Once
)

type ruleRequest struct {
	StartTime           string `json:"startTime"`
	EndTime             string `json:"endTime"`
	SlotDurationMinutes int    `json:"slotDurationMinutes"`
	Active              *bool  `json:"active"`
}

type blackoutRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Reason    string `json:"reason"`
	Recurring bool   `json:"recurring"`
}

type ruleResponse struct {
	ID                  int64  `json:"id"`
	DayOfWeek           int64  `json:"dayOfWeek"`
	StartTime           string `json:"startTime"`
	EndTime             string `json:"endTime"`
	SlotDurationMinutes int64  `json:"slotDurationMinutes"`
	Active              bool   `json:"active"`
}

type blackoutResponse struct {
	ID        int64  `json:"id"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Reason    string `json:"reason,omitempty"`
	Recurring bool   `json:"recurring"`
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

// GET /api/v1/availability/rules
func HandleRulesList(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := context.WithTimeout(r.Context(), scheduleQueryTimeout)
	defer cancel()

	rules, err := svc.Rules(ctx, tenant.ID)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to load weekly rules")
		return
	}

	resp := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		resp = append(resp, toRuleResponse(rule))
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"rules": resp}); err != nil {
		logger.Error().Err(err).Int64("tenant_id", tenant.ID).Msg("Failed to write rules response")
	}
}

// PUT /api/v1/availability/rules/{day_of_week}
func HandleRuleUpsert(w http.ResponseWriter, r *http.Request) {
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

	dayOfWeek, err := apiutil.ParseDayOfWeek(r.PathValue(dayOfWeekParam))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req, err := decodeRuleRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	ctx, cancel := context.WithTimeout(r.Context(), scheduleQueryTimeout)
	defer cancel()

	saved, err := svc.UpsertRule(ctx, tenant.ID, scheduling.RuleInput{
		DayOfWeek:           dayOfWeek,
		StartTime:           req.StartTime,
		EndTime:             req.EndTime,
		SlotDurationMinutes: req.SlotDurationMinutes,
		Active:              active,
	})
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to save weekly rule")
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, toRuleResponse(saved)); err != nil {
		logger.Error().Err(err).Int64("tenant_id", tenant.ID).Int("day_of_week", dayOfWeek).Msg("Failed to write rule response")
	}
}

// DELETE /api/v1/availability/rules/{day_of_week}
func HandleRuleDelete(w http.ResponseWriter, r *http.Request) {
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

	dayOfWeek, err := apiutil.ParseDayOfWeek(r.PathValue(dayOfWeekParam))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), scheduleQueryTimeout)
	defer cancel()

	if err := svc.DeleteRule(ctx, tenant.ID, dayOfWeek); err != nil {
		apiutil.WriteError(w, r, err, "Failed to delete weekly rule")
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"deleted": true}); err != nil {
		logger.Error().Err(err).Int64("tenant_id", tenant.ID).Int("day_of_week", dayOfWeek).Msg("Failed to write rule delete response")
	}
}

// GET /api/v1/availability/blackouts
func HandleBlackoutsList(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := context.WithTimeout(r.Context(), scheduleQueryTimeout)
	defer cancel()

	periods, err := svc.Blackouts(ctx, tenant.ID)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to load blackout periods")
		return
	}

	resp := make([]blackoutResponse, 0, len(periods))
	for _, period := range periods {
		resp = append(resp, toBlackoutResponse(period))
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"blackouts": resp}); err != nil {
		logger.Error().Err(err).Int64("tenant_id", tenant.ID).Msg("Failed to write blackouts response")
	}
}

// POST /api/v1/availability/blackouts
func HandleBlackoutCreate(w http.ResponseWriter, r *http.Request) {
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

	req, err := decodeBlackoutRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), scheduleQueryTimeout)
	defer cancel()

	saved, err := svc.AddBlackout(ctx, tenant.ID, scheduling.BlackoutInput{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Reason:    req.Reason,
		Recurring: req.Recurring,
	})
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to create blackout period")
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusCreated, toBlackoutResponse(saved)); err != nil {
		logger.Error().Err(err).Int64("tenant_id", tenant.ID).Msg("Failed to write blackout response")
	}
}

// DELETE /api/v1/availability/blackouts/{id}
func HandleBlackoutDelete(w http.ResponseWriter, r *http.Request) {
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

	blackoutID, err := apiutil.ParsePositiveInt64Field(r.PathValue(blackoutIDParam), "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), scheduleQueryTimeout)
	defer cancel()

	if err := svc.DeleteBlackout(ctx, tenant.ID, blackoutID); err != nil {
		apiutil.WriteError(w, r, err, "Failed to delete blackout period")
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"deleted": true}); err != nil {
		logger.Error().Err(err).Int64("tenant_id", tenant.ID).Int64("blackout_id", blackoutID).Msg("Failed to write blackout delete response")
	}
}

func decodeRuleRequest(r *http.Request) (ruleRequest, error) {
	var req ruleRequest
	if apiutil.IsJSONRequest(r) {
		if err := apiutil.DecodeJSON(r, &req); err != nil {
			return ruleRequest{}, err
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return ruleRequest{}, err
	}
	req.StartTime = r.FormValue("start_time")
	req.EndTime = r.FormValue("end_time")
	if raw := r.FormValue("slot_duration_minutes"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil {
			return ruleRequest{}, scheduling.FieldError{Field: "slot_duration_minutes", Reason: "must be a number"}
		}
		req.SlotDurationMinutes = minutes
	}
	if raw := r.FormValue("active"); raw != "" {
		active := apiutil.ParseBoolField(raw)
		req.Active = &active
	}
	return req, nil
}

func decodeBlackoutRequest(r *http.Request) (blackoutRequest, error) {
	var req blackoutRequest
	if apiutil.IsJSONRequest(r) {
		if err := apiutil.DecodeJSON(r, &req); err != nil {
			return blackoutRequest{}, err
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return blackoutRequest{}, err
	}
	req.StartDate = r.FormValue("start_date")
	req.EndDate = r.FormValue("end_date")
	req.Reason = r.FormValue("reason")
	req.Recurring = apiutil.ParseBoolField(r.FormValue("recurring"))
	return req, nil
}

func toRuleResponse(rule store.AvailabilityRule) ruleResponse {
	return ruleResponse{
		ID:                  rule.ID,
		DayOfWeek:           rule.DayOfWeek,
		StartTime:           rule.StartTime,
		EndTime:             rule.EndTime,
		SlotDurationMinutes: rule.SlotDurationMinutes,
		Active:              rule.Active,
	}
}

func toBlackoutResponse(period store.BlackoutPeriod) blackoutResponse {
	return blackoutResponse{
		ID:        period.ID,
		StartDate: period.StartDate,
		EndDate:   period.EndDate,
		Reason:    period.Reason.String,
		Recurring: period.Recurring,
	}
}

func loadService() *scheduling.Service {
	return service
}
