package visits

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vitrine-imob/vitrine/internal/api/apiutil"
	"github.com/vitrine-imob/vitrine/internal/db/store"
	"github.com/vitrine-imob/vitrine/internal/ratelimit"
	"github.com/vitrine-imob/vitrine/internal/scheduling"
)

const (
	visitsQueryTimeout = 10 * time.Second
	visitIDParam       = "id"
	publicIDParam      = "public_id"
)

var (
	service     *scheduling.Service
	serviceOnce sync.Once

	// Nil disables throttling of visit requests.
	limiter    *ratelimit.Limiter
	trustProxy bool
)

type visitRequest struct {
	PropertyID int64    `json:"propertyId"`
	LeadName   string   `json:"leadName"`
	LeadEmail  string   `json:"leadEmail"`
	LeadPhone  string   `json:"leadPhone"`
	Notes      string   `json:"notes"`
	Options    []string `json:"options"`
}

type confirmRequest struct {
	Option int    `json:"option"`
	At     string `json:"at"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type visitResponse struct {
	ID          int64       `json:"id"`
	PublicID    string      `json:"publicId"`
	PropertyID  *int64      `json:"propertyId,omitempty"`
	LeadName    string      `json:"leadName"`
	LeadEmail   string      `json:"leadEmail,omitempty"`
	LeadPhone   string      `json:"leadPhone,omitempty"`
	Options     []time.Time `json:"options"`
	ConfirmedAt *time.Time  `json:"confirmedAt,omitempty"`
	Status      string      `json:"status"`
	Notes       string      `json:"notes,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
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

// InitRateLimiter throttles visit requests per lead contact and client IP.
// Call it during startup, before handling requests.
func InitRateLimiter(l *ratelimit.Limiter, trustForwardedFor bool) {
	limiter = l
	trustProxy = trustForwardedFor
}

// POST /api/v1/visits
func HandleVisitCreate(w http.ResponseWriter, r *http.Request) {
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

	req, err := decodeVisitRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	contact := apiutil.FirstNonEmpty(req.LeadEmail, req.LeadPhone)
	clientIP := ratelimit.ClientIP(r, trustProxy)
	if limiter != nil {
		if result := limiter.Check(tenant.ID, contact, clientIP); !result.Allowed {
			ratelimit.LogExceeded(logger, contact, clientIP, result)
			w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())+1))
			http.Error(w, "Too many visit requests, try again later", http.StatusTooManyRequests)
			return
		}
	}

	options := make([]time.Time, 0, len(req.Options))
	for i, raw := range req.Options {
		option, err := apiutil.ParseDateTime(raw, fmt.Sprintf("options[%d]", i), tenant.Loc())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		options = append(options, option)
	}

	ctx, cancel := context.WithTimeout(r.Context(), visitsQueryTimeout)
	defer cancel()

	visit, err := svc.RequestVisit(ctx, tenant.ID, scheduling.VisitRequest{
		PropertyID: req.PropertyID,
		LeadName:   req.LeadName,
		LeadEmail:  req.LeadEmail,
		LeadPhone:  req.LeadPhone,
		Notes:      req.Notes,
		Options:    options,
	})
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to request visit")
		return
	}
	if limiter != nil {
		limiter.Record(tenant.ID, contact, clientIP)
	}

	if err := apiutil.WriteJSON(w, http.StatusCreated, toVisitResponse(visit, tenant.Loc())); err != nil {
		logger.Error().Err(err).Int64("tenant_id", tenant.ID).Int64("visit_id", visit.ID).Msg("Failed to write visit response")
	}
}

// GET /api/v1/visits/{public_id}
func HandleVisitGet(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := context.WithTimeout(r.Context(), visitsQueryTimeout)
	defer cancel()

	visit, err := svc.VisitByPublicID(ctx, tenant.ID, r.PathValue(publicIDParam))
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to load visit")
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, toVisitResponse(visit, tenant.Loc())); err != nil {
		logger.Error().Err(err).Int64("tenant_id", tenant.ID).Int64("visit_id", visit.ID).Msg("Failed to write visit response")
	}
}

// POST /api/v1/visits/{id}/confirm
func HandleVisitConfirm(w http.ResponseWriter, r *http.Request) {
	handleVisitAction(w, r, "Failed to confirm visit", func(ctx context.Context, svc *scheduling.Service, r *http.Request, tenantID, visitID int64, loc *time.Location) (store.Visit, error) {
		req, err := decodeConfirmRequest(r)
		if err != nil {
			return store.Visit{}, apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error(), Err: err}
		}
		in := scheduling.ConfirmInput{Option: req.Option}
		if req.At != "" {
			at, err := apiutil.ParseDateTime(req.At, "at", loc)
			if err != nil {
				return store.Visit{}, apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error(), Err: err}
			}
			in.At = at
		}
		return svc.ConfirmVisit(ctx, tenantID, visitID, in)
	})
}

// POST /api/v1/visits/{id}/cancel
func HandleVisitCancel(w http.ResponseWriter, r *http.Request) {
	handleVisitAction(w, r, "Failed to cancel visit", func(ctx context.Context, svc *scheduling.Service, r *http.Request, tenantID, visitID int64, _ *time.Location) (store.Visit, error) {
		req, err := decodeCancelRequest(r)
		if err != nil {
			return store.Visit{}, apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error(), Err: err}
		}
		return svc.CancelVisit(ctx, tenantID, visitID, req.Reason)
	})
}

// POST /api/v1/visits/{id}/complete
func HandleVisitComplete(w http.ResponseWriter, r *http.Request) {
	handleVisitAction(w, r, "Failed to complete visit", func(ctx context.Context, svc *scheduling.Service, _ *http.Request, tenantID, visitID int64, _ *time.Location) (store.Visit, error) {
		return svc.CompleteVisit(ctx, tenantID, visitID)
	})
}

// POST /api/v1/visits/{id}/no-show
func HandleVisitNoShow(w http.ResponseWriter, r *http.Request) {
	handleVisitAction(w, r, "Failed to mark visit as no-show", func(ctx context.Context, svc *scheduling.Service, _ *http.Request, tenantID, visitID int64, _ *time.Location) (store.Visit, error) {
		return svc.MarkNoShow(ctx, tenantID, visitID)
	})
}

type visitAction func(ctx context.Context, svc *scheduling.Service, r *http.Request, tenantID, visitID int64, loc *time.Location) (store.Visit, error)

func handleVisitAction(w http.ResponseWriter, r *http.Request, failure string, action visitAction) {
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

	visitID, err := apiutil.ParsePositiveInt64Field(r.PathValue(visitIDParam), "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), visitsQueryTimeout)
	defer cancel()

	visit, err := action(ctx, svc, r, tenant.ID, visitID, tenant.Loc())
	if err != nil {
		apiutil.WriteError(w, r, err, failure)
		return
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, toVisitResponse(visit, tenant.Loc())); err != nil {
		logger.Error().Err(err).Int64("tenant_id", tenant.ID).Int64("visit_id", visitID).Msg("Failed to write visit response")
	}
}

func decodeVisitRequest(r *http.Request) (visitRequest, error) {
	var req visitRequest
	if apiutil.IsJSONRequest(r) {
		if err := apiutil.DecodeJSON(r, &req); err != nil {
			return visitRequest{}, err
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return visitRequest{}, err
	}
	propertyID, err := apiutil.ParseOptionalInt64Field(r.FormValue("property_id"), "property_id")
	if err != nil {
		return visitRequest{}, err
	}
	req.PropertyID = propertyID
	req.LeadName = r.FormValue("lead_name")
	req.LeadEmail = r.FormValue("lead_email")
	req.LeadPhone = r.FormValue("lead_phone")
	req.Notes = r.FormValue("notes")
	for _, key := range []string{"option_1", "option_2"} {
		if raw := r.FormValue(key); raw != "" {
			req.Options = append(req.Options, raw)
		}
	}
	return req, nil
}

func decodeConfirmRequest(r *http.Request) (confirmRequest, error) {
	var req confirmRequest
	if apiutil.IsJSONRequest(r) {
		if err := apiutil.DecodeJSON(r, &req); err != nil {
			return confirmRequest{}, err
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return confirmRequest{}, err
	}
	if raw := r.FormValue("option"); raw != "" {
		option, err := strconv.Atoi(raw)
		if err != nil {
			return confirmRequest{}, fmt.Errorf("option must be 1 or 2")
		}
		req.Option = option
	}
	req.At = r.FormValue("at")
	return req, nil
}

// decodeCancelRequest accepts an empty body; the reason is optional.
func decodeCancelRequest(r *http.Request) (cancelRequest, error) {
	var req cancelRequest
	if apiutil.IsJSONRequest(r) {
		if r.ContentLength == 0 {
			return req, nil
		}
		if err := apiutil.DecodeJSON(r, &req); err != nil {
			return cancelRequest{}, err
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return cancelRequest{}, err
	}
	req.Reason = r.FormValue("reason")
	return req, nil
}

func toVisitResponse(visit store.Visit, loc *time.Location) visitResponse {
	resp := visitResponse{
		ID:        visit.ID,
		PublicID:  visit.PublicID,
		LeadName:  visit.LeadName,
		LeadEmail: visit.LeadEmail.String,
		LeadPhone: visit.LeadPhone.String,
		Options:   []time.Time{visit.OptionDatetime1.In(loc)},
		Status:    visit.Status,
		Notes:     visit.Notes.String,
		CreatedAt: visit.CreatedAt,
	}
	if visit.PropertyID.Valid {
		id := visit.PropertyID.Int64
		resp.PropertyID = &id
	}
	if visit.OptionDatetime2.Valid {
		resp.Options = append(resp.Options, visit.OptionDatetime2.Time.In(loc))
	}
	if visit.ConfirmedDatetime.Valid {
		confirmed := visit.ConfirmedDatetime.Time.In(loc)
		resp.ConfirmedAt = &confirmed
	}
	return resp
}

func loadService() *scheduling.Service {
	return service
}
