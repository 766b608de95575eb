package apiutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/vitrine-imob/vitrine/internal/api/tenancy"
	"github.com/vitrine-imob/vitrine/internal/scheduling"
)

type HandlerError struct {
	Status  int
	Message string
	Err     error
}

func (e HandlerError) Error() string {
	return e.Message
}

func (e HandlerError) Unwrap() error {
	return e.Err
}

func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("missing request body")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(payload); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

func IsJSONRequest(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "application/json")
}

func FirstNonEmpty(values ...string) string {
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}

// RequireTenant writes a 400 and returns false when the request carries no tenant.
func RequireTenant(w http.ResponseWriter, r *http.Request) (*tenancy.Tenant, bool) {
	tenant, err := tenancy.RequireTenant(r.Context())
	if err != nil {
		log.Ctx(r.Context()).Warn().Str("path", r.URL.Path).Msg("Request without tenant")
		http.Error(w, "Tenant not specified", http.StatusBadRequest)
		return nil, false
	}
	return tenant, true
}

// StatusFor maps service errors to HTTP statuses.
func StatusFor(err error) int {
	var fieldErr scheduling.FieldError
	var handlerErr HandlerError
	switch {
	case errors.As(err, &handlerErr):
		return handlerErr.Status
	case errors.As(err, &fieldErr):
		return http.StatusBadRequest
	case errors.Is(err, scheduling.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, scheduling.ErrSlotUnavailable), errors.Is(err, scheduling.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError responds with the status for err. Server errors are logged and
// replaced by fallback so internals never leak.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Err(err).Str("tenant_id", tenancy.TenantIDString(r.Context())).Msg(fallback)
		http.Error(w, fallback, status)
		return
	}
	var handlerErr HandlerError
	if errors.As(err, &handlerErr) {
		http.Error(w, handlerErr.Message, status)
		return
	}
	http.Error(w, err.Error(), status)
}
