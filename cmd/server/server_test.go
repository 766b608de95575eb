package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/vitrine-imob/vitrine/internal/config"
	"github.com/vitrine-imob/vitrine/internal/scheduling"
	"github.com/vitrine-imob/vitrine/internal/testutil"
)

func TestRoutes(t *testing.T) {
	cfg, err := config.Parse([]byte(`app:
  name: "Vitrine"
  port: 8080
  base_domain: "vitrine.test"
database:
  driver: "sqlite"
  filename: "unused.db"
`))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}

	database := testutil.NewTestDB(t)
	testutil.SeedTenant(t, database, "centro", "America/Sao_Paulo")
	svc := scheduling.NewService(database, scheduling.WithCache(scheduling.NewMemoryCache(16, cfg.Cache.TTL)))
	handler := newHandler(cfg, svc, nil)

	serve := func(req *http.Request) *httptest.ResponseRecorder {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		return recorder
	}

	t.Run("health needs no tenant", func(t *testing.T) {
		recorder := serve(httptest.NewRequest(http.MethodGet, "/health", nil))
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		if _, err := uuid.Parse(recorder.Header().Get("X-Request-ID")); err != nil {
			t.Fatalf("expected generated request id, got %q", recorder.Header().Get("X-Request-ID"))
		}
	})

	t.Run("missing tenant", func(t *testing.T) {
		recorder := serve(httptest.NewRequest(http.MethodGet, "/api/v1/availability/slots", nil))
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", recorder.Code)
		}
	})

	t.Run("unknown tenant", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/availability/slots", nil)
		req.Header.Set("X-Tenant", "nowhere")
		if recorder := serve(req); recorder.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", recorder.Code)
		}
	})

	t.Run("subdomain tenant gets fallback slots", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/availability/slots", nil)
		req.Host = "centro.vitrine.test"
		recorder := serve(req)
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
		}
		var body struct {
			Configured bool `json:"configured"`
			Fallback   bool `json:"fallback"`
		}
		if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode slots: %v", err)
		}
		if body.Configured || !body.Fallback {
			t.Fatalf("expected unconfigured fallback, got %+v", body)
		}
	})

	t.Run("configured schedule", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/availability/rules/1",
			strings.NewReader(`{"startTime":"09:00","endTime":"12:00","slotDurationMinutes":30}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant", "centro")
		if recorder := serve(req); recorder.Code != http.StatusOK {
			t.Fatalf("expected 200 on rule upsert, got %d: %s", recorder.Code, recorder.Body.String())
		}

		req = httptest.NewRequest(http.MethodGet, "/api/v1/availability/slots", nil)
		req.Header.Set("X-Tenant", "centro")
		recorder := serve(req)
		var body struct {
			Configured bool `json:"configured"`
			Fallback   bool `json:"fallback"`
		}
		if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode slots: %v", err)
		}
		if !body.Configured || body.Fallback {
			t.Fatalf("expected configured schedule, got %+v", body)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/availability/slots", nil)
		req.Header.Set("X-Tenant", "centro")
		if recorder := serve(req); recorder.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", recorder.Code)
		}
	})
}
