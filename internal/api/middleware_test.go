package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vitrine-imob/vitrine/internal/api/tenancy"
	"github.com/vitrine-imob/vitrine/internal/db/store"
	"github.com/vitrine-imob/vitrine/internal/scheduling"
)

type fakeResolver struct {
	tenants map[string]store.Tenant
	err     error
}

func (f fakeResolver) TenantBySlug(_ context.Context, slug string) (store.Tenant, error) {
	if f.err != nil {
		return store.Tenant{}, f.err
	}
	tenant, ok := f.tenants[slug]
	if !ok {
		return store.Tenant{}, fmt.Errorf("tenant %q: %w", slug, scheduling.ErrNotFound)
	}
	return tenant, nil
}

func tenantEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := tenancy.TenantFromContext(r.Context())
		if tenant == nil {
			fmt.Fprint(w, "none")
			return
		}
		fmt.Fprintf(w, "%d %s %s", tenant.ID, tenant.Slug, tenant.Loc())
	})
}

func TestWithTenant(t *testing.T) {
	resolver := fakeResolver{tenants: map[string]store.Tenant{
		"horizonte": {ID: 4, Slug: "horizonte", Timezone: "America/Sao_Paulo"},
	}}
	handler := WithTenant(resolver, "vitrine.local")(tenantEcho())

	tests := []struct {
		name   string
		host   string
		header string
		status int
		body   string
	}{
		{name: "header", host: "api.example.com", header: "horizonte", status: http.StatusOK, body: "4 horizonte America/Sao_Paulo"},
		{name: "subdomain", host: "horizonte.vitrine.local:8080", status: http.StatusOK, body: "4 horizonte America/Sao_Paulo"},
		{name: "no tenant", host: "vitrine.local", status: http.StatusOK, body: "none"},
		{name: "unknown", host: "nada.vitrine.local", status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/availability/slots", nil)
			req.Host = tt.host
			if tt.header != "" {
				req.Header.Set(TenantHeader, tt.header)
			}
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, req)

			if recorder.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, recorder.Code)
			}
			if tt.body != "" && recorder.Body.String() != tt.body {
				t.Fatalf("expected body %q, got %q", tt.body, recorder.Body.String())
			}
		})
	}
}

func TestWithTenant_LookupFailure(t *testing.T) {
	handler := WithTenant(fakeResolver{err: errors.New("db down")}, "vitrine.local")(tenantEcho())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/availability/slots", nil)
	req.Header.Set(TenantHeader, "horizonte")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", recorder.Code)
	}
}

func TestWithRequestID(t *testing.T) {
	var seen string
	handler := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))
	if seen == "" || recorder.Header().Get("X-Request-ID") != seen {
		t.Fatalf("expected request id in context and header, got %q / %q", seen, recorder.Header().Get("X-Request-ID"))
	}

	const inbound = "0b6c3f5e-8d52-4a8e-9c1b-6f0d2a7e4b11"
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", inbound)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != inbound {
		t.Fatalf("expected inbound request id kept, got %q", seen)
	}
}

func TestWithRecovery(t *testing.T) {
	handler := ChainMiddleware(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }),
		WithRecovery,
		WithLogging,
		WithRequestID,
	)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", recorder.Code)
	}
}

func TestSubdomainSlug(t *testing.T) {
	tests := map[string]string{
		"horizonte.vitrine.local":      "horizonte",
		"Horizonte.Vitrine.Local:8080": "horizonte",
		"vitrine.local":                "",
		"a.b.vitrine.local":            "",
		"horizonte.other.com":          "",
	}
	for host, want := range tests {
		if got := subdomainSlug(host, "vitrine.local"); got != want {
			t.Fatalf("subdomainSlug(%q) = %q, want %q", host, got, want)
		}
	}
}
