package api

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vitrine-imob/vitrine/internal/api/tenancy"
	"github.com/vitrine-imob/vitrine/internal/db/store"
	"github.com/vitrine-imob/vitrine/internal/scheduling"
)

const (
	TenantHeader       = "X-Tenant"
	tenantQueryTimeout = 5 * time.Second
)

type Middleware func(http.Handler) http.Handler

// TenantResolver looks up tenants by public slug.
type TenantResolver interface {
	TenantBySlug(ctx context.Context, slug string) (store.Tenant, error)
}

type requestIDKey struct{}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func ChainMiddleware(h http.Handler, middleware ...Middleware) http.Handler {
	for _, m := range middleware {
		h = m(h)
	}
	return h
}

func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := wrapResponseWriter(w)

		next.ServeHTTP(wrapped, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.status).
			Dur("duration", time.Since(start)).
			Str("request_id", RequestIDFromContext(r.Context())).
			Str("tenant_id", tenancy.TenantIDString(r.Context())).
			Msg("Request completed")
	})
}

func WithRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger := log.Ctx(r.Context())
				stack := debug.Stack()
				logger.Error().
					Interface("error", err).
					Str("stack", string(stack)).
					Msg("Panic recovered")

				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// WithRequestID tags the request, its logger and the response with a request ID.
// An inbound X-Request-ID is kept when it is a UUID.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}

		logger := log.With().Str("request_id", requestID).Logger()

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		ctx = logger.WithContext(ctx)

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// WithTenant resolves the tenant from the X-Tenant header, falling back to the
// subdomain in {tenant-slug}.{base_domain}. Requests that name no tenant pass
// through untouched and are rejected by handlers that need one.
func WithTenant(resolver TenantResolver, baseDomain string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			logger := log.Ctx(r.Context())

			slug := strings.ToLower(strings.TrimSpace(r.Header.Get(TenantHeader)))
			if slug == "" {
				slug = subdomainSlug(r.Host, baseDomain)
			}
			if slug == "" {
				logger.Debug().Str("host", r.Host).Msg("No tenant on request")
				next.ServeHTTP(w, r)
				return
			}

			// Timeout only applies to this lookup.
			queryCtx, cancel := context.WithTimeout(r.Context(), tenantQueryTimeout)
			defer cancel()

			tenant, err := resolver.TenantBySlug(queryCtx, slug)
			if err != nil {
				if errors.Is(err, scheduling.ErrNotFound) {
					logger.Warn().Str("slug", slug).Msg("Tenant not found")
					http.Error(w, "Tenant not found", http.StatusNotFound)
					return
				}
				logger.Error().Err(err).Str("slug", slug).Msg("Failed to look up tenant")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			ctx := tenancy.ContextWithTenant(r.Context(), &tenancy.Tenant{
				ID:       tenant.ID,
				Name:     tenant.Name,
				Slug:     tenant.Slug,
				Location: scheduling.TenantLocation(r.Context(), tenant),
			})
			tenantLogger := logger.With().Int64("tenant_id", tenant.ID).Logger()
			ctx = tenantLogger.WithContext(ctx)

			tenantLogger.Debug().Str("tenant_slug", tenant.Slug).Msg("Tenant resolved")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// subdomainSlug extracts "horizonte" from "horizonte.example.com:8080" for base domain "example.com".
func subdomainSlug(host, baseDomain string) string {
	if baseDomain == "" {
		return ""
	}
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	host = strings.ToLower(host)
	suffix := "." + strings.ToLower(baseDomain)
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	sub := strings.TrimSuffix(host, suffix)
	if sub == "" || strings.Contains(sub, ".") {
		return ""
	}
	return sub
}
