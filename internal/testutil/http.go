package testutil

import (
	"net/http"
	"time"

	"github.com/vitrine-imob/vitrine/internal/api/tenancy"
	"github.com/vitrine-imob/vitrine/internal/db/store"
)

// WithTenant scopes req to tenant the way the tenant middleware does.
func WithTenant(req *http.Request, tenant store.Tenant) *http.Request {
	loc, err := time.LoadLocation(tenant.Timezone)
	if err != nil {
		loc = time.UTC
	}
	ctx := tenancy.ContextWithTenant(req.Context(), &tenancy.Tenant{
		ID:       tenant.ID,
		Name:     tenant.Name,
		Slug:     tenant.Slug,
		Location: loc,
	})
	return req.WithContext(ctx)
}
