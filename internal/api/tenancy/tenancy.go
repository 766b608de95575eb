package tenancy

import (
	"context"
	"errors"
	"strconv"
	"time"
)

var ErrNoTenant = errors.New("tenant not specified")

// Tenant is the construtora or imobiliaria a request is scoped to.
type Tenant struct {
	ID       int64
	Name     string
	Slug     string
	Location *time.Location
}

type tenantContextKey struct{}

func ContextWithTenant(ctx context.Context, tenant *Tenant) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tenant)
}

// TenantFromContext returns nil if ctx is nil or carries no tenant.
func TenantFromContext(ctx context.Context) *Tenant {
	if ctx == nil {
		return nil
	}
	tenant, ok := ctx.Value(tenantContextKey{}).(*Tenant)
	if !ok {
		return nil
	}
	return tenant
}

// TenantIDString returns the tenant ID as a string, or empty if no tenant in context.
func TenantIDString(ctx context.Context) string {
	if tenant := TenantFromContext(ctx); tenant != nil {
		return strconv.FormatInt(tenant.ID, 10)
	}
	return ""
}

func RequireTenant(ctx context.Context) (*Tenant, error) {
	tenant := TenantFromContext(ctx)
	if tenant == nil || tenant.ID <= 0 {
		return nil, ErrNoTenant
	}
	return tenant, nil
}

// Loc returns the tenant time zone, UTC when unset.
func (t *Tenant) Loc() *time.Location {
	if t == nil || t.Location == nil {
		return time.UTC
	}
	return t.Location
}
