package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/vitrine-imob/vitrine/internal/db"
	"github.com/vitrine-imob/vitrine/internal/db/store"
)

// NewTestDB creates a temporary SQLite database with migrations applied.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

// SeedTenant inserts an imobiliaria tenant with the given slug and time zone.
func SeedTenant(t *testing.T, database *db.DB, slug, timezone string) store.Tenant {
	t.Helper()

	tenant, err := database.Queries.CreateTenant(context.Background(), store.CreateTenantParams{
		Kind:         "imobiliaria",
		Name:         "Imobiliaria " + slug,
		Slug:         slug,
		Timezone:     timezone,
		ContactEmail: sql.NullString{String: "contato@" + slug + ".test", Valid: true},
	})
	if err != nil {
		t.Fatalf("insert tenant: %v", err)
	}
	return tenant
}

// SeedProperty inserts a property owned by tenantID.
func SeedProperty(t *testing.T, database *db.DB, tenantID int64, slug string) store.Property {
	t.Helper()

	property, err := database.Queries.CreateProperty(context.Background(), store.CreatePropertyParams{
		TenantID: tenantID,
		Title:    "Residencial " + slug,
		Slug:     slug,
		Address:  sql.NullString{String: "Rua das Flores, 100", Valid: true},
	})
	if err != nil {
		t.Fatalf("insert property: %v", err)
	}
	return property
}
