package store

import (
	"context"
	"database/sql"
)

const tenantColumns = `id, kind, name, slug, timezone, contact_email, created_at, updated_at`

type CreateTenantParams struct {
	Kind         string
	Name         string
	Slug         string
	Timezone     string
	ContactEmail sql.NullString
}

const createTenant = `
INSERT INTO tenants (kind, name, slug, timezone, contact_email)
VALUES (?, ?, ?, ?, ?)`

func (q *Queries) CreateTenant(ctx context.Context, arg CreateTenantParams) (Tenant, error) {
	result, err := q.db.ExecContext(ctx, createTenant, arg.Kind, arg.Name, arg.Slug, arg.Timezone, arg.ContactEmail)
	if err != nil {
		return Tenant{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Tenant{}, err
	}
	return q.GetTenantByID(ctx, id)
}

const getTenantByID = `SELECT ` + tenantColumns + ` FROM tenants WHERE id = ?`

func (q *Queries) GetTenantByID(ctx context.Context, id int64) (Tenant, error) {
	return scanTenant(q.db.QueryRowContext(ctx, getTenantByID, id))
}

const getTenantBySlug = `SELECT ` + tenantColumns + ` FROM tenants WHERE slug = ?`

func (q *Queries) GetTenantBySlug(ctx context.Context, slug string) (Tenant, error) {
	return scanTenant(q.db.QueryRowContext(ctx, getTenantBySlug, slug))
}

const listTenants = `SELECT ` + tenantColumns + ` FROM tenants ORDER BY id`

func (q *Queries) ListTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := q.db.QueryContext(ctx, listTenants)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Tenant
	for rows.Next() {
		item, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type CreatePropertyParams struct {
	TenantID int64
	Title    string
	Slug     string
	Address  sql.NullString
}

const createProperty = `
INSERT INTO properties (tenant_id, title, slug, address)
VALUES (?, ?, ?, ?)`

func (q *Queries) CreateProperty(ctx context.Context, arg CreatePropertyParams) (Property, error) {
	result, err := q.db.ExecContext(ctx, createProperty, arg.TenantID, arg.Title, arg.Slug, arg.Address)
	if err != nil {
		return Property{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Property{}, err
	}
	return q.GetProperty(ctx, GetPropertyParams{ID: id, TenantID: arg.TenantID})
}

type GetPropertyParams struct {
	ID       int64
	TenantID int64
}

const getProperty = `
SELECT id, tenant_id, title, slug, address, created_at
FROM properties
WHERE id = ? AND tenant_id = ?`

func (q *Queries) GetProperty(ctx context.Context, arg GetPropertyParams) (Property, error) {
	row := q.db.QueryRowContext(ctx, getProperty, arg.ID, arg.TenantID)
	var p Property
	err := row.Scan(&p.ID, &p.TenantID, &p.Title, &p.Slug, &p.Address, &p.CreatedAt)
	return p, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTenant(row rowScanner) (Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Kind, &t.Name, &t.Slug, &t.Timezone, &t.ContactEmail, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}
