package repository

import (
	"context"
	"database/sql"

	"nightpass/internal/database"
	"nightpass/internal/models"
)

type TenantRepository struct {
	db *database.DB
}

func NewTenantRepository(db *database.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// GetBySlug returns an active tenant or nil.
func (r *TenantRepository) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	t := &models.Tenant{}
	query := `
		SELECT id, slug, name, is_active, created_at
		FROM tenants
		WHERE slug = $1 AND is_active`

	err := r.db.QueryRowContext(ctx, query, slug).Scan(&t.ID, &t.Slug, &t.Name, &t.IsActive, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TenantRepository) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	t := &models.Tenant{}
	query := `SELECT id, slug, name, is_active, created_at FROM tenants WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Slug, &t.Name, &t.IsActive, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}
