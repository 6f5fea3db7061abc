package repository

import (
	"context"
	"database/sql"

	"nightpass/internal/database"
	apperrors "nightpass/internal/errors"
	"nightpass/internal/models"
)

type StaffRepository struct {
	db *database.DB
}

func NewStaffRepository(db *database.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

const staffColumns = `id, tenant_id, user_id, name, email, role, is_active, created_at, updated_at`

func scanStaff(s scanner, m *models.Staff) error {
	return s.Scan(&m.ID, &m.TenantID, &m.UserID, &m.Name, &m.Email, &m.Role, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
}

// GetByUserID resolves an auth subject to its active staff membership, or nil.
func (r *StaffRepository) GetByUserID(ctx context.Context, userID string) (*models.Staff, error) {
	m := &models.Staff{}
	query := `SELECT ` + staffColumns + `
		FROM staff
		WHERE user_id = $1 AND is_active AND ` + database.NotDeleted("") + `
		ORDER BY created_at
		LIMIT 1`

	err := scanStaff(r.db.QueryRowContext(ctx, query, userID), m)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *StaffRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Staff, error) {
	m := &models.Staff{}
	query := `SELECT ` + staffColumns + ` FROM staff WHERE id = $1 AND tenant_id = $2 AND ` + database.NotDeleted("")

	err := scanStaff(r.db.QueryRowContext(ctx, query, id, tenantID), m)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *StaffRepository) List(ctx context.Context, tenantID string) ([]models.Staff, error) {
	query := `SELECT ` + staffColumns + ` FROM staff WHERE tenant_id = $1 AND ` + database.NotDeleted("") + ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Staff
	for rows.Next() {
		var m models.Staff
		if err := scanStaff(rows, &m); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func (r *StaffRepository) Create(ctx context.Context, m *models.Staff) error {
	query := `
		INSERT INTO staff (tenant_id, user_id, name, email, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, is_active, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query, m.TenantID, m.UserID, m.Name, m.Email, m.Role).
		Scan(&m.ID, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
}

func (r *StaffRepository) Update(ctx context.Context, m *models.Staff) error {
	query := `
		UPDATE staff SET name = $3, role = $4, is_active = $5, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
		RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query, m.ID, m.TenantID, m.Name, m.Role, m.IsActive).Scan(&m.UpdatedAt)
	if err == sql.ErrNoRows {
		return apperrors.NotFound("staff member")
	}
	return err
}

func (r *StaffRepository) Archive(ctx context.Context, tenantID, id, actorID string) error {
	return r.db.Archive(ctx, "staff", tenantID, id, actorID)
}
