package service

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "nightpass/internal/errors"
	"nightpass/internal/models"
)

const (
	staffID = "57a1f0c2-8d3e-4b6a-9c1f-2e3d4c5b6a70"
	userID  = "0b9c8d7e-6f5a-4b3c-8d2e-1f0a9b8c7d6e"
)

var staffCols = []string{"id", "tenant_id", "user_id", "name", "email", "role", "is_active", "created_at", "updated_at"}

func staffRow(role string) *sqlmock.Rows {
	return sqlmock.NewRows(staffCols).AddRow(staffID, tenantID, userID, "Rosa Huamán", "rosa@example.pe", role, true, fixedNow, fixedNow)
}

func TestResolveStaff(t *testing.T) {
	repos, mock := setupMockDB(t)
	s := NewStaffService(repos.Staff)
	ctx := context.Background()

	_, err := s.ResolveStaff(ctx, "auth0|123")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	mock.ExpectQuery(`FROM staff\s+WHERE user_id = \$1 AND is_active`).WithArgs(userID).
		WillReturnRows(staffRow(models.RoleDoor))
	m, err := s.ResolveStaff(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleDoor, m.Role)
	assert.Equal(t, tenantID, m.TenantID)

	mock.ExpectQuery(`FROM staff`).WillReturnRows(sqlmock.NewRows(staffCols))
	_, err = s.ResolveStaff(ctx, userID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateStaff(t *testing.T) {
	repos, mock := setupMockDB(t)
	s := NewStaffService(repos.Staff)

	mock.ExpectQuery(`INSERT INTO staff`).
		WithArgs(tenantID, userID, "Rosa Huamán", "rosa@example.pe", models.RoleManager).
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_active", "created_at", "updated_at"}).
			AddRow(staffID, true, fixedNow, fixedNow))

	m, err := s.Create(context.Background(), tenantID, &models.StaffRequest{
		UserID: userID,
		Name:   " Rosa Huamán ",
		Email:  "Rosa@Example.pe",
		Role:   models.RoleManager,
	})
	require.NoError(t, err)
	assert.Equal(t, staffID, m.ID)
	assert.Equal(t, "rosa@example.pe", m.Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateStaffValidation(t *testing.T) {
	tests := []struct {
		name string
		req  models.StaffRequest
	}{
		{"user id not a uuid", models.StaffRequest{UserID: "auth0|123", Name: "Rosa", Email: "rosa@example.pe", Role: models.RoleDoor}},
		{"blank name", models.StaffRequest{UserID: userID, Name: " ", Email: "rosa@example.pe", Role: models.RoleDoor}},
		{"bad email", models.StaffRequest{UserID: userID, Name: "Rosa", Email: "rosa", Role: models.RoleDoor}},
		{"unknown role", models.StaffRequest{UserID: userID, Name: "Rosa", Email: "rosa@example.pe", Role: "bouncer"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repos, mock := setupMockDB(t)
			s := NewStaffService(repos.Staff)

			_, err := s.Create(context.Background(), tenantID, &tt.req)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUpdateStaffRole(t *testing.T) {
	repos, mock := setupMockDB(t)
	s := NewStaffService(repos.Staff)
	ctx := context.Background()

	mock.ExpectQuery(`FROM staff WHERE id = \$1`).WithArgs(staffID, tenantID).WillReturnRows(staffRow(models.RoleDoor))
	mock.ExpectQuery(`UPDATE staff`).
		WithArgs(staffID, tenantID, "Rosa Huamán", models.RoleAdmin, true).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(fixedNow))

	role := models.RoleAdmin
	m, err := s.Update(ctx, tenantID, staffID, &models.StaffUpdateRequest{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, m.Role)

	mock.ExpectQuery(`FROM staff WHERE id = \$1`).WillReturnRows(staffRow(models.RoleDoor))
	role = "bouncer"
	_, err = s.Update(ctx, tenantID, staffID, &models.StaffUpdateRequest{Role: &role})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveStaff(t *testing.T) {
	t.Run("cannot archive yourself", func(t *testing.T) {
		repos, mock := setupMockDB(t)
		s := NewStaffService(repos.Staff)

		err := s.Archive(context.Background(), tenantID, actorID, actorID)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("archives another member", func(t *testing.T) {
		repos, mock := setupMockDB(t)
		s := NewStaffService(repos.Staff)

		mock.ExpectExec(`UPDATE staff\s+SET deleted_at = NOW\(\)`).
			WithArgs(staffID, tenantID, actorID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.Archive(context.Background(), tenantID, staffID, actorID))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already archived", func(t *testing.T) {
		repos, mock := setupMockDB(t)
		s := NewStaffService(repos.Staff)

		mock.ExpectExec(`UPDATE staff`).WillReturnResult(sqlmock.NewResult(0, 0))

		err := s.Archive(context.Background(), tenantID, staffID, actorID)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
