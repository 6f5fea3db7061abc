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

const otherTableID = "2a3b4c5d-6e7f-4a8b-9c0d-1e2f3a4b5c6d"

func TestGetBrandDefaults(t *testing.T) {
	repos, mock := setupMockDB(t)
	s := NewSettingsService(repos.Settings, repos.Tables, nil)

	mock.ExpectQuery(`FROM brand_settings`).WithArgs(tenantID).WillReturnRows(sqlmock.NewRows(nil))

	b, err := s.GetBrand(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, defaultPrimaryColor, b.PrimaryColor)
	assert.Equal(t, defaultSecondaryColor, b.SecondaryColor)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBrandValidation(t *testing.T) {
	repos, mock := setupMockDB(t)
	s := NewSettingsService(repos.Settings, repos.Tables, nil)
	ctx := context.Background()

	_, err := s.UpsertBrand(ctx, tenantID, &models.BrandSettingsRequest{DisplayName: "Club", PrimaryColor: "red"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	insta := "http://instagram.com/club"
	_, err = s.UpsertBrand(ctx, tenantID, &models.BrandSettingsRequest{DisplayName: "Club", InstagramURL: &insta})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	phone := "abc"
	_, err = s.UpsertBrand(ctx, tenantID, &models.BrandSettingsRequest{DisplayName: "Club", WhatsAppNumber: &phone})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBrand(t *testing.T) {
	repos, mock := setupMockDB(t)
	s := NewSettingsService(repos.Settings, repos.Tables, nil)

	mock.ExpectQuery(`INSERT INTO brand_settings`).
		WithArgs(tenantID, "Club Azul", nil, "#00AAFF", defaultSecondaryColor, nil, "+51987654321").
		WillReturnRows(sqlmock.NewRows([]string{"logo_url", "updated_at"}).AddRow(nil, fixedNow))

	phone := " +51987654321 "
	b, err := s.UpsertBrand(context.Background(), tenantID, &models.BrandSettingsRequest{
		DisplayName:    " Club Azul ",
		PrimaryColor:   "#00aaff",
		WhatsAppNumber: &phone,
	})
	require.NoError(t, err)
	assert.Equal(t, "#00AAFF", b.PrimaryColor)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertLayoutRejectsUnknownTable(t *testing.T) {
	repos, mock := setupMockDB(t)
	s := NewSettingsService(repos.Settings, repos.Tables, nil)

	mock.ExpectQuery(`SELECT id FROM tables`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(tableID))

	_, err := s.UpsertLayout(context.Background(), tenantID, &models.LayoutSettingsRequest{
		CanvasWidth:  800,
		CanvasHeight: 600,
		Positions: map[string]models.TablePosition{
			tableID:      {X: 100, Y: 120},
			otherTableID: {X: 300, Y: 120},
		},
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertLayoutBounds(t *testing.T) {
	repos, mock := setupMockDB(t)
	s := NewSettingsService(repos.Settings, repos.Tables, nil)
	ctx := context.Background()

	_, err := s.UpsertLayout(ctx, tenantID, &models.LayoutSettingsRequest{CanvasWidth: 0, CanvasHeight: 600})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = s.UpsertLayout(ctx, tenantID, &models.LayoutSettingsRequest{
		CanvasWidth:  800,
		CanvasHeight: 600,
		Positions:    map[string]models.TablePosition{tableID: {X: 900, Y: 10}},
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertLayout(t *testing.T) {
	repos, mock := setupMockDB(t)
	s := NewSettingsService(repos.Settings, repos.Tables, nil)

	mock.ExpectQuery(`SELECT id FROM tables`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(tableID))
	mock.ExpectQuery(`INSERT INTO layout_settings`).
		WillReturnRows(sqlmock.NewRows([]string{"background_url", "updated_at"}).AddRow(nil, fixedNow))

	l, err := s.UpsertLayout(context.Background(), tenantID, &models.LayoutSettingsRequest{
		CanvasWidth:  800,
		CanvasHeight: 600,
		Positions:    map[string]models.TablePosition{tableID: {X: 100, Y: 120, Rotation: 90}},
	})
	require.NoError(t, err)
	assert.Len(t, l.Positions, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadLogoNeedsBrand(t *testing.T) {
	repos, mock := setupMockDB(t)
	s := NewSettingsService(repos.Settings, repos.Tables, nil)

	mock.ExpectQuery(`FROM brand_settings`).WillReturnRows(sqlmock.NewRows(nil))

	_, err := s.UploadLogo(context.Background(), tenantID, &models.Upload{Data: []byte("\x89PNG\r\n\x1a\n")})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	require.NoError(t, mock.ExpectationsWereMet())
}
