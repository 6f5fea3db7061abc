package service

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "nightpass/internal/errors"
	"nightpass/internal/models"
)

const promoterID = "3c4d5e6f-7a8b-4c9d-8e0f-1a2b3c4d5e6f"

var (
	promoterCols = []string{"id", "tenant_id", "name", "document", "email", "phone", "commission_rate",
		"is_active", "created_at", "updated_at"}
	promoterStatsCols = []string{"id", "name", "issued", "redeemed", "reservations", "guests"}
)

func TestValidatePromoter(t *testing.T) {
	email := "lucho@example.pe"
	badEmail := "lucho"

	tests := []struct {
		name    string
		p       models.Promoter
		wantErr bool
	}{
		{"valid", models.Promoter{Name: "Lucho", Email: &email, CommissionRate: decimal.NewFromInt(10)}, false},
		{"zero commission", models.Promoter{Name: "Lucho"}, false},
		{"full commission", models.Promoter{Name: "Lucho", CommissionRate: decimal.NewFromInt(100)}, false},
		{"no name", models.Promoter{CommissionRate: decimal.NewFromInt(10)}, true},
		{"bad email", models.Promoter{Name: "Lucho", Email: &badEmail}, true},
		{"negative commission", models.Promoter{Name: "Lucho", CommissionRate: decimal.RequireFromString("-0.5")}, true},
		{"commission over 100", models.Promoter{Name: "Lucho", CommissionRate: decimal.RequireFromString("100.01")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePromoter(&tt.p)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreatePromoter(t *testing.T) {
	repos, mock := setupMockDB(t)
	s := NewPromoterService(repos.Promoters, repos.Events)

	mock.ExpectQuery(`INSERT INTO promoters`).
		WithArgs(tenantID, "Lucho", nil, "lucho@example.pe", nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_active", "created_at", "updated_at"}).
			AddRow(promoterID, true, fixedNow, fixedNow))

	email := " lucho@example.pe "
	blank := "  "
	p, err := s.Create(context.Background(), tenantID, &models.PromoterRequest{
		Name:           " Lucho ",
		Email:          &email,
		Phone:          &blank,
		CommissionRate: decimal.RequireFromString("12.5"),
	})
	require.NoError(t, err)
	assert.Equal(t, promoterID, p.ID)
	assert.Nil(t, p.Phone)
	assert.True(t, p.CommissionRate.Equal(decimal.RequireFromString("12.5")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePromoterCommission(t *testing.T) {
	repos, mock := setupMockDB(t)
	s := NewPromoterService(repos.Promoters, repos.Events)
	ctx := context.Background()

	row := func() *sqlmock.Rows {
		return sqlmock.NewRows(promoterCols).
			AddRow(promoterID, tenantID, "Lucho", nil, nil, nil, "10.00", true, fixedNow, fixedNow)
	}

	mock.ExpectQuery(`FROM promoters WHERE id = \$1`).WithArgs(promoterID, tenantID).WillReturnRows(row())
	over := decimal.NewFromInt(150)
	_, err := s.Update(ctx, tenantID, promoterID, &models.PromoterUpdateRequest{CommissionRate: &over})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	mock.ExpectQuery(`FROM promoters WHERE id = \$1`).WillReturnRows(row())
	mock.ExpectQuery(`UPDATE promoters`).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(fixedNow))
	rate := decimal.NewFromInt(15)
	p, err := s.Update(ctx, tenantID, promoterID, &models.PromoterUpdateRequest{CommissionRate: &rate})
	require.NoError(t, err)
	assert.True(t, p.CommissionRate.Equal(rate))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoterStats(t *testing.T) {
	repos, mock := setupMockDB(t)
	s := NewPromoterService(repos.Promoters, repos.Events)

	mock.ExpectQuery(`FROM events`).WithArgs(eventID, tenantID).WillReturnRows(eventRow("40.00", 200))
	mock.ExpectQuery(`FROM promoters p`).
		WithArgs(tenantID, eventID).
		WillReturnRows(sqlmock.NewRows(promoterStatsCols).
			AddRow(promoterID, "Lucho", 12, 9, 2, 11).
			AddRow("7b8c9d0e-1f2a-4b3c-8d4e-5f6a7b8c9d0e", "Mari", 0, 0, 0, 0))

	stats, err := s.Stats(context.Background(), tenantID, eventID)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, models.PromoterStats{
		PromoterID:    promoterID,
		Name:          "Lucho",
		CodesIssued:   12,
		CodesRedeemed: 9,
		Reservations:  2,
		Guests:        11,
	}, stats[0])
	assert.Zero(t, stats[1].CodesIssued)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoterStatsEmpty(t *testing.T) {
	repos, mock := setupMockDB(t)
	s := NewPromoterService(repos.Promoters, repos.Events)

	mock.ExpectQuery(`FROM events`).WillReturnRows(eventRow("40.00", 200))
	mock.ExpectQuery(`FROM promoters p`).WillReturnRows(sqlmock.NewRows(promoterStatsCols))

	stats, err := s.Stats(context.Background(), tenantID, eventID)
	require.NoError(t, err)
	assert.NotNil(t, stats)
	assert.Empty(t, stats)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoterStatsUnknownEvent(t *testing.T) {
	repos, mock := setupMockDB(t)
	s := NewPromoterService(repos.Promoters, repos.Events)

	mock.ExpectQuery(`FROM events`).WillReturnRows(sqlmock.NewRows(eventCols))

	_, err := s.Stats(context.Background(), tenantID, eventID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = s.Stats(context.Background(), tenantID, "latest")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	require.NoError(t, mock.ExpectationsWereMet())
}
