package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "nightpass/internal/errors"
	"nightpass/internal/models"
)

func newCodeService(t *testing.T) (*CodeService, sqlmock.Sqlmock) {
	repos, mock := setupMockDB(t)
	s := NewCodeService(repos.Codes, repos.Events, repos.Promoters, nil, Options{})
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

func TestNormalizePrefix(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"vip", "VIP"},
		{" noche-2025 ", "NOCHE202"},
		{"ñandú!", "AND"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePrefix(tt.in), tt.in)
	}
}

func TestClampQuantity(t *testing.T) {
	assert.Equal(t, 1, ClampQuantity(0))
	assert.Equal(t, 1, ClampQuantity(-5))
	assert.Equal(t, 42, ClampQuantity(42))
	assert.Equal(t, 500, ClampQuantity(500))
	assert.Equal(t, 500, ClampQuantity(501))
	assert.Equal(t, MaxCodesPerBatch, ClampQuantity(100000))
}

func TestGenerateValidation(t *testing.T) {
	s, mock := newCodeService(t)
	ctx := context.Background()

	_, err := s.Generate(ctx, tenantID, actorID, &models.GenerateCodesRequest{EventID: eventID, Type: models.CodeTypeGeneral})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = s.Generate(ctx, tenantID, actorID, &models.GenerateCodesRequest{EventID: eventID, Type: models.CodeTypePromoter})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = s.Generate(ctx, tenantID, actorID, &models.GenerateCodesRequest{EventID: "not-a-uuid", Type: models.CodeTypeCourtesy})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	past := fixedNow.Add(-time.Hour)
	_, err = s.Generate(ctx, tenantID, actorID, &models.GenerateCodesRequest{EventID: eventID, Type: models.CodeTypeCourtesy, ExpiresAt: &past})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateClampsQuantity(t *testing.T) {
	s, mock := newCodeService(t)

	mock.ExpectQuery(`FROM events`).
		WithArgs(eventID, tenantID).
		WillReturnRows(eventRow("40.00", 0))
	mock.ExpectQuery(`SELECT batch_id, code_id, code FROM generate_codes_batch`).
		WithArgs(tenantID, eventID, models.CodeTypeCourtesy, MaxCodesPerBatch, "VIP", nil, 1, nil, actorID).
		WillReturnRows(sqlmock.NewRows([]string{"batch_id", "code_id", "code"}).
			AddRow("batch-1", "code-1", "VIPA7K2M").
			AddRow("batch-1", "code-2", "VIPQ9X4T"))

	result, err := s.Generate(context.Background(), tenantID, actorID, &models.GenerateCodesRequest{
		EventID:  eventID,
		Type:     models.CodeTypeCourtesy,
		Quantity: 9999,
		Prefix:   "vip",
	})
	require.NoError(t, err)
	assert.Equal(t, "batch-1", result.BatchID)
	assert.Len(t, result.Codes, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateUnknownEvent(t *testing.T) {
	s, mock := newCodeService(t)

	mock.ExpectQuery(`FROM events`).
		WithArgs(eventID, tenantID).
		WillReturnRows(sqlmock.NewRows(eventCols))

	_, err := s.Generate(context.Background(), tenantID, actorID, &models.GenerateCodesRequest{
		EventID: eventID,
		Type:    models.CodeTypeTable,
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateCode(t *testing.T) {
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		s, mock := newCodeService(t)
		mock.ExpectQuery(`FROM codes`).
			WithArgs(tenantID, eventID, "VIPNOCHE").
			WillReturnRows(codeRow(models.CodeTypeDiscount, 10, 3))

		v, err := s.Validate(ctx, tenantID, &models.ValidateCodeRequest{EventID: eventID, Code: " vipnoche "})
		require.NoError(t, err)
		assert.True(t, v.Valid)
		assert.Equal(t, models.CodeTypeDiscount, v.Type)
		assert.Equal(t, 7, v.Remaining)
	})

	t.Run("exhausted", func(t *testing.T) {
		s, mock := newCodeService(t)
		mock.ExpectQuery(`FROM codes`).
			WillReturnRows(codeRow(models.CodeTypeDiscount, 5, 5))

		v, err := s.Validate(ctx, tenantID, &models.ValidateCodeRequest{EventID: eventID, Code: "VIPNOCHE"})
		require.NoError(t, err)
		assert.False(t, v.Valid)
	})

	t.Run("expired", func(t *testing.T) {
		s, mock := newCodeService(t)
		expired := fixedNow.Add(-time.Minute)
		mock.ExpectQuery(`FROM codes`).
			WillReturnRows(sqlmock.NewRows(codeCols).AddRow(
				codeID, tenantID, eventID, nil, "VIPNOCHE", models.CodeTypeCourtesy, nil, 1, 0, true, expired, fixedNow))

		v, err := s.Validate(ctx, tenantID, &models.ValidateCodeRequest{EventID: eventID, Code: "VIPNOCHE"})
		require.NoError(t, err)
		assert.False(t, v.Valid)
	})

	t.Run("unknown", func(t *testing.T) {
		s, mock := newCodeService(t)
		mock.ExpectQuery(`FROM codes`).WillReturnRows(sqlmock.NewRows(codeCols))

		v, err := s.Validate(ctx, tenantID, &models.ValidateCodeRequest{EventID: eventID, Code: "NOPE"})
		require.NoError(t, err)
		assert.False(t, v.Valid)
	})
}

func TestSetGeneralCodeRequiresUses(t *testing.T) {
	s, _ := newCodeService(t)

	_, err := s.SetGeneralCode(context.Background(), tenantID, eventID, &models.GeneralCodeRequest{Code: "NOCHE"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
