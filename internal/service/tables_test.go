package service

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "nightpass/internal/errors"
	"nightpass/internal/models"
)

func TestValidateTable(t *testing.T) {
	valid := func() *models.Table {
		return &models.Table{Name: "VIP 1", Capacity: 6, Price: decimal.NewFromInt(300)}
	}
	require.NoError(t, validateTable(valid()))

	tests := []struct {
		name   string
		mutate func(*models.Table)
	}{
		{"no name", func(tb *models.Table) { tb.Name = "" }},
		{"zero capacity", func(tb *models.Table) { tb.Capacity = 0 }},
		{"capacity over limit", func(tb *models.Table) { tb.Capacity = maxTableCapacity + 1 }},
		{"negative price", func(tb *models.Table) { tb.Price = decimal.NewFromInt(-1) }},
		{"negative minimum", func(tb *models.Table) { tb.MinConsumption = decimal.NewFromInt(-5) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := valid()
			tt.mutate(tb)
			assert.ErrorIs(t, validateTable(tb), apperrors.ErrInvalidInput)
		})
	}
}

func TestCreateTable(t *testing.T) {
	repos, mock := setupMockDB(t)
	s := NewTableService(repos.Tables, repos.Products)

	mock.ExpectQuery(`INSERT INTO tables`).
		WithArgs(tenantID, "VIP 1", "Terraza", 6, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_active", "created_at", "updated_at"}).
			AddRow(tableID, true, fixedNow, fixedNow))

	zone := " Terraza "
	tb, err := s.Create(context.Background(), tenantID, &models.TableRequest{
		Name:     " VIP 1 ",
		Zone:     &zone,
		Capacity: 6,
		Price:    decimal.NewFromInt(300),
	})
	require.NoError(t, err)
	assert.Equal(t, tableID, tb.ID)
	assert.Equal(t, "VIP 1", tb.Name)
	assert.Equal(t, "Terraza", *tb.Zone)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTable(t *testing.T) {
	repos, mock := setupMockDB(t)
	s := NewTableService(repos.Tables, repos.Products)

	mock.ExpectQuery(`FROM tables`).WithArgs(tableID, tenantID).WillReturnRows(tableRow(6))
	mock.ExpectQuery(`UPDATE tables`).
		WithArgs(tableID, tenantID, "VIP 1", nil, 10, sqlmock.AnyArg(), sqlmock.AnyArg(), false).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(fixedNow))

	capacity := 10
	inactive := models.FlexibleBool(false)
	tb, err := s.Update(context.Background(), tenantID, tableID, &models.TableUpdateRequest{
		Capacity: &capacity,
		IsActive: &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, 10, tb.Capacity)
	assert.False(t, tb.IsActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTableValidation(t *testing.T) {
	repos, mock := setupMockDB(t)
	s := NewTableService(repos.Tables, repos.Products)

	mock.ExpectQuery(`FROM tables`).WillReturnRows(tableRow(6))

	capacity := 0
	_, err := s.Update(context.Background(), tenantID, tableID, &models.TableUpdateRequest{Capacity: &capacity})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMissingTable(t *testing.T) {
	repos, mock := setupMockDB(t)
	s := NewTableService(repos.Tables, repos.Products)

	mock.ExpectQuery(`FROM tables`).WillReturnRows(sqlmock.NewRows(tableCols))

	name := "VIP 2"
	_, err := s.Update(context.Background(), tenantID, tableID, &models.TableUpdateRequest{Name: &name})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveTableWithProducts(t *testing.T) {
	repos, mock := setupMockDB(t)
	s := NewTableService(repos.Tables, repos.Products)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE tables\s+SET deleted_at = NOW\(\)`).
		WithArgs(tableID, tenantID, actorID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE table_products\s+SET deleted_at = NOW\(\)[\s\S]+WHERE table_id = \$1`).
		WithArgs(tableID, tenantID, actorID).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	require.NoError(t, s.Archive(context.Background(), tenantID, tableID, actorID))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveTableRollsBack(t *testing.T) {
	repos, mock := setupMockDB(t)
	s := NewTableService(repos.Tables, repos.Products)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE tables`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE table_products`).WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()

	err := s.Archive(context.Background(), tenantID, tableID, actorID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to archive table products")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveMissingTable(t *testing.T) {
	repos, mock := setupMockDB(t)
	s := NewTableService(repos.Tables, repos.Products)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE tables`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.Archive(context.Background(), tenantID, tableID, actorID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	err = s.Archive(context.Background(), tenantID, "not-a-uuid", actorID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProductDefaultsQuantity(t *testing.T) {
	repos, mock := setupMockDB(t)
	s := NewTableService(repos.Tables, repos.Products)

	mock.ExpectQuery(`FROM tables`).WillReturnRows(tableRow(6))
	mock.ExpectQuery(`INSERT INTO table_products`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_active", "created_at", "updated_at"}).
			AddRow("prod-1", true, fixedNow, fixedNow))

	p, err := s.CreateProduct(context.Background(), tenantID, tableID, &models.TableProductRequest{
		Name:  "Botella de pisco",
		Price: decimal.NewFromInt(180),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Quantity)
	require.NoError(t, mock.ExpectationsWereMet())
}
