package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"nightpass/internal/database"
	"nightpass/internal/models"
)

type ReservationRepository struct {
	db *database.DB
}

func NewReservationRepository(db *database.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

const reservationColumns = `r.id, r.tenant_id, r.event_id, r.table_id, r.person_id, r.customer_name,
	r.customer_document, r.customer_email, r.customer_phone, r.guests, r.status, r.promoter_id,
	r.code_id, r.voucher_url, r.notes, r.created_by, r.created_at, r.updated_at,
	COALESCE(t.name, ''), COALESCE(e.name, '')`

const reservationFrom = `
	FROM table_reservations r
	LEFT JOIN tables t ON t.id = r.table_id
	LEFT JOIN events e ON e.id = r.event_id`

func scanReservation(s scanner, res *models.TableReservation) error {
	return s.Scan(
		&res.ID,
		&res.TenantID,
		&res.EventID,
		&res.TableID,
		&res.PersonID,
		&res.CustomerName,
		&res.CustomerDocument,
		&res.CustomerEmail,
		&res.CustomerPhone,
		&res.Guests,
		&res.Status,
		&res.PromoterID,
		&res.CodeID,
		&res.VoucherURL,
		&res.Notes,
		&res.CreatedBy,
		&res.CreatedAt,
		&res.UpdatedAt,
		&res.TableName,
		&res.EventName,
	)
}

// Create inserts a pending reservation. A concurrent active reservation of the
// same table fails on table_reservations_active_uniq.
func (r *ReservationRepository) Create(ctx context.Context, res *models.TableReservation) error {
	query := `
		INSERT INTO table_reservations (
			tenant_id, event_id, table_id, person_id, customer_name, customer_document,
			customer_email, customer_phone, guests, status, promoter_id, code_id, notes, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		res.TenantID,
		res.EventID,
		res.TableID,
		res.PersonID,
		res.CustomerName,
		res.CustomerDocument,
		res.CustomerEmail,
		res.CustomerPhone,
		res.Guests,
		res.Status,
		res.PromoterID,
		res.CodeID,
		res.Notes,
		res.CreatedBy,
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
}

func (r *ReservationRepository) GetByID(ctx context.Context, tenantID, id string) (*models.TableReservation, error) {
	res := &models.TableReservation{}
	query := `SELECT ` + reservationColumns + reservationFrom + `
		WHERE r.id = $1 AND r.tenant_id = $2 AND ` + database.NotDeleted("r")

	err := scanReservation(r.db.QueryRowContext(ctx, query, id, tenantID), res)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *ReservationRepository) List(ctx context.Context, tenantID string, f models.ReservationFilter) ([]models.TableReservation, int, error) {
	w := newWhere(database.NotDeleted("r"))
	w.add("r.tenant_id = ?", tenantID)
	if f.EventID != "" {
		w.add("r.event_id = ?", f.EventID)
	}
	if f.TableID != "" {
		w.add("r.table_id = ?", f.TableID)
	}
	if f.Status != "" {
		w.add("r.status = ?", f.Status)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM table_reservations r ` + w.sql()
	if err := r.db.QueryRowContext(ctx, countQuery, w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count reservations: %w", err)
	}

	query := `SELECT ` + reservationColumns + reservationFrom + ` ` + w.sql() + ` ORDER BY r.created_at DESC`
	if f.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT %s OFFSET %s", w.next(f.PageSize), w.next(f.Offset()))
	}

	rows, err := r.db.QueryWithRetry(ctx, query, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []models.TableReservation
	for rows.Next() {
		var res models.TableReservation
		if err := scanReservation(rows, &res); err != nil {
			return nil, 0, err
		}
		list = append(list, res)
	}
	return list, total, rows.Err()
}

// ActiveForTable returns the pending or confirmed reservation holding the
// table for the event, or nil when the table is free.
func (r *ReservationRepository) ActiveForTable(ctx context.Context, eventID, tableID string) (*models.TableReservation, error) {
	res := &models.TableReservation{}
	query := `SELECT ` + reservationColumns + reservationFrom + `
		WHERE r.event_id = $1 AND r.table_id = $2
		  AND r.status IN ('pending', 'confirmed') AND ` + database.NotDeleted("r") + `
		LIMIT 1`

	err := scanReservation(r.db.QueryRowContext(ctx, query, eventID, tableID), res)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Availability lists the live, active tables of the tenant with the
// reservation currently holding each one for the event.
func (r *ReservationRepository) Availability(ctx context.Context, tenantID, eventID string) ([]models.TableAvailability, error) {
	query := `
		SELECT t.id, t.tenant_id, t.name, t.zone, t.capacity, t.price, t.min_consumption,
		       t.is_active, t.created_at, t.updated_at, r.id, r.status
		FROM tables t
		LEFT JOIN table_reservations r
		       ON r.table_id = t.id AND r.event_id = $2
		      AND r.status IN ('pending', 'confirmed') AND r.deleted_at IS NULL
		WHERE t.tenant_id = $1 AND t.is_active AND ` + database.NotDeleted("t") + `
		ORDER BY t.name`

	rows, err := r.db.QueryWithRetry(ctx, query, tenantID, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.TableAvailability
	for rows.Next() {
		var a models.TableAvailability
		err := rows.Scan(
			&a.ID, &a.TenantID, &a.Name, &a.Zone, &a.Capacity, &a.Price, &a.MinConsumption,
			&a.IsActive, &a.CreatedAt, &a.UpdatedAt, &a.ReservationID, &a.ReservationStatus,
		)
		if err != nil {
			return nil, err
		}
		a.Available = a.ReservationID == nil
		list = append(list, a)
	}
	return list, rows.Err()
}

// UpdateStatus moves a reservation from one status to another. It reports
// false when the row is no longer in the from status.
func (r *ReservationRepository) UpdateStatus(ctx context.Context, tenantID, id, from, to string) (bool, error) {
	query := `
		UPDATE table_reservations
		SET status = $4, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND status = $3 AND deleted_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, id, tenantID, from, to)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ExpirePending cancels pending reservations created before cutoff and
// returns the cancelled rows.
func (r *ReservationRepository) ExpirePending(ctx context.Context, cutoff time.Time, limit int) ([]models.TableReservation, error) {
	query := `
		UPDATE table_reservations
		SET status = 'cancelled', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM table_reservations
			WHERE status = 'pending' AND created_at < $1 AND deleted_at IS NULL
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, tenant_id, event_id, table_id, customer_name, customer_email`

	rows, err := r.db.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.TableReservation
	for rows.Next() {
		var res models.TableReservation
		if err := rows.Scan(&res.ID, &res.TenantID, &res.EventID, &res.TableID, &res.CustomerName, &res.CustomerEmail); err != nil {
			return nil, err
		}
		res.Status = models.ReservationCancelled
		list = append(list, res)
	}
	return list, rows.Err()
}

func (r *ReservationRepository) SetVoucher(ctx context.Context, tenantID, id, url string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE table_reservations SET voucher_url = $3, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, id, tenantID, url)
	return err
}

func (r *ReservationRepository) Archive(ctx context.Context, tenantID, id, actorID string) error {
	return r.db.Archive(ctx, "table_reservations", tenantID, id, actorID)
}
