package repository

import (
	"context"
	"database/sql"
	"fmt"

	"nightpass/internal/database"
	apperrors "nightpass/internal/errors"
	"nightpass/internal/models"
)

type TicketRepository struct {
	db *database.DB
}

func NewTicketRepository(db *database.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

const ticketColumns = `id, tenant_id, event_id, person_id, holder_name, holder_document, holder_email,
	code_id, payment_id, price, status, qr_token, used_at, used_by, created_at`

func scanTicket(s scanner, t *models.Ticket) error {
	return s.Scan(
		&t.ID,
		&t.TenantID,
		&t.EventID,
		&t.PersonID,
		&t.HolderName,
		&t.HolderDocument,
		&t.HolderEmail,
		&t.CodeID,
		&t.PaymentID,
		&t.Price,
		&t.Status,
		&t.QRToken,
		&t.UsedAt,
		&t.UsedBy,
		&t.CreatedAt,
	)
}

// CreateBatch inserts all tickets of one order in a single transaction.
func (r *TicketRepository) CreateBatch(ctx context.Context, tickets []models.Ticket) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertTickets(ctx, tx, tickets); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateForPayment marks a pending payment paid and inserts its tickets in
// the same transaction. It reports false and inserts nothing when the
// payment is no longer pending.
func (r *TicketRepository) CreateForPayment(ctx context.Context, paymentID string, tickets []models.Ticket) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE payments SET status = 'paid', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`, paymentID)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	if err := insertTickets(ctx, tx, tickets); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func insertTickets(ctx context.Context, tx *sql.Tx, tickets []models.Ticket) error {
	query := `
		INSERT INTO tickets (tenant_id, event_id, person_id, holder_name, holder_document, holder_email,
		                     code_id, payment_id, price, status, qr_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	for i := range tickets {
		t := &tickets[i]
		err := tx.QueryRowContext(ctx, query,
			t.TenantID,
			t.EventID,
			t.PersonID,
			t.HolderName,
			t.HolderDocument,
			t.HolderEmail,
			t.CodeID,
			t.PaymentID,
			t.Price,
			t.Status,
			t.QRToken,
		).Scan(&t.ID, &t.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert ticket %d: %w", i+1, err)
		}
	}
	return nil
}

func (r *TicketRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Ticket, error) {
	t := &models.Ticket{}
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1 AND tenant_id = $2 AND ` + database.NotDeleted("")

	err := scanTicket(r.db.QueryRowContext(ctx, query, id, tenantID), t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TicketRepository) List(ctx context.Context, tenantID string, f models.TicketFilter) ([]models.Ticket, int, error) {
	w := newWhere(database.NotDeleted(""))
	w.add("tenant_id = ?", tenantID)
	if f.EventID != "" {
		w.add("event_id = ?", f.EventID)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets `+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tickets: %w", err)
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets ` + w.sql() + ` ORDER BY created_at DESC`
	if f.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT %s OFFSET %s", w.next(f.PageSize), w.next(f.Offset()))
	}

	rows, err := r.db.QueryWithRetry(ctx, query, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []models.Ticket
	for rows.Next() {
		var t models.Ticket
		if err := scanTicket(rows, &t); err != nil {
			return nil, 0, err
		}
		list = append(list, t)
	}
	return list, total, rows.Err()
}

func (r *TicketRepository) ListByPayment(ctx context.Context, paymentID string) ([]models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE payment_id = $1 AND ` + database.NotDeleted("") + ` ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Ticket
	for rows.Next() {
		var t models.Ticket
		if err := scanTicket(rows, &t); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// CountActive counts the issued and used tickets of the event.
func (r *TicketRepository) CountActive(ctx context.Context, eventID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tickets
		WHERE event_id = $1 AND status IN ('issued', 'used') AND deleted_at IS NULL`, eventID).Scan(&n)
	return n, err
}

// Scan checks a ticket in by its QR token. A token that exists but is not
// in the issued state yields ErrTicketUsed.
func (r *TicketRepository) Scan(ctx context.Context, tenantID, qrToken, staffID string) (*models.Ticket, error) {
	t := &models.Ticket{}
	query := `
		UPDATE tickets
		SET status = 'used', used_at = NOW(), used_by = $3
		WHERE qr_token = $1 AND tenant_id = $2 AND status = 'issued' AND deleted_at IS NULL
		RETURNING ` + ticketColumns

	err := scanTicket(r.db.QueryRowContext(ctx, query, qrToken, tenantID, staffID), t)
	if err == nil {
		return t, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	var status string
	err = r.db.QueryRowContext(ctx, `
		SELECT status FROM tickets
		WHERE qr_token = $1 AND tenant_id = $2 AND deleted_at IS NULL`, qrToken, tenantID).Scan(&status)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("ticket")
	}
	if err != nil {
		return nil, err
	}
	return nil, apperrors.ErrTicketUsed
}

// Cancel voids an issued ticket.
func (r *TicketRepository) Cancel(ctx context.Context, tenantID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tickets SET status = 'cancelled'
		WHERE id = $1 AND tenant_id = $2 AND status = 'issued' AND deleted_at IS NULL`, id, tenantID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.ErrInvalidTransition
	}
	return nil
}
