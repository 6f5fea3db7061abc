package repository

import (
	"context"
	"database/sql"
	"time"

	"nightpass/internal/database"
	"nightpass/internal/models"
)

type PaymentRepository struct {
	db *database.DB
}

func NewPaymentRepository(db *database.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, tenant_id, event_id, order_id, provider_payment_id, purpose, quantity, amount,
	currency, status, buyer_name, buyer_document, buyer_email, code_id, payment_url, created_at, updated_at`

func scanPayment(s scanner, p *models.Payment) error {
	return s.Scan(
		&p.ID,
		&p.TenantID,
		&p.EventID,
		&p.OrderID,
		&p.ProviderPaymentID,
		&p.Purpose,
		&p.Quantity,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.BuyerName,
		&p.BuyerDocument,
		&p.BuyerEmail,
		&p.CodeID,
		&p.PaymentURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}

func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO payments (tenant_id, event_id, order_id, purpose, quantity, amount, currency, status,
		                      buyer_name, buyer_document, buyer_email, code_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		p.TenantID,
		p.EventID,
		p.OrderID,
		p.Purpose,
		p.Quantity,
		p.Amount,
		p.Currency,
		p.Status,
		p.BuyerName,
		p.BuyerDocument,
		p.BuyerEmail,
		p.CodeID,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// GetByOrderID looks a payment up by the order id shared with the gateway.
func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	p := &models.Payment{}
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1`

	err := scanPayment(r.db.QueryRowContext(ctx, query, orderID), p)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PaymentRepository) SetProvider(ctx context.Context, id, providerPaymentID, paymentURL string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payments SET provider_payment_id = $2, payment_url = $3, updated_at = NOW()
		WHERE id = $1`, id, providerPaymentID, paymentURL)
	return err
}

// TransitionStatus moves the payment from one status to another and reports
// whether this call performed the change. Webhook retries see false.
func (r *PaymentRepository) TransitionStatus(ctx context.Context, id, from, to string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payments SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListExpiredPending returns pending payments created before cutoff.
func (r *PaymentRepository) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := scanPayment(rows, &p); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}
