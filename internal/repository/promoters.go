package repository

import (
	"context"
	"database/sql"
	"fmt"

	"nightpass/internal/database"
	apperrors "nightpass/internal/errors"
	"nightpass/internal/models"
)

type PromoterRepository struct {
	db *database.DB
}

func NewPromoterRepository(db *database.DB) *PromoterRepository {
	return &PromoterRepository{db: db}
}

const promoterColumns = `id, tenant_id, name, document, email, phone, commission_rate, is_active, created_at, updated_at`

func scanPromoter(s scanner, p *models.Promoter) error {
	return s.Scan(&p.ID, &p.TenantID, &p.Name, &p.Document, &p.Email, &p.Phone,
		&p.CommissionRate, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
}

func (r *PromoterRepository) Create(ctx context.Context, p *models.Promoter) error {
	query := `
		INSERT INTO promoters (tenant_id, name, document, email, phone, commission_rate)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, is_active, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query, p.TenantID, p.Name, p.Document, p.Email, p.Phone, p.CommissionRate).
		Scan(&p.ID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
}

func (r *PromoterRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Promoter, error) {
	p := &models.Promoter{}
	query := `SELECT ` + promoterColumns + ` FROM promoters WHERE id = $1 AND tenant_id = $2 AND ` + database.NotDeleted("")

	err := scanPromoter(r.db.QueryRowContext(ctx, query, id, tenantID), p)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PromoterRepository) List(ctx context.Context, tenantID, search string, page models.Pagination) ([]models.Promoter, int, error) {
	w := newWhere(database.NotDeleted(""))
	w.add("tenant_id = ?", tenantID)
	if search != "" {
		w.add("name ILIKE ?", likePattern(search))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM promoters `+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count promoters: %w", err)
	}

	query := `SELECT ` + promoterColumns + ` FROM promoters ` + w.sql() + ` ORDER BY name`
	if page.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT %s OFFSET %s", w.next(page.PageSize), w.next(page.Offset()))
	}

	rows, err := r.db.QueryWithRetry(ctx, query, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []models.Promoter
	for rows.Next() {
		var p models.Promoter
		if err := scanPromoter(rows, &p); err != nil {
			return nil, 0, err
		}
		list = append(list, p)
	}
	return list, total, rows.Err()
}

func (r *PromoterRepository) Update(ctx context.Context, p *models.Promoter) error {
	query := `
		UPDATE promoters
		SET name = $3, document = $4, email = $5, phone = $6, commission_rate = $7, is_active = $8, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
		RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		p.ID, p.TenantID, p.Name, p.Document, p.Email, p.Phone, p.CommissionRate, p.IsActive,
	).Scan(&p.UpdatedAt)
	if err == sql.ErrNoRows {
		return apperrors.NotFound("promoter")
	}
	return err
}

func (r *PromoterRepository) Archive(ctx context.Context, tenantID, id, actorID string) error {
	return r.db.Archive(ctx, "promoters", tenantID, id, actorID)
}

// Stats aggregates code and reservation counters per promoter for one event.
func (r *PromoterRepository) Stats(ctx context.Context, tenantID, eventID string) ([]models.PromoterStats, error) {
	query := `
		SELECT p.id, p.name,
		       COALESCE(c.issued, 0), COALESCE(c.redeemed, 0),
		       COALESCE(res.reservations, 0), COALESCE(res.guests, 0)
		FROM promoters p
		LEFT JOIN (
			SELECT promoter_id, COUNT(*) AS issued, COALESCE(SUM(uses), 0) AS redeemed
			FROM codes
			WHERE event_id = $2 AND deleted_at IS NULL
			GROUP BY promoter_id
		) c ON c.promoter_id = p.id
		LEFT JOIN (
			SELECT promoter_id, COUNT(*) AS reservations, COALESCE(SUM(guests), 0) AS guests
			FROM table_reservations
			WHERE event_id = $2 AND deleted_at IS NULL AND status IN ('pending', 'confirmed', 'completed')
			GROUP BY promoter_id
		) res ON res.promoter_id = p.id
		WHERE p.tenant_id = $1 AND ` + database.NotDeleted("p") + `
		ORDER BY COALESCE(c.redeemed, 0) DESC, p.name`

	rows, err := r.db.QueryWithRetry(ctx, query, tenantID, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.PromoterStats
	for rows.Next() {
		var s models.PromoterStats
		if err := rows.Scan(&s.PromoterID, &s.Name, &s.CodesIssued, &s.CodesRedeemed, &s.Reservations, &s.Guests); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
