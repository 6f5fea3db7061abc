package repository

import (
	"context"
	"database/sql"
	"fmt"

	"nightpass/internal/database"
	apperrors "nightpass/internal/errors"
	"nightpass/internal/models"
)

type EventRepository struct {
	db *database.DB
}

func NewEventRepository(db *database.DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, tenant_id, name, description, venue, starts_at, ends_at, flyer_url,
	ticket_price, ticket_capacity, status, is_active, created_at, updated_at`

func scanEvent(s scanner, e *models.Event) error {
	return s.Scan(
		&e.ID,
		&e.TenantID,
		&e.Name,
		&e.Description,
		&e.Venue,
		&e.StartsAt,
		&e.EndsAt,
		&e.FlyerURL,
		&e.TicketPrice,
		&e.TicketCapacity,
		&e.Status,
		&e.IsActive,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
}

func (r *EventRepository) Create(ctx context.Context, e *models.Event) error {
	query := `
		INSERT INTO events (tenant_id, name, description, venue, starts_at, ends_at, ticket_price, ticket_capacity, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, is_active, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		e.TenantID,
		e.Name,
		e.Description,
		e.Venue,
		e.StartsAt,
		e.EndsAt,
		e.TicketPrice,
		e.TicketCapacity,
		e.Status,
	).Scan(&e.ID, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns a live event of the tenant, or nil.
func (r *EventRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Event, error) {
	e := &models.Event{}
	query := `SELECT ` + eventColumns + `
		FROM events
		WHERE id = $1 AND tenant_id = $2 AND ` + database.NotDeleted("")

	err := scanEvent(r.db.QueryRowContext(ctx, query, id, tenantID), e)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *EventRepository) List(ctx context.Context, tenantID string, f models.EventFilter) ([]models.Event, int, error) {
	w := newWhere(database.NotDeleted(""))
	w.add("tenant_id = ?", tenantID)
	if f.Query != "" {
		w.add(`name ILIKE ?`, likePattern(f.Query))
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.PublicOnly {
		w.add("status = ?", models.EventStatusPublished)
		w.conds = append(w.conds, "is_active")
	}
	if f.OpenAfter != nil {
		w.add("COALESCE(ends_at, starts_at) >= ?", *f.OpenAfter)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events `+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	query := `SELECT ` + eventColumns + ` FROM events ` + w.sql() + ` ORDER BY starts_at ASC, id ASC`
	if f.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT %s OFFSET %s", w.next(f.PageSize), w.next(f.Offset()))
	}

	rows, err := r.db.QueryWithRetry(ctx, query, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var e models.Event
		if err := scanEvent(rows, &e); err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}

	return events, total, rows.Err()
}

// Update persists the mutable fields of a loaded event.
func (r *EventRepository) Update(ctx context.Context, e *models.Event) error {
	query := `
		UPDATE events
		SET name = $3, description = $4, venue = $5, starts_at = $6, ends_at = $7,
		    ticket_price = $8, ticket_capacity = $9, status = $10, is_active = $11, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
		RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		e.ID,
		e.TenantID,
		e.Name,
		e.Description,
		e.Venue,
		e.StartsAt,
		e.EndsAt,
		e.TicketPrice,
		e.TicketCapacity,
		e.Status,
		e.IsActive,
	).Scan(&e.UpdatedAt)
	if err == sql.ErrNoRows {
		return apperrors.NotFound("event")
	}
	return err
}

func (r *EventRepository) SetFlyer(ctx context.Context, tenantID, id, url string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE events SET flyer_url = $3, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, id, tenantID, url)
	return err
}

func (r *EventRepository) Archive(ctx context.Context, tenantID, id, actorID string) error {
	return r.db.Archive(ctx, "events", tenantID, id, actorID)
}

// ListForIndex returns every live event of all tenants for search reindexing.
func (r *EventRepository) ListForIndex(ctx context.Context) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE ` + database.NotDeleted("") + ` ORDER BY created_at`

	rows, err := r.db.QueryWithRetry(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var e models.Event
		if err := scanEvent(rows, &e); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
