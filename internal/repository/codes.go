package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"nightpass/internal/database"
	apperrors "nightpass/internal/errors"
	"nightpass/internal/models"
)

type CodeRepository struct {
	db *database.DB
}

func NewCodeRepository(db *database.DB) *CodeRepository {
	return &CodeRepository{db: db}
}

const codeColumns = `id, tenant_id, event_id, batch_id, code, type, promoter_id, max_uses, uses, is_active, expires_at, created_at`

func scanCode(s scanner, c *models.Code) error {
	return s.Scan(
		&c.ID,
		&c.TenantID,
		&c.EventID,
		&c.BatchID,
		&c.Code,
		&c.Type,
		&c.PromoterID,
		&c.MaxUses,
		&c.Uses,
		&c.IsActive,
		&c.ExpiresAt,
		&c.CreatedAt,
	)
}

// BatchParams are the arguments of generate_codes_batch.
type BatchParams struct {
	TenantID   string
	EventID    string
	Type       string
	Quantity   int
	Prefix     string
	PromoterID *string
	MaxUses    int
	ExpiresAt  *time.Time
	CreatedBy  string
}

// GenerateBatch calls the generate_codes_batch procedure, which creates the
// batch row and its unique codes in one statement.
func (r *CodeRepository) GenerateBatch(ctx context.Context, p BatchParams) (*models.CodeBatchResult, error) {
	query := `SELECT batch_id, code_id, code FROM generate_codes_batch($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	var prefix any
	if p.Prefix != "" {
		prefix = p.Prefix
	}
	var createdBy any
	if p.CreatedBy != "" {
		createdBy = p.CreatedBy
	}

	rows, err := r.db.QueryContext(ctx, query,
		p.TenantID,
		p.EventID,
		p.Type,
		p.Quantity,
		prefix,
		p.PromoterID,
		p.MaxUses,
		p.ExpiresAt,
		createdBy,
	)
	if err != nil {
		return nil, fmt.Errorf("generate_codes_batch: %w", err)
	}
	defer rows.Close()

	result := &models.CodeBatchResult{EventID: p.EventID, Type: p.Type}
	for rows.Next() {
		var gc models.GeneratedCode
		if err := rows.Scan(&result.BatchID, &gc.ID, &gc.Code); err != nil {
			return nil, err
		}
		result.Codes = append(result.Codes, gc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("generate_codes_batch: %w", err)
	}

	result.Quantity = len(result.Codes)
	return result, nil
}

// SetGeneralCode calls set_event_general_code, which deactivates the previous
// general code of the event and returns the new code id.
func (r *CodeRepository) SetGeneralCode(ctx context.Context, tenantID, eventID, code string, maxUses int) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`SELECT set_event_general_code($1, $2, $3, $4)`,
		tenantID, eventID, code, maxUses,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("set_event_general_code: %w", err)
	}
	return id, nil
}

// GetByCode finds a live code of the event by its text, or nil.
func (r *CodeRepository) GetByCode(ctx context.Context, tenantID, eventID, code string) (*models.Code, error) {
	c := &models.Code{}
	query := `SELECT ` + codeColumns + `
		FROM codes
		WHERE tenant_id = $1 AND event_id = $2 AND code = $3 AND ` + database.NotDeleted("")

	err := scanCode(r.db.QueryRowContext(ctx, query, tenantID, eventID, code), c)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CodeRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Code, error) {
	c := &models.Code{}
	query := `SELECT ` + codeColumns + ` FROM codes WHERE id = $1 AND tenant_id = $2 AND ` + database.NotDeleted("")

	err := scanCode(r.db.QueryRowContext(ctx, query, id, tenantID), c)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Redeem consumes one use of the code. The increment and the bound check are
// one statement, so concurrent redemptions never push uses past max_uses.
func (r *CodeRepository) Redeem(ctx context.Context, tenantID, id string) (*models.Code, error) {
	c := &models.Code{}
	query := `
		UPDATE codes
		SET uses = uses + 1
		WHERE id = $1 AND tenant_id = $2 AND uses < max_uses AND is_active
		  AND deleted_at IS NULL AND (expires_at IS NULL OR expires_at > NOW())
		RETURNING ` + codeColumns

	err := scanCode(r.db.QueryRowContext(ctx, query, id, tenantID), c)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrCodeExhausted
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CodeRepository) List(ctx context.Context, tenantID string, f models.CodeFilter) ([]models.Code, int, error) {
	w := newWhere(database.NotDeleted(""))
	w.add("tenant_id = ?", tenantID)
	if f.EventID != "" {
		w.add("event_id = ?", f.EventID)
	}
	if f.BatchID != "" {
		w.add("batch_id = ?", f.BatchID)
	}
	if f.Type != "" {
		w.add("type = ?", f.Type)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM codes `+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count codes: %w", err)
	}

	query := `SELECT ` + codeColumns + ` FROM codes ` + w.sql() + ` ORDER BY created_at DESC, code`
	if f.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT %s OFFSET %s", w.next(f.PageSize), w.next(f.Offset()))
	}

	rows, err := r.db.QueryWithRetry(ctx, query, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var codes []models.Code
	for rows.Next() {
		var c models.Code
		if err := scanCode(rows, &c); err != nil {
			return nil, 0, err
		}
		codes = append(codes, c)
	}
	return codes, total, rows.Err()
}

func (r *CodeRepository) ListBatches(ctx context.Context, tenantID, eventID string) ([]models.CodeBatch, error) {
	query := `
		SELECT id, tenant_id, event_id, type, quantity, prefix, promoter_id, max_uses, expires_at, created_by, created_at
		FROM code_batches
		WHERE tenant_id = $1 AND event_id = $2 AND ` + database.NotDeleted("") + `
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, tenantID, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []models.CodeBatch
	for rows.Next() {
		var b models.CodeBatch
		err := rows.Scan(&b.ID, &b.TenantID, &b.EventID, &b.Type, &b.Quantity, &b.Prefix,
			&b.PromoterID, &b.MaxUses, &b.ExpiresAt, &b.CreatedBy, &b.CreatedAt)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func (r *CodeRepository) Archive(ctx context.Context, tenantID, id, actorID string) error {
	return r.db.Archive(ctx, "codes", tenantID, id, actorID)
}

// ArchiveBatch archives the batch and every code it generated in one
// transaction.
func (r *CodeRepository) ArchiveBatch(ctx context.Context, tenantID, batchID, actorID string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if err := database.ArchiveWith(ctx, tx, "code_batches", tenantID, batchID, actorID); err != nil {
		return 0, err
	}
	n, err := database.ArchiveWhereWith(ctx, tx, "codes", "batch_id", tenantID, batchID, actorID)
	if err != nil {
		return 0, fmt.Errorf("failed to archive batch codes: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}
