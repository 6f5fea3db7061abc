package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"nightpass/internal/database"
	apperrors "nightpass/internal/errors"
	"nightpass/internal/models"
)

type TableRepository struct {
	db *database.DB
}

func NewTableRepository(db *database.DB) *TableRepository {
	return &TableRepository{db: db}
}

const tableColumns = `id, tenant_id, name, zone, capacity, price, min_consumption, is_active, created_at, updated_at`

func scanTable(s scanner, t *models.Table) error {
	return s.Scan(
		&t.ID,
		&t.TenantID,
		&t.Name,
		&t.Zone,
		&t.Capacity,
		&t.Price,
		&t.MinConsumption,
		&t.IsActive,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
}

func (r *TableRepository) Create(ctx context.Context, t *models.Table) error {
	query := `
		INSERT INTO tables (tenant_id, name, zone, capacity, price, min_consumption)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, is_active, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		t.TenantID, t.Name, t.Zone, t.Capacity, t.Price, t.MinConsumption,
	).Scan(&t.ID, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
}

func (r *TableRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Table, error) {
	t := &models.Table{}
	query := `SELECT ` + tableColumns + ` FROM tables WHERE id = $1 AND tenant_id = $2 AND ` + database.NotDeleted("")

	err := scanTable(r.db.QueryRowContext(ctx, query, id, tenantID), t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// List returns the live tables of the tenant ordered by name.
func (r *TableRepository) List(ctx context.Context, tenantID string, activeOnly bool) ([]models.Table, error) {
	query := `SELECT ` + tableColumns + ` FROM tables WHERE tenant_id = $1 AND ` + database.NotDeleted("")
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY name`

	rows, err := r.db.QueryWithRetry(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []models.Table
	for rows.Next() {
		var t models.Table
		if err := scanTable(rows, &t); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (r *TableRepository) Update(ctx context.Context, t *models.Table) error {
	query := `
		UPDATE tables
		SET name = $3, zone = $4, capacity = $5, price = $6, min_consumption = $7, is_active = $8, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
		RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		t.ID, t.TenantID, t.Name, t.Zone, t.Capacity, t.Price, t.MinConsumption, t.IsActive,
	).Scan(&t.UpdatedAt)
	if err == sql.ErrNoRows {
		return apperrors.NotFound("table")
	}
	return err
}

// Archive soft-deletes the table together with its products.
func (r *TableRepository) Archive(ctx context.Context, tenantID, id, actorID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := database.ArchiveWith(ctx, tx, "tables", tenantID, id, actorID); err != nil {
		return err
	}
	if _, err := database.ArchiveWhereWith(ctx, tx, "table_products", "table_id", tenantID, id, actorID); err != nil {
		return fmt.Errorf("failed to archive table products: %w", err)
	}
	return tx.Commit()
}

// ExistingIDs filters ids down to the live tables of the tenant.
func (r *TableRepository) ExistingIDs(ctx context.Context, tenantID string, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	query := `SELECT id FROM tables WHERE tenant_id = $1 AND id = ANY($2) AND ` + database.NotDeleted("")
	rows, err := r.db.QueryContext(ctx, query, tenantID, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	return found, rows.Err()
}

type TableProductRepository struct {
	db *database.DB
}

func NewTableProductRepository(db *database.DB) *TableProductRepository {
	return &TableProductRepository{db: db}
}

const productColumns = `id, tenant_id, table_id, name, quantity, price, is_active, created_at, updated_at`

func scanProduct(s scanner, p *models.TableProduct) error {
	return s.Scan(&p.ID, &p.TenantID, &p.TableID, &p.Name, &p.Quantity, &p.Price, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
}

func (r *TableProductRepository) Create(ctx context.Context, p *models.TableProduct) error {
	query := `
		INSERT INTO table_products (tenant_id, table_id, name, quantity, price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, is_active, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query, p.TenantID, p.TableID, p.Name, p.Quantity, p.Price).
		Scan(&p.ID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
}

func (r *TableProductRepository) GetByID(ctx context.Context, tenantID, id string) (*models.TableProduct, error) {
	p := &models.TableProduct{}
	query := `SELECT ` + productColumns + ` FROM table_products WHERE id = $1 AND tenant_id = $2 AND ` + database.NotDeleted("")

	err := scanProduct(r.db.QueryRowContext(ctx, query, id, tenantID), p)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *TableProductRepository) ListByTable(ctx context.Context, tenantID, tableID string) ([]models.TableProduct, error) {
	query := `SELECT ` + productColumns + `
		FROM table_products
		WHERE tenant_id = $1 AND table_id = $2 AND ` + database.NotDeleted("") + `
		ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, tenantID, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.TableProduct
	for rows.Next() {
		var p models.TableProduct
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *TableProductRepository) Update(ctx context.Context, p *models.TableProduct) error {
	query := `
		UPDATE table_products
		SET name = $3, quantity = $4, price = $5, is_active = $6, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
		RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query, p.ID, p.TenantID, p.Name, p.Quantity, p.Price, p.IsActive).Scan(&p.UpdatedAt)
	if err == sql.ErrNoRows {
		return apperrors.NotFound("product")
	}
	return err
}

func (r *TableProductRepository) Archive(ctx context.Context, tenantID, id, actorID string) error {
	return r.db.Archive(ctx, "table_products", tenantID, id, actorID)
}
