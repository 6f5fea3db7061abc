package database

import (
	"context"
	"database/sql"
	"fmt"

	apperrors "nightpass/internal/errors"
)

// archivable lists the tables that support soft deletion. Table names are
// never taken from request input.
var archivable = map[string]bool{
	"events":             true,
	"tables":             true,
	"table_products":     true,
	"table_reservations": true,
	"codes":              true,
	"code_batches":       true,
	"promoters":          true,
	"staff":              true,
}

// NotDeleted returns the soft-delete predicate for a table alias ("" for none).
func NotDeleted(alias string) string {
	if alias == "" {
		return "deleted_at IS NULL"
	}
	return alias + ".deleted_at IS NULL"
}

// Execer runs a statement; *DB and *sql.Tx both satisfy it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Archive soft-deletes a tenant row. Rows stay in place for audit; every read
// filters them out with NotDeleted. Archiving an archived or missing row
// returns ErrNotFound.
func (db *DB) Archive(ctx context.Context, table, tenantID, id, actorID string) error {
	return ArchiveWith(ctx, db, table, tenantID, id, actorID)
}

// ArchiveWith is Archive on the given connection or transaction.
func ArchiveWith(ctx context.Context, db Execer, table, tenantID, id, actorID string) error {
	if !archivable[table] {
		return fmt.Errorf("table %q is not archivable", table)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET deleted_at = NOW(), deleted_by = $3, is_active = FALSE
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, table)

	res, err := db.ExecContext(ctx, query, id, tenantID, nullIfEmpty(actorID))
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", table, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", table, err)
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ArchiveWhere soft-deletes every live row of the tenant matching column = value.
func (db *DB) ArchiveWhere(ctx context.Context, table, column, tenantID, value, actorID string) (int64, error) {
	return ArchiveWhereWith(ctx, db, table, column, tenantID, value, actorID)
}

func ArchiveWhereWith(ctx context.Context, db Execer, table, column, tenantID, value, actorID string) (int64, error) {
	if !archivable[table] {
		return 0, fmt.Errorf("table %q is not archivable", table)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET deleted_at = NOW(), deleted_by = $3, is_active = FALSE
		WHERE %s = $1 AND tenant_id = $2 AND deleted_at IS NULL`, table, column)

	res, err := db.ExecContext(ctx, query, value, tenantID, nullIfEmpty(actorID))
	if err != nil {
		return 0, fmt.Errorf("failed to archive %s: %w", table, err)
	}
	return res.RowsAffected()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
