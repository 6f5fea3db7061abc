package database

import (
	"context"
	"fmt"
	"log/slog"
)

// RunMigrations creates the schema for local environments. Production schema,
// row-level policies and the generate_codes_batch / set_event_general_code
// procedures are managed in the hosted project and are not created here.
func (db *DB) RunMigrations(ctx context.Context) error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createExtensions,
		createTenantsTable,
		createEventsTable,
		createTablesTable,
		createTableProductsTable,
		createPromotersTable,
		createPersonsTable,
		createStaffTable,
		createCodeBatchesTable,
		createCodesTable,
		createTableReservationsTable,
		createPaymentsTable,
		createTicketsTable,
		createBrandSettingsTable,
		createLayoutSettingsTable,
		createIndexes,
	}

	for i, migration := range migrations {
		slog.Debug("Running migration", "step", i+1)
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully", "count", len(migrations))
	return nil
}

const createExtensions = `CREATE EXTENSION IF NOT EXISTS "pgcrypto";`

const createTenantsTable = `
CREATE TABLE IF NOT EXISTS tenants (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    slug VARCHAR(64) UNIQUE NOT NULL,
    name VARCHAR(200) NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createEventsTable = `
CREATE TABLE IF NOT EXISTS events (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    tenant_id UUID NOT NULL REFERENCES tenants(id),
    name VARCHAR(200) NOT NULL,
    description TEXT,
    venue VARCHAR(200),
    starts_at TIMESTAMPTZ NOT NULL,
    ends_at TIMESTAMPTZ,
    flyer_url TEXT,
    ticket_price NUMERIC(10,2) NOT NULL DEFAULT 0,
    ticket_capacity INTEGER NOT NULL DEFAULT 0,
    status VARCHAR(20) NOT NULL DEFAULT 'draft',
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    deleted_at TIMESTAMPTZ,
    deleted_by UUID,

    CHECK (status IN ('draft', 'published')),
    CHECK (ticket_capacity >= 0),
    CHECK (ticket_price >= 0),
    CHECK (ends_at IS NULL OR ends_at > starts_at)
);`

const createTablesTable = `
CREATE TABLE IF NOT EXISTS tables (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    tenant_id UUID NOT NULL REFERENCES tenants(id),
    name VARCHAR(100) NOT NULL,
    zone VARCHAR(100),
    capacity INTEGER NOT NULL,
    price NUMERIC(10,2) NOT NULL DEFAULT 0,
    min_consumption NUMERIC(10,2) NOT NULL DEFAULT 0,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    deleted_at TIMESTAMPTZ,
    deleted_by UUID,

    CHECK (capacity > 0)
);`

const createTableProductsTable = `
CREATE TABLE IF NOT EXISTS table_products (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    tenant_id UUID NOT NULL REFERENCES tenants(id),
    table_id UUID NOT NULL REFERENCES tables(id),
    name VARCHAR(200) NOT NULL,
    quantity INTEGER NOT NULL DEFAULT 1,
    price NUMERIC(10,2) NOT NULL DEFAULT 0,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    deleted_at TIMESTAMPTZ,
    deleted_by UUID,

    CHECK (quantity > 0)
);`

const createPromotersTable = `
CREATE TABLE IF NOT EXISTS promoters (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    tenant_id UUID NOT NULL REFERENCES tenants(id),
    name VARCHAR(200) NOT NULL,
    document VARCHAR(20),
    email VARCHAR(255),
    phone VARCHAR(30),
    commission_rate NUMERIC(5,2) NOT NULL DEFAULT 0,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    deleted_at TIMESTAMPTZ,
    deleted_by UUID
);`

const createPersonsTable = `
CREATE TABLE IF NOT EXISTS persons (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    document_type VARCHAR(10) NOT NULL DEFAULT 'DNI',
    document_number VARCHAR(20) NOT NULL,
    first_name VARCHAR(100) NOT NULL,
    last_name VARCHAR(150) NOT NULL,
    birthdate DATE,
    email VARCHAR(255),
    phone VARCHAR(30),
    source VARCHAR(20) NOT NULL DEFAULT 'manual',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    UNIQUE (document_type, document_number)
);`

const createStaffTable = `
CREATE TABLE IF NOT EXISTS staff (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    tenant_id UUID NOT NULL REFERENCES tenants(id),
    user_id UUID NOT NULL,
    name VARCHAR(200) NOT NULL,
    email VARCHAR(255) NOT NULL,
    role VARCHAR(20) NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    deleted_at TIMESTAMPTZ,
    deleted_by UUID,

    CHECK (role IN ('owner', 'admin', 'manager', 'door', 'promoter'))
);`

const createCodeBatchesTable = `
CREATE TABLE IF NOT EXISTS code_batches (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    tenant_id UUID NOT NULL REFERENCES tenants(id),
    event_id UUID NOT NULL REFERENCES events(id),
    type VARCHAR(20) NOT NULL,
    quantity INTEGER NOT NULL,
    prefix VARCHAR(8),
    promoter_id UUID REFERENCES promoters(id),
    max_uses INTEGER NOT NULL DEFAULT 1,
    expires_at TIMESTAMPTZ,
    created_by UUID,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    deleted_at TIMESTAMPTZ,
    deleted_by UUID,

    CHECK (quantity BETWEEN 1 AND 500)
);`

const createCodesTable = `
CREATE TABLE IF NOT EXISTS codes (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    tenant_id UUID NOT NULL REFERENCES tenants(id),
    event_id UUID NOT NULL REFERENCES events(id),
    batch_id UUID REFERENCES code_batches(id),
    code VARCHAR(32) NOT NULL,
    type VARCHAR(20) NOT NULL,
    promoter_id UUID REFERENCES promoters(id),
    max_uses INTEGER NOT NULL DEFAULT 1,
    uses INTEGER NOT NULL DEFAULT 0,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    expires_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    deleted_at TIMESTAMPTZ,
    deleted_by UUID,

    CHECK (type IN ('general', 'courtesy', 'promoter', 'table', 'discount')),
    CHECK (uses >= 0 AND uses <= max_uses)
);`

const createTableReservationsTable = `
CREATE TABLE IF NOT EXISTS table_reservations (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    tenant_id UUID NOT NULL REFERENCES tenants(id),
    event_id UUID NOT NULL REFERENCES events(id),
    table_id UUID NOT NULL REFERENCES tables(id),
    person_id UUID REFERENCES persons(id),
    customer_name VARCHAR(200) NOT NULL,
    customer_document VARCHAR(20),
    customer_email VARCHAR(255),
    customer_phone VARCHAR(30),
    guests INTEGER NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    promoter_id UUID REFERENCES promoters(id),
    code_id UUID REFERENCES codes(id),
    voucher_url TEXT,
    notes TEXT,
    created_by UUID,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    deleted_at TIMESTAMPTZ,
    deleted_by UUID,

    CHECK (guests > 0),
    CHECK (status IN ('pending', 'confirmed', 'rejected', 'cancelled', 'completed'))
);`

const createPaymentsTable = `
CREATE TABLE IF NOT EXISTS payments (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    tenant_id UUID NOT NULL REFERENCES tenants(id),
    event_id UUID NOT NULL REFERENCES events(id),
    order_id UUID UNIQUE NOT NULL,
    provider_payment_id VARCHAR(255),
    purpose VARCHAR(20) NOT NULL DEFAULT 'tickets',
    quantity INTEGER NOT NULL,
    amount NUMERIC(10,2) NOT NULL,
    currency VARCHAR(3) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    buyer_name VARCHAR(200) NOT NULL,
    buyer_document VARCHAR(20),
    buyer_email VARCHAR(255) NOT NULL,
    code_id UUID REFERENCES codes(id),
    payment_url TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (status IN ('pending', 'paid', 'failed', 'cancelled', 'expired'))
);`

const createTicketsTable = `
CREATE TABLE IF NOT EXISTS tickets (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    tenant_id UUID NOT NULL REFERENCES tenants(id),
    event_id UUID NOT NULL REFERENCES events(id),
    person_id UUID REFERENCES persons(id),
    holder_name VARCHAR(200) NOT NULL,
    holder_document VARCHAR(20),
    holder_email VARCHAR(255),
    code_id UUID REFERENCES codes(id),
    payment_id UUID REFERENCES payments(id),
    price NUMERIC(10,2) NOT NULL DEFAULT 0,
    status VARCHAR(20) NOT NULL DEFAULT 'issued',
    qr_token VARCHAR(64) UNIQUE NOT NULL,
    used_at TIMESTAMPTZ,
    used_by UUID,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    deleted_at TIMESTAMPTZ,
    deleted_by UUID,

    CHECK (status IN ('issued', 'used', 'cancelled'))
);`

const createBrandSettingsTable = `
CREATE TABLE IF NOT EXISTS brand_settings (
    tenant_id UUID PRIMARY KEY REFERENCES tenants(id),
    display_name VARCHAR(200) NOT NULL,
    logo_url TEXT,
    primary_color VARCHAR(7) NOT NULL DEFAULT '#000000',
    secondary_color VARCHAR(7) NOT NULL DEFAULT '#ffffff',
    instagram_url TEXT,
    whatsapp_number VARCHAR(30),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createLayoutSettingsTable = `
CREATE TABLE IF NOT EXISTS layout_settings (
    tenant_id UUID PRIMARY KEY REFERENCES tenants(id),
    canvas_width INTEGER NOT NULL DEFAULT 1000,
    canvas_height INTEGER NOT NULL DEFAULT 700,
    background_url TEXT,
    positions JSONB NOT NULL DEFAULT '{}'::jsonb,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createIndexes = `
CREATE UNIQUE INDEX IF NOT EXISTS table_reservations_active_uniq
    ON table_reservations (event_id, table_id)
    WHERE status IN ('pending', 'confirmed') AND deleted_at IS NULL;
CREATE UNIQUE INDEX IF NOT EXISTS codes_event_code_uniq
    ON codes (event_id, code) WHERE deleted_at IS NULL;
CREATE UNIQUE INDEX IF NOT EXISTS codes_event_general_uniq
    ON codes (event_id) WHERE type = 'general' AND is_active AND deleted_at IS NULL;
CREATE UNIQUE INDEX IF NOT EXISTS staff_tenant_user_uniq
    ON staff (tenant_id, user_id) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS events_tenant_starts_idx ON events (tenant_id, starts_at);
CREATE INDEX IF NOT EXISTS tickets_event_idx ON tickets (event_id, status);
CREATE INDEX IF NOT EXISTS payments_pending_idx ON payments (created_at) WHERE status = 'pending';`
