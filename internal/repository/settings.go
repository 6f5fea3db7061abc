package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"nightpass/internal/database"
	"nightpass/internal/models"
)

type SettingsRepository struct {
	db *database.DB
}

func NewSettingsRepository(db *database.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) GetBrand(ctx context.Context, tenantID string) (*models.BrandSettings, error) {
	b := &models.BrandSettings{}
	query := `
		SELECT tenant_id, display_name, logo_url, primary_color, secondary_color, instagram_url, whatsapp_number, updated_at
		FROM brand_settings
		WHERE tenant_id = $1`

	err := r.db.QueryRowContext(ctx, query, tenantID).Scan(
		&b.TenantID, &b.DisplayName, &b.LogoURL, &b.PrimaryColor, &b.SecondaryColor,
		&b.InstagramURL, &b.WhatsAppNumber, &b.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *SettingsRepository) UpsertBrand(ctx context.Context, b *models.BrandSettings) error {
	query := `
		INSERT INTO brand_settings (tenant_id, display_name, logo_url, primary_color, secondary_color, instagram_url, whatsapp_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			logo_url = COALESCE(EXCLUDED.logo_url, brand_settings.logo_url),
			primary_color = EXCLUDED.primary_color,
			secondary_color = EXCLUDED.secondary_color,
			instagram_url = EXCLUDED.instagram_url,
			whatsapp_number = EXCLUDED.whatsapp_number,
			updated_at = NOW()
		RETURNING logo_url, updated_at`

	return r.db.QueryRowContext(ctx, query,
		b.TenantID, b.DisplayName, b.LogoURL, b.PrimaryColor, b.SecondaryColor, b.InstagramURL, b.WhatsAppNumber,
	).Scan(&b.LogoURL, &b.UpdatedAt)
}

func (r *SettingsRepository) GetLayout(ctx context.Context, tenantID string) (*models.LayoutSettings, error) {
	l := &models.LayoutSettings{}
	var positions []byte
	query := `
		SELECT tenant_id, canvas_width, canvas_height, background_url, positions, updated_at
		FROM layout_settings
		WHERE tenant_id = $1`

	err := r.db.QueryRowContext(ctx, query, tenantID).Scan(
		&l.TenantID, &l.CanvasWidth, &l.CanvasHeight, &l.BackgroundURL, &positions, &l.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(positions, &l.Positions); err != nil {
		return nil, fmt.Errorf("failed to decode layout positions: %w", err)
	}
	return l, nil
}

func (r *SettingsRepository) UpsertLayout(ctx context.Context, l *models.LayoutSettings) error {
	if l.Positions == nil {
		l.Positions = map[string]models.TablePosition{}
	}
	positions, err := json.Marshal(l.Positions)
	if err != nil {
		return fmt.Errorf("failed to encode layout positions: %w", err)
	}

	query := `
		INSERT INTO layout_settings (tenant_id, canvas_width, canvas_height, background_url, positions)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		ON CONFLICT (tenant_id) DO UPDATE SET
			canvas_width = EXCLUDED.canvas_width,
			canvas_height = EXCLUDED.canvas_height,
			background_url = COALESCE(EXCLUDED.background_url, layout_settings.background_url),
			positions = EXCLUDED.positions,
			updated_at = NOW()
		RETURNING background_url, updated_at`

	return r.db.QueryRowContext(ctx, query,
		l.TenantID, l.CanvasWidth, l.CanvasHeight, l.BackgroundURL, string(positions),
	).Scan(&l.BackgroundURL, &l.UpdatedAt)
}
