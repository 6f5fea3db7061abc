package service

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	apperrors "nightpass/internal/errors"
	"nightpass/internal/external"
	"nightpass/internal/models"
	"nightpass/internal/repository"
)

const (
	defaultPrimaryColor   = "#111111"
	defaultSecondaryColor = "#F5C542"
	maxCanvasSize         = 4000
)

var (
	colorPattern    = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
	whatsAppPattern = regexp.MustCompile(`^\+?\d{9,15}$`)
)

type SettingsService struct {
	settingsRepo *repository.SettingsRepository
	tableRepo    *repository.TableRepository
	storage      *external.StorageClient
}

func NewSettingsService(settingsRepo *repository.SettingsRepository, tableRepo *repository.TableRepository, storage *external.StorageClient) *SettingsService {
	return &SettingsService{settingsRepo: settingsRepo, tableRepo: tableRepo, storage: storage}
}

// GetBrand returns the brand settings, or defaults when none were saved.
func (s *SettingsService) GetBrand(ctx context.Context, tenantID string) (*models.BrandSettings, error) {
	b, err := s.settingsRepo.GetBrand(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get brand settings: %w", err)
	}
	if b == nil {
		b = &models.BrandSettings{
			TenantID:       tenantID,
			PrimaryColor:   defaultPrimaryColor,
			SecondaryColor: defaultSecondaryColor,
		}
	}
	return b, nil
}

func (s *SettingsService) UpsertBrand(ctx context.Context, tenantID string, req *models.BrandSettingsRequest) (*models.BrandSettings, error) {
	b := &models.BrandSettings{
		TenantID:       tenantID,
		DisplayName:    strings.TrimSpace(req.DisplayName),
		PrimaryColor:   strings.ToUpper(strings.TrimSpace(req.PrimaryColor)),
		SecondaryColor: strings.ToUpper(strings.TrimSpace(req.SecondaryColor)),
		InstagramURL:   trimPtr(req.InstagramURL),
		WhatsAppNumber: trimPtr(req.WhatsAppNumber),
	}
	if b.DisplayName == "" {
		return nil, apperrors.Invalid("display_name is required")
	}
	if b.PrimaryColor == "" {
		b.PrimaryColor = defaultPrimaryColor
	}
	if b.SecondaryColor == "" {
		b.SecondaryColor = defaultSecondaryColor
	}
	if !colorPattern.MatchString(b.PrimaryColor) || !colorPattern.MatchString(b.SecondaryColor) {
		return nil, apperrors.Invalid("colors must be #RRGGBB")
	}
	if b.InstagramURL != nil && !strings.HasPrefix(*b.InstagramURL, "https://") {
		return nil, apperrors.Invalid("instagram_url must be an https URL")
	}
	if b.WhatsAppNumber != nil && !whatsAppPattern.MatchString(*b.WhatsAppNumber) {
		return nil, apperrors.Invalid("invalid whatsapp_number")
	}

	if err := s.settingsRepo.UpsertBrand(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to save brand settings: %w", err)
	}
	return b, nil
}

// UploadLogo stores the brand logo. Brand settings must exist already.
func (s *SettingsService) UploadLogo(ctx context.Context, tenantID string, upload *models.Upload) (*models.BrandSettings, error) {
	b, err := s.settingsRepo.GetBrand(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get brand settings: %w", err)
	}
	if b == nil {
		return nil, apperrors.Invalid("save brand settings before uploading a logo")
	}

	url, err := s.upload(ctx, tenantID, "logo", upload)
	if err != nil {
		return nil, err
	}
	b.LogoURL = &url
	if err := s.settingsRepo.UpsertBrand(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to save brand settings: %w", err)
	}
	return b, nil
}

// GetLayout returns the floor plan, or an empty one when none was saved.
func (s *SettingsService) GetLayout(ctx context.Context, tenantID string) (*models.LayoutSettings, error) {
	l, err := s.settingsRepo.GetLayout(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get layout settings: %w", err)
	}
	if l == nil {
		l = &models.LayoutSettings{
			TenantID:  tenantID,
			Positions: map[string]models.TablePosition{},
		}
	}
	return l, nil
}

// UpsertLayout saves the floor plan. Every position must belong to a live
// table of the tenant.
func (s *SettingsService) UpsertLayout(ctx context.Context, tenantID string, req *models.LayoutSettingsRequest) (*models.LayoutSettings, error) {
	if req.CanvasWidth < 1 || req.CanvasWidth > maxCanvasSize || req.CanvasHeight < 1 || req.CanvasHeight > maxCanvasSize {
		return nil, apperrors.Invalid("canvas size must be between 1 and %d", maxCanvasSize)
	}

	ids := make([]string, 0, len(req.Positions))
	for id, pos := range req.Positions {
		if !ValidID(id) {
			return nil, apperrors.Invalid("invalid table id %q", id)
		}
		if pos.X < 0 || pos.Y < 0 || pos.X > float64(req.CanvasWidth) || pos.Y > float64(req.CanvasHeight) {
			return nil, apperrors.Invalid("position of table %s is outside the canvas", id)
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	existing, err := s.tableRepo.ExistingIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to check tables: %w", err)
	}
	for _, id := range ids {
		if !existing[id] {
			return nil, apperrors.Invalid("table %s does not exist", id)
		}
	}

	l := &models.LayoutSettings{
		TenantID:     tenantID,
		CanvasWidth:  req.CanvasWidth,
		CanvasHeight: req.CanvasHeight,
		Positions:    req.Positions,
	}
	if err := s.settingsRepo.UpsertLayout(ctx, l); err != nil {
		return nil, fmt.Errorf("failed to save layout settings: %w", err)
	}
	return l, nil
}

// UploadBackground stores the floor plan background image.
func (s *SettingsService) UploadBackground(ctx context.Context, tenantID string, upload *models.Upload) (*models.LayoutSettings, error) {
	l, err := s.settingsRepo.GetLayout(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get layout settings: %w", err)
	}
	if l == nil {
		return nil, apperrors.Invalid("save the layout before uploading a background")
	}

	url, err := s.upload(ctx, tenantID, "layout", upload)
	if err != nil {
		return nil, err
	}
	l.BackgroundURL = &url
	if err := s.settingsRepo.UpsertLayout(ctx, l); err != nil {
		return nil, fmt.Errorf("failed to save layout settings: %w", err)
	}
	return l, nil
}

func (s *SettingsService) upload(ctx context.Context, tenantID, prefix string, upload *models.Upload) (string, error) {
	contentType, err := checkUpload(upload, imageTypes)
	if err != nil {
		return "", err
	}
	if s.storage == nil {
		return "", apperrors.ErrUpstream
	}
	url, err := s.storage.Upload(ctx, external.BucketBranding, objectPath(tenantID, prefix, contentType), contentType, upload.Data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrUpstream, err)
	}
	return url, nil
}
