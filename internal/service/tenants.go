package service

import (
	"context"
	"fmt"
	"strings"

	"nightpass/internal/cache"
	apperrors "nightpass/internal/errors"
	"nightpass/internal/logger"
	"nightpass/internal/models"
	"nightpass/internal/repository"
)

type TenantService struct {
	tenantRepo *repository.TenantRepository
	cache      *cache.ValkeyClient
}

func NewTenantService(tenantRepo *repository.TenantRepository, c *cache.ValkeyClient) *TenantService {
	return &TenantService{tenantRepo: tenantRepo, cache: c}
}

// Resolve maps a landing slug to its active tenant.
func (s *TenantService) Resolve(ctx context.Context, slug string) (*models.Tenant, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, apperrors.NotFound("tenant")
	}

	if s.cache != nil {
		t, err := s.cache.GetTenant(ctx, slug)
		if err != nil {
			logger.WithContext(ctx).Warn("Tenant cache lookup failed", "error", err, "slug", slug)
		} else if t != nil {
			return t, nil
		}
	}

	t, err := s.tenantRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	if t == nil {
		return nil, apperrors.NotFound("tenant")
	}

	if s.cache != nil {
		if err := s.cache.SetTenant(ctx, t); err != nil {
			logger.WithContext(ctx).Warn("Failed to cache tenant", "error", err, "slug", slug)
		}
	}
	return t, nil
}
