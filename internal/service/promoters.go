package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "nightpass/internal/errors"
	"nightpass/internal/models"
	"nightpass/internal/repository"
)

var maxCommission = decimal.NewFromInt(100)

type PromoterService struct {
	promoterRepo *repository.PromoterRepository
	eventRepo    *repository.EventRepository
}

func NewPromoterService(promoterRepo *repository.PromoterRepository, eventRepo *repository.EventRepository) *PromoterService {
	return &PromoterService{promoterRepo: promoterRepo, eventRepo: eventRepo}
}

func validatePromoter(p *models.Promoter) error {
	if p.Name == "" {
		return apperrors.Invalid("name is required")
	}
	if p.Email != nil {
		if _, err := mail.ParseAddress(*p.Email); err != nil {
			return apperrors.Invalid("invalid email")
		}
	}
	if p.CommissionRate.IsNegative() || p.CommissionRate.GreaterThan(maxCommission) {
		return apperrors.Invalid("commission_rate must be between 0 and 100")
	}
	return nil
}

func (s *PromoterService) Create(ctx context.Context, tenantID string, req *models.PromoterRequest) (*models.Promoter, error) {
	p := &models.Promoter{
		TenantID:       tenantID,
		Name:           strings.TrimSpace(req.Name),
		Document:       trimPtr(req.Document),
		Email:          trimPtr(req.Email),
		Phone:          trimPtr(req.Phone),
		CommissionRate: req.CommissionRate,
	}
	if err := validatePromoter(p); err != nil {
		return nil, err
	}
	if err := s.promoterRepo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create promoter: %w", err)
	}
	return p, nil
}

func (s *PromoterService) Get(ctx context.Context, tenantID, id string) (*models.Promoter, error) {
	if err := requireID("promoter", id); err != nil {
		return nil, err
	}
	p, err := s.promoterRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get promoter: %w", err)
	}
	if p == nil {
		return nil, apperrors.NotFound("promoter")
	}
	return p, nil
}

func (s *PromoterService) List(ctx context.Context, tenantID, search string, page models.Pagination) (*models.Page[models.Promoter], error) {
	page = normalizePage(page)
	list, total, err := s.promoterRepo.List(ctx, tenantID, strings.TrimSpace(search), page)
	if err != nil {
		return nil, fmt.Errorf("failed to list promoters: %w", err)
	}
	return models.NewPage(list, total, page), nil
}

func (s *PromoterService) Update(ctx context.Context, tenantID, id string, req *models.PromoterUpdateRequest) (*models.Promoter, error) {
	p, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Document != nil {
		p.Document = trimPtr(req.Document)
	}
	if req.Email != nil {
		p.Email = trimPtr(req.Email)
	}
	if req.Phone != nil {
		p.Phone = trimPtr(req.Phone)
	}
	if req.CommissionRate != nil {
		p.CommissionRate = *req.CommissionRate
	}
	if req.IsActive != nil {
		p.IsActive = req.IsActive.Bool()
	}
	if err := validatePromoter(p); err != nil {
		return nil, err
	}

	if err := s.promoterRepo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update promoter: %w", err)
	}
	return p, nil
}

func (s *PromoterService) Archive(ctx context.Context, tenantID, id, actorID string) error {
	if err := requireID("promoter", id); err != nil {
		return err
	}
	return s.promoterRepo.Archive(ctx, tenantID, id, actorID)
}

// Stats returns per-promoter counters for one event.
func (s *PromoterService) Stats(ctx context.Context, tenantID, eventID string) ([]models.PromoterStats, error) {
	if err := requireID("event", eventID); err != nil {
		return nil, err
	}
	event, err := s.eventRepo.GetByID(ctx, tenantID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, apperrors.NotFound("event")
	}

	stats, err := s.promoterRepo.Stats(ctx, tenantID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load promoter stats: %w", err)
	}
	if stats == nil {
		stats = []models.PromoterStats{}
	}
	return stats, nil
}
