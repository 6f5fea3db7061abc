package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	apperrors "nightpass/internal/errors"
	"nightpass/internal/models"
	"nightpass/internal/repository"
)

type StaffService struct {
	staffRepo *repository.StaffRepository
}

func NewStaffService(staffRepo *repository.StaffRepository) *StaffService {
	return &StaffService{staffRepo: staffRepo}
}

var validRoles = map[string]bool{
	models.RoleOwner:    true,
	models.RoleAdmin:    true,
	models.RoleManager:  true,
	models.RoleDoor:     true,
	models.RolePromoter: true,
}

// ResolveStaff maps an auth subject to its active staff membership.
func (s *StaffService) ResolveStaff(ctx context.Context, userID string) (*models.Staff, error) {
	if !ValidID(userID) {
		return nil, apperrors.ErrUnauthorized
	}
	m, err := s.staffRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve staff: %w", err)
	}
	if m == nil {
		return nil, apperrors.ErrForbidden
	}
	return m, nil
}

func (s *StaffService) List(ctx context.Context, tenantID string) ([]models.Staff, error) {
	list, err := s.staffRepo.List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	if list == nil {
		list = []models.Staff{}
	}
	return list, nil
}

func (s *StaffService) Create(ctx context.Context, tenantID string, req *models.StaffRequest) (*models.Staff, error) {
	if !ValidID(req.UserID) {
		return nil, apperrors.Invalid("user_id must be a UUID")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.Invalid("name is required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, apperrors.Invalid("invalid email")
	}
	if !validRoles[req.Role] {
		return nil, apperrors.Invalid("invalid role %q", req.Role)
	}

	m := &models.Staff{
		TenantID: tenantID,
		UserID:   req.UserID,
		Name:     name,
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Role:     req.Role,
	}
	if err := s.staffRepo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to create staff: %w", err)
	}
	return m, nil
}

func (s *StaffService) Update(ctx context.Context, tenantID, id string, req *models.StaffUpdateRequest) (*models.Staff, error) {
	if err := requireID("staff", id); err != nil {
		return nil, err
	}
	m, err := s.staffRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get staff: %w", err)
	}
	if m == nil {
		return nil, apperrors.NotFound("staff member")
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperrors.Invalid("name cannot be empty")
		}
		m.Name = name
	}
	if req.Role != nil {
		if !validRoles[*req.Role] {
			return nil, apperrors.Invalid("invalid role %q", *req.Role)
		}
		m.Role = *req.Role
	}
	if req.IsActive != nil {
		m.IsActive = req.IsActive.Bool()
	}

	if err := s.staffRepo.Update(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to update staff: %w", err)
	}
	return m, nil
}

// Archive removes a staff member. Staff cannot archive themselves.
func (s *StaffService) Archive(ctx context.Context, tenantID, id, actorID string) error {
	if err := requireID("staff", id); err != nil {
		return err
	}
	if id == actorID {
		return apperrors.Invalid("cannot archive your own membership")
	}
	return s.staffRepo.Archive(ctx, tenantID, id, actorID)
}
