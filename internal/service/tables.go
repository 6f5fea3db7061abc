package service

import (
	"context"
	"fmt"
	"strings"

	apperrors "nightpass/internal/errors"
	"nightpass/internal/models"
	"nightpass/internal/repository"
)

const maxTableCapacity = 50

type TableService struct {
	tableRepo   *repository.TableRepository
	productRepo *repository.TableProductRepository
}

func NewTableService(tableRepo *repository.TableRepository, productRepo *repository.TableProductRepository) *TableService {
	return &TableService{tableRepo: tableRepo, productRepo: productRepo}
}

func validateTable(t *models.Table) error {
	if t.Name == "" {
		return apperrors.Invalid("name is required")
	}
	if t.Capacity < 1 || t.Capacity > maxTableCapacity {
		return apperrors.Invalid("capacity must be between 1 and %d", maxTableCapacity)
	}
	if t.Price.IsNegative() || t.MinConsumption.IsNegative() {
		return apperrors.Invalid("amounts cannot be negative")
	}
	return nil
}

func (s *TableService) Create(ctx context.Context, tenantID string, req *models.TableRequest) (*models.Table, error) {
	t := &models.Table{
		TenantID:       tenantID,
		Name:           strings.TrimSpace(req.Name),
		Zone:           trimPtr(req.Zone),
		Capacity:       req.Capacity,
		Price:          req.Price,
		MinConsumption: req.MinConsumption,
	}
	if err := validateTable(t); err != nil {
		return nil, err
	}
	if err := s.tableRepo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return t, nil
}

func (s *TableService) Get(ctx context.Context, tenantID, id string) (*models.Table, error) {
	if err := requireID("table", id); err != nil {
		return nil, err
	}
	t, err := s.tableRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get table: %w", err)
	}
	if t == nil {
		return nil, apperrors.NotFound("table")
	}
	return t, nil
}

func (s *TableService) List(ctx context.Context, tenantID string, activeOnly bool) ([]models.Table, error) {
	list, err := s.tableRepo.List(ctx, tenantID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	if list == nil {
		list = []models.Table{}
	}
	return list, nil
}

func (s *TableService) Update(ctx context.Context, tenantID, id string, req *models.TableUpdateRequest) (*models.Table, error) {
	t, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		t.Name = strings.TrimSpace(*req.Name)
	}
	if req.Zone != nil {
		t.Zone = trimPtr(req.Zone)
	}
	if req.Capacity != nil {
		t.Capacity = *req.Capacity
	}
	if req.Price != nil {
		t.Price = *req.Price
	}
	if req.MinConsumption != nil {
		t.MinConsumption = *req.MinConsumption
	}
	if req.IsActive != nil {
		t.IsActive = req.IsActive.Bool()
	}
	if err := validateTable(t); err != nil {
		return nil, err
	}

	if err := s.tableRepo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update table: %w", err)
	}
	return t, nil
}

// Archive soft-deletes a table and its products. Existing reservations keep
// pointing at it.
func (s *TableService) Archive(ctx context.Context, tenantID, id, actorID string) error {
	if err := requireID("table", id); err != nil {
		return err
	}
	return s.tableRepo.Archive(ctx, tenantID, id, actorID)
}

// Products

func validateProduct(p *models.TableProduct) error {
	if p.Name == "" {
		return apperrors.Invalid("name is required")
	}
	if p.Quantity < 1 {
		return apperrors.Invalid("quantity must be positive")
	}
	if p.Price.IsNegative() {
		return apperrors.Invalid("price cannot be negative")
	}
	return nil
}

func (s *TableService) CreateProduct(ctx context.Context, tenantID, tableID string, req *models.TableProductRequest) (*models.TableProduct, error) {
	if _, err := s.Get(ctx, tenantID, tableID); err != nil {
		return nil, err
	}

	p := &models.TableProduct{
		TenantID: tenantID,
		TableID:  tableID,
		Name:     strings.TrimSpace(req.Name),
		Quantity: req.Quantity,
		Price:    req.Price,
	}
	if p.Quantity == 0 {
		p.Quantity = 1
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	if err := s.productRepo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return p, nil
}

func (s *TableService) ListProducts(ctx context.Context, tenantID, tableID string) ([]models.TableProduct, error) {
	if err := requireID("table", tableID); err != nil {
		return nil, err
	}
	list, err := s.productRepo.ListByTable(ctx, tenantID, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	if list == nil {
		list = []models.TableProduct{}
	}
	return list, nil
}

func (s *TableService) UpdateProduct(ctx context.Context, tenantID, id string, req *models.TableProductUpdateRequest) (*models.TableProduct, error) {
	if err := requireID("product", id); err != nil {
		return nil, err
	}
	p, err := s.productRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if p == nil {
		return nil, apperrors.NotFound("product")
	}

	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Quantity != nil {
		p.Quantity = *req.Quantity
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.IsActive != nil {
		p.IsActive = req.IsActive.Bool()
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	if err := s.productRepo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return p, nil
}

func (s *TableService) ArchiveProduct(ctx context.Context, tenantID, id, actorID string) error {
	if err := requireID("product", id); err != nil {
		return err
	}
	return s.productRepo.Archive(ctx, tenantID, id, actorID)
}
