package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	apperrors "nightpass/internal/errors"
	"nightpass/internal/metrics"
	"nightpass/internal/models"
	"nightpass/internal/repository"
)

const (
	MaxCodesPerBatch = 500
	maxPrefixLen     = 8
	maxCodeLen       = 32
)

// batchTypes are the code types the batch generator accepts. General codes
// have their own procedure.
var batchTypes = map[string]bool{
	models.CodeTypeCourtesy: true,
	models.CodeTypePromoter: true,
	models.CodeTypeTable:    true,
	models.CodeTypeDiscount: true,
}

type CodeService struct {
	codeRepo     *repository.CodeRepository
	eventRepo    *repository.EventRepository
	promoterRepo *repository.PromoterRepository
	metrics      *metrics.Metrics
	opts         Options
	now          func() time.Time
}

func NewCodeService(codeRepo *repository.CodeRepository, eventRepo *repository.EventRepository, promoterRepo *repository.PromoterRepository, m *metrics.Metrics, opts Options) *CodeService {
	return &CodeService{
		codeRepo:     codeRepo,
		eventRepo:    eventRepo,
		promoterRepo: promoterRepo,
		metrics:      m,
		opts:         opts.withDefaults(),
		now:          time.Now,
	}
}

// NormalizePrefix keeps upper-case letters and digits, at most 8 of them.
func NormalizePrefix(prefix string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(prefix) {
		if b.Len() >= maxPrefixLen {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizeCode is the canonical form codes are stored and looked up in.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ClampQuantity bounds a batch size to [1, MaxCodesPerBatch].
func ClampQuantity(q int) int {
	if q < 1 {
		return 1
	}
	if q > MaxCodesPerBatch {
		return MaxCodesPerBatch
	}
	return q
}

func (s *CodeService) Generate(ctx context.Context, tenantID, actorID string, req *models.GenerateCodesRequest) (*models.CodeBatchResult, error) {
	if err := requireID("event", req.EventID); err != nil {
		return nil, err
	}
	if !batchTypes[req.Type] {
		return nil, apperrors.Invalid("invalid code type %q", req.Type)
	}
	if req.Type == models.CodeTypePromoter && req.PromoterID == nil {
		return nil, apperrors.Invalid("promoter_id is required for promoter codes")
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		return nil, apperrors.Invalid("expires_at must be in the future")
	}

	event, err := s.eventRepo.GetByID(ctx, tenantID, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, apperrors.NotFound("event")
	}

	if req.PromoterID != nil {
		if err := requireID("promoter", *req.PromoterID); err != nil {
			return nil, err
		}
		p, err := s.promoterRepo.GetByID(ctx, tenantID, *req.PromoterID)
		if err != nil {
			return nil, fmt.Errorf("failed to get promoter: %w", err)
		}
		if p == nil || !p.IsActive {
			return nil, apperrors.NotFound("promoter")
		}
	}

	maxUses := req.MaxUses
	if maxUses < 1 {
		maxUses = 1
	}

	result, err := s.codeRepo.GenerateBatch(ctx, repository.BatchParams{
		TenantID:   tenantID,
		EventID:    event.ID,
		Type:       req.Type,
		Quantity:   ClampQuantity(req.Quantity),
		Prefix:     NormalizePrefix(req.Prefix),
		PromoterID: req.PromoterID,
		MaxUses:    maxUses,
		ExpiresAt:  req.ExpiresAt,
		CreatedBy:  actorID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate codes: %w", err)
	}

	s.metrics.CodesGenerated(req.Type, len(result.Codes))
	return result, nil
}

// SetGeneralCode replaces the event's general code; the procedure
// deactivates the previous one.
func (s *CodeService) SetGeneralCode(ctx context.Context, tenantID, eventID string, req *models.GeneralCodeRequest) (*models.Code, error) {
	if err := requireID("event", eventID); err != nil {
		return nil, err
	}
	code := normalizeCode(req.Code)
	if code == "" || len(code) > maxCodeLen {
		return nil, apperrors.Invalid("code must have 1 to %d characters", maxCodeLen)
	}
	maxUses := req.MaxUses
	if maxUses < 1 {
		return nil, apperrors.Invalid("max_uses must be positive")
	}

	event, err := s.eventRepo.GetByID(ctx, tenantID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, apperrors.NotFound("event")
	}

	id, err := s.codeRepo.SetGeneralCode(ctx, tenantID, eventID, code, maxUses)
	if err != nil {
		return nil, fmt.Errorf("failed to set general code: %w", err)
	}
	s.metrics.CodesGenerated(models.CodeTypeGeneral, 1)

	return s.codeRepo.GetByID(ctx, tenantID, id)
}

// resolve returns the usable code for an event or ErrCodeInvalid /
// ErrCodeExhausted. It does not consume a use.
func (s *CodeService) resolve(ctx context.Context, tenantID, eventID, raw string) (*models.Code, error) {
	code := normalizeCode(raw)
	if code == "" || len(code) > maxCodeLen {
		return nil, apperrors.ErrCodeInvalid
	}
	c, err := s.codeRepo.GetByCode(ctx, tenantID, eventID, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get code: %w", err)
	}
	if c == nil || !c.IsActive || c.EventID != eventID {
		return nil, apperrors.ErrCodeInvalid
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(s.now()) {
		return nil, apperrors.ErrCodeInvalid
	}
	if c.Remaining() == 0 {
		return nil, apperrors.ErrCodeExhausted
	}
	return c, nil
}

// Validate is the read-only public check of a code.
func (s *CodeService) Validate(ctx context.Context, tenantID string, req *models.ValidateCodeRequest) (*models.CodeValidation, error) {
	if !ValidID(req.EventID) {
		return &models.CodeValidation{Valid: false}, nil
	}
	c, err := s.resolve(ctx, tenantID, req.EventID, req.Code)
	switch {
	case err == nil:
		return &models.CodeValidation{Valid: true, Type: c.Type, Remaining: c.Remaining()}, nil
	case apperrors.IsCodeRejection(err):
		return &models.CodeValidation{Valid: false}, nil
	default:
		return nil, err
	}
}

// Redeem consumes one use of a code.
func (s *CodeService) Redeem(ctx context.Context, tenantID, codeID string) (*models.Code, error) {
	c, err := s.codeRepo.Redeem(ctx, tenantID, codeID)
	if err != nil {
		return nil, err
	}
	s.metrics.CodeRedeemed()
	return c, nil
}

func (s *CodeService) List(ctx context.Context, tenantID string, f models.CodeFilter) (*models.Page[models.Code], error) {
	if f.EventID != "" {
		if err := requireID("event", f.EventID); err != nil {
			return nil, err
		}
	}
	if f.BatchID != "" {
		if err := requireID("batch", f.BatchID); err != nil {
			return nil, err
		}
	}
	f.Pagination = normalizePage(f.Pagination)
	list, total, err := s.codeRepo.List(ctx, tenantID, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list codes: %w", err)
	}
	return models.NewPage(list, total, f.Pagination), nil
}

func (s *CodeService) ListBatches(ctx context.Context, tenantID, eventID string) ([]models.CodeBatch, error) {
	if err := requireID("event", eventID); err != nil {
		return nil, err
	}
	list, err := s.codeRepo.ListBatches(ctx, tenantID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	if list == nil {
		list = []models.CodeBatch{}
	}
	return list, nil
}

func (s *CodeService) Archive(ctx context.Context, tenantID, id, actorID string) error {
	if err := requireID("code", id); err != nil {
		return err
	}
	return s.codeRepo.Archive(ctx, tenantID, id, actorID)
}

// ArchiveBatch archives a batch and its codes, returning how many codes went.
func (s *CodeService) ArchiveBatch(ctx context.Context, tenantID, batchID, actorID string) (int64, error) {
	if err := requireID("batch", batchID); err != nil {
		return 0, err
	}
	return s.codeRepo.ArchiveBatch(ctx, tenantID, batchID, actorID)
}
