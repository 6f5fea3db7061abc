package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"nightpass/internal/cache"
	apperrors "nightpass/internal/errors"
	"nightpass/internal/external"
	"nightpass/internal/logger"
	"nightpass/internal/models"
	"nightpass/internal/repository"
)

var dniPattern = regexp.MustCompile(`^\d{8}$`)

type PersonService struct {
	personRepo *repository.PersonRepository
	cache      *cache.ValkeyClient
	identity   *external.IdentityClient
}

func NewPersonService(personRepo *repository.PersonRepository, c *cache.ValkeyClient, identity *external.IdentityClient) *PersonService {
	return &PersonService{personRepo: personRepo, cache: c, identity: identity}
}

// ValidDNI reports whether s is a national ID: exactly eight digits.
func ValidDNI(s string) bool {
	return dniPattern.MatchString(s)
}

// Lookup resolves a DNI through the cache, the persons table and finally
// the national registry. Registry answers are stored for later lookups.
func (s *PersonService) Lookup(ctx context.Context, dni string) (*models.Person, error) {
	dni = strings.TrimSpace(dni)
	if !ValidDNI(dni) {
		return nil, apperrors.Invalid("document must have exactly 8 digits")
	}
	log := logger.WithContext(ctx)

	if s.cache != nil {
		p, err := s.cache.GetPerson(ctx, models.DocumentTypeDNI, dni)
		if err != nil {
			log.Warn("Person cache lookup failed", "error", err)
		} else if p != nil {
			return p, nil
		}
	}

	p, err := s.personRepo.GetByDocument(ctx, models.DocumentTypeDNI, dni)
	if err != nil {
		return nil, fmt.Errorf("failed to get person: %w", err)
	}

	if p == nil {
		if s.identity == nil {
			return nil, apperrors.NotFound("person")
		}
		p, err = s.identity.LookupDNI(ctx, dni)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrUpstream, err)
		}
		if p == nil {
			return nil, apperrors.NotFound("person")
		}
		if err := s.personRepo.Upsert(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to save person: %w", err)
		}
		log.Info("Person imported from registry", "person_id", p.ID)
	}

	if s.cache != nil {
		if err := s.cache.SetPerson(ctx, p); err != nil {
			log.Warn("Failed to cache person", "error", err)
		}
	}
	return p, nil
}

func (s *PersonService) List(ctx context.Context, f models.PersonFilter) (*models.Page[models.Person], error) {
	f.Query = strings.TrimSpace(f.Query)
	f.Pagination = normalizePage(f.Pagination)
	list, total, err := s.personRepo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list persons: %w", err)
	}
	return models.NewPage(list, total, f.Pagination), nil
}
