package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"nightpass/internal/cache"
	apperrors "nightpass/internal/errors"
	"nightpass/internal/external"
	"nightpass/internal/logger"
	"nightpass/internal/models"
	"nightpass/internal/repository"
	"nightpass/internal/search"
	"nightpass/internal/timezone"
)

type EventService struct {
	eventRepo *repository.EventRepository
	cache     *cache.ValkeyClient
	search    *search.ElasticsearchClient
	storage   *external.StorageClient
	opts      Options
	now       func() time.Time
}

func NewEventService(eventRepo *repository.EventRepository, c *cache.ValkeyClient, es *search.ElasticsearchClient, storage *external.StorageClient, opts Options) *EventService {
	return &EventService{
		eventRepo: eventRepo,
		cache:     c,
		search:    es,
		storage:   storage,
		opts:      opts.withDefaults(),
		now:       time.Now,
	}
}

const maxEventNameLen = 200

var eventStatuses = map[string]bool{
	models.EventStatusDraft:     true,
	models.EventStatusPublished: true,
}

// withLocalTime fills the Lima rendering of the start instant.
func withLocalTime(e *models.Event) *models.Event {
	e.StartDate, e.StartTime = timezone.ToLocal(e.StartsAt)
	return e
}

func localTimes(list []models.Event) []models.Event {
	for i := range list {
		withLocalTime(&list[i])
	}
	return list
}

// localInstant converts a Lima date and clock and reports bad input as a
// validation error.
func localInstant(field, date, clock string) (time.Time, error) {
	t, err := timezone.LocalToUTC(date, clock)
	if err != nil {
		return time.Time{}, apperrors.Invalid("%s: %s", field, err.Error())
	}
	return t, nil
}

// eventEnd is the instant after which the event no longer takes bookings.
func (o Options) eventEnd(e *models.Event) time.Time {
	end := e.StartsAt
	if e.EndsAt != nil {
		end = *e.EndsAt
	}
	return end.Add(o.EventGracePeriod)
}

func (s *EventService) Create(ctx context.Context, tenantID string, req *models.EventRequest) (*models.Event, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > maxEventNameLen {
		return nil, apperrors.Invalid("name must have 1 to %d characters", maxEventNameLen)
	}
	startsAt, err := localInstant("start", req.StartDate, req.StartTime)
	if err != nil {
		return nil, err
	}

	event := &models.Event{
		TenantID:       tenantID,
		Name:           name,
		Description:    trimPtr(req.Description),
		Venue:          trimPtr(req.Venue),
		StartsAt:       startsAt,
		TicketPrice:    req.TicketPrice,
		TicketCapacity: req.TicketCapacity,
		Status:         req.Status,
	}
	if event.Status == "" {
		event.Status = models.EventStatusDraft
	}
	if req.EndDate != nil || req.EndTime != nil {
		endsAt, err := localInstant("end", deref(req.EndDate), deref(req.EndTime))
		if err != nil {
			return nil, err
		}
		event.EndsAt = &endsAt
	}
	if err := validateEvent(event); err != nil {
		return nil, err
	}

	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.afterWrite(ctx, event)
	return withLocalTime(event), nil
}

func validateEvent(e *models.Event) error {
	if !eventStatuses[e.Status] {
		return apperrors.Invalid("invalid status %q", e.Status)
	}
	if e.EndsAt != nil && !e.EndsAt.After(e.StartsAt) {
		return apperrors.Invalid("end must be after start")
	}
	if e.TicketPrice.IsNegative() {
		return apperrors.Invalid("ticket_price cannot be negative")
	}
	if e.TicketCapacity < 0 {
		return apperrors.Invalid("ticket_capacity cannot be negative")
	}
	return nil
}

func (s *EventService) Get(ctx context.Context, tenantID, id string) (*models.Event, error) {
	if err := requireID("event", id); err != nil {
		return nil, err
	}
	event, err := s.eventRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, apperrors.NotFound("event")
	}
	return withLocalTime(event), nil
}

// GetPublic returns a published, active event.
func (s *EventService) GetPublic(ctx context.Context, tenantID, id string) (*models.Event, error) {
	event, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if event.Status != models.EventStatusPublished || !event.IsActive {
		return nil, apperrors.NotFound("event")
	}
	return event, nil
}

func (s *EventService) List(ctx context.Context, tenantID string, f models.EventFilter) (*models.Page[models.Event], error) {
	if f.Status != "" && !eventStatuses[f.Status] {
		return nil, apperrors.Invalid("invalid status %q", f.Status)
	}
	f.Pagination = normalizePage(f.Pagination)
	list, total, err := s.eventRepo.List(ctx, tenantID, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return models.NewPage(localTimes(list), total, f.Pagination), nil
}

// ListPublic lists the published events that have not finished yet. Results
// are cached per tenant and query; a search query goes to Elasticsearch
// when it is enabled and falls back to Postgres when it fails.
func (s *EventService) ListPublic(ctx context.Context, tenantID, query string, page models.Pagination) (*models.Page[models.Event], error) {
	page = normalizePage(page)
	query = strings.TrimSpace(query)
	cacheKey := fmt.Sprintf("%d:%d:%s", page.Page, page.PageSize, strings.ToLower(query))

	if s.cache != nil {
		data, ok, err := s.cache.GetEvents(ctx, tenantID, cacheKey)
		if err != nil {
			logger.WithContext(ctx).Warn("Event cache lookup failed", "error", err)
		} else if ok {
			var cached models.Page[models.Event]
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	openAfter := s.now().Add(-s.opts.EventGracePeriod)
	result, err := s.listPublic(ctx, tenantID, query, openAfter, page)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(result); err == nil {
			if err := s.cache.SetEvents(ctx, tenantID, cacheKey, data); err != nil {
				logger.WithContext(ctx).Warn("Failed to cache events", "error", err)
			}
		}
	}
	return result, nil
}

func (s *EventService) listPublic(ctx context.Context, tenantID, query string, openAfter time.Time, page models.Pagination) (*models.Page[models.Event], error) {
	if s.search != nil && query != "" {
		list, total, err := s.search.Search(ctx, search.SearchParams{
			TenantID:  tenantID,
			Query:     query,
			OpenAfter: &openAfter,
			Page:      page.Page,
			PageSize:  page.PageSize,
		})
		if err == nil {
			return models.NewPage(localTimes(list), total, page), nil
		}
		logger.WithContext(ctx).Warn("Event search failed, falling back to database", "error", err)
	}

	list, total, err := s.eventRepo.List(ctx, tenantID, models.EventFilter{
		Query:      query,
		PublicOnly: true,
		OpenAfter:  &openAfter,
		Pagination: page,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return models.NewPage(localTimes(list), total, page), nil
}

func (s *EventService) Update(ctx context.Context, tenantID, id string, req *models.EventUpdateRequest) (*models.Event, error) {
	event, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" || len(name) > maxEventNameLen {
			return nil, apperrors.Invalid("name must have 1 to %d characters", maxEventNameLen)
		}
		event.Name = name
	}
	if req.Description != nil {
		event.Description = trimPtr(req.Description)
	}
	if req.Venue != nil {
		event.Venue = trimPtr(req.Venue)
	}
	if req.StartDate != nil || req.StartTime != nil {
		date, clock := timezone.ToLocal(event.StartsAt)
		if req.StartDate != nil {
			date = *req.StartDate
		}
		if req.StartTime != nil {
			clock = *req.StartTime
		}
		if event.StartsAt, err = localInstant("start", date, clock); err != nil {
			return nil, err
		}
	}
	if req.EndDate != nil || req.EndTime != nil {
		var date, clock string
		if event.EndsAt != nil {
			date, clock = timezone.ToLocal(*event.EndsAt)
		}
		if req.EndDate != nil {
			date = *req.EndDate
		}
		if req.EndTime != nil {
			clock = *req.EndTime
		}
		// Both empty clears the end.
		if date == "" && clock == "" {
			event.EndsAt = nil
		} else {
			endsAt, err := localInstant("end", date, clock)
			if err != nil {
				return nil, err
			}
			event.EndsAt = &endsAt
		}
	}
	if req.TicketPrice != nil {
		event.TicketPrice = *req.TicketPrice
	}
	if req.TicketCapacity != nil {
		event.TicketCapacity = *req.TicketCapacity
	}
	if req.Status != nil {
		event.Status = *req.Status
	}
	if req.IsActive != nil {
		event.IsActive = req.IsActive.Bool()
	}
	if err := validateEvent(event); err != nil {
		return nil, err
	}

	if err := s.eventRepo.Update(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	s.afterWrite(ctx, event)
	return withLocalTime(event), nil
}

func (s *EventService) Archive(ctx context.Context, tenantID, id, actorID string) error {
	if err := requireID("event", id); err != nil {
		return err
	}
	if err := s.eventRepo.Archive(ctx, tenantID, id, actorID); err != nil {
		return err
	}

	if s.search != nil {
		if err := s.search.DeleteEvent(ctx, id); err != nil {
			logger.WithContext(ctx).Error("Failed to remove event from index", "error", err, "event_id", id)
		}
	}
	s.invalidate(ctx, tenantID)
	return nil
}

// UploadFlyer stores the flyer image and records its public URL.
func (s *EventService) UploadFlyer(ctx context.Context, tenantID, id string, upload *models.Upload) (*models.Event, error) {
	event, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	contentType, err := checkUpload(upload, imageTypes)
	if err != nil {
		return nil, err
	}
	if s.storage == nil {
		return nil, apperrors.ErrUpstream
	}

	url, err := s.storage.Upload(ctx, external.BucketFlyers, objectPath(tenantID, "event-"+event.ID, contentType), contentType, upload.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUpstream, err)
	}
	if err := s.eventRepo.SetFlyer(ctx, tenantID, event.ID, url); err != nil {
		return nil, fmt.Errorf("failed to save flyer: %w", err)
	}

	event.FlyerURL = &url
	s.afterWrite(ctx, event)
	return event, nil
}

// afterWrite keeps the search index and the public list cache in step with
// a written event. Failures are logged only.
func (s *EventService) afterWrite(ctx context.Context, event *models.Event) {
	if s.search != nil {
		if err := s.search.IndexEvent(ctx, event); err != nil {
			logger.WithContext(ctx).Error("Failed to index event", "error", err, "event_id", event.ID)
		}
	}
	s.invalidate(ctx, event.TenantID)
}

func (s *EventService) invalidate(ctx context.Context, tenantID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateEvents(ctx, tenantID); err != nil {
		logger.WithContext(ctx).Warn("Failed to invalidate event cache", "error", err)
	}
}

// Reindex rebuilds the search index from the database.
func (s *EventService) Reindex(ctx context.Context) (int, error) {
	if s.search == nil {
		return 0, errors.New("search is disabled")
	}
	events, err := s.eventRepo.ListForIndex(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load events: %w", err)
	}
	for i := range events {
		if err := s.search.IndexEvent(ctx, &events[i]); err != nil {
			return i, fmt.Errorf("failed to index event %s: %w", events[i].ID, err)
		}
	}
	return len(events), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
