package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	apperrors "nightpass/internal/errors"
	"nightpass/internal/external"
	"nightpass/internal/logger"
	"nightpass/internal/messaging"
	"nightpass/internal/metrics"
	"nightpass/internal/models"
	"nightpass/internal/reports"
	"nightpass/internal/repository"
)

const (
	SourceLanding    = "landing"
	SourceBackoffice = "backoffice"

	reservationConstraint = "table_reservations_active_uniq"
)

// reservationTransitions lists the statuses each status may move to.
var reservationTransitions = map[string][]string{
	models.ReservationPending:   {models.ReservationConfirmed, models.ReservationRejected, models.ReservationCancelled},
	models.ReservationConfirmed: {models.ReservationCancelled, models.ReservationCompleted},
}

// CanTransition reports whether a reservation may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range reservationTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type ReservationService struct {
	reservationRepo *repository.ReservationRepository
	eventRepo       *repository.EventRepository
	tableRepo       *repository.TableRepository
	codes           *CodeService
	storage         *external.StorageClient
	publisher       messaging.Publisher
	metrics         *metrics.Metrics
	opts            Options
	now             func() time.Time
}

func NewReservationService(
	reservationRepo *repository.ReservationRepository,
	eventRepo *repository.EventRepository,
	tableRepo *repository.TableRepository,
	codes *CodeService,
	storage *external.StorageClient,
	publisher messaging.Publisher,
	m *metrics.Metrics,
	opts Options,
) *ReservationService {
	return &ReservationService{
		reservationRepo: reservationRepo,
		eventRepo:       eventRepo,
		tableRepo:       tableRepo,
		codes:           codes,
		storage:         storage,
		publisher:       publisher,
		metrics:         m,
		opts:            opts.withDefaults(),
		now:             time.Now,
	}
}

// openEvent loads an event that still takes reservations. Landing callers
// additionally require it to be published.
func (s *ReservationService) openEvent(ctx context.Context, tenantID, eventID string, public bool) (*models.Event, error) {
	if err := requireID("event", eventID); err != nil {
		return nil, err
	}
	event, err := s.eventRepo.GetByID(ctx, tenantID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil || (public && event.Status != models.EventStatusPublished) {
		return nil, apperrors.NotFound("event")
	}
	if !event.IsActive || !s.now().Before(s.opts.eventEnd(event)) {
		return nil, apperrors.ErrEventClosed
	}
	return event, nil
}

// Availability annotates every active table with its state for the event.
func (s *ReservationService) Availability(ctx context.Context, tenantID, eventID string, public bool) ([]models.TableAvailability, error) {
	if err := requireID("event", eventID); err != nil {
		return nil, err
	}
	event, err := s.eventRepo.GetByID(ctx, tenantID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil || (public && (event.Status != models.EventStatusPublished || !event.IsActive)) {
		return nil, apperrors.NotFound("event")
	}

	list, err := s.reservationRepo.Availability(ctx, tenantID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load availability: %w", err)
	}
	if list == nil {
		list = []models.TableAvailability{}
	}
	if public {
		// Landing visitors only see whether a table is free.
		for i := range list {
			list[i].ReservationID = nil
		}
	}
	return list, nil
}

func validateReservationRequest(req *models.ReservationRequest) error {
	if strings.TrimSpace(req.CustomerName) == "" {
		return apperrors.Invalid("customer_name is required")
	}
	if err := requireID("table", req.TableID); err != nil {
		return err
	}
	if e := trimPtr(req.CustomerEmail); e != nil {
		if _, err := mail.ParseAddress(*e); err != nil {
			return apperrors.Invalid("invalid email")
		}
	}
	if req.PromoterID != nil {
		if err := requireID("promoter", *req.PromoterID); err != nil {
			return err
		}
	}
	return nil
}

// Create books a table for an event. source is SourceLanding or
// SourceBackoffice; actorID is empty for landing requests.
func (s *ReservationService) Create(ctx context.Context, tenantID, actorID, source string, req *models.ReservationRequest) (*models.TableReservation, error) {
	if err := validateReservationRequest(req); err != nil {
		return nil, err
	}
	event, err := s.openEvent(ctx, tenantID, req.EventID, source == SourceLanding)
	if err != nil {
		return nil, err
	}

	table, err := s.tableRepo.GetByID(ctx, tenantID, req.TableID)
	if err != nil {
		return nil, fmt.Errorf("failed to get table: %w", err)
	}
	if table == nil || !table.IsActive {
		return nil, apperrors.NotFound("table")
	}

	guests := req.Guests
	if guests == 0 {
		guests = 1
	}
	if guests < 1 || guests > table.Capacity {
		return nil, apperrors.Invalid("guests must be between 1 and %d", table.Capacity)
	}

	res := &models.TableReservation{
		TenantID:         tenantID,
		EventID:          event.ID,
		TableID:          table.ID,
		CustomerName:     strings.TrimSpace(req.CustomerName),
		CustomerDocument: trimPtr(req.CustomerDocument),
		CustomerEmail:    trimPtr(req.CustomerEmail),
		CustomerPhone:    trimPtr(req.CustomerPhone),
		Guests:           guests,
		Status:           models.ReservationPending,
		PromoterID:       req.PromoterID,
		Notes:            trimPtr(req.Notes),
		TableName:        table.Name,
		EventName:        event.Name,
	}
	if actorID != "" {
		res.CreatedBy = &actorID
	}

	var code *models.Code
	if c := trimPtr(req.Code); c != nil {
		if code, err = s.codes.resolve(ctx, tenantID, event.ID, *c); err != nil {
			return nil, err
		}
		res.CodeID = &code.ID
		if res.PromoterID == nil {
			res.PromoterID = code.PromoterID
		}
	}

	holder, err := s.reservationRepo.ActiveForTable(ctx, event.ID, table.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check table: %w", err)
	}
	if holder != nil {
		return nil, apperrors.ErrTableUnavailable
	}

	if err := s.reservationRepo.Create(ctx, res); err != nil {
		if apperrors.IsUniqueViolation(err, reservationConstraint) {
			return nil, apperrors.ErrTableUnavailable
		}
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}

	if code != nil {
		if _, err := s.codes.Redeem(ctx, tenantID, code.ID); err != nil {
			// The reservation stands; the code simply ran out concurrently.
			logger.WithContext(ctx).Warn("Failed to redeem reservation code",
				"error", err,
				"reservation_id", res.ID,
				"code_id", code.ID)
		}
	}

	s.metrics.ReservationCreated(source)
	publish(ctx, s.publisher, models.EventReservationCreated, models.ReservationCreatedEvent{
		ReservationID: res.ID,
		TenantID:      tenantID,
		EventID:       event.ID,
		TableID:       table.ID,
		Source:        source,
		Timestamp:     s.now().UTC(),
	})

	logger.WithContext(ctx).Info("Reservation created",
		"reservation_id", res.ID,
		"event_id", event.ID,
		"table_id", table.ID,
		"source", source)

	return res, nil
}

func (s *ReservationService) Get(ctx context.Context, tenantID, id string) (*models.TableReservation, error) {
	if err := requireID("reservation", id); err != nil {
		return nil, err
	}
	res, err := s.reservationRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	if res == nil {
		return nil, apperrors.NotFound("reservation")
	}
	return res, nil
}

func (s *ReservationService) List(ctx context.Context, tenantID string, f models.ReservationFilter) (*models.Page[models.TableReservation], error) {
	if f.EventID != "" {
		if err := requireID("event", f.EventID); err != nil {
			return nil, err
		}
	}
	if f.TableID != "" {
		if err := requireID("table", f.TableID); err != nil {
			return nil, err
		}
	}
	f.Pagination = normalizePage(f.Pagination)
	list, total, err := s.reservationRepo.List(ctx, tenantID, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return models.NewPage(list, total, f.Pagination), nil
}

// ChangeStatus applies a status transition. The update is conditional on
// the current status so concurrent changes cannot both succeed.
func (s *ReservationService) ChangeStatus(ctx context.Context, tenantID, id, actorID string, req *models.ReservationStatusRequest) (*models.TableReservation, error) {
	res, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(res.Status, req.Status) {
		return nil, apperrors.ErrInvalidTransition
	}

	ok, err := s.reservationRepo.UpdateStatus(ctx, tenantID, id, res.Status, req.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to update reservation: %w", err)
	}
	if !ok {
		return nil, apperrors.ErrInvalidTransition
	}

	from := res.Status
	res.Status = req.Status
	s.metrics.ReservationStatusChanged(req.Status)

	ev := models.ReservationStatusChangedEvent{
		ReservationID: id,
		TenantID:      tenantID,
		From:          from,
		To:            req.Status,
		Reason:        trimPtr(req.Reason),
		Timestamp:     s.now().UTC(),
	}
	if actorID != "" {
		ev.ChangedBy = &actorID
	}
	publish(ctx, s.publisher, models.EventReservationStatusChanged, ev)

	return res, nil
}

func (s *ReservationService) Archive(ctx context.Context, tenantID, id, actorID string) error {
	if err := requireID("reservation", id); err != nil {
		return err
	}
	return s.reservationRepo.Archive(ctx, tenantID, id, actorID)
}

// UploadVoucher attaches a payment voucher to a pending reservation.
func (s *ReservationService) UploadVoucher(ctx context.Context, tenantID, id string, upload *models.Upload) (*models.TableReservation, error) {
	res, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if res.Status != models.ReservationPending {
		return nil, apperrors.ErrInvalidTransition
	}
	contentType, err := checkUpload(upload, voucherTypes)
	if err != nil {
		return nil, err
	}
	if s.storage == nil {
		return nil, apperrors.ErrUpstream
	}

	url, err := s.storage.Upload(ctx, external.BucketVouchers, objectPath(tenantID, "reservation-"+res.ID, contentType), contentType, upload.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUpstream, err)
	}
	if err := s.reservationRepo.SetVoucher(ctx, tenantID, res.ID, url); err != nil {
		return nil, fmt.Errorf("failed to save voucher: %w", err)
	}
	res.VoucherURL = &url
	return res, nil
}

// ExpirePending cancels pending reservations older than the pending TTL and
// returns how many were cancelled.
func (s *ReservationService) ExpirePending(ctx context.Context, limit int) (int, error) {
	cutoff := s.now().Add(-s.opts.PendingTTL)
	expired, err := s.reservationRepo.ExpirePending(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to expire reservations: %w", err)
	}

	reason := "pending reservation expired"
	for _, res := range expired {
		s.metrics.ReservationStatusChanged(models.ReservationCancelled)
		publish(ctx, s.publisher, models.EventReservationStatusChanged, models.ReservationStatusChangedEvent{
			ReservationID: res.ID,
			TenantID:      res.TenantID,
			From:          models.ReservationPending,
			To:            models.ReservationCancelled,
			Reason:        &reason,
			Timestamp:     s.now().UTC(),
		})
	}
	return len(expired), nil
}

// Export renders every reservation of an event as a workbook.
func (s *ReservationService) Export(ctx context.Context, tenantID, eventID string) ([]byte, *models.Event, error) {
	if err := requireID("event", eventID); err != nil {
		return nil, nil, err
	}
	event, err := s.eventRepo.GetByID(ctx, tenantID, eventID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, nil, apperrors.NotFound("event")
	}

	list, _, err := s.reservationRepo.List(ctx, tenantID, models.ReservationFilter{EventID: eventID})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	data, err := reports.Reservations(event, list)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to render reservations: %w", err)
	}
	return data, event, nil
}
