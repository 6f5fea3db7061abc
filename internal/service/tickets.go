package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

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
	PurposeTickets = "tickets"

	ChannelCheckout = "checkout"
	ChannelFree     = "free"
	ChannelCourtesy = "courtesy"
)

var hundred = decimal.NewFromInt(100)

type TicketService struct {
	ticketRepo  *repository.TicketRepository
	paymentRepo *repository.PaymentRepository
	eventRepo   *repository.EventRepository
	codes       *CodeService
	payment     *external.PaymentClient
	publisher   messaging.Publisher
	metrics     *metrics.Metrics
	opts        Options
	now         func() time.Time
}

func NewTicketService(
	ticketRepo *repository.TicketRepository,
	paymentRepo *repository.PaymentRepository,
	eventRepo *repository.EventRepository,
	codes *CodeService,
	payment *external.PaymentClient,
	publisher messaging.Publisher,
	m *metrics.Metrics,
	opts Options,
) *TicketService {
	return &TicketService{
		ticketRepo:  ticketRepo,
		paymentRepo: paymentRepo,
		eventRepo:   eventRepo,
		codes:       codes,
		payment:     payment,
		publisher:   publisher,
		metrics:     m,
		opts:        opts.withDefaults(),
		now:         time.Now,
	}
}

// AmountCents converts a decimal amount to the gateway's minor units.
func AmountCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// saleEvent loads an event that still sells tickets.
func (s *TicketService) saleEvent(ctx context.Context, tenantID, eventID string) (*models.Event, error) {
	if err := requireID("event", eventID); err != nil {
		return nil, err
	}
	event, err := s.eventRepo.GetByID(ctx, tenantID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil || event.Status != models.EventStatusPublished {
		return nil, apperrors.NotFound("event")
	}
	if !event.IsActive || !s.now().Before(event.StartsAt.Add(s.opts.EventGracePeriod)) {
		return nil, apperrors.ErrEventClosed
	}
	return event, nil
}

// checkCapacity fails with ErrSoldOut when quantity more tickets would
// exceed the event capacity. Zero capacity is unlimited.
func (s *TicketService) checkCapacity(ctx context.Context, event *models.Event, quantity int) error {
	if event.TicketCapacity == 0 {
		return nil
	}
	sold, err := s.ticketRepo.CountActive(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("failed to count tickets: %w", err)
	}
	if sold+quantity > event.TicketCapacity {
		return apperrors.ErrSoldOut
	}
	return nil
}

func (s *TicketService) validQuantity(q int) (int, error) {
	if q == 0 {
		q = 1
	}
	if q < 1 || q > s.opts.MaxTicketsPerOrder {
		return 0, apperrors.Invalid("quantity must be between 1 and %d", s.opts.MaxTicketsPerOrder)
	}
	return q, nil
}

// Checkout starts a ticket purchase. Courtesy codes and free events issue
// the tickets at once; otherwise a pending payment is opened at the gateway
// and its URL returned.
func (s *TicketService) Checkout(ctx context.Context, tenantID, tenantSlug string, req *models.CheckoutRequest) (*models.CheckoutResponse, error) {
	quantity, err := s.validQuantity(req.Quantity)
	if err != nil {
		return nil, err
	}
	buyerName := strings.TrimSpace(req.BuyerName)
	if buyerName == "" {
		return nil, apperrors.Invalid("buyer_name is required")
	}
	buyerEmail := strings.ToLower(strings.TrimSpace(req.BuyerEmail))
	if _, err := mail.ParseAddress(buyerEmail); err != nil {
		return nil, apperrors.Invalid("invalid email")
	}

	event, err := s.saleEvent(ctx, tenantID, req.EventID)
	if err != nil {
		return nil, err
	}

	var code *models.Code
	if c := trimPtr(req.Code); c != nil {
		if code, err = s.codes.resolve(ctx, tenantID, event.ID, *c); err != nil {
			return nil, err
		}
		if code.Type == models.CodeTypeCourtesy {
			quantity = 1
		}
	}

	if err := s.checkCapacity(ctx, event, quantity); err != nil {
		return nil, err
	}

	holder := ticketHolder{
		name:     buyerName,
		document: trimPtr(req.BuyerDocument),
		email:    &buyerEmail,
	}

	if (code != nil && code.Type == models.CodeTypeCourtesy) || event.TicketPrice.IsZero() {
		channel := ChannelFree
		var codeID *string
		if code != nil {
			if _, err := s.codes.Redeem(ctx, tenantID, code.ID); err != nil {
				return nil, err
			}
			channel = ChannelCourtesy
			codeID = &code.ID
		}
		tickets, err := s.issue(ctx, event, holder, quantity, decimal.Zero, codeID, nil, channel)
		if err != nil {
			return nil, err
		}
		return &models.CheckoutResponse{
			OrderID:  uuid.New().String(),
			Status:   models.PaymentPaid,
			Amount:   decimal.Zero,
			Currency: s.currency(),
			Tickets:  tickets,
		}, nil
	}

	if s.payment == nil {
		return nil, apperrors.ErrUpstream
	}

	p := &models.Payment{
		TenantID:      tenantID,
		EventID:       event.ID,
		OrderID:       uuid.New().String(),
		Purpose:       PurposeTickets,
		Quantity:      quantity,
		Amount:        event.TicketPrice.Mul(decimal.NewFromInt(int64(quantity))),
		Currency:      s.currency(),
		Status:        models.PaymentPending,
		BuyerName:     buyerName,
		BuyerDocument: holder.document,
		BuyerEmail:    buyerEmail,
	}
	if code != nil {
		p.CodeID = &code.ID
	}
	if err := s.paymentRepo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	gw, err := s.payment.Init(ctx, external.InitParams{
		Amount:          AmountCents(p.Amount),
		OrderID:         p.OrderID,
		Description:     fmt.Sprintf("%d x %s", quantity, event.Name),
		Email:           buyerEmail,
		SuccessURL:      s.returnURL(tenantSlug, "success", p.OrderID),
		FailURL:         s.returnURL(tenantSlug, "failed", p.OrderID),
		NotificationURL: s.opts.NotificationURL,
	})
	if err != nil {
		if _, terr := s.paymentRepo.TransitionStatus(ctx, p.ID, models.PaymentPending, models.PaymentFailed); terr != nil {
			logger.WithContext(ctx).Error("Failed to mark payment failed", "error", terr, "order_id", p.OrderID)
		}
		s.metrics.Payment(models.PaymentFailed)
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUpstream, err)
	}

	if err := s.paymentRepo.SetProvider(ctx, p.ID, gw.PaymentID, gw.PaymentURL); err != nil {
		return nil, fmt.Errorf("failed to save gateway payment: %w", err)
	}
	s.metrics.Payment(models.PaymentPending)

	logger.WithContext(ctx).Info("Checkout started",
		"order_id", p.OrderID,
		"event_id", event.ID,
		"quantity", quantity)

	return &models.CheckoutResponse{
		OrderID:    p.OrderID,
		Status:     p.Status,
		Amount:     p.Amount,
		Currency:   p.Currency,
		PaymentURL: &gw.PaymentURL,
	}, nil
}

func (s *TicketService) currency() string {
	if s.payment == nil {
		return "PEN"
	}
	return s.payment.Currency()
}

func (s *TicketService) returnURL(tenantSlug, result, orderID string) string {
	if s.opts.PublicBaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/checkout/%s?order=%s",
		strings.TrimRight(s.opts.PublicBaseURL, "/"), url.PathEscape(tenantSlug), result, url.QueryEscape(orderID))
}

type ticketHolder struct {
	name     string
	document *string
	email    *string
}

// newTickets builds quantity tickets, each with its own QR token.
func newTickets(event *models.Event, h ticketHolder, quantity int, price decimal.Decimal, codeID, paymentID *string) []models.Ticket {
	tickets := make([]models.Ticket, quantity)
	for i := range tickets {
		tickets[i] = models.Ticket{
			TenantID:       event.TenantID,
			EventID:        event.ID,
			HolderName:     h.name,
			HolderDocument: h.document,
			HolderEmail:    h.email,
			CodeID:         codeID,
			PaymentID:      paymentID,
			Price:          price,
			Status:         models.TicketIssued,
			QRToken:        uuid.New().String(),
		}
	}
	return tickets
}

// issue creates tickets that need no payment and announces them.
func (s *TicketService) issue(ctx context.Context, event *models.Event, h ticketHolder, quantity int, price decimal.Decimal, codeID, paymentID *string, channel string) ([]models.Ticket, error) {
	tickets := newTickets(event, h, quantity, price, codeID, paymentID)
	if err := s.ticketRepo.CreateBatch(ctx, tickets); err != nil {
		return nil, fmt.Errorf("failed to issue tickets: %w", err)
	}
	s.announce(ctx, event, tickets, h.email, paymentID, channel)
	return tickets, nil
}

func (s *TicketService) announce(ctx context.Context, event *models.Event, tickets []models.Ticket, email, paymentID *string, channel string) {
	ids := make([]string, len(tickets))
	for i := range tickets {
		ids[i] = tickets[i].ID
	}
	s.metrics.TicketsIssued(channel, len(tickets))
	publish(ctx, s.publisher, models.EventTicketsIssued, models.TicketsIssuedEvent{
		TenantID:  event.TenantID,
		EventID:   event.ID,
		PaymentID: paymentID,
		TicketIDs: ids,
		Email:     email,
		Channel:   channel,
		Timestamp: s.now().UTC(),
	})
}

// HandleNotification applies a gateway webhook. Only a pending payment
// transitions, so repeated notifications are no-ops. A confirmation is
// applied together with its tickets; when that fails the payment stays
// pending and the gateway's redelivery retries it.
func (s *TicketService) HandleNotification(ctx context.Context, n models.PaymentNotification) error {
	if s.payment == nil {
		return apperrors.ErrUpstream
	}
	if !s.payment.VerifyNotification(n) {
		return apperrors.ErrUnauthorized
	}
	log := logger.WithContext(ctx).With("order_id", n.OrderID, "gateway_status", n.Status)

	p, err := s.paymentRepo.GetByOrderID(ctx, n.OrderID)
	if err != nil {
		return fmt.Errorf("failed to get payment: %w", err)
	}
	if p == nil {
		return apperrors.NotFound("payment")
	}

	switch n.Status {
	case external.GatewayConfirmed:
		if n.Amount != AmountCents(p.Amount) {
			log.Error("Notification amount mismatch", "expected", AmountCents(p.Amount), "got", n.Amount)
			return apperrors.Invalid("amount mismatch")
		}
		if p.Status != models.PaymentPending {
			settled(log, p.Status)
			return nil
		}
		return s.fulfil(ctx, p, log)

	case external.GatewayRejected, external.GatewayCancelled, external.GatewayExpired:
		to := models.PaymentFailed
		if n.Status == external.GatewayExpired {
			to = models.PaymentExpired
		}
		ok, err := s.paymentRepo.TransitionStatus(ctx, p.ID, models.PaymentPending, to)
		if err != nil {
			return fmt.Errorf("failed to mark payment %s: %w", to, err)
		}
		if ok {
			s.metrics.Payment(to)
			s.paymentFailed(ctx, p, to, "gateway reported "+strings.ToLower(n.Status))
		}
		return nil

	default:
		log.Debug("Ignoring intermediate gateway status")
		return nil
	}
}

// settled logs a confirmation for an order that is no longer pending. A
// confirmed charge on a failed or expired order has no tickets and must be
// refunded by hand.
func settled(log *slog.Logger, status string) {
	if status == models.PaymentPaid {
		log.Info("Notification already applied")
		return
	}
	log.Error("Payment confirmed for a closed order, refund required", "payment_status", status)
}

// fulfil marks a paid order and issues its tickets atomically, then consumes
// its code.
func (s *TicketService) fulfil(ctx context.Context, p *models.Payment, log *slog.Logger) error {
	event, err := s.eventRepo.GetByID(ctx, p.TenantID, p.EventID)
	if err != nil {
		return fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return apperrors.NotFound("event")
	}

	email := p.BuyerEmail
	holder := ticketHolder{name: p.BuyerName, document: p.BuyerDocument, email: &email}
	price := p.Amount.Div(decimal.NewFromInt(int64(p.Quantity)))
	tickets := newTickets(event, holder, p.Quantity, price, p.CodeID, &p.ID)

	ok, err := s.ticketRepo.CreateForPayment(ctx, p.ID, tickets)
	if err != nil {
		return fmt.Errorf("failed to issue tickets: %w", err)
	}
	if !ok {
		// Another delivery or the expiration job got there first.
		current, err := s.paymentRepo.GetByOrderID(ctx, p.OrderID)
		if err != nil {
			return fmt.Errorf("failed to get payment: %w", err)
		}
		if current != nil {
			settled(log, current.Status)
		}
		return nil
	}
	s.metrics.Payment(models.PaymentPaid)

	if p.CodeID != nil {
		if _, err := s.codes.Redeem(ctx, p.TenantID, *p.CodeID); err != nil {
			// Paid orders are honoured even when the code ran out meanwhile.
			log.Warn("Failed to redeem checkout code", "error", err)
		}
	}

	s.announce(ctx, event, tickets, &email, &p.ID, ChannelCheckout)
	return nil
}

func (s *TicketService) paymentFailed(ctx context.Context, p *models.Payment, status, reason string) {
	publish(ctx, s.publisher, models.EventPaymentFailed, models.PaymentFailedEvent{
		TenantID:  p.TenantID,
		PaymentID: p.ID,
		OrderID:   p.OrderID,
		Status:    status,
		Reason:    reason,
		Timestamp: s.now().UTC(),
	})
}

// PaymentStatus reports an order and, once paid, its tickets.
func (s *TicketService) PaymentStatus(ctx context.Context, tenantID, orderID string) (*models.CheckoutResponse, error) {
	if err := requireID("order", orderID); err != nil {
		return nil, err
	}
	p, err := s.paymentRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if p == nil || p.TenantID != tenantID {
		return nil, apperrors.NotFound("payment")
	}

	resp := &models.CheckoutResponse{
		OrderID:    p.OrderID,
		Status:     p.Status,
		Amount:     p.Amount,
		Currency:   p.Currency,
		PaymentURL: p.PaymentURL,
	}
	if p.Status == models.PaymentPaid {
		if resp.Tickets, err = s.ticketRepo.ListByPayment(ctx, p.ID); err != nil {
			return nil, fmt.Errorf("failed to list tickets: %w", err)
		}
	}
	return resp, nil
}

// Courtesy issues free tickets from the backoffice.
func (s *TicketService) Courtesy(ctx context.Context, tenantID string, req *models.CourtesyRequest) ([]models.Ticket, error) {
	quantity, err := s.validQuantity(req.Quantity)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.HolderName)
	if name == "" {
		return nil, apperrors.Invalid("holder_name is required")
	}
	email := trimPtr(req.HolderEmail)
	if email != nil {
		if _, err := mail.ParseAddress(*email); err != nil {
			return nil, apperrors.Invalid("invalid email")
		}
	}

	if err := requireID("event", req.EventID); err != nil {
		return nil, err
	}
	event, err := s.eventRepo.GetByID(ctx, tenantID, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, apperrors.NotFound("event")
	}
	if err := s.checkCapacity(ctx, event, quantity); err != nil {
		return nil, err
	}

	return s.issue(ctx, event, ticketHolder{name: name, document: trimPtr(req.HolderDocument), email: email},
		quantity, decimal.Zero, nil, nil, ChannelCourtesy)
}

func (s *TicketService) List(ctx context.Context, tenantID string, f models.TicketFilter) (*models.Page[models.Ticket], error) {
	if f.EventID != "" {
		if err := requireID("event", f.EventID); err != nil {
			return nil, err
		}
	}
	f.Pagination = normalizePage(f.Pagination)
	list, total, err := s.ticketRepo.List(ctx, tenantID, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return models.NewPage(list, total, f.Pagination), nil
}

// Scan checks a ticket in at the door.
func (s *TicketService) Scan(ctx context.Context, tenantID, staffID, qrToken string) (*models.Ticket, error) {
	qrToken = strings.TrimSpace(qrToken)
	if !ValidID(qrToken) {
		return nil, apperrors.NotFound("ticket")
	}
	t, err := s.ticketRepo.Scan(ctx, tenantID, qrToken, staffID)
	if err != nil {
		return nil, err
	}
	logger.WithContext(ctx).Info("Ticket checked in", "ticket_id", t.ID, "event_id", t.EventID)
	return t, nil
}

func (s *TicketService) Cancel(ctx context.Context, tenantID, id string) error {
	if err := requireID("ticket", id); err != nil {
		return err
	}
	t, err := s.ticketRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to get ticket: %w", err)
	}
	if t == nil {
		return apperrors.NotFound("ticket")
	}
	return s.ticketRepo.Cancel(ctx, tenantID, id)
}

// ExpirePayments closes pending payments older than the payment timeout and
// cancels them at the gateway. Gateway errors are logged only.
func (s *TicketService) ExpirePayments(ctx context.Context, limit int) (int, error) {
	cutoff := s.now().Add(-s.opts.PaymentTimeout)
	pending, err := s.paymentRepo.ListExpiredPending(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending payments: %w", err)
	}

	expired := 0
	for i := range pending {
		p := &pending[i]
		ok, err := s.paymentRepo.TransitionStatus(ctx, p.ID, models.PaymentPending, models.PaymentExpired)
		if err != nil {
			return expired, fmt.Errorf("failed to expire payment %s: %w", p.OrderID, err)
		}
		if !ok {
			continue
		}
		expired++
		s.metrics.Payment(models.PaymentExpired)

		if s.payment != nil && p.ProviderPaymentID != nil {
			if err := s.payment.Cancel(ctx, *p.ProviderPaymentID, "payment timeout"); err != nil {
				logger.WithContext(ctx).Warn("Failed to cancel gateway payment",
					"error", err,
					"order_id", p.OrderID)
			}
		}
		s.paymentFailed(ctx, p, models.PaymentExpired, "payment timeout")
	}
	return expired, nil
}

// Export renders every ticket of an event as a workbook.
func (s *TicketService) Export(ctx context.Context, tenantID, eventID string) ([]byte, *models.Event, error) {
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

	list, _, err := s.ticketRepo.List(ctx, tenantID, models.TicketFilter{EventID: eventID})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	data, err := reports.Tickets(event, list)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to render tickets: %w", err)
	}
	return data, event, nil
}
