package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/stan.go"

	"nightpass/internal/external"
	"nightpass/internal/logger"
	"nightpass/internal/models"
	"nightpass/internal/repository"
	"nightpass/internal/timezone"
)

// handleTimeout bounds the work done for one message, email delivery included.
const handleTimeout = 20 * time.Second

// errSkip marks messages that can never be delivered; they are acked.
var errSkip = errors.New("nothing to deliver")

// Mailer sends one transactional email.
type Mailer interface {
	Send(ctx context.Context, msg external.EmailMessage) (string, error)
}

type Handlers struct {
	repos         *repository.Repositories
	mailer        Mailer
	publicBaseURL string
}

func NewHandlers(repos *repository.Repositories, mailer Mailer, publicBaseURL string) *Handlers {
	return &Handlers{
		repos:         repos,
		mailer:        mailer,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

type emailData struct {
	Venue   string
	Name    string
	Event   string
	Date    string
	Time    string
	Table   string
	Guests  int
	Status  string
	Reason  string
	Order   string
	Tickets []ticketLink
}

// consume decodes a message and acks it unless fn failed with a retryable error.
func consume[T any](subject string, m *stan.Msg, fn func(context.Context, T) error) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	log := logger.Get().With("subject", subject, "sequence", m.Sequence)

	var event T
	if err := json.Unmarshal(m.Data, &event); err != nil {
		log.Error("Failed to unmarshal message, dropping", "error", err)
		ack(m)
		return
	}

	err := fn(ctx, event)
	switch {
	case err == nil:
		log.Info("Message processed")
	case errors.Is(err, errSkip):
		log.Debug("Message skipped", "reason", err)
	default:
		// Без ack сообщение будет доставлено повторно после AckWait
		log.Error("Failed to process message, will be redelivered", "error", err)
		return
	}
	ack(m)
}

func ack(m *stan.Msg) {
	if err := m.Ack(); err != nil {
		logger.Get().Error("Failed to ack message", "error", err, "subject", m.Subject)
	}
}

func (h *Handlers) HandleReservationCreated(m *stan.Msg) {
	consume(models.EventReservationCreated, m, h.ReservationCreated)
}

func (h *Handlers) HandleReservationStatusChanged(m *stan.Msg) {
	consume(models.EventReservationStatusChanged, m, h.ReservationStatusChanged)
}

func (h *Handlers) HandleTicketsIssued(m *stan.Msg) {
	consume(models.EventTicketsIssued, m, h.TicketsIssued)
}

func (h *Handlers) HandlePaymentFailed(m *stan.Msg) {
	consume(models.EventPaymentFailed, m, h.PaymentFailed)
}

// ReservationCreated acknowledges the request to the customer.
func (h *Handlers) ReservationCreated(ctx context.Context, ev models.ReservationCreatedEvent) error {
	res, venue, err := h.loadReservation(ctx, ev.TenantID, ev.ReservationID)
	if err != nil {
		return err
	}
	if res.Status != models.ReservationPending {
		// Staff already moved it on; the status mail covers it.
		return fmt.Errorf("%w: reservation is %s", errSkip, res.Status)
	}

	data, err := h.reservationData(ctx, res, venue)
	if err != nil {
		return err
	}
	return h.send(ctx, *res.CustomerEmail, "Recibimos tu reserva - "+data.Event, "reservation_received", data)
}

// ReservationStatusChanged tells the customer the outcome of the review.
func (h *Handlers) ReservationStatusChanged(ctx context.Context, ev models.ReservationStatusChangedEvent) error {
	var tmpl, subject string
	switch ev.To {
	case models.ReservationConfirmed:
		tmpl, subject = "reservation_confirmed", "Reserva confirmada"
	case models.ReservationRejected, models.ReservationCancelled:
		tmpl, subject = "reservation_closed", "Actualización de tu reserva"
	default:
		return fmt.Errorf("%w: status %s is not notified", errSkip, ev.To)
	}

	res, venue, err := h.loadReservation(ctx, ev.TenantID, ev.ReservationID)
	if err != nil {
		return err
	}
	data, err := h.reservationData(ctx, res, venue)
	if err != nil {
		return err
	}
	data.Status = statusLabel(ev.To)
	if ev.Reason != nil {
		data.Reason = *ev.Reason
	}
	return h.send(ctx, *res.CustomerEmail, subject+" - "+data.Event, tmpl, data)
}

// TicketsIssued mails the ticket links of one order or courtesy issuance.
func (h *Handlers) TicketsIssued(ctx context.Context, ev models.TicketsIssuedEvent) error {
	if ev.Email == nil || *ev.Email == "" {
		return fmt.Errorf("%w: tickets have no email", errSkip)
	}
	if len(ev.TicketIDs) == 0 {
		return fmt.Errorf("%w: no tickets", errSkip)
	}

	tenant, err := h.repos.Tenants.GetByID(ctx, ev.TenantID)
	if err != nil {
		return fmt.Errorf("failed to get tenant: %w", err)
	}
	if tenant == nil {
		return fmt.Errorf("%w: tenant %s is gone", errSkip, ev.TenantID)
	}
	event, err := h.repos.Events.GetByID(ctx, ev.TenantID, ev.EventID)
	if err != nil {
		return fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return fmt.Errorf("%w: event %s is gone", errSkip, ev.EventID)
	}

	data := h.eventData(tenant.Name, event)
	for _, id := range ev.TicketIDs {
		t, err := h.repos.Tickets.GetByID(ctx, ev.TenantID, id)
		if err != nil {
			return fmt.Errorf("failed to get ticket: %w", err)
		}
		if t == nil || t.Status == models.TicketCancelled {
			continue
		}
		if data.Name == "" {
			data.Name = t.HolderName
		}
		data.Tickets = append(data.Tickets, ticketLink{
			Number: len(data.Tickets) + 1,
			URL:    h.publicBaseURL + "/" + tenant.Slug + "/tickets/" + t.QRToken,
		})
	}
	if len(data.Tickets) == 0 {
		return fmt.Errorf("%w: all tickets were cancelled", errSkip)
	}

	return h.send(ctx, *ev.Email, "Tus entradas - "+event.Name, "tickets_issued", data)
}

// PaymentFailed tells the buyer the checkout did not go through.
func (h *Handlers) PaymentFailed(ctx context.Context, ev models.PaymentFailedEvent) error {
	p, err := h.repos.Payments.GetByOrderID(ctx, ev.OrderID)
	if err != nil {
		return fmt.Errorf("failed to get payment: %w", err)
	}
	if p == nil || p.BuyerEmail == "" {
		return fmt.Errorf("%w: payment %s has no buyer email", errSkip, ev.OrderID)
	}

	tenant, err := h.repos.Tenants.GetByID(ctx, p.TenantID)
	if err != nil {
		return fmt.Errorf("failed to get tenant: %w", err)
	}
	event, err := h.repos.Events.GetByID(ctx, p.TenantID, p.EventID)
	if err != nil {
		return fmt.Errorf("failed to get event: %w", err)
	}
	if tenant == nil || event == nil {
		return fmt.Errorf("%w: order %s lost its event", errSkip, ev.OrderID)
	}

	data := h.eventData(tenant.Name, event)
	data.Name = p.BuyerName
	data.Order = p.OrderID
	return h.send(ctx, p.BuyerEmail, "No pudimos procesar tu pago - "+event.Name, "payment_failed", data)
}

func (h *Handlers) loadReservation(ctx context.Context, tenantID, id string) (*models.TableReservation, *models.Tenant, error) {
	res, err := h.repos.Reservations.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	if res == nil {
		return nil, nil, fmt.Errorf("%w: reservation %s is gone", errSkip, id)
	}
	if res.CustomerEmail == nil || *res.CustomerEmail == "" {
		return nil, nil, fmt.Errorf("%w: reservation %s has no email", errSkip, id)
	}

	tenant, err := h.repos.Tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	if tenant == nil {
		return nil, nil, fmt.Errorf("%w: tenant %s is gone", errSkip, tenantID)
	}
	return res, tenant, nil
}

func (h *Handlers) reservationData(ctx context.Context, res *models.TableReservation, tenant *models.Tenant) (emailData, error) {
	event, err := h.repos.Events.GetByID(ctx, res.TenantID, res.EventID)
	if err != nil {
		return emailData{}, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return emailData{}, fmt.Errorf("%w: event %s is gone", errSkip, res.EventID)
	}

	data := h.eventData(tenant.Name, event)
	data.Name = res.CustomerName
	data.Table = res.TableName
	data.Guests = res.Guests
	return data, nil
}

func (h *Handlers) eventData(venue string, event *models.Event) emailData {
	date, clock := timezone.ToLocal(event.StartsAt)
	return emailData{
		Venue: venue,
		Event: event.Name,
		Date:  date,
		Time:  clock,
	}
}

func (h *Handlers) send(ctx context.Context, to, subject, tmpl string, data emailData) error {
	html, err := render(tmpl, data)
	if err != nil {
		return fmt.Errorf("%w: %v", errSkip, err)
	}
	id, err := h.mailer.Send(ctx, external.EmailMessage{
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return err
	}
	logger.WithContext(ctx).Info("Email sent", "template", tmpl, "message_id", id)
	return nil
}

func statusLabel(status string) string {
	switch status {
	case models.ReservationRejected:
		return "rechazada"
	case models.ReservationCancelled:
		return "cancelada"
	case models.ReservationConfirmed:
		return "confirmada"
	}
	return status
}

// LogMailer stands in for the email API when no key is configured.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, msg external.EmailMessage) (string, error) {
	logger.WithContext(ctx).Info("Email API not configured, message logged only",
		"to", msg.To,
		"subject", msg.Subject)
	return "", nil
}
