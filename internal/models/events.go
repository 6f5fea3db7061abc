package models

import "time"

// NATS subjects
const (
	EventReservationCreated       = "reservation.created"
	EventReservationStatusChanged = "reservation.status_changed"
	EventTicketsIssued            = "tickets.issued"
	EventPaymentFailed            = "payment.failed"
)

// ReservationCreatedEvent represents a new table reservation
type ReservationCreatedEvent struct {
	ReservationID string    `json:"reservation_id"`
	TenantID      string    `json:"tenant_id"`
	EventID       string    `json:"event_id"`
	TableID       string    `json:"table_id"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
}

// ReservationStatusChangedEvent represents a reservation status transition
type ReservationStatusChangedEvent struct {
	ReservationID string    `json:"reservation_id"`
	TenantID      string    `json:"tenant_id"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	Reason        *string   `json:"reason,omitempty"`
	ChangedBy     *string   `json:"changed_by,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// TicketsIssuedEvent is published once per order or courtesy issuance
type TicketsIssuedEvent struct {
	TenantID  string    `json:"tenant_id"`
	EventID   string    `json:"event_id"`
	PaymentID *string   `json:"payment_id,omitempty"`
	TicketIDs []string  `json:"ticket_ids"`
	Email     *string   `json:"email,omitempty"`
	Channel   string    `json:"channel"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentFailedEvent represents a rejected or expired payment
type PaymentFailedEvent struct {
	TenantID  string    `json:"tenant_id"`
	PaymentID string    `json:"payment_id"`
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}
