package consumers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nightpass/internal/database"
	"nightpass/internal/external"
	"nightpass/internal/models"
	"nightpass/internal/repository"
)

const (
	tenantID      = "5b0c6a51-3c1e-4b7e-9f53-2a3f1f0e9a10"
	eventID       = "8d7f3c2e-1a4b-4c5d-9e6f-7a8b9c0d1e2f"
	tableID       = "1f2e3d4c-5b6a-4798-8a7b-6c5d4e3f2a1b"
	reservationID = "9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d"
	ticketA       = "7e57a000-0000-4000-8000-00000000000a"
	ticketB       = "7e57b000-0000-4000-8000-00000000000b"
)

var (
	tenantCols = []string{"id", "slug", "name", "is_active", "created_at"}
	eventCols  = []string{"id", "tenant_id", "name", "description", "venue", "starts_at", "ends_at", "flyer_url",
		"ticket_price", "ticket_capacity", "status", "is_active", "created_at", "updated_at"}
	reservationCols = []string{"id", "tenant_id", "event_id", "table_id", "person_id", "customer_name",
		"customer_document", "customer_email", "customer_phone", "guests", "status", "promoter_id",
		"code_id", "voucher_url", "notes", "created_by", "created_at", "updated_at", "table_name", "event_name"}
	ticketCols = []string{"id", "tenant_id", "event_id", "person_id", "holder_name", "holder_document", "holder_email",
		"code_id", "payment_id", "price", "status", "qr_token", "used_at", "used_by", "created_at"}
	paymentCols = []string{"id", "tenant_id", "event_id", "order_id", "provider_payment_id", "purpose", "quantity",
		"amount", "currency", "status", "buyer_name", "buyer_document", "buyer_email", "code_id", "payment_url",
		"created_at", "updated_at"}
)

var now = time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)

type fakeMailer struct {
	sent []external.EmailMessage
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg external.EmailMessage) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return "msg-1", nil
}

func setup(t *testing.T) (*Handlers, *fakeMailer, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	mailer := &fakeMailer{}
	repos := repository.NewRepositories(&database.DB{DB: mockDB})
	return NewHandlers(repos, mailer, "https://club.example/"), mailer, mock
}

func expectTenant(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`FROM tenants WHERE id = \$1`).
		WithArgs(tenantID).
		WillReturnRows(sqlmock.NewRows(tenantCols).AddRow(tenantID, "azul", "Club Azul", true, now))
}

func expectEvent(mock sqlmock.Sqlmock) {
	// 04:00 UTC is 23:00 of the previous day in Lima.
	startsAt := time.Date(2025, 3, 16, 4, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM events\s+WHERE id = \$1`).
		WithArgs(eventID, tenantID).
		WillReturnRows(sqlmock.NewRows(eventCols).AddRow(
			eventID, tenantID, "Noche de Salsa", nil, nil, startsAt, nil, nil,
			"45.50", 100, models.EventStatusPublished, true, now, now))
}

func expectReservation(mock sqlmock.Sqlmock, status string, email interface{}) {
	mock.ExpectQuery(`FROM table_reservations r`).
		WithArgs(reservationID, tenantID).
		WillReturnRows(sqlmock.NewRows(reservationCols).AddRow(
			reservationID, tenantID, eventID, tableID, nil, "Lucía Quispe",
			"45678912", email, nil, 6, status, nil,
			nil, nil, nil, nil, now, now, "VIP 1", "Noche de Salsa"))
}

func expectTicket(mock sqlmock.Sqlmock, id, status, token string) {
	mock.ExpectQuery(`FROM tickets WHERE id = \$1`).
		WithArgs(id, tenantID).
		WillReturnRows(sqlmock.NewRows(ticketCols).AddRow(
			id, tenantID, eventID, nil, "Lucía Quispe", nil, "lucia@mail.pe",
			nil, nil, "45.50", status, token, nil, nil, now))
}

func TestReservationCreated(t *testing.T) {
	h, mailer, mock := setup(t)
	expectReservation(mock, models.ReservationPending, "lucia@mail.pe")
	expectTenant(mock)
	expectEvent(mock)

	err := h.ReservationCreated(context.Background(), models.ReservationCreatedEvent{
		ReservationID: reservationID,
		TenantID:      tenantID,
	})
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)

	msg := mailer.sent[0]
	assert.Equal(t, []string{"lucia@mail.pe"}, msg.To)
	assert.Contains(t, msg.Subject, "Noche de Salsa")
	assert.Contains(t, msg.HTML, "VIP 1")
	assert.Contains(t, msg.HTML, "2025-03-15 23:00")
	assert.Contains(t, msg.HTML, "Club Azul")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationCreatedWithoutEmail(t *testing.T) {
	h, mailer, mock := setup(t)
	expectReservation(mock, models.ReservationPending, nil)

	err := h.ReservationCreated(context.Background(), models.ReservationCreatedEvent{
		ReservationID: reservationID,
		TenantID:      tenantID,
	})
	assert.ErrorIs(t, err, errSkip)
	assert.Empty(t, mailer.sent)
}

func TestReservationStatusChanged(t *testing.T) {
	t.Run("rejected with reason", func(t *testing.T) {
		h, mailer, mock := setup(t)
		expectReservation(mock, models.ReservationRejected, "lucia@mail.pe")
		expectTenant(mock)
		expectEvent(mock)

		reason := "Mesa <no disponible>"
		err := h.ReservationStatusChanged(context.Background(), models.ReservationStatusChangedEvent{
			ReservationID: reservationID,
			TenantID:      tenantID,
			From:          models.ReservationPending,
			To:            models.ReservationRejected,
			Reason:        &reason,
		})
		require.NoError(t, err)
		require.Len(t, mailer.sent, 1)
		assert.Contains(t, mailer.sent[0].HTML, "rechazada")
		assert.Contains(t, mailer.sent[0].HTML, "Mesa &lt;no disponible&gt;")
	})

	t.Run("completed is not notified", func(t *testing.T) {
		h, mailer, _ := setup(t)
		err := h.ReservationStatusChanged(context.Background(), models.ReservationStatusChangedEvent{
			ReservationID: reservationID,
			TenantID:      tenantID,
			To:            models.ReservationCompleted,
		})
		assert.ErrorIs(t, err, errSkip)
		assert.Empty(t, mailer.sent)
	})

	t.Run("mailer failure is retried", func(t *testing.T) {
		h, mailer, mock := setup(t)
		mailer.err = errors.New("email API returned status 503")
		expectReservation(mock, models.ReservationConfirmed, "lucia@mail.pe")
		expectTenant(mock)
		expectEvent(mock)

		err := h.ReservationStatusChanged(context.Background(), models.ReservationStatusChangedEvent{
			ReservationID: reservationID,
			TenantID:      tenantID,
			To:            models.ReservationConfirmed,
		})
		require.Error(t, err)
		assert.NotErrorIs(t, err, errSkip)
	})
}

func TestTicketsIssued(t *testing.T) {
	h, mailer, mock := setup(t)
	expectTenant(mock)
	expectEvent(mock)
	expectTicket(mock, ticketA, models.TicketIssued, "tok-a")
	expectTicket(mock, ticketB, models.TicketCancelled, "tok-b")

	email := "lucia@mail.pe"
	err := h.TicketsIssued(context.Background(), models.TicketsIssuedEvent{
		TenantID:  tenantID,
		EventID:   eventID,
		TicketIDs: []string{ticketA, ticketB},
		Email:     &email,
	})
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)

	html := mailer.sent[0].HTML
	assert.Contains(t, html, "https://club.example/azul/tickets/tok-a")
	assert.NotContains(t, html, "tok-b")
	assert.Contains(t, html, "Lucía Quispe")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketsIssuedWithoutEmail(t *testing.T) {
	h, mailer, _ := setup(t)
	err := h.TicketsIssued(context.Background(), models.TicketsIssuedEvent{
		TenantID:  tenantID,
		EventID:   eventID,
		TicketIDs: []string{ticketA},
	})
	assert.ErrorIs(t, err, errSkip)
	assert.Empty(t, mailer.sent)
}

func TestPaymentFailed(t *testing.T) {
	t.Run("mails the buyer", func(t *testing.T) {
		h, mailer, mock := setup(t)
		mock.ExpectQuery(`FROM payments WHERE order_id = \$1`).
			WithArgs("0dde0000-0000-4000-8000-000000000001").
			WillReturnRows(sqlmock.NewRows(paymentCols).AddRow(
				"pay-1", tenantID, eventID, "0dde0000-0000-4000-8000-000000000001", nil, "tickets", 2,
				"91.00", "PEN", models.PaymentFailed, "Lucía Quispe", nil, "lucia@mail.pe", nil, nil, now, now))
		expectTenant(mock)
		expectEvent(mock)

		err := h.PaymentFailed(context.Background(), models.PaymentFailedEvent{
			TenantID: tenantID,
			OrderID:  "0dde0000-0000-4000-8000-000000000001",
			Status:   models.PaymentFailed,
		})
		require.NoError(t, err)
		require.Len(t, mailer.sent, 1)
		assert.Contains(t, mailer.sent[0].HTML, "0dde0000-0000-4000-8000-000000000001")
	})

	t.Run("unknown order", func(t *testing.T) {
		h, mailer, mock := setup(t)
		mock.ExpectQuery(`FROM payments`).WillReturnRows(sqlmock.NewRows(paymentCols))

		err := h.PaymentFailed(context.Background(), models.PaymentFailedEvent{OrderID: "missing"})
		assert.ErrorIs(t, err, errSkip)
		assert.Empty(t, mailer.sent)
	})
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := render("nope", emailData{})
	assert.Error(t, err)
}
