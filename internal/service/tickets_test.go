package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "nightpass/internal/errors"
	"nightpass/internal/external"
	"nightpass/internal/models"
)

const (
	orderID   = "0dde0000-0000-4000-8000-000000000001"
	paymentID = "9a9a9a9a-0000-4000-8000-000000000002"
)

func newTicketService(t *testing.T, gateway *external.PaymentClient) (*TicketService, sqlmock.Sqlmock, *recordingPublisher) {
	repos, mock := setupMockDB(t)
	pub := &recordingPublisher{}
	clock := func() time.Time { return fixedNow }

	codes := NewCodeService(repos.Codes, repos.Events, repos.Promoters, nil, Options{})
	codes.now = clock
	s := NewTicketService(repos.Tickets, repos.Payments, repos.Events, codes, gateway, pub, nil, Options{
		PublicBaseURL:   "https://tickets.example.pe",
		NotificationURL: "https://api.example.pe/api/public/payments/webhook",
	})
	s.now = clock
	return s, mock, pub
}

func paymentRow(status string, quantity int, amount string) *sqlmock.Rows {
	return sqlmock.NewRows(paymentCols).AddRow(
		paymentID, tenantID, eventID, orderID, "gw-1", PurposeTickets, quantity, amount, "PEN", status,
		"Ana Quispe", nil, "ana@example.com", nil, "https://pay.example/p/1", fixedNow, fixedNow,
	)
}

func TestAmountCents(t *testing.T) {
	assert.Equal(t, int64(4550), AmountCents(decimal.RequireFromString("45.50")))
	assert.Equal(t, int64(12000), AmountCents(decimal.RequireFromString("120")))
	assert.Equal(t, int64(1), AmountCents(decimal.RequireFromString("0.005")))
}

func TestCheckoutValidation(t *testing.T) {
	s, mock, _ := newTicketService(t, nil)
	ctx := context.Background()

	_, err := s.Checkout(ctx, tenantID, "club", &models.CheckoutRequest{EventID: eventID, Quantity: 11, BuyerName: "Ana", BuyerEmail: "ana@example.com"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = s.Checkout(ctx, tenantID, "club", &models.CheckoutRequest{EventID: eventID, BuyerName: "Ana", BuyerEmail: "not-an-email"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutSoldOut(t *testing.T) {
	s, mock, _ := newTicketService(t, nil)

	mock.ExpectQuery(`FROM events`).WillReturnRows(eventRow("40.00", 100))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tickets`).
		WithArgs(eventID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(99))

	_, err := s.Checkout(context.Background(), tenantID, "club", &models.CheckoutRequest{
		EventID: eventID, Quantity: 2, BuyerName: "Ana", BuyerEmail: "ana@example.com",
	})
	assert.ErrorIs(t, err, apperrors.ErrSoldOut)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutCourtesyCodeIssuesOneTicket(t *testing.T) {
	s, mock, pub := newTicketService(t, nil)
	code := "VIPNOCHE"

	mock.ExpectQuery(`FROM events`).WillReturnRows(eventRow("40.00", 0))
	mock.ExpectQuery(`FROM codes`).WillReturnRows(codeRow(models.CodeTypeCourtesy, 1, 0))
	mock.ExpectQuery(`UPDATE codes`).WithArgs(codeID, tenantID).WillReturnRows(codeRow(models.CodeTypeCourtesy, 1, 1))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO tickets`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("ticket-1", fixedNow))
	mock.ExpectCommit()

	resp, err := s.Checkout(context.Background(), tenantID, "club", &models.CheckoutRequest{
		EventID: eventID, Quantity: 4, BuyerName: "Ana", BuyerEmail: "Ana@Example.com", Code: &code,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, resp.Status)
	require.Len(t, resp.Tickets, 1)
	assert.True(t, ValidID(resp.Tickets[0].QRToken))
	assert.Equal(t, "ana@example.com", *resp.Tickets[0].HolderEmail)
	assert.Equal(t, []string{models.EventTicketsIssued}, pub.subjects())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutStartsGatewayPayment(t *testing.T) {
	var received external.PaymentInitRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"success":true,"paymentId":"gw-1","status":"NEW","paymentURL":"https://pay.example/p/1"}`)
	}))
	defer srv.Close()

	gateway := external.NewPaymentClient(external.PaymentConfig{BaseURL: srv.URL, TeamSlug: "club", Password: "secret"})
	s, mock, pub := newTicketService(t, gateway)

	mock.ExpectQuery(`FROM events`).WillReturnRows(eventRow("45.50", 0))
	mock.ExpectQuery(`INSERT INTO payments`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(paymentID, fixedNow, fixedNow))
	mock.ExpectExec(`UPDATE payments SET provider_payment_id`).
		WithArgs(paymentID, "gw-1", "https://pay.example/p/1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	resp, err := s.Checkout(context.Background(), tenantID, "club", &models.CheckoutRequest{
		EventID: eventID, Quantity: 2, BuyerName: "Ana", BuyerEmail: "ana@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, resp.Status)
	assert.Equal(t, "91", resp.Amount.String())
	require.NotNil(t, resp.PaymentURL)
	assert.Equal(t, "https://pay.example/p/1", *resp.PaymentURL)

	assert.Equal(t, int64(9100), received.Amount)
	assert.Equal(t, resp.OrderID, received.OrderID)
	assert.Equal(t, "https://tickets.example.pe/club/checkout/success?order="+resp.OrderID, received.SuccessURL)
	assert.Empty(t, pub.subjects())
	require.NoError(t, mock.ExpectationsWereMet())
}

func signedNotification(gateway *external.PaymentClient, status string, amount int64) models.PaymentNotification {
	n := models.PaymentNotification{PaymentID: "gw-1", OrderID: orderID, Status: status, Amount: amount}
	n.Token = gateway.SignNotification(n)
	return n
}

// expectFulfil expects the event read and the transaction that marks the
// payment paid and inserts one ticket per id.
func expectFulfil(mock sqlmock.Sqlmock, ids ...string) {
	mock.ExpectQuery(`FROM events`).WillReturnRows(eventRow("45.50", 0))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE payments SET status = 'paid'`).WithArgs(paymentID).WillReturnResult(sqlmock.NewResult(0, 1))
	for _, id := range ids {
		mock.ExpectQuery(`INSERT INTO tickets`).WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(id, fixedNow))
	}
	mock.ExpectCommit()
}

func TestHandleNotification(t *testing.T) {
	gateway := external.NewPaymentClient(external.PaymentConfig{TeamSlug: "club", Password: "secret"})
	ctx := context.Background()

	t.Run("bad token", func(t *testing.T) {
		s, mock, _ := newTicketService(t, gateway)
		n := signedNotification(gateway, external.GatewayConfirmed, 9100)
		n.Token = "deadbeef"

		assert.ErrorIs(t, s.HandleNotification(ctx, n), apperrors.ErrUnauthorized)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("confirmed issues tickets", func(t *testing.T) {
		s, mock, pub := newTicketService(t, gateway)

		mock.ExpectQuery(`FROM payments WHERE order_id`).WithArgs(orderID).WillReturnRows(paymentRow("pending", 2, "91.00"))
		expectFulfil(mock, "ticket-1", "ticket-2")

		require.NoError(t, s.HandleNotification(ctx, signedNotification(gateway, external.GatewayConfirmed, 9100)))
		assert.Equal(t, []string{models.EventTicketsIssued}, pub.subjects())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("repeated notification is a no-op", func(t *testing.T) {
		s, mock, pub := newTicketService(t, gateway)

		mock.ExpectQuery(`FROM payments WHERE order_id`).WillReturnRows(paymentRow("paid", 2, "91.00"))

		require.NoError(t, s.HandleNotification(ctx, signedNotification(gateway, external.GatewayConfirmed, 9100)))
		assert.Empty(t, pub.subjects())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed issuance is retried on redelivery", func(t *testing.T) {
		s, mock, pub := newTicketService(t, gateway)
		n := signedNotification(gateway, external.GatewayConfirmed, 9100)

		mock.ExpectQuery(`FROM payments WHERE order_id`).WillReturnRows(paymentRow("pending", 2, "91.00"))
		mock.ExpectQuery(`FROM events`).WillReturnRows(eventRow("45.50", 0))
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE payments SET status = 'paid'`).WithArgs(paymentID).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`INSERT INTO tickets`).WillReturnError(errors.New("connection reset by peer"))
		mock.ExpectRollback()

		require.Error(t, s.HandleNotification(ctx, n))
		assert.Empty(t, pub.subjects())

		// The rollback left the order pending, so the next delivery issues.
		mock.ExpectQuery(`FROM payments WHERE order_id`).WillReturnRows(paymentRow("pending", 2, "91.00"))
		expectFulfil(mock, "ticket-1", "ticket-2")

		require.NoError(t, s.HandleNotification(ctx, n))
		assert.Equal(t, []string{models.EventTicketsIssued}, pub.subjects())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("confirmed after expiry issues nothing", func(t *testing.T) {
		s, mock, pub := newTicketService(t, gateway)

		mock.ExpectQuery(`FROM payments WHERE order_id`).WillReturnRows(paymentRow("expired", 2, "91.00"))

		require.NoError(t, s.HandleNotification(ctx, signedNotification(gateway, external.GatewayConfirmed, 9100)))
		assert.Empty(t, pub.subjects())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("expired while issuing", func(t *testing.T) {
		s, mock, pub := newTicketService(t, gateway)

		mock.ExpectQuery(`FROM payments WHERE order_id`).WillReturnRows(paymentRow("pending", 2, "91.00"))
		mock.ExpectQuery(`FROM events`).WillReturnRows(eventRow("45.50", 0))
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE payments SET status = 'paid'`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()
		mock.ExpectQuery(`FROM payments WHERE order_id`).WillReturnRows(paymentRow("expired", 2, "91.00"))

		require.NoError(t, s.HandleNotification(ctx, signedNotification(gateway, external.GatewayConfirmed, 9100)))
		assert.Empty(t, pub.subjects())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("amount mismatch", func(t *testing.T) {
		s, mock, _ := newTicketService(t, gateway)

		mock.ExpectQuery(`FROM payments WHERE order_id`).WillReturnRows(paymentRow("pending", 2, "91.00"))

		err := s.HandleNotification(ctx, signedNotification(gateway, external.GatewayConfirmed, 100))
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejected fails payment", func(t *testing.T) {
		s, mock, pub := newTicketService(t, gateway)

		mock.ExpectQuery(`FROM payments WHERE order_id`).WillReturnRows(paymentRow("pending", 2, "91.00"))
		mock.ExpectExec(`UPDATE payments SET status`).
			WithArgs(paymentID, "pending", "failed").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.HandleNotification(ctx, signedNotification(gateway, external.GatewayRejected, 9100)))
		assert.Equal(t, []string{models.EventPaymentFailed}, pub.subjects())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown order", func(t *testing.T) {
		s, mock, _ := newTicketService(t, gateway)

		mock.ExpectQuery(`FROM payments WHERE order_id`).WillReturnRows(sqlmock.NewRows(paymentCols))

		err := s.HandleNotification(ctx, signedNotification(gateway, external.GatewayConfirmed, 9100))
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestExpirePayments(t *testing.T) {
	var cancelled []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/PaymentCancel/cancel", r.URL.Path)
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		cancelled = append(cancelled, body["paymentId"].(string))
		io.WriteString(w, `{"success":true}`)
	}))
	defer srv.Close()

	gateway := external.NewPaymentClient(external.PaymentConfig{BaseURL: srv.URL, TeamSlug: "club", Password: "secret"})
	s, mock, pub := newTicketService(t, gateway)

	mock.ExpectQuery(`FROM payments`).
		WithArgs(fixedNow.Add(-15*time.Minute), 50).
		WillReturnRows(paymentRow("pending", 1, "45.50"))
	mock.ExpectExec(`UPDATE payments SET status`).
		WithArgs(paymentID, "pending", "expired").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := s.ExpirePayments(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"gw-1"}, cancelled)
	assert.Equal(t, []string{models.EventPaymentFailed}, pub.subjects())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScanRejectsMalformedToken(t *testing.T) {
	s, mock, _ := newTicketService(t, nil)

	_, err := s.Scan(context.Background(), tenantID, actorID, "qr-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
