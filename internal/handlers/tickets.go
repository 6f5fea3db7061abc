package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nightpass/internal/logger"
	"nightpass/internal/middleware"
	"nightpass/internal/models"
)

// Tickets and payments handlers

// Checkout - POST /api/public/:tenant/checkout
// Free and courtesy orders come back paid with their tickets; other orders
// carry the gateway payment_url.
func (h *Handlers) Checkout(c *gin.Context) {
	var req models.CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.services.Tickets.Checkout(c.Request.Context(), middleware.TenantID(c), middleware.TenantSlug(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, resp)
}

// CheckoutStatus - GET /api/public/:tenant/checkout/:order
func (h *Handlers) CheckoutStatus(c *gin.Context) {
	resp, err := h.services.Tickets.PaymentStatus(c.Request.Context(), middleware.TenantID(c), c.Param("order"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, resp)
}

// PaymentWebhook - POST /api/public/payments/webhook
// Принимает уведомления от платежного шлюза
func (h *Handlers) PaymentWebhook(c *gin.Context) {
	var n models.PaymentNotification
	if !bindJSON(c, &n) {
		return
	}
	logger.WithContext(c.Request.Context()).Info("Payment notification received",
		"order_id", n.OrderID,
		"gateway_status", n.Status)

	if err := h.services.Tickets.HandleNotification(c.Request.Context(), n); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"received": true})
}

// IssueCourtesyTickets - POST /api/tickets/courtesy
func (h *Handlers) IssueCourtesyTickets(c *gin.Context) {
	var req models.CourtesyRequest
	if !bindJSON(c, &req) {
		return
	}

	tickets, err := h.services.Tickets.Courtesy(c.Request.Context(), middleware.TenantID(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, tickets)
}

// ListTickets - GET /api/tickets?event_id=&status=&page=&pageSize=
func (h *Handlers) ListTickets(c *gin.Context) {
	page, valid := pagination(c)
	if !valid {
		return
	}

	result, err := h.services.Tickets.List(c.Request.Context(), middleware.TenantID(c), models.TicketFilter{
		EventID:    c.Query("event_id"),
		Status:     c.Query("status"),
		Pagination: page,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, result)
}

// ScanTicket - POST /api/tickets/scan
func (h *Handlers) ScanTicket(c *gin.Context) {
	var req models.ScanRequest
	if !bindJSON(c, &req) {
		return
	}

	t, err := h.services.Tickets.Scan(c.Request.Context(), middleware.TenantID(c), actorID(c), req.QRToken)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, t)
}

// CancelTicket - POST /api/tickets/:id/cancel
func (h *Handlers) CancelTicket(c *gin.Context) {
	if err := h.services.Tickets.Cancel(c.Request.Context(), middleware.TenantID(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"cancelled": true})
}

// ExportTickets - GET /api/events/:id/tickets/export
func (h *Handlers) ExportTickets(c *gin.Context) {
	data, event, err := h.services.Tickets.Export(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	sendWorkbook(c, data, "tickets", event)
}
