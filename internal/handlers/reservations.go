package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nightpass/internal/middleware"
	"nightpass/internal/models"
	"nightpass/internal/service"
)

// Reservations handlers

// EventAvailability - GET /api/events/:id/availability
func (h *Handlers) EventAvailability(c *gin.Context) {
	h.availability(c, false)
}

// PublicAvailability - GET /api/public/:tenant/events/:id/availability
// The holding reservation id is not disclosed on the landing site.
func (h *Handlers) PublicAvailability(c *gin.Context) {
	h.availability(c, true)
}

func (h *Handlers) availability(c *gin.Context, public bool) {
	list, err := h.services.Reservations.Availability(c.Request.Context(), middleware.TenantID(c), c.Param("id"), public)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, list)
}

// CreateReservation - POST /api/reservations
func (h *Handlers) CreateReservation(c *gin.Context) {
	h.createReservation(c, service.SourceBackoffice, actorID(c))
}

// CreatePublicReservation - POST /api/public/:tenant/reservations
func (h *Handlers) CreatePublicReservation(c *gin.Context) {
	h.createReservation(c, service.SourceLanding, "")
}

func (h *Handlers) createReservation(c *gin.Context, source, actor string) {
	var req models.ReservationRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.services.Reservations.Create(c.Request.Context(), middleware.TenantID(c), actor, source, &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, res)
}

// ListReservations - GET /api/reservations?event_id=&table_id=&status=&page=&pageSize=
func (h *Handlers) ListReservations(c *gin.Context) {
	page, valid := pagination(c)
	if !valid {
		return
	}

	result, err := h.services.Reservations.List(c.Request.Context(), middleware.TenantID(c), models.ReservationFilter{
		EventID:    c.Query("event_id"),
		TableID:    c.Query("table_id"),
		Status:     c.Query("status"),
		Pagination: page,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, result)
}

// GetReservation - GET /api/reservations/:id
func (h *Handlers) GetReservation(c *gin.Context) {
	res, err := h.services.Reservations.Get(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// ChangeReservationStatus - PATCH /api/reservations/:id/status
func (h *Handlers) ChangeReservationStatus(c *gin.Context) {
	var req models.ReservationStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.services.Reservations.ChangeStatus(c.Request.Context(), middleware.TenantID(c), c.Param("id"), actorID(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// ArchiveReservation - DELETE /api/reservations/:id
func (h *Handlers) ArchiveReservation(c *gin.Context) {
	if err := h.services.Reservations.Archive(c.Request.Context(), middleware.TenantID(c), c.Param("id"), actorID(c)); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"archived": true})
}

// UploadVoucher - POST /api/public/:tenant/reservations/:id/voucher (multipart "file")
func (h *Handlers) UploadVoucher(c *gin.Context) {
	upload, valid := readUpload(c)
	if !valid {
		return
	}

	res, err := h.services.Reservations.UploadVoucher(c.Request.Context(), middleware.TenantID(c), c.Param("id"), upload)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// ExportReservations - GET /api/events/:id/reservations/export
func (h *Handlers) ExportReservations(c *gin.Context) {
	data, event, err := h.services.Reservations.Export(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	sendWorkbook(c, data, "reservations", event)
}
