package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"nightpass/internal/middleware"
	"nightpass/internal/models"
)

// Events handlers

// CreateEvent - POST /api/events
func (h *Handlers) CreateEvent(c *gin.Context) {
	var req models.EventRequest
	if !bindJSON(c, &req) {
		return
	}

	event, err := h.services.Events.Create(c.Request.Context(), middleware.TenantID(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, event)
}

// ListEvents - GET /api/events?search=&status=&page=&pageSize=
func (h *Handlers) ListEvents(c *gin.Context) {
	page, valid := pagination(c)
	if !valid {
		return
	}

	result, err := h.services.Events.List(c.Request.Context(), middleware.TenantID(c), models.EventFilter{
		Query:      strings.TrimSpace(c.Query("search")),
		Status:     c.Query("status"),
		Pagination: page,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, result)
}

// GetEvent - GET /api/events/:id
func (h *Handlers) GetEvent(c *gin.Context) {
	event, err := h.services.Events.Get(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, event)
}

// UpdateEvent - PATCH /api/events/:id
func (h *Handlers) UpdateEvent(c *gin.Context) {
	var req models.EventUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	event, err := h.services.Events.Update(c.Request.Context(), middleware.TenantID(c), c.Param("id"), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, event)
}

// ArchiveEvent - DELETE /api/events/:id
func (h *Handlers) ArchiveEvent(c *gin.Context) {
	if err := h.services.Events.Archive(c.Request.Context(), middleware.TenantID(c), c.Param("id"), actorID(c)); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"archived": true})
}

// UploadEventFlyer - POST /api/events/:id/flyer (multipart "file")
func (h *Handlers) UploadEventFlyer(c *gin.Context) {
	upload, valid := readUpload(c)
	if !valid {
		return
	}

	event, err := h.services.Events.UploadFlyer(c.Request.Context(), middleware.TenantID(c), c.Param("id"), upload)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, event)
}

// ListPublicEvents - GET /api/public/:tenant/events?q=&page=&pageSize=
func (h *Handlers) ListPublicEvents(c *gin.Context) {
	page, valid := pagination(c)
	if !valid {
		return
	}

	result, err := h.services.Events.ListPublic(c.Request.Context(), middleware.TenantID(c), c.Query("q"), page)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, result)
}

// GetPublicEvent - GET /api/public/:tenant/events/:id
func (h *Handlers) GetPublicEvent(c *gin.Context) {
	event, err := h.services.Events.GetPublic(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, event)
}
