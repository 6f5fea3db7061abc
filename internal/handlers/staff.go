package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nightpass/internal/middleware"
	"nightpass/internal/models"
)

// ListStaff - GET /api/staff
func (h *Handlers) ListStaff(c *gin.Context) {
	list, err := h.services.Staff.List(c.Request.Context(), middleware.TenantID(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, list)
}

// CreateStaff - POST /api/staff
func (h *Handlers) CreateStaff(c *gin.Context) {
	var req models.StaffRequest
	if !bindJSON(c, &req) {
		return
	}

	s, err := h.services.Staff.Create(c.Request.Context(), middleware.TenantID(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, s)
}

// UpdateStaff - PATCH /api/staff/:id
func (h *Handlers) UpdateStaff(c *gin.Context) {
	var req models.StaffUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	s, err := h.services.Staff.Update(c.Request.Context(), middleware.TenantID(c), c.Param("id"), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, s)
}

// ArchiveStaff - DELETE /api/staff/:id
func (h *Handlers) ArchiveStaff(c *gin.Context) {
	if err := h.services.Staff.Archive(c.Request.Context(), middleware.TenantID(c), c.Param("id"), actorID(c)); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"archived": true})
}
