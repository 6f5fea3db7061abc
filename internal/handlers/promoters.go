package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"nightpass/internal/middleware"
	"nightpass/internal/models"
)

// CreatePromoter - POST /api/promoters
func (h *Handlers) CreatePromoter(c *gin.Context) {
	var req models.PromoterRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.services.Promoters.Create(c.Request.Context(), middleware.TenantID(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, p)
}

// ListPromoters - GET /api/promoters?search=&page=&pageSize=
func (h *Handlers) ListPromoters(c *gin.Context) {
	page, valid := pagination(c)
	if !valid {
		return
	}

	result, err := h.services.Promoters.List(c.Request.Context(), middleware.TenantID(c), strings.TrimSpace(c.Query("search")), page)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, result)
}

// GetPromoter - GET /api/promoters/:id
func (h *Handlers) GetPromoter(c *gin.Context) {
	p, err := h.services.Promoters.Get(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// UpdatePromoter - PATCH /api/promoters/:id
func (h *Handlers) UpdatePromoter(c *gin.Context) {
	var req models.PromoterUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.services.Promoters.Update(c.Request.Context(), middleware.TenantID(c), c.Param("id"), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// ArchivePromoter - DELETE /api/promoters/:id
func (h *Handlers) ArchivePromoter(c *gin.Context) {
	if err := h.services.Promoters.Archive(c.Request.Context(), middleware.TenantID(c), c.Param("id"), actorID(c)); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"archived": true})
}

// PromoterStats - GET /api/events/:id/promoter-stats
func (h *Handlers) PromoterStats(c *gin.Context) {
	stats, err := h.services.Promoters.Stats(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, stats)
}
