package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nightpass/internal/middleware"
	"nightpass/internal/models"
)

// GetBrandSettings - GET /api/settings/brand
func (h *Handlers) GetBrandSettings(c *gin.Context) {
	b, err := h.services.Settings.GetBrand(c.Request.Context(), middleware.TenantID(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, b)
}

// UpsertBrandSettings - PUT /api/settings/brand
func (h *Handlers) UpsertBrandSettings(c *gin.Context) {
	var req models.BrandSettingsRequest
	if !bindJSON(c, &req) {
		return
	}

	b, err := h.services.Settings.UpsertBrand(c.Request.Context(), middleware.TenantID(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, b)
}

// UploadBrandLogo - POST /api/settings/brand/logo (multipart "file")
func (h *Handlers) UploadBrandLogo(c *gin.Context) {
	upload, valid := readUpload(c)
	if !valid {
		return
	}

	b, err := h.services.Settings.UploadLogo(c.Request.Context(), middleware.TenantID(c), upload)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, b)
}

// GetLayoutSettings - GET /api/settings/layout
func (h *Handlers) GetLayoutSettings(c *gin.Context) {
	l, err := h.services.Settings.GetLayout(c.Request.Context(), middleware.TenantID(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, l)
}

// UpsertLayoutSettings - PUT /api/settings/layout
func (h *Handlers) UpsertLayoutSettings(c *gin.Context) {
	var req models.LayoutSettingsRequest
	if !bindJSON(c, &req) {
		return
	}

	l, err := h.services.Settings.UpsertLayout(c.Request.Context(), middleware.TenantID(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, l)
}

// UploadLayoutBackground - POST /api/settings/layout/background (multipart "file")
func (h *Handlers) UploadLayoutBackground(c *gin.Context) {
	upload, valid := readUpload(c)
	if !valid {
		return
	}

	l, err := h.services.Settings.UploadBackground(c.Request.Context(), middleware.TenantID(c), upload)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, l)
}

// PublicSite - GET /api/public/:tenant/site
// Brand and floor plan of the landing site in one call.
func (h *Handlers) PublicSite(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := middleware.TenantID(c)

	brand, err := h.services.Settings.GetBrand(ctx, tenantID)
	if err != nil {
		fail(c, err)
		return
	}
	layout, err := h.services.Settings.GetLayout(ctx, tenantID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"brand": brand, "layout": layout})
}
