package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nightpass/internal/middleware"
	"nightpass/internal/models"
)

// GenerateCodes - POST /api/codes/batches
func (h *Handlers) GenerateCodes(c *gin.Context) {
	var req models.GenerateCodesRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.services.Codes.Generate(c.Request.Context(), middleware.TenantID(c), actorID(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, result)
}

// SetGeneralCode - PUT /api/events/:id/general-code
func (h *Handlers) SetGeneralCode(c *gin.Context) {
	var req models.GeneralCodeRequest
	if !bindJSON(c, &req) {
		return
	}

	code, err := h.services.Codes.SetGeneralCode(c.Request.Context(), middleware.TenantID(c), c.Param("id"), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, code)
}

// ListCodes - GET /api/codes?event_id=&batch_id=&type=&page=&pageSize=
func (h *Handlers) ListCodes(c *gin.Context) {
	page, valid := pagination(c)
	if !valid {
		return
	}

	result, err := h.services.Codes.List(c.Request.Context(), middleware.TenantID(c), models.CodeFilter{
		EventID:    c.Query("event_id"),
		BatchID:    c.Query("batch_id"),
		Type:       c.Query("type"),
		Pagination: page,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, result)
}

// ListCodeBatches - GET /api/events/:id/code-batches
func (h *Handlers) ListCodeBatches(c *gin.Context) {
	list, err := h.services.Codes.ListBatches(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, list)
}

// ArchiveCode - DELETE /api/codes/:id
func (h *Handlers) ArchiveCode(c *gin.Context) {
	if err := h.services.Codes.Archive(c.Request.Context(), middleware.TenantID(c), c.Param("id"), actorID(c)); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"archived": true})
}

// ArchiveCodeBatch - DELETE /api/codes/batches/:id
// Archives the batch together with all of its codes.
func (h *Handlers) ArchiveCodeBatch(c *gin.Context) {
	n, err := h.services.Codes.ArchiveBatch(c.Request.Context(), middleware.TenantID(c), c.Param("id"), actorID(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"archived": true, "codes_archived": n})
}

// ValidateCode - POST /api/public/:tenant/codes/validate
func (h *Handlers) ValidateCode(c *gin.Context) {
	var req models.ValidateCodeRequest
	if !bindJSON(c, &req) {
		return
	}

	v, err := h.services.Codes.Validate(c.Request.Context(), middleware.TenantID(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}
